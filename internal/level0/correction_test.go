package level0

import (
	"reflect"
	"testing"
)

func TestSTWCorrection(t *testing.T) {
	tests := []struct {
		filename string
		want     uint64
	}{
		{"0FFFFFFF.shk", 0x000000000},
		{"10000000.ac1", 0x100000000},
		{"7A123456.fba", 0x700000000},
		{"/data/level0/att/0ce/0CE86670.att", 0x000000000},
		{"F0000000.ac2", 0xF00000000},
	}
	for _, tt := range tests {
		got, err := STWCorrection(tt.filename)
		if err != nil {
			t.Errorf("STWCorrection(%q) error: %v", tt.filename, err)
			continue
		}
		if got != tt.want {
			t.Errorf("STWCorrection(%q) = 0x%X, want 0x%X", tt.filename, got, tt.want)
		}
	}
}

func TestSTWCorrectionBadStem(t *testing.T) {
	if _, err := STWCorrection("notes.txt"); err == nil {
		t.Fatal("expected error for non-hex stem")
	}
}

func TestChipTopologySingleBand(t *testing.T) {
	// Mode 0 cascades all eight chips into one band.
	layout := ChipTopology(0)

	if !reflect.DeepEqual(layout.BandStart, []int{0}) {
		t.Errorf("BandStart = %v, want [0]", layout.BandStart)
	}
	if len(layout.Bands) != 1 || !reflect.DeepEqual(layout.Bands[0], []int{0, 1, 2, 3, 4, 5, 6, 7}) {
		t.Errorf("Bands = %v, want [[0 1 2 3 4 5 6 7]]", layout.Bands)
	}
	if layout.Seq[0] != 8 || layout.Seq[1] != 1 {
		t.Errorf("Seq[0:2] = %v, want [8 1]", layout.Seq[:2])
	}
	if !layout.InBandStart(0) || layout.InBandStart(1) {
		t.Error("only chip 0 should carry a band start")
	}
}

func TestChipTopologyFourBands(t *testing.T) {
	// Mode 0x2A pairs the chips into four two-chip bands.
	layout := ChipTopology(0x2a)

	if !reflect.DeepEqual(layout.BandStart, []int{0, 2, 4, 6}) {
		t.Errorf("BandStart = %v, want [0 2 4 6]", layout.BandStart)
	}
	wantBands := [][]int{{0, 1}, {2, 3}, {4, 5}, {6, 7}}
	if !reflect.DeepEqual(layout.Bands, wantBands) {
		t.Errorf("Bands = %v, want %v", layout.Bands, wantBands)
	}

	// Sideband signs follow the fixed per-chip pattern.
	wantSigns := map[int]int{1: 1, 5: 1, 9: -1, 13: -1}
	for ind, want := range wantSigns {
		if layout.Seq[ind] != want {
			t.Errorf("Seq[%d] = %d, want %d", ind, layout.Seq[ind], want)
		}
	}
}

func TestChipTopologyEightBands(t *testing.T) {
	// All mode bits set: every chip is its own band.
	layout := ChipTopology(0xff)

	if !reflect.DeepEqual(layout.BandStart, []int{0, 1, 2, 3, 4, 5, 6, 7}) {
		t.Errorf("BandStart = %v, want all chips", layout.BandStart)
	}
	for i, band := range layout.Bands {
		if len(band) != 1 || band[0] != i {
			t.Errorf("Bands[%d] = %v, want [%d]", i, band, i)
		}
	}
}
