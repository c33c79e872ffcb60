package level0

import (
	"io"
	"testing"
)

func aosBlock(stw uint64, set map[int]uint16) []uint16 {
	return buildBlock(SyncWord, stw, userAOS, 120, set)
}

func TestAOSReaderDecodesRecord(t *testing.T) {
	f := openFile(t, "00001000.aos",
		aosBlock(100, map[int]uint16{1: 322}), // format filler, skipped
		aosBlock(200, map[int]uint16{1: 111, 8: 0x0080, 32: 4, 35: 300}),
	)
	r, err := NewAOSReader(f)
	if err != nil {
		t.Fatalf("NewAOSReader: %v", err)
	}
	rec, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}

	if rec.STW != 200 {
		t.Errorf("STW = %d, want 200 with the filler skipped", rec.STW)
	}
	if rec.Frontend != "495" {
		t.Errorf("Frontend = %q, want 495", rec.Frontend)
	}
	// aligned phase on a low band receiver reads as signal
	if rec.SigType != "SIG" {
		t.Errorf("SigType = %q, want SIG", rec.SigType)
	}
	if rec.Mode != 111 {
		t.Errorf("Mode = %d, want 111", rec.Mode)
	}
	if want := 300.0 * (1760.0 / 3.0e5); rec.IntTime != want {
		t.Errorf("IntTime = %v, want %v", rec.IntTime, want)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("Next at end: err = %v, want io.EOF", err)
	}
}

func TestAOSReaderSigTypeVariants(t *testing.T) {
	tests := []struct {
		set  map[int]uint16
		want string
	}{
		// high band receiver with aligned phase reads as reference
		{map[int]uint16{8: 0x0080, 32: 1}, "REF"},
		// reference phase refined by the calibration selector
		{map[int]uint16{8: 0x0080, 32: 1, 11: 2}, "CAL"},
		{map[int]uint16{8: 0x0080, 32: 1, 11: 1}, "SK1"},
		{map[int]uint16{8: 0x0080, 32: 1, 11: 3}, "SK2"},
		// no receiver selected means a dark measurement
		{map[int]uint16{8: 0x0080}, "DRK"},
		// comb marker wins over everything
		{map[int]uint16{8: 0x0080, 32: 4, 34: 1}, "CMB"},
	}
	for _, tt := range tests {
		set := map[int]uint16{1: 111}
		for k, v := range tt.set {
			set[k] = v
		}
		f := openFile(t, "00001000.aos", aosBlock(100, set))
		r, err := NewAOSReader(f)
		if err != nil {
			t.Fatalf("NewAOSReader: %v", err)
		}
		rec, err := r.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if rec.SigType != tt.want {
			t.Errorf("set %v: SigType = %q, want %q", tt.set, rec.SigType, tt.want)
		}
	}
}
