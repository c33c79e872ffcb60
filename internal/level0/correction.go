package level0

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// STWCorrection recovers the spacecraft-time-word rollover epoch encoded by
// the file naming convention. The hex file stem is the 32 low bits of the
// counter shifted right by 4; shifting it back and masking out everything
// below bit 32 yields the epoch bits to add to every decoded record's stw.
func STWCorrection(filename string) (uint64, error) {
	stem := filepath.Base(filename)
	stem = strings.TrimSuffix(stem, filepath.Ext(stem))
	v, err := strconv.ParseUint(stem, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("level0: file stem %q is not a hex stw: %w", stem, err)
	}
	return (v << 4) & 0xF00000000, nil
}

// ChipLayout describes how the eight correlator chips are cascaded into
// logical spectral bands for a given mode byte.
type ChipLayout struct {
	// Seq holds (length, sideband sign) pairs per chip slot; a zero length
	// means the chip is cascaded into an earlier band.
	Seq [16]int
	// Bands lists the physical chip indices cascaded into each logical band.
	Bands [][]int
	// BandStart holds the first chip index of each band; that chip carries
	// the band's valid zero-lag sample.
	BandStart []int
}

// InBandStart reports whether chip carries the zero-lag sample of a band.
func (c ChipLayout) InBandStart(chip int) bool {
	for _, s := range c.BandStart {
		if s == chip {
			return true
		}
	}
	return false
}

// ChipTopology decodes the correlator mode byte into the chip cascade
// layout. A sentinel low bit is prepended so chip 0 always starts a band;
// scanning the candidate bits accumulates run lengths, each run is assigned
// a fixed sideband sign, and consecutive runs become the logical bands.
func ChipTopology(mode uint8) ChipLayout {
	var layout ChipLayout
	ssb := [8]int{1, -1, 1, -1, -1, 1, -1, 1}

	m := uint16(mode)<<1 | 1
	start := 0
	for i := 0; i < 8; i++ {
		if m&1 != 0 {
			start = i
		}
		layout.Seq[2*start]++
		m >>= 1
	}
	for i := 0; i < 8; i++ {
		switch {
		case layout.Seq[2*i] == 0:
			layout.Seq[2*i+1] = 0
		case ssb[i] < 0:
			layout.Seq[2*i+1] = -1
		default:
			layout.Seq[2*i+1] = 1
		}
	}

	band := 0
	for ind, length := range layout.Seq {
		if ind != band {
			continue
		}
		chip := ind / 2
		layout.BandStart = append(layout.BandStart, chip)
		chips := make([]int, length)
		for k := range chips {
			chips[k] = chip + k
		}
		layout.Bands = append(layout.Bands, chips)
		band = ind + 2*length
	}
	return layout
}
