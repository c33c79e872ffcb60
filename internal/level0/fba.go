package level0

import "fmt"

// FBARecord is one decoded filter bank mechanism sample.
type FBARecord struct {
	STW       uint64
	MechPhase string // "REF", "SK1", "CAL" or "SK2"
}

// FBAReader decodes mechanism phase records from an FBA file.
type FBAReader struct {
	f *File
}

// NewFBAReader wraps f, which must be an FBA file.
func NewFBAReader(f *File) (*FBAReader, error) {
	if f.Type() != TypeFBA {
		return nil, fmt.Errorf("%w: %s is %s, want FBA", ErrUnsupportedFileType, f.Name(), f.Type())
	}
	return &FBAReader{f: f}, nil
}

// Next scans for the next valid record header and decodes it. It returns
// io.EOF when the stream is exhausted.
func (r *FBAReader) Next() (*FBARecord, error) {
	for {
		blk, err := r.f.NextBlock()
		if err != nil {
			return nil, err
		}
		if blk.Sync != SyncWord || blk.User != userFBA {
			continue
		}
		return &FBARecord{
			STW:       blk.STW,
			MechPhase: mechPhase(blk.Words),
		}, nil
	}
}

// mechPhase reads the 2-bit mechanism position from the mirror word,
// falling back to the secondary word when the primary is unset.
func mechPhase(words []uint16) string {
	phases := [4]string{"REF", "SK1", "CAL", "SK2"}
	mirror := words[5]
	if mirror == 0xffff {
		mirror = words[6]
		if mirror == 0xffff {
			mirror = 0
		}
	}
	return phases[(mirror>>13)&3]
}
