package level0

import "fmt"

// AOSRecord is one decoded acousto-optical spectrometer header. The AOS
// stopped producing data early in the mission; the decoder is kept complete
// but is not wired into the import dispatch.
type AOSRecord struct {
	STW      uint64
	Frontend string
	SigType  string
	IntTime  float64
	Mode     uint16
}

// AOSReader decodes spectrometer records from an AOS file.
type AOSReader struct {
	f *File
}

// NewAOSReader wraps f, which must be an AOS file.
func NewAOSReader(f *File) (*AOSReader, error) {
	if f.Type() != TypeAOS {
		return nil, fmt.Errorf("%w: %s is %s, want AOS", ErrUnsupportedFileType, f.Name(), f.Type())
	}
	return &AOSReader{f: f}, nil
}

// Next scans for the next spectrum header and decodes it. Mode 322 blocks
// are format fillers and are skipped. Returns io.EOF at end of stream.
func (r *AOSReader) Next() (*AOSRecord, error) {
	for {
		blk, err := r.f.NextBlock()
		if err != nil {
			return nil, err
		}
		if blk.Sync != SyncWord || blk.User&userMask != userAOS {
			continue
		}
		if blk.Words[1] == 322 {
			continue
		}
		w := blk.Words
		return &AOSRecord{
			STW:      blk.STW,
			Frontend: aosFrontend(w),
			SigType:  aosSigType(w),
			IntTime:  float64(w[35]) * (1760.0 / 3.0e5),
			Mode:     w[1],
		}, nil
	}
}

func aosFrontend(w []uint16) string {
	switch w[32] {
	case 1:
		return "555"
	case 2:
		return "572"
	case 4:
		return "495"
	case 8:
		return "549"
	case 16:
		return "119"
	}
	return "OFF"
}

func aosSigType(w []uint16) string {
	var aligned uint16
	switch {
	case w[19] != 0:
		aligned = w[8] & 0x0080
	case w[20] != 0:
		aligned = w[9] & 0x0080
	default:
		aligned = w[8] & 0x0080
	}

	rx := aosFrontend(w)
	lowBand := rx == "495" || rx == "549"

	var typ string
	if (aligned != 0) == lowBand {
		typ = "SIG"
	} else {
		typ = "REF"
	}

	if typ == "REF" {
		switch w[11] & 0x000f {
		case 1:
			typ = "SK1"
		case 2:
			typ = "CAL"
		case 3:
			typ = "SK2"
		}
	}

	if w[32] == 0 {
		typ = "DRK"
	}
	if w[34] == 1 {
		typ = "CMB"
	}
	return typ
}
