package level0

import (
	"fmt"
	"io"
)

// clockFreq is the correlator sampling clock in Hz.
const clockFreq = 224.0e6

// IntTimeSentinel flags a record whose integration time could not be
// derived (zero raw integration time or prescaler out of range); downstream
// processing treats such records as unusable.
const IntTimeSentinel = 9999.0

// ACRecord is one decoded autocorrelator spectrum.
type ACRecord struct {
	STW        uint64
	Backend    FileType // TypeAC1 or TypeAC2
	Frontend   string   // receiver name; empty when the input channel is invalid
	SigType    string   // "SIG", "REF" or "NAN"
	Discipline string   // "ASTR", "AERO" or "Problem"

	Attenuation  [4]uint16
	SSBFrequency [4]uint16
	Prescaler    uint16
	IntTime      float64 // seconds; IntTimeSentinel when underivable
	Mode         uint8
	CmdTime      float64
	ChopPhase    string // FBA phase as seen through the chopper wheel word

	Monitor [8][2]float64
	Data    [8][96]float64
}

// ACReader decodes autocorrelator spectra from an AC1 or AC2 file. Each
// spectrum is one header block followed by 12 data sub-blocks forming the
// 8-channel by 96-lag correlation matrix; the observation discipline is
// carried in the index word of the first data sub-block, so one pass over
// the stream yields complete records.
type ACReader struct {
	f      *File
	block0 uint16
}

// NewACReader wraps f, which must be an AC1 or AC2 file.
func NewACReader(f *File) (*ACReader, error) {
	r := &ACReader{f: f}
	switch f.Type() {
	case TypeAC1:
		r.block0 = userAC1
	case TypeAC2:
		r.block0 = userAC2
	default:
		return nil, fmt.Errorf("%w: %s is %s, want AC1 or AC2", ErrUnsupportedFileType, f.Name(), f.Type())
	}
	return r, nil
}

// Next scans for the next spectrum header and decodes the full record.
// It returns io.EOF when the stream is exhausted, including on a record
// truncated by the end of the file.
func (r *ACReader) Next() (*ACRecord, error) {
	head, stw, err := r.nextSpectrumHead()
	if err != nil {
		return nil, err
	}

	// 12 sub-blocks of 64 payload words each hold the 8x96 lag matrix.
	var cc [8][96]int64
	discipline := "Problem"
	for j := 0; j < 12; j++ {
		blk, err := r.f.NextBlock()
		if err != nil {
			return nil, io.EOF
		}
		if j == 0 {
			if idx := blk.Index(); idx.Valid {
				discipline = idx.Discipline
			}
		}
		for k, w := range blk.Words {
			n := j*64 + k
			cc[n/96][n%96] = int64(int16(w))
		}
	}

	rec := &ACRecord{
		STW:        stw,
		Backend:    r.f.Type(),
		Frontend:   acFrontend(head),
		Discipline: discipline,
		Prescaler:  head[49],
		Mode:       uint8(head[35] >> 8),
		CmdTime:    float64(head[35]&0xff) / 16.0,
	}
	rec.SigType = r.sigType(rec.Frontend, head[8])
	if head[8] == 0xaaaa {
		rec.ChopPhase = "SIG"
	} else {
		rec.ChopPhase = "REF"
	}
	for i := 0; i < 4; i++ {
		rec.Attenuation[i] = head[37+i]
		rec.SSBFrequency[i] = head[44-i]
	}

	// Each channel's zero-lag hint word, shifted up a nibble, combines with
	// the low nibble of the channel's first lag to restore the full value.
	var zlags [8]int64
	for ch := 0; ch < 8; ch++ {
		zlags[ch] = int64(head[50+ch])<<4 + cc[ch][0]&0xf
	}
	layout := ChipTopology(rec.Mode)
	for ch := 0; ch < 8; ch++ {
		if !layout.InBandStart(ch) {
			continue
		}
		cc[ch][0] = zlags[ch]
		if cc[ch][2] > 0 {
			// truncation artifact in the third lag of band-start channels
			cc[ch][2] -= 65536
		}
	}

	rec.IntTime = integrationTime(head)
	if rec.IntTime == 0 {
		rec.IntTime = IntTimeSentinel
	}

	lagScale := 2048.0 / rec.IntTime / (clockFreq / 2.0)
	for ch := 0; ch < 8; ch++ {
		for lag := 0; lag < 96; lag++ {
			rec.Data[ch][lag] = float64(cc[ch][lag]) * lagScale
		}
	}

	// Monitor counters are 16 bits wide; unwrap them against the zero-lag
	// reference before scaling.
	monScale := 1024.0 / rec.IntTime / (clockFreq / 2.0)
	for ch := 0; ch < 8; ch++ {
		for j := 0; j < 2; j++ {
			mon := zlags[ch]&0xf0000 + int64(head[16+2*ch+j])
			diff := mon - zlags[ch]
			if diff > 0x8000 {
				mon -= 0x10000
			} else if diff < -0x8000 {
				mon += 0x10000
			}
			rec.Monitor[ch][j] = float64(mon) * monScale
		}
	}

	return rec, nil
}

func (r *ACReader) nextSpectrumHead() ([]uint16, uint64, error) {
	for {
		blk, err := r.f.NextBlock()
		if err != nil {
			return nil, 0, err
		}
		if blk.Sync == SyncWord && blk.User == r.block0 {
			return blk.Words, blk.STW, nil
		}
	}
}

// integrationTime derives the integration time in seconds from the
// prescaler and sample-count header fields. Prescalers outside [2,6] are
// unsupported and yield 0.
func integrationTime(head []uint16) float64 {
	prescaler := int(head[49])
	if prescaler < 2 || prescaler > 6 {
		return 0
	}
	samples := uint64(head[12]) << (14 - prescaler)
	return float64(samples) / 10.0e6
}

// acFrontend resolves the receiver feeding the correlator from the input
// channel field. An out-of-range channel yields the empty string.
func acFrontend(head []uint16) string {
	frontends := [6]string{"549", "495", "572", "555", "SPL", "119"}
	input := int(head[36] >> 8 & 0x000f)
	if input >= 1 && input <= 6 {
		return frontends[input-1]
	}
	return ""
}

// sigType classifies the spectrum as signal or reference from the chopper
// wheel state. The split receiver's classification depends on which
// correlator instance is reading it.
func (r *ACReader) sigType(frontend string, chop uint16) string {
	signal := chop != 0xaaaa
	switch frontend {
	case "495", "549":
		if signal {
			return "SIG"
		}
		return "REF"
	case "555", "572", "119":
		if signal {
			return "REF"
		}
		return "SIG"
	case "SPL":
		if (r.f.Type() == TypeAC1) != signal {
			return "REF"
		}
		return "SIG"
	}
	return "NAN"
}
