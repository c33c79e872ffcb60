package level0

import (
	"fmt"
	"io"
	"sort"
)

// NotSampled is the raw word value marking a housekeeping slot that was not
// sampled in a given block.
const NotSampled = 0xffff

// CalKind selects the calibration transform shape for a housekeeping
// channel. Transforms are parameterized values rather than per-entry
// closures so the table stays a plain static literal.
type CalKind int

const (
	// CalPoly evaluates the polynomial C0 + x*(C1 + x*(C2 + x*C3)).
	CalPoly CalKind = iota
	// CalShiftMask extracts a bit field: (raw >> Shift) & Mask.
	CalShiftMask
)

// Calibration converts a raw housekeeping count to a physical value.
type Calibration struct {
	Kind  CalKind
	C     [4]float64
	Shift uint
	Mask  uint16
}

// Apply runs the transform on a raw count.
func (c Calibration) Apply(x float64) float64 {
	switch c.Kind {
	case CalShiftMask:
		return float64(uint16(x) >> c.Shift & c.Mask)
	default:
		return c.C[0] + x*(c.C[1]+x*(c.C[2]+x*c.C[3]))
	}
}

func poly(c ...float64) Calibration {
	cal := Calibration{Kind: CalPoly}
	copy(cal.C[:], c)
	return cal
}

func shiftMask(shift uint, mask uint16) Calibration {
	return Calibration{Kind: CalShiftMask, Shift: shift, Mask: mask}
}

var identity = poly(0, 1)

// Channel names one housekeeping quantity in the SHK block layout.
type Channel string

// The closed set of housekeeping channels.
const (
	ChanAOSLaserTemp    Channel = "AOS laser temperature"
	ChanAOSLaserCurrent Channel = "AOS laser current"
	ChanAOSStructure    Channel = "AOS structure"
	ChanAOSContinuum    Channel = "AOS continuum"
	ChanAOSProcessor    Channel = "AOS processor"

	ChanVaractor495 Channel = "varactor 495"
	ChanVaractor549 Channel = "varactor 549"
	ChanVaractor572 Channel = "varactor 572"
	ChanVaractor555 Channel = "varactor 555"

	ChanGunn495 Channel = "gunn 495"
	ChanGunn549 Channel = "gunn 549"
	ChanGunn572 Channel = "gunn 572"
	ChanGunn555 Channel = "gunn 555"

	ChanHarmonicMixer495 Channel = "harmonic mixer 495"
	ChanHarmonicMixer549 Channel = "harmonic mixer 549"
	ChanHarmonicMixer572 Channel = "harmonic mixer 572"
	ChanHarmonicMixer555 Channel = "harmonic mixer 555"

	ChanDoubler495 Channel = "doubler 495"
	ChanDoubler549 Channel = "doubler 549"
	ChanDoubler572 Channel = "doubler 572"
	ChanDoubler555 Channel = "doubler 555"

	ChanTripler495 Channel = "tripler 495"
	ChanTripler549 Channel = "tripler 549"
	ChanTripler572 Channel = "tripler 572"
	ChanTripler555 Channel = "tripler 555"

	ChanMixerCurrent495 Channel = "mixer current 495"
	ChanMixerCurrent549 Channel = "mixer current 549"
	ChanMixerCurrent572 Channel = "mixer current 572"
	ChanMixerCurrent555 Channel = "mixer current 555"

	ChanHEMT1Bias495 Channel = "HEMT 1 bias 495"
	ChanHEMT1Bias549 Channel = "HEMT 1 bias 549"
	ChanHEMT1Bias572 Channel = "HEMT 1 bias 572"
	ChanHEMT1Bias555 Channel = "HEMT 1 bias 555"

	ChanHEMT2Bias495 Channel = "HEMT 2 bias 495"
	ChanHEMT2Bias549 Channel = "HEMT 2 bias 549"
	ChanHEMT2Bias572 Channel = "HEMT 2 bias 572"
	ChanHEMT2Bias555 Channel = "HEMT 2 bias 555"

	ChanWarmIFA     Channel = "warm IF A-side"
	ChanWarmIFB     Channel = "warm IF B-side"
	ChanHotLoadA    Channel = "hot load A-side"
	ChanHotLoadB    Channel = "hot load B-side"
	ChanImageLoadA  Channel = "image load A-side"
	ChanImageLoadB  Channel = "image load B-side"
	ChanMixerA      Channel = "mixer A-side"
	ChanMixerB      Channel = "mixer B-side"
	ChanLNAA        Channel = "LNA A-side"
	ChanLNAB        Channel = "LNA B-side"
	Chan119MixerA   Channel = "119GHz mixer A-side"
	Chan119MixerB   Channel = "119GHz mixer B-side"
	Chan119Voltage  Channel = "119GHz voltage"
	Chan119Current  Channel = "119GHz current"
	Chan119DRO      Channel = "119GHz DRO"
	ChanACDC1Sync   Channel = "ACDC1 sync"
	ChanACDC2Sync   Channel = "ACDC2 sync"
	ChanACSAvail    Channel = "ACS availability"

	ChanHROFreq495 Channel = "HRO frequency 495"
	ChanHROFreq549 Channel = "HRO frequency 549"
	ChanHROFreq572 Channel = "HRO frequency 572"
	ChanHROFreq555 Channel = "HRO frequency 555"
	ChanPROFreq495 Channel = "PRO frequency 495"
	ChanPROFreq549 Channel = "PRO frequency 549"
	ChanPROFreq572 Channel = "PRO frequency 572"
	ChanPROFreq555 Channel = "PRO frequency 555"

	ChanLOMechA495 Channel = "LO mechanism A 495"
	ChanLOMechA549 Channel = "LO mechanism A 549"
	ChanLOMechA572 Channel = "LO mechanism A 572"
	ChanLOMechA555 Channel = "LO mechanism A 555"
	ChanLOMechB495 Channel = "LO mechanism B 495"
	ChanLOMechB549 Channel = "LO mechanism B 549"
	ChanLOMechB572 Channel = "LO mechanism B 572"
	ChanLOMechB555 Channel = "LO mechanism B 555"

	ChanSSBMechA495 Channel = "SSB mechanism A 495"
	ChanSSBMechA549 Channel = "SSB mechanism A 549"
	ChanSSBMechA572 Channel = "SSB mechanism A 572"
	ChanSSBMechA555 Channel = "SSB mechanism A 555"
	ChanSSBMechB495 Channel = "SSB mechanism B 495"
	ChanSSBMechB549 Channel = "SSB mechanism B 549"
	ChanSSBMechB572 Channel = "SSB mechanism B 572"
	ChanSSBMechB555 Channel = "SSB mechanism B 555"
)

// HKChannel describes where a channel lives in the SHK block payload and
// how to calibrate it. Sub selects a 4-bit tag value the word must carry in
// its low nibble; the sample is then the word shifted right by the nibble.
// Sub is -1 for channels without a tag.
type HKChannel struct {
	Word int
	Sub  int
	Cal  Calibration
}

var hkChannels = map[Channel]HKChannel{
	ChanAOSLaserTemp:    {1, 0, poly(7.3, 0.01141)},
	ChanAOSLaserCurrent: {1, 1, poly(0, 0.0388)},
	ChanAOSStructure:    {1, 2, poly(0.764, 0.01167)},
	ChanAOSContinuum:    {1, 3, poly(-2.1, 6.929e-3, 5.7718e-6)},
	ChanAOSProcessor:    {1, 4, poly(-6.54, 0.01637)},

	ChanVaractor495: {17, 0, poly(-12.0, 4.8*5.0/4095.0)},
	ChanVaractor549: {18, 0, poly(-12.0, 4.8*5.0/4095.0)},
	ChanVaractor572: {25, 0, poly(-12.0, 4.8*5.0/4095.0)},
	ChanVaractor555: {26, 0, poly(-12.0, 4.8*5.0/4095.0)},

	ChanGunn495: {17, 1, poly(0, 80.0*5.0/4095.0)},
	ChanGunn549: {18, 1, poly(0, 80.0*5.0/4095.0)},
	ChanGunn572: {25, 1, poly(0, 80.0*5.0/4095.0)},
	ChanGunn555: {26, 1, poly(0, 80.0*5.0/4095.0)},

	ChanHarmonicMixer495: {17, 2, poly(0, 1.2195*5.0/4095.0)},
	ChanHarmonicMixer549: {18, 2, poly(0, 1.2195*5.0/4095.0)},
	ChanHarmonicMixer572: {25, 2, poly(0, 1.2195*5.0/4095.0)},
	ChanHarmonicMixer555: {26, 2, poly(0, 1.2195*5.0/4095.0)},

	ChanDoubler495: {17, 3, poly(0, -1.6129*5.0/4095.0)},
	ChanDoubler549: {18, 3, poly(0, -1.6129*5.0/4095.0)},
	ChanDoubler572: {25, 3, poly(0, -1.6129*5.0/4095.0)},
	ChanDoubler555: {26, 3, poly(0, -1.6129*5.0/4095.0)},

	ChanTripler495: {17, 4, poly(0, -1.2195*5.0/4095.0)},
	ChanTripler549: {18, 4, poly(0, -1.2195*5.0/4095.0)},
	ChanTripler572: {25, 4, poly(0, -1.2195*5.0/4095.0)},
	ChanTripler555: {26, 4, poly(0, -1.2195*5.0/4095.0)},

	ChanMixerCurrent495: {19, 0, poly(0, 5.0/4095.0/1.22)},
	ChanMixerCurrent549: {19, 1, poly(0, 5.0/4095.0/1.22)},
	ChanMixerCurrent572: {27, 0, poly(0, 5.0/4095.0/1.22)},
	ChanMixerCurrent555: {27, 1, poly(0, 5.0/4095.0/1.22)},

	ChanHEMT1Bias495: {19, 2, poly(0, 5.0/4095.0/1.22)},
	ChanHEMT1Bias549: {19, 4, poly(0, 5.0/4095.0/1.22)},
	ChanHEMT1Bias572: {27, 2, poly(0, 5.0/4095.0/1.22)},
	ChanHEMT1Bias555: {27, 4, poly(0, 5.0/4095.0/1.22)},

	ChanHEMT2Bias495: {19, 3, poly(0, 5.0/4095.0/1.22)},
	ChanHEMT2Bias549: {19, 5, poly(0, 5.0/4095.0/1.22)},
	ChanHEMT2Bias572: {27, 3, poly(0, 5.0/4095.0/1.22)},
	ChanHEMT2Bias555: {27, 5, poly(0, 5.0/4095.0/1.22)},

	ChanWarmIFA:    {20, 0, poly(-20.0*1.16, 20.0*5.0/4095.0)},
	ChanWarmIFB:    {28, 0, poly(-20.0*1.16, 20.0*5.0/4095.0)},
	ChanHotLoadA:   {20, 1, poly(-20.0*1.16, 20.0*5.0/4095.0)},
	ChanHotLoadB:   {28, 1, poly(-20.0*1.16, 20.0*5.0/4095.0)},
	ChanImageLoadA: {20, 2, poly(-20.0*1.16, 20.0*5.0/4095.0)},
	ChanImageLoadB: {28, 2, poly(-20.0*1.16, 20.0*5.0/4095.0)},

	ChanMixerA:    {20, 3, poly(-70.0*3.86+273.15, 70.0*5.0/4095.0)},
	ChanMixerB:    {28, 3, poly(-70.0*3.86+273.15, 70.0*5.0/4095.0)},
	ChanLNAA:      {20, 4, poly(-70.0*3.86+273.15, 70.0*5.0/4095.0)},
	ChanLNAB:      {28, 4, poly(-70.0*3.86+273.15, 70.0*5.0/4095.0)},
	Chan119MixerA: {20, 5, poly(-70.0*3.86+273.15, 70.0*5.0/4095.0)},
	Chan119MixerB: {28, 5, poly(-70.0*3.86+273.15, 70.0*5.0/4095.0)},

	ChanHROFreq495: {21, 0, poly(4000.0, 1)},
	ChanHROFreq549: {21, 2, poly(4000.0, 1)},
	ChanHROFreq572: {29, 0, poly(4000.0, 1)},
	ChanHROFreq555: {29, 2, poly(4000.0, 1)},
	ChanPROFreq495: {21, 1, poly(100.0, 1.0/32.0)},
	ChanPROFreq549: {21, 3, poly(100.0, 1.0/32.0)},
	ChanPROFreq572: {29, 1, poly(100.0, 1.0/32.0)},
	ChanPROFreq555: {29, 3, poly(100.0, 1.0/32.0)},

	ChanLOMechA495: {37, 0, identity},
	ChanLOMechA549: {38, 0, identity},
	ChanLOMechA572: {37, 2, identity},
	ChanLOMechA555: {38, 2, identity},
	ChanLOMechB495: {43, 0, identity},
	ChanLOMechB549: {44, 0, identity},
	ChanLOMechB572: {43, 2, identity},
	ChanLOMechB555: {44, 2, identity},

	ChanSSBMechA495: {35, 0, identity},
	ChanSSBMechA549: {36, 0, identity},
	ChanSSBMechA572: {35, 2, identity},
	ChanSSBMechA555: {36, 2, identity},
	ChanSSBMechB495: {41, 0, identity},
	ChanSSBMechB549: {42, 0, identity},
	ChanSSBMechB572: {41, 2, identity},
	ChanSSBMechB555: {42, 2, identity},

	Chan119Voltage: {46, 4, poly(-56.0, 112.0/4095.0)},
	Chan119Current: {46, 12, poly(-1091.0, 2178.0/4095.0)},
	Chan119DRO:     {13, 1, poly(944.035, -0.8374, 2.567e-4, -2.74e-8)},
	ChanACDC1Sync:  {47, -1, shiftMask(8, 0x000f)},
	ChanACDC2Sync:  {48, -1, shiftMask(3, 0x000f)},
	ChanACSAvail:   {49, 13, identity},
}

// LookupChannel returns the descriptor for a housekeeping channel.
func LookupChannel(ch Channel) (HKChannel, bool) {
	desc, ok := hkChannels[ch]
	return desc, ok
}

// Channels returns all housekeeping channels in stable order.
func Channels() []Channel {
	out := make([]Channel, 0, len(hkChannels))
	for ch := range hkChannels {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SHKSample is one calibrated housekeeping sample.
type SHKSample struct {
	STW   uint64
	Value float64
}

// SHKReader decodes housekeeping channels from an SHK file. Channel
// extraction is multi-pass: every read rewinds and scans the full block
// stream, mirroring the linear layout of the source format.
type SHKReader struct {
	f *File
}

// NewSHKReader wraps f, which must be an SHK file.
func NewSHKReader(f *File) (*SHKReader, error) {
	if f.Type() != TypeSHK {
		return nil, fmt.Errorf("%w: %s is %s, want SHK", ErrUnsupportedFileType, f.Name(), f.Type())
	}
	return &SHKReader{f: f}, nil
}

// ReadChannel scans the stream for one channel and returns its calibrated
// samples. Words equal to the NotSampled sentinel are dropped; tagged
// channels instead keep only words whose low nibble matches the tag.
func (r *SHKReader) ReadChannel(ch Channel) ([]SHKSample, error) {
	desc, ok := hkChannels[ch]
	if !ok {
		return nil, fmt.Errorf("level0: unknown housekeeping channel %q", ch)
	}
	if err := r.f.Rewind(); err != nil {
		return nil, err
	}

	var samples []SHKSample
	for {
		blk, err := r.f.NextBlock()
		if err == io.EOF {
			return samples, nil
		}
		if err != nil {
			return nil, err
		}
		word := blk.Words[desc.Word]
		if desc.Sub >= 0 {
			if int(word&0x000f) != desc.Sub {
				continue
			}
			word >>= 4
		} else if word == NotSampled {
			continue
		}
		samples = append(samples, SHKSample{STW: blk.STW, Value: desc.Cal.Apply(float64(word))})
	}
}

// LOFreqs holds the stitched local-oscillator frequency series. The A side
// carries the 495 and 549 receivers, the B side 555 and 572; a zero
// frequency marks a sample whose tag sequence did not validate.
type LOFreqs struct {
	STWA  []uint64
	LO495 []float64
	LO549 []float64

	STWB  []uint64
	LO555 []float64
	LO572 []float64
}

// loFreq reconstructs an LO frequency in Hz from the stitched HRO and PRO
// counter halves and the receiver's multiplier.
func loFreq(hro, pro uint16, m float64) float64 {
	return ((4000.0+float64(hro))*m + float64(pro)/32.0 + 100.0) * 6.0e6
}

// LOFrequencies stitches the LO frequency samples, which arrive as pairs of
// tagged words two blocks apart (tags 0 then 1 for the first receiver of a
// side, 2 then 3 for the second). A broken tag sequence degrades that
// sample to zero rather than failing the read.
func (r *SHKReader) LOFrequencies() (LOFreqs, error) {
	var out LOFreqs
	stw, aside, bside, err := r.scanSides(21, 29)
	if err != nil {
		return out, err
	}

	sub := func(w uint16) int { return int(w & 0x000f) }
	for i := 0; i+3 < len(stw); i++ {
		if sub(aside[i]) == 0 {
			out.STWA = append(out.STWA, stw[i])
			if sub(aside[i+1]) == 1 {
				out.LO495 = append(out.LO495, loFreq(aside[i]>>4, aside[i+1]>>4, 17.0))
			} else {
				out.LO495 = append(out.LO495, 0.0)
			}
			if sub(aside[i+2]) == 2 && sub(aside[i+3]) == 3 {
				out.LO549 = append(out.LO549, loFreq(aside[i+2]>>4, aside[i+3]>>4, 19.0))
			} else {
				out.LO549 = append(out.LO549, 0.0)
			}
		}
		if sub(bside[i]) == 0 {
			out.STWB = append(out.STWB, stw[i])
			if sub(bside[i+1]) == 1 {
				out.LO572 = append(out.LO572, loFreq(bside[i]>>4, bside[i+1]>>4, 20.0))
			} else {
				out.LO572 = append(out.LO572, 0.0)
			}
			if sub(bside[i+2]) == 2 && sub(bside[i+3]) == 3 {
				out.LO555 = append(out.LO555, loFreq(bside[i+2]>>4, bside[i+3]>>4, 19.0))
			} else {
				out.LO555 = append(out.LO555, 0.0)
			}
		}
	}
	return out, nil
}

// SSBTunings holds the stitched sideband tuning series per receiver.
type SSBTunings struct {
	STW    []uint64
	SSB495 []uint16
	SSB549 []uint16
	SSB555 []uint16
	SSB572 []uint16
}

// SSBTunings stitches the sideband mechanism readouts. Each block carries
// either the A-side or B-side mechanism pair; a sample is kept only when
// both sides show tag 0 at the anchor block and tag 2 two blocks later,
// otherwise the scan slides forward by one block.
func (r *SHKReader) SSBTunings() (SSBTunings, error) {
	var out SSBTunings
	if err := r.f.Rewind(); err != nil {
		return out, err
	}

	var stw []uint64
	var aside, bside []uint16
	var onASide []bool
	for {
		blk, err := r.f.NextBlock()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, err
		}
		stw = append(stw, blk.STW)
		if blk.Words[35] != NotSampled && blk.Words[36] != NotSampled {
			aside = append(aside, blk.Words[35])
			bside = append(bside, blk.Words[36])
			onASide = append(onASide, true)
		} else {
			aside = append(aside, blk.Words[41])
			bside = append(bside, blk.Words[42])
			onASide = append(onASide, false)
		}
	}

	sub := func(w uint16) int { return int(w & 0x000f) }
	for i := 0; i+2 < len(stw); {
		if sub(aside[i]) == 0 && sub(bside[i]) == 0 &&
			sub(aside[i+2]) == 2 && sub(bside[i+2]) == 2 {
			out.STW = append(out.STW, stw[i])
			if onASide[i] {
				out.SSB495 = append(out.SSB495, aside[i]>>4)
				out.SSB572 = append(out.SSB572, aside[i+2]>>4)
				out.SSB549 = append(out.SSB549, bside[i]>>4)
				out.SSB555 = append(out.SSB555, bside[i+2]>>4)
			} else {
				out.SSB495 = append(out.SSB495, aside[i+2]>>4)
				out.SSB572 = append(out.SSB572, aside[i]>>4)
				out.SSB549 = append(out.SSB549, bside[i+2]>>4)
				out.SSB555 = append(out.SSB555, bside[i]>>4)
			}
			i += 2
		} else {
			i++
		}
	}
	return out, nil
}

// scanSides collects one word pair from every block in the stream.
func (r *SHKReader) scanSides(a, b int) (stw []uint64, aw, bw []uint16, err error) {
	if err := r.f.Rewind(); err != nil {
		return nil, nil, nil, err
	}
	for {
		blk, err := r.f.NextBlock()
		if err == io.EOF {
			return stw, aw, bw, nil
		}
		if err != nil {
			return nil, nil, nil, err
		}
		stw = append(stw, blk.STW)
		aw = append(aw, blk.Words[a])
		bw = append(bw, blk.Words[b])
	}
}
