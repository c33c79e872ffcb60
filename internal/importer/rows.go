package importer

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/odin-smr/level0/internal/level0"
)

// acRow lays out one autocorrelator record for the ac_level0 table. The
// monitor and correlation matrices travel as packed little-endian float64
// bytes; the sideband vectors as integer arrays.
func acRow(rec *level0.ACRecord, corr uint64, file string, created time.Time) []any {
	att := make([]int32, 4)
	fq := make([]int32, 4)
	for i := 0; i < 4; i++ {
		att[i] = int32(rec.Attenuation[i])
		fq[i] = int32(rec.SSBFrequency[i])
	}

	mon := make([]float64, 0, 16)
	for ch := 0; ch < 8; ch++ {
		mon = append(mon, rec.Monitor[ch][:]...)
	}
	cc := make([]float64, 0, 768)
	for ch := 0; ch < 8; ch++ {
		cc = append(cc, rec.Data[ch][:]...)
	}

	return []any{
		int64(rec.STW + corr),
		string(rec.Backend),
		rec.Frontend,
		rec.SigType,
		att,
		fq,
		int32(rec.Prescaler),
		rec.IntTime,
		int32(rec.Mode),
		floatBytes(mon),
		floatBytes(cc),
		file,
		created,
	}
}

func floatBytes(vs []float64) []byte {
	buf := make([]byte, 8*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return buf
}

// shkSeries names the housekeeping channels imported as shk_level0 rows,
// beyond the stitched LO and SSB series. Thermistor channels on the cold
// plate report in kelvin already; the load sensors report celsius and get
// the offset here.
var shkSeries = []struct {
	Name     string
	Channel  level0.Channel
	ToKelvin bool
}{
	{"mixC495", level0.ChanMixerCurrent495, false},
	{"mixC549", level0.ChanMixerCurrent549, false},
	{"mixC555", level0.ChanMixerCurrent555, false},
	{"mixC572", level0.ChanMixerCurrent572, false},
	{"imageloadB", level0.ChanImageLoadB, false},
	{"imageloadA", level0.ChanImageLoadA, false},
	{"hotloadA", level0.ChanHotLoadA, true},
	{"hotloadB", level0.ChanHotLoadB, true},
	{"mixerA", level0.ChanMixerA, false},
	{"mixerB", level0.ChanMixerB, false},
	{"lnaA", level0.ChanLNAA, false},
	{"lnaB", level0.ChanLNAB, false},
	{"119mixerA", level0.Chan119MixerA, false},
	{"119mixerB", level0.Chan119MixerB, false},
	{"warmifA", level0.ChanWarmIFA, false},
	{"warmifB", level0.ChanWarmIFB, false},
}
