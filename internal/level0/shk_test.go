package level0

import (
	"math"
	"testing"
)

func shkBlock(stw uint64, set map[int]uint16) []uint16 {
	// Unset housekeeping slots read as NotSampled.
	words := buildBlock(SyncWord, stw, userSHK, 75, nil)
	for i := headWords; i < 75-4; i++ {
		words[i] = NotSampled
	}
	for i, w := range set {
		words[headWords+i] = w
	}
	return words
}

func TestCalibrationApply(t *testing.T) {
	p := poly(2.0, 3.0, 0.5)
	if got, want := p.Apply(4.0), 2.0+4.0*(3.0+4.0*0.5); got != want {
		t.Errorf("poly Apply(4) = %v, want %v", got, want)
	}

	sm := shiftMask(8, 0x000f)
	if got := sm.Apply(float64(0x0342)); got != 3 {
		t.Errorf("shiftMask Apply(0x0342) = %v, want 3", got)
	}

	if got := identity.Apply(1234); got != 1234 {
		t.Errorf("identity Apply(1234) = %v, want 1234", got)
	}
}

func TestChannelTable(t *testing.T) {
	if _, ok := LookupChannel(ChanHotLoadA); !ok {
		t.Fatal("hot load A-side channel missing from table")
	}
	names := Channels()
	if len(names) != len(hkChannels) {
		t.Fatalf("Channels() returned %d names, table has %d", len(names), len(hkChannels))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("Channels() not sorted at %d: %q >= %q", i, names[i-1], names[i])
		}
	}
}

func TestReadChannelTagged(t *testing.T) {
	// Hot load A-side lives in word 20 under sub-channel tag 1.
	f := openFile(t, "00001000.shk",
		shkBlock(100, map[int]uint16{20: 2000<<4 | 1}),
		shkBlock(101, map[int]uint16{20: 2000<<4 | 3}), // other tag, dropped
		shkBlock(102, map[int]uint16{20: 2100<<4 | 1}),
	)
	r, err := NewSHKReader(f)
	if err != nil {
		t.Fatalf("NewSHKReader: %v", err)
	}
	samples, err := r.ReadChannel(ChanHotLoadA)
	if err != nil {
		t.Fatalf("ReadChannel: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	if samples[0].STW != 100 || samples[1].STW != 102 {
		t.Errorf("sample stws = %d, %d; want 100, 102", samples[0].STW, samples[1].STW)
	}
	want := -20.0*1.16 + 2000.0*(20.0*5.0/4095.0)
	if math.Abs(samples[0].Value-want) > 1e-9 {
		t.Errorf("calibrated value = %v, want %v", samples[0].Value, want)
	}
}

func TestReadChannelUntaggedDropsNotSampled(t *testing.T) {
	f := openFile(t, "00001000.shk",
		shkBlock(100, map[int]uint16{47: 0x0342}),
		shkBlock(101, nil), // slot not sampled
		shkBlock(102, map[int]uint16{47: 0x0142}),
	)
	r, err := NewSHKReader(f)
	if err != nil {
		t.Fatalf("NewSHKReader: %v", err)
	}
	samples, err := r.ReadChannel(ChanACDC1Sync)
	if err != nil {
		t.Fatalf("ReadChannel: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	if samples[0].Value != 3 || samples[1].Value != 1 {
		t.Errorf("values = %v, %v; want 3, 1", samples[0].Value, samples[1].Value)
	}
}

func TestReadChannelUnknown(t *testing.T) {
	f := openFile(t, "00001000.shk", shkBlock(100, nil))
	r, err := NewSHKReader(f)
	if err != nil {
		t.Fatalf("NewSHKReader: %v", err)
	}
	if _, err := r.ReadChannel("no such channel"); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}

func TestLOFrequencies(t *testing.T) {
	const (
		hroA, proA   = 700, 320 // 495 pair on the A side
		hroA2, proA2 = 710, 330 // 549 pair
	)
	f := openFile(t, "00001000.shk",
		shkBlock(100, map[int]uint16{21: hroA<<4 | 0}),
		shkBlock(101, map[int]uint16{21: proA<<4 | 1}),
		shkBlock(102, map[int]uint16{21: hroA2<<4 | 2}),
		shkBlock(103, map[int]uint16{21: proA2<<4 | 3}),
		shkBlock(104, nil),
	)
	r, err := NewSHKReader(f)
	if err != nil {
		t.Fatalf("NewSHKReader: %v", err)
	}
	lo, err := r.LOFrequencies()
	if err != nil {
		t.Fatalf("LOFrequencies: %v", err)
	}

	if len(lo.STWA) != 1 || lo.STWA[0] != 100 {
		t.Fatalf("STWA = %v, want [100]", lo.STWA)
	}
	want495 := ((4000.0+hroA)*17.0 + proA/32.0 + 100.0) * 6.0e6
	if lo.LO495[0] != want495 {
		t.Errorf("LO495 = %v, want %v", lo.LO495[0], want495)
	}
	want549 := ((4000.0+hroA2)*19.0 + proA2/32.0 + 100.0) * 6.0e6
	if lo.LO549[0] != want549 {
		t.Errorf("LO549 = %v, want %v", lo.LO549[0], want549)
	}
	// B-side words stayed NotSampled; 0xffff has low nibble 0xf, never tag 0.
	if len(lo.STWB) != 0 {
		t.Errorf("STWB = %v, want empty", lo.STWB)
	}
}

func TestLOFrequenciesBrokenTagSequence(t *testing.T) {
	f := openFile(t, "00001000.shk",
		shkBlock(100, map[int]uint16{21: 700<<4 | 0}),
		shkBlock(101, map[int]uint16{21: 320<<4 | 7}), // wrong tag
		shkBlock(102, map[int]uint16{21: 710<<4 | 2}),
		shkBlock(103, map[int]uint16{21: 330<<4 | 3}),
		shkBlock(104, nil),
	)
	r, err := NewSHKReader(f)
	if err != nil {
		t.Fatalf("NewSHKReader: %v", err)
	}
	lo, err := r.LOFrequencies()
	if err != nil {
		t.Fatalf("LOFrequencies: %v", err)
	}
	if len(lo.LO495) != 1 || lo.LO495[0] != 0 {
		t.Fatalf("LO495 = %v, want a single degraded zero", lo.LO495)
	}
	if lo.LO549[0] == 0 {
		t.Error("LO549 should still decode from its intact tag pair")
	}
}

func TestSSBTunings(t *testing.T) {
	f := openFile(t, "00001000.shk",
		shkBlock(100, map[int]uint16{35: 500<<4 | 0, 36: 600<<4 | 0}),
		shkBlock(101, nil),
		shkBlock(102, map[int]uint16{35: 510<<4 | 2, 36: 610<<4 | 2}),
		shkBlock(103, nil),
	)
	r, err := NewSHKReader(f)
	if err != nil {
		t.Fatalf("NewSHKReader: %v", err)
	}
	ssb, err := r.SSBTunings()
	if err != nil {
		t.Fatalf("SSBTunings: %v", err)
	}

	if len(ssb.STW) != 1 || ssb.STW[0] != 100 {
		t.Fatalf("STW = %v, want [100]", ssb.STW)
	}
	if ssb.SSB495[0] != 500 || ssb.SSB549[0] != 600 {
		t.Errorf("SSB495/549 = %d/%d, want 500/600", ssb.SSB495[0], ssb.SSB549[0])
	}
	if ssb.SSB572[0] != 510 || ssb.SSB555[0] != 610 {
		t.Errorf("SSB572/555 = %d/%d, want 510/610", ssb.SSB572[0], ssb.SSB555[0])
	}
}
