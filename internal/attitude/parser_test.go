package attitude

import (
	"fmt"
	"strings"
	"testing"
)

const testHeader = `ODIN attitude reconstruction  version 2.1
some descriptive text
EOF
skip1
skip2
skip3
skip4
skip5
`

// attRow formats one 23-column data row.
func attRow(stw uint64, qe [3]float64) string {
	return fmt.Sprintf(
		"20020314 12 30 45.5 %d 8103.25 "+
			"0.1 0.2 0.3 0.4 "+
			"0.1 0.2 0.3 0.4 "+
			"%g %g %g "+
			"7000.1 10.2 20.3 1.1 2.2 3.3",
		stw, qe[0], qe[1], qe[2])
}

func parseString(t *testing.T, body string) ([]Sample, Report) {
	t.Helper()
	samples, report, err := Parser{}.Parse(strings.NewReader(testHeader+body), "test.att")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return samples, report
}

func TestParseBasic(t *testing.T) {
	body := attRow(1000, [3]float64{1, 0, 0}) + "\n" +
		attRow(2000, [3]float64{2, 0, 0}) + "\n"
	samples, report := parseString(t, body)

	if report.Rows != 2 {
		t.Fatalf("Rows = %d, want 2", report.Rows)
	}
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}

	s := samples[0]
	if s.STW != 1000 {
		t.Errorf("STW = %d, want 1000", s.STW)
	}
	if s.Year != 2002 || s.Mon != 3 || s.Day != 14 {
		t.Errorf("date = %d-%d-%d, want 2002-3-14", s.Year, s.Mon, s.Day)
	}
	if s.Hour != 12 || s.Min != 30 || s.Secs != 45.5 {
		t.Errorf("time = %d:%d:%v", s.Hour, s.Min, s.Secs)
	}
	if s.Orbit != 8103.25 {
		t.Errorf("Orbit = %v, want 8103.25", s.Orbit)
	}
	if s.Soda != 2 {
		t.Errorf("Soda = %d, want 2", s.Soda)
	}
	if s.QTarget != [4]float64{0.1, 0.2, 0.3, 0.4} {
		t.Errorf("QTarget = %v", s.QTarget)
	}
	if s.GPS != [6]float64{7000.1, 10.2, 20.3, 1.1, 2.2, 3.3} {
		t.Errorf("GPS = %v", s.GPS)
	}
	if s.ACS != 0 {
		t.Errorf("ACS = %v, want 0 for the plain row variant", s.ACS)
	}
}

func TestParseDuplicateSTWKeepsSmallerError(t *testing.T) {
	body := attRow(1000, [3]float64{3, 0, 0}) + "\n" +
		attRow(1000, [3]float64{1, 0, 0}) + "\n" + // same stw, better solution
		attRow(1000, [3]float64{2, 0, 0}) + "\n"
	samples, report := parseString(t, body)

	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	if report.Duplicates != 2 {
		t.Errorf("Duplicates = %d, want 2", report.Duplicates)
	}
	if samples[0].QError[0] != 1 {
		t.Errorf("kept QError = %v, want the smallest error magnitude", samples[0].QError)
	}
}

func TestParseCloseSamplesCollapse(t *testing.T) {
	body := attRow(1000, [3]float64{1, 0, 0}) + "\n" +
		attRow(1010, [3]float64{5, 0, 0}) + "\n" + // 10 ticks later, worse fix
		attRow(2000, [3]float64{2, 0, 0}) + "\n"
	samples, report := parseString(t, body)

	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	if report.CloseDrops != 1 {
		t.Errorf("CloseDrops = %d, want 1", report.CloseDrops)
	}
	if samples[0].STW != 1000 || samples[1].STW != 2000 {
		t.Errorf("surviving stws = %d, %d; want 1000, 2000", samples[0].STW, samples[1].STW)
	}
}

func TestParseCloseSamplesEqualErrorBothKept(t *testing.T) {
	body := attRow(1000, [3]float64{1, 0, 0}) + "\n" +
		attRow(1010, [3]float64{1, 0, 0}) + "\n"
	samples, report := parseString(t, body)

	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	if report.CloseDrops != 0 {
		t.Errorf("CloseDrops = %d, want 0", report.CloseDrops)
	}
}

func TestParseSkipsMalformedRows(t *testing.T) {
	bad := strings.Replace(attRow(1500, [3]float64{1, 0, 0}), "8103.25", "not-a-number", 1)
	body := attRow(1000, [3]float64{1, 0, 0}) + "\n" + bad + "\n"
	samples, report := parseString(t, body)

	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	total := 0
	for _, n := range report.Skips {
		total += n
	}
	if total != 1 {
		t.Errorf("skip count = %d, want 1", total)
	}
}

func TestParseShortLineEndsData(t *testing.T) {
	body := attRow(1000, [3]float64{1, 0, 0}) + "\n" +
		"trailer line\n" +
		attRow(2000, [3]float64{1, 0, 0}) + "\n"
	samples, _ := parseString(t, body)

	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1; a short line terminates the data section", len(samples))
	}
}

func TestParseSTWRange(t *testing.T) {
	body := attRow(1000, [3]float64{1, 0, 0}) + "\n" +
		attRow(5000, [3]float64{1, 0, 0}) + "\n"
	p := Parser{STW0: 2000, STW1: 6000}
	samples, _, err := p.Parse(strings.NewReader(testHeader+body), "test.att")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(samples) != 1 || samples[0].STW != 5000 {
		t.Fatalf("samples = %v, want only stw 5000", samples)
	}
}

func TestParseExtendedRowVariant(t *testing.T) {
	row := attRow(1000, [3]float64{1, 0, 0})
	// extended variant: 14 extra columns with the marker and fine pointing
	extra := " 0 0 0 0 0 0 0 0 0 0 0 5 0 33.25"
	samples, _ := parseString(t, row+extra+"\n")

	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	if samples[0].ACS != 33.25 {
		t.Errorf("ACS = %v, want 33.25", samples[0].ACS)
	}
}

func TestParseMissingHeaderEOF(t *testing.T) {
	_, _, err := Parser{}.Parse(strings.NewReader("1.0\nno marker here\n"), "test.att")
	if err == nil {
		t.Fatal("expected error for header without EOF marker")
	}
}
