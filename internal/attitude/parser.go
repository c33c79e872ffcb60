// Package attitude parses Odin attitude-solution files: ASCII tables of
// reconstructed spacecraft pointing produced by the attitude control system
// ground processing.
package attitude

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"
)

// closeTicks is the spacing below which two attitude fixes are considered
// the same physical sample.
const closeTicks = 17

// defaultSTWMax bounds the stw range accepted from a file.
const defaultSTWMax = 0x800000000

// Sample is one attitude fix.
type Sample struct {
	Year, Mon, Day int
	Hour, Min      int
	Secs           float64
	STW            uint64
	Orbit          float64
	QTarget        [4]float64
	QAchieved      [4]float64
	QError         [3]float64
	GPS            [6]float64
	ACS            float64 // fine-pointing angle; 0 unless the extended row variant carries it
	Soda           int     // attitude software version from the file header
}

// Report aggregates what happened to the rows of one parse call.
type Report struct {
	Rows       int // data rows parsed
	Duplicates int // rows replacing or losing to an existing stw key
	CloseDrops int // samples dropped by the closeness pass
	Skips      map[string]int
}

func (r *Report) skip(reason string) {
	if r.Skips == nil {
		r.Skips = make(map[string]int)
	}
	r.Skips[reason]++
}

// Parser parses attitude files into a deduplicated, stw-sorted sample
// sequence. The zero value accepts the full stw range.
type Parser struct {
	// STW0 and STW1 bound the accepted stw range; both zero means the
	// default range [0, 0x800000000].
	STW0, STW1 uint64
}

// ParseFile parses the named attitude file.
func (p Parser) ParseFile(path string) ([]Sample, Report, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, Report{}, err
	}
	defer fh.Close()
	return p.Parse(fh, path)
}

// Parse reads one attitude file from r. The header is consumed up to the
// literal "EOF" marker line plus five more lines; numeric rows follow. Rows
// sharing an stw keep the one with the smaller quaternion-error magnitude,
// and after the scan, consecutive fixes closer than 17 ticks are collapsed
// the same way.
func (p Parser) Parse(r io.Reader, name string) ([]Sample, Report, error) {
	var report Report

	stw0, stw1 := p.STW0, p.STW1
	if stw1 == 0 {
		stw1 = defaultSTWMax
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	soda, err := readSoda(sc)
	if err != nil {
		return nil, report, fmt.Errorf("attitude: %s: %w", name, err)
	}
	if err := skipHeader(sc); err != nil {
		return nil, report, fmt.Errorf("attitude: %s: %w", name, err)
	}

	table := make(map[string]Sample)
	for sc.Scan() {
		cols := strings.Fields(sc.Text())
		if len(cols) < 23 {
			// trailer; the data section is over
			break
		}
		s, err := parseRow(cols)
		if err != nil {
			report.skip(err.Error())
			continue
		}
		s.Soda = soda
		if s.STW < stw0 || s.STW > stw1 {
			continue
		}
		report.Rows++

		key := fmt.Sprintf("%08X", s.STW)
		prev, dup := table[key]
		if !dup {
			table[key] = s
			continue
		}
		report.Duplicates++
		slog.Warn("duplicate attitude stw", "file", name, "key", key)
		if prev.QError != s.QError && errMag(s.QError) < errMag(prev.QError) {
			table[key] = s
		}
	}
	if err := sc.Err(); err != nil {
		return nil, report, fmt.Errorf("attitude: %s: %w", name, err)
	}

	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Closeness pass: fixes under 17 ticks apart are one physical sample;
	// keep the one with the smaller error magnitude.
	if len(keys) > 0 {
		key0 := keys[0]
		for _, key1 := range keys[1:] {
			s0 := table[key0]
			s1 := table[key1]
			if s1.STW-s0.STW < closeTicks {
				if s0.QError != s1.QError {
					report.CloseDrops++
					if errMag(s1.QError) < errMag(s0.QError) {
						delete(table, key0)
						key0 = key1
					} else {
						delete(table, key1)
					}
				}
			} else {
				key0 = key1
			}
		}
	}

	out := make([]Sample, 0, len(table))
	for _, k := range keys {
		if s, ok := table[k]; ok {
			out = append(out, s)
		}
	}
	return out, report, nil
}

// readSoda extracts the attitude software version from the last token of
// the first header line.
func readSoda(sc *bufio.Scanner) (int, error) {
	if !sc.Scan() {
		return 0, fmt.Errorf("empty file")
	}
	fields := strings.Fields(sc.Text())
	if len(fields) == 0 {
		return 0, fmt.Errorf("blank first header line")
	}
	v, err := strconv.ParseFloat(fields[len(fields)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("soda version: %w", err)
	}
	return int(v), nil
}

// skipHeader consumes lines up to and including the "EOF" marker, then
// five more.
func skipHeader(sc *bufio.Scanner) error {
	for sc.Scan() {
		if sc.Text() == "EOF" {
			for i := 0; i < 5; i++ {
				if !sc.Scan() {
					return fmt.Errorf("truncated header")
				}
			}
			return nil
		}
	}
	return fmt.Errorf("no EOF marker in header")
}

func parseRow(cols []string) (Sample, error) {
	var s Sample

	date := cols[0]
	if len(date) != 8 {
		return s, fmt.Errorf("bad date field")
	}
	var err error
	if s.Year, err = strconv.Atoi(date[0:4]); err != nil {
		return s, fmt.Errorf("bad date field")
	}
	if s.Mon, err = strconv.Atoi(date[4:6]); err != nil {
		return s, fmt.Errorf("bad date field")
	}
	if s.Day, err = strconv.Atoi(date[6:8]); err != nil {
		return s, fmt.Errorf("bad date field")
	}
	if s.Hour, err = strconv.Atoi(cols[1]); err != nil {
		return s, fmt.Errorf("bad hour field")
	}
	if s.Min, err = strconv.Atoi(cols[2]); err != nil {
		return s, fmt.Errorf("bad minute field")
	}
	if s.Secs, err = strconv.ParseFloat(cols[3], 64); err != nil {
		return s, fmt.Errorf("bad seconds field")
	}
	if s.STW, err = strconv.ParseUint(cols[4], 10, 64); err != nil {
		return s, fmt.Errorf("bad stw field")
	}
	if s.Orbit, err = strconv.ParseFloat(cols[5], 64); err != nil {
		return s, fmt.Errorf("bad orbit field")
	}
	if err := parseFloats(cols[6:10], s.QTarget[:]); err != nil {
		return s, fmt.Errorf("bad target quaternion")
	}
	if err := parseFloats(cols[10:14], s.QAchieved[:]); err != nil {
		return s, fmt.Errorf("bad achieved quaternion")
	}
	if err := parseFloats(cols[14:17], s.QError[:]); err != nil {
		return s, fmt.Errorf("bad quaternion error")
	}
	if err := parseFloats(cols[17:23], s.GPS[:]); err != nil {
		return s, fmt.Errorf("bad gps state")
	}

	// extended row variant with astronomy fine pointing
	if len(cols) == 37 && cols[34] == "5" {
		if s.ACS, err = strconv.ParseFloat(cols[36], 64); err != nil {
			return s, fmt.Errorf("bad fine-pointing field")
		}
	}
	return s, nil
}

func parseFloats(cols []string, dst []float64) error {
	for i, c := range cols {
		v, err := strconv.ParseFloat(c, 64)
		if err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}

func errMag(qe [3]float64) float64 {
	return qe[0]*qe[0] + qe[1]*qe[1] + qe[2]*qe[2]
}
