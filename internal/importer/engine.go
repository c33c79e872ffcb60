package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odin-smr/level0/internal/attitude"
	"github.com/odin-smr/level0/internal/level0"
	"github.com/odin-smr/level0/internal/logging"
	"github.com/odin-smr/level0/internal/observability"
)

// Engine imports one file per call: select a decoder by extension, filter
// and correct the decoded records, serialize them into a row batch and
// merge the batch into the store.
type Engine struct {
	store   MergeStore
	metrics *observability.Collector
	now     func() time.Time
}

// New creates an Engine. metrics may be nil.
func New(store MergeStore, metrics *observability.Collector) *Engine {
	return &Engine{store: store, metrics: metrics, now: time.Now}
}

// ImportFile decodes and merges the file at path. Unrecognized file types
// and malformed type headers return an Imported:false result with a nil
// error; store failures return the error for external retry.
func (e *Engine) ImportFile(ctx context.Context, path string) (Result, error) {
	start := e.now()
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	res := Result{
		Type:  ext,
		JobID: uuid.New().String(),
		File:  filepath.Base(path),
	}
	log := logging.WithFields(ctx, "job_id", res.JobID, "file", res.File, "type", ext)
	log.Info("importing file")

	var batch RowBatch
	var err error
	switch ext {
	case "ac1", "ac2":
		batch, err = e.decodeAC(path, &res)
	case "fba":
		batch, err = e.decodeFBA(path, &res)
	case "shk":
		batch, err = e.decodeSHK(path, &res)
	case "att":
		batch, err = e.decodeAttitude(path, &res)
	default:
		log.Warn("unknown file type")
		res.Reason = "unrecognized file type"
		res.Duration = e.now().Sub(start)
		e.observe(ext, "unrecognized", 0, res.Duration)
		return res, nil
	}
	if err != nil {
		res.Reason = err.Error()
		res.Duration = e.now().Sub(start)
		if errors.Is(err, level0.ErrUnsupportedFileType) {
			log.Warn("file type header mismatch", "error", err)
			e.observe(ext, "unrecognized", 0, res.Duration)
			return res, nil
		}
		e.observe(ext, "error", 0, res.Duration)
		return res, err
	}

	stats, err := e.store.Merge(ctx, batch)
	if err != nil {
		res.Reason = "store failure"
		res.Duration = e.now().Sub(start)
		e.observe(ext, "error", 0, res.Duration)
		return res, fmt.Errorf("merge %s: %w", batch.Table.Name, err)
	}

	res.Imported = true
	res.Rows = stats.Inserted
	res.Duration = e.now().Sub(start)
	log.Info("import complete",
		"records", res.Records,
		"rows", stats.Inserted,
		"replaced", stats.Deleted,
		"duplicates_dropped", stats.DupDropped,
		"conflicts", stats.Conflicts,
		"skipped", res.Skipped,
		"duration_ms", res.Duration.Milliseconds(),
	)
	e.observe(ext, "imported", stats.Inserted, res.Duration)
	return res, nil
}

func (e *Engine) observe(typ, outcome string, rows int, d time.Duration) {
	if e.metrics != nil {
		e.metrics.ObserveImport(typ, outcome, rows, d)
	}
}

func (r *Result) skip(reason string) {
	if r.SkipReasons == nil {
		r.SkipReasons = make(map[string]int)
	}
	r.SkipReasons[reason]++
	r.Skipped++
}

// decodeAC walks autocorrelator spectra, keeping only usable aeronomy
// records: integration time derivable, discipline AERO, frontend resolved
// and signal type classified.
func (e *Engine) decodeAC(path string, res *Result) (RowBatch, error) {
	corr, err := stwCorrection(path)
	if err != nil {
		return RowBatch{}, err
	}
	f, err := level0.Open(path)
	if err != nil {
		return RowBatch{}, err
	}
	defer f.Close()
	r, err := level0.NewACReader(f)
	if err != nil {
		return RowBatch{}, err
	}

	batch := RowBatch{Table: TableAC}
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return batch, nil
		}
		if err != nil {
			return RowBatch{}, err
		}
		res.Records++

		switch {
		case rec.IntTime == level0.IntTimeSentinel:
			res.skip("integration time unusable")
		case rec.Discipline != "AERO":
			res.skip("discipline " + rec.Discipline)
		case rec.Frontend == "":
			res.skip("frontend unresolved")
		case rec.SigType == "problem":
			res.skip("signal type problem")
		default:
			batch.Rows = append(batch.Rows, acRow(rec, corr, res.File, e.now()))
		}
	}
}

func (e *Engine) decodeFBA(path string, res *Result) (RowBatch, error) {
	corr, err := stwCorrection(path)
	if err != nil {
		return RowBatch{}, err
	}
	f, err := level0.Open(path)
	if err != nil {
		return RowBatch{}, err
	}
	defer f.Close()
	r, err := level0.NewFBAReader(f)
	if err != nil {
		return RowBatch{}, err
	}

	batch := RowBatch{Table: TableFBA}
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return batch, nil
		}
		if err != nil {
			return RowBatch{}, err
		}
		res.Records++
		batch.Rows = append(batch.Rows, []any{
			int64(rec.STW + corr),
			rec.MechPhase,
			res.File,
			e.now(),
		})
	}
}

func (e *Engine) decodeSHK(path string, res *Result) (RowBatch, error) {
	corr, err := stwCorrection(path)
	if err != nil {
		return RowBatch{}, err
	}
	f, err := level0.Open(path)
	if err != nil {
		return RowBatch{}, err
	}
	defer f.Close()
	r, err := level0.NewSHKReader(f)
	if err != nil {
		return RowBatch{}, err
	}

	batch := RowBatch{Table: TableSHK}
	add := func(name string, stw uint64, value float64) {
		res.Records++
		batch.Rows = append(batch.Rows, []any{
			int64(stw + corr), name, value, res.File, e.now(),
		})
	}

	lo, err := r.LOFrequencies()
	if err != nil {
		return RowBatch{}, err
	}
	for i, stw := range lo.STWA {
		add("LO495", stw, lo.LO495[i])
		add("LO549", stw, lo.LO549[i])
	}
	for i, stw := range lo.STWB {
		add("LO555", stw, lo.LO555[i])
		add("LO572", stw, lo.LO572[i])
	}

	ssb, err := r.SSBTunings()
	if err != nil {
		return RowBatch{}, err
	}
	for i, stw := range ssb.STW {
		add("SSB495", stw, float64(ssb.SSB495[i]))
		add("SSB549", stw, float64(ssb.SSB549[i]))
		add("SSB555", stw, float64(ssb.SSB555[i]))
		add("SSB572", stw, float64(ssb.SSB572[i]))
	}

	for _, series := range shkSeries {
		samples, err := r.ReadChannel(series.Channel)
		if err != nil {
			return RowBatch{}, err
		}
		for _, s := range samples {
			value := s.Value
			if series.ToKelvin {
				value += 273.15
			}
			add(series.Name, s.STW, value)
		}
	}
	return batch, nil
}

func (e *Engine) decodeAttitude(path string, res *Result) (RowBatch, error) {
	corr, err := stwCorrection(path)
	if err != nil {
		return RowBatch{}, err
	}
	samples, report, err := attitude.Parser{}.ParseFile(path)
	if err != nil {
		return RowBatch{}, err
	}
	res.Records = report.Rows
	for reason, n := range report.Skips {
		res.Skipped += n
		if res.SkipReasons == nil {
			res.SkipReasons = make(map[string]int)
		}
		res.SkipReasons[reason] += n
	}

	batch := RowBatch{Table: TableAttitude}
	for _, s := range samples {
		batch.Rows = append(batch.Rows, []any{
			int64(s.STW + corr),
			int32(s.Soda),
			int32(s.Year), int32(s.Mon), int32(s.Day),
			int32(s.Hour), int32(s.Min), s.Secs,
			s.Orbit,
			s.QTarget[:], s.QAchieved[:], s.QError[:], s.GPS[:],
			s.ACS,
			res.File,
			e.now(),
		})
	}
	return batch, nil
}

// stwCorrection wraps the filename epoch parse so that a stem violating the
// naming convention classifies as an unsupported file, not a fatal error.
func stwCorrection(path string) (uint64, error) {
	corr, err := level0.STWCorrection(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", level0.ErrUnsupportedFileType, err)
	}
	return corr, nil
}
