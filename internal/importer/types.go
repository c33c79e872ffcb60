// Package importer turns one Level-0 telemetry or attitude file into row
// batches and merges them into the relational store. It is the core of the
// import service; trigger plumbing and credential bootstrap live outside.
package importer

import (
	"context"
	"time"
)

// Table describes one permanent Level-0 table and the dedup key that
// identifies "the same physical sample" within it.
type Table struct {
	Name       string
	Columns    []string
	KeyColumns []string
}

// The Level-0 tables fed by the import path.
var (
	TableAC = Table{
		Name: "ac_level0",
		Columns: []string{
			"stw", "backend", "frontend", "sig_type", "ssb_att", "ssb_fq",
			"prescaler", "inttime", "mode", "acd_mon", "cc", "file", "created",
		},
		KeyColumns: []string{"stw", "backend"},
	}
	TableFBA = Table{
		Name:       "fba_level0",
		Columns:    []string{"stw", "mech_type", "file", "created"},
		KeyColumns: []string{"stw"},
	}
	TableSHK = Table{
		Name:       "shk_level0",
		Columns:    []string{"stw", "shk_type", "shk_value", "file", "created"},
		KeyColumns: []string{"stw", "shk_type"},
	}
	TableAttitude = Table{
		Name: "attitude_level0",
		Columns: []string{
			"stw", "soda", "year", "mon", "day", "hour", "min", "secs",
			"orbit", "qt", "qa", "qe", "gps", "acs", "file", "created",
		},
		KeyColumns: []string{"stw"},
	}
)

// RowBatch is one staged set of rows bound for a table.
type RowBatch struct {
	Table Table
	Rows  [][]any
}

// MergeStats reports what one merge call did.
type MergeStats struct {
	Staged     int // rows accepted into staging
	Conflicts  int // rows rejected by store constraints and skipped
	DupDropped int // staged rows dropped by last-write-wins dedup
	Deleted    int // permanent rows replaced
	Inserted   int // rows inserted into the permanent table
}

// MergeStore stages a row batch, deduplicates it and atomically replaces
// matching permanent rows. Implementations run one transaction per call;
// a merge is all rows or none.
type MergeStore interface {
	Merge(ctx context.Context, batch RowBatch) (MergeStats, error)
}

// Result is the outcome of one import call. Imported is false both for
// unrecognized file types and for files whose merge failed; Reason says
// which.
type Result struct {
	Imported bool   `json:"imported"`
	Type     string `json:"type"`
	Reason   string `json:"reason,omitempty"`

	JobID    string        `json:"jobId,omitempty"`
	File     string        `json:"file,omitempty"`
	Records  int           `json:"records"`
	Rows     int           `json:"rows"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`

	// SkipReasons counts per-record conversion and filter skips; decode
	// level issues never fail an import.
	SkipReasons map[string]int `json:"skipReasons,omitempty"`
}
