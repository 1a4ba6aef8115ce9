// Package batch orchestrates a conversion run: file discovery, exporter
// session lifetime, per-file retry, and result aggregation.
package batch

import (
	"encoding/json"
	"time"

	"github.com/hyeonkim/sheetpdf/pkg/errors"
)

// Status is the terminal state of one conversion job.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Job is one discovered input file. Rel is the source directory relative
// to its discovery root, used to mirror subdirectories into the output
// directory. A non-empty SkipReason marks a job that is recorded but
// never exported.
type Job struct {
	Source         string
	Rel            string
	ExplicitOutput string
	SkipReason     string
}

// Outcome is the immutable terminal record for one job.
type Outcome struct {
	Source     string      `json:"source"`
	Status     Status      `json:"status"`
	OutputPath string      `json:"output_path,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Kind       errors.Kind `json:"error_kind,omitempty"`
	Message    string      `json:"error,omitempty"`
	Attempts   int         `json:"attempts,omitempty"`
}

// Result aggregates a whole run. Outcomes are in discovery order; after
// a cancellation they cover only the jobs that were reached.
type Result struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	Outcomes  []Outcome     `json:"outcomes"`
}

// ToJSON renders the result for machine consumers.
func (r Result) ToJSON() string {
	data, _ := json.MarshalIndent(r, "", "  ")
	return string(data)
}

func (r *Result) record(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Status {
	case StatusSuccess:
		r.Succeeded++
	case StatusSkipped:
		r.Skipped++
	case StatusFailed:
		r.Failed++
	}
}

// Options tunes one orchestrator run.
type Options struct {
	// OutputDir receives the PDFs. Empty means each PDF lands beside its
	// source file.
	OutputDir string

	// OutputFile names the exact destination PDF. Only valid when the
	// inputs resolve to a single convertible file.
	OutputFile string

	// Recursive expands directory inputs into their subdirectories.
	Recursive bool

	// RecordUnsupported records explicit non-spreadsheet file inputs as
	// skipped outcomes instead of rejecting them.
	RecordUnsupported bool

	MaxRetries     int
	RetryDelay     time.Duration
	LockRetryDelay time.Duration
}
