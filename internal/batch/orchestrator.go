package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lthibault/jitterbug/v2"

	"github.com/hyeonkim/sheetpdf/internal/exporter"
	"github.com/hyeonkim/sheetpdf/internal/naming"
	"github.com/hyeonkim/sheetpdf/internal/progress"
	"github.com/hyeonkim/sheetpdf/internal/retry"
	"github.com/hyeonkim/sheetpdf/internal/staging"
	"github.com/hyeonkim/sheetpdf/pkg/errors"
)

// Orchestrator runs one batch against one exporter session. It owns the
// session for the duration of Run and is not safe for concurrent runs.
type Orchestrator struct {
	svc  exporter.Service
	sink progress.Sink
	opts Options
}

// New assembles an orchestrator. A nil sink discards progress events.
func New(svc exporter.Service, sink progress.Sink, opts Options) *Orchestrator {
	if sink == nil {
		sink = progress.Discard{}
	}
	return &Orchestrator{svc: svc, sink: sink, opts: opts}
}

// Run discovers the inputs and converts them sequentially. Per-file
// failures are recorded in the Result and never abort the batch; the
// returned error is reserved for setup failures (nothing to convert,
// unwritable output root, external service unavailable). The exporter
// session is released on every exit path.
func (o *Orchestrator) Run(ctx context.Context, inputs []string) (Result, error) {
	start := time.Now()

	jobs, err := Discover(inputs, o.opts)
	if err != nil {
		return Result{}, err
	}
	if countConvertible(jobs) == 0 {
		return Result{}, fmt.Errorf("no spreadsheet files found in %v", inputs)
	}
	if o.opts.OutputFile != "" {
		if len(jobs) != 1 || jobs[0].SkipReason != "" {
			return Result{}, fmt.Errorf("an explicit output file needs exactly one spreadsheet input, got %d", len(jobs))
		}
		jobs[0].ExplicitOutput = o.opts.OutputFile
		if err := ensureWritableDir(filepath.Dir(o.opts.OutputFile)); err != nil {
			return Result{}, err
		}
	}

	if o.opts.OutputDir != "" {
		if err := ensureWritableDir(o.opts.OutputDir); err != nil {
			return Result{}, err
		}
	}

	if err := o.svc.Open(ctx); err != nil {
		return Result{}, err
	}
	defer o.svc.Close()

	result := Result{Total: len(jobs)}
	o.emit(progress.LevelInfo, fmt.Sprintf("Found %d spreadsheet files", countConvertible(jobs)), 0, 0)

	for i, job := range jobs {
		if ctx.Err() != nil {
			o.emit(progress.LevelWarning, "Cancelled, stopping before next file", 0, 0)
			break
		}

		if job.SkipReason != "" {
			o.emit(progress.LevelWarning,
				fmt.Sprintf("Skipping %s: %s", filepath.Base(job.Source), job.SkipReason),
				i+1, len(jobs))
			result.record(Outcome{Source: job.Source, Status: StatusSkipped, Reason: job.SkipReason})
			continue
		}

		result.record(o.processJob(ctx, i+1, len(jobs), job))
	}

	result.Elapsed = time.Since(start)
	o.emit(progress.LevelInfo,
		fmt.Sprintf("Done: %d converted, %d failed, %d skipped",
			result.Succeeded, result.Failed, result.Skipped), 0, 0)

	return result, nil
}

// processJob converts one file: stage hostile names, resolve the output
// path, export with retry, record the terminal outcome.
func (o *Orchestrator) processJob(ctx context.Context, index, total int, job Job) Outcome {
	name := filepath.Base(job.Source)
	o.emit(progress.LevelInfo, fmt.Sprintf("[%d/%d] %s", index, total, name), index, total)

	exportSrc := job.Source
	if staging.NeedsStaging(job.Source) {
		staged, err := staging.Stage(job.Source)
		if err != nil {
			// Staging is an optimization for hostile names; fall back to
			// the original path and let the exporter have a go at it.
			o.emit(progress.LevelWarning,
				fmt.Sprintf("Could not stage %s: %v", name, err), index, total)
		} else {
			defer staging.Cleanup(staged)
			exportSrc = staged
		}
	}

	var dst string
	if job.ExplicitOutput != "" {
		dst = naming.ResolveExplicit(job.ExplicitOutput)
	} else {
		dst = naming.Resolve(job.Source, o.opts.OutputDir, job.Rel)
	}

	policy := retry.Policy{
		MaxRetries: o.opts.MaxRetries,
		Delay:      o.opts.RetryDelay,
		LockDelay:  o.opts.LockRetryDelay,
		Jitter: func(d time.Duration) jitterbug.Jitter {
			return &jitterbug.Norm{Stdev: d / 10}
		},
	}

	onRetry := func(kind errors.Kind, attempt int) {
		o.emit(progress.LevelWarning,
			fmt.Sprintf("Attempt %d for %s failed (%s), retrying", attempt, name, kind),
			index, total)
		if kind == errors.KindTimeout {
			// A timed-out conversion can leave the service wedged; give
			// the next attempt a clean session.
			if err := o.svc.Reset(ctx); err != nil {
				o.emit(progress.LevelWarning,
					fmt.Sprintf("Session reset failed: %v", err), index, total)
			}
		}
	}

	attempts, err := retry.Do(ctx, policy, func(ctx context.Context) error {
		if mkErr := os.MkdirAll(filepath.Dir(dst), 0o755); mkErr != nil {
			return errors.NewWithDetails(errors.KindPermissionDenied,
				"cannot create output directory", filepath.Dir(dst), mkErr.Error())
		}
		return o.svc.Export(ctx, exportSrc, dst)
	}, onRetry)

	if err != nil {
		removeEmpty(dst)
		o.emit(progress.LevelError,
			fmt.Sprintf("Failed to convert %s: %v", name, err), index, total)
		return Outcome{
			Source:   job.Source,
			Status:   StatusFailed,
			Kind:     errors.KindOf(err),
			Message:  err.Error(),
			Attempts: attempts,
		}
	}

	o.emit(progress.LevelSuccess,
		fmt.Sprintf("Converted %s -> %s", name, filepath.Base(dst)), index, total)
	return Outcome{
		Source:     job.Source,
		Status:     StatusSuccess,
		OutputPath: dst,
		Attempts:   attempts,
	}
}

func (o *Orchestrator) emit(level progress.Level, message string, index, total int) {
	o.sink.Publish(progress.Event{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Index:   index,
		Total:   total,
	})
}

func countConvertible(jobs []Job) int {
	n := 0
	for _, j := range jobs {
		if j.SkipReason == "" {
			n++
		}
	}
	return n
}

// ensureWritableDir creates dir if needed and proves it accepts writes
// before the batch commits to it.
func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewWithDetails(errors.KindPermissionDenied,
			"cannot create output directory", dir, err.Error())
	}
	probe, err := os.CreateTemp(dir, ".sheetpdf-probe-*")
	if err != nil {
		return errors.NewWithDetails(errors.KindPermissionDenied,
			"output directory is not writable", dir, err.Error())
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}

// removeEmpty clears a zero-byte leftover at path so a later run can
// claim the name again.
func removeEmpty(path string) {
	fi, err := os.Stat(path)
	if err == nil && fi.Size() == 0 {
		os.Remove(path)
	}
}
