package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/signintech/gopdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hyeonkim/sheetpdf/internal/progress"
	"github.com/hyeonkim/sheetpdf/internal/staging"
	"github.com/hyeonkim/sheetpdf/pkg/errors"
)

// fakeService is a scriptable exporter session. failures maps a source
// basename to the error each successive attempt gets; once the script is
// exhausted the export succeeds and writes a stub PDF at dst.
type fakeService struct {
	openErr  error
	failAll  error // when set, every export fails with it
	failures map[string][]error

	opens   int
	closes  int
	resets  int
	calls   map[string]int
	sources []string // every src path Export received, in order
	onDone  func()   // called after each completed export
}

func (f *fakeService) Open(ctx context.Context) error {
	f.opens++
	return f.openErr
}

func (f *fakeService) Export(ctx context.Context, src, dst string) error {
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	base := filepath.Base(src)
	n := f.calls[base]
	f.calls[base]++
	f.sources = append(f.sources, src)

	if f.failAll != nil {
		return f.failAll
	}
	if script := f.failures[base]; n < len(script) && script[n] != nil {
		return script[n]
	}

	if err := os.WriteFile(dst, []byte("%PDF-1.4 stub"), 0o644); err != nil {
		return err
	}
	if f.onDone != nil {
		f.onDone()
	}
	return nil
}

func (f *fakeService) Reset(ctx context.Context) error {
	f.resets++
	return nil
}

func (f *fakeService) Close() error {
	f.closes++
	return nil
}

func fastOptions() Options {
	return Options{
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
		LockRetryDelay: time.Millisecond,
	}
}

func lockedErr() error {
	return errors.New(errors.KindSourceLocked, "file is in use")
}

// writeExistingPDF drops a real PDF where a collision should occur.
func writeExistingPDF(t *testing.T, path string) {
	t.Helper()
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()
	require.NoError(t, pdf.WritePdf(path))
}

// writeWorkbook creates a real .xlsx so discovery sees a genuine file.
func writeWorkbook(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", 42))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())
}

func TestRun_LockedFileDoesNotStopBatch(t *testing.T) {
	in := t.TempDir()
	touch(t, in, "a.xlsx")
	touch(t, in, "b.xlsx")
	touch(t, in, "c.xlsx")

	svc := &fakeService{failures: map[string][]error{
		"b.xlsx": {lockedErr(), lockedErr(), lockedErr(), lockedErr()},
	}}
	var sink progress.Memory

	res, err := New(svc, &sink, fastOptions()).Run(context.Background(), []string{in})
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 3)
	assert.Equal(t, StatusSuccess, res.Outcomes[0].Status)

	assert.Equal(t, StatusFailed, res.Outcomes[1].Status)
	assert.Equal(t, errors.KindSourceLocked, res.Outcomes[1].Kind)
	assert.Equal(t, 3, res.Outcomes[1].Attempts) // first try + MaxRetries

	assert.Equal(t, StatusSuccess, res.Outcomes[2].Status)

	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, svc.opens)
	assert.Equal(t, 1, svc.closes)

	// Retry activity must surface as warning events.
	warnings := 0
	for _, e := range sink.Events() {
		if e.Level == progress.LevelWarning {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestRun_OpenFailureIsFatal(t *testing.T) {
	in := t.TempDir()
	touch(t, in, "a.xlsx")
	out := t.TempDir()

	svc := &fakeService{openErr: errors.New(errors.KindServiceUnavailable, "soffice not found")}
	opts := fastOptions()
	opts.OutputDir = out

	res, err := New(svc, nil, opts).Run(context.Background(), []string{in})
	require.Error(t, err)
	assert.Equal(t, errors.KindServiceUnavailable, errors.KindOf(err))
	assert.Empty(t, res.Outcomes)
	assert.Empty(t, svc.calls)

	// No output files may appear.
	entries, readErr := os.ReadDir(out)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestRun_CollisionGetsCounterSuffix(t *testing.T) {
	in := t.TempDir()
	writeWorkbook(t, filepath.Join(in, "report.xlsx"))
	out := t.TempDir()
	writeExistingPDF(t, filepath.Join(out, "report.pdf"))

	opts := fastOptions()
	opts.OutputDir = out

	res, err := New(&fakeService{}, nil, opts).Run(context.Background(), []string{in})
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, filepath.Join(out, "report_1.pdf"), res.Outcomes[0].OutputPath)
	assert.FileExists(t, filepath.Join(out, "report_1.pdf"))
}

func TestRun_SameStemNeverSharesOutputPath(t *testing.T) {
	in1 := t.TempDir()
	in2 := t.TempDir()
	touch(t, in1, "report.xlsx")
	touch(t, in2, "report.xlsx")
	out := t.TempDir()

	opts := fastOptions()
	opts.OutputDir = out

	res, err := New(&fakeService{}, nil, opts).Run(context.Background(), []string{in1, in2})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 2)

	assert.Equal(t, 2, res.Succeeded)
	assert.NotEqual(t, res.Outcomes[0].OutputPath, res.Outcomes[1].OutputPath)
}

func TestRun_CancellationStopsBetweenJobs(t *testing.T) {
	in := t.TempDir()
	touch(t, in, "a.xlsx")
	touch(t, in, "b.xlsx")
	touch(t, in, "c.xlsx")

	ctx, cancel := context.WithCancel(context.Background())
	svc := &fakeService{}
	svc.onDone = cancel // cancel right after the first export lands

	res, err := New(svc, nil, fastOptions()).Run(ctx, []string{in})
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, StatusSuccess, res.Outcomes[0].Status)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, svc.opens)
	assert.Equal(t, 1, svc.closes)
}

func TestRun_SkippedExplicitInputIsRecorded(t *testing.T) {
	dir := t.TempDir()
	sheet := touch(t, dir, "report.xlsx")
	text := touch(t, dir, "notes.txt")

	res, err := New(&fakeService{}, nil, fastOptions()).Run(context.Background(), []string{sheet, text})
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, StatusSuccess, res.Outcomes[0].Status)
	assert.Equal(t, StatusSkipped, res.Outcomes[1].Status)
	assert.Equal(t, "unsupported extension", res.Outcomes[1].Reason)
	assert.Equal(t, 1, res.Skipped)
}

func TestRun_NoSpreadsheetsIsSetupError(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "notes.txt")

	_, err := New(&fakeService{}, nil, fastOptions()).Run(context.Background(), []string{dir})
	assert.Error(t, err)
}

func TestRun_TimeoutTriggersSessionReset(t *testing.T) {
	in := t.TempDir()
	touch(t, in, "slow.xlsx")

	svc := &fakeService{failures: map[string][]error{
		"slow.xlsx": {errors.New(errors.KindTimeout, "export timed out")},
	}}

	res, err := New(svc, nil, fastOptions()).Run(context.Background(), []string{in})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, svc.resets)
	assert.Equal(t, 2, res.Outcomes[0].Attempts)
}

func TestRun_ExplicitOutputFile(t *testing.T) {
	dir := t.TempDir()
	sheet := touch(t, dir, "report.xlsx")
	target := filepath.Join(t.TempDir(), "final.pdf")

	opts := fastOptions()
	opts.OutputFile = target

	res, err := New(&fakeService{}, nil, opts).Run(context.Background(), []string{sheet})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, target, res.Outcomes[0].OutputPath)
	assert.FileExists(t, target)
}

func TestRun_ExplicitOutputFileNeedsSingleInput(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, dir, "a.xlsx")
	b := touch(t, dir, "b.xlsx")

	opts := fastOptions()
	opts.OutputFile = filepath.Join(t.TempDir(), "final.pdf")

	_, err := New(&fakeService{}, nil, opts).Run(context.Background(), []string{a, b})
	assert.Error(t, err)
}

func TestRun_HostileNameIsStagedAndMappedBack(t *testing.T) {
	in := t.TempDir()
	src := filepath.Join(in, "보고서.xlsx")
	require.NoError(t, os.WriteFile(src, []byte("stub"), 0o644))
	out := t.TempDir()

	svc := &fakeService{}
	opts := fastOptions()
	opts.OutputDir = out

	res, err := New(svc, nil, opts).Run(context.Background(), []string{in})
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, StatusSuccess, res.Outcomes[0].Status)

	// The exporter must see a neutral temp copy, never the hostile name.
	require.Len(t, svc.sources, 1)
	staged := svc.sources[0]
	assert.NotEqual(t, src, staged)
	assert.False(t, staging.NeedsStaging(staged))

	// The output keeps the original stem, and the copy is cleaned up.
	assert.Equal(t, filepath.Join(out, "보고서.pdf"), res.Outcomes[0].OutputPath)
	assert.FileExists(t, res.Outcomes[0].OutputPath)
	assert.NoFileExists(t, staged)
}

func TestRun_StagedCopyCleanedUpOnFailure(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "보고서.xlsx"), []byte("stub"), 0o644))

	svc := &fakeService{failAll: errors.New(errors.KindSourceCorrupt, "cannot read file")}
	res, err := New(svc, nil, fastOptions()).Run(context.Background(), []string{in})
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, StatusFailed, res.Outcomes[0].Status)
	require.Len(t, svc.sources, 1)
	assert.NoFileExists(t, svc.sources[0])
}

func TestRun_ExplicitOutputFileUnwritableParentIsFatal(t *testing.T) {
	dir := t.TempDir()
	sheet := touch(t, dir, "report.xlsx")
	blocker := touch(t, dir, "blocker") // plain file where a directory is needed

	opts := fastOptions()
	opts.OutputFile = filepath.Join(blocker, "final.pdf")

	svc := &fakeService{}
	res, err := New(svc, nil, opts).Run(context.Background(), []string{sheet})
	require.Error(t, err)
	assert.Equal(t, errors.KindPermissionDenied, errors.KindOf(err))
	assert.Empty(t, res.Outcomes)
	assert.Zero(t, svc.opens)
}

func TestRun_EventStreamShape(t *testing.T) {
	in := t.TempDir()
	touch(t, in, "a.xlsx")
	touch(t, in, "b.xlsx")

	var sink progress.Memory
	_, err := New(&fakeService{}, &sink, fastOptions()).Run(context.Background(), []string{in})
	require.NoError(t, err)

	events := sink.Events()
	require.NotEmpty(t, events)

	// Head announces the batch, tail summarizes it; each job contributes
	// a start event and a terminal event in between.
	assert.Contains(t, events[0].Message, "Found 2 spreadsheet files")
	assert.Contains(t, events[len(events)-1].Message, "Done: 2 converted, 0 failed, 0 skipped")

	successes := 0
	for _, e := range events {
		if e.Level == progress.LevelSuccess {
			successes++
		}
	}
	assert.Equal(t, 2, successes)
}
