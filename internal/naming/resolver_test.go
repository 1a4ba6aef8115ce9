package naming

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/signintech/gopdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writePDF drops a real, non-empty PDF at path.
func writePDF(t *testing.T, path string) {
	t.Helper()
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	pdf.AddPage()
	require.NoError(t, pdf.WritePdf(path))
}

func TestResolve_BesideSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "report.xlsx")

	got := Resolve(src, "", "")
	assert.Equal(t, filepath.Join(dir, "report.pdf"), got)
}

func TestResolve_IntoOutputDir(t *testing.T) {
	out := t.TempDir()
	got := Resolve("/data/in/report.xlsm", out, "")
	assert.Equal(t, filepath.Join(out, "report.pdf"), got)
}

func TestResolve_MirrorsRelativeSubdir(t *testing.T) {
	out := t.TempDir()
	got := Resolve("/data/in/2024/q3/report.xls", out, filepath.Join("2024", "q3"))
	assert.Equal(t, filepath.Join(out, "2024", "q3", "report.pdf"), got)
}

func TestResolve_AppendsCounterOnCollision(t *testing.T) {
	out := t.TempDir()
	writePDF(t, filepath.Join(out, "report.pdf"))

	got := Resolve("/data/in/report.xlsx", out, "")
	assert.Equal(t, filepath.Join(out, "report_1.pdf"), got)

	writePDF(t, filepath.Join(out, "report_1.pdf"))
	got = Resolve("/data/in/report.xlsx", out, "")
	assert.Equal(t, filepath.Join(out, "report_2.pdf"), got)
}

func TestResolve_PicksSmallestUnusedCounter(t *testing.T) {
	out := t.TempDir()
	writePDF(t, filepath.Join(out, "report.pdf"))
	writePDF(t, filepath.Join(out, "report_2.pdf"))

	got := Resolve("/data/in/report.xlsx", out, "")
	assert.Equal(t, filepath.Join(out, "report_1.pdf"), got)
}

func TestResolve_IdempotentOnStaticFilesystem(t *testing.T) {
	out := t.TempDir()
	writePDF(t, filepath.Join(out, "report.pdf"))

	first := Resolve("/data/in/report.xlsx", out, "")
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Resolve("/data/in/report.xlsx", out, ""))
	}
}

func TestResolve_ZeroByteFileIsNotACollision(t *testing.T) {
	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "report.pdf"), nil, 0o644))

	got := Resolve("/data/in/report.xlsx", out, "")
	assert.Equal(t, filepath.Join(out, "report.pdf"), got)
}

func TestResolveExplicit(t *testing.T) {
	out := t.TempDir()
	target := filepath.Join(out, "final.pdf")

	assert.Equal(t, target, ResolveExplicit(target))

	writePDF(t, target)
	assert.Equal(t, filepath.Join(out, "final_1.pdf"), ResolveExplicit(target))
}
