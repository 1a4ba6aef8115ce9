// Package naming computes collision-free output paths for converted PDFs.
package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Resolve returns the output path for sourcePath. With an empty outputDir
// the PDF lands beside the source; otherwise it goes under outputDir,
// mirroring relDir (the source's directory relative to the discovery
// root, empty for flat discovery). The result never points at an
// existing non-empty file.
func Resolve(sourcePath, outputDir, relDir string) string {
	base := filepath.Base(sourcePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	dir := filepath.Dir(sourcePath)
	if outputDir != "" {
		dir = filepath.Join(outputDir, relDir)
	}

	return nextFree(filepath.Join(dir, stem+".pdf"))
}

// ResolveExplicit applies the collision policy to a caller-chosen output
// path, keeping whatever extension it carries.
func ResolveExplicit(path string) string {
	return nextFree(path)
}

// nextFree returns base if unoccupied, otherwise the first stem_N variant
// with the smallest unused N. Deterministic against a static filesystem.
func nextFree(base string) string {
	if !occupied(base) {
		return base
	}

	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for n := 1; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if !occupied(candidate) {
			return candidate
		}
	}
}

// occupied reports whether path holds actual content. Zero-byte leftovers
// from aborted exports may be reclaimed.
func occupied(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Size() > 0
}
