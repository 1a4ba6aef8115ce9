// Package staging isolates automation-hostile source paths. Files whose
// names the external converter tends to mangle (non-ASCII characters,
// URL-escape residue) are copied to a neutrally named temp location
// before export and removed afterwards.
package staging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/hyeonkim/sheetpdf/pkg/errors"
)

// NeedsStaging reports whether path should be copied to a neutral name
// before being handed to the external converter.
func NeedsStaging(path string) bool {
	for _, r := range path {
		if r > unicode.MaxASCII {
			return true
		}
	}
	// URL-escape residue like %20 confuses some converter builds.
	return strings.Contains(filepath.Base(path), "%")
}

// Stage copies sourcePath into the system temp directory under a neutral
// name, preserving only the extension. The caller owns the copy and must
// Cleanup it.
func Stage(sourcePath string) (string, error) {
	src, err := os.Open(sourcePath)
	if err != nil {
		return "", errors.Wrap(err, errors.KindUnknown, "cannot open source for staging")
	}
	defer src.Close()

	name := "sheetpdf-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8] + filepath.Ext(sourcePath)
	stagedPath := filepath.Join(os.TempDir(), name)

	dst, err := os.Create(stagedPath)
	if err != nil {
		return "", errors.Wrap(err, errors.KindUnknown, "cannot create staging copy")
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(stagedPath)
		return "", errors.Wrap(err, errors.KindUnknown, "cannot write staging copy")
	}
	if err := dst.Close(); err != nil {
		os.Remove(stagedPath)
		return "", errors.Wrap(err, errors.KindUnknown, "cannot finish staging copy")
	}

	return stagedPath, nil
}

// Cleanup removes a staged copy. Best-effort: a copy that is already gone
// is not an error.
func Cleanup(stagedPath string) {
	if stagedPath == "" {
		return
	}
	_ = os.Remove(stagedPath)
}
