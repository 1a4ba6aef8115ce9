package exporter

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/richardlehane/mscfb"
	"github.com/xuri/excelize/v2"

	"github.com/hyeonkim/sheetpdf/pkg/errors"
)

// Pre-compiled patterns for classifying converter output into the error
// taxonomy. Checked in order; the first match wins.
var (
	lockedMarkers = []string{
		"is locked",
		"locked by",
		"lock file",
		"in use by another",
	}

	permissionMarkers = []string{
		"permission denied",
		"access denied",
		"access is denied",
		"read-only",
	}

	corruptMarkers = []string{
		"corrupt",
		"damaged",
		"password",
		"could not be loaded",
		"could not load",
		"unsupported file format",
		"format error",
		"no import filter",
	}
)

// classifyExport maps a failed export to an ExportError. The converter's
// combined output is matched first; when it is inconclusive the source
// file itself is probed to separate a broken source from a converter
// hiccup.
func classifyExport(sourcePath, output string) *errors.ExportError {
	lower := strings.ToLower(output)

	if containsAny(lower, lockedMarkers) || Locked(sourcePath) {
		return errors.NewWithDetails(errors.KindSourceLocked,
			"source is locked or in use", sourcePath, tail(output))
	}
	if containsAny(lower, permissionMarkers) {
		return errors.NewWithDetails(errors.KindPermissionDenied,
			"access denied during export", sourcePath, tail(output))
	}
	if containsAny(lower, corruptMarkers) {
		return errors.NewWithDetails(errors.KindSourceCorrupt,
			"source could not be read by the converter", sourcePath, tail(output))
	}
	if err := probeSource(sourcePath); err != nil {
		return errors.NewWithDetails(errors.KindSourceCorrupt,
			"source is not a readable spreadsheet", sourcePath, err.Error())
	}

	return errors.NewWithDetails(errors.KindUnknown,
		"export failed", sourcePath, tail(output))
}

// Locked reports whether a LibreOffice-style lock file sits next to the
// source, which means some application currently has it open.
func Locked(sourcePath string) bool {
	_, err := os.Stat(LockFilePath(sourcePath))
	return err == nil
}

// LockFilePath returns the lock file path LibreOffice would use for
// sourcePath (".~lock.<name>#" in the same directory).
func LockFilePath(sourcePath string) string {
	return filepath.Join(filepath.Dir(sourcePath), ".~lock."+filepath.Base(sourcePath)+"#")
}

// probeSource checks that the source is structurally a spreadsheet
// container: OOXML zip for .xlsx/.xlsm, OLE compound file for .xls.
// It opens the container only, never sheet content.
func probeSource(sourcePath string) error {
	switch strings.ToLower(filepath.Ext(sourcePath)) {
	case ".xlsx", ".xlsm":
		f, err := excelize.OpenFile(sourcePath)
		if err != nil {
			return err
		}
		return f.Close()
	case ".xls":
		f, err := os.Open(sourcePath)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = mscfb.New(f)
		return err
	}
	return nil
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// tail returns the last few lines of converter output, enough for a
// diagnostic without dumping pages of noise.
func tail(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.Join(lines, "\n")
}
