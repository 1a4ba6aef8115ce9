// Package exporter wraps the external document service that renders
// spreadsheets to PDF. It is the only package allowed to talk to that
// service; everything else sees the Service interface and the closed
// error taxonomy in pkg/errors.
package exporter

import (
	"context"
	"path/filepath"
	"strings"
)

// Service is one automation session with the external document service.
// A session is opened once per batch, used sequentially, and closed on
// every exit path. It is not safe for concurrent use.
type Service interface {
	// Open acquires the session. Fails with KindServiceUnavailable when
	// the external application cannot be started or attached to.
	Open(ctx context.Context) error

	// Export renders sourcePath to a PDF at destPath. Failures carry one
	// of the per-file error kinds.
	Export(ctx context.Context, sourcePath, destPath string) error

	// Reset recycles session state between retry attempts, the analog of
	// killing a wedged application instance.
	Reset(ctx context.Context) error

	// Close releases the session. Safe to call on an already-closed or
	// never-opened session.
	Close() error
}

// Spreadsheet extensions the engine recognizes (lowercase, leading dot).
var spreadsheetExtensions = map[string]bool{
	".xlsx": true,
	".xls":  true,
	".xlsm": true,
}

// IsSpreadsheet reports whether path has a recognized spreadsheet
// extension.
func IsSpreadsheet(path string) bool {
	return spreadsheetExtensions[strings.ToLower(filepath.Ext(path))]
}
