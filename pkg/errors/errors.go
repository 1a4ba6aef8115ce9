package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
)

// Kind classifies conversion failures. The set is closed: retry policy
// and CLI hint rendering both switch over it exhaustively.
type Kind string

const (
	// KindServiceUnavailable means the external document service could not
	// be started or attached to. Fatal for the whole batch.
	KindServiceUnavailable Kind = "SERVICE_UNAVAILABLE"

	// KindSourceLocked means the source file is open elsewhere or held by
	// a stale lock file.
	KindSourceLocked Kind = "SOURCE_LOCKED"

	// KindSourceCorrupt means the source cannot be read or is not a valid
	// spreadsheet container.
	KindSourceCorrupt Kind = "SOURCE_CORRUPT"

	// KindPermissionDenied means the destination is not writable.
	KindPermissionDenied Kind = "PERMISSION_DENIED"

	// KindTimeout means the export did not finish within the deadline.
	KindTimeout Kind = "TIMEOUT"

	// KindUnknown covers everything else, including exports that ran to
	// completion but produced no usable PDF.
	KindUnknown Kind = "UNKNOWN"
)

// ExportError is a structured conversion error with a machine-readable
// kind and optional file/detail context.
type ExportError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Details string `json:"details,omitempty"`
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// ToJSON returns the error as a JSON string for machine consumers.
func (e *ExportError) ToJSON() string {
	data, _ := json.Marshal(e)
	return string(data)
}

// New creates a new ExportError.
func New(kind Kind, message string) *ExportError {
	return &ExportError{
		Kind:    kind,
		Message: message,
	}
}

// NewWithFile creates an error with file context.
func NewWithFile(kind Kind, message, file string) *ExportError {
	return &ExportError{
		Kind:    kind,
		Message: message,
		File:    file,
	}
}

// NewWithDetails creates an error with file context and additional details.
func NewWithDetails(kind Kind, message, file, details string) *ExportError {
	return &ExportError{
		Kind:    kind,
		Message: message,
		File:    file,
		Details: details,
	}
}

// Wrap wraps an existing error with a kind and message, keeping the
// original text as details.
func Wrap(err error, kind Kind, message string) *ExportError {
	return &ExportError{
		Kind:    kind,
		Message: message,
		Details: err.Error(),
	}
}

// KindOf extracts the Kind from err. Errors that are not ExportErrors
// report KindUnknown.
func KindOf(err error) Kind {
	var ee *ExportError
	if stderrors.As(err, &ee) {
		return ee.Kind
	}
	return KindUnknown
}

// Hint returns remediation guidance for a failure kind, suitable for
// showing next to the error message.
func Hint(kind Kind) string {
	switch kind {
	case KindServiceUnavailable:
		return "Make sure LibreOffice is installed, or point --soffice at the binary"
	case KindSourceLocked:
		return "Close other applications that have the file open, or remove the stale .~lock file"
	case KindSourceCorrupt:
		return "The file may be damaged or password-protected; try opening it manually"
	case KindPermissionDenied:
		return "Check write permissions on the output directory"
	case KindTimeout:
		return "Large workbooks can take a while; raise --timeout and try again"
	case KindUnknown:
		return "Re-run with --verbose for the full converter output"
	}
	return ""
}
