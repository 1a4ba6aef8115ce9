package exporter

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyeonkim/sheetpdf/pkg/errors"
)

// libreOfficeCandidates are probed in order when no binary is configured.
var libreOfficeCandidates = []string{
	"/usr/bin/libreoffice",
	"/usr/bin/soffice",
	"/usr/local/bin/soffice",
	"/opt/libreoffice/program/soffice",
	"/Applications/LibreOffice.app/Contents/MacOS/soffice",
	"C:\\Program Files\\LibreOffice\\program\\soffice.exe",
	"C:\\Program Files (x86)\\LibreOffice\\program\\soffice.exe",
}

// LibreOffice drives a headless LibreOffice instance through its
// command-line conversion interface. One LibreOffice value is one
// automation session: Open creates a scratch user profile that every
// Export reuses, Close tears it down.
type LibreOffice struct {
	binary     string
	timeout    time.Duration
	profileDir string
	opened     bool
}

// NewLibreOffice creates an unopened session. An empty binary means
// autodetect at Open time. timeout caps each individual export; zero
// means no cap.
func NewLibreOffice(binary string, timeout time.Duration) *LibreOffice {
	return &LibreOffice{
		binary:  binary,
		timeout: timeout,
	}
}

// Open locates the binary, verifies it starts, and creates the session's
// scratch profile directory.
func (s *LibreOffice) Open(ctx context.Context) error {
	if s.opened {
		return nil
	}

	if s.binary == "" {
		s.binary = detectBinary()
	}
	if s.binary == "" {
		return errors.New(errors.KindServiceUnavailable,
			"LibreOffice not found; install it or set the binary path explicitly")
	}

	profileDir, err := os.MkdirTemp("", "sheetpdf-profile-*")
	if err != nil {
		return errors.Wrap(err, errors.KindServiceUnavailable, "cannot create session profile directory")
	}

	// A --version probe catches both a missing binary and one that cannot
	// start headless on this host.
	cmd := exec.CommandContext(ctx, s.binary, "--headless", "--version")
	if out, err := cmd.CombinedOutput(); err != nil {
		os.RemoveAll(profileDir)
		return errors.NewWithDetails(errors.KindServiceUnavailable,
			"LibreOffice failed to start", s.binary, strings.TrimSpace(string(out)))
	}

	s.profileDir = profileDir
	s.opened = true
	return nil
}

// Export renders sourcePath to destPath. The PDF is generated in a
// per-call scratch directory and then moved into place, so a failed
// export never leaves a partial file at destPath.
func (s *LibreOffice) Export(ctx context.Context, sourcePath, destPath string) error {
	if !s.opened {
		return errors.New(errors.KindServiceUnavailable, "export called on a closed session")
	}

	if Locked(sourcePath) {
		return errors.NewWithFile(errors.KindSourceLocked,
			"source is locked by another application", sourcePath)
	}

	outDir, err := os.MkdirTemp("", "sheetpdf-out-*")
	if err != nil {
		return errors.Wrap(err, errors.KindUnknown, "cannot create conversion scratch directory")
	}
	defer os.RemoveAll(outDir)

	// A conversion in flight must be allowed to finish or time out;
	// killing soffice mid-export can corrupt its profile state. Caller
	// cancellation therefore only takes effect between exports.
	runCtx := context.WithoutCancel(ctx)
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, s.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, s.binary,
		"-env:UserInstallation=file://"+s.profileDir,
		"--headless",
		"--convert-to", "pdf",
		"--outdir", outDir,
		sourcePath,
	)
	output, runErr := cmd.CombinedOutput()

	if runCtx.Err() == context.DeadlineExceeded {
		return errors.NewWithFile(errors.KindTimeout, "export timed out", sourcePath)
	}
	if runErr != nil {
		return classifyExport(sourcePath, string(output))
	}

	generated := findPDF(outDir)
	if generated == "" {
		// soffice reports success for some unreadable inputs and simply
		// produces nothing; classify from the source instead.
		return classifyExport(sourcePath, string(output))
	}

	fi, err := os.Stat(generated)
	if err != nil || fi.Size() == 0 {
		return errors.NewWithFile(errors.KindUnknown, "converter produced an empty PDF", sourcePath)
	}

	return moveFile(generated, destPath)
}

// Reset recycles the scratch profile, clearing whatever state a wedged
// conversion left behind.
func (s *LibreOffice) Reset(ctx context.Context) error {
	if !s.opened {
		return nil
	}
	os.RemoveAll(s.profileDir)
	profileDir, err := os.MkdirTemp("", "sheetpdf-profile-*")
	if err != nil {
		return errors.Wrap(err, errors.KindUnknown, "cannot recreate session profile directory")
	}
	s.profileDir = profileDir
	return nil
}

// Close tears the session down. Calling it twice, or on a session that
// never opened, is harmless.
func (s *LibreOffice) Close() error {
	if s.profileDir != "" {
		os.RemoveAll(s.profileDir)
		s.profileDir = ""
	}
	s.opened = false
	return nil
}

func detectBinary() string {
	for _, name := range []string{"soffice", "libreoffice"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	for _, path := range libreOfficeCandidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// findPDF returns the first PDF in dir, empty string when there is none.
func findPDF(dir string) string {
	files, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, f := range files {
		if !f.IsDir() && strings.EqualFold(filepath.Ext(f.Name()), ".pdf") {
			return filepath.Join(dir, f.Name())
		}
	}
	return ""
}

// moveFile renames src to dst, falling back to copy for cross-device
// destinations.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return errors.Wrap(err, errors.KindUnknown, "cannot read generated PDF")
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		if os.IsPermission(err) {
			return errors.NewWithDetails(errors.KindPermissionDenied,
				"destination is not writable", dst, err.Error())
		}
		return errors.Wrap(err, errors.KindUnknown, "cannot write PDF to destination")
	}
	return nil
}
