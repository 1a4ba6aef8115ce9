// Command sheetpdf batch-converts spreadsheet files to PDF by driving a
// headless LibreOffice session. Exit status is zero only when every
// discovered file converted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyeonkim/sheetpdf/internal/batch"
	"github.com/hyeonkim/sheetpdf/internal/config"
	"github.com/hyeonkim/sheetpdf/internal/exporter"
	"github.com/hyeonkim/sheetpdf/internal/progress"
	"github.com/hyeonkim/sheetpdf/pkg/errors"
	"github.com/hyeonkim/sheetpdf/pkg/log"
)

// Set at build time via -ldflags.
var (
	version = "1.0.0"
	commit  = "unknown"
)

type options struct {
	output      string
	recursive   bool
	retries     int
	verbose     bool
	soffice     string
	timeout     time.Duration
	showSkipped bool
	jsonOut     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:          "sheetpdf [flags] <file-or-directory>...",
		Short:        "Batch-convert spreadsheets (.xlsx/.xls/.xlsm) to PDF",
		Long: `sheetpdf converts spreadsheet files to PDF through a headless
LibreOffice session. Directories are expanded (recursively with -r),
output names never overwrite existing files, and transient per-file
failures are retried without aborting the batch.`,
		Version:      fmt.Sprintf("%s (commit %s)", version, commit),
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, o, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.output, "output", "o", "",
		"output directory, or an explicit .pdf path for a single input file")
	flags.BoolVarP(&o.recursive, "recursive", "r", false,
		"descend into subdirectories of directory inputs")
	flags.IntVar(&o.retries, "retries", 3, "retries per file for transient failures")
	flags.BoolVarP(&o.verbose, "verbose", "v", false,
		"debug logging plus remediation hints for failures")
	flags.StringVar(&o.soffice, "soffice", "",
		"path to the soffice binary (default: autodetect)")
	flags.DurationVar(&o.timeout, "timeout", 2*time.Minute, "per-file export timeout")
	flags.BoolVar(&o.showSkipped, "show-skipped", false,
		"record unsupported files found in directories as skipped outcomes")
	flags.BoolVar(&o.jsonOut, "json", false, "print the batch result as JSON")

	return cmd
}

func run(cmd *cobra.Command, o *options, args []string) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}

	// Flags override environment config only when set explicitly.
	if o.soffice != "" {
		cfg.Soffice = o.soffice
	}
	if cmd.Flags().Changed("retries") {
		cfg.MaxRetries = o.retries
	}
	if cmd.Flags().Changed("timeout") {
		cfg.ExportTimeout = o.timeout
	}
	if o.verbose {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := log.InitLog(cfg.LogLevel)
	defer logger.Sync()

	// SIGINT/SIGTERM stop the batch between files; the in-flight export
	// is allowed to finish or time out.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := batch.Options{
		Recursive:         o.recursive,
		RecordUnsupported: o.showSkipped,
		MaxRetries:        cfg.MaxRetries,
		RetryDelay:        cfg.RetryDelay,
		LockRetryDelay:    cfg.LockRetryDelay,
	}
	if o.output != "" {
		if strings.EqualFold(filepath.Ext(o.output), ".pdf") {
			opts.OutputFile = o.output
		} else {
			opts.OutputDir = o.output
		}
	}

	svc := exporter.NewLibreOffice(cfg.Soffice, cfg.ExportTimeout)
	orch := batch.New(svc, progress.NewConsole(logger), opts)

	result, err := orch.Run(ctx, args)
	if err != nil {
		logger.Error("Batch aborted", zap.Error(err))
		if o.verbose {
			if hint := errors.Hint(errors.KindOf(err)); hint != "" {
				logger.Info("Hint: " + hint)
			}
		}
		return err
	}

	if o.jsonOut {
		fmt.Fprintln(cmd.OutOrStdout(), result.ToJSON())
	}

	if result.Failed > 0 {
		if o.verbose {
			printHints(logger, result)
		}
		return fmt.Errorf("%d of %d files failed", result.Failed, result.Total)
	}
	return nil
}

// printHints logs one remediation hint per distinct failure kind.
func printHints(logger *zap.Logger, result batch.Result) {
	seen := map[errors.Kind]bool{}
	for _, outcome := range result.Outcomes {
		if outcome.Status != batch.StatusFailed || seen[outcome.Kind] {
			continue
		}
		seen[outcome.Kind] = true
		if hint := errors.Hint(outcome.Kind); hint != "" {
			logger.Info("Hint: "+hint, zap.String("kind", string(outcome.Kind)))
		}
	}
}
