package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/hyeonkim/sheetpdf/internal/exporter"
)

const reasonUnsupported = "unsupported extension"

// Discover expands the given paths into conversion jobs. Explicit file
// inputs must exist; a non-spreadsheet among them is kept as a skipped
// job so the caller sees why nothing happened to it. Directory inputs
// are scanned one level deep, or fully with opts.Recursive; files with
// other extensions are excluded from enumeration unless
// opts.RecordUnsupported asks for their visibility. Jobs come out in
// input order, directory contents sorted for determinism.
func Discover(inputs []string, opts Options) ([]Job, error) {
	var jobs []Job

	for _, input := range inputs {
		fi, err := os.Stat(input)
		if err != nil {
			return nil, fmt.Errorf("input not found: %s", input)
		}

		if !fi.IsDir() {
			if !exporter.IsSpreadsheet(input) {
				jobs = append(jobs, Job{Source: input, SkipReason: reasonUnsupported})
				continue
			}
			jobs = append(jobs, Job{Source: input})
			continue
		}

		dirJobs, err := discoverDir(input, opts)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, dirJobs...)
	}

	return jobs, nil
}

func discoverDir(root string, opts Options) ([]Job, error) {
	var jobs []Job

	appendFile := func(path string) {
		rel := ""
		if dir := filepath.Dir(path); dir != root {
			if r, err := filepath.Rel(root, dir); err == nil && r != "." {
				rel = r
			}
		}

		if exporter.IsSpreadsheet(path) {
			jobs = append(jobs, Job{Source: path, Rel: rel})
		} else if opts.RecordUnsupported {
			jobs = append(jobs, Job{Source: path, Rel: rel, SkipReason: reasonUnsupported})
		}
	}

	if opts.Recursive {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				appendFile(path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", root, err)
		}
	} else {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", root, err)
		}
		for _, e := range entries {
			if !e.IsDir() {
				appendFile(filepath.Join(root, e.Name()))
			}
		}
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Source < jobs[j].Source })
	return jobs, nil
}
