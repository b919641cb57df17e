// Package report writes the per-test result files: a stats file with one
// block per iteration, a results file with one p-value per line, and, when
// more than one partition is configured, interleaved data files splitting
// the p-value stream by partition. I/O failures are fatal for the run and
// are propagated with context.
package report

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"entropy-sts-engine/internal/store"
	"entropy-sts-engine/internal/sts"
)

// InvalidMarker is written in place of a p-value that could not be computed.
const InvalidMarker = "__INVALID__"

// SubDir creates (if needed) and returns the working subdirectory for one
// test under the results root.
func SubDir(resultsDir, testName string) (string, error) {
	dir := filepath.Join(resultsDir, testName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report: create %s: %w", dir, err)
	}
	return dir, nil
}

// CreateFile opens dir/name truncated for writing.
func CreateFile(dir, name string) (*os.File, error) {
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("report: open %s: %w", path, err)
	}
	return file, nil
}

// FormatPValue renders a p-value for the results and data files, using
// InvalidMarker for the non-computable sentinel.
func FormatPValue(p float64) string {
	if p == sts.NonPValue {
		return InvalidMarker
	}
	return strconv.FormatFloat(p, 'f', 6, 64)
}

// WriteResults writes results.txt: one p-value (or InvalidMarker) per line,
// in iteration order.
func WriteResults(dir string, pvals *store.OrderedLog[float64]) error {
	file, err := CreateFile(dir, "results.txt")
	if err != nil {
		return err
	}

	w := bufio.NewWriter(file)
	for i := 0; i < pvals.Count(); i++ {
		if _, err := fmt.Fprintln(w, FormatPValue(pvals.Get(i))); err != nil {
			file.Close()
			return fmt.Errorf("report: write results.txt: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("report: flush results.txt: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("report: close results.txt: %w", err)
	}
	return nil
}

// DataFileFormat returns the printf format used to name partition data
// files, widened to fit the partition count but never narrower than the
// customary three digits.
func DataFileFormat(partitionCount int) string {
	width := len(strconv.Itoa(partitionCount))
	if width < 3 {
		width = 3
	}
	return "data%0" + strconv.Itoa(width) + "d.txt"
}

// WriteData writes one dataNNN.txt per partition, each holding every
// partitions-th p-value starting at the partition's offset. It is a no-op
// when only one partition is configured, since results.txt already carries
// the whole stream.
func WriteData(dir string, partitions int, pvals *store.OrderedLog[float64]) error {
	if partitions <= 1 {
		return nil
	}

	nameFormat := DataFileFormat(partitions)
	for j := 0; j < partitions; j++ {
		name := fmt.Sprintf(nameFormat, j+1)
		file, err := CreateFile(dir, name)
		if err != nil {
			return err
		}

		w := bufio.NewWriter(file)
		var writeErr error
		pvals.Stride(j, partitions, func(_ int, p float64) {
			if writeErr == nil {
				_, writeErr = fmt.Fprintln(w, FormatPValue(p))
			}
		})
		if writeErr == nil {
			writeErr = w.Flush()
		}
		if closeErr := file.Close(); writeErr == nil {
			writeErr = closeErr
		}
		if writeErr != nil {
			return fmt.Errorf("report: write %s: %w", name, writeErr)
		}
	}
	return nil
}
