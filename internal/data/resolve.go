package data

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mattn/go-zglob"
)

// Format identifies the on-disk training data format.
type Format string

const (
	FormatTFRecord Format = "tfrecord"
	FormatTSV      Format = "tsv"
)

var globMatch = zglob.Glob

// ResolveTrainData finds the training files under dir. TFRecord files take
// precedence: when any train*.tfrecord exists, train*.tsv files are
// ignored entirely. Files are returned sorted for a deterministic argument
// order.
func ResolveTrainData(dir string) ([]string, Format, error) {
	tfrecords, err := globMatch(filepath.Join(dir, "train*.tfrecord"))
	if err != nil {
		return nil, "", fmt.Errorf("data: glob tfrecord in %q: %w", dir, err)
	}
	if len(tfrecords) > 0 {
		sort.Strings(tfrecords)
		return tfrecords, FormatTFRecord, nil
	}

	tsvs, err := globMatch(filepath.Join(dir, "train*.tsv"))
	if err != nil {
		return nil, "", fmt.Errorf("data: glob tsv in %q: %w", dir, err)
	}
	if len(tsvs) > 0 {
		sort.Strings(tsvs)
		return tsvs, FormatTSV, nil
	}

	return nil, "", fmt.Errorf("data: no train*.tfrecord or train*.tsv files in %q", dir)
}

// ResolveDevData returns the dev set path under dir, if present.
func ResolveDevData(dir string) (string, error) {
	matches, err := globMatch(filepath.Join(dir, "dev.tsv"))
	if err != nil {
		return "", fmt.Errorf("data: glob dev in %q: %w", dir, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("data: no dev.tsv in %q", dir)
	}
	return matches[0], nil
}

// JoinFiles renders a file list as the comma-joined --train_data argument.
func JoinFiles(files []string) string {
	return strings.Join(files, ",")
}

// SplitFiles parses a comma-joined file list, dropping empty entries.
func SplitFiles(arg string) []string {
	var out []string
	for _, p := range strings.Split(arg, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// DetectFormat infers the data format from file extensions and rejects
// mixed lists: a run consumes exactly one format.
func DetectFormat(files []string) (Format, error) {
	if len(files) == 0 {
		return "", fmt.Errorf("data: no input files")
	}
	var format Format
	for _, f := range files {
		var cur Format
		switch strings.ToLower(filepath.Ext(f)) {
		case ".tfrecord":
			cur = FormatTFRecord
		case ".tsv":
			cur = FormatTSV
		default:
			return "", fmt.Errorf("data: unsupported data file %q (want .tsv or .tfrecord)", f)
		}
		if format == "" {
			format = cur
			continue
		}
		if format != cur {
			return "", fmt.Errorf("data: mixed data formats: %q after %s files", f, format)
		}
	}
	return format, nil
}
