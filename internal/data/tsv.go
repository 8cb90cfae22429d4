package data

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Rows carrying fewer fields than this cannot address the default label
// and text columns and are rejected.
const minTSVFields = 4

const maxLineBytes = 4 << 20

// LoadTSV reads span-tagged examples from a TSV file. Malformed rows and
// out-of-range field indices are fatal, with file and line context.
func LoadTSV(path string, spec FieldSpec, markers SpanMarkers, rep Replacements) ([]Example, error) {
	if len(spec.TextFields) == 0 || len(spec.TextFields) > 2 {
		return nil, fmt.Errorf("data: expected one or two text fields, got %d", len(spec.TextFields))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("data: open %q: %w", path, err)
	}
	defer f.Close()

	var examples []Example
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	ln := 0
	for sc.Scan() {
		ln++
		line := strings.TrimRight(sc.Text(), "\n")
		fields := strings.Split(line, "\t")
		if len(fields) < minTSVFields {
			return nil, fmt.Errorf("data: expected at least %d tab-separated fields, got %d on %s line %d: %s",
				minTSVFields, len(fields), path, ln, line)
		}

		li := resolveIndex(spec.LabelField, len(fields))
		if li < 0 {
			return nil, fmt.Errorf("data: label field %d out of range on %s line %d (%d fields)",
				spec.LabelField, path, ln, len(fields))
		}

		ex := Example{Label: fields[li], Texts: make([]string, 0, len(spec.TextFields))}
		for _, ti := range spec.TextFields {
			fi := resolveIndex(ti, len(fields))
			if fi < 0 {
				return nil, fmt.Errorf("data: text field %d out of range on %s line %d (%d fields)",
					ti, path, ln, len(fields))
			}
			text, err := markers.Apply(fields[fi], rep)
			if err != nil {
				return nil, fmt.Errorf("data: %s line %d: %w", path, ln, err)
			}
			ex.Texts = append(ex.Texts, text)
		}
		examples = append(examples, ex)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("data: read %q: %w", path, err)
	}
	return examples, nil
}

// CountTSVExamples validates and counts examples across one or more TSV
// files, for training-step computation.
func CountTSVExamples(paths []string, spec FieldSpec, markers SpanMarkers, rep Replacements) (int, error) {
	total := 0
	for _, p := range paths {
		examples, err := LoadTSV(p, spec, markers, rep)
		if err != nil {
			return 0, err
		}
		total += len(examples)
	}
	return total, nil
}
