// Package data loads span-tagged classification examples from TSV and
// TFRecord files and resolves which files a training run consumes.
package data

import (
	"fmt"
	"strconv"
	"strings"
)

// Example is one row of tabular classification data: a label plus one or
// two text fields with span markers already applied.
type Example struct {
	Label string
	Texts []string
}

// FieldSpec selects the label and text columns of a TSV row. Indices are
// 1-based; negative values count from the end of the row, so -1 is the
// last field.
type FieldSpec struct {
	LabelField int
	TextFields []int
}

// ParseTextFields parses a comma-separated list of one or two field
// indices, e.g. "-3" or "3,4".
func ParseTextFields(s string) ([]int, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) == 0 || len(parts) > 2 {
		return nil, fmt.Errorf("data: expected one or two text field indices, got %q", s)
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("data: bad text field index %q: %w", p, err)
		}
		if n == 0 {
			return nil, fmt.Errorf("data: text field index must be nonzero")
		}
		out = append(out, n)
	}
	return out, nil
}

// resolveIndex turns a 1-based, possibly negative field index into a slice
// offset for a row with n fields. Returns -1 when out of range.
func resolveIndex(idx, n int) int {
	switch {
	case idx > 0 && idx <= n:
		return idx - 1
	case idx < 0 && -idx <= n:
		return n + idx
	default:
		return -1
	}
}

// SpanMarkers are the in-text delimiters around sub-spans A and B.
type SpanMarkers struct {
	ABegin, AEnd string
	BBegin, BEnd string
}

// DefaultMarkers returns the entity-marker convention used by the tagged
// corpora this classifier consumes.
func DefaultMarkers() SpanMarkers {
	return SpanMarkers{ABegin: "[E1]", AEnd: "[/E1]", BBegin: "[E2]", BEnd: "[/E2]"}
}

// Replacements are the placeholder tokens substituted for marked spans.
// An empty replacement strips the markers and keeps the span text.
type Replacements struct {
	SpanA string
	SpanB string
}

// Apply rewrites every marked span in text. With a replacement token the
// whole delimited span collapses to that token; without one only the
// markers are removed. Unbalanced markers are an error.
func (m SpanMarkers) Apply(text string, rep Replacements) (string, error) {
	out, err := replaceSpan(text, m.ABegin, m.AEnd, rep.SpanA)
	if err != nil {
		return "", err
	}
	out, err = replaceSpan(out, m.BBegin, m.BEnd, rep.SpanB)
	if err != nil {
		return "", err
	}
	return out, nil
}

func replaceSpan(text, begin, end, repl string) (string, error) {
	if begin == "" || end == "" {
		return text, nil
	}
	var b strings.Builder
	for {
		i := strings.Index(text, begin)
		if i < 0 {
			if strings.Contains(text, end) {
				return "", fmt.Errorf("data: end marker %q without begin marker %q", end, begin)
			}
			b.WriteString(text)
			return b.String(), nil
		}
		rest := text[i+len(begin):]
		j := strings.Index(rest, end)
		if j < 0 {
			return "", fmt.Errorf("data: begin marker %q without end marker %q", begin, end)
		}
		b.WriteString(text[:i])
		if repl != "" {
			b.WriteString(repl)
		} else {
			b.WriteString(strings.TrimSpace(rest[:j]))
		}
		text = rest[j+len(end):]
	}
}
