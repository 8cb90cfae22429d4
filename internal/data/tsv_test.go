package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestParseTextFields(t *testing.T) {
	t.Parallel()

	got, err := ParseTextFields("-3")
	if err != nil {
		t.Fatalf("ParseTextFields: %v", err)
	}
	if len(got) != 1 || got[0] != -3 {
		t.Fatalf("ParseTextFields(-3): %v", got)
	}

	got, err = ParseTextFields(" 3 , 4 ")
	if err != nil {
		t.Fatalf("ParseTextFields: %v", err)
	}
	if len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Fatalf("ParseTextFields(3,4): %v", got)
	}

	for _, bad := range []string{"", "x", "0", "1,2,3"} {
		if _, err := ParseTextFields(bad); err == nil {
			t.Fatalf("ParseTextFields(%q): expected error", bad)
		}
	}
}

func TestSpanMarkers_Apply(t *testing.T) {
	t.Parallel()

	m := DefaultMarkers()

	got, err := m.Apply("the [E1] kinase [/E1] binds [E2] p53 [/E2] tightly",
		Replacements{SpanA: "[unused1]", SpanB: "[unused2]"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got != "the [unused1] binds [unused2] tightly" {
		t.Fatalf("Apply: got %q", got)
	}

	// Empty replacements strip the markers and keep the span text.
	got, err = m.Apply("the [E1] kinase [/E1] binds [E2] p53 [/E2] tightly", Replacements{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got != "the kinase binds p53 tightly" {
		t.Fatalf("Apply: got %q", got)
	}

	// Text without markers passes through untouched.
	got, err = m.Apply("plain text", Replacements{SpanA: "[unused1]"})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got != "plain text" {
		t.Fatalf("Apply: got %q", got)
	}

	if _, err := m.Apply("broken [E1] span", Replacements{}); err == nil {
		t.Fatalf("Apply: expected unbalanced-marker error")
	}
	if _, err := m.Apply("broken span [/E1]", Replacements{}); err == nil {
		t.Fatalf("Apply: expected unbalanced-marker error")
	}
}

func TestLoadTSV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "train1.tsv")
	writeFile(t, path, strings.Join([]string{
		"doc1\te1\tpositive\tthe [E1] kinase [/E1] binds [E2] p53 [/E2]\tx\ty",
		"doc2\te2\tnegative\tno [E1] interaction [/E1] with [E2] BRCA1 [/E2]\tx\ty",
	}, "\n")+"\n")

	spec := FieldSpec{LabelField: -4, TextFields: []int{-3}}
	examples, err := LoadTSV(path, spec, DefaultMarkers(), Replacements{SpanA: "[unused1]", SpanB: "[unused2]"})
	if err != nil {
		t.Fatalf("LoadTSV: %v", err)
	}
	if len(examples) != 2 {
		t.Fatalf("len(examples): got %d want 2", len(examples))
	}
	if examples[0].Label != "positive" || examples[1].Label != "negative" {
		t.Fatalf("labels: %q %q", examples[0].Label, examples[1].Label)
	}
	if examples[0].Texts[0] != "the [unused1] binds [unused2]" {
		t.Fatalf("Texts[0]: got %q", examples[0].Texts[0])
	}
}

func TestLoadTSV_PositiveIndicesAndTwoTexts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "train.tsv")
	writeFile(t, path, "lbl\tfirst sentence\tsecond sentence\textra\n")

	spec := FieldSpec{LabelField: 1, TextFields: []int{2, 3}}
	examples, err := LoadTSV(path, spec, DefaultMarkers(), Replacements{})
	if err != nil {
		t.Fatalf("LoadTSV: %v", err)
	}
	if len(examples) != 1 {
		t.Fatalf("len(examples): got %d want 1", len(examples))
	}
	ex := examples[0]
	if ex.Label != "lbl" || len(ex.Texts) != 2 || ex.Texts[0] != "first sentence" || ex.Texts[1] != "second sentence" {
		t.Fatalf("example: %#v", ex)
	}
}

func TestLoadTSV_Errors(t *testing.T) {
	dir := t.TempDir()

	short := filepath.Join(dir, "short.tsv")
	writeFile(t, short, "only\tthree\tfields\n")
	_, err := LoadTSV(short, FieldSpec{LabelField: -4, TextFields: []int{-3}}, DefaultMarkers(), Replacements{})
	if err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Fatalf("short row: got %v", err)
	}

	ok := filepath.Join(dir, "ok.tsv")
	writeFile(t, ok, "a\tb\tc\td\n")
	_, err = LoadTSV(ok, FieldSpec{LabelField: -5, TextFields: []int{-3}}, DefaultMarkers(), Replacements{})
	if err == nil || !strings.Contains(err.Error(), "label field") {
		t.Fatalf("label out of range: got %v", err)
	}
	_, err = LoadTSV(ok, FieldSpec{LabelField: 1, TextFields: []int{9}}, DefaultMarkers(), Replacements{})
	if err == nil || !strings.Contains(err.Error(), "text field") {
		t.Fatalf("text out of range: got %v", err)
	}

	if _, err := LoadTSV(filepath.Join(dir, "missing.tsv"), FieldSpec{LabelField: 1, TextFields: []int{2}}, DefaultMarkers(), Replacements{}); err == nil {
		t.Fatalf("missing file: expected error")
	}
}

func TestCountTSVExamples(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "train1.tsv")
	p2 := filepath.Join(dir, "train2.tsv")
	writeFile(t, p1, "a\tb\tc\td\n")
	writeFile(t, p2, "a\tb\tc\td\ne\tf\tg\th\n")

	spec := FieldSpec{LabelField: -4, TextFields: []int{-3}}
	n, err := CountTSVExamples([]string{p1, p2}, spec, DefaultMarkers(), Replacements{})
	if err != nil {
		t.Fatalf("CountTSVExamples: %v", err)
	}
	if n != 3 {
		t.Fatalf("count: got %d want 3", n)
	}
}

func TestReadLabels(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "labels.txt")
	writeFile(t, path, "positive\nnegative\n\nneutral\n")

	labels, err := ReadLabels(path)
	if err != nil {
		t.Fatalf("ReadLabels: %v", err)
	}
	want := []string{"positive", "negative", "neutral"}
	if len(labels) != len(want) {
		t.Fatalf("labels: %v", labels)
	}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("labels[%d]: got %q want %q", i, labels[i], want[i])
		}
	}
}

func TestReadLabels_Errors(t *testing.T) {
	dir := t.TempDir()

	dup := filepath.Join(dir, "dup.txt")
	writeFile(t, dup, "a\nb\na\n")
	if _, err := ReadLabels(dup); err == nil || !strings.Contains(err.Error(), "duplicate label") {
		t.Fatalf("duplicate: got %v", err)
	}

	empty := filepath.Join(dir, "empty.txt")
	writeFile(t, empty, "\n\n")
	if _, err := ReadLabels(empty); err == nil || !strings.Contains(err.Error(), "no labels") {
		t.Fatalf("empty: got %v", err)
	}

	if _, err := ReadLabels(filepath.Join(dir, "missing.txt")); err == nil {
		t.Fatalf("missing: expected error")
	}
}
