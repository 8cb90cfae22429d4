package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/katnastou/bert-span-classifier/internal/config"
	"github.com/katnastou/bert-span-classifier/internal/data"
	"github.com/katnastou/bert-span-classifier/internal/store"
	"github.com/katnastou/bert-span-classifier/internal/trainer"
)

type fakeBackend struct {
	trainArgs   []string
	trainOutput string
	trainErr    error

	predictArgs   []string
	predictOutput string
}

func (f *fakeBackend) Train(ctx context.Context, args []string, out io.Writer) error {
	f.trainArgs = args
	_, _ = io.WriteString(out, f.trainOutput)
	return f.trainErr
}

func (f *fakeBackend) Predict(ctx context.Context, args []string, out io.Writer) error {
	f.predictArgs = args
	_, _ = io.WriteString(out, f.predictOutput)
	return nil
}

func withFakeBackend(t *testing.T, fb trainer.Backend) {
	t.Helper()
	orig := newBackend
	newBackend = func(*config.Config) trainer.Backend { return fb }
	t.Cleanup(func() { newBackend = orig })
}

func writeCLIFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s): %v", path, err)
	}
}

// writeCheckpoint lays out a pretrained snapshot directory and returns the
// checkpoint prefix path.
func writeCheckpoint(t *testing.T, dir string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	writeCLIFile(t, filepath.Join(dir, "bert_model.ckpt.index"), "index")
	writeCLIFile(t, filepath.Join(dir, "vocab.txt"), "[PAD]\n[UNK]\nthe\n")
	writeCLIFile(t, filepath.Join(dir, "bert_config.json"), "{}")
	return filepath.Join(dir, "bert_model.ckpt")
}

func writeDataDir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	writeCLIFile(t, filepath.Join(dir, "train1.tsv"),
		"POS\tbinds [E1]aspirin[/E1] to [E2]COX-1[/E2]\tc3\tc4\n"+
			"NEG\tno [E1]relation[/E1] with [E2]TP53[/E2]\tc3\tc4\n")
	writeCLIFile(t, filepath.Join(dir, "train2.tsv"),
		"POS\t[E1]caffeine[/E1] inhibits [E2]PDE4[/E2]\tc3\tc4\n")
	writeCLIFile(t, filepath.Join(dir, "dev.tsv"),
		"NEG\t[E1]water[/E1] and [E2]GAPDH[/E2]\tc3\tc4\n")
	writeCLIFile(t, filepath.Join(dir, "labels.txt"), "NEG\nPOS\n")
}

func execRoot(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	root := newRootCmd()
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	root.SetArgs(args)
	err = root.Execute()
	return outBuf.String(), errBuf.String(), err
}

func TestJob_EmitsRecordAndSavesRun(t *testing.T) {
	tmp := t.TempDir()
	ckpt := writeCheckpoint(t, filepath.Join(tmp, "uncased_L-12_H-768_A-12"))
	dataDir := filepath.Join(tmp, "chemprot")
	writeDataDir(t, dataDir)
	dbPath := filepath.Join(tmp, "runs.db")
	t.Setenv("BERTSPAN_DB", dbPath)

	fb := &fakeBackend{trainOutput: "step 100 loss 0.4\nFinal dev accuracy: 0.8431\n"}
	withFakeBackend(t, fb)

	stdout, _, err := execRoot(t, "job",
		"--model_dir", filepath.Join(tmp, "model"),
		ckpt, dataDir, "128", "2", "5e-5", "2", "--amp")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	want := "TEST-RESULT\tinit_checkpoint\t" + ckpt +
		"\tdata_dir\t" + dataDir +
		"\tmax_seq_length\t128\ttrain_batch_size\t2\tlearning_rate\t5e-05\tnum_train_epochs\t2\tother_parameters\t--amp\taccuracy\t0.8431\n"
	if stdout != want {
		t.Errorf("record line:\n got %q\nwant %q", stdout, want)
	}

	// Case folding inferred from the checkpoint path.
	if !containsArg(fb.trainArgs, "--do_lower_case") {
		t.Errorf("args missing --do_lower_case: %v", fb.trainArgs)
	}
	// Sorted comma-joined TSV list.
	wantTrain := filepath.Join(dataDir, "train1.tsv") + "," + filepath.Join(dataDir, "train2.tsv")
	if got := argValue(fb.trainArgs, "--train_data"); got != wantTrain {
		t.Errorf("--train_data: got %q want %q", got, wantTrain)
	}

	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer st.Close()
	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs: got %d want 1", len(runs))
	}
	run := runs[0]
	if run.Task != "chemprot" || run.Accuracy == nil || *run.Accuracy != 0.8431 {
		t.Errorf("run record: %+v", run)
	}
}

func TestJob_NoAccuracyLineStillEmitsRecord(t *testing.T) {
	tmp := t.TempDir()
	ckpt := writeCheckpoint(t, filepath.Join(tmp, "cased_L-12_H-768_A-12"))
	dataDir := filepath.Join(tmp, "ddi")
	writeDataDir(t, dataDir)
	dbPath := filepath.Join(tmp, "runs.db")
	t.Setenv("BERTSPAN_DB", dbPath)

	fb := &fakeBackend{trainOutput: "step 100 loss 0.4\n"}
	withFakeBackend(t, fb)

	stdout, _, err := execRoot(t, "job",
		"--model_dir", filepath.Join(tmp, "model"),
		ckpt, dataDir, "128", "2", "5e-5", "2")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if !strings.HasPrefix(stdout, "TEST-RESULT\t") {
		t.Fatalf("no record emitted: %q", stdout)
	}
	if !strings.HasSuffix(strings.TrimRight(stdout, "\n"), "\taccuracy\t") {
		t.Errorf("accuracy field not empty: %q", stdout)
	}
	if containsArg(fb.trainArgs, "--do_lower_case") {
		t.Errorf("cased checkpoint must not lower-case: %v", fb.trainArgs)
	}

	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer st.Close()
	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Accuracy != nil {
		t.Errorf("run not saved with nil accuracy: %+v", runs)
	}
}

func TestJob_TFRecordPrecedence(t *testing.T) {
	tmp := t.TempDir()
	ckpt := writeCheckpoint(t, filepath.Join(tmp, "uncased_L-12"))
	dataDir := filepath.Join(tmp, "task")
	writeDataDir(t, dataDir)

	tfPath := filepath.Join(dataDir, "train1.tfrecord")
	f, err := os.Create(tfPath)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	w := data.NewTFRecordWriter(f)
	for _, ex := range []data.Example{
		{Label: "POS", Texts: []string{"a b"}},
		{Label: "NEG", Texts: []string{"c d"}},
	} {
		rec, err := data.MarshalExample(ex)
		if err != nil {
			t.Fatalf("MarshalExample: %v", err)
		}
		if err := w.Write(rec); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	t.Setenv("BERTSPAN_DB", filepath.Join(tmp, "runs.db"))

	fb := &fakeBackend{trainOutput: "Final dev accuracy: 0.5\n"}
	withFakeBackend(t, fb)

	if _, _, err := execRoot(t, "job",
		"--model_dir", filepath.Join(tmp, "model"),
		ckpt, dataDir, "128", "2", "5e-5", "2"); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if got := argValue(fb.trainArgs, "--train_data"); got != tfPath {
		t.Errorf("--train_data: got %q want %q", got, tfPath)
	}
}

func TestJob_UsageOnMissingArguments(t *testing.T) {
	for _, args := range [][]string{
		{"job"},
		{"job", "ckpt"},
		{"job", "ckpt", "dir", "128", "32"}, // two of the first seven missing
	} {
		stdout, stderr, err := execRoot(t, args...)
		if err == nil {
			t.Fatalf("Execute(%v): expected error", args)
		}
		if !strings.Contains(stdout+stderr, "Usage:") {
			t.Errorf("Execute(%v): usage not printed (stdout=%q stderr=%q)", args, stdout, stderr)
		}
	}
}

func TestJob_InvalidNumericArguments(t *testing.T) {
	for _, tc := range []struct {
		args []string
		want string
	}{
		{[]string{"job", "ckpt", "dir", "abc", "32", "5e-5", "3"}, "max_seq_length"},
		{[]string{"job", "ckpt", "dir", "128", "x", "5e-5", "3"}, "batch_size"},
		{[]string{"job", "ckpt", "dir", "128", "32", "fast", "3"}, "learning_rate"},
		{[]string{"job", "ckpt", "dir", "128", "32", "5e-5", "many"}, "num_train_epochs"},
	} {
		_, _, err := execRoot(t, tc.args...)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("Execute(%v): got %v, want error mentioning %s", tc.args, err, tc.want)
		}
	}
}

func TestJob_BackendFailureStillEmitsRecord(t *testing.T) {
	tmp := t.TempDir()
	ckpt := writeCheckpoint(t, filepath.Join(tmp, "uncased_L-12"))
	dataDir := filepath.Join(tmp, "task")
	writeDataDir(t, dataDir)
	t.Setenv("BERTSPAN_DB", filepath.Join(tmp, "runs.db"))

	fb := &fakeBackend{trainErr: io.ErrUnexpectedEOF}
	withFakeBackend(t, fb)

	stdout, _, err := execRoot(t, "job",
		"--model_dir", filepath.Join(tmp, "model"),
		ckpt, dataDir, "128", "2", "5e-5", "2")
	if err == nil {
		t.Fatal("Execute: expected backend error")
	}
	// The reporting step survives the driver failure: the record still
	// goes out, accuracy empty.
	if !strings.HasPrefix(stdout, "TEST-RESULT\t") {
		t.Fatalf("no record emitted: %q", stdout)
	}
	if !strings.HasSuffix(strings.TrimRight(stdout, "\n"), "\taccuracy\t") {
		t.Errorf("accuracy field not empty: %q", stdout)
	}
}

func TestJob_NoTrainingDataStillEmitsRecord(t *testing.T) {
	tmp := t.TempDir()
	ckpt := writeCheckpoint(t, filepath.Join(tmp, "uncased_L-12"))
	dataDir := filepath.Join(tmp, "empty")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	writeCLIFile(t, filepath.Join(dataDir, "dev.tsv"), "NEG\ttext\tc3\tc4\n")
	writeCLIFile(t, filepath.Join(dataDir, "labels.txt"), "NEG\nPOS\n")
	dbPath := filepath.Join(tmp, "runs.db")
	t.Setenv("BERTSPAN_DB", dbPath)

	fb := &fakeBackend{trainOutput: "Final dev accuracy: 0.9\n"}
	withFakeBackend(t, fb)

	stdout, _, err := execRoot(t, "job",
		"--model_dir", filepath.Join(tmp, "model"),
		ckpt, dataDir, "128", "2", "5e-5", "2")
	if err == nil || !strings.Contains(err.Error(), "no train*") {
		t.Fatalf("Execute: got %v, want no-training-data error", err)
	}
	if fb.trainArgs != nil {
		t.Errorf("backend invoked without training data: %v", fb.trainArgs)
	}

	want := "TEST-RESULT\tinit_checkpoint\t" + ckpt +
		"\tdata_dir\t" + dataDir +
		"\tmax_seq_length\t128\ttrain_batch_size\t2\tlearning_rate\t5e-05\tnum_train_epochs\t2\tother_parameters\t\taccuracy\t\n"
	if stdout != want {
		t.Errorf("record line:\n got %q\nwant %q", stdout, want)
	}

	st, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer st.Close()
	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Accuracy != nil {
		t.Errorf("run not saved with nil accuracy: %+v", runs)
	}
}

func containsArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func argValue(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
