package main

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestTrain_PrintsFinalAccuracy(t *testing.T) {
	tmp := t.TempDir()
	ckpt := writeCheckpoint(t, filepath.Join(tmp, "uncased_L-12"))
	dataDir := filepath.Join(tmp, "task")
	writeDataDir(t, dataDir)

	fb := &fakeBackend{trainOutput: "step 10\nFinal dev accuracy: 0.8431\n"}
	withFakeBackend(t, fb)

	stdout, _, err := execRoot(t, "train",
		"--init_checkpoint", ckpt,
		"--vocab_file", filepath.Join(filepath.Dir(ckpt), "vocab.txt"),
		"--bert_config_file", filepath.Join(filepath.Dir(ckpt), "bert_config.json"),
		"--train_data", filepath.Join(dataDir, "train1.tsv")+","+filepath.Join(dataDir, "train2.tsv"),
		"--dev_data", filepath.Join(dataDir, "dev.tsv"),
		"--labels", filepath.Join(dataDir, "labels.txt"),
		"--model_dir", filepath.Join(tmp, "model"),
		"--batch_size", "2",
		"--num_train_epochs", "2",
		"--do_lower_case",
	)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if stdout != "Final dev accuracy: 0.8431\n" {
		t.Errorf("stdout: %q", stdout)
	}

	// Config defaults fill the flags left unset.
	if got := argValue(fb.trainArgs, "--max_seq_length"); got != "128" {
		t.Errorf("--max_seq_length: got %q want 128", got)
	}
	if got := argValue(fb.trainArgs, "--learning_rate"); got != "5e-05" {
		t.Errorf("--learning_rate: got %q want 5e-05", got)
	}
	if got := argValue(fb.trainArgs, "--label_field"); got != "-4" {
		t.Errorf("--label_field: got %q want -4", got)
	}
}

func TestTrain_NoAccuracyPrintsNothing(t *testing.T) {
	tmp := t.TempDir()
	ckpt := writeCheckpoint(t, filepath.Join(tmp, "uncased_L-12"))
	dataDir := filepath.Join(tmp, "task")
	writeDataDir(t, dataDir)

	fb := &fakeBackend{trainOutput: "step 10\n"}
	withFakeBackend(t, fb)

	stdout, _, err := execRoot(t, "train",
		"--init_checkpoint", ckpt,
		"--vocab_file", filepath.Join(filepath.Dir(ckpt), "vocab.txt"),
		"--bert_config_file", filepath.Join(filepath.Dir(ckpt), "bert_config.json"),
		"--train_data", filepath.Join(dataDir, "train1.tsv"),
		"--labels", filepath.Join(dataDir, "labels.txt"),
		"--model_dir", filepath.Join(tmp, "model"),
	)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if stdout != "" {
		t.Errorf("stdout: %q", stdout)
	}
}

func TestTrain_Errors(t *testing.T) {
	fb := &fakeBackend{}
	withFakeBackend(t, fb)

	_, _, err := execRoot(t, "train")
	if err == nil || !strings.Contains(err.Error(), "--train_data") {
		t.Errorf("missing train data: got %v", err)
	}

	_, _, err = execRoot(t, "train", "--train_data", "a.tsv,b.tfrecord")
	if err == nil || !strings.Contains(err.Error(), "mixed") {
		t.Errorf("mixed formats: got %v", err)
	}
}
