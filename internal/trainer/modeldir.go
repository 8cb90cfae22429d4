package trainer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/katnastou/bert-span-classifier/internal/data"
)

// ModelMeta is the metadata written next to the backend's model
// artifacts, so prediction can reproduce the preprocessing settings.
type ModelMeta struct {
	TaskName     string `json:"task_name,omitempty"`
	DoLowerCase  bool   `json:"do_lower_case"`
	MaxSeqLength int    `json:"max_seq_length"`
	ReplaceSpanA string `json:"replace_span_A,omitempty"`
	ReplaceSpanB string `json:"replace_span_B,omitempty"`
}

func configPath(modelDir string) string { return filepath.Join(modelDir, "config.json") }
func labelsPath(modelDir string) string { return filepath.Join(modelDir, "labels.txt") }
func vocabPath(modelDir string) string  { return filepath.Join(modelDir, "vocab.txt") }

// WriteModelDir persists run metadata, the label set, and a copy of the
// vocabulary into the model directory.
func WriteModelDir(modelDir string, meta ModelMeta, labels []string, vocabFile string) error {
	if strings.TrimSpace(modelDir) == "" {
		return fmt.Errorf("trainer: empty model dir")
	}
	if err := os.MkdirAll(modelDir, 0o755); err != nil {
		return fmt.Errorf("trainer: create model dir: %w", err)
	}

	b, err := json.MarshalIndent(meta, "", "    ")
	if err != nil {
		return fmt.Errorf("trainer: marshal model config: %w", err)
	}
	if err := os.WriteFile(configPath(modelDir), append(b, '\n'), 0o644); err != nil {
		return fmt.Errorf("trainer: write model config: %w", err)
	}

	if err := os.WriteFile(labelsPath(modelDir), []byte(strings.Join(labels, "\n")+"\n"), 0o644); err != nil {
		return fmt.Errorf("trainer: write labels: %w", err)
	}

	if err := copyFile(vocabFile, vocabPath(modelDir)); err != nil {
		return fmt.Errorf("trainer: copy vocab: %w", err)
	}
	return nil
}

// LoadModelDir reads back the metadata and label set of a trained model.
func LoadModelDir(modelDir string) (ModelMeta, []string, error) {
	var meta ModelMeta

	b, err := os.ReadFile(configPath(modelDir))
	if err != nil {
		return meta, nil, fmt.Errorf("trainer: read model config: %w", err)
	}
	if err := json.Unmarshal(b, &meta); err != nil {
		return meta, nil, fmt.Errorf("trainer: parse model config: %w", err)
	}

	labels, err := data.ReadLabels(labelsPath(modelDir))
	if err != nil {
		return meta, nil, err
	}
	return meta, labels, nil
}

// ModelVocabPath returns the vocabulary copy inside a model directory.
func ModelVocabPath(modelDir string) string { return vocabPath(modelDir) }

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
