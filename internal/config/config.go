package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

// Hyperparameter defaults carried over from the fine-tuning setup the
// driver wraps.
const (
	DefaultMaxSeqLength     = 128
	DefaultBatchSize        = 32
	DefaultNumTrainEpochs   = 3
	DefaultLearningRate     = 5e-5
	DefaultWarmupProportion = 0.1
	DefaultLabelField       = -4
	DefaultTextFields       = "-3"
)

type Config struct {
	Training TrainingConfig `yaml:"training"`
	Markers  MarkerConfig   `yaml:"markers"`
	Backend  BackendConfig  `yaml:"backend"`
	Storage  StorageConfig  `yaml:"storage"`
	Download DownloadConfig `yaml:"download"`
}

// TrainingConfig holds hyperparameter defaults; CLI flags override them
// per run.
type TrainingConfig struct {
	MaxSeqLength     int     `yaml:"max_seq_length,omitempty"`
	BatchSize        int     `yaml:"batch_size,omitempty"`
	NumTrainEpochs   int     `yaml:"num_train_epochs,omitempty"`
	LearningRate     float64 `yaml:"learning_rate,omitempty"`
	WarmupProportion float64 `yaml:"warmup_proportion,omitempty"`
	LabelField       int     `yaml:"label_field,omitempty"`
	TextFields       string  `yaml:"text_fields,omitempty"` // comma-separated 1-based indices
}

// MarkerConfig names the in-text span delimiters the data layer strips or
// replaces before text reaches the trainer.
type MarkerConfig struct {
	SpanABegin string `yaml:"span_a_begin,omitempty"`
	SpanAEnd   string `yaml:"span_a_end,omitempty"`
	SpanBBegin string `yaml:"span_b_begin,omitempty"`
	SpanBEnd   string `yaml:"span_b_end,omitempty"`
}

// BackendConfig locates the external fine-tuning trainer executable.
type BackendConfig struct {
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
}

type StorageConfig struct {
	Type string `yaml:"type,omitempty"` // "sqlite" or "memory"
	Path string `yaml:"path,omitempty"` // SQLite file path
}

type DownloadConfig struct {
	BaseURL string `yaml:"base_url,omitempty"`
	Dir     string `yaml:"dir,omitempty"` // where checkpoint archives unpack
}

// Load reads the YAML config at path and applies defaults and environment
// overrides. A missing file at the default path is not an error: the
// built-in defaults are returned so the CLI works without a config file.
func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	var cfg Config
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	case path == DefaultPath && os.IsNotExist(err):
		// Defaults only.
	default:
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Training.MaxSeqLength <= 0 {
		cfg.Training.MaxSeqLength = DefaultMaxSeqLength
	}
	if cfg.Training.BatchSize <= 0 {
		cfg.Training.BatchSize = DefaultBatchSize
	}
	if cfg.Training.NumTrainEpochs <= 0 {
		cfg.Training.NumTrainEpochs = DefaultNumTrainEpochs
	}
	if cfg.Training.LearningRate <= 0 {
		cfg.Training.LearningRate = DefaultLearningRate
	}
	if cfg.Training.WarmupProportion <= 0 {
		cfg.Training.WarmupProportion = DefaultWarmupProportion
	}
	if cfg.Training.LabelField == 0 {
		cfg.Training.LabelField = DefaultLabelField
	}
	if strings.TrimSpace(cfg.Training.TextFields) == "" {
		cfg.Training.TextFields = DefaultTextFields
	}

	if cfg.Markers.SpanABegin == "" {
		cfg.Markers.SpanABegin = "[E1]"
	}
	if cfg.Markers.SpanAEnd == "" {
		cfg.Markers.SpanAEnd = "[/E1]"
	}
	if cfg.Markers.SpanBBegin == "" {
		cfg.Markers.SpanBBegin = "[E2]"
	}
	if cfg.Markers.SpanBEnd == "" {
		cfg.Markers.SpanBEnd = "[/E2]"
	}

	if strings.TrimSpace(cfg.Backend.Command) == "" {
		cfg.Backend.Command = "bert-finetune"
	}
	if strings.TrimSpace(cfg.Download.BaseURL) == "" {
		cfg.Download.BaseURL = "https://storage.googleapis.com/bert_models"
	}
	if strings.TrimSpace(cfg.Download.Dir) == "" {
		cfg.Download.Dir = "models"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("BERTSPAN_TRAINER")); v != "" {
		cfg.Backend.Command = v
	}
	if v := strings.TrimSpace(os.Getenv("BERTSPAN_DB")); v != "" {
		cfg.Storage.Type = "sqlite"
		cfg.Storage.Path = v
	}
}
