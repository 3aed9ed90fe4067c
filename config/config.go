// ABOUTME: YAML configuration with defaults for models, speech, retrieval, sandbox, and pipeline budgets.
// ABOUTME: API keys come from the environment only; a missing config file falls back to defaults.

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Models    ModelsConfig    `yaml:"models"`
	Speech    SpeechConfig    `yaml:"speech"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Server    ServerConfig    `yaml:"server"`
	Paths     PathsConfig     `yaml:"paths"`
}

type ModelsConfig struct {
	Script        string  `yaml:"script"`
	Planner       string  `yaml:"planner"`
	Codegen       string  `yaml:"codegen"`
	Repair        string  `yaml:"repair"`
	Temperature   float64 `yaml:"temperature"`
	OpenAIBaseURL string  `yaml:"openai_base_url"`
}

type SpeechConfig struct {
	Model string `yaml:"model"`
	Voice string `yaml:"voice"`
}

type RetrievalConfig struct {
	IndexPath      string `yaml:"index_path"`
	EmbeddingModel string `yaml:"embedding_model"`
	K              int    `yaml:"k"`
}

type SandboxConfig struct {
	PythonBin          string `yaml:"python_bin"`
	ManimBin           string `yaml:"manim_bin"`
	ValidateTimeoutSec int    `yaml:"validate_timeout_sec"`
	RenderTimeoutSec   int    `yaml:"render_timeout_sec"`
}

type PipelineConfig struct {
	MaxParallel     int `yaml:"max_parallel"`
	MaxReviewCycles int `yaml:"max_review_cycles"`
	MaxRegenCycles  int `yaml:"max_regen_cycles"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type PathsConfig struct {
	OutputRoot string `yaml:"output_root"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Models: ModelsConfig{
			Script:      "gpt-5-mini",
			Planner:     "gpt-5-mini",
			Codegen:     "claude-sonnet-4-5-20250929",
			Repair:      "claude-sonnet-4-5-20250929",
			Temperature: 0.6,
		},
		Speech: SpeechConfig{
			Model: "gpt-4o-mini-tts",
			Voice: "sage",
		},
		Retrieval: RetrievalConfig{
			IndexPath:      "manim_index.db",
			EmbeddingModel: "text-embedding-3-small",
			K:              3,
		},
		Sandbox: SandboxConfig{
			PythonBin:          "python3",
			ManimBin:           "manim",
			ValidateTimeoutSec: 60,
			RenderTimeoutSec:   180,
		},
		Pipeline: PipelineConfig{
			MaxParallel:     4,
			MaxReviewCycles: 3,
			MaxRegenCycles:  2,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Paths: PathsConfig{
			OutputRoot: "out",
		},
	}
}

// Load reads a YAML config file over the defaults. A missing file is not an
// error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// NewRunID returns a lexically sortable identifier for one pipeline run.
func NewRunID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.DefaultEntropy()).String()
}
