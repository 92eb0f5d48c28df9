// Package config loads the run's YAML configuration (§6 "Configuration
// (recognized options)") with environment-variable overrides for the
// values operators most often need to flip per-invocation.
package config

import (
	"os"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"
)

// RegistryCfg points at the builder-produced column-store files.
type RegistryCfg struct {
	EstablishmentsFile string `yaml:"establishments_file" json:"establishments_file"`
	PartitionsDir      string `yaml:"partitions_dir" json:"partitions_dir"`
	MaxRetries         int    `yaml:"max_retries" json:"max_retries"`
}

// SearchCfg points at the Meilisearch instance serving fts_candidates.
type SearchCfg struct {
	Host   string `yaml:"host" json:"host"`
	APIKey string `yaml:"api_key" json:"api_key"`
}

// LLMCfg configures the normalize/arbitrate adapter endpoint. The
// credential itself is never configured here — it comes from the
// environment per §6.
type LLMCfg struct {
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Model    string `yaml:"model" json:"model"`
}

// Cfg is the full set of options §6 recognizes.
type Cfg struct {
	Workers                  int         `yaml:"workers" json:"workers"`
	BatchSize                int         `yaml:"batch_size" json:"batch_size"`
	Limit                    int         `yaml:"limit" json:"limit"`
	RetryErrors              bool        `yaml:"retry_errors" json:"retry_errors"`
	CheckpointPath           string      `yaml:"checkpoint_path" json:"checkpoint_path"`
	ModelBackedNormalization bool        `yaml:"model_backed_normalization" json:"model_backed_normalization"`
	LLMMinIntervalMs         int         `yaml:"llm_min_interval_ms" json:"llm_min_interval_ms"`
	NormalizerCacheSize      int         `yaml:"normalizer_cache_size" json:"normalizer_cache_size"`
	Registry                 RegistryCfg `yaml:"registry" json:"registry"`
	Search                   SearchCfg   `yaml:"search" json:"search"`
	LLM                      LLMCfg      `yaml:"llm" json:"llm"`
}

// C is the process-wide loaded configuration, populated by Load.
var C Cfg

func defaults() Cfg {
	return Cfg{
		Workers:                  runtime.NumCPU(),
		BatchSize:                100,
		RetryErrors:              false,
		CheckpointPath:           "checkpoint.db",
		ModelBackedNormalization: true,
		LLMMinIntervalMs:         200,
		NormalizerCacheSize:      4096,
		Registry: RegistryCfg{
			MaxRetries: 3,
		},
	}
}

// Load reads path, falling back to defaults for anything the file omits,
// then applies environment overrides.
func Load(path string) error {
	C = defaults()

	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, &C); err != nil {
		return err
	}

	applyEnvOverrides()
	return nil
}

func applyEnvOverrides() {
	if v := os.Getenv("RESOLVER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			C.Workers = n
		}
	}
	if v := os.Getenv("RESOLVER_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			C.Limit = n
		}
	}
	if v := os.Getenv("RESOLVER_RETRY_ERRORS"); v != "" {
		C.RetryErrors = v == "1" || v == "true"
	}
	if v := os.Getenv("RESOLVER_MODEL_BACKED_NORMALIZATION"); v != "" {
		C.ModelBackedNormalization = v == "1" || v == "true"
	}
	if v := os.Getenv("RESOLVER_CHECKPOINT_PATH"); v != "" {
		C.CheckpointPath = v
	}
}
