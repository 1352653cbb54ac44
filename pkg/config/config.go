// Package config loads and validates runtime configuration for the ACE
// loop: which LLM provider to use, where the playbook lives and how it is
// stored, and how aggressively the adapters run.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/XiaoConstantine/ace-go/pkg/errors"
	"github.com/XiaoConstantine/ace-go/pkg/llm"
	"github.com/XiaoConstantine/ace-go/pkg/llms"
	"github.com/XiaoConstantine/ace-go/pkg/playbook"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Storage backends for playbook persistence.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// LLM providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderDummy     = "dummy"
)

// Config is the root configuration document.
type Config struct {
	LLM      LLMConfig      `yaml:"llm"`
	Playbook PlaybookConfig `yaml:"playbook"`
	Adapter  AdapterConfig  `yaml:"adapter"`
}

// LLMConfig selects and tunes the provider backing all three roles.
type LLMConfig struct {
	Provider    string  `yaml:"provider" validate:"required,ace_provider"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	MaxTokens   int     `yaml:"max_tokens" validate:"omitempty,gt=0"`
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=1"`
}

// PlaybookConfig says where the playbook persists and how duplicates are
// detected.
type PlaybookConfig struct {
	Path    string               `yaml:"path" validate:"required"`
	Backend string               `yaml:"backend" validate:"required,ace_backend"`
	Dedup   playbook.DedupConfig `yaml:"dedup"`
}

// AdapterConfig tunes the offline and online adapters.
type AdapterConfig struct {
	MaxConcurrency int `yaml:"max_concurrency" validate:"gte=1,lte=64"`
	Epochs         int `yaml:"epochs" validate:"gte=1,lte=100"`
	MaxOpsPerBatch int `yaml:"max_ops_per_batch" validate:"gte=1,lte=50"`
}

// Default returns a config that validates as-is: dummy provider, JSON
// storage, dedup off.
func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:    ProviderDummy,
			MaxTokens:   4096,
			Temperature: 0.7,
		},
		Playbook: PlaybookConfig{
			Path:    "playbook.json",
			Backend: BackendJSON,
			Dedup:   playbook.DefaultDedupConfig(),
		},
		Adapter: AdapterConfig{
			MaxConcurrency: 4,
			Epochs:         1,
			MaxOpsPerBatch: 10,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.InvalidInput, "failed to read config file"),
			errors.Fields{"path": path})
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WithFields(
			errors.Wrap(err, errors.InvalidInput, "failed to parse config file"),
			errors.Fields{"path": path})
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}
	must(v.RegisterValidation("ace_provider", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case ProviderAnthropic, ProviderDummy:
			return true
		}
		return false
	}))
	must(v.RegisterValidation("ace_backend", func(fl validator.FieldLevel) bool {
		switch strings.ToLower(fl.Field().String()) {
		case BackendJSON, BackendSQLite:
			return true
		}
		return false
	}))
	return v
}

// Validate checks struct tags plus the range rules the tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", e.Namespace(), e.Tag()))
			}
			return errors.New(errors.InvalidInput,
				"invalid configuration: "+strings.Join(msgs, "; "))
		}
		return errors.Wrap(err, errors.InvalidInput, "invalid configuration")
	}

	d := c.Playbook.Dedup
	if d.Enabled && (d.SimilarityThreshold <= 0 || d.SimilarityThreshold > 1) {
		return errors.WithFields(
			errors.New(errors.InvalidInput, "dedup similarity threshold must be in (0, 1]"),
			errors.Fields{"threshold": d.SimilarityThreshold})
	}
	if c.LLM.Provider == ProviderAnthropic && c.LLM.Model == "" {
		return errors.New(errors.InvalidInput, "anthropic provider requires a model")
	}
	return nil
}

// NewClient builds the LLM client the config describes.
func (c *Config) NewClient() (llm.Client, error) {
	switch strings.ToLower(c.LLM.Provider) {
	case ProviderDummy:
		return llm.NewDummyClient(), nil
	case ProviderAnthropic:
		opts := []llms.AnthropicOption{llms.WithTemperature(c.LLM.Temperature)}
		if c.LLM.MaxTokens > 0 {
			opts = append(opts, llms.WithMaxTokens(int64(c.LLM.MaxTokens)))
		}
		return llms.NewAnthropicClient(c.LLM.APIKey, anthropic.Model(c.LLM.Model), opts...)
	}
	return nil, errors.WithFields(
		errors.New(errors.InvalidInput, "unsupported provider"),
		errors.Fields{"provider": c.LLM.Provider})
}
