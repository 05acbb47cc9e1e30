package config

import (
	"runtime"

	"github.com/ArcetriAdaptiveOptics/SpecuLab/logger"
	"github.com/ArcetriAdaptiveOptics/SpecuLab/validation"
)

// EngineConfig contains the tunable settings of the pipeline engine.
type EngineConfig struct {
	// Name tags log output and telemetry.
	Name string `yaml:"name" mapstructure:"name" json:"name"`
	// Environment is the deployment environment.
	Environment string `yaml:"environment" mapstructure:"environment" json:"environment" validate:"omitempty,oneof=development staging production"`
	// PreviewCount is how many leading items preview mode lets through
	// each source/transform stage. The original tooling truncated to one
	// item in some places and two in others; it is a single explicit
	// setting here.
	PreviewCount int `yaml:"preview_count" mapstructure:"preview_count" json:"preview_count" validate:"min=1"`
	// DefaultChunkSize groups items into chunks of this size before
	// dispatch to a worker pool when a step does not set its own.
	DefaultChunkSize int `yaml:"default_chunk_size" mapstructure:"default_chunk_size" json:"default_chunk_size" validate:"min=1"`
	// MaxWorkers caps the per-step parallelism degree.
	MaxWorkers int `yaml:"max_workers" mapstructure:"max_workers" json:"max_workers" validate:"min=1"`

	Logging logger.Config `yaml:"logging" mapstructure:"logging" json:"logging"`
}

// Default returns the engine configuration used when no file or
// environment overrides are present.
func Default() EngineConfig {
	cfg := EngineConfig{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults applies default values to unset fields.
func (c *EngineConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "speculab"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.PreviewCount == 0 {
		c.PreviewCount = 2
	}
	if c.DefaultChunkSize == 0 {
		c.DefaultChunkSize = 1
	}
	if c.MaxWorkers == 0 {
		c.MaxWorkers = runtime.NumCPU()
	}
	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = c.Name
	}
	c.Logging.ApplyDefaults()
}

// Validate validates the configuration.
func (c *EngineConfig) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	return c.Logging.Validate()
}
