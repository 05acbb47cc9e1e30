package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "SPECULAB"

// LoaderConfig holds optional file overrides for Load.
type LoaderConfig struct {
	ConfigFile string // explicit config file path
	EnvFile    string // explicit .env file path
}

// LoaderOption is a functional option for Load.
type LoaderOption func(*LoaderConfig)

// WithConfigFile sets an explicit config file path.
func WithConfigFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.ConfigFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) LoaderOption {
	return func(lc *LoaderConfig) { lc.EnvFile = path }
}

// Load reads engine configuration from a YAML file, a .env file, and
// SPECULAB_* environment variables, applies defaults, and validates the
// result. Missing files are not an error; the defaults stand in.
func Load(opts ...LoaderOption) (EngineConfig, error) {
	var lc LoaderConfig
	for _, opt := range opts {
		opt(&lc)
	}
	if lc.ConfigFile == "" {
		lc.ConfigFile = findConfigFile()
	}
	if lc.EnvFile == "" {
		lc.EnvFile = findEnvFile()
	}

	if lc.EnvFile != "" && exists(lc.EnvFile) {
		if err := godotenv.Load(lc.EnvFile); err != nil {
			return EngineConfig{}, fmt.Errorf("loading env file %s: %w", lc.EnvFile, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if lc.ConfigFile != "" && exists(lc.ConfigFile) {
		v.SetConfigFile(lc.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return EngineConfig{}, fmt.Errorf("reading config file %s: %w", lc.ConfigFile, err)
		}
	}

	var cfg EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return EngineConfig{}, err
	}
	return cfg, nil
}

// bindEnvKeys registers every config key with viper so AutomaticEnv can
// resolve it even when the key is absent from the YAML file.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"name",
		"environment",
		"preview_count",
		"default_chunk_size",
		"max_workers",
		"logging.level",
		"logging.format",
		"logging.output",
		"logging.no_color",
		"logging.service_name",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

// findConfigFile searches standard locations for a config file.
func findConfigFile() string {
	searchPaths := []string{
		"./speculab.yml",
		"./speculab.yaml",
		"./config/speculab.yml",
		"./config.yml",
	}
	for _, path := range searchPaths {
		if exists(path) {
			return path
		}
	}
	return ""
}

// findEnvFile searches standard locations for a .env file.
func findEnvFile() string {
	for _, path := range []string{".env.speculab", ".env"} {
		if exists(path) {
			return path
		}
	}
	return ""
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
