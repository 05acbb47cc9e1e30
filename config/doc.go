// Package config loads SpecuLab engine configuration from YAML files,
// .env files, and environment variables (in that order of precedence,
// environment winning).
//
//	cfg, err := config.Load(config.WithConfigFile("speculab.yml"))
//	if err != nil { ... }
//	logger.Init(cfg.Logging)
package config
