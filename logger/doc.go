// Package logger provides structured logging for SpecuLab built on zerolog.
//
// A single global logger serves package-level calls; components derive
// tagged child loggers with WithComponent:
//
//	log := logger.WithComponent("engine")
//	log.Info("running step", logger.Fields(logger.FieldStep, "diff"))
package logger
