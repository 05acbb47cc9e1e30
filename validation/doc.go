// Package validation provides input validation utilities for SpecuLab.
//
// It supports both struct tag validation (using the validator library) and
// programmatic validation with error collection. Struct tag validation is
// used for step descriptors and engine configuration.
//
// # Struct Tag Validation
//
//	type Step struct {
//	    Name    string `validate:"required"`
//	    Workers int    `validate:"min=0"`
//	}
//	err := validation.ValidateStruct(step)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Required("pattern", pattern)
//	err := v.Error()
package validation
