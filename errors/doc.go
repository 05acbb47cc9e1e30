// Package errors provides unified error handling for SpecuLab.
// It implements structured error types with machine-readable codes
// and optional detail maps for diagnostics.
package errors
