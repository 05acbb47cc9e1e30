// Package steps provides the built-in step library: a file-listing
// source, frame transforms, and stacking sinks registered through the
// engine's registry API. They double as the reference calling
// convention for writing custom steps.
package steps
