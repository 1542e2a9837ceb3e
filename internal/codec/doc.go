// Package codec holds the codec family table used to decide whether a file
// already carries the target video codec, plus the table-driven frame count
// estimator used for progress reporting.
package codec
