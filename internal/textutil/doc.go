// Package textutil formats byte counts for reports and turns arbitrary strings
// into filesystem-safe tokens.
//
// Byte deltas are rendered with English digit grouping so that per-file and
// per-directory totals line up in logs and tables.
package textutil
