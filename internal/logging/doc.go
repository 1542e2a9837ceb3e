// Package logging assembles structured slog loggers and formatting helpers.
//
// It owns the console and JSON handlers, level and output plumbing, per-run
// JSON logs, and context-aware helpers that tag lines with the run ID, the
// file being processed and the current stage. A no-op logger is provided for
// tests and wiring code that cannot fail.
package logging
