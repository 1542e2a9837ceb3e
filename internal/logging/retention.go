package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// PruneRunLogs removes per-run logs under logDir/runs older than
// retentionDays. Zero disables pruning. Paths listed in keep are never
// removed. It returns the number of files deleted.
func PruneRunLogs(logger *slog.Logger, logDir string, retentionDays int, keep ...string) int {
	if retentionDays <= 0 || logDir == "" {
		return 0
	}
	return pruneOlderThan(logger, filepath.Join(logDir, "runs"), "*.log", time.Now().AddDate(0, 0, -retentionDays), keep)
}

func pruneOlderThan(logger *slog.Logger, dir, pattern string, cutoff time.Time, keep []string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	exclusions := make(map[string]struct{}, len(keep))
	for _, path := range keep {
		if abs, err := filepath.Abs(path); err == nil {
			exclusions[abs] = struct{}{}
		}
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if matched, err := filepath.Match(pattern, entry.Name()); err != nil || !matched {
			continue
		}
		fullPath := filepath.Join(dir, entry.Name())
		if abs, err := filepath.Abs(fullPath); err == nil {
			fullPath = abs
		}
		if _, skip := exclusions[fullPath]; skip {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(fullPath); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", fullPath),
				Error(err),
				String(FieldErrorHint, "check permissions on paths.log_dir"),
				String(FieldImpact, "old run log remains on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("run log pruned", String("path", fullPath), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}
