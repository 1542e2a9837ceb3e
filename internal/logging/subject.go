package logging

import (
	"path/filepath"
	"strings"
)

// FormatSubject builds the "file · stage" subject shown in console output.
// Only the base name of the file is displayed.
func FormatSubject(file, stage string) string {
	file = strings.TrimSpace(file)
	stage = strings.TrimSpace(stage)
	parts := make([]string, 0, 2)
	if file != "" {
		parts = append(parts, filepath.Base(file))
	}
	if stage != "" {
		parts = append(parts, stage)
	}
	return strings.Join(parts, " · ")
}
