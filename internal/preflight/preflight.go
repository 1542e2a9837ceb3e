package preflight

import (
	"context"

	"reencode/internal/config"
	"reencode/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes the checks a convert run needs before touching root.
func RunAll(ctx context.Context, cfg *config.Config, root string) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{CheckDirectoryAccess("Media directory", root)}
	if cfg.Batch.Lock || cfg.History.Enabled {
		results = append(results, CheckDirectoryAccess("State directory", cfg.Paths.StateDir))
	}
	for _, status := range CheckSystemDeps(ctx, cfg) {
		if status.Optional {
			continue
		}
		r := Result{Name: status.Name, Passed: status.Available, Detail: status.Path}
		if !status.Available {
			r.Detail = status.Detail
		}
		results = append(results, r)
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

// CheckSystemDeps evaluates the external binaries for the given config. The
// deps command and RunAll share this list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(ctx, Requirements(cfg))
}

// Requirements lists the binaries the configured pipeline uses. Which ones
// are optional depends on the inspector and backend.
func Requirements(cfg *config.Config) []deps.Requirement {
	draptoBackend := cfg.Encoding.Backend == config.BackendDrapto
	return []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for encoding, concat, remux and checks",
			VersionArg:  "-version",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for codec inspection and progress totals",
			Optional:    cfg.Encoding.Inspector == config.InspectorMediaInfo && draptoBackend,
			VersionArg:  "-version",
		},
		{
			Name:        "MediaInfo",
			Command:     cfg.MediaInfoBinary(),
			Description: "Alternative codec inspector",
			Optional:    cfg.Encoding.Inspector != config.InspectorMediaInfo,
			VersionArg:  "--Version",
		},
	}
}
