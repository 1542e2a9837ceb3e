package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reencode/internal/config"
	"reencode/internal/testsupport"
)

func TestCheckDirectoryAccess(t *testing.T) {
	assert.True(t, CheckDirectoryAccess("test", t.TempDir()).Passed)

	missing := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	assert.False(t, missing.Passed)
	assert.Contains(t, missing.Detail, "does not exist")

	f := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))
	notDir := CheckDirectoryAccess("test", f)
	assert.False(t, notDir.Passed)
	assert.Contains(t, notDir.Detail, "not a directory")
}

func TestCheckDirectoryAccessReportsFreeSpace(t *testing.T) {
	orig := diskUsage
	t.Cleanup(func() { diskUsage = orig })
	diskUsage = func(string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Free: 3 << 30}, nil
	}
	r := CheckDirectoryAccess("media", t.TempDir())
	require.True(t, r.Passed)
	assert.Contains(t, r.Detail, "read/write ok, 3.0 GiB free")

	diskUsage = func(string) (*disk.UsageStat, error) { return nil, errors.New("unsupported") }
	r = CheckDirectoryAccess("media", t.TempDir())
	require.True(t, r.Passed)
	assert.True(t, strings.HasSuffix(r.Detail, "(read/write ok)"))
}

func TestRunAllNilConfig(t *testing.T) {
	assert.Nil(t, RunAll(context.Background(), nil, "."))
}

func TestRunAllWithFakeTools(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs")
	}
	cfg := testsupport.NewConfig(t, testsupport.WithFakeTools())
	require.NoError(t, cfg.EnsureDirectories())

	results := RunAll(context.Background(), cfg, t.TempDir())
	assert.Empty(t, Failed(results))
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
	}
	assert.Contains(t, names, "FFmpeg")
	assert.Contains(t, names, "FFprobe")
	assert.NotContains(t, names, "MediaInfo")
}

func TestRunAllReportsMissingBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Tools.FFmpeg = filepath.Join(t.TempDir(), "no-ffmpeg")
	require.NoError(t, cfg.EnsureDirectories())
	failed := Failed(RunAll(context.Background(), cfg, t.TempDir()))
	require.NotEmpty(t, failed)
	assert.Equal(t, "FFmpeg", failed[0].Name)
}

func TestRequirementsFollowInspector(t *testing.T) {
	cfg := config.Default()
	cfg.Encoding.Inspector = config.InspectorMediaInfo
	reqs := Requirements(&cfg)
	require.Len(t, reqs, 3)
	assert.False(t, reqs[2].Optional)
	assert.False(t, reqs[1].Optional)

	cfg.Encoding.Backend = config.BackendDrapto
	assert.True(t, Requirements(&cfg)[1].Optional)
}
