package batch_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reencode/internal/batch"
	"reencode/internal/encoding"
	"reencode/internal/inspect"
	"reencode/internal/supervisor"
	"reencode/internal/testsupport"
)

func TestConvertDirectoryWithFakeTools(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are shell scripts")
	}
	cfg := testsupport.NewConfig(t, testsupport.WithFakeTools())
	dir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(dir, "movie.avi"), 100)
	testsupport.WriteFile(t, filepath.Join(dir, "show.hevc.mkv"), 100)
	testsupport.WriteFile(t, filepath.Join(dir, "broken.avi"), 100)
	testsupport.WriteFile(t, filepath.Join(dir, "notes.txt"), 10)
	testsupport.WriteFile(t, filepath.Join(dir, "empty.mp4"), 0)

	insp, err := inspect.New(cfg)
	require.NoError(t, err)
	sup := supervisor.New(supervisor.ConfigFrom(cfg))
	enc, err := encoding.New(cfg, sup, nil)
	require.NoError(t, err)
	proc, err := batch.NewProcessor(cfg, insp, enc)
	require.NoError(t, err)
	walker := batch.NewWalker(proc)

	report, err := walker.Dir(context.Background(), dir)
	require.NoError(t, err)

	byName := map[string]batch.Result{}
	for _, r := range report.Results {
		byName[filepath.Base(r.Path)] = r
	}
	require.Len(t, byName, 5)

	movie := byName["movie.avi"]
	assert.Equal(t, batch.KindProcessed, movie.Kind, movie.Reason)
	assert.Equal(t, int64(testsupport.FakeEncodedSize-100), movie.Delta)
	assert.NoFileExists(t, filepath.Join(dir, "movie.avi"))
	assert.NoFileExists(t, filepath.Join(dir, "movie.avi.log"))
	assert.FileExists(t, filepath.Join(dir, "movie.mp4"))

	assert.Equal(t, batch.KindSkipped, byName["show.hevc.mkv"].Kind)
	assert.Equal(t, "already hevc", byName["show.hevc.mkv"].Reason)
	assert.Equal(t, batch.ReasonZeroSize, byName["empty.mp4"].Reason)
	assert.Equal(t, "unsupported extension", byName["notes.txt"].Reason)

	broken := byName["broken.avi"]
	assert.Equal(t, batch.KindFailed, broken.Kind)
	var exitErr *supervisor.ExitError
	assert.ErrorAs(t, broken.Err, &exitErr)
	assert.FileExists(t, filepath.Join(dir, "broken.avi"))
	logContent, err := os.ReadFile(filepath.Join(dir, "broken.avi.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logContent), "Invalid data found")

	totals := walker.Totals()
	assert.Equal(t, 1, totals.Processed)
	assert.Equal(t, 3, totals.Skipped)
	assert.Equal(t, 1, totals.Failed)
	assert.Equal(t, movie.Delta, totals.Delta)
}
