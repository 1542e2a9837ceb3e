package subtitles

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reencode/internal/logging"
	"reencode/internal/services"
)

const sampleSRT = "\ufeff1\r\n00:00:01,500 --> 00:00:03,000\r\nHello\r\n\r\n" +
	"2\r\n00:01:00.250 --> 00:01:02,000 X1:10 X2:20\r\nWorld\r\n"

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestInspect(t *testing.T) {
	path := writeFile(t, t.TempDir(), "a.srt", sampleSRT)
	stats, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Cues)
	assert.InDelta(t, 1.5, stats.First, 0.001)
	assert.InDelta(t, 62.0, stats.Last, 0.001)
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, Validate(writeFile(t, dir, "ok.srt", sampleSRT)))
	assert.Equal(t, []string{"empty_subtitle_file"}, Validate(writeFile(t, dir, "empty.srt", " \n")))
	assert.Equal(t, []string{"no_valid_timestamps"}, Validate(writeFile(t, dir, "bad.srt", "1\nno timing\ntext\n")))
	issues := Validate(filepath.Join(dir, "missing.srt"))
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "read_error")
}

func TestParseTimestamp(t *testing.T) {
	got, err := parseTimestamp("01:02:03,004")
	require.NoError(t, err)
	assert.InDelta(t, 3723.004, got, 0.0001)
	for _, bad := range []string{"", "01:02:03", "1:2,3", "aa:bb:cc,dd"} {
		_, err := parseTimestamp(bad)
		assert.Error(t, err, bad)
	}
}

func TestDefaultOutput(t *testing.T) {
	assert.Equal(t, filepath.Join("v", "movie-embedded-sub.mp4"), DefaultOutput(filepath.Join("v", "movie.mp4")))
}

func TestEmbedRunsFFmpegAndRenames(t *testing.T) {
	dir := t.TempDir()
	video := writeFile(t, dir, "movie.mp4", "video")
	srt := writeFile(t, dir, "movie.srt", sampleSRT)

	var gotArgs []string
	e := NewEmbedder("ffmpeg", logging.NewNop())
	e.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		assert.Equal(t, "ffmpeg", name)
		gotArgs = args
		return os.WriteFile(args[len(args)-1], []byte("muxed"), 0o644)
	})

	res, err := e.Embed(context.Background(), Request{Video: video, SRT: srt})
	require.NoError(t, err)
	assert.Equal(t, DefaultOutput(video), res.Output)
	assert.Equal(t, 2, res.Cues)
	assert.Contains(t, gotArgs, "mov_text")
	assert.Contains(t, gotArgs, "UTF-8")

	data, err := os.ReadFile(res.Output)
	require.NoError(t, err)
	assert.Equal(t, "muxed", string(data))
	assert.NoFileExists(t, filepath.Join(dir, ".embed-movie-embedded-sub.mp4"))
}

func TestEmbedRefusesExistingOutput(t *testing.T) {
	dir := t.TempDir()
	video := writeFile(t, dir, "movie.mp4", "video")
	srt := writeFile(t, dir, "movie.srt", sampleSRT)
	out := writeFile(t, dir, "out.mp4", "keep")

	e := NewEmbedder("", nil)
	e.WithCommandRunner(func(context.Context, string, ...string) error {
		t.Fatal("ffmpeg must not run")
		return nil
	})
	_, err := e.Embed(context.Background(), Request{Video: video, SRT: srt, Output: out})
	assert.ErrorIs(t, err, services.ErrValidation)
}

func TestEmbedRejectsEmptySubtitles(t *testing.T) {
	dir := t.TempDir()
	video := writeFile(t, dir, "movie.mp4", "video")
	srt := writeFile(t, dir, "movie.srt", "")
	_, err := NewEmbedder("ffmpeg", nil).Embed(context.Background(), Request{Video: video, SRT: srt})
	assert.ErrorIs(t, err, services.ErrValidation)
	assert.Contains(t, err.Error(), "empty_subtitle_file")
}

func TestEmbedCleansUpOnFailure(t *testing.T) {
	dir := t.TempDir()
	video := writeFile(t, dir, "movie.mp4", "video")
	srt := writeFile(t, dir, "movie.srt", sampleSRT)
	boom := errors.New("exit status 1: Invalid argument")

	e := NewEmbedder("ffmpeg", nil)
	e.WithCommandRunner(func(_ context.Context, _ string, args ...string) error {
		_ = os.WriteFile(args[len(args)-1], []byte("partial"), 0o644)
		return boom
	})
	_, err := e.Embed(context.Background(), Request{Video: video, SRT: srt})
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, services.ErrExternalTool)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestEmbedMissingVideo(t *testing.T) {
	dir := t.TempDir()
	srt := writeFile(t, dir, "movie.srt", sampleSRT)
	_, err := NewEmbedder("ffmpeg", nil).Embed(context.Background(), Request{Video: filepath.Join(dir, "nope.mp4"), SRT: srt})
	assert.ErrorIs(t, err, services.ErrNotFound)
}
