package batch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"reencode/internal/batch"
	"reencode/internal/config"
	"reencode/internal/encoding"
	encmocks "reencode/internal/encoding/mocks"
	inspmocks "reencode/internal/inspect/mocks"
	"reencode/internal/services"
	"reencode/internal/testsupport"
)

type processorFixture struct {
	dir       string
	inspector *inspmocks.MockInspector
	encoder   *encmocks.MockEncoder
	proc      *batch.Processor
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *processorFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	cfg := testsupport.NewConfig(t, opts...)
	f := &processorFixture{
		dir:       t.TempDir(),
		inspector: inspmocks.NewMockInspector(ctrl),
		encoder:   encmocks.NewMockEncoder(ctrl),
	}
	proc, err := batch.NewProcessor(cfg, f.inspector, f.encoder)
	require.NoError(t, err)
	f.proc = proc
	return f
}

func (f *processorFixture) file(t *testing.T, name string, size int64) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	testsupport.WriteFile(t, path, size)
	return path
}

// encodeWrites makes the mock encoder produce an output of size bytes and a
// job log.
func encodeWrites(t *testing.T, size int64) func(context.Context, encoding.Request) error {
	return func(_ context.Context, req encoding.Request) error {
		testsupport.WriteFile(t, req.Output, size)
		testsupport.WriteFile(t, req.LogPath, 1)
		return nil
	}
}

func TestProcessSkipsBeforeInspecting(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Mkdir(filepath.Join(f.dir, "season.mkv"), 0o755))
	cases := map[string]string{
		filepath.Join(f.dir, "gone.avi"):   batch.ReasonMissing,
		filepath.Join(f.dir, "season.mkv"): batch.ReasonDirectory,
		f.file(t, "empty.mp4", 0):          batch.ReasonZeroSize,
		f.file(t, "notes.txt", 10):         "unsupported extension",
		f.file(t, "README", 10):            "no extension",
	}
	for path, reason := range cases {
		res := f.proc.Process(context.Background(), path)
		assert.Equal(t, batch.KindSkipped, res.Kind, path)
		assert.Equal(t, reason, res.Reason, path)
	}
}

func TestProcessSkipsProbeFailure(t *testing.T) {
	f := newFixture(t)
	path := f.file(t, "a.avi", 100)
	f.inspector.EXPECT().VideoCodecs(gomock.Any(), path).Return(nil, errors.New("moov atom not found"))

	res := f.proc.Process(context.Background(), path)
	assert.Equal(t, batch.KindSkipped, res.Kind)
	assert.Equal(t, "probe failed: moov atom not found", res.Reason)
}

func TestProcessSkipsAlreadyEfficient(t *testing.T) {
	for _, codecName := range []string{"hevc", "HEVC", "av1", "hvc1"} {
		f := newFixture(t)
		path := f.file(t, "a.mkv", 100)
		f.inspector.EXPECT().VideoCodecs(gomock.Any(), path).Return([]string{codecName}, nil)

		res := f.proc.Process(context.Background(), path)
		assert.Equal(t, batch.KindSkipped, res.Kind, codecName)
		assert.Equal(t, "already hevc", res.Reason, codecName)
	}
}

func TestProcessSkipsWithoutVideo(t *testing.T) {
	f := newFixture(t)
	path := f.file(t, "a.mp4", 100)
	f.inspector.EXPECT().VideoCodecs(gomock.Any(), path).Return(nil, nil)

	res := f.proc.Process(context.Background(), path)
	assert.Equal(t, "no video stream", res.Reason)
}

func TestProcessEncodesAndReplaces(t *testing.T) {
	f := newFixture(t)
	path := f.file(t, "movie.avi", 100)
	want := filepath.Join(f.dir, "movie.mp4")
	f.inspector.EXPECT().VideoCodecs(gomock.Any(), path).Return([]string{"mpeg4"}, nil)
	f.encoder.EXPECT().Encode(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, req encoding.Request) error {
		assert.Equal(t, path, req.Input)
		assert.Equal(t, want, req.Output)
		assert.Equal(t, "libx265", req.VideoEncoder)
		file, ok := services.FileFromContext(ctx)
		assert.True(t, ok)
		assert.Equal(t, path, file)
		return encodeWrites(t, 40)(ctx, req)
	})

	res := f.proc.Process(context.Background(), path)
	require.Equal(t, batch.KindProcessed, res.Kind, res.Reason)
	assert.Equal(t, want, res.Output)
	assert.Equal(t, int64(100), res.Before)
	assert.Equal(t, int64(40), res.After)
	assert.Equal(t, int64(-60), res.Delta)
	assert.NoFileExists(t, path)
	assert.NoFileExists(t, encoding.LogPathFor(path))
	assert.FileExists(t, want)
}

func TestProcessRenamesSuffixedOutputOverOriginal(t *testing.T) {
	f := newFixture(t)
	path := f.file(t, "clip.mp4", 100)
	f.inspector.EXPECT().VideoCodecs(gomock.Any(), path).Return([]string{"h264"}, nil)
	f.encoder.EXPECT().Encode(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, req encoding.Request) error {
		assert.Equal(t, filepath.Join(f.dir, "clip-1.mp4"), req.Output)
		return encodeWrites(t, 30)(ctx, req)
	})

	res := f.proc.Process(context.Background(), path)
	require.Equal(t, batch.KindProcessed, res.Kind)
	assert.Equal(t, path, res.Output)
	assert.NoFileExists(t, filepath.Join(f.dir, "clip-1.mp4"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(30), info.Size())
}

func TestProcessRenamesSuffixedOutputOverInputWhenStemIsShared(t *testing.T) {
	f := newFixture(t)
	path := f.file(t, "clip.avi", 100)
	other := f.file(t, "clip.mp4", 7)
	f.inspector.EXPECT().VideoCodecs(gomock.Any(), path).Return([]string{"mpeg4"}, nil)
	f.encoder.EXPECT().Encode(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, req encoding.Request) error {
		assert.Equal(t, filepath.Join(f.dir, "clip-1.mp4"), req.Output)
		return encodeWrites(t, 30)(ctx, req)
	})

	res := f.proc.Process(context.Background(), path)
	require.Equal(t, batch.KindProcessed, res.Kind)
	assert.Equal(t, path, res.Output)
	assert.NoFileExists(t, filepath.Join(f.dir, "clip-1.mp4"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(30), info.Size())
	info, err = os.Stat(other)
	require.NoError(t, err)
	assert.Equal(t, int64(7), info.Size(), "unrelated file untouched")
}

func TestWalkerWorkersNeverShareAnOutput(t *testing.T) {
	f := newFixture(t)
	avi := f.file(t, "a.avi", 100)
	mov := f.file(t, "a.mov", 100)
	f.inspector.EXPECT().VideoCodecs(gomock.Any(), gomock.Any()).Return([]string{"mpeg4"}, nil).Times(2)

	// Both encodes overlap so neither finalizes before the other allocates.
	var started sync.WaitGroup
	started.Add(2)
	f.encoder.EXPECT().Encode(gomock.Any(), gomock.Any()).Times(2).DoAndReturn(func(_ context.Context, req encoding.Request) error {
		started.Done()
		waitTimeout(t, &started, 5*time.Second)
		return os.WriteFile(req.Output, []byte("encoded "+filepath.Base(req.Input)), 0o644)
	})

	w := batch.NewWalker(f.proc, batch.WithWorkers(2))
	report, err := w.Dir(context.Background(), f.dir)
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	outputs := map[string]string{}
	for _, res := range report.Results {
		require.Equal(t, batch.KindProcessed, res.Kind, res.Reason)
		data, err := os.ReadFile(res.Output)
		require.NoError(t, err)
		assert.Equal(t, "encoded "+filepath.Base(res.Path), string(data))
		outputs[res.Output] = res.Path
	}
	assert.Len(t, outputs, 2, "each input has its own output")
	assert.ElementsMatch(t, []string{avi, mov}, []string{outputs[report.Results[0].Output], outputs[report.Results[1].Output]})
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Error("encodes did not overlap")
	}
}

func TestProcessKeepOriginal(t *testing.T) {
	f := newFixture(t, testsupport.WithKeepOriginal())
	path := f.file(t, "clip.mp4", 100)
	f.inspector.EXPECT().VideoCodecs(gomock.Any(), path).Return([]string{"h264"}, nil)
	f.encoder.EXPECT().Encode(gomock.Any(), gomock.Any()).DoAndReturn(encodeWrites(t, 30))

	res := f.proc.Process(context.Background(), path)
	require.Equal(t, batch.KindProcessed, res.Kind)
	assert.FileExists(t, path)
	assert.Equal(t, filepath.Join(f.dir, "clip-1.mp4"), res.Output)
}

func TestProcessEncoderFailure(t *testing.T) {
	f := newFixture(t)
	path := f.file(t, "a.avi", 100)
	stalled := services.Wrap(services.ErrStalled, "supervisor", "watchdog", "idle", nil)
	f.inspector.EXPECT().VideoCodecs(gomock.Any(), path).Return([]string{"mpeg4"}, nil)
	f.encoder.EXPECT().Encode(gomock.Any(), gomock.Any()).Return(stalled)

	res := f.proc.Process(context.Background(), path)
	assert.Equal(t, batch.KindFailed, res.Kind)
	assert.ErrorIs(t, res.Err, services.ErrStalled)
	assert.Zero(t, res.Delta)
	assert.FileExists(t, path)
	assert.NoFileExists(t, filepath.Join(f.dir, "a.mp4"), "empty reservation released")
}

func TestProcessEncoderSuccessWithoutOutput(t *testing.T) {
	f := newFixture(t)
	path := f.file(t, "a.avi", 100)
	f.inspector.EXPECT().VideoCodecs(gomock.Any(), path).Return([]string{"mpeg4"}, nil)
	f.encoder.EXPECT().Encode(gomock.Any(), gomock.Any()).Return(nil)

	res := f.proc.Process(context.Background(), path)
	assert.Equal(t, batch.KindFailed, res.Kind)
	assert.FileExists(t, path)
	assert.NoFileExists(t, filepath.Join(f.dir, "a.mp4"))
}

func TestProcessRecoversPanics(t *testing.T) {
	f := newFixture(t)
	path := f.file(t, "a.avi", 100)
	f.inspector.EXPECT().VideoCodecs(gomock.Any(), path).DoAndReturn(func(context.Context, string) ([]string, error) {
		panic("index out of range")
	})

	res := f.proc.Process(context.Background(), path)
	assert.Equal(t, batch.KindSkipped, res.Kind)
	assert.Equal(t, "unexpected error: index out of range", res.Reason)
	assert.FileExists(t, path)
}

func TestDraptoBackendWritesMatroska(t *testing.T) {
	f := newFixture(t, testsupport.WithBackend(encoding.BackendDrapto))
	path := f.file(t, "a.avi", 100)
	f.inspector.EXPECT().VideoCodecs(gomock.Any(), path).Return([]string{"mpeg4"}, nil)
	f.encoder.EXPECT().Encode(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, req encoding.Request) error {
		assert.Equal(t, filepath.Join(f.dir, "a.mkv"), req.Output)
		return encodeWrites(t, 10)(ctx, req)
	})
	res := f.proc.Process(context.Background(), path)
	assert.Equal(t, batch.KindProcessed, res.Kind)
}

func TestNewProcessorRejectsUnknownTarget(t *testing.T) {
	ctrl := gomock.NewController(t)
	cfg := config.Default()
	cfg.Encoding.Target = "theora"
	_, err := batch.NewProcessor(&cfg, inspmocks.NewMockInspector(ctrl), encmocks.NewMockEncoder(ctrl))
	assert.ErrorIs(t, err, services.ErrConfiguration)
}
