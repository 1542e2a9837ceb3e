package encoding_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"reencode/internal/config"
	"reencode/internal/encoding"
	"reencode/internal/encoding/mocks"
	"reencode/internal/services"
	"reencode/internal/supervisor"
)

func TestFFmpegEncodeRunsSupervisedJob(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	req := encoding.Request{
		Input:        "/m/a.avi",
		Output:       "/m/a.mp4",
		LogPath:      "/m/a.avi.log",
		VideoEncoder: "libx265",
		AudioCodec:   "aac",
	}
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, job supervisor.Job) (supervisor.Outcome, error) {
		assert.Equal(t, "/opt/ffmpeg", job.Binary)
		assert.Equal(t, encoding.BuildArgs(req), job.Args)
		assert.Equal(t, "/m/a.avi.log", job.LogPath)
		assert.Equal(t, "/m/a.mp4", job.Output)
		assert.Nil(t, job.Progress)
		return supervisor.Outcome{State: supervisor.StateCompleted}, nil
	})

	enc := encoding.NewFFmpeg("/opt/ffmpeg", runner)
	require.NoError(t, enc.Encode(context.Background(), req))
}

func TestFFmpegEncodeReportsProgressToLog(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, job supervisor.Job) (supervisor.Outcome, error) {
		require.NotNil(t, job.Progress)
		assert.Contains(t, job.Args, "-progress")
		for _, frame := range []int{0, 100, 200} {
			_, _ = fmt.Fprintf(job.Progress, "frame=%d\nprogress=continue\n", frame)
		}
		_, _ = fmt.Fprint(job.Progress, "frame=200\nprogress=end\n")
		return supervisor.Outcome{State: supervisor.StateCompleted}, nil
	})

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	frames := func(context.Context, string) (int64, bool) { return 200, true }
	enc := encoding.NewFFmpeg("ffmpeg", runner,
		encoding.WithLogger(logger),
		encoding.WithFrameCounter(frames),
		encoding.WithTerminal(&bytes.Buffer{}),
	)
	err := enc.Encode(context.Background(), encoding.Request{Input: "a.avi", Output: "a.mp4", Progress: true})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, "Encoding 0.0%")
	assert.Contains(t, out, "Encoding 50.0%")
	assert.Contains(t, out, "Encoding 100.0%")
	assert.Contains(t, out, "progress_stage=finalizing")
}

func TestFFmpegEncodePropagatesStall(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	stalled := services.Wrap(services.ErrStalled, "supervisor", "watchdog", "idle", nil)
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).Return(supervisor.Outcome{State: supervisor.StateKilled}, stalled)

	err := encoding.NewFFmpeg("ffmpeg", runner).Encode(context.Background(), encoding.Request{Input: "a", Output: "b"})
	assert.ErrorIs(t, err, services.ErrStalled)
}

func TestFFmpegEncodeWithoutRunner(t *testing.T) {
	err := encoding.NewFFmpeg("ffmpeg", nil).Encode(context.Background(), encoding.Request{})
	assert.ErrorIs(t, err, services.ErrConfiguration)
}

func TestNewSelectsBackend(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := mocks.NewMockRunner(ctrl)
	cfg := config.Default()

	enc, err := encoding.New(&cfg, runner, nil)
	require.NoError(t, err)
	assert.IsType(t, &encoding.FFmpeg{}, enc)

	cfg.Encoding.Backend = "Drapto"
	enc, err = encoding.New(&cfg, runner, nil)
	require.NoError(t, err)
	assert.IsType(t, &encoding.Drapto{}, enc)

	cfg.Encoding.Backend = "handbrake"
	_, err = encoding.New(&cfg, runner, nil)
	assert.ErrorIs(t, err, services.ErrConfiguration)

	_, err = encoding.New(nil, runner, nil)
	assert.True(t, errors.Is(err, services.ErrConfiguration))
}
