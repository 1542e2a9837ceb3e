package ffprobe

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080,
     "avg_frame_rate": "24/1", "nb_frames": "2400", "disposition": {"default": 1, "attached_pic": 0}},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "channel_layout": "stereo", "sample_rate": "48000", "channels": 2},
    {"index": 2, "codec_name": "mjpeg", "codec_type": "video", "width": 600, "height": 600,
     "disposition": {"attached_pic": 1}, "tags": {"filename": "cover.jpg"}}
  ],
  "format": {"filename": "movie.mkv", "nb_streams": 3, "duration": "100.0", "size": "1000", "bit_rate": "32000", "format_name": "matroska,webm"}
}`

func TestResultHelpers(t *testing.T) {
	result, err := Parse([]byte(sampleJSON))
	require.NoError(t, err)

	assert.Equal(t, 1, result.VideoStreamCount(), "cover art is not a video stream")
	assert.Equal(t, []string{"h264"}, result.VideoCodecs())
	assert.Equal(t, 1, result.AudioStreamCount())
	assert.Equal(t, 100.0, result.DurationSeconds())
	assert.Equal(t, int64(1000), result.SizeBytes())
	assert.Equal(t, int64(32000), result.BitRate())
	assert.JSONEq(t, sampleJSON, string(result.RawJSON()))

	frames, ok := result.TotalFrames()
	require.True(t, ok)
	assert.Equal(t, int64(2400), frames)
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Format: Format{
			Duration: "bad",
			Size:     "-1",
			BitRate:  "nope",
		},
	}
	assert.True(t, math.IsNaN(result.DurationSeconds()))
	assert.Zero(t, result.SizeBytes())
	assert.Zero(t, result.BitRate())
	_, ok := result.TotalFrames()
	assert.False(t, ok)
}

func TestTotalFramesUsesContainerDurationForWebM(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecName: "vp9", CodecType: "video", AvgFrameRate: "25/1"}},
		Format:  Format{Duration: "4.0"},
	}
	frames, ok := result.TotalFrames()
	require.True(t, ok)
	assert.Equal(t, int64(100), frames)
}

func TestStreamTagAndField(t *testing.T) {
	s := Stream{
		CodecType:     "audio",
		CodecName:     "opus",
		ChannelLayout: "5.1",
		SampleRate:    "48000",
		Width:         0,
		Tags:          map[string]string{"duration": "00:00:01.000000000"},
	}
	assert.Equal(t, "00:00:01.000000000", s.Tag("DURATION"))
	assert.Equal(t, "5.1", s.Field("channel_layout"))
	assert.Equal(t, "48000", s.Field("sample_rate"))
	assert.Equal(t, "0", s.Field("width"))
	assert.Equal(t, "", s.Field("bogus"))
	assert.Equal(t, "00:00:01.000000000", s.Timing().TagDuration)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("not json"))
	assert.ErrorContains(t, err, "ffprobe parse")
}

func TestInspectRequiresPath(t *testing.T) {
	_, err := Inspect(context.Background(), "ffprobe", "  ")
	assert.Error(t, err)
}

func fakeCommand(t *testing.T, mode string, captured *[]string) {
	t.Helper()
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		if captured != nil {
			*captured = append([]string{name}, args...)
		}
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "FFPROBE_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() { commandContext = original })
}

func TestInspectRunsFFprobe(t *testing.T) {
	var args []string
	fakeCommand(t, "probe", &args)

	result, err := Inspect(context.Background(), "", "/media/movie.mkv")
	require.NoError(t, err)
	assert.Equal(t, []string{"ffprobe", "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", "/media/movie.mkv"}, args)
	assert.Equal(t, []string{"h264"}, result.VideoCodecs())
}

func TestInspectReportsFailure(t *testing.T) {
	fakeCommand(t, "fail", nil)
	_, err := Inspect(context.Background(), "ffprobe", "/media/broken.avi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid data found")
}

func TestMetadataDump(t *testing.T) {
	var args []string
	fakeCommand(t, "metadata", &args)
	meta, err := Metadata(context.Background(), "ffmpeg", "/media/a.mp4")
	require.NoError(t, err)
	assert.Equal(t, ";FFMETADATA1\ntitle=Part One\n", meta)
	assert.Equal(t, []string{"ffmpeg", "-v", "error", "-i", "/media/a.mp4", "-f", "ffmetadata", "-"}, args)
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	switch os.Getenv("FFPROBE_HELPER_MODE") {
	case "probe":
		fmt.Fprint(os.Stdout, sampleJSON)
		os.Exit(0)
	case "metadata":
		fmt.Fprint(os.Stdout, ";FFMETADATA1\ntitle=Part One\n")
		os.Exit(0)
	case "fail":
		fmt.Fprintln(os.Stderr, "/media/broken.avi: Invalid data found when processing input")
		os.Exit(1)
	}
	os.Exit(2)
}
