package mediainfo

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "creatingLibrary": {"name": "MediaLib", "version": "24.01"},
  "media": {
    "@ref": "clip.mkv",
    "track": [
      {"@type": "General", "Format": "Matroska", "Duration": "10.0"},
      {"@type": "Video", "Format": "HEVC", "CodecID": "V_MPEGH/ISO/HEVC", "FrameCount": "240", "FrameRate": "24.000"},
      {"@type": "Video", "Format": "AVC", "Format_Commercial_IfAny": "AVC High"},
      {"@type": "Video", "Format": "VP9"},
      {"@type": "Audio", "Format": "AAC", "CodecID": "A_AAC-2"}
    ]
  }
}`

func TestVideoCodecsPrefersCodecID(t *testing.T) {
	result, err := Parse([]byte(sampleJSON))
	require.NoError(t, err)
	assert.Equal(t, "clip.mkv", result.Media.Ref)
	assert.Equal(t, []string{"V_MPEGH/ISO/HEVC", "AVC High", "VP9"}, result.VideoCodecs())

	frames, ok := result.VideoTracks()[0].Frames()
	require.True(t, ok)
	assert.Equal(t, int64(240), frames)
	_, ok = result.VideoTracks()[1].Frames()
	assert.False(t, ok)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("{"))
	assert.ErrorContains(t, err, "mediainfo parse")
}

func TestInspectInvokesBinary(t *testing.T) {
	var captured []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		captured = append([]string{name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		return cmd
	}
	t.Cleanup(func() { commandContext = original })

	result, err := Inspect(context.Background(), "", "/media/clip.mkv")
	require.NoError(t, err)
	assert.Equal(t, []string{"mediainfo", "--Output=JSON", "/media/clip.mkv"}, captured)
	assert.Len(t, result.VideoTracks(), 3)
}

func TestInspectRequiresPath(t *testing.T) {
	_, err := Inspect(context.Background(), "mediainfo", "")
	assert.Error(t, err)
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	fmt.Fprint(os.Stdout, sampleJSON)
	os.Exit(0)
}
