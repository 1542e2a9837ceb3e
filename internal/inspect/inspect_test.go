package inspect_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"reencode/internal/codec"
	"reencode/internal/config"
	"reencode/internal/inspect"
	"reencode/internal/inspect/mocks"
)

func family(t *testing.T, name string) codec.Family {
	t.Helper()
	f, ok := codec.Lookup(name)
	require.True(t, ok)
	return f
}

func TestHasFamily(t *testing.T) {
	tests := []struct {
		name   string
		codecs []string
		target string
		want   bool
	}{
		{"ffprobe hevc", []string{"hevc"}, "hevc", true},
		{"mediainfo matroska hevc", []string{"V_MPEGH/ISO/HEVC"}, "hevc", true},
		{"mp4 hev1 tag", []string{"hev1"}, "hevc", true},
		{"av1 satisfies hevc", []string{"av1"}, "hevc", true},
		{"h264 needs work", []string{"h264"}, "hevc", false},
		{"any track matches", []string{"mpeg4", "hevc"}, "hevc", true},
		{"no video tracks", nil, "hevc", false},
		{"h264 target", []string{"avc1"}, "h264", true},
		{"hevc is not av1", []string{"hevc"}, "av1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			insp := mocks.NewMockInspector(ctrl)
			insp.EXPECT().VideoCodecs(gomock.Any(), "/m/f.mkv").Return(tt.codecs, nil)

			got, codecs, err := inspect.HasFamily(context.Background(), insp, "/m/f.mkv", family(t, tt.target))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.codecs, codecs)
		})
	}
}

func TestHasFamilyPropagatesProbeError(t *testing.T) {
	ctrl := gomock.NewController(t)
	insp := mocks.NewMockInspector(ctrl)
	boom := errors.New("moov atom not found")
	insp.EXPECT().VideoCodecs(gomock.Any(), gomock.Any()).Return(nil, boom)

	_, _, err := inspect.HasFamily(context.Background(), insp, "/m/broken.mp4", family(t, "hevc"))
	assert.ErrorIs(t, err, boom)
}

func TestNewSelectsBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.FFprobe = "/opt/ffprobe"
	insp, err := inspect.New(&cfg)
	require.NoError(t, err)
	assert.Equal(t, inspect.FFprobe{Binary: "/opt/ffprobe"}, insp)

	cfg.Encoding.Inspector = config.InspectorMediaInfo
	insp, err = inspect.New(&cfg)
	require.NoError(t, err)
	assert.IsType(t, inspect.MediaInfo{}, insp)

	cfg.Encoding.Inspector = "exiftool"
	_, err = inspect.New(&cfg)
	assert.Error(t, err)
}
