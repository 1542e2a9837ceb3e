package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reencode/internal/codec"
)

func TestLookupByNameAndAlias(t *testing.T) {
	cases := map[string]string{
		"hevc":             "hevc",
		"HEVC":             "hevc",
		"x265":             "hevc",
		"V_MPEGH/ISO/HEVC": "hevc",
		"hev1":             "hevc",
		"avc1":             "h264",
		"libx264":          "h264",
		"av1":              "av1",
		"libsvtav1":        "av1",
	}
	for input, want := range cases {
		f, ok := codec.Lookup(input)
		require.True(t, ok, input)
		assert.Equal(t, want, f.Name, input)
	}

	_, ok := codec.Lookup("mpeg2video")
	assert.False(t, ok)
	_, ok = codec.Lookup("  ")
	assert.False(t, ok)
}

func TestHEVCFamilyAcceptsAV1Sources(t *testing.T) {
	hevc, ok := codec.Lookup("hevc")
	require.True(t, ok)
	assert.True(t, hevc.Matches("av1"))
	assert.True(t, hevc.MatchesAny([]string{"mjpeg", "hvc1"}))
	assert.False(t, hevc.MatchesAny([]string{"h264", "mjpeg"}))
	assert.Equal(t, "libx265", hevc.Encoder)
}

func TestFamilyNames(t *testing.T) {
	assert.Equal(t, []string{"hevc", "h264", "av1"}, codec.FamilyNames())
}

func TestDisplayName(t *testing.T) {
	h264, _ := codec.Lookup("h264")
	assert.Equal(t, "H.264", h264.DisplayName())
	hevc, _ := codec.Lookup("hevc")
	assert.Equal(t, "HEVC", hevc.DisplayName())
	assert.Equal(t, "Vp9", codec.Family{Name: "vp9"}.DisplayName())
}
