package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeToken(t *testing.T) {
	cases := map[string]string{
		"":                   "unknown",
		"   ":                "unknown",
		"/srv/Media/Movies":  "srv_media_movies",
		"Amélie (2001)":      "amelie__2001",
		"__--":               "unknown",
		"Season-01_disc":     "season-01_disc",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeToken(in), in)
	}
}

func TestFormatDelta(t *testing.T) {
	assert.Equal(t, "-12,345 bytes", FormatDelta(-12345))
	assert.Equal(t, "+0 bytes", FormatDelta(0))
	assert.Equal(t, "+2,000 bytes", FormatDelta(2000))
}

func TestHumanDelta(t *testing.T) {
	assert.Equal(t, "-1.0 KiB", HumanDelta(-1024))
	assert.Equal(t, "+0 B", HumanDelta(0))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "n/a", Percent(1, 0))
	assert.Equal(t, "50.0%", Percent(1, 2))
}
