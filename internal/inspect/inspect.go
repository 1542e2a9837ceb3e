package inspect

import (
	"context"
	"fmt"

	"reencode/internal/codec"
	"reencode/internal/config"
	"reencode/internal/media/ffprobe"
	"reencode/internal/media/mediainfo"
)

// Inspector reports the codec identifiers of a file's video tracks.
type Inspector interface {
	VideoCodecs(ctx context.Context, path string) ([]string, error)
}

// FFprobe inspects files with ffprobe. Cover art streams are ignored.
type FFprobe struct {
	Binary string
}

// VideoCodecs implements Inspector.
func (f FFprobe) VideoCodecs(ctx context.Context, path string) ([]string, error) {
	result, err := ffprobe.Inspect(ctx, f.Binary, path)
	if err != nil {
		return nil, err
	}
	return result.VideoCodecs(), nil
}

// MediaInfo inspects files with the mediainfo CLI.
type MediaInfo struct {
	Binary string
}

// VideoCodecs implements Inspector.
func (m MediaInfo) VideoCodecs(ctx context.Context, path string) ([]string, error) {
	result, err := mediainfo.Inspect(ctx, m.Binary, path)
	if err != nil {
		return nil, err
	}
	return result.VideoCodecs(), nil
}

// New selects the inspector configured in cfg.
func New(cfg *config.Config) (Inspector, error) {
	switch cfg.Encoding.Inspector {
	case config.InspectorFFprobe, "":
		return FFprobe{Binary: cfg.FFprobeBinary()}, nil
	case config.InspectorMediaInfo:
		return MediaInfo{Binary: cfg.MediaInfoBinary()}, nil
	default:
		return nil, fmt.Errorf("unknown inspector %q", cfg.Encoding.Inspector)
	}
}

// HasFamily reports whether any video track of path already belongs to
// family. The identifiers seen are returned for logging. A file with no video
// tracks never matches.
func HasFamily(ctx context.Context, insp Inspector, path string, family codec.Family) (bool, []string, error) {
	codecs, err := insp.VideoCodecs(ctx, path)
	if err != nil {
		return false, nil, err
	}
	return family.MatchesAny(codecs), codecs, nil
}

var (
	_ Inspector = FFprobe{}
	_ Inspector = MediaInfo{}
)
