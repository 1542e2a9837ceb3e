package config

const (
	defaultConfigPath           = "~/.config/reencode/config.toml"
	defaultLogDir               = "~/.local/share/reencode/logs"
	defaultFFmpeg               = "ffmpeg"
	defaultFFprobe              = "ffprobe"
	defaultMediaInfo            = "mediainfo"
	defaultTarget               = "hevc"
	defaultAudioCodec           = "aac"
	defaultOutputExt            = "mp4"
	defaultBackend              = BackendFFmpeg
	defaultInspector            = InspectorFFprobe
	defaultIdleThresholdPercent = 2.0
	defaultIdleSamples          = 20
	defaultSampleInterval       = 1
	defaultKillGrace            = 2
	defaultPriorityMode         = PriorityModeChild
	defaultNice                 = 10
	defaultWorkers              = 1
	defaultHistoryFile          = "history.db"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultLogRetentionDays     = 30
)

// Encoder backends.
const (
	BackendFFmpeg = "ffmpeg"
	BackendDrapto = "drapto"
)

// Codec inspector backends.
const (
	InspectorFFprobe   = "ffprobe"
	InspectorMediaInfo = "mediainfo"
)

// Priority modes.
const (
	PriorityModeChild  = "child"
	PriorityModeParent = "parent"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir(),
		},
		Tools: Tools{
			FFmpeg:    defaultFFmpeg,
			FFprobe:   defaultFFprobe,
			MediaInfo: defaultMediaInfo,
		},
		Encoding: Encoding{
			Target:           defaultTarget,
			AudioCodec:       defaultAudioCodec,
			DefaultOutputExt: defaultOutputExt,
			EvenDimensions:   true,
			DeleteOriginal:   true,
			Backend:          defaultBackend,
			Inspector:        defaultInspector,
			Progress:         true,
		},
		Watchdog: Watchdog{
			IdleThresholdPercent:  defaultIdleThresholdPercent,
			IdleSamples:           defaultIdleSamples,
			SampleIntervalSeconds: defaultSampleInterval,
			KillGraceSeconds:      defaultKillGrace,
		},
		Priority: Priority{
			Enabled: true,
			Mode:    defaultPriorityMode,
			Nice:    defaultNice,
		},
		Batch: Batch{
			Workers: defaultWorkers,
			Lock:    true,
		},
		History: History{
			Enabled: true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
