// Package encoding turns a source file into a re-encoded output.
//
// BuildArgs produces the ffmpeg argument vector for a Request. The FFmpeg
// backend runs that command under the supervisor's idle watchdog and, when
// progress is enabled, decodes ffmpeg's -progress stream into a terminal bar
// or sampled log lines. The Drapto backend hands AV1 encodes to the drapto
// library, staging its output next to the destination before moving it
// into place.
//
//go:generate mockgen -source=encoder.go -destination=mocks/encoder.go -package=mocks
package encoding
