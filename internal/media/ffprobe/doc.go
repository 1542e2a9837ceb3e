// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video/subtitle stream properties, including
//     disposition flags and tags
//   - Format: container-level metadata (duration, size, bitrate)
//
// Primary entry points:
//   - Inspect: executes ffprobe and returns parsed Result
//   - Metadata: dumps global metadata in ffmetadata form via ffmpeg
//
// Helper methods on Result provide stream counts, cover-art filtering,
// duration parsing and frame count estimation.
package ffprobe
