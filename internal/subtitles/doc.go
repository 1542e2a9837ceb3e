// Package subtitles embeds SRT sidecar files into MP4 containers as mov_text
// tracks and performs basic sanity checks on SRT content beforehand.
package subtitles
