// Package remux rewraps Matroska files as MP4, copying every stream and
// converting text subtitles to mov_text.
package remux
