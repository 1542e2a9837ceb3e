// Package verify decodes media files end to end and counts the errors ffmpeg
// reports along the way.
package verify
