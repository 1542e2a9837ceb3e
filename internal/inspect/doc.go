// Package inspect decides whether a file already uses the target codec.
//
// Two backends implement Inspector: ffprobe (default) and mediainfo. Both
// return raw codec identifiers; codec.Family does the alias matching so the
// same rules apply whichever tool produced the names.
//
//go:generate mockgen -source=inspect.go -destination=mocks/inspector.go -package=mocks
package inspect
