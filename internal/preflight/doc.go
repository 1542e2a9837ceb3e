// Package preflight provides readiness checks for the binaries and paths a
// convert run depends on.
//
// The convert command calls RunAll before walking a tree and aborts when a
// required check fails, so a missing ffmpeg surfaces once instead of as a
// failure for every file. The deps command uses CheckSystemDeps directly.
package preflight
