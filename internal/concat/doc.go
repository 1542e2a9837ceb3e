// Package concat joins compatible media files without re-encoding.
//
// Inputs are probed and compared stream by stream against the first one;
// any difference is reported as a *MismatchError before ffmpeg runs. The
// joined file carries the first input's global metadata plus one chapter per
// input, named after the input's file stem.
package concat
