// Package batch walks media directories and re-encodes what needs it.
//
// A Processor takes one path through stat checks, the extension filter, the
// codec inspector, output allocation and the encoder, and always returns a
// Result: Processed, Skipped or Failed. Per-file problems never escape the
// file boundary; even a panic becomes a skip.
//
// A Walker applies a FileProcessor to a directory (Dir) or a tree (Tree,
// pre-order, sorted). Files of one directory may be fanned out to several
// workers; reports keep sorted order either way. Totals accumulate across
// the whole run and a Recorder may persist each result.
package batch
