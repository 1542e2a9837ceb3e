// Package history keeps an audit log of batch runs in SQLite.
//
// Each run gets a UUID row in runs; every file result is appended to results
// as the walker reports it. Nothing reads history back into a run: a run
// always re-examines the tree from scratch.
package history
