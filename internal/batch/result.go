package batch

import (
	"fmt"
	"time"
)

// Kind classifies the outcome of one file.
type Kind int

const (
	// KindProcessed means the file was re-encoded and replaced.
	KindProcessed Kind = iota + 1
	// KindSkipped means the file was left untouched on purpose.
	KindSkipped
	// KindFailed means an encode was attempted and did not produce output.
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindProcessed:
		return "processed"
	case KindSkipped:
		return "skipped"
	case KindFailed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Skip reasons.
const (
	ReasonMissing     = "file no longer present"
	ReasonDirectory   = "is a directory"
	ReasonZeroSize    = "is zero size"
	ReasonNotRegular  = "not a regular file"
	ReasonProbeFailed = "probe failed"
	ReasonUnexpected  = "unexpected error"
)

// Result is the per-file outcome. Delta is After - Before and only set for
// processed files.
type Result struct {
	Kind    Kind
	Path    string
	Output  string
	Reason  string
	Err     error
	Before  int64
	After   int64
	Delta   int64
	Elapsed time.Duration
}

// Processed builds a successful result.
func Processed(path, output string, before, after int64) Result {
	return Result{
		Kind:   KindProcessed,
		Path:   path,
		Output: output,
		Before: before,
		After:  after,
		Delta:  after - before,
	}
}

// Skipped builds a skip result.
func Skipped(path, reason string) Result {
	return Result{Kind: KindSkipped, Path: path, Reason: reason}
}

// Failed builds a failure result.
func Failed(path string, err error) Result {
	r := Result{Kind: KindFailed, Path: path, Err: err}
	if err != nil {
		r.Reason = err.Error()
	}
	return r
}
