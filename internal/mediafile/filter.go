package mediafile

import (
	"slices"
	"strings"
)

// DefaultExtensions is the built-in container allow-list.
var DefaultExtensions = []string{
	"3gp", "asf", "avi", "flv", "m2v", "m4v", "mkv", "mov", "mp4", "mpeg",
	"mpg", "ogm", "rm", "rmvb", "ts", "vob", "webm", "wmv", "xvid",
}

// DefaultOutputExt is used for every accepted input that is not already mkv.
const DefaultOutputExt = "mp4"

// Reject reasons reported by Classify.
const (
	ReasonNoExtension          = "no extension"
	ReasonUnsupportedExtension = "unsupported extension"
)

// Decision is the outcome of classifying a filename.
type Decision struct {
	Name      string
	Stem      string
	InputExt  string
	OutputExt string
	Reason    string
}

// Filter decides which filenames are processable and which container the
// output should use.
type Filter struct {
	extensions map[string]struct{}
	outputExt  string
}

// NewFilter builds a filter from the built-in list plus extra extensions.
// An empty outputExt selects DefaultOutputExt.
func NewFilter(outputExt string, extra ...string) *Filter {
	f := &Filter{extensions: make(map[string]struct{}, len(DefaultExtensions)+len(extra))}
	for _, ext := range DefaultExtensions {
		f.extensions[ext] = struct{}{}
	}
	for _, ext := range extra {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			f.extensions[ext] = struct{}{}
		}
	}
	f.outputExt = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(outputExt), "."))
	if f.outputExt == "" {
		f.outputExt = DefaultOutputExt
	}
	return f
}

// Classify splits name at its last dot and checks the extension against the
// allow-list. It never fails: a false result is a skip, with the reason set on
// the returned Decision.
func (f *Filter) Classify(name string) (Decision, bool) {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return Decision{Name: name, Stem: name, Reason: ReasonNoExtension}, false
	}
	d := Decision{
		Name:     name,
		Stem:     name[:idx],
		InputExt: name[idx+1:],
	}
	ext := strings.ToLower(d.InputExt)
	if _, ok := f.extensions[ext]; !ok || ext == "" {
		d.Reason = ReasonUnsupportedExtension
		return d, false
	}
	if ext == "mkv" {
		d.OutputExt = "mkv"
	} else {
		d.OutputExt = f.outputExt
	}
	return d, true
}

// Extensions returns the sorted allow-list.
func (f *Filter) Extensions() []string {
	out := make([]string, 0, len(f.extensions))
	for ext := range f.extensions {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

// Classify applies the default filter.
func Classify(name string) (Decision, bool) {
	return defaultFilter.Classify(name)
}

var defaultFilter = NewFilter(DefaultOutputExt)
