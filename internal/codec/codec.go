package codec

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Family groups every identifier spelling that refers to one video codec
// together with the ffmpeg encoder used to produce it.
type Family struct {
	Name    string
	Encoder string
	Aliases []string
}

// families is ordered; Lookup returns the first family claiming an alias.
// AV1 sources already satisfy an HEVC target, so "av1" is listed under hevc as
// well as under its own family.
var families = []Family{
	{
		Name:    "hevc",
		Encoder: "libx265",
		Aliases: []string{"hevc", "h265", "x265", "libx265", "hev1", "hvc1", "V_MPEGH/ISO/HEVC", "av1"},
	},
	{
		Name:    "h264",
		Encoder: "libx264",
		Aliases: []string{"h264", "avc", "avc1", "libx264", "V_MPEG4/ISO/AVC"},
	},
	{
		Name:    "av1",
		Encoder: "libsvtav1",
		Aliases: []string{"av1", "av01", "libsvtav1", "libaom-av1", "V_AV1"},
	},
}

// Lookup resolves a family by its name first, then by alias. Matching is
// case-insensitive.
func Lookup(name string) (Family, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Family{}, false
	}
	for _, f := range families {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	for _, f := range families {
		if f.Matches(name) {
			return f, true
		}
	}
	return Family{}, false
}

// FamilyNames lists the known family names in table order.
func FamilyNames() []string {
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.Name)
	}
	return names
}

// Matches reports whether id is one of the family's identifier spellings.
func (f Family) Matches(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" {
		return false
	}
	return slices.ContainsFunc(f.Aliases, func(alias string) bool {
		return strings.EqualFold(alias, id)
	})
}

// MatchesAny reports whether any of ids belongs to the family.
func (f Family) MatchesAny(ids []string) bool {
	return slices.ContainsFunc(ids, f.Matches)
}

// DisplayName renders the family name for user-facing output.
func (f Family) DisplayName() string {
	switch f.Name {
	case "hevc", "av1":
		return strings.ToUpper(f.Name)
	case "h264":
		return "H.264"
	default:
		return cases.Title(language.Und).String(f.Name)
	}
}
