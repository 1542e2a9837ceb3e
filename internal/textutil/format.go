package textutil

import (
	"github.com/dustin/go-humanize"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatDelta renders a signed byte change, e.g. "-12,345 bytes" or
// "+0 bytes".
func FormatDelta(delta int64) string {
	return printer.Sprintf("%+d bytes", delta)
}

// HumanDelta renders a signed byte change in IEC units, e.g. "-1.2 GiB".
func HumanDelta(delta int64) string {
	if delta < 0 {
		return "-" + humanize.IBytes(uint64(-delta))
	}
	return "+" + humanize.IBytes(uint64(delta))
}

// Percent renders part/whole as a percentage with one decimal, or "n/a" when
// whole is zero.
func Percent(part, whole int64) string {
	if whole == 0 {
		return "n/a"
	}
	return printer.Sprintf("%.1f%%", float64(part)*100/float64(whole))
}
