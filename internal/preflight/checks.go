package preflight

import (
	"errors"
	"io/fs"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/disk"
)

var diskUsage = disk.Usage

// CheckDirectoryAccess verifies that path is a directory the current user
// can list and write into. Free space is reported when the filesystem
// exposes it.
func CheckDirectoryAccess(name, path string) Result {
	fail := func(problem string) Result {
		return Result{Name: name, Detail: path + " (" + problem + ")"}
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fail("does not exist")
	case err != nil:
		return fail("stat: " + err.Error())
	case !info.IsDir():
		return fail("not a directory")
	}
	if err := checkAccess(path); err != nil {
		return fail("insufficient permissions: " + err.Error())
	}
	detail := path + " (read/write ok"
	if usage, err := diskUsage(path); err == nil && usage != nil {
		detail += ", " + humanize.IBytes(usage.Free) + " free"
	}
	return Result{Name: name, Passed: true, Detail: detail + ")"}
}
