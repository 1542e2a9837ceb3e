//go:build !unix

package preflight

import (
	"os"
	"path/filepath"
)

func checkAccess(path string) error {
	f, err := os.CreateTemp(path, ".reencode-access-")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(filepath.Clean(name))
}
