package mediafile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// Allocation is a reserved output path. Temporary is set when the preferred
// name was occupied and a numeric suffix was used; the caller renames the
// result over the original once the job succeeds.
//
// The filesystem allocator reserves the name by creating an empty file, so
// concurrent allocations in one directory never share a path.
type Allocation struct {
	Path      string
	Temporary bool
}

// Release removes the reservation if nothing was written to it. A non-empty
// file is left in place.
func (a Allocation) Release() error {
	info, err := os.Lstat(a.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil
	case err != nil:
		return err
	case !info.Mode().IsRegular() || info.Size() > 0:
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Allocator finds and reserves unoccupied output names.
type Allocator struct {
	// claim reserves path, reporting false when it is already taken.
	claim func(path string) (bool, error)
}

// NewAllocator returns an allocator backed by the filesystem.
func NewAllocator() *Allocator {
	return &Allocator{claim: createExclusive}
}

// Allocate reserves dir/stem.ext when free, else the first free
// dir/stem-N.ext for N = 1, 2, ... There is no upper bound on N.
func (a *Allocator) Allocate(dir, stem, ext string) (Allocation, error) {
	candidate := filepath.Join(dir, stem+"."+ext)
	ok, err := a.claim(candidate)
	if err != nil {
		return Allocation{}, err
	}
	if ok {
		return Allocation{Path: candidate}, nil
	}
	for n := 1; ; n++ {
		candidate = filepath.Join(dir, stem+"-"+strconv.Itoa(n)+"."+ext)
		ok, err = a.claim(candidate)
		if err != nil {
			return Allocation{}, err
		}
		if ok {
			return Allocation{Path: candidate, Temporary: true}, nil
		}
	}
}

// Allocate uses the filesystem-backed allocator.
func Allocate(dir, stem, ext string) (Allocation, error) {
	return NewAllocator().Allocate(dir, stem, ext)
}

func createExclusive(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	switch {
	case err == nil:
		if err := f.Close(); err != nil {
			return false, fmt.Errorf("reserve %s: %w", path, err)
		}
		return true, nil
	case errors.Is(err, fs.ErrExist):
		return false, nil
	default:
		return false, fmt.Errorf("reserve %s: %w", path, err)
	}
}
