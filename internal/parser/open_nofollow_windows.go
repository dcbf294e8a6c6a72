//go:build windows

package parser

import (
	"fmt"
	"os"
)

// openNoFollow opens a file for reading. On Windows,
// O_NOFOLLOW is not available so we fall back to an Lstat
// check followed by a regular open. The fstat checks on the
// returned handle still apply.
func openNoFollow(path string) (*os.File, error) {
	if fi, err := os.Lstat(path); err == nil &&
		fi.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymlinkRejected, path)
	}
	return os.Open(path)
}

// openDirNoFollow opens a directory for listing after
// rejecting symlinks and junctions by Lstat.
func openDirNoFollow(path string) (*os.File, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	if fi.Mode()&(os.ModeSymlink|os.ModeIrregular) != 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymlinkRejected, path)
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, path)
	}
	return os.Open(path)
}

// linkCount is not checked on Windows; hardlinks there do not
// carry the same aliasing risk for this tree.
func linkCount(os.FileInfo) uint64 {
	return 1
}
