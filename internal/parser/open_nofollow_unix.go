//go:build unix

package parser

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// openNoFollow opens a file for reading without following
// symlinks at the final path component. O_NOFOLLOW makes the
// open fail with ELOOP if the target is a symlink, closing the
// TOCTOU window between discovery and read. O_NONBLOCK keeps a
// FIFO planted at path from blocking the open; it is cleared
// again before the handle is returned.
func openNoFollow(path string) (*os.File, error) {
	fd, err := unix.Open(
		path,
		unix.O_RDONLY|unix.O_NOFOLLOW|unix.O_NONBLOCK|unix.O_CLOEXEC,
		0,
	)
	if err != nil {
		if errors.Is(err, unix.ELOOP) {
			return nil, fmt.Errorf("%w: %s", ErrSymlinkRejected, path)
		}
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	if err := unix.SetNonblock(fd, false); err != nil {
		unix.Close(fd)
		return nil, &os.PathError{Op: "fcntl", Path: path, Err: err}
	}
	return os.NewFile(uintptr(fd), path), nil
}

// openDirNoFollow opens a directory for listing. O_DIRECTORY
// rejects anything that is not a directory and O_NOFOLLOW
// rejects a symlink at the final component.
func openDirNoFollow(path string) (*os.File, error) {
	fd, err := unix.Open(
		path,
		unix.O_RDONLY|unix.O_DIRECTORY|unix.O_NOFOLLOW|unix.O_CLOEXEC,
		0,
	)
	if err != nil {
		switch {
		case errors.Is(err, unix.ELOOP):
			return nil, fmt.Errorf("%w: %s", ErrSymlinkRejected, path)
		case errors.Is(err, unix.ENOTDIR):
			// Some kernels report a symlink under O_DIRECTORY as
			// ENOTDIR; Lstat only refines the error message.
			if fi, lerr := os.Lstat(path); lerr == nil &&
				fi.Mode()&os.ModeSymlink != 0 {
				return nil, fmt.Errorf(
					"%w: %s", ErrSymlinkRejected, path,
				)
			}
			return nil, fmt.Errorf("%w: %s", ErrNotDirectory, path)
		}
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return os.NewFile(uintptr(fd), path), nil
}

// linkCount returns the hard link count recorded in an fstat
// result.
func linkCount(info os.FileInfo) uint64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(st.Nlink)
	}
	return 1
}
