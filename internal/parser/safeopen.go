package parser

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// File is an open, verified, size-capped file handle. Reads
// stop at the ceiling that was checked at open time even if
// the file grows afterwards.
type File struct {
	f    *os.File
	info os.FileInfo
	r    io.Reader
}

// OpenFile opens path and then, using the open handle rather
// than a second path lookup, verifies that it is a regular
// file with a single link and at most maxSize bytes. Symlinks
// at the final component are refused by the open itself.
func OpenFile(path string, maxSize int64) (*File, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	f, err := openNoFollow(path)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if err := checkFileInfo(path, info, maxSize); err != nil {
		f.Close()
		return nil, err
	}

	return &File{
		f:    f,
		info: info,
		r:    io.LimitReader(f, maxSize),
	}, nil
}

func checkFileInfo(
	path string, info os.FileInfo, maxSize int64,
) error {
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrNotRegular, path)
	}
	if n := linkCount(info); n > 1 {
		return fmt.Errorf(
			"%w: %s has %d links", ErrHardlinkRejected, path, n,
		)
	}
	if info.Size() > maxSize {
		return fmt.Errorf(
			"%w: %s (%d bytes, max %d)",
			ErrFileTooLarge, path, info.Size(), maxSize,
		)
	}
	return nil
}

func (f *File) Read(p []byte) (int, error) { return f.r.Read(p) }

// Close closes the underlying handle.
func (f *File) Close() error { return f.f.Close() }

// Name returns the path the file was opened with.
func (f *File) Name() string { return f.f.Name() }

// Info returns the fstat result captured at open time.
func (f *File) Info() os.FileInfo { return f.info }

// Dir is an open directory handle that was verified not to be
// a symlink.
type Dir struct {
	f    *os.File
	info os.FileInfo
}

// OpenDir opens path as a directory, refusing symlinks.
func OpenDir(path string) (*Dir, error) {
	f, err := openDirNoFollow(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, path)
	}
	return &Dir{f: f, info: info}, nil
}

// ReadDir lists the directory through the open handle, sorted
// by name.
func (d *Dir) ReadDir() ([]os.DirEntry, error) {
	entries, err := d.f.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", d.f.Name(), err)
	}
	slices.SortFunc(entries, func(a, b os.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return entries, nil
}

// Close closes the directory handle.
func (d *Dir) Close() error { return d.f.Close() }

// Info returns the fstat result captured at open time.
func (d *Dir) Info() os.FileInfo { return d.info }
