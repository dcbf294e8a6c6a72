package parser

import (
	"errors"
	"fmt"
	"time"
)

// Default resource caps applied when a Limits field is zero.
const (
	DefaultMaxProjects        = 1000
	DefaultMaxFilesPerProject = 1000
	DefaultMaxFileSize        = 10 << 20 // 10 MiB
)

// File and directory names inside the trusted root.
const (
	HistoryFileName  = "history.jsonl"
	ProjectsDirName  = "projects"
	transcriptPrefix = "agent-"
	transcriptSuffix = ".jsonl"
)

var (
	// ErrUnsafePath is returned when a decoded project path is
	// relative or contains a ".." component.
	ErrUnsafePath = errors.New("unsafe path")
	// ErrSymlinkRejected is returned when the final path
	// component of a file or directory is a symlink.
	ErrSymlinkRejected = errors.New("symlink rejected")
	// ErrHardlinkRejected is returned when an opened file has
	// more than one link.
	ErrHardlinkRejected = errors.New("hardlink rejected")
	// ErrFileTooLarge is returned when an opened file exceeds
	// the configured size ceiling.
	ErrFileTooLarge = errors.New("file too large")
	// ErrNotRegular is returned for FIFOs, devices, sockets and
	// directories where a regular file was expected.
	ErrNotRegular = errors.New("not a regular file")
	// ErrNotDirectory is returned when a directory was expected.
	ErrNotDirectory = errors.New("not a directory")
)

// Limits bounds the work a single build can do.
type Limits struct {
	MaxProjects        int   `json:"max_projects"`
	MaxFilesPerProject int   `json:"max_files_per_project"`
	MaxFileSize        int64 `json:"max_file_size"`
}

// DefaultLimits returns the production caps.
func DefaultLimits() Limits {
	return Limits{
		MaxProjects:        DefaultMaxProjects,
		MaxFilesPerProject: DefaultMaxFilesPerProject,
		MaxFileSize:        DefaultMaxFileSize,
	}
}

// WithDefaults fills zero fields from DefaultLimits.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	if l.MaxProjects <= 0 {
		l.MaxProjects = d.MaxProjects
	}
	if l.MaxFilesPerProject <= 0 {
		l.MaxFilesPerProject = d.MaxFilesPerProject
	}
	if l.MaxFileSize <= 0 {
		l.MaxFileSize = d.MaxFileSize
	}
	return l
}

// ProjectDescriptor describes one discovered project directory.
type ProjectDescriptor struct {
	EncodedName string // directory name under projects/
	DecodedPath string // validated absolute path
	Dir         string // full path of the project directory
	// DirModTime is the directory mtime observed through the
	// handle used to list it.
	DirModTime time.Time
	// Transcripts are agent-*.jsonl files directly inside Dir,
	// sorted by name.
	Transcripts []string
}

// ConsecutiveFailuresError aborts a scan after an uninterrupted
// run of undecodable lines.
type ConsecutiveFailuresError struct {
	Count int
	Line  int // 1-based line number of the last failure
}

func (e *ConsecutiveFailuresError) Error() string {
	return fmt.Sprintf(
		"%d consecutive parse failures ending at line %d: file may be corrupted",
		e.Count, e.Line,
	)
}

// FailureRateError reports a completed scan in which more than
// half of the non-blank lines failed to decode.
type FailureRateError struct {
	Skipped int
	Total   int
}

func (e *FailureRateError) Error() string {
	return fmt.Sprintf(
		"parse failure rate exceeded: %d of %d lines failed (%.1f%%)",
		e.Skipped, e.Total,
		float64(e.Skipped)/float64(e.Total)*100,
	)
}
