package parser

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// IsTranscriptName reports whether name matches agent-*.jsonl.
func IsTranscriptName(name string) bool {
	return strings.HasPrefix(name, transcriptPrefix) &&
		strings.HasSuffix(name, transcriptSuffix)
}

// isProjectCandidate reports whether a projects/ entry may be a
// project directory. Symlinks are let through so that OpenDir
// can reject them with a logged reason.
func isProjectCandidate(entry os.DirEntry) bool {
	if strings.HasPrefix(entry.Name(), ".") {
		return false
	}
	return entry.IsDir() || entry.Type()&os.ModeSymlink != 0
}

// DiscoverProjects enumerates project directories under
// projectsDir and the agent transcripts directly inside each.
// A missing projectsDir yields no projects. Individual bad
// entries are logged and skipped; only a projectsDir that
// exists but cannot be listed is an error. Projects and files
// beyond the limits are dropped with a warning.
func DiscoverProjects(
	projectsDir string, limits Limits, log *zap.Logger,
) ([]ProjectDescriptor, error) {
	if log == nil {
		log = zap.NewNop()
	}
	limits = limits.WithDefaults()

	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf(
			"reading projects directory %s: %w", projectsDir, err,
		)
	}

	var projects []ProjectDescriptor
	for i, entry := range entries {
		if !isProjectCandidate(entry) {
			continue
		}
		name := entry.Name()

		decoded, err := DecodeAndValidate(name)
		if err != nil {
			log.Warn("skipping invalid project directory",
				zap.String("name", name), zap.Error(err))
			continue
		}

		if len(projects) >= limits.MaxProjects {
			log.Warn("project limit reached, ignoring remaining directories",
				zap.Int("limit", limits.MaxProjects),
				zap.Int("unexamined", len(entries)-i))
			break
		}

		proj, err := scanProject(
			filepath.Join(projectsDir, name), name, decoded,
			limits.MaxFilesPerProject, log,
		)
		if err != nil {
			log.Warn("skipping project directory",
				zap.String("name", name), zap.Error(err))
			continue
		}
		projects = append(projects, proj)
	}
	return projects, nil
}

func scanProject(
	dir, name, decoded string, maxFiles int, log *zap.Logger,
) (ProjectDescriptor, error) {
	d, err := OpenDir(dir)
	if err != nil {
		return ProjectDescriptor{}, err
	}
	defer d.Close()

	entries, err := d.ReadDir()
	if err != nil {
		return ProjectDescriptor{}, err
	}

	proj := ProjectDescriptor{
		EncodedName: name,
		DecodedPath: decoded,
		Dir:         dir,
		DirModTime:  d.Info().ModTime(),
	}
	for _, entry := range entries {
		fname := entry.Name()
		if entry.IsDir() || !IsTranscriptName(fname) {
			continue
		}
		if !entry.Type().IsRegular() {
			log.Warn("skipping transcript that is not a regular file",
				zap.String("path", filepath.Join(dir, fname)),
				zap.Stringer("mode", entry.Type()))
			continue
		}
		if len(proj.Transcripts) >= maxFiles {
			log.Warn("transcript limit reached, ignoring remaining files",
				zap.String("project", name),
				zap.Int("limit", maxFiles))
			break
		}
		proj.Transcripts = append(
			proj.Transcripts, filepath.Join(dir, fname),
		)
	}
	return proj, nil
}
