package index

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"
	"go.uber.org/zap"

	"github.com/wesm/agenthistory/internal/parser"
)

// MaxFileFailureRate is the share of transcript files that may
// fail before the whole build is abandoned.
const MaxFileFailureRate = 0.5

// BuildError reports systemic corruption: too many transcript
// files failed to parse.
type BuildError struct {
	Failed int
	Total  int
}

func (e *BuildError) Error() string {
	return fmt.Sprintf(
		"index build failed: %d/%d agent files failed to parse (%d%% failure rate)",
		e.Failed, e.Total, e.Failed*100/e.Total,
	)
}

// Options configures a Builder.
type Options struct {
	Limits parser.Limits
	Logger *zap.Logger
}

// Builder turns a conversation-log tree into an Index. It is
// synchronous and holds no state between builds.
type Builder struct {
	limits parser.Limits
	log    *zap.Logger
}

// NewBuilder returns a Builder with zero option fields filled
// from defaults.
func NewBuilder(opts Options) *Builder {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Builder{
		limits: opts.Limits.WithDefaults(),
		log:    log,
	}
}

// Limits returns the effective caps, with defaults filled in.
func (b *Builder) Limits() parser.Limits { return b.limits }

// Build indexes the root log and every discovered transcript
// under root and returns the entries newest first. Individual
// bad lines, files and projects are logged and skipped; the
// build fails only with *BuildError when more than half of the
// attempted transcript files failed.
func (b *Builder) Build(root string) (*Index, error) {
	idx := &Index{
		Snapshot: Snapshot{
			Projects: make(map[string]ProjectStamp),
			Limits:   b.limits,
		},
	}

	b.indexHistory(root, idx)

	projectsDir := filepath.Join(root, parser.ProjectsDirName)
	if fi, err := os.Stat(projectsDir); err == nil {
		idx.Snapshot.ProjectsDir = DirStamp{
			Present: true,
			ModTime: fi.ModTime().UnixNano(),
		}
	}

	projects, err := parser.DiscoverProjects(projectsDir, b.limits, b.log)
	if err != nil {
		b.log.Warn("failed to discover projects", zap.Error(err))
	}
	for _, p := range projects {
		b.indexProject(p, idx)
	}

	s := &idx.Stats
	if total := s.FilesSucceeded + s.FilesFailed; total > 0 &&
		float64(s.FilesFailed)/float64(total) > MaxFileFailureRate {
		return nil, &BuildError{Failed: s.FilesFailed, Total: total}
	}

	slices.SortStableFunc(idx.Entries, func(a, b SearchEntry) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	s.Entries = len(idx.Entries)

	b.log.Info("index built",
		zap.Int("entries", s.Entries),
		zap.Int("files_succeeded", s.FilesSucceeded),
		zap.Int("files_failed", s.FilesFailed),
	)
	return idx, nil
}

func (b *Builder) indexHistory(root string, idx *Index) {
	path := filepath.Join(root, parser.HistoryFileName)
	recs, info, err := parser.ParseHistoryFile(
		path, b.limits.MaxFileSize, b.log,
	)
	if info == nil && err != nil && !errors.Is(err, fs.ErrNotExist) {
		// Rejected before a handle existed; stamp by path so the
		// cache can still tell when it changes.
		info, _ = os.Lstat(path)
	}
	if info != nil {
		idx.Snapshot.HistoryFile = HistoryStamp{
			Present: true,
			ModTime: info.ModTime().UnixNano(),
			Size:    info.Size(),
		}
	}
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			b.log.Warn("root log not found", zap.String("path", path))
		} else {
			b.log.Warn("failed to parse root log",
				zap.String("path", path), zap.Error(err))
		}
		return
	}

	var maxTS time.Time
	for _, rec := range recs {
		project := rec.Project
		if project != "" {
			if err := parser.ValidateProjectPath(project); err != nil {
				b.log.Warn("dropping project path from root log entry",
					zap.String("session_id", rec.SessionID),
					zap.Error(err))
				project = ""
			}
		}
		idx.Entries = append(idx.Entries, SearchEntry{
			Kind:        UserPrompt,
			DisplayText: ansi.Strip(rec.Display),
			Timestamp:   rec.Timestamp,
			ProjectPath: project,
			SessionID:   rec.SessionID,
		})
		if rec.Timestamp.After(maxTS) {
			maxTS = rec.Timestamp
		}
	}
	idx.Snapshot.HistoryFile.MaxTimestamp = maxTS
}

func (b *Builder) indexProject(p parser.ProjectDescriptor, idx *Index) {
	stamp := ProjectStamp{
		DirModTime: p.DirModTime.UnixNano(),
		FileCount:  len(p.Transcripts),
	}
	for _, path := range p.Transcripts {
		recs, err := parser.ParseTranscriptFile(
			path, b.limits.MaxFileSize, b.log,
		)
		if err != nil {
			idx.Stats.FilesFailed++
			b.log.Warn("failed to parse agent file",
				zap.String("path", path), zap.Error(err))
			continue
		}
		idx.Stats.FilesSucceeded++

		for _, rec := range recs {
			if rec.Role != parser.RoleUser {
				continue
			}
			text := ansi.Strip(rec.Text)
			if strings.TrimSpace(text) == "" {
				continue
			}
			idx.Entries = append(idx.Entries, SearchEntry{
				Kind:        UserPrompt,
				DisplayText: text,
				Timestamp:   rec.Timestamp,
				ProjectPath: p.DecodedPath,
				SessionID:   rec.SessionID,
			})
			if rec.Timestamp.After(stamp.MaxTimestamp) {
				stamp.MaxTimestamp = rec.Timestamp
			}
		}
	}
	idx.Snapshot.Projects[p.EncodedName] = stamp
}
