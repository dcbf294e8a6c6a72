package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/wesm/agenthistory/internal/index"
	"github.com/wesm/agenthistory/internal/parser"
)

// maxCacheFileSize bounds what Load will read back.
const maxCacheFileSize = 512 << 20

// Builder produces an index for a root under the caps it
// reports. *index.Builder satisfies it.
type Builder interface {
	Build(root string) (*index.Index, error)
	Limits() parser.Limits
}

// Store reads and writes cached indexes under a base directory.
type Store struct {
	base string
	log  *zap.Logger
	now  func() time.Time
}

// NewStore returns a Store rooted at base. log may be nil.
func NewStore(base string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{base: base, log: log, now: time.Now}
}

// CanonicalRoot resolves root to an absolute path with symlinks
// evaluated. A root that does not exist yet is only made
// absolute.
func CanonicalRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", root, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return abs, nil
		}
		return "", fmt.Errorf("resolving %s: %w", root, err)
	}
	return resolved, nil
}

// Dir returns the cache directory for a canonical root: the
// first 12 hex characters of its xxhash64 under base.
func (s *Store) Dir(root string) string {
	sum := fmt.Sprintf("%016x", xxhash.Sum64String(root))
	return filepath.Join(s.base, sum[:12])
}

// Load returns the cached index for a canonical root. Any
// missing, unreadable, mismatched or corrupt file is logged and
// reported as a miss; Load never fails.
func (s *Store) Load(root string) (*index.Index, bool) {
	dir := s.Dir(root)
	idx, err := s.load(dir, root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Debug("no cache", zap.String("dir", dir))
		} else {
			s.log.Warn("ignoring unusable cache",
				zap.String("dir", dir), zap.Error(err))
		}
		return nil, false
	}
	return idx, true
}

func (s *Store) load(dir, root string) (*index.Index, error) {
	metaBytes, err := readCapped(filepath.Join(dir, MetadataFileName))
	if err != nil {
		return nil, err
	}
	meta, err := unmarshalMetadata(metaBytes)
	if err != nil {
		return nil, err
	}
	if meta.Root != root {
		return nil, fmt.Errorf("cache belongs to %s", meta.Root)
	}

	blob, err := readCapped(filepath.Join(dir, BlobFileName))
	if err != nil {
		return nil, err
	}
	if got := checksum(blob); got != meta.Checksum {
		return nil, fmt.Errorf(
			"blob checksum %s does not match metadata %s",
			got, meta.Checksum,
		)
	}
	entries, err := decodeEntries(blob)
	if err != nil {
		return nil, fmt.Errorf("decoding blob: %w", err)
	}
	if len(entries) != meta.EntryCount {
		return nil, fmt.Errorf(
			"blob has %d entries, metadata says %d",
			len(entries), meta.EntryCount,
		)
	}

	snap := meta.Snapshot()
	if snap.Projects == nil {
		snap.Projects = make(map[string]index.ProjectStamp)
	}
	return &index.Index{
		Entries:  entries,
		Snapshot: snap,
		Stats:    meta.Stats,
	}, nil
}

func readCapped(path string) ([]byte, error) {
	f, err := parser.OpenFile(path, maxCacheFileSize)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Save writes idx for a canonical root. Each file is written to
// a temporary name in the cache directory and renamed into
// place; the blob goes first so the metadata never points at a
// blob that is not there yet.
func (s *Store) Save(root string, idx *index.Index) error {
	dir := s.Dir(root)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	blob := encodeEntries(idx.Entries)
	meta, err := marshalMetadata(newMetadata(root, idx, blob, s.now()))
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	if err := writeAtomic(dir, BlobFileName, blob); err != nil {
		return err
	}
	if err := writeAtomic(dir, MetadataFileName, meta); err != nil {
		return err
	}
	s.log.Info("cache written",
		zap.String("dir", dir), zap.Int("entries", len(idx.Entries)))
	return nil
}

func writeAtomic(dir, name string, data []byte) error {
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("renaming %s: %w", name, err)
	}
	return nil
}

// IsStale reports whether the tree under a canonical root no
// longer matches snap: the root log appeared, disappeared or
// changed mtime or size; the projects directory appeared,
// disappeared or changed mtime; or a recorded project
// directory vanished or changed mtime. Changes to a transcript
// that leave its directory mtime alone are not detected.
func IsStale(root string, snap index.Snapshot) (bool, string) {
	hist := filepath.Join(root, parser.HistoryFileName)
	fi, err := os.Lstat(hist)
	switch {
	case err != nil && snap.HistoryFile.Present:
		return true, "root log disappeared"
	case err == nil && !snap.HistoryFile.Present:
		return true, "root log appeared"
	case err == nil &&
		(fi.ModTime().UnixNano() != snap.HistoryFile.ModTime ||
			fi.Size() != snap.HistoryFile.Size):
		return true, "root log changed"
	}

	projectsDir := filepath.Join(root, parser.ProjectsDirName)
	fi, err = os.Stat(projectsDir)
	switch {
	case err != nil && snap.ProjectsDir.Present:
		return true, "projects directory disappeared"
	case err == nil && !snap.ProjectsDir.Present:
		return true, "projects directory appeared"
	case err == nil && fi.ModTime().UnixNano() != snap.ProjectsDir.ModTime:
		return true, "projects directory changed"
	}

	for name, stamp := range snap.Projects {
		fi, err := os.Lstat(filepath.Join(projectsDir, name))
		if err != nil {
			return true, "project directory disappeared: " + name
		}
		if fi.ModTime().UnixNano() != stamp.DirModTime {
			return true, "project directory changed: " + name
		}
	}
	return false, ""
}

// LoadOrBuild returns a fresh cached index for root, or builds,
// saves and returns a new one. A cache built under different
// limits than b reports is not fresh. fromCache reports which. A failed
// save is logged, not returned.
func (s *Store) LoadOrBuild(
	root string, b Builder,
) (idx *index.Index, fromCache bool, err error) {
	canon, err := CanonicalRoot(root)
	if err != nil {
		return nil, false, err
	}

	if cached, ok := s.Load(canon); ok {
		stale, reason := IsStale(canon, cached.Snapshot)
		if !stale && cached.Snapshot.Limits != b.Limits() {
			stale, reason = true, "limits changed"
		}
		if !stale {
			s.log.Debug("using cached index",
				zap.Int("entries", len(cached.Entries)))
			return cached, true, nil
		}
		s.log.Info("cache stale, rebuilding", zap.String("reason", reason))
	}

	idx, err = s.rebuild(canon, b)
	return idx, false, err
}

// Rebuild ignores any cached index, builds root and saves the
// result. A failed save is logged, not returned.
func (s *Store) Rebuild(root string, b Builder) (*index.Index, error) {
	canon, err := CanonicalRoot(root)
	if err != nil {
		return nil, err
	}
	return s.rebuild(canon, b)
}

func (s *Store) rebuild(canon string, b Builder) (*index.Index, error) {
	idx, err := b.Build(canon)
	if err != nil {
		return nil, err
	}
	if err := s.Save(canon, idx); err != nil {
		s.log.Warn("failed to write cache", zap.Error(err))
	}
	return idx, nil
}

// Clear removes the cache directory for root.
func (s *Store) Clear(root string) error {
	canon, err := CanonicalRoot(root)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(s.Dir(canon)); err != nil {
		return fmt.Errorf("removing cache: %w", err)
	}
	return nil
}
