// Package cache persists built indexes on disk, one directory
// per trusted root, and decides when they must be rebuilt.
package cache

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"

	"github.com/wesm/agenthistory/internal/index"
	"github.com/wesm/agenthistory/internal/parser"
)

// Version is the on-disk schema version. A cache written with
// any other version is treated as absent.
const Version = 1

// File names inside a root's cache directory.
const (
	MetadataFileName = "index-metadata.json"
	BlobFileName     = "search-index.bin"
)

// Metadata is the staleness snapshot stored next to the entry
// blob.
type Metadata struct {
	Version     int                           `json:"version"`
	Root        string                        `json:"root"`
	CreatedAt   time.Time                     `json:"created_at"`
	EntryCount  int                           `json:"entry_count"`
	Checksum    string                        `json:"checksum"`
	HistoryFile index.HistoryStamp            `json:"history_file"`
	ProjectsDir index.DirStamp                `json:"projects_dir"`
	Projects    map[string]index.ProjectStamp `json:"projects"`
	Limits      parser.Limits                 `json:"limits"`
	Stats       index.Stats                   `json:"stats"`
}

// newMetadata describes idx, whose encoded blob is blob.
func newMetadata(
	root string, idx *index.Index, blob []byte, now time.Time,
) Metadata {
	return Metadata{
		Version:     Version,
		Root:        root,
		CreatedAt:   now.UTC(),
		EntryCount:  len(idx.Entries),
		Checksum:    checksum(blob),
		HistoryFile: idx.Snapshot.HistoryFile,
		ProjectsDir: idx.Snapshot.ProjectsDir,
		Projects:    idx.Snapshot.Projects,
		Limits:      idx.Snapshot.Limits,
		Stats:       idx.Stats,
	}
}

// Snapshot returns the filesystem state the cache was built
// from.
func (m Metadata) Snapshot() index.Snapshot {
	return index.Snapshot{
		HistoryFile: m.HistoryFile,
		ProjectsDir: m.ProjectsDir,
		Projects:    m.Projects,
		Limits:      m.Limits,
	}
}

func checksum(b []byte) string {
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}

func marshalMetadata(m Metadata) ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func unmarshalMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decoding metadata: %w", err)
	}
	if m.Version != Version {
		return m, fmt.Errorf(
			"metadata version %d, want %d", m.Version, Version,
		)
	}
	return m, nil
}
