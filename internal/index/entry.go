// Package index builds the chronologically ordered collection
// of searchable entries from a conversation-log tree.
package index

import (
	"strings"
	"time"

	"github.com/wesm/agenthistory/internal/parser"
)

// EntryKind tells where an entry's text originated.
type EntryKind uint8

const (
	UserPrompt EntryKind = iota
	// AgentMessage is reserved. The builder currently tags every
	// indexed record as UserPrompt.
	AgentMessage
)

func (k EntryKind) String() string {
	switch k {
	case UserPrompt:
		return "user_prompt"
	case AgentMessage:
		return "agent_message"
	}
	return "unknown"
}

// SearchEntry is the unit of output. ProjectPath is empty for
// root-level prompts; when set it is absolute and free of ".."
// components.
type SearchEntry struct {
	Kind        EntryKind
	DisplayText string
	Timestamp   time.Time
	ProjectPath string
	SessionID   string
}

// HasProject reports whether the entry is tied to a project.
func (e SearchEntry) HasProject() bool { return e.ProjectPath != "" }

// SearchKey is the text handed to a matcher: display text,
// followed by the project path when present.
func (e SearchEntry) SearchKey() string {
	if e.ProjectPath == "" {
		return e.DisplayText
	}
	var b strings.Builder
	b.Grow(len(e.DisplayText) + len(e.ProjectPath) + 1)
	b.WriteString(e.DisplayText)
	b.WriteByte(' ')
	b.WriteString(e.ProjectPath)
	return b.String()
}

// HistoryStamp records the root log as it was when indexed.
type HistoryStamp struct {
	Present      bool      `json:"present"`
	ModTime      int64     `json:"mtime_ns"`
	Size         int64     `json:"size"`
	MaxTimestamp time.Time `json:"max_timestamp"`
}

// DirStamp records a directory's modification time.
type DirStamp struct {
	Present bool  `json:"present"`
	ModTime int64 `json:"mtime_ns"`
}

// ProjectStamp records one project directory as it was when
// indexed.
type ProjectStamp struct {
	DirModTime   int64     `json:"dir_mtime_ns"`
	MaxTimestamp time.Time `json:"max_timestamp"`
	FileCount    int       `json:"file_count"`
}

// Snapshot is the filesystem state an index was built from,
// plus the caps the build ran under.
type Snapshot struct {
	HistoryFile HistoryStamp            `json:"history_file"`
	ProjectsDir DirStamp                `json:"projects_dir"`
	Projects    map[string]ProjectStamp `json:"projects"`
	Limits      parser.Limits           `json:"limits"`
}

// Stats summarizes a build.
type Stats struct {
	Entries        int `json:"entries"`
	FilesSucceeded int `json:"files_succeeded"`
	FilesFailed    int `json:"files_failed"`
}

// Index is the result of a build.
type Index struct {
	Entries  []SearchEntry
	Snapshot Snapshot
	Stats    Stats
}
