// Package testjsonl provides shared JSONL fixture builders for
// root-log and agent transcript test data. Used by the parser,
// index, cache and watch test packages.
package testjsonl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

// Session IDs that pass UUID validation.
const (
	SessionA = "7f8b3c1e-2d4a-4e6f-9a1b-0c2d3e4f5a6b"
	SessionB = "1a2b3c4d-5e6f-4a8b-9c0d-1e2f3a4b5c6d"
)

// HistoryJSON returns a root-log line. project is omitted when
// empty. timestamp may be epoch milliseconds (int64) or an
// RFC3339 string.
func HistoryJSON(
	display string, timestamp any, sessionID, project string,
) string {
	m := map[string]any{
		"display":   display,
		"timestamp": timestamp,
		"sessionId": sessionID,
	}
	if project != "" {
		m["project"] = project
	}
	return mustMarshal(m)
}

// TranscriptJSON returns a transcript line of the given type
// and role. content is marshaled as-is, so it may be a string
// or a slice of blocks.
func TranscriptJSON(
	typ, role string, content any, timestamp, sessionID string,
) string {
	m := map[string]any{
		"type": typ,
		"message": map[string]any{
			"role":    role,
			"content": content,
		},
		"timestamp":    timestamp,
		"sessionId":    sessionID,
		"uuid":         "00000000-0000-4000-8000-000000000001",
		"is_sidechain": false,
	}
	return mustMarshal(m)
}

// TranscriptUserJSON returns a user transcript line with plain
// string content.
func TranscriptUserJSON(text, timestamp, sessionID string) string {
	return TranscriptJSON("user", "user", text, timestamp, sessionID)
}

// TranscriptAssistantJSON returns an assistant transcript line
// with a single text block.
func TranscriptAssistantJSON(text, timestamp, sessionID string) string {
	return TranscriptJSON("assistant", "assistant",
		[]map[string]string{{"type": "text", "text": text}},
		timestamp, sessionID)
}

// SummaryJSON returns a non-conversational summary line.
func SummaryJSON(summary string) string {
	return mustMarshal(map[string]any{
		"type":     "summary",
		"summary":  summary,
		"leafUuid": "00000000-0000-4000-8000-000000000002",
	})
}

// JoinJSONL joins JSON lines with newlines and appends a
// trailing newline.
func JoinJSONL(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

// SessionBuilder constructs JSONL content using a fluent API.
type SessionBuilder struct {
	lines []string
}

// NewSessionBuilder returns a new empty SessionBuilder.
func NewSessionBuilder() *SessionBuilder {
	return &SessionBuilder{}
}

// AddHistory appends a root-log line.
func (b *SessionBuilder) AddHistory(
	display string, timestamp any, sessionID, project string,
) *SessionBuilder {
	b.lines = append(b.lines,
		HistoryJSON(display, timestamp, sessionID, project))
	return b
}

// AddUser appends a user transcript line.
func (b *SessionBuilder) AddUser(
	timestamp, text, sessionID string,
) *SessionBuilder {
	b.lines = append(b.lines,
		TranscriptUserJSON(text, timestamp, sessionID))
	return b
}

// AddAssistant appends an assistant transcript line.
func (b *SessionBuilder) AddAssistant(
	timestamp, text, sessionID string,
) *SessionBuilder {
	b.lines = append(b.lines,
		TranscriptAssistantJSON(text, timestamp, sessionID))
	return b
}

// AddRaw appends an arbitrary raw line.
func (b *SessionBuilder) AddRaw(line string) *SessionBuilder {
	b.lines = append(b.lines, line)
	return b
}

// AddGarbage appends n undecodable lines.
func (b *SessionBuilder) AddGarbage(n int) *SessionBuilder {
	for range n {
		b.lines = append(b.lines, "{not json")
	}
	return b
}

// String returns the JSONL content with a trailing newline.
func (b *SessionBuilder) String() string {
	return strings.Join(b.lines, "\n") + "\n"
}

// StringNoTrailingNewline returns the JSONL content without a
// trailing newline.
func (b *SessionBuilder) StringNoTrailingNewline() string {
	return strings.Join(b.lines, "\n")
}

// Tree lays out a conversation-log root in a temp directory.
type Tree struct {
	t    testing.TB
	Root string
}

// NewTree returns an empty tree rooted at t.TempDir().
func NewTree(t testing.TB) *Tree {
	t.Helper()
	return &Tree{t: t, Root: t.TempDir()}
}

// WriteHistory writes the root log.
func (tr *Tree) WriteHistory(content string) string {
	tr.t.Helper()
	return tr.write(filepath.Join(tr.Root, "history.jsonl"), content)
}

// ProjectDir returns the directory for encodedName under
// projects/, creating it.
func (tr *Tree) ProjectDir(encodedName string) string {
	tr.t.Helper()
	dir := filepath.Join(tr.Root, "projects", encodedName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		tr.t.Fatalf("mkdir %s: %v", dir, err)
	}
	return dir
}

// WriteTranscript writes file inside the project directory.
func (tr *Tree) WriteTranscript(
	encodedName, file, content string,
) string {
	tr.t.Helper()
	return tr.write(
		filepath.Join(tr.ProjectDir(encodedName), file), content,
	)
}

func (tr *Tree) write(path, content string) string {
	tr.t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tr.t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		tr.t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func mustMarshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
