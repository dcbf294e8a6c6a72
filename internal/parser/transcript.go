package parser

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// RoleType identifies the role of a message sender.
type RoleType string

const (
	RoleUser      RoleType = "user"
	RoleAssistant RoleType = "assistant"
)

// TranscriptRecord is one conversational line of an agent
// transcript. Text holds the concatenated text segments only.
type TranscriptRecord struct {
	Type        string
	Role        RoleType
	Text        string
	Timestamp   time.Time
	SessionID   string
	UUID        string
	ParentUUID  string
	IsSidechain bool
}

type transcriptLine struct {
	Type    string `json:"type"`
	Message *struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"message"`
	Timestamp   Timestamp `json:"timestamp"`
	SessionID   SessionID `json:"sessionId"`
	UUID        *string   `json:"uuid"`
	ParentUUID  *string   `json:"parent_uuid"`
	IsSidechain *bool     `json:"is_sidechain"`
}

// DecodeTranscriptLine decodes one transcript line. Lines whose
// type is not "user" or "assistant" (summaries, snapshots) are
// valid but not kept.
func DecodeTranscriptLine(line []byte) (TranscriptRecord, bool, error) {
	raw := string(line)
	if !gjson.Valid(raw) {
		return TranscriptRecord{}, false, errors.New("invalid JSON")
	}
	switch gjson.Get(raw, "type").Str {
	case string(RoleUser), string(RoleAssistant):
	default:
		return TranscriptRecord{}, false, nil
	}

	var tl transcriptLine
	if err := json.Unmarshal(line, &tl); err != nil {
		return TranscriptRecord{}, false, err
	}
	switch {
	case tl.Message == nil:
		return TranscriptRecord{}, false, errors.New("missing field message")
	case tl.Message.Role == "":
		return TranscriptRecord{}, false, errors.New("missing field message.role")
	case len(tl.Message.Content) == 0:
		return TranscriptRecord{}, false, errors.New("missing field message.content")
	case !tl.Timestamp.IsSet():
		return TranscriptRecord{}, false, errors.New("missing field timestamp")
	case tl.SessionID == "":
		return TranscriptRecord{}, false, errors.New("missing field sessionId")
	case tl.UUID == nil:
		return TranscriptRecord{}, false, errors.New("missing field uuid")
	}

	text, err := ExtractText(gjson.ParseBytes(tl.Message.Content))
	if err != nil {
		return TranscriptRecord{}, false, err
	}

	rec := TranscriptRecord{
		Type:      tl.Type,
		Role:      RoleType(tl.Message.Role),
		Text:      text,
		Timestamp: tl.Timestamp.Time,
		SessionID: string(tl.SessionID),
		UUID:      *tl.UUID,
	}
	if tl.ParentUUID != nil {
		rec.ParentUUID = *tl.ParentUUID
	}
	if tl.IsSidechain != nil {
		rec.IsSidechain = *tl.IsSidechain
	}
	return rec, true, nil
}

// ExtractText extracts readable text from message content,
// which is either a string or an array of typed blocks. Text
// blocks are joined with newlines; thinking, tool_use,
// tool_result and image blocks contribute nothing.
func ExtractText(content gjson.Result) (string, error) {
	if content.Type == gjson.String {
		return content.Str, nil
	}
	if !content.IsArray() {
		return "", fmt.Errorf(
			"message content must be a string or array, got %s",
			content.Type,
		)
	}

	var (
		parts []string
		err   error
	)
	content.ForEach(func(_, block gjson.Result) bool {
		if !block.IsObject() {
			err = errors.New("content block is not an object")
			return false
		}
		typ := block.Get("type")
		if typ.Type != gjson.String {
			err = errors.New("content block missing type")
			return false
		}
		if typ.Str != "text" {
			return true
		}
		if text := block.Get("text"); text.Type == gjson.String {
			parts = append(parts, text.Str)
		}
		return true
	})
	if err != nil {
		return "", err
	}
	return strings.Join(parts, "\n"), nil
}

// ParseTranscriptFile opens path through OpenFile and parses it
// as an agent transcript.
func ParseTranscriptFile(
	path string, maxSize int64, log *zap.Logger,
) ([]TranscriptRecord, error) {
	f, err := OpenFile(path, maxSize)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	recs, err := ParseJSONL(
		f, path, int(f.Info().Size()), DecodeTranscriptLine, log,
	)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return recs, nil
}
