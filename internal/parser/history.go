package parser

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// HistoryRecord is one line of the root prompt log.
type HistoryRecord struct {
	Display   string
	Timestamp time.Time
	Project   string // raw, unvalidated; "" when absent
	SessionID string
}

type historyLine struct {
	Display   *string   `json:"display"`
	Timestamp Timestamp `json:"timestamp"`
	Project   *string   `json:"project"`
	SessionID SessionID `json:"sessionId"`
}

// DecodeHistoryLine decodes one root-log line. display,
// timestamp and sessionId are required.
func DecodeHistoryLine(line []byte) (HistoryRecord, bool, error) {
	var hl historyLine
	if err := json.Unmarshal(line, &hl); err != nil {
		return HistoryRecord{}, false, err
	}
	if hl.Display == nil {
		return HistoryRecord{}, false, errors.New("missing field display")
	}
	if !hl.Timestamp.IsSet() {
		return HistoryRecord{}, false, errors.New("missing field timestamp")
	}
	if hl.SessionID == "" {
		return HistoryRecord{}, false, errors.New("missing field sessionId")
	}

	rec := HistoryRecord{
		Display:   *hl.Display,
		Timestamp: hl.Timestamp.Time,
		SessionID: string(hl.SessionID),
	}
	if hl.Project != nil {
		rec.Project = *hl.Project
	}
	return rec, true, nil
}

// ParseHistoryFile parses the root prompt log at path. The
// returned FileInfo was taken from the handle that was read.
func ParseHistoryFile(
	path string, maxSize int64, log *zap.Logger,
) ([]HistoryRecord, os.FileInfo, error) {
	f, err := OpenFile(path, maxSize)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	recs, err := ParseJSONL(
		f, path, int(f.Info().Size()), DecodeHistoryLine, log,
	)
	if err != nil {
		return nil, f.Info(), fmt.Errorf("parsing %s: %w", path, err)
	}
	return recs, f.Info(), nil
}
