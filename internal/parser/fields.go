package parser

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Representable timestamp range. Both ends format cleanly as
// RFC3339.
var (
	minTimestamp = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	maxTimestamp = time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC)
)

// Timestamp accepts either integer milliseconds since the Unix
// epoch or an RFC3339 string. Any other JSON type is an error.
type Timestamp struct {
	Time time.Time
	set  bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("timestamp: empty value")
	}

	switch c := data[0]; {
	case c == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("timestamp: %w", err)
		}
		ts, err := ParseRFC3339(s)
		if err != nil {
			return err
		}
		t.Time, t.set = ts, true
		return nil
	case c == '-' || (c >= '0' && c <= '9'):
		ms, err := strconv.ParseInt(string(data), 10, 64)
		if err != nil {
			return fmt.Errorf(
				"timestamp: %s is not integer milliseconds", data,
			)
		}
		ts, err := FromUnixMilli(ms)
		if err != nil {
			return err
		}
		t.Time, t.set = ts, true
		return nil
	}
	return fmt.Errorf("timestamp: must be a number or string, got %s", data)
}

// IsSet reports whether a value was decoded.
func (t Timestamp) IsSet() bool { return t.set }

// FromUnixMilli converts epoch milliseconds to a UTC time,
// rejecting values outside the representable range.
func FromUnixMilli(ms int64) (time.Time, error) {
	if ms < minTimestamp.UnixMilli() || ms > maxTimestamp.UnixMilli() {
		return time.Time{}, fmt.Errorf("timestamp: %d out of range", ms)
	}
	return time.UnixMilli(ms).UTC(), nil
}

// ParseRFC3339 parses s and normalizes it to UTC.
func ParseRFC3339(s string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp: invalid RFC3339 %q: %w", s, err)
	}
	ts = ts.UTC()
	if ts.Before(minTimestamp) || ts.After(maxTimestamp) {
		return time.Time{}, fmt.Errorf("timestamp: %q out of range", s)
	}
	return ts, nil
}

// SessionID is a non-empty string that parses as a UUID.
type SessionID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *SessionID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("session ID: %w", err)
	}
	if err := ValidateSessionID(s); err != nil {
		return err
	}
	*id = SessionID(s)
	return nil
}

// ValidateSessionID fails for empty or non-UUID identifiers.
func ValidateSessionID(s string) error {
	if s == "" {
		return errors.New("session ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return fmt.Errorf("invalid UUID format for session ID %q: %w", s, err)
	}
	return nil
}
