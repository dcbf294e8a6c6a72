package cache

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/wesm/agenthistory/internal/index"
)

// Blob field numbers. The blob is a protobuf-compatible message:
// a version followed by repeated entry sub-messages.
const (
	blobVersionField protowire.Number = 1
	blobEntryField   protowire.Number = 2
)

const (
	entryKindField    protowire.Number = 1
	entryDisplayField protowire.Number = 2
	entrySecondsField protowire.Number = 3
	entryNanosField   protowire.Number = 4
	entryProjectField protowire.Number = 5
	entrySessionField protowire.Number = 6
)

var errBlobVersion = errors.New("blob version mismatch")

// encodeEntries serializes entries in order.
func encodeEntries(entries []index.SearchEntry) []byte {
	b := protowire.AppendTag(nil, blobVersionField, protowire.VarintType)
	b = protowire.AppendVarint(b, Version)

	var msg []byte
	for _, e := range entries {
		msg = appendEntry(msg[:0], e)
		b = protowire.AppendTag(b, blobEntryField, protowire.BytesType)
		b = protowire.AppendBytes(b, msg)
	}
	return b
}

func appendEntry(b []byte, e index.SearchEntry) []byte {
	b = protowire.AppendTag(b, entryKindField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Kind))
	b = protowire.AppendTag(b, entryDisplayField, protowire.BytesType)
	b = protowire.AppendString(b, e.DisplayText)
	b = protowire.AppendTag(b, entrySecondsField, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(e.Timestamp.Unix()))
	b = protowire.AppendTag(b, entryNanosField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Timestamp.Nanosecond()))
	if e.ProjectPath != "" {
		b = protowire.AppendTag(b, entryProjectField, protowire.BytesType)
		b = protowire.AppendString(b, e.ProjectPath)
	}
	b = protowire.AppendTag(b, entrySessionField, protowire.BytesType)
	b = protowire.AppendString(b, e.SessionID)
	return b
}

// decodeEntries parses a blob written by encodeEntries. Unknown
// fields are skipped.
func decodeEntries(b []byte) ([]index.SearchEntry, error) {
	var (
		entries    []index.SearchEntry
		sawVersion bool
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == blobVersionField && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			if v != Version {
				return nil, fmt.Errorf("%w: got %d, want %d",
					errBlobVersion, v, Version)
			}
			sawVersion = true
			b = b[n:]
		case num == blobEntryField && typ == protowire.BytesType:
			msg, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			e, err := decodeEntry(msg)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", len(entries), err)
			}
			entries = append(entries, e)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	if !sawVersion {
		return nil, fmt.Errorf("%w: missing", errBlobVersion)
	}
	return entries, nil
}

func decodeEntry(b []byte) (index.SearchEntry, error) {
	var (
		e           index.SearchEntry
		secs, nanos int64
		kind        uint64
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, protowire.ParseError(n)
		}
		b = b[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, protowire.ParseError(n)
			}
			b = b[n:]
			switch num {
			case entryKindField:
				kind = v
			case entrySecondsField:
				secs = protowire.DecodeZigZag(v)
			case entryNanosField:
				nanos = int64(v)
			}
		case protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return e, protowire.ParseError(n)
			}
			b = b[n:]
			switch num {
			case entryDisplayField:
				e.DisplayText = s
			case entryProjectField:
				e.ProjectPath = s
			case entrySessionField:
				e.SessionID = s
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return e, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	if kind > uint64(index.AgentMessage) {
		return e, fmt.Errorf("unknown entry kind %d", kind)
	}
	if nanos < 0 || nanos >= int64(time.Second) {
		return e, fmt.Errorf("nanoseconds %d out of range", nanos)
	}
	e.Kind = index.EntryKind(kind)
	e.Timestamp = time.Unix(secs, nanos).UTC()
	return e, nil
}
