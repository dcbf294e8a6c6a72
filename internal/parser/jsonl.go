package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"go.uber.org/zap"
)

// Abort thresholds for a single JSONL scan.
const (
	MaxConsecutiveFailures = 100
	MaxFailureRate         = 0.5
)

// LineOutcome classifies one non-blank line.
type LineOutcome int

const (
	// LineParsed is a line that decoded into a record.
	LineParsed LineOutcome = iota
	// LineIgnored decoded cleanly but carries no record of
	// interest. It counts toward the total only.
	LineIgnored
	// LineFailed did not decode.
	LineFailed
)

// ParseState holds the counters of a scan. It is advanced by
// Next and never mutated in place, so each abort rule can be
// exercised on its own.
type ParseState struct {
	Total       int
	Skipped     int
	Consecutive int
}

// Next returns the state after one non-blank line.
func (s ParseState) Next(o LineOutcome) ParseState {
	s.Total++
	switch o {
	case LineParsed:
		s.Consecutive = 0
	case LineFailed:
		s.Skipped++
		s.Consecutive++
	}
	return s
}

// Aborted reports whether the consecutive-failure run has
// reached the threshold.
func (s ParseState) Aborted() bool {
	return s.Consecutive >= MaxConsecutiveFailures
}

// RateExceeded reports whether more than half of the counted
// lines failed. Exactly half is accepted.
func (s ParseState) RateExceeded() bool {
	if s.Total == 0 {
		return false
	}
	return float64(s.Skipped)/float64(s.Total) > MaxFailureRate
}

var errInvalidUTF8 = errors.New("line is not valid UTF-8")

// DecodeFunc turns one line into a record. It returns
// keep=false with a nil error for lines that are valid but not
// wanted.
type DecodeFunc[T any] func(line []byte) (rec T, keep bool, err error)

// ParseJSONL scans r line by line, decoding each non-blank line
// with decode. Undecodable lines, including lines that are not
// valid UTF-8, are logged and skipped. The
// scan fails with *ConsecutiveFailuresError as soon as
// MaxConsecutiveFailures lines in a row fail, and with
// *FailureRateError if more than half of all non-blank lines
// failed by the end.
func ParseJSONL[T any](
	r io.Reader, name string, maxLine int,
	decode DecodeFunc[T], log *zap.Logger,
) ([]T, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if maxLine <= 0 {
		maxLine = DefaultMaxFileSize
	}

	var (
		records []T
		state   ParseState
	)
	lr := newLineReader(r, maxLine)
	for {
		line, oversized, ok := lr.next()
		if !ok {
			break
		}
		if !oversized && len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		var outcome LineOutcome
		var err error
		switch {
		case oversized:
			err = fmt.Errorf("line exceeds %d bytes", maxLine)
		case !utf8.Valid(line):
			err = errInvalidUTF8
		default:
			var rec T
			var keep bool
			rec, keep, err = decode(line)
			if err == nil {
				if keep {
					records = append(records, rec)
					outcome = LineParsed
				} else {
					outcome = LineIgnored
				}
			}
		}
		if err != nil {
			outcome = LineFailed
			log.Warn("skipping unparseable line",
				zap.String("path", name),
				zap.Int("line", lr.line()),
				zap.Error(err),
			)
		}

		state = state.Next(outcome)
		if state.Aborted() {
			return nil, &ConsecutiveFailuresError{
				Count: state.Consecutive,
				Line:  lr.line(),
			}
		}
	}
	if err := lr.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	if state.RateExceeded() {
		return nil, &FailureRateError{
			Skipped: state.Skipped,
			Total:   state.Total,
		}
	}

	log.Info("parsed jsonl file",
		zap.String("path", name),
		zap.Int("entries", len(records)),
		zap.Int("skipped", state.Skipped),
	)
	return records, nil
}

// IsThresholdError reports whether err is one of the two scan
// abort errors.
func IsThresholdError(err error) bool {
	var ce *ConsecutiveFailuresError
	var re *FailureRateError
	return errors.As(err, &ce) || errors.As(err, &re)
}
