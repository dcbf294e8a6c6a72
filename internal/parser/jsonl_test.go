package parser

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decodeInts keeps lines that are integers, ignores "skip" and
// fails on anything else.
func decodeInts(line []byte) (int, bool, error) {
	s := string(line)
	if s == "skip" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func TestParseStateNext(t *testing.T) {
	var s ParseState
	s = s.Next(LineFailed).Next(LineFailed)
	assert.Equal(t, ParseState{Total: 2, Skipped: 2, Consecutive: 2}, s)

	s = s.Next(LineIgnored)
	assert.Equal(t, ParseState{Total: 3, Skipped: 2, Consecutive: 2}, s,
		"ignored lines neither fail nor reset the run")

	s = s.Next(LineParsed)
	assert.Equal(t, ParseState{Total: 4, Skipped: 2, Consecutive: 0}, s)
}

func TestParseStateThresholds(t *testing.T) {
	tests := []struct {
		name        string
		state       ParseState
		wantAborted bool
		wantRate    bool
	}{
		{"empty", ParseState{}, false, false},
		{"exactly half", ParseState{Total: 10, Skipped: 5}, false, false},
		{"just over half", ParseState{Total: 100, Skipped: 51}, false, true},
		{"99 in a row", ParseState{Total: 99, Skipped: 99, Consecutive: 99}, false, true},
		{"100 in a row", ParseState{Total: 100, Skipped: 100, Consecutive: 100}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantAborted, tt.state.Aborted())
			assert.Equal(t, tt.wantRate, tt.state.RateExceeded())
		})
	}
}

func TestParseJSONL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []int
		wantErr any
	}{
		{
			name:  "all valid",
			input: lines("1", "2", "3"),
			want:  []int{1, 2, 3},
		},
		{
			name:  "blank and whitespace lines not counted",
			input: lines("1", "", "   ", "\t", "x"),
			want:  []int{1},
		},
		{
			name:  "exactly half failing accepted",
			input: lines("1", "2", "x", "y"),
			want:  []int{1, 2},
		},
		{
			name:    "over half failing rejected",
			input:   lines("1", "x", "y"),
			wantErr: &FailureRateError{},
		},
		{
			name:  "ignored lines count toward total",
			input: lines("1", "skip", "skip", "x", "y"),
			want:  []int{1},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name: "99 consecutive failures then recovery",
			input: lines(append(append(
				repeat("1", 100), repeat("x", 99)...), "2")...),
			want: append(repeat1(100), 2),
		},
		{
			name:    "100 consecutive failures abort",
			input:   lines(append(repeat("1", 200), repeat("x", 100)...)...),
			wantErr: &ConsecutiveFailuresError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseJSONL(
				strings.NewReader(tt.input), "test.jsonl", 1024,
				decodeInts, nil,
			)
			switch want := tt.wantErr.(type) {
			case *FailureRateError:
				require.ErrorAs(t, err, &want)
				assert.True(t, IsThresholdError(err))
				return
			case *ConsecutiveFailuresError:
				require.ErrorAs(t, err, &want)
				assert.Equal(t, 100, want.Count)
				assert.Equal(t, 300, want.Line)
				assert.True(t, IsThresholdError(err))
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("records mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func repeat1(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = 1
	}
	return out
}

func TestParseJSONLAbortsBeforeEnd(t *testing.T) {
	// A valid tail after the abort point is never reached.
	input := lines(append(repeat("x", 100), "1", "2")...)
	log, logs := captureLog(t)

	_, err := ParseJSONL(
		strings.NewReader(input), "bad.jsonl", 1024, decodeInts, log,
	)
	var ce *ConsecutiveFailuresError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 100, ce.Line)
	assert.Equal(t, 100,
		logs.FilterMessage("skipping unparseable line").Len())
}

func TestParseJSONLOversizedLineFails(t *testing.T) {
	input := lines("1", strings.Repeat("9", 64), "2")
	log, logs := captureLog(t)

	got, err := ParseJSONL(
		strings.NewReader(input), "big.jsonl", 16, decodeInts, log,
	)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, got)

	warned := logs.FilterMessage("skipping unparseable line").All()
	require.Len(t, warned, 1)
	assert.Equal(t, int64(2), warned[0].ContextMap()["line"])
	assertLogContains(t, logs, "parsed jsonl file")
}

func decodeText(line []byte) (string, bool, error) {
	return string(line), true, nil
}

func TestParseJSONLInvalidUTF8LineFails(t *testing.T) {
	input := lines("first", "bad \xff\xfe text", "third")
	log, logs := captureLog(t)

	got, err := ParseJSONL(
		strings.NewReader(input), "mixed.jsonl", 1024, decodeText, log,
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "third"}, got)

	warned := logs.FilterMessage("skipping unparseable line").All()
	require.Len(t, warned, 1)
	assert.Equal(t, int64(2), warned[0].ContextMap()["line"])
	assert.Contains(t, warned[0].ContextMap()["error"], "not valid UTF-8")
}

func TestParseJSONLInvalidUTF8CountsTowardRate(t *testing.T) {
	input := lines("ok", "\xff", "x \xc3")

	_, err := ParseJSONL(
		strings.NewReader(input), "mixed.jsonl", 1024, decodeText, nil,
	)
	var re *FailureRateError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 2, re.Skipped)
	assert.Equal(t, 3, re.Total)
}

func TestParseJSONLReadError(t *testing.T) {
	readErr := errors.New("boom")
	_, err := ParseJSONL(
		errReader{readErr}, "broken.jsonl", 1024, decodeInts, nil,
	)
	require.ErrorIs(t, err, readErr)
	assert.False(t, IsThresholdError(err))
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }
