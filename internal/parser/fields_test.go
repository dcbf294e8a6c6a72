package parser

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{"epoch millis", `1705314600000`, testJan15_1030UTC, false},
		{"rfc3339 utc", `"2024-01-15T10:30:00Z"`, testJan15_1030UTC, false},
		{"rfc3339 offset normalized", `"2024-01-15T12:30:00+02:00"`, testJan15_1030UTC, false},
		{"rfc3339 fractional", `"2024-01-15T10:30:00.250Z"`,
			testJan15_1030UTC.Add(250 * time.Millisecond), false},
		{"zero millis", `0`, time.Unix(0, 0).UTC(), false},
		{"negative millis", `-1000`, time.Unix(-1, 0).UTC(), false},
		{"float millis", `1705314600000.5`, time.Time{}, true},
		{"out of range", `9223372036854775807`, time.Time{}, true},
		{"bool", `true`, time.Time{}, true},
		{"object", `{}`, time.Time{}, true},
		{"bad string", `"yesterday"`, time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			err := json.Unmarshal([]byte(tt.input), &ts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, ts.IsSet())
			assert.True(t, tt.want.Equal(ts.Time),
				"got %v, want %v", ts.Time, tt.want)
			assert.Equal(t, time.UTC, ts.Time.Location())
		})
	}
}

func TestTimestampAbsentIsUnset(t *testing.T) {
	var v struct {
		TS Timestamp `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{}`), &v))
	assert.False(t, v.TS.IsSet())
}

func TestValidateSessionID(t *testing.T) {
	assert.NoError(t, ValidateSessionID("7f8b3c1e-2d4a-4e6f-9a1b-0c2d3e4f5a6b"))
	assert.EqualError(t, ValidateSessionID(""), "session ID cannot be empty")
	assert.ErrorContains(t, ValidateSessionID("not-a-uuid"),
		`invalid UUID format for session ID "not-a-uuid"`)
}

func TestSessionIDUnmarshal(t *testing.T) {
	var id SessionID
	require.NoError(t, json.Unmarshal(
		[]byte(`"7f8b3c1e-2d4a-4e6f-9a1b-0c2d3e4f5a6b"`), &id))
	assert.Equal(t, SessionID("7f8b3c1e-2d4a-4e6f-9a1b-0c2d3e4f5a6b"), id)

	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &id))
	assert.Error(t, json.Unmarshal([]byte(`42`), &id))
}
