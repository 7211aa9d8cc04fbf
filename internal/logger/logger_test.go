package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{" warning ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseLevel(tc.in))
		})
	}
}

func TestKeyValueFields(t *testing.T) {
	var buf bytes.Buffer
	log := FromWriter(&buf, "debug").With("component", "codec")

	log.Warn("malformed mask", "raw", "abc", "error", errors.New("not a number"), 42, "ignored")

	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &event))
	assert.Equal(t, "warn", event["level"])
	assert.Equal(t, "malformed mask", event["message"])
	assert.Equal(t, "codec", event["component"])
	assert.Equal(t, "abc", event["raw"])
	assert.Equal(t, "not a number", event["error"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := FromWriter(&buf, "error")

	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.Error("kept")
	assert.Contains(t, buf.String(), "kept")
}
