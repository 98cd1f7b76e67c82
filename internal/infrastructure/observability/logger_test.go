package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
		"bogus":   zerolog.InfoLevel,
	}

	for in, want := range tests {
		assert.Equal(t, want, parseLogLevel(in), in)
	}
}

func TestInitLogger_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := WithContext(InitLogger("debug", &buf), map[string]any{"job_id": "abc"})

	logger.Info().Msg("job submitted")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "job submitted", entry["message"])
	assert.Equal(t, "abc", entry["job_id"])
	assert.Contains(t, entry, "time")
}

func TestInitLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := InitLogger("error", &buf)

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len())
}
