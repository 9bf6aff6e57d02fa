package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &payload))
	return payload
}

func TestLogger_IncludesStackAndServiceOnError(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "test-service", "info")
	log.Error().Stack().Err(errors.New("boom")).Msg("something failed")

	payload := lastLine(t, &buf)
	assert.Equal(t, "test-service", payload["service"])
	assert.Equal(t, "error", payload["level"])
	assert.Contains(t, payload, "stack")
	assert.Contains(t, payload, "time")
}

func TestLogger_Level(t *testing.T) {
	t.Run("Debug is dropped at info", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, "svc", "info")
		log.Debug().Msg("hidden")
		assert.Empty(t, buf.String())
	})

	t.Run("Debug is kept at debug", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, "svc", "debug")
		log.Debug().Msg("shown")
		assert.Equal(t, "shown", lastLine(t, &buf)["message"])
	})

	t.Run("Bad level falls back to info", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, "svc", "loud")
		log.Debug().Msg("hidden")
		log.Info().Msg("shown")
		assert.Equal(t, "info", lastLine(t, &buf)["level"])
		assert.NotContains(t, buf.String(), "hidden")
	})
}
