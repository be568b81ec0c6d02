package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", JSON: true}, &buf)
	log.Debug("hidden")
	log.Info("page fetched", "page", 3, Err(errors.New("boom")))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "page fetched", record["msg"])
	assert.Equal(t, float64(3), record["page"])
	assert.Equal(t, "boom", record["err"])
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", NoColor: true}, &buf)
	log.Debug("warm-up done", "status", 200)
	assert.Contains(t, buf.String(), "warm-up done")
	assert.Contains(t, buf.String(), "status=200")
}
