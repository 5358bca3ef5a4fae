package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: FormatJSON, Level: slog.LevelInfo})
	log.Info("mounted", "mountpoint", "/mnt/photos")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "mounted", rec["msg"])
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "/mnt/photos", rec["mountpoint"])
}

func TestNew_TextIsDefault(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf})
	log.Info("hello", "tag", "Vacation")

	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "tag=Vacation")
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Level: slog.LevelWarn})
	log.Info("dropped")
	log.Debug("dropped too")
	assert.Empty(t, buf.String())

	log.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_AddSourceShortensPath(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Format: FormatJSON, AddSource: true})
	log.Info("where")

	var rec struct {
		Source struct {
			File string `json:"file"`
		} `json:"source"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "logger_test.go", rec.Source.File)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidFormat(t *testing.T) {
	assert.True(t, ValidFormat(""))
	assert.True(t, ValidFormat(FormatText))
	assert.True(t, ValidFormat(FormatJSON))
	assert.False(t, ValidFormat("pretty"))
}
