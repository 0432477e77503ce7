package logger

import (
	"bytes"
	"os"
	"path/filepath"
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
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewWithWriter(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.DebugLevel) })

	t.Run("json console", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(Config{Level: "warn"}, &buf)

		log.Info().Msg("hidden")
		log.Warn().Str("job", "fx-ingest").Msg("shown")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), `"job":"fx-ingest"`)
		assert.Contains(t, buf.String(), `"message":"shown"`)
	})

	t.Run("file output is JSON alongside pretty console", func(t *testing.T) {
		var buf bytes.Buffer
		path := filepath.Join(t.TempDir(), "premium.log")
		log := NewWithWriter(Config{Level: "info", Pretty: true, File: path}, &buf)

		log.Info().Msg("written twice")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"message":"written twice"`)
		assert.Contains(t, buf.String(), "written twice")
		assert.NotContains(t, buf.String(), `"message"`)
	})
}
