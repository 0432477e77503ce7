package scheduler

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestCronLogger(t *testing.T) {
	var buf bytes.Buffer
	l := cronLogger{log: zerolog.New(&buf).Level(zerolog.DebugLevel)}

	l.Error(errors.New("boom"), "panic", "stack", "trace", "dangling")
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"error":"boom"`)
	assert.Contains(t, buf.String(), `"stack":"trace"`)
	assert.NotContains(t, buf.String(), "dangling")

	buf.Reset()
	l.Info("wake", "now", 1)
	assert.Contains(t, buf.String(), `"level":"debug"`)
	assert.Contains(t, buf.String(), `"now":1`)
}
