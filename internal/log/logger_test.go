package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	l := New(LoggerConfig{Level: WarnLevel, Stderr: &buf})

	l.Info("hidden")
	l.Warn("file skipped", "path", "a.c", "reason", "no build condition")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN: file skipped path=a.c reason=no build condition")
}

func TestDefaultLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := New(LoggerConfig{Level: DebugLevel, Stderr: &buf, JSONOutput: true})

	l.Debug("dead block", "path", "f.c", "line", 3)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "dead block", entry["message"])
	assert.Equal(t, "f.c", entry["path"])
	assert.Equal(t, "3", entry["line"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
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

func TestOrDefault(t *testing.T) {
	assert.Equal(t, Logger(Default()), OrDefault(nil))

	d := Discard()
	assert.Equal(t, d, OrDefault(d))
	d.Error("ignored", "k", "v")
}

func TestProgressSpinner(t *testing.T) {
	var buf syncBuffer
	p := NewProgressSpinner(&buf, "extracting")
	p.Start()
	time.Sleep(200 * time.Millisecond)
	p.Message("committing")
	time.Sleep(200 * time.Millisecond)
	p.Stop()

	out := buf.String()
	assert.Contains(t, out, "extracting")
	assert.Contains(t, out, "committing")
	assert.True(t, strings.HasSuffix(out, "\r\033[K"))
}

// syncBuffer is a bytes.Buffer safe for the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
