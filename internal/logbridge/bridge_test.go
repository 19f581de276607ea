package logbridge

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mgutz/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBridge(color bool) (*Bridge, *bytes.Buffer) {
	var buf bytes.Buffer
	b := New(&buf, color)
	b.now = func() time.Time { return time.Date(2024, 3, 9, 7, 5, 3, 42_000_000, time.UTC) }
	return b, &buf
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name      string
		process   string
		line      string
		wantLevel string
		wantMsg   string
	}{
		{"labelled", "MagicMirror", "[INFO]|Starting server", "INFO", "Starting server"},
		{"warn normalized", "MagicMirror", "[warn]|disk low", "WARNING", "disk low"},
		{"warning kept", "MagicMirror", "[WARNING]|disk low", "WARNING", "disk low"},
		{"plain", "MagicMirror", "continuation of stack", "", "continuation of stack"},
		{"bracket without pipe", "nginx", "[notice] 1#1: start", "", "[notice] 1#1: start"},
		{"mmpm rewrite", "mmpm", "[2024-03-09 07:05:03] [gunicorn.error] [INFO] Booting worker   ", "INFO", "Booting worker"},
		{"mmpm rewrite only for mmpm", "nginx", "[a] [b] [INFO] x", "", "[a] [b] [INFO] x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, msg := ParseLine(tt.process, tt.line)
			assert.Equal(t, tt.wantLevel, level)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestFormat_Layout(t *testing.T) {
	b, _ := newTestBridge(false)

	out, level, ok := b.Format("MagicMirror", "[LOG]|Ready to go!")
	require.True(t, ok)
	assert.Equal(t, "LOG", level)
	assert.Equal(t, "2024/03/09 07:05:03.042  MagicMirror |     LOG: Ready to go!\n", out)
}

func TestFormat_StickyLevelPerProcess(t *testing.T) {
	b, _ := newTestBridge(false)

	_, level, ok := b.Format("mmpm", "no level yet")
	require.True(t, ok)
	assert.Equal(t, "INFO", level)

	_, _, _ = b.Format("MagicMirror", "[ERROR]|boom")
	out, level, ok := b.Format("MagicMirror", "    at stack frame")
	require.True(t, ok)
	assert.Equal(t, "ERROR", level)
	assert.True(t, strings.HasSuffix(out, "|   ERROR:     at stack frame\n"))

	assert.Equal(t, "INFO", b.Level("mmpm"))
	assert.Equal(t, "", b.Level("nginx"))
}

func TestFormat_DropsEmptyLines(t *testing.T) {
	b, _ := newTestBridge(false)
	for _, line := range []string{"", "   ", "\r", "[INFO]|"} {
		_, _, ok := b.Format("nginx", line)
		assert.False(t, ok, "%q", line)
	}
	assert.Equal(t, "", b.Level("nginx"))
}

func TestFormat_Colors(t *testing.T) {
	b, _ := newTestBridge(true)

	out, _, ok := b.Format("nginx", "[WARN]|slow")
	require.True(t, ok)
	assert.Contains(t, out, ansi.Color(" WARNING", "yellow"))
	assert.Contains(t, out, ansi.Color("2024/03/09 07:05:03.042 ", "black+h"))

	out, _, ok = b.Format("nginx", "[TRACE]|deep")
	require.True(t, ok)
	assert.Contains(t, out, "|   TRACE: deep\n")
}

func TestWrite_SplitsChunksAndNotifies(t *testing.T) {
	b, buf := newTestBridge(false)
	var seen []string
	b.SetObserver(func(process, level string) {
		seen = append(seen, process+":"+level)
	})

	b.Write("MagicMirror", "[INFO]|one\n\n[ERROR]|two\nthree\n")

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[0], "INFO: one"))
	assert.True(t, strings.HasSuffix(lines[1], "ERROR: two"))
	assert.True(t, strings.HasSuffix(lines[2], "ERROR: three"))
	assert.Equal(t, []string{"MagicMirror:INFO", "MagicMirror:ERROR", "MagicMirror:ERROR"}, seen)
}

func TestColorEnabled(t *testing.T) {
	assert.True(t, ColorEnabled("always", nil))
	assert.False(t, ColorEnabled("never", nil))
	assert.False(t, ColorEnabled("auto", nil))
}
