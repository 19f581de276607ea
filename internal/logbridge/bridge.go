package logbridge

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
)

const (
	timestampLayout = "2006/01/02 15:04:05.000"
	nameWidth       = 12
	levelWidth      = 8
	defaultLevel    = "INFO"
)

var (
	// mmpm logs "[date] [logger] [LEVEL] message"
	mmpmLine = regexp.MustCompile(`^\[[^\]]+\]\s+\[[^\]]+\]\s+(\[[^\]]+\])\s+(.*)`)
	// "[LEVEL]|message" as emitted by the patched console-stamp and the mmpm rewrite
	labelled = regexp.MustCompile(`^\[?([^\]|]+)\]?\|(.*)$`)
)

var levelColors = map[string]string{
	"INFO":    "green",
	"LOG":     "blue",
	"DEBUG":   "cyan",
	"WARNING": "yellow",
	"ERROR":   "red",
}

// Observer is told about every forwarded line.
type Observer func(process, level string)

/**
 * Bridge reformats the output of supervised processes into one stream
 * @property {io.Writer} out - Destination of formatted lines
 * @property {bool} color - Emit ANSI colors
 * @property {map[string]string} levels - Last level seen per process
 * @description
 * - Safe for concurrent use, each line is written with a single Write call
 */
type Bridge struct {
	out      io.Writer
	color    bool
	now      func() time.Time
	observer Observer

	mu     sync.Mutex
	levels map[string]string
}

func New(out io.Writer, color bool) *Bridge {
	return &Bridge{
		out:    out,
		color:  color,
		now:    time.Now,
		levels: map[string]string{},
	}
}

// SetObserver registers fn to be called for each forwarded line.
func (b *Bridge) SetObserver(fn Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observer = fn
}

/**
 * Decide whether output should be colored
 * @param {string} mode - "always", "never" or "auto"
 * @param {*os.File} f - Output checked for a terminal in auto mode
 * @returns {bool} True when colors should be written
 */
func ColorEnabled(mode string, f *os.File) bool {
	switch strings.ToLower(mode) {
	case "always":
		return true
	case "never":
		return false
	}
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NormalizeLevel upper-cases a level token; WARN and WARNING both become WARNING.
func NormalizeLevel(level string) string {
	level = strings.ToUpper(strings.TrimSpace(level))
	if level == "WARN" {
		return "WARNING"
	}
	return level
}

/**
 * Split a raw line into level and message
 * @param {string} process - Process name, selects process specific rewrites
 * @param {string} line - One line without its terminator
 * @returns {string} Normalized level, empty when the line carries none
 * @returns {string} Message body
 */
func ParseLine(process, line string) (string, string) {
	if process == "mmpm" {
		line = strings.TrimRightFunc(mmpmLine.ReplaceAllString(line, "$1|$2"), unicode.IsSpace)
	}
	if !strings.HasPrefix(line, "[") {
		return "", line
	}
	m := labelled.FindStringSubmatch(line)
	if m == nil {
		return "", line
	}
	return NormalizeLevel(m[1]), m[2]
}

/**
 * Format one line for output
 * @param {string} process - Originating process
 * @param {string} line - Raw line
 * @returns {string} Formatted line with trailing newline
 * @returns {string} Level the line was written with
 * @returns {bool} False when the line is dropped
 * @description
 * - Empty lines are dropped
 * - A line without level reuses the process's last level, INFO before any was seen
 */
func (b *Bridge) Format(process, line string) (string, string, bool) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return "", "", false
	}
	level, msg := ParseLine(process, line)
	if strings.TrimSpace(msg) == "" {
		return "", "", false
	}

	b.mu.Lock()
	if level == "" {
		level = b.levels[process]
		if level == "" {
			level = defaultLevel
		}
	}
	b.levels[process] = level
	b.mu.Unlock()

	ts := b.now().Format(timestampLayout) + " "
	lvl := fmt.Sprintf("%*s", levelWidth, level)
	if b.color {
		ts = ansi.Color(ts, "black+h")
		if c, ok := levelColors[level]; ok {
			lvl = ansi.Color(lvl, c)
		}
	}
	return fmt.Sprintf("%s%*s |%s: %s\n", ts, nameWidth, process, lvl, msg), level, true
}

// Write forwards every line of data, a chunk read from process's output.
func (b *Bridge) Write(process, data string) {
	for _, line := range strings.Split(data, "\n") {
		out, level, ok := b.Format(process, line)
		if !ok {
			continue
		}
		b.mu.Lock()
		_, _ = io.WriteString(b.out, out)
		observer := b.observer
		b.mu.Unlock()
		if observer != nil {
			observer(process, level)
		}
	}
}

// Level returns the sticky level of process, empty before its first line.
func (b *Bridge) Level(process string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.levels[process]
}
