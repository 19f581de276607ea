package cmd

import (
	"bytes"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteVersions(t *testing.T) {
	saved := SoftwareVer
	defer func() { SoftwareVer = saved }()
	SoftwareVer = "1.4.0"
	BuildCommitId = "abc123"

	var out bytes.Buffer
	writeVersions(&out, false)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, "mm-swarm 1.4.0", lines[0])
	assert.Contains(t, lines, "Build Commit ID: abc123")
	assert.Contains(t, out.String(), "Go: "+runtime.Version())

	out.Reset()
	writeVersions(&out, true)
	assert.Equal(t, "1.4.0\n", out.String())
}

func TestVersionFallsBackWhenUnset(t *testing.T) {
	saved := SoftwareVer
	defer func() { SoftwareVer = saved }()
	SoftwareVer = ""
	assert.NotEmpty(t, Version())
}
