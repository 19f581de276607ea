package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookup(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestLoad_Valid(t *testing.T) {
	e, err := Load(lookup(map[string]string{
		"INSTANCE":  "kitchen",
		"MM_PORT":   "8081",
		"MMPM_PORT": "7894",
		"LOCAL_IP":  "192.168.1.20",
		"IS_DEBUG":  "true",
		"API_PORT":  "2000",
	}))
	require.NoError(t, err)
	assert.Equal(t, "kitchen", e.Instance)
	assert.Equal(t, 8081, e.MMPort)
	assert.Equal(t, 7894, e.MMPMPort)
	assert.Equal(t, 2000, e.APIPort)
	assert.Equal(t, 8554, e.RTSPPort)
	assert.Equal(t, 8443, e.SRTPPort)
	assert.Equal(t, 8555, e.WebRTCPort)
	assert.True(t, e.Debug)
	assert.False(t, e.FirstInstance())
}

func TestLoad_MissingVariables(t *testing.T) {
	_, err := Load(lookup(map[string]string{"INSTANCE": "a", "MM_PORT": " "}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingVariable)
	assert.Contains(t, err.Error(), "MM_PORT")
	assert.Contains(t, err.Error(), "MMPM_PORT")
	assert.Contains(t, err.Error(), "LOCAL_IP")
}

func TestLoad_InvalidPort(t *testing.T) {
	_, err := Load(lookup(map[string]string{
		"INSTANCE":  "a",
		"MM_PORT":   "eighty",
		"MMPM_PORT": "7890",
		"LOCAL_IP":  "10.0.0.2",
	}))
	assert.ErrorIs(t, err, ErrInvalidPort)
}

func TestFirstInstance(t *testing.T) {
	e := &Environment{MMPort: DefaultMMPort}
	assert.True(t, e.FirstInstance())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "instance.env")
	require.NoError(t, os.WriteFile(path, []byte("MMSWARM_TEST_INSTANCE=attic\n"), 0o644))
	t.Setenv("MMSWARM_TEST_INSTANCE", "")
	require.NoError(t, os.Unsetenv("MMSWARM_TEST_INSTANCE"))

	require.NoError(t, LoadFile(path))
	assert.Equal(t, "attic", os.Getenv("MMSWARM_TEST_INSTANCE"))
	assert.NoError(t, LoadFile())
}
