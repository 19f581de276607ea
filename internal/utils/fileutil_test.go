package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFolder_OverwritesAndKeepsExtras(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("new"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "b.sh"), []byte("echo"), 0o755))
	require.NoError(t, os.Symlink("a.txt", filepath.Join(src, "link")))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "a.txt"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dst, "keep.txt"), []byte("mine"), 0o644))

	require.NoError(t, CopyFolder(src, dst))

	data, err := os.ReadFile(filepath.Join(dst, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.True(t, IsFile(filepath.Join(dst, "keep.txt")))

	info, err := os.Stat(filepath.Join(dst, "sub", "b.sh"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	target, err := os.Readlink(filepath.Join(dst, "link"))
	require.NoError(t, err)
	assert.Equal(t, "a.txt", target)
}

func TestCopyFolder_MissingSource(t *testing.T) {
	assert.Error(t, CopyFolder(filepath.Join(t.TempDir(), "nope"), t.TempDir()))
}

func TestChownTree_CurrentOwner(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), nil, 0o644))
	assert.NoError(t, ChownTree(dir, os.Getuid(), os.Getgid()))
	assert.NoError(t, ChownTree(dir, -1, -1))
}

func TestIsProcessRunning_Self(t *testing.T) {
	running, err := IsProcessRunning(os.Getpid())
	require.NoError(t, err)
	assert.True(t, running)
}
