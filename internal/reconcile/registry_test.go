package reconcile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mm-swarm/internal/models"
)

func writeModule(t *testing.T, modulesDir, name, packageJSON string) string {
	t.Helper()
	dir := filepath.Join(modulesDir, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if packageJSON != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(packageJSON), 0o644))
	}
	return dir
}

func TestBrowseURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"  ", ""},
		{"https://github.com/x/y", "https://github.com/x/y"},
		{"https://github.com/x/y.git", "https://github.com/x/y"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, BrowseURL(tt.in))
		})
	}
}

func TestReadModuleRecord_FromPackageJSON(t *testing.T) {
	dir := writeModule(t, t.TempDir(), "MMM-Weather", `{
		"name": "MMM-Weather",
		"version": "1.2.3",
		"description": "Shows the weather",
		"author": {"name": "Jane"},
		"repository": {"type": "git", "url": "https://github.com/jane/MMM-Weather.git"}
	}`)

	rec := ReadModuleRecord(dir)
	assert.Equal(t, "MMM-Weather", rec.Title)
	assert.Equal(t, "Jane", rec.Author)
	assert.Equal(t, "1.2.3", rec.Version)
	assert.Equal(t, "Shows the weather", rec.Description)
	assert.Equal(t, "https://github.com/jane/MMM-Weather", rec.Repository)
}

func TestReadModuleRecord_Defaults(t *testing.T) {
	dir := writeModule(t, t.TempDir(), "MMM-Local", "")

	rec := ReadModuleRecord(dir)
	assert.Equal(t, models.ModuleRecord{
		Title:       "MMM-Local",
		Version:     "0.0.0",
		Description: "Local module installation of MMM-Local",
	}, rec)
}

func TestRefreshRegistry_KnownRepositoryNotReappended(t *testing.T) {
	root := t.TempDir()
	modulesDir := filepath.Join(root, "modules")
	writeModule(t, modulesDir, "MMM-Y", `{"name": "MMM-Y", "repository": "https://github.com/x/y"}`)

	external := filepath.Join(root, "mmpm-external-packages.json")
	original := `{"External Packages": [{"title": "MMM-Y", "author": "x", "repository": "https://github.com/x/y", "description": "y"}]}`
	require.NoError(t, os.WriteFile(external, []byte(original), 0o644))

	res, err := RefreshRegistry(modulesDir, external, filepath.Join(root, "missing.json"))
	require.NoError(t, err)
	assert.False(t, res.Saved)
	assert.Empty(t, res.Registered)
	assert.Equal(t, 1, res.Known)

	data, err := os.ReadFile(external)
	require.NoError(t, err)
	assert.Equal(t, original, string(data))
}

func TestRefreshRegistry_AppendsUnknownModules(t *testing.T) {
	root := t.TempDir()
	modulesDir := filepath.Join(root, "modules")
	writeModule(t, modulesDir, "default", "")
	writeModule(t, modulesDir, "mmpm", "")
	writeModule(t, modulesDir, ".hidden", "")
	writeModule(t, modulesDir, "MMM-Known", `{"repository": "https://github.com/a/known"}`)
	writeModule(t, modulesDir, "MMM-New", `{"name": "MMM-New", "author": "Bob", "version": "2.0.0", "repository": "git+https://github.com/bob/new.git"}`)
	writeModule(t, modulesDir, "MMM-Local", "")

	thirdParty := filepath.Join(root, "MagicMirror-3rd-party-packages-db.json")
	require.NoError(t, os.WriteFile(thirdParty, []byte(`{"Clocks": [{"title": "MMM-Known", "repository": "https://github.com/a/known"}]}`), 0o644))
	external := filepath.Join(root, "mmpm", "mmpm-external-packages.json")

	res, err := RefreshRegistry(modulesDir, external, thirdParty)
	require.NoError(t, err)
	assert.True(t, res.Saved)
	require.Len(t, res.Registered, 2)
	assert.Equal(t, "MMM-Local", res.Registered[0].Title)
	assert.Equal(t, "MMM-New", res.Registered[1].Title)

	raw, err := os.ReadFile(external)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n    \"External Packages\": [")
	assert.NotContains(t, string(raw), "version")

	var reg models.PackageRegistry
	require.NoError(t, json.Unmarshal(raw, &reg))
	entries := reg[models.ExternalPackagesKey]
	require.Len(t, entries, 2)
	assert.Equal(t, "Bob", entries[1].Author)
	assert.Equal(t, "https://github.com/bob/new", entries[1].Repository)

	again, err := RefreshRegistry(modulesDir, external, thirdParty)
	require.NoError(t, err)
	assert.Len(t, again.Registered, 1, "modules without repository are registered on every run")
	assert.Equal(t, "MMM-Local", again.Registered[0].Title)
}

func TestLoadRegistry_MalformedIsEmpty(t *testing.T) {
	file := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(file, []byte("{not json"), 0o644))
	assert.Empty(t, LoadRegistry(file))
	assert.Empty(t, LoadRegistry(file+".missing"))
}
