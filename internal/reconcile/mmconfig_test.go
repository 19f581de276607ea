package reconcile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mm-swarm/internal/document"
	"mm-swarm/internal/env"
)

func testEnv(mmPort int) *env.Environment {
	return &env.Environment{
		Instance:   "livingroom",
		MMPort:     mmPort,
		MMPMPort:   7890,
		LocalIP:    "192.168.1.5",
		APIPort:    1984,
		RTSPPort:   8554,
		SRTPPort:   8443,
		WebRTCPort: 8555,
	}
}

func mustGet(t *testing.T, n *document.Node, key string) *document.Node {
	t.Helper()
	v, ok := n.Get(key)
	require.True(t, ok, "missing key %q", key)
	return v
}

func TestDesiredConfig_UserKeysKeptEnforcedKeysWin(t *testing.T) {
	enforced := document.Mapping().Set("port", document.Scalar(8080))
	base := document.Mapping().Set("timeFormat", document.Scalar(12))
	actual := document.Mapping().
		Set("language", document.Scalar("en")).
		Set("port", document.Scalar(9999))

	got := DesiredConfig(enforced, base, actual)

	assert.Equal(t, "en", mustGet(t, got, "language").Value())
	assert.True(t, mustGet(t, got, "timeFormat").Equal(document.Scalar(12)))
	assert.True(t, mustGet(t, got, "port").Equal(document.Scalar(8080)))
}

func TestDesiredConfig_EnforcedSequenceReplacesUserSequence(t *testing.T) {
	actual := document.Mapping().
		Set("ipWhitelist", document.Sequence(document.Scalar("127.0.0.1"))).
		Set("logging", document.Mapping().
			Set("dateFormat", document.Scalar("HH:mm")).
			Set("colors", document.Scalar(true)))

	got := DesiredConfig(EnforcedConfig(testEnv(8081)), BaseConfig(), actual)

	assert.Equal(t, 0, mustGet(t, got, "ipWhitelist").Len())
	logging := mustGet(t, got, "logging")
	assert.Equal(t, "", mustGet(t, logging, "dateFormat").Value())
	assert.Equal(t, true, mustGet(t, logging, "colors").Value())
	assert.True(t, mustGet(t, got, "port").Equal(document.Scalar(8081)))
	assert.Equal(t, true, mustGet(t, got, "serverOnly").Value())
}

func TestDesiredConfig_PrependsMissingRequiredModules(t *testing.T) {
	clock := document.Mapping().Set("module", document.Scalar("clock"))
	actual := document.Mapping().Set("modules", document.Sequence(clock))

	got := DesiredConfig(EnforcedConfig(testEnv(8080)), BaseConfig(), actual)

	modules := mustGet(t, got, "modules").Items()
	require.Len(t, modules, 3)
	assert.Equal(t, "mmpm", mustGet(t, modules[0], "module").Value())
	assert.Equal(t, "MMM-RefreshClientOnly", mustGet(t, modules[1], "module").Value())
	assert.Equal(t, "clock", mustGet(t, modules[2], "module").Value())

	again := DesiredConfig(EnforcedConfig(testEnv(8080)), BaseConfig(), got)
	assert.Len(t, mustGet(t, again, "modules").Items(), 3)
}

func TestRenderConfigJS_LoadsBack(t *testing.T) {
	desired := DesiredConfig(EnforcedConfig(testEnv(8080)), BaseConfig(), document.Mapping().
		Set("language", document.Scalar("en")).
		Set("custom-key", document.Scalar(`say "hi"`)))

	text, err := RenderConfigJS(desired, testEnv(8080).Summary())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "/** MagicMirror² Config"))
	assert.Contains(t, text, " * ► LOCAL_IP    : 192.168.1.5\n")
	assert.Contains(t, text, "let config = {\n  address: \"0.0.0.0\",")
	assert.Contains(t, text, `"custom-key": "say \"hi\""`)
	assert.True(t, strings.HasSuffix(text, "module.exports = config;\n}\n"))

	file := filepath.Join(t.TempDir(), "config.js")
	require.NoError(t, os.WriteFile(file, []byte(text), 0o644))
	loaded, err := LoadConfigJS(file)
	require.NoError(t, err)
	assert.True(t, loaded.Equal(desired))
}

func TestLoadConfigJS_Errors(t *testing.T) {
	dir := t.TempDir()

	broken := filepath.Join(dir, "broken.js")
	require.NoError(t, os.WriteFile(broken, []byte("let config = {"), 0o644))
	_, err := LoadConfigJS(broken)
	assert.Error(t, err)

	_, err = LoadConfigJS(filepath.Join(dir, "missing.js"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	empty := filepath.Join(dir, "empty.js")
	require.NoError(t, os.WriteFile(empty, []byte("var x = 1;"), 0o644))
	node, err := LoadConfigJS(empty)
	require.NoError(t, err)
	assert.Equal(t, 0, node.Len())
}

func TestLoadCurrentConfig_FallsBackToSampleThenEmpty(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "config.js")
	sample := filepath.Join(dir, "config.js.sample")

	node, err := LoadCurrentConfig(configFile, sample)
	require.NoError(t, err)
	assert.Equal(t, 0, node.Len())

	require.NoError(t, os.WriteFile(sample, []byte(`let config = { language: "de" }; module.exports = config;`), 0o644))
	node, err = LoadCurrentConfig(configFile, sample)
	require.NoError(t, err)
	assert.Equal(t, "de", mustGet(t, node, "language").Value())

	require.NoError(t, os.WriteFile(configFile, []byte(`module.exports = { language: "fr" };`), 0o644))
	node, err = LoadCurrentConfig(configFile, sample)
	require.NoError(t, err)
	assert.Equal(t, "fr", mustGet(t, node, "language").Value())
}
