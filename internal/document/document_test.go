package document

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustYAML(t *testing.T, text string) *Node {
	t.Helper()
	n, err := ParseYAML([]byte(text))
	require.NoError(t, err)
	return n
}

func TestMerge_MappingKeyUnion(t *testing.T) {
	a := mustYAML(t, "a: 1\nb:\n  x: 1\n")
	b := mustYAML(t, "b:\n  y: 2\nc: 3\n")

	out := Merge(a, b)

	assert.Equal(t, []string{"a", "b", "c"}, out.Keys())
	inner, ok := out.Get("b")
	require.True(t, ok)
	assert.Equal(t, []string{"x", "y"}, inner.Keys())
}

func TestMerge_SequenceDedupKeepsFirstOccurrence(t *testing.T) {
	a := mustYAML(t, "[a, b, c]")
	b := mustYAML(t, "[c, d, a, e]")

	out := Merge(a, b)

	var got []any
	for _, it := range out.Items() {
		got = append(got, it.Value())
	}
	assert.Equal(t, []any{"a", "b", "c", "d", "e"}, got)
}

func TestMerge_SequenceDedupStructural(t *testing.T) {
	a := mustYAML(t, "- {module: mmpm}\n- {module: clock}\n")
	b := mustYAML(t, "- {module: clock}\n- {module: weather}\n")

	out := Merge(a, b)

	assert.Equal(t, 3, out.Len())
}

func TestMerge_IncompatibleShapesSourceWins(t *testing.T) {
	cases := []struct {
		name   string
		target string
		source string
		want   string
	}{
		{"scalar over scalar", "port: 8080", "port: 9090", "port: 9090"},
		{"scalar over mapping", "port: {a: 1}", "port: 1", "port: 1"},
		{"mapping over sequence", "port: [1]", "port: {a: 1}", "port:\n  a: 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := Merge(mustYAML(t, tc.target), mustYAML(t, tc.source))
			text, err := out.MarshalYAML()
			require.NoError(t, err)
			assert.Equal(t, tc.want, text)
		})
	}
}

func TestMerge_DoesNotMutateOrAlias(t *testing.T) {
	a := mustYAML(t, "list: [1]\nmap: {k: v}\n")
	b := mustYAML(t, "list: [2]\n")
	before, _ := a.MarshalYAML()

	out := Merge(a, b)
	m, _ := out.Get("map")
	m.Set("k", Scalar("changed"))

	after, _ := a.MarshalYAML()
	assert.Equal(t, before, after)
}

func TestMergeAll_EnforcedOverridesWin(t *testing.T) {
	enforced := mustYAML(t, "port: 8080\naddress: 0.0.0.0\n")
	base := mustYAML(t, "timeFormat: 12\n")
	actual := mustYAML(t, "language: en\nport: 1234\n")

	out := MergeAll(enforced, base, actual, enforced)

	lang, _ := out.Get("language")
	tf, _ := out.Get("timeFormat")
	port, _ := out.Get("port")
	assert.Equal(t, "en", lang.Value())
	assert.Equal(t, 12, tf.Value())
	assert.Equal(t, 8080, port.Value())
}

func TestYAML_RoundTripKeepsKeyOrder(t *testing.T) {
	src := "version: \"3\"\nservices:\n  zeta:\n    image: x\n  alpha:\n    ports:\n      - \"8080:8080\"\n"
	doc, err := New(src)
	require.NoError(t, err)

	text := doc.String()
	assert.Less(t, strings.Index(text, "zeta"), strings.Index(text, "alpha"))

	again, err := New(text)
	require.NoError(t, err)
	assert.True(t, doc.Root().Equal(again.Root()))
	assert.Equal(t, text, again.String())
}

func TestYAML_TimestampsKeepSourceText(t *testing.T) {
	text := "created: 2001-12-14\nupdated: 2001-12-14T21:59:43Z\nquoted: \"2001-12-14\""
	n := mustYAML(t, text)
	assert.Equal(t, Timestamp("2001-12-14"), mustField(t, n, "created").Value())
	assert.Equal(t, "2001-12-14", mustField(t, n, "quoted").Value())

	out, err := n.MarshalYAML()
	require.NoError(t, err)
	assert.Equal(t, text, out)

	raw, err := n.MarshalJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"created":"2001-12-14","updated":"2001-12-14T21:59:43Z","quoted":"2001-12-14"}`, string(raw))
}

func mustField(t *testing.T, n *Node, key string) *Node {
	t.Helper()
	v, ok := n.Get(key)
	require.True(t, ok, key)
	return v
}

func TestJSON_RoundTripKeepsOrderAndNumbers(t *testing.T) {
	n, err := ParseJSON([]byte(`{"z": 1, "a": [1.5, "x", null, true], "m": {"b": 2}}`))
	require.NoError(t, err)

	raw, err := n.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":[1.5,"x",null,true],"m":{"b":2}}`, string(raw))
}

func TestJSON_NumberEqualsYAMLInt(t *testing.T) {
	j, err := ParseJSON([]byte(`{"port": 8080}`))
	require.NoError(t, err)
	y := mustYAML(t, "port: 8080")
	assert.True(t, j.Equal(y))
}

func TestNew_MalformedInputFailsWhole(t *testing.T) {
	doc, err := New("a: 1")
	require.NoError(t, err)

	err = doc.Add("b: 2", "c: [unclosed")
	require.Error(t, err)
	_, ok := doc.Root().Get("b")
	assert.False(t, ok)
}

func TestNew_FromFileAndDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "base.yml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"3\"\nservices: {}\n"), 0o644))

	base, err := New(path)
	require.NoError(t, err)
	merged, err := New(base, "services:\n  a:\n    image: x\n")
	require.NoError(t, err)

	assert.Equal(t, "version: \"3\"\nservices:\n  a:\n    image: x", merged.String())
}

func TestNew_MissingFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestWrite_TrimsAndTerminates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "docker-compose.yml")
	require.NoError(t, MustNew("version: \"3\"").Write(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "version: \"3\"\n", string(data))
}

func TestExpand_ReplacesEveryPlaceholder(t *testing.T) {
	tpl := MustNew("services:\n  ${INSTANCE}_mm:\n    container_name: ${INSTANCE}\n    ports:\n      - \"0.0.0.0:${MM_PORT}:${MM_PORT}\"\n")
	var set SubstitutionSet
	set.Add("INSTANCE", "livingroom")
	set.Add("MM_PORT", 8080)
	set.Add("INSTANCE", "kitchen")
	set.Add("MM_PORT", 8081)

	docs, err := tpl.Expand(set)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	for i, want := range []string{"livingroom", "kitchen"} {
		text := docs[i].String()
		assert.NotContains(t, text, "${")
		assert.Contains(t, text, want+"_mm")
	}
	assert.Contains(t, docs[1].String(), "0.0.0.0:8081:8081")
}

func TestExpand_IndependentDocuments(t *testing.T) {
	tpl := MustNew("name: ${N}\n")
	var set SubstitutionSet
	set.Set("N", "a", "b")

	docs, err := tpl.Expand(set)
	require.NoError(t, err)
	require.NoError(t, docs[0].Add("extra: 1"))

	_, ok := docs[1].Root().Get("extra")
	assert.False(t, ok)
}

func TestExpand_EmptySet(t *testing.T) {
	docs, err := MustNew("a: 1").Expand(SubstitutionSet{})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestExpand_UnevenLists(t *testing.T) {
	var set SubstitutionSet
	set.Set("A", "1", "2")
	set.Set("B", "1")

	_, err := MustNew("a: ${A}").Expand(set)
	assert.ErrorIs(t, err, ErrUnevenSubstitutions)
}
