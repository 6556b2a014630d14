package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/annstore"
)

func TestReadItems(t *testing.T) {
	in := `{"label": 1, "vector": [1, 0, 0]}

{"label": 2, "vector": [0, 1, 0]}
`
	items, err := readItems(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []annstore.Item{
		{Label: 1, Vector: []float32{1, 0, 0}},
		{Label: 2, Vector: []float32{0, 1, 0}},
	}, items)

	_, err = readItems(strings.NewReader("{\"label\": 1}\nnot json\n"))
	assert.ErrorContains(t, err, "line 2")
}

func TestParseVector(t *testing.T) {
	v, err := parseVector("1, 0.5,-2")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0.5, -2}, v)

	_, err = parseVector("1,x")
	assert.Error(t, err)
}

func TestParseLabels(t *testing.T) {
	ls, err := parseLabels("3,1,,7")
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 7}, ls)

	_, err = parseLabels("a")
	assert.Error(t, err)
}

func run(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return strings.TrimSpace(out.String())
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	itemsPath := filepath.Join(dir, "items.jsonl")
	require.NoError(t, os.WriteFile(itemsPath, []byte(
		`{"label": 1, "vector": [1, 0, 0]}
{"label": 2, "vector": [0, 1, 0]}
{"label": 3, "vector": [0, 0, 1, 0]}
`), 0o600))

	global := []string{"--dir", filepath.Join(dir, "store"), "--source", "cli", "--purpose", "test", "--dim", "3"}
	with := func(args ...string) []string { return append(args, global...) }

	assert.JSONEq(t, `{"exists":false}`, run(t, with("exists")...))
	assert.JSONEq(t, `{"included":2}`, run(t, with("rebuild", "--items", itemsPath)...))
	assert.JSONEq(t, `{"exists":true}`, run(t, with("exists")...))

	out := run(t, with("search", "--vector", "0,1,0", "-k", "1")...)
	assert.JSONEq(t, `[{"label":2,"distance":0,"similarity":1}]`, out)

	assert.JSONEq(t, `{"deleted":1}`, run(t, with("delete", "--labels", "2")...))
	out = run(t, with("search", "--vector", "0,1,0", "-k", "5")...)
	assert.Contains(t, out, `"label":1`)
	assert.NotContains(t, out, `"label":2`)

	run(t, with("drop")...)
	assert.JSONEq(t, `{"exists":false}`, run(t, with("exists")...))
}
