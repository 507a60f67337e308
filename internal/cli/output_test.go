package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/maxgio92/sigmatch"
)

var testAssignments = []sigmatch.Assignment{
	{Address: 0x402000, OldName: "sub_402000", NewName: "Zeta", Signature: "Zeta"},
	{Address: 0x401000, OldName: "sub_401000", NewName: "Alpha", Signature: "Alpha"},
	{Address: 0x401800, OldName: "Alpha", NewName: "Alpha_1", Signature: "Alpha"},
}

func TestWriteSymbolMap_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "renames.json")
	require.NoError(t, writeSymbolMap(path, testAssignments))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, gjson.ValidBytes(data))

	var keys, values []string
	gjson.ParseBytes(data).ForEach(func(k, v gjson.Result) bool {
		keys = append(keys, k.String())
		values = append(values, v.String())
		return true
	})
	assert.Equal(t, []string{"0x402000", "0x401000", "0x401800"}, keys)
	assert.Equal(t, []string{"Zeta", "Alpha", "Alpha_1"}, values)
}

func TestWriteSymbolMap_YAML(t *testing.T) {
	for _, ext := range []string{".yaml", ".yml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "renames"+ext)
			require.NoError(t, writeSymbolMap(path, testAssignments))

			data, err := os.ReadFile(path)
			require.NoError(t, err)

			var doc yaml.Node
			require.NoError(t, yaml.Unmarshal(data, &doc))
			require.Len(t, doc.Content, 1)
			m := doc.Content[0]
			require.Equal(t, yaml.MappingNode, m.Kind)
			require.Len(t, m.Content, 6)
			assert.Equal(t, "0x402000", m.Content[0].Value)
			assert.Equal(t, "!!str", m.Content[0].Tag)
			assert.Equal(t, "Alpha_1", m.Content[5].Value)
		})
	}
}

func TestWriteSymbolMap_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "renames.json")
	require.NoError(t, writeSymbolMap(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(data))
}

func TestWriteSymbolMap_BadPath(t *testing.T) {
	err := writeSymbolMap(filepath.Join(t.TempDir(), "missing", "renames.json"), testAssignments)
	assert.Error(t, err)
}
