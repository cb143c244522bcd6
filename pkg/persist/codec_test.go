package persist

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testState is a struct for codec testing.
type testState struct {
	Name   string         `json:"name"`
	Count  int            `json:"count"`
	Values map[string]int `json:"values"`
}

func TestJSONCodec_IgnoresUnknownFields(t *testing.T) {
	t.Parallel()

	var decoded testState

	err := NewJSONCodec().Decode(strings.NewReader(`{"name":"x","future_field":[1,2]}`), &decoded)
	require.NoError(t, err)
	assert.Equal(t, "x", decoded.Name)
}

func TestJSONCodec_CompactNoIndent(t *testing.T) {
	t.Parallel()

	codec := &JSONCodec{Indent: ""}

	var buf bytes.Buffer

	require.NoError(t, codec.Encode(&buf, testState{Name: "compact", Count: 1}))
	assert.NotContains(t, buf.String(), "\n  ")
}

func TestLZ4Codec_WrapsInner(t *testing.T) {
	t.Parallel()

	codec := NewLZ4Codec(NewJSONCodec())
	assert.Equal(t, ".json.lz4", codec.Extension())

	original := testState{Name: strings.Repeat("folder/", 200), Count: 7, Values: map[string]int{"a": 1}}

	var buf bytes.Buffer

	require.NoError(t, codec.Encode(&buf, original))
	assert.Less(t, buf.Len(), len(original.Name))

	var decoded testState

	require.NoError(t, codec.Decode(&buf, &decoded))
	assert.Equal(t, original, decoded)
}

func TestLZ4Codec_CorruptInput(t *testing.T) {
	t.Parallel()

	var decoded testState

	err := NewLZ4Codec(NewGobCodec()).Decode(strings.NewReader("not an lz4 frame"), &decoded)
	assert.Error(t, err)
}

func TestSaveState_ReplacesAtomically(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	codec := NewJSONCodec()

	require.NoError(t, SaveState(dir, "state", codec, testState{Name: "first"}))
	require.NoError(t, SaveState(dir, "state", codec, testState{Name: "second"}))

	var loaded testState

	require.NoError(t, LoadState(dir, "state", codec, &loaded))
	assert.Equal(t, "second", loaded.Name)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
	assert.Equal(t, "state.json", entries[0].Name())

	info, err := os.Stat(filepath.Join(dir, "state.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerm), info.Mode().Perm())
}

func TestSaveState_MissingDir(t *testing.T) {
	t.Parallel()

	err := SaveState(filepath.Join(t.TempDir(), "missing"), "state", NewGobCodec(), testState{})
	assert.Error(t, err)
}

func TestLoadState_Corrupt(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "state.json"), []byte("{broken"), 0o600))

	var loaded testState

	err := LoadState(dir, "state", NewJSONCodec(), &loaded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode state")
}
