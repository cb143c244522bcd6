package persist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// persisterState is a struct for persister testing.
type persisterState struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

func TestPersister_SaveLoad(t *testing.T) {
	t.Parallel()

	for _, codec := range []Codec{NewJSONCodec(), NewGobCodec(), NewLZ4Codec(NewJSONCodec())} {
		t.Run(codec.Extension(), func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			p := NewPersister[persisterState]("mystate", codec)

			assert.False(t, p.Exists(dir))
			require.NoError(t, p.Save(dir, &persisterState{Label: "hello", Value: 42}))
			assert.True(t, p.Exists(dir))

			restored, err := p.Load(dir)
			require.NoError(t, err)
			assert.Equal(t, persisterState{Label: "hello", Value: 42}, *restored)
		})
	}
}

func TestPersister_LoadMissingFile(t *testing.T) {
	t.Parallel()

	p := NewPersister[persisterState]("missing", NewJSONCodec())

	_, err := p.Load(t.TempDir())
	require.Error(t, err)
	assert.True(t, IsNotExist(err))
}
