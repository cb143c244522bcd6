package source_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/prescan/pkg/source"
)

func TestPrefetch_TracksConsumerCursor(t *testing.T) {
	t.Parallel()

	root := buildTree(t)
	logPath := filepath.Join(t.TempDir(), source.LogFileName)

	direct := recordPrefix(t, root, filepath.Join(t.TempDir(), source.LogFileName), 4)

	inner, _, err := source.Open(source.Options{Root: root, LogPath: logPath})
	require.NoError(t, err)

	p := source.Prefetch(context.Background(), inner, 2)

	for range 4 {
		_, nextErr := p.Next(context.Background())
		require.NoError(t, nextErr)
	}

	assert.Equal(t, direct, p.Cursor())

	assert.Equal(t, wantOrder[4:], drain(t, p))
	assert.True(t, p.LogComplete())
	require.NoError(t, p.Sync())
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
}

func TestPrefetch_CloseMidway(t *testing.T) {
	t.Parallel()

	inner, err := source.NewWalker(buildTree(t), source.WalkerOptions{})
	require.NoError(t, err)

	p := source.Prefetch(context.Background(), inner, 1)

	_, err = p.Next(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Close())
	assert.False(t, p.LogComplete())
}

func TestPrefetch_CancelledConsumer(t *testing.T) {
	t.Parallel()

	inner, err := source.NewWalker(buildTree(t), source.WalkerOptions{})
	require.NoError(t, err)

	p := source.Prefetch(context.Background(), inner, 1)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
