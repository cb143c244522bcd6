package source_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/prescan/pkg/model"
	"github.com/Sumatoshi-tech/prescan/pkg/source"
)

// buildTree creates:
//
//	.hidden
//	a/x.txt
//	a/y/z.txt
//	b.txt
//	c/
func buildTree(t *testing.T) string {
	t.Helper()

	root := t.TempDir()

	for _, dir := range []string{"a/y", "c"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.FromSlash(dir)), 0o755))
	}

	for rel, body := range map[string]string{
		".hidden":   "h",
		"a/x.txt":   "xx",
		"a/y/z.txt": "zzz",
		"b.txt":     "bbbb",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(root, filepath.FromSlash(rel)), []byte(body), 0o600))
	}

	return root
}

var wantOrder = []string{
	"F .hidden", "D a", "F b.txt", "D c",
	"F a/x.txt", "D a/y",
	"F a/y/z.txt",
	"C a/y", "C a", "C c",
}

func describe(ev source.Event) string {
	switch ev.Kind {
	case source.EventItem:
		if ev.Item.IsDir {
			return "D " + ev.Item.RelPath
		}

		return "F " + ev.Item.RelPath
	case source.EventDirDone:
		return "C " + ev.Path
	default:
		return "E " + ev.Path
	}
}

func drain(t *testing.T, src source.Source) []string {
	t.Helper()

	out := []string{}

	for {
		ev, err := src.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}

		require.NoError(t, err)

		out = append(out, describe(ev))
	}
}

func TestWalker_Order(t *testing.T) {
	t.Parallel()

	w, err := source.NewWalker(buildTree(t), source.WalkerOptions{})
	require.NoError(t, err)

	defer w.Close()

	assert.Equal(t, wantOrder, drain(t, w))
}

func TestWalker_ItemFields(t *testing.T) {
	t.Parallel()

	root := buildTree(t)

	w, err := source.NewWalker(root, source.WalkerOptions{})
	require.NoError(t, err)

	items := map[string]model.Item{}

	for {
		ev, nextErr := w.Next(context.Background())
		if errors.Is(nextErr, io.EOF) {
			break
		}

		require.NoError(t, nextErr)

		if ev.Kind == source.EventItem {
			items[ev.Item.RelPath] = ev.Item
		}
	}

	z := items["a/y/z.txt"]
	assert.Equal(t, "z.txt", z.Name)
	assert.Equal(t, int64(3), z.Size)
	assert.Equal(t, filepath.Join(w.Root(), "a", "y", "z.txt"), z.Path)
	assert.Equal(t, "a/y", z.Parent())

	hidden := items[".hidden"]
	assert.True(t, hidden.Hidden())
	assert.Zero(t, items["a"].Size)
}

func TestWalker_Excludes(t *testing.T) {
	t.Parallel()

	root := buildTree(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "$Recycle.Bin", "deep"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".Trash-1000"), 0o755))

	w, err := source.NewWalker(root, source.WalkerOptions{Exclude: source.DefaultExcludes})
	require.NoError(t, err)

	assert.Equal(t, wantOrder, drain(t, w))
}

func TestWalker_DoesNotFollowSymlinks(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	root := buildTree(t)
	require.NoError(t, os.Symlink(filepath.Join(root, "a"), filepath.Join(root, "link")))

	w, err := source.NewWalker(root, source.WalkerOptions{})
	require.NoError(t, err)

	var link model.Item

	for {
		ev, nextErr := w.Next(context.Background())
		if errors.Is(nextErr, io.EOF) {
			break
		}

		require.NoError(t, nextErr)
		require.NotContains(t, ev.Item.RelPath, "link/")

		if ev.Item.RelPath == "link" {
			link = ev.Item
		}
	}

	assert.False(t, link.IsDir)
	assert.True(t, link.Attrs.Has(model.AttrReparse))
}

func TestWalker_UnreadableDirectoryIsEnumerationError(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}

	root := buildTree(t)
	locked := filepath.Join(root, "c")
	require.NoError(t, os.Chmod(locked, 0))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	w, err := source.NewWalker(root, source.WalkerOptions{})
	require.NoError(t, err)

	got := drain(t, w)
	assert.Contains(t, got, "E c")
	assert.Equal(t, "C c", got[len(got)-1])
}

func TestWalker_RootInaccessible(t *testing.T) {
	t.Parallel()

	_, err := source.NewWalker(filepath.Join(t.TempDir(), "missing"), source.WalkerOptions{})
	require.ErrorIs(t, err, source.ErrRootInaccessible)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err = source.NewWalker(file, source.WalkerOptions{})
	require.ErrorIs(t, err, source.ErrRootInaccessible)
}

func TestWalker_CancelledContext(t *testing.T) {
	t.Parallel()

	w, err := source.NewWalker(buildTree(t), source.WalkerOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = w.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestWalker_PrunesProcessedDirectories(t *testing.T) {
	t.Parallel()

	w, err := source.NewWalker(buildTree(t), source.WalkerOptions{
		Processed: func(rel string) bool { return rel == "a" },
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"F .hidden", "D a", "F b.txt", "D c", "C c"}, drain(t, w))
}

func TestExcluder(t *testing.T) {
	t.Parallel()

	e := source.NewExcluder([]string{"node_modules", ".Trash-*", " "})

	assert.True(t, e.Match("Node_Modules"))
	assert.True(t, e.Match(".trash-501"))
	assert.False(t, e.Match("src"))
	assert.False(t, (*source.Excluder)(nil).Match("x"))
}
