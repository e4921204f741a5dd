package debouncer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestPathCacheAddRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a"))
	writeFile(t, filepath.Join(root, "sub", "b"))

	c := NewPathCache()
	require.NoError(t, c.AddRoot(root, true))

	for _, p := range []string{root, filepath.Join(root, "a"), filepath.Join(root, "sub"), filepath.Join(root, "sub", "b")} {
		_, ok := c.Lookup(p)
		assert.True(t, ok, p)
	}

	flat := NewPathCache()
	require.NoError(t, flat.AddRoot(root, false))
	_, ok := flat.Lookup(filepath.Join(root, "sub"))
	assert.True(t, ok)
	_, ok = flat.Lookup(filepath.Join(root, "sub", "b"))
	assert.False(t, ok)
}

func TestPathCacheAddRootMissing(t *testing.T) {
	c := NewPathCache()
	assert.Error(t, c.AddRoot(filepath.Join(t.TempDir(), "missing"), true))
	assert.Zero(t, c.Len())
}

func TestPathCacheRemove(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "d", "x"))
	writeFile(t, filepath.Join(root, "dd"))

	c := NewPathCache()
	require.NoError(t, c.AddRoot(root, true))

	c.Remove(filepath.Join(root, "d"))

	_, ok := c.Lookup(filepath.Join(root, "d", "x"))
	assert.False(t, ok)
	_, ok = c.Lookup(filepath.Join(root, "dd"))
	assert.True(t, ok)

	c.RemoveRoot(root)
	assert.Zero(t, c.Len())
}

func TestPathCacheAddPathFollowsRootMode(t *testing.T) {
	root := t.TempDir()
	c := NewPathCache()
	require.NoError(t, c.AddRoot(root, true))

	writeFile(t, filepath.Join(root, "new", "deep", "f"))
	c.AddPath(filepath.Join(root, "new"))

	_, ok := c.Lookup(filepath.Join(root, "new", "deep", "f"))
	assert.True(t, ok)

	c.AddPath(filepath.Join(root, "gone"))
	_, ok = c.Lookup(filepath.Join(root, "gone"))
	assert.False(t, ok)
}

func TestPathCacheRescan(t *testing.T) {
	root := t.TempDir()
	a, b, c := filepath.Join(root, "a"), filepath.Join(root, "b"), filepath.Join(root, "c")
	writeFile(t, a)
	writeFile(t, b)

	cache := NewPathCache()
	require.NoError(t, cache.AddRoot(root, true))

	writeFile(t, c)
	require.NoError(t, os.Remove(b))

	added, err := cache.Rescan()
	require.NoError(t, err)
	assert.Equal(t, []string{c}, added)

	_, ok := cache.Lookup(b)
	assert.False(t, ok)
	_, ok = cache.Lookup(c)
	assert.True(t, ok)
}

func TestPathCacheRescanKeepsMappingOnError(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "root")
	a := filepath.Join(root, "a")
	writeFile(t, a)

	cache := NewPathCache()
	require.NoError(t, cache.AddRoot(root, true))
	require.NoError(t, os.RemoveAll(root))

	added, err := cache.Rescan()
	assert.Empty(t, added)

	var rescanErr *RescanError
	require.ErrorAs(t, err, &rescanErr)
	assert.Equal(t, root, rescanErr.Root)

	_, ok := cache.Lookup(a)
	assert.True(t, ok)
}

func TestNoCache(t *testing.T) {
	var c IdentityCache = NoCache{}
	require.NoError(t, c.AddRoot(t.TempDir(), true))

	_, ok := c.Lookup("/anything")
	assert.False(t, ok)

	added, err := c.Rescan()
	assert.NoError(t, err)
	assert.Empty(t, added)
}
