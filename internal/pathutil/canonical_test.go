package pathutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)

	got, err := Canonical("a/../b/./c")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wd, "b", "c"), got)

	_, err = Canonical("")
	assert.Error(t, err)
}

func TestIsWithin(t *testing.T) {
	root := filepath.FromSlash("/data/root")

	assert.True(t, IsWithin(root, root))
	assert.True(t, IsWithin(filepath.Join(root, "a", "b"), root))
	assert.False(t, IsWithin(filepath.FromSlash("/data/rootless"), root))
	assert.False(t, IsWithin(filepath.FromSlash("/data"), root))
}
