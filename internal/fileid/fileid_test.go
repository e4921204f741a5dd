package fileid

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(a, []byte("a"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("b"), 0644))

	idA, err := Get(a)
	require.NoError(t, err)
	idB, err := Get(b)
	require.NoError(t, err)
	assert.NotEqual(t, idA, idB)

	moved := filepath.Join(dir, "moved")
	require.NoError(t, os.Rename(a, moved))

	idMoved, err := Get(moved)
	require.NoError(t, err)
	assert.Equal(t, idA, idMoved, "rename must keep the identity")

	_, err = Get(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
