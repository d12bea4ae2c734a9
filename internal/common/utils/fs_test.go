package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	ok, err := IsDir(dir)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsDir(file)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = IsDir(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestIsFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	ok, err := IsFile(file)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsFile(dir)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnsureDir(t *testing.T) {
	t.Parallel()

	base := t.TempDir()

	nested := filepath.Join(base, "a", "b", "c")
	require.NoError(t, EnsureDir(nested))
	assert.DirExists(t, nested)

	// idempotent on an existing directory
	require.NoError(t, EnsureDir(nested))

	file := filepath.Join(base, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	require.Error(t, EnsureDir(file))
}
