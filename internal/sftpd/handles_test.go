package sftpd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleIDsAreSequentialAndNeverReused(t *testing.T) {
	t.Parallel()

	table := newHandleTable()

	first := table.add(&openHandle{path: "/a"})
	second := table.add(&openHandle{path: "/b"})
	third := table.add(&openHandle{path: "/c"})
	assert.Equal(t, "handle_1", first)
	assert.Equal(t, "handle_2", second)
	assert.Equal(t, "handle_3", third)

	require.NotNil(t, table.remove(second))
	assert.Equal(t, "handle_4", table.add(&openHandle{path: "/d"}))
}

func TestHandleGetAndRemove(t *testing.T) {
	t.Parallel()

	table := newHandleTable()
	id := table.add(&openHandle{path: "/x"})

	h, ok := table.get(id)
	require.True(t, ok)
	assert.Equal(t, "/x", h.path)

	assert.Same(t, h, table.remove(id))

	_, ok = table.get(id)
	assert.False(t, ok)
	assert.Nil(t, table.remove(id))
}

func TestCloseAllReleasesFiles(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "open.txt")
	file, err := os.Create(path)
	require.NoError(t, err)

	table := newHandleTable()
	id := table.add(&openHandle{path: path, file: file})

	table.closeAll()

	_, ok := table.get(id)
	assert.False(t, ok)

	_, err = file.Write([]byte("x"))
	require.Error(t, err)
}
