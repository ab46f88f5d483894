package cursorstore

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMissingChannel(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "cursors.db"))
	require.NoError(t, err)
	defer store.Close()

	cursor, err := store.Get("unknown")
	require.NoError(t, err)
	assert.Equal(t, "", cursor)
}

func TestSetAndOverwrite(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "cursors.db"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set("ch1", "post1"))
	require.NoError(t, store.Set("ch2", "post2"))
	require.NoError(t, store.Set("ch1", "post3"))

	cursor, err := store.Get("ch1")
	require.NoError(t, err)
	assert.Equal(t, "post3", cursor)

	all, err := store.All()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ch1": "post3", "ch2": "post2"}, all)
}

func TestCursorsSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cursors.db")

	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Set("ch1", "post7"))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	cursor, err := reopened.Get("ch1")
	require.NoError(t, err)
	assert.Equal(t, "post7", cursor)
}
