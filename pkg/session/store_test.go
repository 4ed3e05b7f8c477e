package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	return NewStore(dir, filepath.Join(dir, "chrome-profile"))
}

func TestStore_Load_MissingStateIsInvalid(t *testing.T) {
	store := newTestStore(t)

	sess, err := store.Load()
	require.NoError(t, err)
	assert.False(t, sess.Valid)
	assert.Equal(t, store.ProfileDir(), sess.ProfileDir)
}

func TestStore_MarkValidThenLoad(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.MarkValid())

	sess, err := store.Load()
	require.NoError(t, err)
	assert.True(t, sess.Valid)

	// MarkValid also creates the profile directory.
	info, err := os.Stat(store.ProfileDir())
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestStore_Invalidate(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.MarkValid())
	require.NoError(t, store.Invalidate())

	sess, err := store.Load()
	require.NoError(t, err)
	assert.False(t, sess.Valid)

	// Profile directory survives invalidation.
	_, err = os.Stat(store.ProfileDir())
	assert.NoError(t, err)
}

func TestStore_Invalidate_Idempotent(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Invalidate())
	assert.NoError(t, store.Invalidate())
}

func TestStore_Load_FlagIsDirectory(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, filepath.Join(dir, "chrome-profile"))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "logged-in"), 0o750))

	sess, err := store.Load()
	require.NoError(t, err)
	assert.False(t, sess.Valid)
}
