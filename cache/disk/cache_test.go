package disk

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachePutGet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	content := []byte("hello")
	dgst := digest.FromBytes(content)
	require.NoError(t, c.Put(dgst, content))

	got, ok := c.Get(dgst)
	require.True(t, ok)
	assert.Equal(t, content, got)
	assert.Equal(t, int64(len(content)), c.SizeBytes())

	encoded := dgst.Encoded()
	path := filepath.Join(dir, "sha256", encoded[:defaultShardPrefixLen], encoded)
	_, err = os.Stat(path)
	require.NoError(t, err, "expected cache file at %s", path)

	// A second Put is a no-op.
	require.NoError(t, c.Put(dgst, content))
	assert.Equal(t, int64(len(content)), c.SizeBytes())
}

func TestCacheShardDisable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir, WithShardPrefixLen(0))
	require.NoError(t, err)

	content := []byte("flat")
	dgst := digest.FromBytes(content)
	require.NoError(t, c.Put(dgst, content))

	_, err = os.Stat(filepath.Join(dir, "sha256", dgst.Encoded()))
	require.NoError(t, err)
}

func TestCacheMissAndInvalidDigest(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	require.NoError(t, err)

	_, ok := c.Get(digest.FromString("missing"))
	assert.False(t, ok)

	_, ok = c.Get(digest.Digest("sha256:nothex"))
	assert.False(t, ok)
	assert.Error(t, c.Put(digest.Digest("bogus"), []byte("x")))
	assert.NoError(t, c.Delete(digest.FromString("missing")))
}

func TestCacheCorruptEntryIsDropped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	content := []byte("original")
	dgst := digest.FromBytes(content)
	require.NoError(t, c.Put(dgst, content))

	path, err := c.path(dgst)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("tampered"), 0o600))

	_, ok := c.Get(dgst)
	assert.False(t, ok)
	_, err = os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New("")
	assert.Error(t, err)
	_, err = New(t.TempDir(), WithShardPrefixLen(-1))
	assert.Error(t, err)
	_, err = New(t.TempDir(), WithMaxBytes(-1))
	assert.Error(t, err)
}

func TestNewCountsExistingEntries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)
	content := bytes.Repeat([]byte("x"), 100)
	require.NoError(t, c.Put(digest.FromBytes(content), content))

	reopened, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(100), reopened.SizeBytes())
}

func TestCacheEvictsOldest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir, WithMaxBytes(250))
	require.NoError(t, err)
	assert.Equal(t, int64(250), c.MaxBytes())

	blocks := make([][]byte, 3)
	for i := range blocks {
		blocks[i] = bytes.Repeat([]byte{byte('a' + i)}, 100)
		dgst := digest.FromBytes(blocks[i])
		require.NoError(t, c.Put(dgst, blocks[i]))

		// Spread modification times so eviction order is deterministic.
		path, err := c.path(dgst)
		require.NoError(t, err)
		mtime := time.Now().Add(time.Duration(i-10) * time.Minute)
		require.NoError(t, os.Chtimes(path, mtime, mtime))
	}

	assert.LessOrEqual(t, c.SizeBytes(), int64(250))
	_, ok := c.Get(digest.FromBytes(blocks[0]))
	assert.False(t, ok, "oldest block should be evicted")
	_, ok = c.Get(digest.FromBytes(blocks[2]))
	assert.True(t, ok)

	// Blocks larger than the whole cache are not stored.
	big := bytes.Repeat([]byte("z"), 300)
	require.NoError(t, c.Put(digest.FromBytes(big), big))
	_, ok = c.Get(digest.FromBytes(big))
	assert.False(t, ok)
}

func TestPrune(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	require.NoError(t, err)
	for i := range 4 {
		data := bytes.Repeat([]byte{byte(i)}, 10)
		require.NoError(t, c.Put(digest.FromBytes(data), data))
	}

	freed, err := c.Prune(15)
	require.NoError(t, err)
	assert.Equal(t, int64(30), freed)
	assert.Equal(t, int64(10), c.SizeBytes())
}
