package disk

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(s string) []byte {
	sum := sha256.Sum256([]byte(s))
	return sum[:]
}

func TestCachePutGet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	content := []byte("FASTVectorDB0.1")
	k := key("https://example.com/world.db")
	require.NoError(t, c.Put(k, content))

	got, ok := c.Get(k)
	require.True(t, ok)
	assert.Equal(t, content, got)
	assert.Equal(t, int64(len(content)), c.SizeBytes())

	hexKey := hex.EncodeToString(k)
	_, err = os.Stat(filepath.Join(dir, hexKey[:defaultShardPrefixLen], hexKey))
	require.NoError(t, err)

	_, ok = c.Get(key("missing"))
	assert.False(t, ok)
}

func TestCacheShardDisable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir, WithShardPrefixLen(0))
	require.NoError(t, err)

	k := key("flat")
	require.NoError(t, c.Put(k, []byte("flat")))
	_, err = os.Stat(filepath.Join(dir, hex.EncodeToString(k)))
	require.NoError(t, err)
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	_, err := New("")
	require.Error(t, err)
	_, err = New(t.TempDir(), WithMaxBytes(-1))
	require.Error(t, err)
	_, err = New(t.TempDir(), WithShardPrefixLen(-1))
	require.Error(t, err)
}

func TestCachePutTwiceIsNoop(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	require.NoError(t, err)

	k := key("twice")
	require.NoError(t, c.Put(k, []byte("first")))
	require.NoError(t, c.Put(k, []byte("second")))

	got, ok := c.Get(k)
	require.True(t, ok)
	assert.Equal(t, []byte("first"), got)
	assert.Equal(t, int64(5), c.SizeBytes())
}

func TestCacheDelete(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	require.NoError(t, err)

	k := key("gone")
	require.NoError(t, c.Put(k, []byte("bytes")))
	require.NoError(t, c.Delete(k))
	require.NoError(t, c.Delete(k), "deleting a missing entry is a no-op")

	_, ok := c.Get(k)
	assert.False(t, ok)
	assert.Zero(t, c.SizeBytes())
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir, WithMaxBytes(20))
	require.NoError(t, err)

	old, recent := key("old"), key("recent")
	require.NoError(t, c.Put(old, make([]byte, 10)))
	require.NoError(t, c.Put(recent, make([]byte, 10)))

	// "old" was written first but read last, so "recent" is the LRU entry
	for i, k := range [][]byte{old, recent} {
		p, pathErr := c.path(k)
		require.NoError(t, pathErr)
		ts := time.Now().Add(time.Duration(i-2) * time.Hour)
		require.NoError(t, os.Chtimes(p, ts, ts))
	}
	_, ok := c.Get(old)
	require.True(t, ok)

	require.NoError(t, c.Put(key("new"), make([]byte, 10)))

	_, ok = c.Get(old)
	assert.True(t, ok)
	_, ok = c.Get(recent)
	assert.False(t, ok, "least recently used entry should be evicted")
	assert.LessOrEqual(t, c.SizeBytes(), int64(20))
}

func TestCacheSkipsOversizedEntries(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir(), WithMaxBytes(4))
	require.NoError(t, err)

	k := key("big")
	require.NoError(t, c.Put(k, make([]byte, 8)))
	_, ok := c.Get(k)
	assert.False(t, ok)
}

func TestNewCountsExistingEntries(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, c.Put(key("a"), make([]byte, 7)))

	reopened, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(7), reopened.SizeBytes())
}
