package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScanCacheRoundtrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sc := NewScanCache(ctx, 1, filepath.Join(t.TempDir(), "scancache"))

	assert.False(t, sc.IsClean("/data/a.txt", "hash1"))
	sc.MarkClean("/data/a.txt", "hash1")
	assert.True(t, sc.IsClean("/data/a.txt", "hash1"))

	// a different content hash is a different entry
	assert.False(t, sc.IsClean("/data/a.txt", "hash2"))

	stats := sc.CacheStats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, int64(1), stats.Additions)
}

func TestScanCacheForget(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sc := NewScanCache(ctx, 1, filepath.Join(t.TempDir(), "scancache"))
	sc.MarkClean("/data/a.txt", "hash1")
	sc.Forget("/data/a.txt", "hash1")
	assert.False(t, sc.IsClean("/data/a.txt", "hash1"))
}

func TestScanCachePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scancache")

	ctx, cancel := context.WithCancel(context.Background())
	sc := NewScanCache(ctx, 1, path)
	sc.MarkClean("/data/a.txt", "hash1")
	assert.NoError(t, sc.Save())
	cancel()

	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	reloaded := NewScanCache(ctx2, 1, path)
	assert.True(t, reloaded.IsClean("/data/a.txt", "hash1"))
}
