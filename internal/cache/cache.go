// Package cache keeps a fast record of already-scanned file contents so the
// realtime pipeline can skip clean files it has seen before. Entries are keyed
// by path and content hash; any content change produces a new key.
package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/avironsec/aviron/internal/log"
)

// ScanCache is an in-memory cache of clean scan verdicts backed by fastcache,
// periodically persisted to disk.
type ScanCache struct {
	cache     *fastcache.Cache
	cachePath string
	stats     Stats
	ctx       context.Context
}

// Stats tracks cache hit/miss counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Additions int64
}

const saveInterval = 30 * time.Second

func DefaultCachePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		panic("failed to get user home directory")
	}

	dir := filepath.Join(home, ".cache", "aviron")

	err = os.MkdirAll(dir, 0755)
	if err != nil {
		panic("failed to create cache directory")
	}

	return filepath.Join(dir, "scancache")
}

// NewScanCache creates or loads a scan cache with the given size limit in MB.
// The cache is flushed to cachePath every 30 seconds and once more when the
// context is cancelled.
func NewScanCache(ctx context.Context, sizeMB int, cachePath string) *ScanCache {
	log.Debugf("creating or loading scan cache with size %dMB at %s", sizeMB, cachePath)
	sc := &ScanCache{
		cache:     fastcache.LoadFromFileOrNew(cachePath, sizeMB*1024*1024),
		cachePath: cachePath,
		ctx:       ctx,
	}

	go func() {
		ticker := time.NewTicker(saveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				log.Debug("saving scan cache")
				sc.cache.SaveToFile(sc.cachePath)
			case <-sc.ctx.Done():
				log.Debug("saving scan cache")
				sc.cache.SaveToFile(sc.cachePath)
				return
			}
		}
	}()

	return sc
}

func cacheKey(filePath, fileHash string) []byte {
	return []byte(fmt.Sprintf("%s:%s", filePath, fileHash))
}

// IsClean reports whether this exact path and content hash combination was
// already scanned clean.
func (sc *ScanCache) IsClean(filePath, fileHash string) bool {
	exists := sc.cache.Has(cacheKey(filePath, fileHash))
	if exists {
		sc.stats.Hits++
	} else {
		sc.stats.Misses++
	}
	return exists
}

// MarkClean records a clean verdict for the path and content hash.
func (sc *ScanCache) MarkClean(filePath, fileHash string) {
	sc.cache.Set(cacheKey(filePath, fileHash), []byte{})
	sc.stats.Additions++
}

// Forget drops the entry for the path and content hash. Used when a file is
// infected so a later identical write is scanned again.
func (sc *ScanCache) Forget(filePath, fileHash string) {
	sc.cache.Del(cacheKey(filePath, fileHash))
}

// CacheStats returns a copy of the hit/miss counters.
func (sc *ScanCache) CacheStats() Stats {
	return sc.stats
}

// Reset clears all entries.
func (sc *ScanCache) Reset() {
	sc.cache.Reset()
}

// Save writes the cache to disk immediately.
func (sc *ScanCache) Save() error {
	return sc.cache.SaveToFile(sc.cachePath)
}
