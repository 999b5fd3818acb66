package code_analyzer

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/meysamhadeli/codelve/code_analyzer/contracts"
	"github.com/meysamhadeli/codelve/code_analyzer/models"
	"github.com/zeebo/xxh3"
)

// CacheEntry is the on-disk record for one source file.
type CacheEntry struct {
	Path      string
	Symbols   []models.SymbolInfo
	Timestamp time.Time
	FileSize  int64
	ModTime   time.Time
}

// CacheStats tracks cache performance metrics
type CacheStats struct {
	TotalRequests int64
	CacheHits     int64
	CacheMisses   int64
	LastResetTime time.Time
	mutex         sync.RWMutex
}

// SymbolCache stores extracted symbols per file. An entry stays valid while
// the source file keeps the size and modification time it had when cached.
type SymbolCache struct {
	cacheDir string
	mutex    sync.RWMutex
	stats    *CacheStats
}

// CacheCleanupOptions defines options for cache cleanup
type CacheCleanupOptions struct {
	MaxAge   time.Duration // Remove entries older than this
	MaxFiles int           // Remove oldest entries if cache exceeds this number of files
	DryRun   bool          // If true, only report what would be cleaned without actual deletion
}

// DefaultCacheDir returns the cache directory used when none is configured.
func DefaultCacheDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	return filepath.Join(cwd, ".cache", "codelve"), nil
}

// NewSymbolCache creates the cache directory if needed and prunes stale entries.
// If cacheDir is empty, DefaultCacheDir is used.
func NewSymbolCache(cacheDir string) (*SymbolCache, error) {
	if cacheDir == "" {
		dir, err := DefaultCacheDir()
		if err != nil {
			return nil, err
		}
		cacheDir = dir
	}

	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	cache := &SymbolCache{
		cacheDir: cacheDir,
		stats: &CacheStats{
			LastResetTime: time.Now(),
		},
	}

	// Conservative cleanup: entries older than 7 days, at most 10000 files
	if _, err := cache.SmartCleanupCache(CacheCleanupOptions{
		MaxAge:   7 * 24 * time.Hour,
		MaxFiles: 10000,
	}); err != nil {
		return nil, err
	}

	return cache, nil
}

var _ contracts.ISymbolCache = (*SymbolCache)(nil)

// Dir returns the directory holding the cache files.
func (sc *SymbolCache) Dir() string {
	return sc.cacheDir
}

// generateCacheKey creates a unique cache key for a file
func generateCacheKey(filePath string) string {
	return fmt.Sprintf("%x.cache", xxh3.HashString(filePath))
}

func (sc *SymbolCache) cachePath(filePath string) string {
	return filepath.Join(sc.cacheDir, generateCacheKey(filePath))
}

func readEntry(cachePath string) (*CacheEntry, error) {
	data, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, err
	}
	var entry CacheEntry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// isFileChanged checks if a file has been modified since last cache
func isFileChanged(filePath string, entry *CacheEntry) bool {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return true
	}
	return !fileInfo.ModTime().Equal(entry.ModTime) || fileInfo.Size() != entry.FileSize
}

// GetSymbols returns the cached symbols of filePath if the entry is still valid.
func (sc *SymbolCache) GetSymbols(filePath string) ([]models.SymbolInfo, bool) {
	sc.mutex.RLock()
	path := sc.cachePath(filePath)
	entry, err := readEntry(path)
	sc.mutex.RUnlock()

	if err != nil || entry.Path != filePath {
		sc.recordCacheMiss()
		return nil, false
	}

	if isFileChanged(filePath, entry) {
		sc.mutex.Lock()
		_ = os.Remove(path)
		sc.mutex.Unlock()
		sc.recordCacheMiss()
		return nil, false
	}

	sc.recordCacheHit()
	return entry.Symbols, true
}

// SetSymbols stores the symbols of filePath together with its current size and mtime.
func (sc *SymbolCache) SetSymbols(filePath string, symbols []models.SymbolInfo) error {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return fmt.Errorf("failed to get file info: %w", err)
	}

	entry := CacheEntry{
		Path:      filePath,
		Symbols:   symbols,
		Timestamp: time.Now(),
		FileSize:  fileInfo.Size(),
		ModTime:   fileInfo.ModTime(),
	}

	var buffer bytes.Buffer
	if err := gob.NewEncoder(&buffer).Encode(entry); err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if err := os.WriteFile(sc.cachePath(filePath), buffer.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

// Delete removes the cache entry of filePath
func (sc *SymbolCache) Delete(filePath string) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if err := os.Remove(sc.cachePath(filePath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete cache file: %w", err)
	}
	return nil
}

// ClearCache completely removes all cache entries
func (sc *SymbolCache) ClearCache() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	files, err := os.ReadDir(sc.cacheDir)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(sc.cacheDir, file.Name())); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete cache file: %w", err)
		}
	}
	sc.ResetPerformanceStats()
	return nil
}

// GetCacheStats returns storage statistics of the cache directory
func (sc *SymbolCache) GetCacheStats() (map[string]interface{}, error) {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()

	files, err := os.ReadDir(sc.cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var totalSize int64
	var count, symbolCount int
	var oldest, newest time.Time

	for _, file := range files {
		if file.IsDir() {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		count++
		totalSize += info.Size()

		entry, err := readEntry(filepath.Join(sc.cacheDir, file.Name()))
		if err != nil {
			continue
		}
		symbolCount += len(entry.Symbols)
		if oldest.IsZero() || entry.Timestamp.Before(oldest) {
			oldest = entry.Timestamp
		}
		if entry.Timestamp.After(newest) {
			newest = entry.Timestamp
		}
	}

	stats := map[string]interface{}{
		"cache_dir":     sc.cacheDir,
		"cache_files":   count,
		"total_size":    totalSize,
		"total_size_mb": float64(totalSize) / (1024 * 1024),
		"symbols":       symbolCount,
	}
	if !oldest.IsZero() {
		stats["oldest_entry"] = oldest.Format(time.RFC3339)
		stats["newest_entry"] = newest.Format(time.RFC3339)
	}
	return stats, nil
}

// SmartCleanupCache removes entries older than MaxAge, then the oldest entries
// beyond MaxFiles.
func (sc *SymbolCache) SmartCleanupCache(options CacheCleanupOptions) (map[string]interface{}, error) {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	files, err := os.ReadDir(sc.cacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	type cacheFile struct {
		path     string
		entryAge time.Time
	}

	var cacheFiles []cacheFile
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		path := filepath.Join(sc.cacheDir, file.Name())

		// Fallback to file modification time when the entry cannot be decoded
		var entryAge time.Time
		if entry, err := readEntry(path); err == nil {
			entryAge = entry.Timestamp
		} else if info, err := file.Info(); err == nil {
			entryAge = info.ModTime()
		}
		cacheFiles = append(cacheFiles, cacheFile{path: path, entryAge: entryAge})
	}

	// Oldest first
	sort.Slice(cacheFiles, func(i, j int) bool {
		return cacheFiles[i].entryAge.Before(cacheFiles[j].entryAge)
	})

	var toDelete []cacheFile
	var deletedByAge, deletedByCount int

	var kept []cacheFile
	if options.MaxAge > 0 {
		cutoff := time.Now().Add(-options.MaxAge)
		for _, f := range cacheFiles {
			if f.entryAge.Before(cutoff) {
				toDelete = append(toDelete, f)
				deletedByAge++
			} else {
				kept = append(kept, f)
			}
		}
	} else {
		kept = cacheFiles
	}

	if options.MaxFiles > 0 && len(kept) > options.MaxFiles {
		excess := len(kept) - options.MaxFiles
		toDelete = append(toDelete, kept[:excess]...)
		deletedByCount = excess
	}

	actuallyDeleted := 0
	if options.DryRun {
		actuallyDeleted = len(toDelete)
	} else {
		for _, f := range toDelete {
			if err := os.Remove(f.path); err == nil {
				actuallyDeleted++
			}
		}
	}

	return map[string]interface{}{
		"files_before_cleanup":    len(cacheFiles),
		"files_marked_for_delete": len(toDelete),
		"files_actually_deleted":  actuallyDeleted,
		"deleted_by_age":          deletedByAge,
		"deleted_by_count":        deletedByCount,
		"files_after_cleanup":     len(cacheFiles) - actuallyDeleted,
		"dry_run":                 options.DryRun,
	}, nil
}
