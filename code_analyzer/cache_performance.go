package code_analyzer

import (
	"time"
)

// recordCacheHit increments cache hit counter
func (sc *SymbolCache) recordCacheHit() {
	sc.stats.mutex.Lock()
	defer sc.stats.mutex.Unlock()
	sc.stats.TotalRequests++
	sc.stats.CacheHits++
}

// recordCacheMiss increments cache miss counter
func (sc *SymbolCache) recordCacheMiss() {
	sc.stats.mutex.Lock()
	defer sc.stats.mutex.Unlock()
	sc.stats.TotalRequests++
	sc.stats.CacheMisses++
}

// GetPerformanceStats returns hit/miss counters since the last reset
func (sc *SymbolCache) GetPerformanceStats() map[string]interface{} {
	sc.stats.mutex.RLock()
	defer sc.stats.mutex.RUnlock()

	hitRate := 0.0
	if sc.stats.TotalRequests > 0 {
		hitRate = float64(sc.stats.CacheHits) / float64(sc.stats.TotalRequests) * 100
	}

	uptime := time.Since(sc.stats.LastResetTime)

	return map[string]interface{}{
		"total_requests":   sc.stats.TotalRequests,
		"cache_hits":       sc.stats.CacheHits,
		"cache_misses":     sc.stats.CacheMisses,
		"hit_rate_percent": hitRate,
		"uptime_human":     uptime.Round(time.Second).String(),
		"last_reset":       sc.stats.LastResetTime.Format(time.RFC3339),
	}
}

// ResetPerformanceStats resets all performance counters
func (sc *SymbolCache) ResetPerformanceStats() {
	sc.stats.mutex.Lock()
	defer sc.stats.mutex.Unlock()

	sc.stats.TotalRequests = 0
	sc.stats.CacheHits = 0
	sc.stats.CacheMisses = 0
	sc.stats.LastResetTime = time.Now()
}
