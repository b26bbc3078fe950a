package config

import "time"

// CacheConfig defines settings for the slot listing cache middleware.
// Methods lists the HTTP methods to cache (e.g. GET, HEAD).  TTL bounds how
// stale a listing may get; write endpoints also purge the prefix, so the
// TTL only matters for writes made by another process.  KeyStrategy
// determines which parts of the request contribute to the cache key.
// When Redis is unavailable and LocalFallback is set, entries are kept in
// process memory instead.
type CacheConfig struct {
	Enabled       bool
	Methods       map[string]bool
	TTL           time.Duration
	KeyStrategy   string
	Prefix        string
	MaxBodyBytes  int
	LocalFallback bool
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:       envBool("CACHE_ENABLED", true),
		Methods:       envMethods("CACHE_METHODS", "GET"),
		TTL:           envDur("CACHE_TTL", 5*time.Second),
		KeyStrategy:   getenv("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:        getenv("CACHE_PREFIX", "slots"),
		MaxBodyBytes:  envInt("CACHE_MAX_BODY_BYTES", 1<<20),
		LocalFallback: envBool("CACHE_LOCAL_FALLBACK", true),
	}
}
