package engine

import "sync/atomic"

// Stats counts translations since the engine was created.
//
// Counters are updated with atomic operations and may be read while other
// goroutines translate.
type Stats struct {
	Translations int64
	CacheHits    int64
	CacheMisses  int64
	Failures     int64
}

type counters struct {
	translations atomic.Int64
	hits         atomic.Int64
	misses       atomic.Int64
	failures     atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Translations: c.translations.Load(),
		CacheHits:    c.hits.Load(),
		CacheMisses:  c.misses.Load(),
		Failures:     c.failures.Load(),
	}
}
