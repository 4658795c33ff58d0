package marketdata

import (
	"sync"
	"time"
)

type cacheEntry struct {
	quote   Quote
	savedAt time.Time
}

// QuoteCache is a TTL'd in-memory quote store fed by the websocket
// stream and by successful REST lookups.
type QuoteCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
	now     func() time.Time
}

// NewQuoteCache builds a cache with the given entry lifetime.
func NewQuoteCache(ttl time.Duration) *QuoteCache {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &QuoteCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// Get returns a fresh cached quote, or (nil, false) when absent or stale.
func (c *QuoteCache) Get(symbol string) (*Quote, bool) {
	c.mu.RLock()
	entry, ok := c.entries[symbol]
	c.mu.RUnlock()

	if !ok || c.now().Sub(entry.savedAt) > c.ttl {
		return nil, false
	}

	quote := entry.quote
	return &quote, true
}

// Put stores a quote. Unusable quotes are ignored so a bad stream
// frame can never mask a good REST lookup.
func (c *QuoteCache) Put(quote *Quote) {
	if !quote.Usable() || quote.Symbol == "" {
		return
	}

	c.mu.Lock()
	c.entries[quote.Symbol] = cacheEntry{quote: *quote, savedAt: c.now()}
	c.mu.Unlock()
}

// Invalidate drops one symbol from the cache.
func (c *QuoteCache) Invalidate(symbol string) {
	c.mu.Lock()
	delete(c.entries, symbol)
	c.mu.Unlock()
}

// Len returns the number of stored entries, stale included.
func (c *QuoteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
