package app

import (
	"context"
	"sort"
	"time"

	"github.com/fd1az/prediction-arb/business/venue/domain"
	"github.com/fd1az/prediction-arb/internal/cache"
)

// QuoteCache holds the latest quote per venue market. It never performs I/O.
type QuoteCache struct {
	ttl     time.Duration
	now     func() time.Time
	entries *cache.Cache[domain.QuoteKey, domain.Quote]
}

// NewQuoteCache creates a cache whose entries stay fresh for ttl after observation.
func NewQuoteCache(ttl time.Duration, now func() time.Time) *QuoteCache {
	if now == nil {
		now = time.Now
	}
	return &QuoteCache{
		ttl:     ttl,
		now:     now,
		entries: cache.New[domain.QuoteKey, domain.Quote](0, cache.WithClock(now)),
	}
}

// TTL returns the freshness window.
func (c *QuoteCache) TTL() time.Duration {
	return c.ttl
}

// Put stores q with FreshUntil = ObservedAt + TTL and returns the stored quote.
// A quote without an observation time is stamped with the current time.
func (c *QuoteCache) Put(q domain.Quote) domain.Quote {
	if q.ObservedAt.IsZero() {
		q.ObservedAt = c.now()
	}
	q.FreshUntil = q.ObservedAt.Add(c.ttl)
	c.entries.SetUntil(context.Background(), q.Key(), q, q.FreshUntil)
	return q
}

// PutAll stores every quote and returns them stamped.
func (c *QuoteCache) PutAll(quotes []domain.Quote) []domain.Quote {
	out := make([]domain.Quote, len(quotes))
	for i, q := range quotes {
		out[i] = c.Put(q)
	}
	return out
}

// Get returns a fresh quote. A miss or expired entry returns false.
func (c *QuoteCache) Get(venue domain.Venue, marketID string) (domain.Quote, bool) {
	return c.entries.Get(context.Background(), domain.QuoteKey{Venue: venue, MarketID: marketID})
}

// SweepExpired purges expired entries and returns how many were removed.
func (c *QuoteCache) SweepExpired() int {
	return c.entries.DeleteExpired()
}

// Snapshot returns the fresh quotes of one venue ordered by market id.
func (c *QuoteCache) Snapshot(venue domain.Venue) []domain.Quote {
	var out []domain.Quote
	for _, q := range c.entries.Values() {
		if q.Venue == venue {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarketID < out[j].MarketID })
	return out
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *QuoteCache) Len() int {
	return c.entries.Len()
}
