// Package market contains the real-time ingestion side of the
// pipeline: the canonical ticker store, the REST polling aggregator
// and the streaming price client.
package market

import (
	"sync"
	"time"

	"github.com/agilanloganathan/coinfox/internal/domain"
)

// skewTolerance is how much clock skew between sources we tolerate
// before an update is considered strictly older than the stored one.
const skewTolerance = 2 * time.Second

// sourceRank orders sources for same-timestamp-class conflicts:
// primary exchange > aggregator > broad-coverage. Lower is better.
func sourceRank(source string) int {
	switch source {
	case SourceStream, SourceBinance:
		return 0
	case SourceCryptoCompare:
		return 1
	case SourceCoinGecko:
		return 2
	default:
		return 3
	}
}

// TickerStore holds the canonical per-symbol price snapshot. All
// writes go through Merge; the update path is a single critical
// section per symbol, so concurrent writers from the aggregator and
// the stream cannot interleave into a mixed record.
type TickerStore struct {
	mu      sync.RWMutex
	entries map[string]*tickerEntry
}

type tickerEntry struct {
	mu     sync.Mutex
	ticker domain.Ticker
	set    bool
}

// NewTickerStore creates an empty store.
func NewTickerStore() *TickerStore {
	return &TickerStore{entries: make(map[string]*tickerEntry)}
}

func (s *TickerStore) entry(symbol string) *tickerEntry {
	s.mu.RLock()
	e, ok := s.entries[symbol]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[symbol]; ok {
		return e
	}
	e = &tickerEntry{}
	s.entries[symbol] = e
	return e
}

// Merge applies a field-level partial update from one source. Fields
// present in the update overwrite the stored values; absent fields are
// preserved. An update strictly older than the stored record (beyond
// the skew tolerance) is rejected wholesale, and on a timestamp tie a
// lower-priority source never overwrites a higher-priority one.
// LastUpdatedAt never moves backward. Returns the resulting ticker.
func (s *TickerStore) Merge(symbol string, update domain.PartialTicker, source string, ts time.Time) domain.Ticker {
	e := s.entry(symbol)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.set {
		stored := e.ticker.LastUpdatedAt
		if ts.Before(stored.Add(-skewTolerance)) {
			return e.ticker
		}
		if !ts.After(stored) && sourceRank(source) > sourceRank(e.ticker.Source) {
			return e.ticker
		}
	}

	t := &e.ticker
	t.Symbol = symbol
	if update.Price != nil {
		t.Price = *update.Price
	}
	if update.Change24h != nil {
		t.Change24h = update.Change24h
	}
	if update.Volume24h != nil {
		t.Volume24h = update.Volume24h
	}
	if update.MarketCap != nil {
		t.MarketCap = update.MarketCap
	}
	if update.High24h != nil {
		t.High24h = update.High24h
	}
	if update.Low24h != nil {
		t.Low24h = update.Low24h
	}
	t.Source = source
	if ts.After(t.LastUpdatedAt) {
		t.LastUpdatedAt = ts
	}
	e.set = true

	return *t
}

// Get returns the snapshot for a symbol.
func (s *TickerStore) Get(symbol string) (domain.Ticker, bool) {
	s.mu.RLock()
	e, ok := s.entries[symbol]
	s.mu.RUnlock()
	if !ok {
		return domain.Ticker{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.set {
		return domain.Ticker{}, false
	}
	return e.ticker, true
}

// GetAll returns a copy of every known snapshot.
func (s *TickerStore) GetAll() map[string]domain.Ticker {
	s.mu.RLock()
	symbols := make([]string, 0, len(s.entries))
	for sym := range s.entries {
		symbols = append(symbols, sym)
	}
	s.mu.RUnlock()

	out := make(map[string]domain.Ticker, len(symbols))
	for _, sym := range symbols {
		if t, ok := s.Get(sym); ok {
			out[sym] = t
		}
	}
	return out
}

// IsFresh reports whether the symbol's data is younger than maxAge.
// Stale data must not be shown as current, though the alert monitor
// may still evaluate against it to avoid false negatives.
func (s *TickerStore) IsFresh(symbol string, maxAge time.Duration) bool {
	t, ok := s.Get(symbol)
	if !ok {
		return false
	}
	return t.Age(time.Now()) < maxAge
}

// Age returns how old the symbol's snapshot is. ok is false when the
// symbol is unknown.
func (s *TickerStore) Age(symbol string) (time.Duration, bool) {
	t, ok := s.Get(symbol)
	if !ok {
		return 0, false
	}
	return t.Age(time.Now()), true
}
