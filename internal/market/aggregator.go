package market

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/agilanloganathan/coinfox/internal/domain"
	"github.com/agilanloganathan/coinfox/internal/infra"
)

// Snapshot is the consolidated view published to subscribers after
// each polling round.
type Snapshot struct {
	Tickers   map[string]domain.Ticker
	Timestamp time.Time
}

// EvalHook is invoked for every merged ticker so alert evaluation can
// ride both the polling and streaming paths.
type EvalHook func(symbol string, ticker domain.Ticker)

type guardedSource struct {
	src     PriceSource
	breaker *infra.CircuitBreaker
	limiter *infra.RateLimiter
}

// Aggregator polls the configured REST sources on a fixed interval,
// merges each round into the TickerStore and publishes a consolidated
// snapshot. One source failing never blocks the others; a round still
// in flight when the timer fires causes the new round to be skipped.
type Aggregator struct {
	store    *TickerStore
	sources  []guardedSource
	symbols  []string
	interval time.Duration

	evalHook EvalHook

	mu      sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int

	inFlight sync.Mutex // held for the duration of a round
	busy     bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAggregator wires the sources, ordered by priority. Each source
// gets its own circuit breaker and rate limiter so a flaky upstream is
// isolated from the rest.
func NewAggregator(store *TickerStore, sources []PriceSource, symbols []string, interval time.Duration, hook EvalHook) *Aggregator {
	sorted := make([]PriceSource, len(sources))
	copy(sorted, sources)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Priority() < sorted[j].Priority() })

	guarded := make([]guardedSource, 0, len(sorted))
	for _, src := range sorted {
		guarded = append(guarded, guardedSource{
			src:     src,
			breaker: infra.NewCircuitBreaker(src.Name()),
			limiter: infra.NewRateLimiter(3, 1.0),
		})
	}

	if interval <= 0 {
		interval = 5 * time.Second
	}

	return &Aggregator{
		store:    store,
		sources:  guarded,
		symbols:  symbols,
		interval: interval,
		evalHook: hook,
		subs:     make(map[int]func(Snapshot)),
	}
}

// DefaultSources builds the production source set from config.
func DefaultSources(cfg *infra.Config) []PriceSource {
	client := &http.Client{Timeout: time.Duration(cfg.Market.RequestTimeout) * time.Second}
	return []PriceSource{
		NewBinanceSource(cfg.Market.Sources.BinanceURL, client),
		NewCryptoCompareSource(cfg.Market.Sources.CryptoCompareURL, client),
		NewCoinGeckoSource(cfg.Market.Sources.CoinGeckoURL, client),
	}
}

// Subscribe registers a snapshot callback and returns its unsubscribe
// handle.
func (a *Aggregator) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.subs, id)
	}
}

// Start begins polling. The first round runs immediately.
func (a *Aggregator) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.wg.Add(1)
	go a.runLoop(ctx)
}

// Stop terminates polling. Safe to call at any time; no timers or
// requests survive it.
func (a *Aggregator) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
}

func (a *Aggregator) runLoop(ctx context.Context) {
	defer a.wg.Done()

	a.pollRound(ctx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.pollRound(ctx)
		}
	}
}

// pollRound fetches every source concurrently, merges in priority
// order (lowest priority first, so on timestamp ties higher-priority
// data lands last and wins) and publishes the snapshot.
func (a *Aggregator) pollRound(ctx context.Context) {
	a.inFlight.Lock()
	if a.busy {
		a.inFlight.Unlock()
		slog.Debug("polling round still in flight, skipping")
		return
	}
	a.busy = true
	a.inFlight.Unlock()

	defer func() {
		a.inFlight.Lock()
		a.busy = false
		a.inFlight.Unlock()
	}()

	results := make([]map[string]domain.PartialTicker, len(a.sources))
	var wg sync.WaitGroup
	for i := range a.sources {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = a.fetchSource(ctx, a.sources[i])
		}(i)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return
	}

	now := time.Now()
	// Reverse priority order: worst source first, best last.
	for i := len(results) - 1; i >= 0; i-- {
		if results[i] == nil {
			continue
		}
		name := a.sources[i].src.Name()
		for symbol, update := range results[i] {
			merged := a.store.Merge(symbol, update, name, now)
			if a.evalHook != nil {
				a.evalHook(symbol, merged)
			}
		}
	}

	a.publish(Snapshot{Tickers: a.store.GetAll(), Timestamp: now})
}

// fetchSource runs one guarded fetch. Any failure is logged and
// yields nil: that source simply contributes nothing this round.
func (a *Aggregator) fetchSource(ctx context.Context, gs guardedSource) map[string]domain.PartialTicker {
	name := gs.src.Name()

	if !gs.breaker.Allow() {
		slog.Debug("source skipped, circuit open", "source", name)
		return nil
	}
	if err := gs.limiter.Wait(ctx); err != nil {
		return nil
	}

	updates, err := gs.src.Fetch(ctx, a.symbols)
	if err != nil {
		gs.breaker.RecordFailure()
		srcErr := &domain.SourceUnavailableError{Source: name, Err: err}
		slog.Warn("source fetch failed", "source", name, "err", srcErr)
		return nil
	}

	gs.breaker.RecordSuccess()
	return updates
}

// FetchSymbol fetches one symbol directly, trying sources in priority
// order. Used by the alert monitor when the stored ticker is missing
// or stale.
func (a *Aggregator) FetchSymbol(ctx context.Context, symbol string) (domain.Ticker, error) {
	var lastErr error
	for _, gs := range a.sources {
		if !gs.breaker.Allow() {
			continue
		}
		updates, err := gs.src.Fetch(ctx, []string{symbol})
		if err != nil {
			gs.breaker.RecordFailure()
			lastErr = &domain.SourceUnavailableError{Source: gs.src.Name(), Err: err}
			continue
		}
		gs.breaker.RecordSuccess()
		if update, ok := updates[symbol]; ok && update.Price != nil {
			return a.store.Merge(symbol, update, gs.src.Name(), time.Now()), nil
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no source returned a price for %s", symbol)
	}
	return domain.Ticker{}, lastErr
}

func (a *Aggregator) publish(snap Snapshot) {
	a.mu.Lock()
	subs := make([]func(Snapshot), 0, len(a.subs))
	for _, fn := range a.subs {
		subs = append(subs, fn)
	}
	a.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
