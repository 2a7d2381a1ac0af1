package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/agilanloganathan/coinfox/internal/domain"
)

const minCheckInterval = 5 * time.Second

// Prices is the monitor's read view of the ticker store.
type Prices interface {
	Get(symbol string) (domain.Ticker, bool)
	IsFresh(symbol string, maxAge time.Duration) bool
}

// Fetcher fetches one symbol directly when the stored ticker is
// missing or stale.
type Fetcher interface {
	FetchSymbol(ctx context.Context, symbol string) (domain.Ticker, error)
}

// DispatchFunc forwards a positive evaluation to the notification
// dispatcher, which owns the idempotent Triggered transition. It
// reports whether this observation won the transition.
type DispatchFunc func(ctx context.Context, a *domain.Alert, tick domain.Ticker) bool

// Monitor is the backup evaluation path: a fixed-interval poller that
// re-checks every Active alert against the latest ticker data. It
// exists so a silent gap in the streaming path (a dropped connection
// window) cannot suppress alerts.
type Monitor struct {
	store      *Store
	prices     Prices
	fetcher    Fetcher
	dispatch   DispatchFunc
	interval   time.Duration
	staleAfter time.Duration

	mu        sync.Mutex
	listeners map[int]func([]*domain.Alert)
	nextID    int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor builds a monitor. The interval is floored at 5s to bound
// API load from fallback fetches.
func NewMonitor(store *Store, prices Prices, fetcher Fetcher, dispatch DispatchFunc, interval, staleAfter time.Duration) *Monitor {
	if interval < minCheckInterval {
		interval = minCheckInterval
	}
	return &Monitor{
		store:      store,
		prices:     prices,
		fetcher:    fetcher,
		dispatch:   dispatch,
		interval:   interval,
		staleAfter: staleAfter,
		listeners:  make(map[int]func([]*domain.Alert)),
	}
}

// AddListener registers an observer for triggered alert batches and
// returns its remove handle. Listeners are independent, so UI layers
// can react without coupling to the monitor internals.
func (m *Monitor) AddListener(fn func([]*domain.Alert)) (remove func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

// Start begins periodic checking. The first check runs immediately.
func (m *Monitor) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		m.CheckOnce(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CheckOnce(ctx)
			}
		}
	}()
}

// Stop halts the monitor. Safe to call at any time.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

// CheckOnce evaluates every Active alert once. Triggering is
// idempotent: an alert already moved to Triggered by the streaming
// path is a no-op here.
func (m *Monitor) CheckOnce(ctx context.Context) {
	active := m.store.QueryByStatus(domain.AlertActive)
	if len(active) == 0 {
		return
	}

	var triggered []*domain.Alert
	for _, a := range active {
		tick, ok := m.resolveTicker(ctx, a.CoinSymbol)
		if !ok {
			continue
		}

		if !ShouldTrigger(*a, tick.Price) {
			continue
		}

		var won bool
		if m.dispatch != nil {
			won = m.dispatch(ctx, a, tick)
		} else {
			var err error
			won, err = m.store.TryTrigger(ctx, a.ID, tick.Price, time.Now().UTC())
			if err != nil {
				slog.Warn("alert trigger persist failed", "alert", a.ID, "err", err)
			}
		}
		if !won {
			continue
		}

		fired, _ := m.store.Get(a.ID)
		triggered = append(triggered, fired)
	}

	if len(triggered) > 0 {
		m.notifyListeners(triggered)
	}
}

// resolveTicker prefers the stored snapshot; stale data is still used
// for evaluation (a false negative is worse than evaluating old data),
// but a missing entry falls back to a direct fetch.
func (m *Monitor) resolveTicker(ctx context.Context, symbol string) (domain.Ticker, bool) {
	if t, ok := m.prices.Get(symbol); ok {
		if !m.prices.IsFresh(symbol, m.staleAfter) && m.fetcher != nil {
			if fresh, err := m.fetcher.FetchSymbol(ctx, symbol); err == nil {
				return fresh, true
			}
		}
		return t, true
	}

	if m.fetcher == nil {
		return domain.Ticker{}, false
	}
	t, err := m.fetcher.FetchSymbol(ctx, symbol)
	if err != nil {
		slog.Warn("price resolve failed", "symbol", symbol, "err", err)
		return domain.Ticker{}, false
	}
	return t, true
}

func (m *Monitor) notifyListeners(batch []*domain.Alert) {
	m.mu.Lock()
	fns := make([]func([]*domain.Alert), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn(batch)
	}
}
