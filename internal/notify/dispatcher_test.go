package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agilanloganathan/coinfox/internal/alert"
	"github.com/agilanloganathan/coinfox/internal/domain"
)

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memKV) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

type countingPusher struct {
	shown atomic.Int32
}

func (p *countingPusher) Available() bool { return true }
func (p *countingPusher) Show(ctx context.Context, push Push) error {
	p.shown.Add(1)
	return nil
}

type fixedHoldings map[string]int64

func (h fixedHoldings) Amount(symbol string) (decimal.Decimal, bool) {
	v, ok := h[symbol]
	return decimal.NewFromInt(v), ok
}

func tickAt(symbol string, price int64) domain.Ticker {
	return domain.Ticker{
		Symbol:        symbol,
		Price:         decimal.NewFromInt(price),
		Source:        "stream",
		LastUpdatedAt: time.Now(),
	}
}

func newTestDispatcher(t *testing.T, pusher Pusher, holdings Holdings) (*Dispatcher, *alert.Store, *Feed) {
	t.Helper()
	store := alert.NewStore(&memKV{data: make(map[string][]byte)})
	feed := NewFeed()
	return NewDispatcher(store, feed, pusher, holdings), store, feed
}

func TestDispatcher_SingleObservation(t *testing.T) {
	ctx := context.Background()
	pusher := &countingPusher{}
	d, store, feed := newTestDispatcher(t, pusher, nil)

	a, err := store.Create(ctx, "BTC", decimal.NewFromInt(50000), domain.AlertAbove, "USD")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	var notified atomic.Int32
	unsub := d.Subscribe(func(*domain.Alert) { notified.Add(1) })
	defer unsub()

	if !d.Dispatch(ctx, a, tickAt("BTC", 50100)) {
		t.Fatal("Dispatch() = false, want true for first observation")
	}

	got, _ := store.Get(a.ID)
	if got.Status != domain.AlertTriggered {
		t.Errorf("Status = %q, want triggered", got.Status)
	}
	entries := feed.All()
	if len(entries) != 1 {
		t.Fatalf("feed holds %d entries, want 1", len(entries))
	}
	if entries[0].Type != domain.NotifPriceAlert {
		t.Errorf("entry type = %q, want %q", entries[0].Type, domain.NotifPriceAlert)
	}
	if pusher.shown.Load() != 1 {
		t.Errorf("pushes = %d, want 1", pusher.shown.Load())
	}
	if notified.Load() != 1 {
		t.Errorf("subscriber calls = %d, want 1", notified.Load())
	}
}

func TestDispatcher_ConcurrentObserversConvergeToOne(t *testing.T) {
	ctx := context.Background()
	pusher := &countingPusher{}
	d, store, feed := newTestDispatcher(t, pusher, nil)

	a, _ := store.Create(ctx, "BTC", decimal.NewFromInt(50000), domain.AlertAbove, "USD")
	tick := tickAt("BTC", 50200)

	// The streaming path and the backup poller race on one crossing.
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d.Dispatch(ctx, a, tick) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("wins = %d, want exactly 1", wins.Load())
	}
	if got := len(feed.All()); got != 1 {
		t.Errorf("feed holds %d entries, want exactly 1", got)
	}
	if pusher.shown.Load() != 1 {
		t.Errorf("pushes = %d, want at most 1", pusher.shown.Load())
	}
}

func TestDispatcher_EnrichmentFields(t *testing.T) {
	ctx := context.Background()
	d, store, feed := newTestDispatcher(t, nil, fixedHoldings{"BTC": 2})

	a, _ := store.Create(ctx, "BTC", decimal.NewFromInt(50000), domain.AlertAbove, "USD")
	prev := decimal.NewFromInt(48000)
	store.Update(ctx, a.ID, func(al *domain.Alert) { al.ObservePrice(prev); al.ObservePrice(prev) })

	d.Dispatch(ctx, a, tickAt("BTC", 52800))

	entries := feed.All()
	if len(entries) != 1 {
		t.Fatalf("feed holds %d entries, want 1", len(entries))
	}
	data := entries[0].Data
	if data["direction"] != "up" {
		t.Errorf("direction = %v, want up", data["direction"])
	}
	// 48000 -> 52800 is +10%, which lands in the Strong Bullish bucket.
	if data["sentiment"] != "Strong Bullish" {
		t.Errorf("sentiment = %v, want Strong Bullish", data["sentiment"])
	}
	// 2 BTC * 4800 move.
	if data["portfolio_impact"] != "9600" {
		t.Errorf("portfolio_impact = %v, want 9600", data["portfolio_impact"])
	}
}

func TestSentimentLabel(t *testing.T) {
	tests := []struct {
		pct  string
		want string
	}{
		{"15", "Bullish Surge"},
		{"7.5", "Strong Bullish"},
		{"3", "Bullish"},
		{"0.5", "Slightly Bullish"},
		{"-1", "Slightly Bearish"},
		{"-3", "Bearish"},
		{"-7", "Strong Bearish"},
		{"-25", "Bearish Crash"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := sentimentLabel(decimal.RequireFromString(tt.pct)); got != tt.want {
				t.Errorf("sentimentLabel(%s) = %q, want %q", tt.pct, got, tt.want)
			}
		})
	}
}

func TestDispatcher_NoPushWhenUnavailable(t *testing.T) {
	ctx := context.Background()
	// NopPusher reports unavailable; dispatch must still fully work.
	d, store, feed := newTestDispatcher(t, NopPusher{}, nil)

	a, _ := store.Create(ctx, "ETH", decimal.NewFromInt(3000), domain.AlertBelow, "USD")
	if !d.Dispatch(ctx, a, tickAt("ETH", 2950)) {
		t.Fatal("Dispatch() = false, want true")
	}
	if got := len(feed.All()); got != 1 {
		t.Errorf("feed holds %d entries, want 1", got)
	}
}
