package market

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/agilanloganathan/coinfox/internal/domain"
)

func dptr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestTickerStore_MergePreservesAbsentFields(t *testing.T) {
	s := NewTickerStore()
	base := time.Now()

	// Broad snapshot first: price, change, market cap.
	s.Merge("BTC", domain.PartialTicker{
		Price:     dptr(50000),
		Change24h: dptr(3),
		MarketCap: dptr(1_000_000),
	}, SourceCoinGecko, base)

	// Stream tick carries only price and volume.
	got := s.Merge("BTC", domain.PartialTicker{
		Price:     dptr(50100),
		Volume24h: dptr(900),
	}, SourceStream, base.Add(time.Second))

	if !got.Price.Equal(decimal.NewFromInt(50100)) {
		t.Errorf("Price = %s, want 50100", got.Price)
	}
	if got.Change24h == nil || !got.Change24h.Equal(decimal.NewFromInt(3)) {
		t.Errorf("Change24h = %v, want 3 (preserved from earlier source)", got.Change24h)
	}
	if got.MarketCap == nil || !got.MarketCap.Equal(decimal.NewFromInt(1_000_000)) {
		t.Errorf("MarketCap = %v, want preserved", got.MarketCap)
	}
	if got.Volume24h == nil || !got.Volume24h.Equal(decimal.NewFromInt(900)) {
		t.Errorf("Volume24h = %v, want 900", got.Volume24h)
	}
}

func TestTickerStore_RejectsStaleUpdate(t *testing.T) {
	s := NewTickerStore()
	base := time.Now()

	s.Merge("BTC", domain.PartialTicker{Price: dptr(50000)}, SourceBinance, base)

	// 5s behind the stored record, well past the skew tolerance.
	got := s.Merge("BTC", domain.PartialTicker{Price: dptr(40000)}, SourceCoinGecko, base.Add(-5*time.Second))

	if !got.Price.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("stale update overwrote price: got %s, want 50000", got.Price)
	}
	if got.LastUpdatedAt != base {
		t.Errorf("LastUpdatedAt moved to %v, want %v", got.LastUpdatedAt, base)
	}
}

func TestTickerStore_SkewToleranceAccepted(t *testing.T) {
	s := NewTickerStore()
	base := time.Now()

	s.Merge("BTC", domain.PartialTicker{Price: dptr(50000)}, SourceCoinGecko, base)

	// 1s behind but within tolerance, and from a better source.
	got := s.Merge("BTC", domain.PartialTicker{Price: dptr(50050)}, SourceBinance, base.Add(-time.Second))

	if !got.Price.Equal(decimal.NewFromInt(50050)) {
		t.Errorf("within-skew update rejected: got %s, want 50050", got.Price)
	}
	// Monotonic timestamp: the older ts must not win.
	if got.LastUpdatedAt != base {
		t.Errorf("LastUpdatedAt = %v, want %v (never moves backward)", got.LastUpdatedAt, base)
	}
}

func TestTickerStore_TieGoesToHigherPrioritySource(t *testing.T) {
	s := NewTickerStore()
	base := time.Now()

	s.Merge("BTC", domain.PartialTicker{Price: dptr(50000)}, SourceBinance, base)

	// Same timestamp, lower-priority source: must not overwrite.
	got := s.Merge("BTC", domain.PartialTicker{Price: dptr(49000)}, SourceCoinGecko, base)
	if !got.Price.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("lower-priority source won the tie: got %s, want 50000", got.Price)
	}
	if got.Source != SourceBinance {
		t.Errorf("Source = %q, want %q", got.Source, SourceBinance)
	}

	// Same timestamp, equal-priority stream tick: allowed through.
	got = s.Merge("BTC", domain.PartialTicker{Price: dptr(50075)}, SourceStream, base)
	if !got.Price.Equal(decimal.NewFromInt(50075)) {
		t.Errorf("equal-priority tie rejected: got %s, want 50075", got.Price)
	}
}

func TestTickerStore_GetUnknownSymbol(t *testing.T) {
	s := NewTickerStore()
	if _, ok := s.Get("DOGE"); ok {
		t.Error("Get() on unknown symbol = ok")
	}
	if s.IsFresh("DOGE", time.Minute) {
		t.Error("IsFresh() on unknown symbol = true")
	}
	if _, ok := s.Age("DOGE"); ok {
		t.Error("Age() on unknown symbol = ok")
	}
}

func TestTickerStore_Freshness(t *testing.T) {
	s := NewTickerStore()
	s.Merge("BTC", domain.PartialTicker{Price: dptr(50000)}, SourceBinance, time.Now().Add(-30*time.Second))

	if s.IsFresh("BTC", 10*time.Second) {
		t.Error("30s-old data reported fresh at 10s threshold")
	}
	if !s.IsFresh("BTC", 2*time.Minute) {
		t.Error("30s-old data reported stale at 2m threshold")
	}
}

func TestTickerStore_ConcurrentMerge(t *testing.T) {
	s := NewTickerStore()
	base := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ts := base.Add(time.Duration(i) * time.Millisecond)
			s.Merge("BTC", domain.PartialTicker{Price: dptr(int64(50000 + i))}, SourceStream, ts)
		}(i)
	}
	wg.Wait()

	got, ok := s.Get("BTC")
	if !ok {
		t.Fatal("symbol missing after concurrent merges")
	}
	// The record must be internally consistent: the stored price is
	// from some write that the final timestamp does not precede.
	if got.LastUpdatedAt.Before(base) {
		t.Errorf("LastUpdatedAt = %v, before first write %v", got.LastUpdatedAt, base)
	}
	if got.Price.LessThan(decimal.NewFromInt(50000)) {
		t.Errorf("Price = %s, below any written value", got.Price)
	}
}
