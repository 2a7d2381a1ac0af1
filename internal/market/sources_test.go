package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestBinanceSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("symbols")
		if !strings.Contains(q, `"BTCUSDT"`) || !strings.Contains(q, `"ETHUSDT"`) {
			t.Errorf("symbols query = %q, want both pairs", q)
		}
		w.Write([]byte(`[
			{"symbol":"BTCUSDT","lastPrice":"50123.45","priceChangePercent":"2.5","volume":"1200.5","highPrice":"51000","lowPrice":"49000"},
			{"symbol":"ETHUSDT","lastPrice":"3010.10","priceChangePercent":"-1.2","volume":"8000","highPrice":"3100","lowPrice":"2950"}
		]`))
	}))
	defer srv.Close()

	src := NewBinanceSource(srv.URL, srv.Client())
	got, err := src.Fetch(context.Background(), []string{"btc", "ETH"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	btc, ok := got["BTC"]
	if !ok {
		t.Fatal("BTC missing from result")
	}
	if !btc.Price.Equal(decimal.RequireFromString("50123.45")) {
		t.Errorf("BTC price = %s, want 50123.45", btc.Price)
	}
	if btc.Change24h == nil || !btc.Change24h.Equal(decimal.RequireFromString("2.5")) {
		t.Errorf("BTC change = %v, want 2.5", btc.Change24h)
	}
	if btc.High24h == nil || btc.Low24h == nil {
		t.Error("BTC high/low missing")
	}

	eth, ok := got["ETH"]
	if !ok {
		t.Fatal("ETH missing from result")
	}
	if eth.Change24h == nil || !eth.Change24h.IsNegative() {
		t.Errorf("ETH change = %v, want negative", eth.Change24h)
	}
}

func TestCryptoCompareSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("fsyms"); got != "BTC,ETH" {
			t.Errorf("fsyms = %q, want BTC,ETH", got)
		}
		if got := r.URL.Query().Get("e"); got != "CCCAGG" {
			t.Errorf("e = %q, want CCCAGG", got)
		}
		w.Write([]byte(`{"BTC":{"USD":50100.5},"ETH":{"USD":3005}}`))
	}))
	defer srv.Close()

	src := NewCryptoCompareSource(srv.URL, srv.Client())
	got, err := src.Fetch(context.Background(), []string{"BTC", "ETH"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	btc := got["BTC"]
	if btc.Price == nil || !btc.Price.Equal(decimal.RequireFromString("50100.5")) {
		t.Errorf("BTC price = %v, want 50100.5", btc.Price)
	}
	// Spot-only schema: no extra fields.
	if btc.Change24h != nil || btc.Volume24h != nil || btc.MarketCap != nil {
		t.Error("CryptoCompare result carries fields its schema does not have")
	}
}

func TestCoinGeckoSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != "bitcoin" {
			t.Errorf("ids = %q, want bitcoin", got)
		}
		w.Write([]byte(`{"bitcoin":{"usd":50200,"usd_24h_change":3.14,"usd_24h_vol":123456.7,"usd_market_cap":987654321}}`))
	}))
	defer srv.Close()

	src := NewCoinGeckoSource(srv.URL, srv.Client())
	got, err := src.Fetch(context.Background(), []string{"BTC"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	btc, ok := got["BTC"]
	if !ok {
		t.Fatal("BTC missing; coin id not mapped back to symbol")
	}
	if !btc.Price.Equal(decimal.NewFromInt(50200)) {
		t.Errorf("BTC price = %s, want 50200", btc.Price)
	}
	if btc.MarketCap == nil {
		t.Error("MarketCap missing")
	}
}

func TestGetJSON_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	src := NewBinanceSource(srv.URL, srv.Client())
	if _, err := src.Fetch(context.Background(), []string{"BTC"}); err == nil {
		t.Fatal("Fetch() on 429 = nil error")
	}
}
