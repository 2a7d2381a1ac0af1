package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/agilanloganathan/coinfox/internal/domain"
	"github.com/shopspring/decimal"
)

// Source tags used on merged ticker records.
const (
	SourceBinance       = "binance"
	SourceCryptoCompare = "cryptocompare"
	SourceCoinGecko     = "coingecko"
	SourceStream        = "stream"
)

// PriceSource is one REST price endpoint. Fetch returns partial ticker
// updates keyed by uppercase symbol; each source only fills the fields
// its schema carries.
type PriceSource interface {
	Name() string
	// Priority resolves same-timestamp conflicts: lower wins.
	Priority() int
	Fetch(ctx context.Context, symbols []string) (map[string]domain.PartialTicker, error)
}

func getJSON(ctx context.Context, client *http.Client, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func parseDecimal(n json.Number) (decimal.Decimal, error) {
	return decimal.NewFromString(n.String())
}

func decimalPtr(n json.Number) *decimal.Decimal {
	d, err := parseDecimal(n)
	if err != nil {
		return nil
	}
	return &d
}

// ---- Binance 24hr ticker (primary exchange, priority 0) ----

type binanceTicker struct {
	Symbol             string      `json:"symbol"`
	LastPrice          json.Number `json:"lastPrice"`
	PriceChangePercent json.Number `json:"priceChangePercent"`
	Volume             json.Number `json:"volume"`
	HighPrice          json.Number `json:"highPrice"`
	LowPrice           json.Number `json:"lowPrice"`
}

// BinanceSource queries the exchange's multi-symbol 24hr ticker
// endpoint, one request per round for the whole symbol set.
type BinanceSource struct {
	baseURL string
	client  *http.Client
}

func NewBinanceSource(baseURL string, client *http.Client) *BinanceSource {
	return &BinanceSource{baseURL: baseURL, client: client}
}

func (s *BinanceSource) Name() string  { return SourceBinance }
func (s *BinanceSource) Priority() int { return 0 }

func (s *BinanceSource) Fetch(ctx context.Context, symbols []string) (map[string]domain.PartialTicker, error) {
	quoted := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		quoted = append(quoted, fmt.Sprintf("%q", strings.ToUpper(sym)+"USDT"))
	}
	// Binance expects the JSON array un-escaped in the query string.
	rawURL := fmt.Sprintf("%s?symbols=[%s]", s.baseURL, strings.Join(quoted, ","))

	var tickers []binanceTicker
	if err := getJSON(ctx, s.client, rawURL, &tickers); err != nil {
		return nil, err
	}

	out := make(map[string]domain.PartialTicker, len(tickers))
	for _, t := range tickers {
		symbol := strings.TrimSuffix(t.Symbol, "USDT")
		price, err := parseDecimal(t.LastPrice)
		if err != nil {
			continue
		}
		out[symbol] = domain.PartialTicker{
			Price:     &price,
			Change24h: decimalPtr(t.PriceChangePercent),
			Volume24h: decimalPtr(t.Volume),
			High24h:   decimalPtr(t.HighPrice),
			Low24h:    decimalPtr(t.LowPrice),
		}
	}
	return out, nil
}

// ---- CryptoCompare pricemulti (aggregator, priority 1) ----

// CryptoCompareSource queries the CCCAGG aggregate index. The schema
// only carries spot prices, so only the Price field is filled.
type CryptoCompareSource struct {
	baseURL string
	client  *http.Client
}

func NewCryptoCompareSource(baseURL string, client *http.Client) *CryptoCompareSource {
	return &CryptoCompareSource{baseURL: baseURL, client: client}
}

func (s *CryptoCompareSource) Name() string  { return SourceCryptoCompare }
func (s *CryptoCompareSource) Priority() int { return 1 }

func (s *CryptoCompareSource) Fetch(ctx context.Context, symbols []string) (map[string]domain.PartialTicker, error) {
	upper := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		upper = append(upper, strings.ToUpper(sym))
	}
	rawURL := fmt.Sprintf("%s?fsyms=%s&tsyms=USD&e=CCCAGG", s.baseURL, strings.Join(upper, ","))

	var prices map[string]map[string]json.Number
	if err := getJSON(ctx, s.client, rawURL, &prices); err != nil {
		return nil, err
	}

	out := make(map[string]domain.PartialTicker, len(prices))
	for symbol, quote := range prices {
		usd, ok := quote["USD"]
		if !ok {
			continue
		}
		price, err := parseDecimal(usd)
		if err != nil {
			continue
		}
		out[strings.ToUpper(symbol)] = domain.PartialTicker{Price: &price}
	}
	return out, nil
}

// ---- CoinGecko simple price (broad coverage, priority 2) ----

// coinGeckoIDs maps uppercase symbols to CoinGecko coin ids.
var coinGeckoIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"ADA":  "cardano",
	"DOT":  "polkadot",
	"LINK": "chainlink",
	"LTC":  "litecoin",
	"BCH":  "bitcoin-cash",
	"XRP":  "ripple",
	"EOS":  "eos",
	"TRX":  "tron",
}

// CoinGeckoSource queries the simple-price endpoint, which also
// carries 24h change, volume and market cap.
type CoinGeckoSource struct {
	baseURL string
	client  *http.Client
}

func NewCoinGeckoSource(baseURL string, client *http.Client) *CoinGeckoSource {
	return &CoinGeckoSource{baseURL: baseURL, client: client}
}

func (s *CoinGeckoSource) Name() string  { return SourceCoinGecko }
func (s *CoinGeckoSource) Priority() int { return 2 }

func (s *CoinGeckoSource) Fetch(ctx context.Context, symbols []string) (map[string]domain.PartialTicker, error) {
	ids := make([]string, 0, len(symbols))
	idToSymbol := make(map[string]string, len(symbols))
	for _, sym := range symbols {
		upper := strings.ToUpper(sym)
		id, ok := coinGeckoIDs[upper]
		if !ok {
			id = strings.ToLower(sym)
		}
		ids = append(ids, id)
		idToSymbol[id] = upper
	}

	rawURL := fmt.Sprintf("%s?ids=%s&vs_currencies=usd&include_24hr_change=true&include_market_cap=true&include_24hr_vol=true",
		s.baseURL, strings.Join(ids, ","))

	var coins map[string]map[string]json.Number
	if err := getJSON(ctx, s.client, rawURL, &coins); err != nil {
		return nil, err
	}

	out := make(map[string]domain.PartialTicker, len(coins))
	for id, data := range coins {
		symbol, ok := idToSymbol[id]
		if !ok {
			continue
		}
		usd, ok := data["usd"]
		if !ok {
			continue
		}
		price, err := parseDecimal(usd)
		if err != nil {
			continue
		}
		out[symbol] = domain.PartialTicker{
			Price:     &price,
			Change24h: decimalPtr(data["usd_24h_change"]),
			Volume24h: decimalPtr(data["usd_24h_vol"]),
			MarketCap: decimalPtr(data["usd_market_cap"]),
		}
	}
	return out, nil
}
