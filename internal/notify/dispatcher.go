package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/agilanloganathan/coinfox/internal/alert"
	"github.com/agilanloganathan/coinfox/internal/domain"
	"github.com/shopspring/decimal"
)

// Holdings estimates the portfolio impact of a price move for one
// symbol. Optional collaborator; nil means no impact line.
type Holdings interface {
	Amount(symbol string) (decimal.Decimal, bool)
}

// Enrichment is the contextual data attached to a trigger event.
type Enrichment struct {
	Direction       string // "up" or "down"
	ChangePercent   decimal.Decimal
	Sentiment       string
	PortfolioImpact *decimal.Decimal
}

// Dispatcher converges all trigger events, from the streaming inline
// path and the monitor's batch path, into exactly one feed entry and
// at most one push notification per price-crossing. The at-most-once
// guarantee rests on the alert store's idempotent Triggered
// transition, which every caller goes through.
type Dispatcher struct {
	alerts   *alert.Store
	feed     *Feed
	pusher   Pusher
	holdings Holdings

	mu      sync.Mutex
	subs    map[int]func(*domain.Alert)
	nextSub int
}

// NewDispatcher wires the convergence point. pusher may be nil for a
// feed-only setup; holdings may be nil.
func NewDispatcher(alerts *alert.Store, feed *Feed, pusher Pusher, holdings Holdings) *Dispatcher {
	if pusher == nil {
		pusher = NopPusher{}
	}
	return &Dispatcher{
		alerts:   alerts,
		feed:     feed,
		pusher:   pusher,
		holdings: holdings,
		subs:     make(map[int]func(*domain.Alert)),
	}
}

// Subscribe registers an alert-trigger observer and returns its
// unsubscribe handle.
func (d *Dispatcher) Subscribe(fn func(*domain.Alert)) (unsubscribe func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextSub
	d.nextSub++
	d.subs[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subs, id)
	}
}

// Dispatch handles one trigger observation and reports whether this
// call won the Active -> Triggered transition. Both evaluation paths
// call it; the idempotent guard in the alert store means a single
// price-crossing observed concurrently by the streaming and polling
// paths yields exactly one feed entry and at most one push.
func (d *Dispatcher) Dispatch(ctx context.Context, a *domain.Alert, tick domain.Ticker) bool {
	won, err := d.alerts.TryTrigger(ctx, a.ID, tick.Price, time.Now().UTC())
	if err != nil {
		slog.Warn("trigger transition persist failed", "alert", a.ID, "err", err)
	}
	if !won {
		return false
	}

	fired, ok := d.alerts.Get(a.ID)
	if !ok {
		return false
	}

	enrich := d.enrich(fired, tick)
	n := d.feed.Add(d.buildNotification(fired, tick, enrich))
	slog.Info("alert dispatched", "alert", fired.ID, "symbol", fired.CoinSymbol, "price", tick.Price.String(), "notification", n.ID)

	d.pushBestEffort(ctx, fired, tick, enrich)
	d.notifySubscribers(fired)
	return true
}

// enrich derives the contextual data: direction and percent change
// from the last two observed prices, a coarse sentiment label from
// percent-change buckets and an optional portfolio impact estimate.
func (d *Dispatcher) enrich(a *domain.Alert, tick domain.Ticker) Enrichment {
	e := Enrichment{Direction: "up"}
	if a.AlertType == domain.AlertBelow {
		e.Direction = "down"
	}

	if a.PreviousPrice != nil && a.PreviousPrice.IsPositive() {
		diff := tick.Price.Sub(*a.PreviousPrice)
		e.ChangePercent = diff.Div(*a.PreviousPrice).Mul(decimal.NewFromInt(100))
		if diff.IsNegative() {
			e.Direction = "down"
		} else if diff.IsPositive() {
			e.Direction = "up"
		}
	} else if tick.Change24h != nil {
		e.ChangePercent = *tick.Change24h
	}

	e.Sentiment = sentimentLabel(e.ChangePercent)

	if d.holdings != nil {
		if amount, ok := d.holdings.Amount(a.CoinSymbol); ok && a.PreviousPrice != nil {
			impact := tick.Price.Sub(*a.PreviousPrice).Mul(amount)
			e.PortfolioImpact = &impact
		}
	}
	return e
}

// sentimentLabel buckets a percent change into a coarse label.
func sentimentLabel(changePercent decimal.Decimal) string {
	pct, _ := changePercent.Float64()
	switch {
	case pct > 10:
		return "Bullish Surge"
	case pct > 5:
		return "Strong Bullish"
	case pct > 2:
		return "Bullish"
	case pct > 0:
		return "Slightly Bullish"
	case pct > -2:
		return "Slightly Bearish"
	case pct > -5:
		return "Bearish"
	case pct > -10:
		return "Strong Bearish"
	default:
		return "Bearish Crash"
	}
}

func (d *Dispatcher) buildNotification(a *domain.Alert, tick domain.Ticker, e Enrichment) domain.Notification {
	side := "above"
	if a.AlertType == domain.AlertBelow {
		side = "below"
	}
	msg := fmt.Sprintf("%s price is now %s %s, %s your alert of %s %s",
		a.CoinSymbol, a.Currency, tick.Price.StringFixed(2), side, a.Currency, a.TargetPrice.StringFixed(2))
	if !e.ChangePercent.IsZero() {
		msg += fmt.Sprintf(" (%s%%, %s)", e.ChangePercent.StringFixed(2), e.Sentiment)
	}

	data := map[string]any{
		"alert_id":       a.ID,
		"coin_symbol":    a.CoinSymbol,
		"current_price":  tick.Price.String(),
		"target_price":   a.TargetPrice.String(),
		"alert_type":     string(a.AlertType),
		"direction":      e.Direction,
		"change_percent": e.ChangePercent.String(),
		"sentiment":      e.Sentiment,
	}
	if e.PortfolioImpact != nil {
		data["portfolio_impact"] = e.PortfolioImpact.String()
	}

	return domain.NewNotification("Price Alert Triggered", msg, domain.NotifPriceAlert, data)
}

// pushBestEffort raises at most one OS notification. No permission or
// platform support just means the side effect is skipped.
func (d *Dispatcher) pushBestEffort(ctx context.Context, a *domain.Alert, tick domain.Ticker, e Enrichment) {
	if !d.pusher.Available() {
		return
	}

	body := fmt.Sprintf("%s: %s %s\n%s", a.CoinSymbol, a.Currency, tick.Price.StringFixed(2), e.Sentiment)
	if e.PortfolioImpact != nil {
		body += fmt.Sprintf("\nPortfolio: %s", e.PortfolioImpact.StringFixed(2))
	}

	push := Push{
		Title:              "Price Alert Triggered",
		Body:               body,
		Tag:                "alert-" + a.ID,
		RequireInteraction: true,
		Data:               map[string]any{"alert_id": a.ID, "coin_symbol": a.CoinSymbol},
	}
	if err := d.pusher.Show(ctx, push); err != nil {
		slog.Debug("push skipped", "alert", a.ID, "err", err)
	}
}

func (d *Dispatcher) notifySubscribers(a *domain.Alert) {
	d.mu.Lock()
	fns := make([]func(*domain.Alert), 0, len(d.subs))
	for _, fn := range d.subs {
		fns = append(fns, fn)
	}
	d.mu.Unlock()

	for _, fn := range fns {
		fn(a)
	}
}
