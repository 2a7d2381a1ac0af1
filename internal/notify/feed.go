// Package notify is the single convergence point for triggered
// alerts: the bounded in-app feed, the best-effort OS push channel and
// the dispatcher that enriches and fans out trigger events.
package notify

import (
	"fmt"
	"sync"

	"github.com/agilanloganathan/coinfox/internal/domain"
)

// DefaultFeedCap is the feed's ring-buffer capacity.
const DefaultFeedCap = 50

// Feed is the in-app notification feed: a ring buffer capped at
// DefaultFeedCap entries, newest first, oldest evicted. Entries are
// only ever read-marked, removed or cleared after creation.
type Feed struct {
	mu      sync.Mutex
	entries []domain.Notification
	cap     int

	subs    map[int]func([]domain.Notification)
	nextSub int
}

// NewFeed creates an empty feed with the default capacity.
func NewFeed() *Feed {
	return &Feed{cap: DefaultFeedCap, subs: make(map[int]func([]domain.Notification))}
}

// Add prepends a notification, evicting the oldest entry when full.
func (f *Feed) Add(n domain.Notification) domain.Notification {
	f.mu.Lock()
	f.entries = append([]domain.Notification{n}, f.entries...)
	if len(f.entries) > f.cap {
		f.entries = f.entries[:f.cap]
	}
	f.mu.Unlock()

	f.notify()
	return n
}

// All returns every entry, newest first.
func (f *Feed) All() []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Notification, len(f.entries))
	copy(out, f.entries)
	return out
}

// Unread returns the unread entries, newest first.
func (f *Feed) Unread() []domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Notification
	for _, n := range f.entries {
		if !n.Read {
			out = append(out, n)
		}
	}
	return out
}

// UnreadCount returns the number of unread entries.
func (f *Feed) UnreadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.entries {
		if !n.Read {
			count++
		}
	}
	return count
}

// MarkRead marks one entry as read.
func (f *Feed) MarkRead(id string) {
	f.mu.Lock()
	changed := false
	for i := range f.entries {
		if f.entries[i].ID == id && !f.entries[i].Read {
			f.entries[i].Read = true
			changed = true
			break
		}
	}
	f.mu.Unlock()

	if changed {
		f.notify()
	}
}

// MarkAllRead marks every entry as read.
func (f *Feed) MarkAllRead() {
	f.mu.Lock()
	for i := range f.entries {
		f.entries[i].Read = true
	}
	f.mu.Unlock()

	f.notify()
}

// Remove deletes one entry.
func (f *Feed) Remove(id string) {
	f.mu.Lock()
	for i := range f.entries {
		if f.entries[i].ID == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			break
		}
	}
	f.mu.Unlock()

	f.notify()
}

// Clear empties the feed.
func (f *Feed) Clear() {
	f.mu.Lock()
	f.entries = nil
	f.mu.Unlock()

	f.notify()
}

// Subscribe registers a feed-change callback and returns its
// unsubscribe handle. The callback receives the full feed.
func (f *Feed) Subscribe(fn func([]domain.Notification)) (unsubscribe func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}
}

func (f *Feed) notify() {
	f.mu.Lock()
	fns := make([]func([]domain.Notification), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()

	snapshot := f.All()
	for _, fn := range fns {
		fn(snapshot)
	}
}

// AddPortfolioUpdate appends a portfolio value change notification.
func (f *Feed) AddPortfolioUpdate(totalValue, changePercent float64, currency string) domain.Notification {
	direction := "up"
	if changePercent < 0 {
		direction = "down"
	}
	msg := fmt.Sprintf("Portfolio value: %.2f %s (%+.2f%%)", totalValue, currency, changePercent)
	return f.Add(domain.NewNotification("Portfolio Update", msg, domain.NotifPortfolioUpdate, map[string]any{
		"total_value":    totalValue,
		"change_percent": changePercent,
		"currency":       currency,
		"direction":      direction,
	}))
}

// AddCoinAdded appends a coin-added notification.
func (f *Feed) AddCoinAdded(symbol string, amount float64) domain.Notification {
	msg := fmt.Sprintf("%s has been added to your portfolio (%g %s)", symbol, amount, symbol)
	return f.Add(domain.NewNotification("New Coin Added", msg, domain.NotifCoinAdded, map[string]any{
		"coin_symbol": symbol,
		"amount":      amount,
	}))
}

// AddMarketNews appends a market news notification.
func (f *Feed) AddMarketNews(headline, source, url string) domain.Notification {
	return f.Add(domain.NewNotification("Market News", headline, domain.NotifMarketNews, map[string]any{
		"source": source,
		"url":    url,
	}))
}

// AddSystem appends a system notification.
func (f *Feed) AddSystem(title, message string) domain.Notification {
	return f.Add(domain.NewNotification(title, message, domain.NotifSystem, nil))
}
