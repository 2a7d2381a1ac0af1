package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType categorizes feed entries for filtering and
// click-navigation in the UI layer.
type NotificationType string

const (
	NotifPriceAlert      NotificationType = "price_alert"
	NotifPortfolioUpdate NotificationType = "portfolio_update"
	NotifCoinAdded       NotificationType = "coin_added"
	NotifMarketNews      NotificationType = "market_news"
	NotifSystem          NotificationType = "system"
)

// Notification is one in-app feed entry. It is created by the
// dispatcher and afterwards only ever read-marked or cleared.
type Notification struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
	Data      map[string]any   `json:"data,omitempty"`
}

// NewNotification builds an unread notification with a fresh ID.
func NewNotification(title, message string, typ NotificationType, data map[string]any) Notification {
	if data == nil {
		data = map[string]any{}
	}
	return Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Message:   message,
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
