package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AlertType says which side of the target price fires the alert.
type AlertType string

const (
	AlertAbove AlertType = "above"
	AlertBelow AlertType = "below"
)

// AlertStatus is the alert lifecycle state. Exactly one applies at any
// time: Active -> Triggered -> Dismissed, or Active -> Dismissed.
// There is no transition out of Dismissed and no auto re-arm.
type AlertStatus string

const (
	AlertActive    AlertStatus = "active"
	AlertTriggered AlertStatus = "triggered"
	AlertDismissed AlertStatus = "dismissed"
)

// Alert is a user-defined rule that fires when an asset's price
// crosses a threshold.
type Alert struct {
	ID          string          `json:"id"`
	CoinSymbol  string          `json:"coin_symbol"`
	TargetPrice decimal.Decimal `json:"target_price"`
	AlertType   AlertType       `json:"alert_type"`
	Currency    string          `json:"currency"`
	Status      AlertStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	TriggeredAt *time.Time      `json:"triggered_at,omitempty"`
	DismissedAt *time.Time      `json:"dismissed_at,omitempty"`

	// Last two observed prices, informational only. Triggering is
	// decided by TargetPrice/AlertType against the current price.
	PreviousPrice *decimal.Decimal `json:"previous_price,omitempty"`
	CurrentPrice  *decimal.Decimal `json:"current_price,omitempty"`
}

// NewAlert validates the input and builds an Active alert.
func NewAlert(coinSymbol string, targetPrice decimal.Decimal, alertType AlertType, currency string) (*Alert, error) {
	if strings.TrimSpace(coinSymbol) == "" {
		return nil, &ValidationError{Field: "coin_symbol", Reason: "symbol is required"}
	}
	if !targetPrice.IsPositive() {
		return nil, &ValidationError{Field: "target_price", Reason: "must be a positive number"}
	}
	if alertType != AlertAbove && alertType != AlertBelow {
		return nil, &ValidationError{Field: "alert_type", Reason: `must be "above" or "below"`}
	}
	if currency == "" {
		currency = "USD"
	}

	return &Alert{
		ID:          uuid.NewString(),
		CoinSymbol:  strings.ToUpper(strings.TrimSpace(coinSymbol)),
		TargetPrice: targetPrice,
		AlertType:   alertType,
		Currency:    strings.ToUpper(currency),
		Status:      AlertActive,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Trigger performs the Active -> Triggered transition. It is
// idempotent: re-triggering an already-Triggered (or Dismissed) alert
// is a no-op and reports false.
func (a *Alert) Trigger(price decimal.Decimal, at time.Time) bool {
	if a.Status != AlertActive {
		return false
	}
	a.Status = AlertTriggered
	a.TriggeredAt = &at
	a.PreviousPrice = a.CurrentPrice
	a.CurrentPrice = &price
	return true
}

// Dismiss moves an Active or Triggered alert to Dismissed. Dismissed
// is terminal; dismissing twice reports false.
func (a *Alert) Dismiss(at time.Time) bool {
	if a.Status == AlertDismissed {
		return false
	}
	a.Status = AlertDismissed
	a.DismissedAt = &at
	return true
}

// ObservePrice records the latest price pair for direction/percentage
// display. It never changes the alert status.
func (a *Alert) ObservePrice(price decimal.Decimal) {
	a.PreviousPrice = a.CurrentPrice
	a.CurrentPrice = &price
}
