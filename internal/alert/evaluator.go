// Package alert owns the Alert lifecycle: the durable store, the pure
// trigger evaluation and the backup polling monitor.
package alert

import (
	"github.com/agilanloganathan/coinfox/internal/domain"
	"github.com/shopspring/decimal"
)

// ShouldTrigger decides whether an alert fires at the given price.
// Pure, no side effects: for Above it is true iff price >= target, for
// Below iff price <= target, and always false unless the alert is
// Active.
func ShouldTrigger(a domain.Alert, currentPrice decimal.Decimal) bool {
	if a.Status != domain.AlertActive {
		return false
	}

	switch a.AlertType {
	case domain.AlertAbove:
		return currentPrice.GreaterThanOrEqual(a.TargetPrice)
	case domain.AlertBelow:
		return currentPrice.LessThanOrEqual(a.TargetPrice)
	default:
		return false
	}
}
