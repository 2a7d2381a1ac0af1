package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/agilanloganathan/coinfox/internal/domain"
	"github.com/agilanloganathan/coinfox/internal/storage"
	"github.com/shopspring/decimal"
)

// alertsKey is the persistence key holding the full alert set.
const alertsKey = "coinfox-alerts"

// persistedSet is the stored shape: the whole alert set plus a version
// stamp bumped on every write, so lost updates from a stale
// load-mutate-save cycle are detectable.
type persistedSet struct {
	Version uint64          `json:"version"`
	Alerts  []*domain.Alert `json:"alerts"`
}

// Store is the durable collection of alerts. All mutations run under
// one mutex (single-writer discipline) and persist the full current
// set atomically, so no partial-write state is ever visible and alert
// transitions are serialized per store.
type Store struct {
	mu      sync.Mutex
	kv      storage.KV
	alerts  map[string]*domain.Alert
	version uint64
}

// NewStore creates a store over the given persistence tier.
func NewStore(kv storage.KV) *Store {
	return &Store{
		kv:     kv,
		alerts: make(map[string]*domain.Alert),
	}
}

// LoadAll hydrates the store from persistence. Missing data means an
// empty set, not an error.
func (s *Store) LoadAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok, err := s.kv.Get(ctx, alertsKey)
	if err != nil {
		return fmt.Errorf("failed to load alerts: %w", err)
	}
	if !ok || len(data) == 0 {
		return nil
	}

	var set persistedSet
	if err := json.Unmarshal(data, &set); err != nil {
		return fmt.Errorf("failed to decode alerts: %w", err)
	}

	s.alerts = make(map[string]*domain.Alert, len(set.Alerts))
	for _, a := range set.Alerts {
		s.alerts[a.ID] = a
	}
	s.version = set.Version
	return nil
}

// Create validates the input, rejects duplicates of an existing Active
// alert and persists the new alert.
func (s *Store) Create(ctx context.Context, coinSymbol string, targetPrice decimal.Decimal, alertType domain.AlertType, currency string) (*domain.Alert, error) {
	a, err := domain.NewAlert(coinSymbol, targetPrice, alertType, currency)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.alerts {
		if existing.Status == domain.AlertActive &&
			existing.CoinSymbol == a.CoinSymbol &&
			existing.AlertType == a.AlertType &&
			existing.TargetPrice.Equal(a.TargetPrice) {
			return nil, &domain.DuplicateAlertError{
				Symbol:      a.CoinSymbol,
				TargetPrice: a.TargetPrice.String(),
				AlertType:   a.AlertType,
			}
		}
	}

	s.alerts[a.ID] = a
	if err := s.persistLocked(ctx); err != nil {
		delete(s.alerts, a.ID)
		return nil, err
	}
	return cloned(a), nil
}

// Add inserts a pre-built alert.
func (s *Store) Add(ctx context.Context, a *domain.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts[a.ID] = cloned(a)
	return s.persistLocked(ctx)
}

// Remove deletes an alert by id.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.alerts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.alerts, id)
	return s.persistLocked(ctx)
}

// Update applies a mutation to one alert and persists the set.
func (s *Store) Update(ctx context.Context, id string, mutate func(*domain.Alert)) (*domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	mutate(a)
	if err := s.persistLocked(ctx); err != nil {
		return nil, err
	}
	return cloned(a), nil
}

// TryTrigger performs the Active -> Triggered transition exactly once.
// Both evaluation paths (streaming and polling) converge here; the
// store mutex serializes them, so concurrent observers of the same
// price crossing yield one winner. Returns whether this call won.
func (s *Store) TryTrigger(ctx context.Context, id string, price decimal.Decimal, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if !a.Trigger(price, at) {
		return false, nil
	}
	if err := s.persistLocked(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// Dismiss moves an alert to Dismissed.
func (s *Store) Dismiss(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !a.Dismiss(time.Now().UTC()) {
		return nil
	}
	return s.persistLocked(ctx)
}

// Get returns one alert by id.
func (s *Store) Get(id string) (*domain.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return nil, false
	}
	return cloned(a), true
}

// All returns every alert, newest first.
func (s *Store) All() []*domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectLocked(func(*domain.Alert) bool { return true })
}

// QueryByStatus returns alerts in the given status, newest first.
func (s *Store) QueryByStatus(status domain.AlertStatus) []*domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectLocked(func(a *domain.Alert) bool { return a.Status == status })
}

// QueryBySymbol returns alerts for one symbol, newest first.
func (s *Store) QueryBySymbol(symbol string) []*domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collectLocked(func(a *domain.Alert) bool { return a.CoinSymbol == symbol })
}

func (s *Store) collectLocked(keep func(*domain.Alert) bool) []*domain.Alert {
	out := make([]*domain.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if keep(a) {
			out = append(out, cloned(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// persistLocked writes the full current set with a bumped version
// stamp. Callers hold s.mu.
func (s *Store) persistLocked(ctx context.Context) error {
	s.version++
	set := persistedSet{Version: s.version, Alerts: make([]*domain.Alert, 0, len(s.alerts))}
	for _, a := range s.alerts {
		set.Alerts = append(set.Alerts, a)
	}
	sort.Slice(set.Alerts, func(i, j int) bool { return set.Alerts[i].CreatedAt.Before(set.Alerts[j].CreatedAt) })

	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("failed to encode alerts: %w", err)
	}
	if err := s.kv.Put(ctx, alertsKey, data); err != nil {
		return fmt.Errorf("failed to persist alerts: %w", err)
	}
	return nil
}

func cloned(a *domain.Alert) *domain.Alert {
	c := *a
	return &c
}
