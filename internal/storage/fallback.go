package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/agilanloganathan/coinfox/internal/domain"
)

// FallbackKV writes through to the remote tier when available and
// falls back to the local tier transparently on remote failure. The
// caller never sees a hard failure from a transient remote outage.
//
// Writes always land in the local tier too, so a later fallback read
// finds the most recent state.
type FallbackKV struct {
	remote KV // nil when the user is not authenticated
	local  KV

	mu         sync.Mutex
	remoteDown bool
	loggedOnce bool
}

// NewFallbackKV builds the tiered store. remote may be nil.
func NewFallbackKV(remote, local KV) *FallbackKV {
	return &FallbackKV{remote: remote, local: local}
}

// Get reads remote-first, falling back to local.
func (f *FallbackKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.remote != nil {
		value, ok, err := f.remote.Get(ctx, key)
		if err == nil {
			f.markRemoteUp()
			return value, ok, nil
		}
		f.markRemoteDown(&domain.PersistenceUnavailableError{Tier: "remote", Err: err})
	}
	return f.local.Get(ctx, key)
}

// Put writes to both tiers; a remote failure is logged and absorbed as
// long as the local write succeeds.
func (f *FallbackKV) Put(ctx context.Context, key string, value []byte) error {
	if err := f.local.Put(ctx, key, value); err != nil {
		return err
	}
	if f.remote != nil {
		if err := f.remote.Put(ctx, key, value); err != nil {
			f.markRemoteDown(&domain.PersistenceUnavailableError{Tier: "remote", Err: err})
			return nil
		}
		f.markRemoteUp()
	}
	return nil
}

// markRemoteDown logs the outage once per down transition so a flaky
// remote does not flood the log.
func (f *FallbackKV) markRemoteDown(perr *domain.PersistenceUnavailableError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loggedOnce {
		slog.Warn("falling back to local store", "err", perr)
		f.loggedOnce = true
	}
	f.remoteDown = true
}

func (f *FallbackKV) markRemoteUp() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remoteDown {
		slog.Info("remote store recovered")
	}
	f.remoteDown = false
	f.loggedOnce = false
}
