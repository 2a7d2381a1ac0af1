// Package storage provides the persistence collaborator for the alert
// pipeline: an opaque key-value contract with a local sqlite tier and
// a remote per-user encrypted tier, remote falling back to local.
package storage

import "context"

// KV is the narrow persistence contract. Both tiers implement it.
// The second return of Get reports whether the key exists.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}
