package folders

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/platinummonkey/lockbox/pkg/identity"
)

// Resolver computes a principal's effective access level on a folder.
// Resolution is a pure function of current role, ownership, and grant
// data; the optional cache is invalidated on every mutation so a revoked
// grant affects the very next call.
type Resolver struct {
	store *Store
	cache *expirable.LRU[resolveKey, AccessLevel]
}

type resolveKey struct {
	folderID int64
	email    string
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCache enables an expirable LRU over resolution results. The TTL
// bounds staleness against out-of-band database edits; in-process
// mutations invalidate eagerly and never wait for it.
func WithCache(size int, ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.cache = expirable.NewLRU[resolveKey, AccessLevel](size, nil, ttl)
	}
}

// NewResolver creates a resolver over the folder store.
func NewResolver(store *Store, opts ...ResolverOption) *Resolver {
	r := &Resolver{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the identity's effective access level on the folder:
//
//  1. administrators resolve to LevelAdmin on every folder
//  2. the folder's creator resolves to LevelAdmin (owner rule)
//  3. an explicit grant yields its level
//  4. otherwise LevelNone — grants on ancestors do not inherit down
//
// ErrFolderNotFound is returned for a missing folder so callers can
// distinguish absence from denial.
func (r *Resolver) Resolve(ctx context.Context, ident *identity.Identity, folderID int64) (AccessLevel, error) {
	// Role checks never hit storage; short-circuit before any lookup.
	if ident.IsAdministrator() {
		return LevelAdmin, nil
	}

	key := resolveKey{folderID: folderID, email: ident.Email}
	if r.cache != nil {
		if level, ok := r.cache.Get(key); ok {
			return level, nil
		}
	}

	folder, err := r.store.GetByID(ctx, folderID)
	if err != nil {
		return LevelNone, err
	}

	level := LevelNone
	if folder.CreatedBy == ident.Email {
		level = LevelAdmin
	} else {
		grant, err := r.store.GetGrant(ctx, folderID, ident.Email)
		if err != nil {
			return LevelNone, fmt.Errorf("failed to resolve access: %w", err)
		}
		if grant != nil {
			level = grant.Level
		}
	}

	if r.cache != nil {
		r.cache.Add(key, level)
	}
	return level, nil
}

// Require resolves the identity's level and returns ErrForbidden when it
// does not satisfy the required tier.
func (r *Resolver) Require(ctx context.Context, ident *identity.Identity, folderID int64, required AccessLevel) error {
	level, err := r.Resolve(ctx, ident, folderID)
	if err != nil {
		return err
	}
	if !level.Satisfies(required) {
		return ErrForbidden
	}
	return nil
}

// Invalidate drops every cached resolution for the folder. Called by the
// service after grant, revoke, and deactivation so revocation is
// immediately visible.
func (r *Resolver) Invalidate(folderID int64) {
	if r.cache == nil {
		return
	}
	for _, key := range r.cache.Keys() {
		if key.folderID == folderID {
			r.cache.Remove(key)
		}
	}
}

// InvalidateAll drops the whole cache.
func (r *Resolver) InvalidateAll() {
	if r.cache == nil {
		return
	}
	r.cache.Purge()
}
