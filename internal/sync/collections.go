package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noterosync/notero/internal/state"
	"github.com/noterosync/notero/internal/zotero"
)

// CollectionCacheTTL is how long a group's cached collection mapping stays
// fresh before the next lookup triggers a refresh.
const CollectionCacheTTL = 600 * time.Second

// CollectionSource enumerates a library's collections; satisfied by
// *zotero.Client.
type CollectionSource interface {
	GetCollections(ctx context.Context, libraryType string, libraryID int64) ([]zotero.Collection, error)
}

// CollectionResolver translates collection names to keys and back through
// the store-backed cache, refreshing from Zotero when stale.
type CollectionResolver struct {
	db     *state.DB
	zotero CollectionSource
	log    zerolog.Logger
	ttl    time.Duration

	mu          sync.Mutex
	lastRefresh map[int64]time.Time
}

// NewCollectionResolver creates a resolver over the given store and client.
func NewCollectionResolver(db *state.DB, src CollectionSource, log zerolog.Logger) *CollectionResolver {
	return &CollectionResolver{
		db:          db,
		zotero:      src,
		log:         log,
		ttl:         CollectionCacheTTL,
		lastRefresh: make(map[int64]time.Time),
	}
}

// EnsureCache refreshes the cached mapping for a group if it is stale.
// Concurrent callers may both refresh; the store-side replace is
// transactional, so the race is harmless.
func (r *CollectionResolver) EnsureCache(ctx context.Context, libraryType string, groupID int64) error {
	r.mu.Lock()
	last := r.lastRefresh[groupID]
	r.mu.Unlock()
	if time.Since(last) < r.ttl {
		return nil
	}

	r.log.Info().Int64("group_id", groupID).Msg("refreshing collection cache")
	collections, err := r.zotero.GetCollections(ctx, libraryType, groupID)
	if err != nil {
		return fmt.Errorf("fetch collections: %w", err)
	}

	entries := make([]state.CollectionEntry, 0, len(collections))
	for _, col := range collections {
		entries = append(entries, state.CollectionEntry{Key: col.Key, Name: col.Name})
	}
	if err := r.db.RefreshCollections(groupID, entries); err != nil {
		return fmt.Errorf("store collections: %w", err)
	}

	r.mu.Lock()
	r.lastRefresh[groupID] = time.Now()
	r.mu.Unlock()
	return nil
}

// NamesToKeys translates collection names to keys, preserving input order.
// Unresolved names are dropped with a warning.
func (r *CollectionResolver) NamesToKeys(ctx context.Context, libraryType string, groupID int64, names []string) ([]string, error) {
	if err := r.EnsureCache(ctx, libraryType, groupID); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(names))
	for _, name := range names {
		key, err := r.db.GetCollectionKey(groupID, name)
		if err != nil {
			return nil, err
		}
		if key == "" {
			r.log.Warn().Str("name", name).Int64("group_id", groupID).Msg("collection name not found, skipping")
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// KeysToNames translates collection keys to names, preserving input order.
// Unresolved keys are dropped with a warning.
func (r *CollectionResolver) KeysToNames(ctx context.Context, libraryType string, groupID int64, keys []string) ([]string, error) {
	if err := r.EnsureCache(ctx, libraryType, groupID); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(keys))
	for _, key := range keys {
		name, err := r.db.GetCollectionName(groupID, key)
		if err != nil {
			return nil, err
		}
		if name == "" {
			r.log.Warn().Str("key", key).Int64("group_id", groupID).Msg("collection key not found, skipping")
			continue
		}
		names = append(names, name)
	}
	return names, nil
}
