// Package bootstrap establishes initial sync state for a Notion database:
// seeding copies of source items into a Zotero group, or snapshotting
// read-only baselines against the items pages already point at.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"

	"github.com/noterosync/notero/internal/notion"
	"github.com/noterosync/notero/internal/state"
	"github.com/noterosync/notero/internal/sync"
	"github.com/noterosync/notero/internal/zotero"
)

// strippedFields are removed from item data before creating the group copy;
// they are library-local or assigned by the server.
var strippedFields = []string{"key", "version", "collections", "relations", "dateAdded", "dateModified"}

// sameAsItem extracts the group item a relation points at, e.g.
// http://zotero.org/groups/483726/items/A5X7AKTH.
var sameAsItem = regexp.MustCompile(`groups/(\d+)/items/([A-Z0-9]+)`)

// DatabaseSource enumerates the pages of a Notion database; satisfied by
// *notion.Client.
type DatabaseSource interface {
	QueryAllPages(ctx context.Context, databaseID string) ([]notionapi.Page, error)
}

// ItemClient reads and creates Zotero items; satisfied by *zotero.Client.
type ItemClient interface {
	GetItem(ctx context.Context, ref zotero.ItemRef) (*zotero.Item, error)
	CreateItem(ctx context.Context, ref zotero.ItemRef, data map[string]any) (*zotero.Item, error)
}

// Report counts the outcome of a bootstrap run.
type Report struct {
	Created int
	Reused  int
	Skipped int
}

// Bootstrapper runs the seed and snapshot operations.
type Bootstrapper struct {
	db          *state.DB
	notion      DatabaseSource
	zotero      ItemClient
	collections *sync.CollectionResolver
	log         zerolog.Logger
}

// New creates a Bootstrapper. collections may be nil when no cache warming
// is wanted.
func New(db *state.DB, pages DatabaseSource, items ItemClient, collections *sync.CollectionResolver, log zerolog.Logger) *Bootstrapper {
	return &Bootstrapper{
		db:          db,
		notion:      pages,
		zotero:      items,
		collections: collections,
		log:         log,
	}
}

// Seed materializes a Zotero group item for every relevant page that lacks
// sync state. An existing owl:sameAs relation into the group is reused;
// otherwise a stripped copy of the source item is created. Finishes by
// warming the group's collection cache.
func (b *Bootstrapper) Seed(ctx context.Context, databaseID string, groupID int64) (*Report, error) {
	pages, err := b.notion.QueryAllPages(ctx, databaseID)
	if err != nil {
		return nil, fmt.Errorf("query notion database: %w", err)
	}

	report := &Report{}
	for _, page := range pages {
		pageID := string(page.ID)
		props := notion.ParseProperties(page.Properties)

		ref, ok := b.eligiblePage(pageID, props, report)
		if !ok {
			continue
		}

		st, err := b.db.GetSyncState(pageID)
		if err != nil {
			return nil, fmt.Errorf("load sync state: %w", err)
		}
		if st != nil {
			report.Skipped++
			continue
		}

		source, err := b.zotero.GetItem(ctx, ref)
		if err != nil {
			if errors.Is(err, zotero.ErrNotFound) {
				b.log.Warn().Str("page_id", pageID).Str("item", ref.String()).Msg("source item not found, skipping")
				report.Skipped++
				continue
			}
			return nil, fmt.Errorf("fetch source item %s: %w", ref, err)
		}

		groupItem, reused, err := b.groupItemFor(ctx, source, groupID)
		if err != nil {
			return nil, err
		}
		if reused {
			report.Reused++
		} else {
			report.Created++
		}

		if err := b.db.UpsertSyncState(pageID, groupItem.Key, groupID, groupItem.Version, sync.Snapshot(props)); err != nil {
			return nil, fmt.Errorf("store sync state: %w", err)
		}
		b.log.Info().Str("page_id", pageID).Str("item_key", groupItem.Key).Bool("reused", reused).Msg("seeded page")
	}

	if b.collections != nil {
		if err := b.collections.EnsureCache(ctx, zotero.LibraryGroups, groupID); err != nil {
			b.log.Warn().Err(err).Int64("group_id", groupID).Msg("warm collection cache failed")
		}
	}

	return report, nil
}

// Snapshot records a read-only baseline for every relevant page against the
// item its URI points at. Nothing is written to Zotero.
func (b *Bootstrapper) Snapshot(ctx context.Context, databaseID string) (*Report, error) {
	pages, err := b.notion.QueryAllPages(ctx, databaseID)
	if err != nil {
		return nil, fmt.Errorf("query notion database: %w", err)
	}

	report := &Report{}
	for _, page := range pages {
		pageID := string(page.ID)
		props := notion.ParseProperties(page.Properties)

		ref, ok := b.eligiblePage(pageID, props, report)
		if !ok {
			continue
		}

		st, err := b.db.GetSyncState(pageID)
		if err != nil {
			return nil, fmt.Errorf("load sync state: %w", err)
		}
		if st != nil {
			report.Skipped++
			continue
		}

		item, err := b.zotero.GetItem(ctx, ref)
		if err != nil {
			if errors.Is(err, zotero.ErrNotFound) {
				b.log.Warn().Str("page_id", pageID).Str("item", ref.String()).Msg("item not found, skipping")
				report.Skipped++
				continue
			}
			return nil, fmt.Errorf("fetch item %s: %w", ref, err)
		}

		if err := b.db.UpsertSyncState(pageID, ref.ItemKey, ref.LibraryID, item.Version, sync.Snapshot(props)); err != nil {
			return nil, fmt.Errorf("store sync state: %w", err)
		}
		report.Created++
		b.log.Info().Str("page_id", pageID).Str("item", ref.String()).Msg("recorded baseline")
	}

	return report, nil
}

// eligiblePage applies the relevance gate and URI parse; ineligible pages
// bump the skip counter.
func (b *Bootstrapper) eligiblePage(pageID string, props notion.ValueMap, report *Report) (zotero.ItemRef, bool) {
	if !sync.IsRelevant(props.StringOr(sync.RelevantProperty, "")) {
		report.Skipped++
		return zotero.ItemRef{}, false
	}

	uri := props.StringOr(notion.ZoteroURIKey, "")
	if uri == "" {
		b.log.Debug().Str("page_id", pageID).Msg("page has no zotero uri, skipping")
		report.Skipped++
		return zotero.ItemRef{}, false
	}
	ref, err := zotero.ParseItemURI(uri)
	if err != nil {
		b.log.Warn().Str("page_id", pageID).Str("uri", uri).Msg("cannot parse zotero uri, skipping")
		report.Skipped++
		return zotero.ItemRef{}, false
	}
	return ref, true
}

// groupItemFor returns the group-library item for a source item: the live
// target of an owl:sameAs relation into the group when one exists, otherwise
// a freshly created stripped copy.
func (b *Bootstrapper) groupItemFor(ctx context.Context, source *zotero.Item, groupID int64) (*zotero.Item, bool, error) {
	if key := sameAsKey(source.Data, groupID); key != "" {
		ref := zotero.ItemRef{LibraryType: zotero.LibraryGroups, LibraryID: groupID, ItemKey: key}
		existing, err := b.zotero.GetItem(ctx, ref)
		if err == nil {
			return existing, true, nil
		}
		if !errors.Is(err, zotero.ErrNotFound) {
			return nil, false, fmt.Errorf("fetch related item %s: %w", ref, err)
		}
		b.log.Warn().Str("item", ref.String()).Msg("related group item gone, creating copy")
	}

	data := make(map[string]any, len(source.Data))
	for k, v := range source.Data {
		data[k] = v
	}
	for _, field := range strippedFields {
		delete(data, field)
	}

	groupRef := zotero.ItemRef{LibraryType: zotero.LibraryGroups, LibraryID: groupID}
	created, err := b.zotero.CreateItem(ctx, groupRef, data)
	if err != nil {
		return nil, false, fmt.Errorf("create group copy: %w", err)
	}
	return created, false, nil
}

// sameAsKey scans an item's relations for an owl:sameAs entry pointing into
// the target group. The relation value may be a string or a list.
func sameAsKey(data map[string]any, groupID int64) string {
	relations, ok := data["relations"].(map[string]any)
	if !ok {
		return ""
	}

	var targets []string
	switch v := relations["owl:sameAs"].(type) {
	case string:
		targets = []string{v}
	case []any:
		for _, t := range v {
			if s, ok := t.(string); ok {
				targets = append(targets, s)
			}
		}
	}

	for _, target := range targets {
		m := sameAsItem.FindStringSubmatch(target)
		if m == nil {
			continue
		}
		if id, err := strconv.ParseInt(m[1], 10, 64); err == nil && id == groupID {
			return m[2]
		}
	}
	return ""
}
