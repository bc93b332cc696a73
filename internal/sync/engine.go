package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"

	"github.com/noterosync/notero/internal/notion"
	"github.com/noterosync/notero/internal/state"
	"github.com/noterosync/notero/internal/zotero"
)

const (
	// maxPatchAttempts bounds the merge-and-patch loop on version conflicts.
	maxPatchAttempts = 3

	// defaultRetryInterval is the base of the linear conflict backoff.
	defaultRetryInterval = time.Second
)

// PageSource provides Notion page state; satisfied by *notion.Client.
type PageSource interface {
	GetPageProperties(ctx context.Context, pageID string) (notion.ValueMap, error)
	GetBlockChildren(ctx context.Context, blockID string) ([]notionapi.Block, error)
	GetAllBlocks(ctx context.Context, pageID string) ([]notionapi.Block, error)
}

// ItemAPI provides the Zotero item operations the engines need; satisfied
// by *zotero.Client.
type ItemAPI interface {
	GetItem(ctx context.Context, ref zotero.ItemRef) (*zotero.Item, error)
	PatchItem(ctx context.Context, ref zotero.ItemRef, data map[string]any, version int) (int, error)
	CreateNote(ctx context.Context, parent zotero.ItemRef, noteHTML string, tags []zotero.Tag) (*zotero.Item, error)
	DeleteItem(ctx context.Context, ref zotero.ItemRef, version int) error
}

// Engine reconciles Notion page properties against Zotero items: it merges
// each mapped field against the stored baseline and patches the item under
// optimistic concurrency.
type Engine struct {
	db            *state.DB
	notion        PageSource
	zotero        ItemAPI
	collections   *CollectionResolver
	log           zerolog.Logger
	retryInterval time.Duration
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithRetryInterval overrides the conflict backoff base interval.
func WithRetryInterval(d time.Duration) EngineOption {
	return func(e *Engine) { e.retryInterval = d }
}

// NewEngine creates a property sync engine.
func NewEngine(db *state.DB, pages PageSource, items ItemAPI, collections *CollectionResolver, log zerolog.Logger, opts ...EngineOption) *Engine {
	e := &Engine{
		db:            db,
		notion:        pages,
		zotero:        items,
		collections:   collections,
		log:           log,
		retryInterval: defaultRetryInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SyncPageProperties propagates property edits on a Notion page to the
// corresponding Zotero item. Missing URIs, irrelevant pages and pages whose
// items were deleted remotely are benign: they log and return nil.
func (e *Engine) SyncPageProperties(ctx context.Context, pageID string) error {
	props, err := e.notion.GetPageProperties(ctx, pageID)
	if err != nil {
		return fmt.Errorf("fetch page properties: %w", err)
	}

	relevant := props.StringOr(RelevantProperty, "")
	if !IsRelevant(relevant) {
		e.log.Debug().Str("page_id", pageID).Str("relevant", relevant).Msg("page not relevant, skipping")
		return nil
	}

	uri := props.StringOr(notion.ZoteroURIKey, "")
	if uri == "" {
		e.log.Warn().Str("page_id", pageID).Msg("page has no zotero uri, skipping")
		return nil
	}
	ref, err := zotero.ParseItemURI(uri)
	if err != nil {
		e.log.Warn().Str("page_id", pageID).Str("uri", uri).Msg("cannot parse zotero uri, skipping")
		return nil
	}

	st, err := e.db.GetSyncState(pageID)
	if err != nil {
		return fmt.Errorf("load sync state: %w", err)
	}
	if st != nil && st.Deleted {
		e.log.Info().Str("page_id", pageID).Msg("page marked deleted, skipping")
		return nil
	}

	baseline := notion.ValueMap{}
	if st != nil && st.PropertySnapshot != nil {
		baseline = st.PropertySnapshot
	}

	err = retryConflicts(ctx, maxPatchAttempts, e.retryInterval, func() error {
		return e.mergeAndPatch(ctx, pageID, ref, props, baseline)
	})
	if err != nil {
		if errors.Is(err, zotero.ErrNotFound) {
			e.log.Warn().Str("page_id", pageID).Str("item", ref.String()).Msg("zotero item gone, marking deleted")
			return e.db.MarkDeleted(pageID)
		}
		if _, ok := zotero.IsConflict(err); ok {
			e.log.Error().Str("item", ref.String()).Int("attempts", maxPatchAttempts).Msg("version conflict persisted, giving up")
			return nil
		}
		return err
	}
	return nil
}

// mergeAndPatch fetches the current Zotero item, computes the sparse patch
// and applies it, then stores the fresh baseline.
func (e *Engine) mergeAndPatch(ctx context.Context, pageID string, ref zotero.ItemRef, props, baseline notion.ValueMap) error {
	item, err := e.zotero.GetItem(ctx, ref)
	if err != nil {
		return err
	}

	patch := make(map[string]any)
	for _, field := range SyncableFields {
		switch field.Strategy {
		case StrategyThreeWay:
			if err := e.mergeSetField(ctx, field, ref, props, baseline, item, patch); err != nil {
				return err
			}
		case StrategyScalar:
			e.mergeScalarField(field, props, baseline, item, patch)
		}
	}

	version := item.Version
	if len(patch) == 0 {
		e.log.Debug().Str("page_id", pageID).Msg("no changes to sync")
	} else {
		fields := make([]string, 0, len(patch))
		for f := range patch {
			fields = append(fields, f)
		}
		e.log.Info().Str("item", ref.String()).Strs("fields", fields).Msg("patching zotero item")

		version, err = e.zotero.PatchItem(ctx, ref, patch, item.Version)
		if err != nil {
			return err
		}
	}

	return e.db.UpsertSyncState(pageID, ref.ItemKey, ref.LibraryID, version, Snapshot(props))
}

// mergeSetField computes the three-way merge contribution for tags or
// collections. The field is emitted only when the merged set differs from
// Zotero's current set.
func (e *Engine) mergeSetField(ctx context.Context, field FieldMapping, ref zotero.ItemRef, props, baseline notion.ValueMap, item *zotero.Item, patch map[string]any) error {
	notionCurrent := props.ListOr(field.NotionName, []string{})
	base := baseline.ListOr(field.NotionName, []string{})

	switch field.ZoteroField {
	case "tags":
		zoteroCurrent := wireTagsToList(item.Data["tags"])
		merged := ThreeWayMerge(base, notionCurrent, zoteroCurrent, ProvenanceTag)
		if !sameSet(merged, zoteroCurrent) {
			patch["tags"] = tagsToWire(merged)
		}

	case "collections":
		zoteroCurrent := wireStringList(item.Data["collections"])
		notionKeys, err := e.collections.NamesToKeys(ctx, ref.LibraryType, ref.LibraryID, notionCurrent)
		if err != nil {
			return fmt.Errorf("resolve notion collections: %w", err)
		}
		baseKeys, err := e.collections.NamesToKeys(ctx, ref.LibraryType, ref.LibraryID, base)
		if err != nil {
			return fmt.Errorf("resolve baseline collections: %w", err)
		}
		merged := ThreeWayMerge(baseKeys, notionKeys, zoteroCurrent)
		if !sameSet(merged, zoteroCurrent) {
			patch["collections"] = merged
		}
	}

	return nil
}

// mergeScalarField applies the scalar policy: Notion wins unless both sides
// changed since the baseline, in which case Zotero is preserved and the
// conflict is logged. Clears (empty strings) are honored.
func (e *Engine) mergeScalarField(field FieldMapping, props, baseline notion.ValueMap, item *zotero.Item, patch map[string]any) {
	notionCurrent := props.StringOr(field.NotionName, "")
	base := baseline.StringOr(field.NotionName, "")
	zoteroCurrent := wireString(item.Data[field.ZoteroField])

	notionChanged := notionCurrent != base
	zoteroChanged := zoteroCurrent != base

	if !notionChanged {
		return
	}
	if zoteroChanged {
		e.log.Warn().Str("field", field.ZoteroField).Msg("both sides changed, zotero wins")
		return
	}
	patch[field.ZoteroField] = notionCurrent
}

// Snapshot captures the current Notion values of every configured field
// present on the page. The snapshot is the next merge's baseline.
func Snapshot(props notion.ValueMap) notion.ValueMap {
	snapshot := make(notion.ValueMap)
	for _, field := range SyncableFields {
		if v, ok := props.Get(field.NotionName); ok {
			snapshot[field.NotionName] = v
		}
	}
	return snapshot
}
