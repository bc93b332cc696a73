package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"

	"github.com/noterosync/notero/internal/notion"
	"github.com/noterosync/notero/internal/render"
	"github.com/noterosync/notero/internal/state"
	"github.com/noterosync/notero/internal/zotero"
)

// NotesHeading marks the start of the synced notes region on a page. Only
// top-level blocks between this heading and the next heading become notes.
const NotesHeading = "Zotero Notes"

// NoteEngine mirrors the notes region of a Notion page onto child notes of
// the linked Zotero item, diffing by structural hash.
type NoteEngine struct {
	db            *state.DB
	notion        PageSource
	zotero        ItemAPI
	log           zerolog.Logger
	deleteOrphans bool
}

// NewNoteEngine creates a note sync engine. When deleteOrphans is false,
// Zotero notes whose source blocks disappeared are left untouched.
func NewNoteEngine(db *state.DB, pages PageSource, items ItemAPI, log zerolog.Logger, deleteOrphans bool) *NoteEngine {
	return &NoteEngine{
		db:            db,
		notion:        pages,
		zotero:        items,
		log:           log,
		deleteOrphans: deleteOrphans,
	}
}

// section is one candidate note: the top-level block it is anchored to and
// the blocks that make up its content.
type section struct {
	blockID string
	blocks  []notionapi.Block
}

// SyncPage resolves the page's Zotero item and reconciles its notes region.
// Pages without a parseable URI are benign: they log and return nil.
func (e *NoteEngine) SyncPage(ctx context.Context, pageID string) error {
	props, err := e.notion.GetPageProperties(ctx, pageID)
	if err != nil {
		return fmt.Errorf("fetch page properties: %w", err)
	}

	uri := props.StringOr(notion.ZoteroURIKey, "")
	if uri == "" {
		e.log.Warn().Str("page_id", pageID).Msg("page has no zotero uri, skipping notes")
		return nil
	}
	ref, err := zotero.ParseItemURI(uri)
	if err != nil {
		e.log.Warn().Str("page_id", pageID).Str("uri", uri).Msg("cannot parse zotero uri, skipping notes")
		return nil
	}

	return e.SyncPageNotes(ctx, pageID, ref)
}

// SyncPageNotes reconciles the page's notes region against the tracked child
// notes of ref. Individual section failures are logged and skipped so one
// bad section cannot block the rest.
func (e *NoteEngine) SyncPageNotes(ctx context.Context, pageID string, ref zotero.ItemRef) error {
	blocks, err := e.notion.GetAllBlocks(ctx, pageID)
	if err != nil {
		return fmt.Errorf("fetch page blocks: %w", err)
	}

	// An absent or empty notes region says nothing about tracked notes, so
	// orphan handling must not run on it.
	sections := e.discoverSections(ctx, blocks)
	if len(sections) == 0 {
		e.log.Debug().Str("page_id", pageID).Msg("no notes region on page")
		return nil
	}

	states, err := e.db.GetNoteSyncStatesForParent(ref.ItemKey, ref.LibraryID)
	if err != nil {
		return fmt.Errorf("load note sync states: %w", err)
	}
	tracked := make(map[string]*state.NoteSyncState, len(states))
	for _, st := range states {
		tracked[st.NotionBlockID] = st
	}

	for _, sec := range sections {
		hash, err := render.BlocksHash(sec.blocks)
		if err != nil {
			e.log.Error().Err(err).Str("block_id", sec.blockID).Msg("hash section failed, skipping")
			continue
		}

		if st, ok := tracked[sec.blockID]; ok {
			delete(tracked, sec.blockID)
			if st.ContentHash == hash {
				continue
			}
			e.updateNote(ctx, ref, sec, st, hash)
		} else {
			e.createNote(ctx, ref, sec, hash)
		}
	}

	e.reapOrphans(ctx, ref, tracked)
	return nil
}

// discoverSections returns the candidate note sections: the top-level blocks
// between the notes heading and the next heading. For a block with children
// the section content is its child blocks, pre-populated by the recursive
// page fetch; a fallback fetch covers blocks that arrived without them.
func (e *NoteEngine) discoverSections(ctx context.Context, blocks []notionapi.Block) []section {
	var sections []section
	inRegion := false

	for _, block := range blocks {
		if notion.IsHeading(block) {
			if inRegion {
				break
			}
			inRegion = strings.TrimSpace(notion.BlockPlainText(block)) == NotesHeading
			continue
		}
		if !inRegion {
			continue
		}

		id := notion.BlockID(block)
		if id == "" {
			continue
		}

		content := []notionapi.Block{block}
		if notion.BlockHasChildren(block) {
			if children := notion.BlockChildren(block); len(children) > 0 {
				content = children
			} else if children, err := e.notion.GetBlockChildren(ctx, id); err != nil {
				e.log.Warn().Err(err).Str("block_id", id).Msg("fetch section children failed, using block itself")
			} else if len(children) > 0 {
				content = children
			}
		}
		if len(content) == 0 {
			continue
		}

		sections = append(sections, section{blockID: id, blocks: content})
	}

	return sections
}

// updateNote patches an existing child note whose content hash changed.
// A 404 drops the tracking row; a version conflict defers to the next event.
func (e *NoteEngine) updateNote(ctx context.Context, ref zotero.ItemRef, sec section, st *state.NoteSyncState, hash string) {
	noteRef := zotero.ItemRef{LibraryType: ref.LibraryType, LibraryID: ref.LibraryID, ItemKey: st.ZoteroNoteKey}

	note, err := e.zotero.GetItem(ctx, noteRef)
	if err != nil {
		if errors.Is(err, zotero.ErrNotFound) {
			e.log.Warn().Str("note", noteRef.String()).Msg("tracked note gone, dropping tracking row")
			if derr := e.db.DeleteNoteSyncState(st.NotionBlockID); derr != nil {
				e.log.Error().Err(derr).Str("block_id", st.NotionBlockID).Msg("delete note sync state failed")
			}
			return
		}
		e.log.Error().Err(err).Str("note", noteRef.String()).Msg("fetch note failed, skipping section")
		return
	}

	html := render.BlocksToHTML(sec.blocks)
	if _, err := e.zotero.PatchItem(ctx, noteRef, map[string]any{"note": html}, note.Version); err != nil {
		if _, ok := zotero.IsConflict(err); ok {
			e.log.Warn().Str("note", noteRef.String()).Msg("note version conflict, deferring to next event")
			return
		}
		if errors.Is(err, zotero.ErrNotFound) {
			e.log.Warn().Str("note", noteRef.String()).Msg("tracked note gone, dropping tracking row")
			if derr := e.db.DeleteNoteSyncState(st.NotionBlockID); derr != nil {
				e.log.Error().Err(derr).Str("block_id", st.NotionBlockID).Msg("delete note sync state failed")
			}
			return
		}
		e.log.Error().Err(err).Str("note", noteRef.String()).Msg("patch note failed")
		return
	}

	st.ContentHash = hash
	if err := e.db.UpsertNoteSyncState(st); err != nil {
		e.log.Error().Err(err).Str("block_id", st.NotionBlockID).Msg("upsert note sync state failed")
		return
	}
	e.log.Info().Str("note", noteRef.String()).Str("block_id", st.NotionBlockID).Msg("updated zotero note")
}

// createNote materializes a new section as a child note on the parent item.
func (e *NoteEngine) createNote(ctx context.Context, ref zotero.ItemRef, sec section, hash string) {
	html := render.BlocksToHTML(sec.blocks)
	if html == "" {
		return
	}

	note, err := e.zotero.CreateNote(ctx, ref, html, []zotero.Tag{{Tag: ProvenanceTag}})
	if err != nil {
		e.log.Error().Err(err).Str("parent", ref.String()).Str("block_id", sec.blockID).Msg("create note failed")
		return
	}

	err = e.db.UpsertNoteSyncState(&state.NoteSyncState{
		NotionBlockID:   sec.blockID,
		ZoteroNoteKey:   note.Key,
		ZoteroParentKey: ref.ItemKey,
		ZoteroGroupID:   ref.LibraryID,
		ContentHash:     hash,
	})
	if err != nil {
		e.log.Error().Err(err).Str("block_id", sec.blockID).Msg("upsert note sync state failed")
		return
	}
	e.log.Info().Str("note_key", note.Key).Str("block_id", sec.blockID).Msg("created zotero note")
}

// reapOrphans handles tracking rows whose source blocks disappeared. With
// deletion disabled both the Zotero note and the row stay put.
func (e *NoteEngine) reapOrphans(ctx context.Context, ref zotero.ItemRef, tracked map[string]*state.NoteSyncState) {
	for blockID, st := range tracked {
		if !e.deleteOrphans {
			e.log.Debug().Str("block_id", blockID).Msg("orphaned note kept, deletion disabled")
			continue
		}

		noteRef := zotero.ItemRef{LibraryType: ref.LibraryType, LibraryID: ref.LibraryID, ItemKey: st.ZoteroNoteKey}
		note, err := e.zotero.GetItem(ctx, noteRef)
		if err != nil {
			if errors.Is(err, zotero.ErrNotFound) {
				if derr := e.db.DeleteNoteSyncState(blockID); derr != nil {
					e.log.Error().Err(derr).Str("block_id", blockID).Msg("delete note sync state failed")
				}
				continue
			}
			e.log.Error().Err(err).Str("note", noteRef.String()).Msg("fetch orphaned note failed")
			continue
		}

		if err := e.zotero.DeleteItem(ctx, noteRef, note.Version); err != nil {
			if _, ok := zotero.IsConflict(err); ok {
				e.log.Warn().Str("note", noteRef.String()).Msg("orphan delete conflict, keeping tracking row")
				continue
			}
			if !errors.Is(err, zotero.ErrNotFound) {
				e.log.Error().Err(err).Str("note", noteRef.String()).Msg("delete orphaned note failed")
				continue
			}
		}
		if err := e.db.DeleteNoteSyncState(blockID); err != nil {
			e.log.Error().Err(err).Str("block_id", blockID).Msg("delete note sync state failed")
			continue
		}
		e.log.Info().Str("note", noteRef.String()).Str("block_id", blockID).Msg("deleted orphaned zotero note")
	}
}
