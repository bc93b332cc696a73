// Package state provides SQLite-based persistence for sync baselines, the
// webhook event log, note tracking and the collection name↔key cache.
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/noterosync/notero/internal/notion"
)

// DB wraps the SQLite database connection.
type DB struct {
	conn *sql.DB
	path string
}

// SyncState is the per-page sync baseline: the post-sync Notion values
// observed at the last successful merge plus the remote version they were
// merged against.
type SyncState struct {
	NotionPageID      string
	ZoteroItemKey     string
	ZoteroGroupID     int64
	LastZoteroVersion int
	PropertySnapshot  notion.ValueMap
	LastSyncedAt      time.Time
	Deleted           bool
}

// NoteSyncState tracks one Notion block materialized as a Zotero child note.
type NoteSyncState struct {
	NotionBlockID   string
	ZoteroNoteKey   string
	ZoteroParentKey string
	ZoteroGroupID   int64
	ContentHash     string
	LastSyncedAt    time.Time
}

// Open opens or creates the database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db := &DB{
		conn: conn,
		path: path,
	}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the database schema if it doesn't exist.
func (db *DB) initSchema() error {
	schema := `
	-- Per-page sync baseline
	CREATE TABLE IF NOT EXISTS sync_state (
		notion_page_id TEXT PRIMARY KEY,
		zotero_item_key TEXT NOT NULL,
		zotero_group_id INTEGER NOT NULL,
		last_zotero_version INTEGER NOT NULL DEFAULT 0,
		property_snapshot TEXT NOT NULL DEFAULT '{}',
		last_synced_at INTEGER,
		deleted INTEGER NOT NULL DEFAULT 0
	);

	-- Webhook event log (idempotency barrier)
	CREATE TABLE IF NOT EXISTS webhook_events (
		event_id TEXT PRIMARY KEY,
		notion_page_id TEXT NOT NULL,
		received_at INTEGER NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0
	);

	-- Notion block → Zotero child note tracking
	CREATE TABLE IF NOT EXISTS note_sync_state (
		notion_block_id TEXT PRIMARY KEY,
		zotero_note_key TEXT NOT NULL,
		zotero_parent_key TEXT NOT NULL,
		zotero_group_id INTEGER NOT NULL,
		content_hash TEXT NOT NULL,
		last_synced_at INTEGER
	);

	-- Collection name↔key cache
	CREATE TABLE IF NOT EXISTS collection_map (
		group_id INTEGER NOT NULL,
		collection_key TEXT NOT NULL,
		collection_name TEXT NOT NULL,
		PRIMARY KEY (group_id, collection_key)
	);

	-- Indexes
	CREATE INDEX IF NOT EXISTS idx_note_sync_parent
		ON note_sync_state(zotero_parent_key, zotero_group_id);
	CREATE INDEX IF NOT EXISTS idx_collection_map_name
		ON collection_map(group_id, collection_name);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// GetSyncState retrieves the sync state for a Notion page, or nil if the
// page has never been synced.
func (db *DB) GetSyncState(pageID string) (*SyncState, error) {
	row := db.conn.QueryRow(`
		SELECT notion_page_id, zotero_item_key, zotero_group_id,
		       last_zotero_version, property_snapshot, last_synced_at, deleted
		FROM sync_state
		WHERE notion_page_id = ?
	`, pageID)

	st := &SyncState{}
	var snapshot string
	var lastSynced sql.NullInt64

	err := row.Scan(
		&st.NotionPageID, &st.ZoteroItemKey, &st.ZoteroGroupID,
		&st.LastZoteroVersion, &snapshot, &lastSynced, &st.Deleted,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan sync state: %w", err)
	}

	if err := json.Unmarshal([]byte(snapshot), &st.PropertySnapshot); err != nil {
		return nil, fmt.Errorf("decode property snapshot: %w", err)
	}
	if lastSynced.Valid {
		st.LastSyncedAt = time.Unix(lastSynced.Int64, 0)
	}

	return st, nil
}

// UpsertSyncState creates or updates the sync state for a page, stamping
// last_synced_at and clearing the deleted flag.
func (db *DB) UpsertSyncState(pageID, itemKey string, groupID int64, version int, snapshot notion.ValueMap) error {
	if snapshot == nil {
		snapshot = notion.ValueMap{}
	}
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode property snapshot: %w", err)
	}

	_, err = db.conn.Exec(`
		INSERT INTO sync_state (
			notion_page_id, zotero_item_key, zotero_group_id,
			last_zotero_version, property_snapshot, last_synced_at, deleted
		) VALUES (?, ?, ?, ?, ?, ?, 0)
		ON CONFLICT(notion_page_id) DO UPDATE SET
			zotero_item_key = excluded.zotero_item_key,
			zotero_group_id = excluded.zotero_group_id,
			last_zotero_version = excluded.last_zotero_version,
			property_snapshot = excluded.property_snapshot,
			last_synced_at = excluded.last_synced_at,
			deleted = 0
	`, pageID, itemKey, groupID, version, string(encoded), time.Now().Unix())
	return err
}

// MarkDeleted soft-deletes the sync state for a page. The flag is monotone:
// once set, the property engine stops writing to the remote for this page.
func (db *DB) MarkDeleted(pageID string) error {
	_, err := db.conn.Exec(`UPDATE sync_state SET deleted = 1 WHERE notion_page_id = ?`, pageID)
	return err
}
