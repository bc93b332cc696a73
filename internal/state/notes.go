package state

import (
	"database/sql"
	"fmt"
	"time"
)

// GetNoteSyncState retrieves the tracking row for a Notion block, or nil.
func (db *DB) GetNoteSyncState(blockID string) (*NoteSyncState, error) {
	row := db.conn.QueryRow(`
		SELECT notion_block_id, zotero_note_key, zotero_parent_key,
		       zotero_group_id, content_hash, last_synced_at
		FROM note_sync_state
		WHERE notion_block_id = ?
	`, blockID)

	st, err := scanNoteSyncState(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan note sync state: %w", err)
	}
	return st, nil
}

// GetNoteSyncStatesForParent lists the tracking rows for every child note of
// a Zotero parent item.
func (db *DB) GetNoteSyncStatesForParent(parentKey string, groupID int64) ([]*NoteSyncState, error) {
	rows, err := db.conn.Query(`
		SELECT notion_block_id, zotero_note_key, zotero_parent_key,
		       zotero_group_id, content_hash, last_synced_at
		FROM note_sync_state
		WHERE zotero_parent_key = ? AND zotero_group_id = ?
		ORDER BY notion_block_id
	`, parentKey, groupID)
	if err != nil {
		return nil, fmt.Errorf("query note sync states: %w", err)
	}
	defer rows.Close()

	var states []*NoteSyncState
	for rows.Next() {
		st, err := scanNoteSyncState(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan note sync state: %w", err)
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// UpsertNoteSyncState creates or updates the tracking row for a block.
func (db *DB) UpsertNoteSyncState(st *NoteSyncState) error {
	_, err := db.conn.Exec(`
		INSERT INTO note_sync_state (
			notion_block_id, zotero_note_key, zotero_parent_key,
			zotero_group_id, content_hash, last_synced_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(notion_block_id) DO UPDATE SET
			zotero_note_key = excluded.zotero_note_key,
			zotero_parent_key = excluded.zotero_parent_key,
			zotero_group_id = excluded.zotero_group_id,
			content_hash = excluded.content_hash,
			last_synced_at = excluded.last_synced_at
	`, st.NotionBlockID, st.ZoteroNoteKey, st.ZoteroParentKey,
		st.ZoteroGroupID, st.ContentHash, time.Now().Unix())
	return err
}

// DeleteNoteSyncState removes the tracking row for a block.
func (db *DB) DeleteNoteSyncState(blockID string) error {
	_, err := db.conn.Exec(`DELETE FROM note_sync_state WHERE notion_block_id = ?`, blockID)
	return err
}

func scanNoteSyncState(scan func(...any) error) (*NoteSyncState, error) {
	st := &NoteSyncState{}
	var lastSynced sql.NullInt64
	err := scan(
		&st.NotionBlockID, &st.ZoteroNoteKey, &st.ZoteroParentKey,
		&st.ZoteroGroupID, &st.ContentHash, &lastSynced,
	)
	if err != nil {
		return nil, err
	}
	if lastSynced.Valid {
		st.LastSyncedAt = time.Unix(lastSynced.Int64, 0)
	}
	return st, nil
}
