package state

import (
	"database/sql"
	"fmt"
)

// CollectionEntry is one cached (key, name) pair for a group.
type CollectionEntry struct {
	Key  string
	Name string
}

// GetCollectionKey resolves a collection name to its key within a group.
// Returns "" when the name is not cached.
func (db *DB) GetCollectionKey(groupID int64, name string) (string, error) {
	var key string
	err := db.conn.QueryRow(`
		SELECT collection_key FROM collection_map
		WHERE group_id = ? AND collection_name = ?
	`, groupID, name).Scan(&key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query collection key: %w", err)
	}
	return key, nil
}

// GetCollectionName resolves a collection key to its name within a group.
// Returns "" when the key is not cached.
func (db *DB) GetCollectionName(groupID int64, key string) (string, error) {
	var name string
	err := db.conn.QueryRow(`
		SELECT collection_name FROM collection_map
		WHERE group_id = ? AND collection_key = ?
	`, groupID, key).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query collection name: %w", err)
	}
	return name, nil
}

// RefreshCollections replaces the entire cached mapping for a group in one
// transaction.
func (db *DB) RefreshCollections(groupID int64, entries []CollectionEntry) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin refresh: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM collection_map WHERE group_id = ?`, groupID); err != nil {
		return fmt.Errorf("clear collections: %w", err)
	}

	for _, entry := range entries {
		_, err := tx.Exec(`
			INSERT INTO collection_map (group_id, collection_key, collection_name)
			VALUES (?, ?, ?)
		`, groupID, entry.Key, entry.Name)
		if err != nil {
			return fmt.Errorf("insert collection %q: %w", entry.Key, err)
		}
	}

	return tx.Commit()
}
