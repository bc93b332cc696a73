package state

import (
	"database/sql"
	"fmt"
	"time"
)

// RecordEvent inserts a webhook event into the log. It returns false when
// the event id is already present; the insert is atomic against concurrent
// callers, so exactly one delivery of a given id observes true.
func (db *DB) RecordEvent(eventID, pageID string) (bool, error) {
	res, err := db.conn.Exec(`
		INSERT OR IGNORE INTO webhook_events (event_id, notion_page_id, received_at, processed)
		VALUES (?, ?, ?, 0)
	`, eventID, pageID, time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("record event: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record event: %w", err)
	}
	return n > 0, nil
}

// IsEventProcessed reports whether an event has completed its sync work.
func (db *DB) IsEventProcessed(eventID string) (bool, error) {
	var processed bool
	err := db.conn.QueryRow(`
		SELECT processed FROM webhook_events WHERE event_id = ?
	`, eventID).Scan(&processed)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query event: %w", err)
	}
	return processed, nil
}

// MarkEventProcessed records that an event's sync work completed.
func (db *DB) MarkEventProcessed(eventID string) error {
	_, err := db.conn.Exec(`UPDATE webhook_events SET processed = 1 WHERE event_id = ?`, eventID)
	return err
}
