package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Journal entry types.
const (
	EntryTypeJournal    = "journal"
	EntryTypeReflection = "reflection"
	EntryTypeSummary    = "summary"
)

// JournalEntry is a persisted journal item: a free-form entry, a generated
// reflection, or a soulcycle summary, distinguished by EntryType.
type JournalEntry struct {
	ID        int64
	OwnerID   string
	Content   string
	EntryType string
	Tags      []string
	Metadata  map[string]interface{}
	CreatedAt time.Time
}

// InsertEntry persists a journal entry and returns it with its assigned id.
func (s *Store) InsertEntry(entry JournalEntry) (JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.EntryType == "" {
		entry.EntryType = EntryTypeJournal
	}
	tagsJSON, _ := json.Marshal(entry.Tags)
	metaJSON, _ := json.Marshal(entry.Metadata)

	res, err := s.db.Exec(
		"INSERT INTO journal_entries (owner_id, content, entry_type, tags, metadata) VALUES (?, ?, ?, ?, ?)",
		entry.OwnerID, entry.Content, entry.EntryType, string(tagsJSON), string(metaJSON),
	)
	if err != nil {
		return entry, fmt.Errorf("failed to insert journal entry: %w", err)
	}
	entry.ID, _ = res.LastInsertId()
	return entry, nil
}

// LatestByType returns the most recent entry of the given type, or nil.
func (s *Store) LatestByType(ownerID, entryType string) (*JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		"SELECT id, owner_id, content, entry_type, tags, metadata, created_at FROM journal_entries WHERE owner_id = ? AND entry_type = ? ORDER BY id DESC LIMIT 1",
		ownerID, entryType,
	)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ListByType returns entries of the given type, newest first.
func (s *Store) ListByType(ownerID, entryType string, limit int) ([]JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		"SELECT id, owner_id, content, entry_type, tags, metadata, created_at FROM journal_entries WHERE owner_id = ? AND entry_type = ? ORDER BY id DESC LIMIT ?",
		ownerID, entryType, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*JournalEntry, error) {
	var entry JournalEntry
	var tagsJSON, metaJSON sql.NullString
	if err := row.Scan(&entry.ID, &entry.OwnerID, &entry.Content, &entry.EntryType, &tagsJSON, &metaJSON, &entry.CreatedAt); err != nil {
		return nil, err
	}
	if tagsJSON.Valid {
		_ = json.Unmarshal([]byte(tagsJSON.String), &entry.Tags)
	}
	if metaJSON.Valid {
		_ = json.Unmarshal([]byte(metaJSON.String), &entry.Metadata)
	}
	return &entry, nil
}
