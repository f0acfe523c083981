package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// Well-known key-value store keys.
const (
	KeyPermanentMemories  = "permanent_memories"
	KeySoulstate          = "soulstate"
	KeyIntentions         = "intentions"
	KeyEvolutionTimestamp = "evolution_timestamp"
)

// GetValue reads a JSON value by key. The second return is false when no
// value exists for the key.
func (s *Store) GetValue(ownerID, key string, out interface{}) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var raw string
	err := s.db.QueryRow(
		"SELECT value FROM keyvalue WHERE owner_id = ? AND key = ?",
		ownerID, key,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read key %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("malformed value for key %s: %w", key, err)
	}
	return true, nil
}

// PutValue writes a JSON value under a key, replacing any existing value.
func (s *Store) PutValue(ownerID, key string, value interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize value for key %s: %w", key, err)
	}

	_, err = s.db.Exec(
		"INSERT INTO keyvalue (owner_id, key, value, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP) ON CONFLICT(owner_id, key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP",
		ownerID, key, string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}
