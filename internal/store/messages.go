package store

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"travis/internal/logging"
)

// Monotonic entropy keeps ULIDs strictly increasing even when several
// messages land in the same millisecond.
var messageEntropy = &ulid.LockedMonotonicReader{MonotonicReader: ulid.Monotonic(rand.Reader, 0)}

// Message is one entry in the append-only chat transcript.
type Message struct {
	ID        string
	OwnerID   string
	Role      string // user | assistant
	Content   string
	Emotion   string
	CreatedAt time.Time
}

// InsertMessage appends a message to the transcript. An empty ID gets a
// fresh ULID, which keeps insertion order sortable by id.
func (s *Store) InsertMessage(msg Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" {
		id, err := ulid.New(ulid.Timestamp(time.Now()), messageEntropy)
		if err != nil {
			return "", fmt.Errorf("failed to generate message id: %w", err)
		}
		msg.ID = id.String()
	}

	_, err := s.db.Exec(
		"INSERT INTO messages (id, owner_id, role, content, emotion) VALUES (?, ?, ?, ?, ?)",
		msg.ID, msg.OwnerID, msg.Role, msg.Content, msg.Emotion,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}
	logging.StoreDebug("Appended %s message %s for owner %s", msg.Role, msg.ID, msg.OwnerID)
	return msg.ID, nil
}

// ListMessages returns the transcript for an owner in chronological order.
// limit <= 0 returns everything.
func (s *Store) ListMessages(ownerID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, owner_id, role, content, COALESCE(emotion, ''), created_at FROM messages WHERE owner_id = ? ORDER BY id ASC"
	args := []interface{}{ownerID}
	if limit > 0 {
		// Newest N, returned oldest-first
		query = `SELECT id, owner_id, role, content, COALESCE(emotion, ''), created_at FROM (
			SELECT id, owner_id, role, content, emotion, created_at FROM messages WHERE owner_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Role, &m.Content, &m.Emotion, &m.CreatedAt); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
