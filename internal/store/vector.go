package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"travis/internal/embedding"
	"travis/internal/logging"
)

// MemoryRecord is one append-only embedding entry. Records are never
// updated after insertion.
type MemoryRecord struct {
	ID          string
	OwnerID     string
	Content     string
	Embedding   []float32
	MessageType string
	Tags        []string
	CreatedAt   time.Time
}

// SimilarityMatch is a scored search result.
type SimilarityMatch struct {
	ID         string
	Content    string
	Similarity float64
}

// InsertMemory stores a memory record with its embedding.
func (s *Store) InsertMemory(rec MemoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	embJSON, err := json.Marshal(rec.Embedding)
	if err != nil {
		return fmt.Errorf("failed to serialize embedding: %w", err)
	}
	tagsJSON, _ := json.Marshal(rec.Tags)

	_, err = s.db.Exec(
		"INSERT INTO memories (id, owner_id, content, embedding, message_type, tags) VALUES (?, ?, ?, ?, ?, ?)",
		rec.ID, rec.OwnerID, rec.Content, string(embJSON), rec.MessageType, string(tagsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert memory: %w", err)
	}
	logging.StoreDebug("Inserted memory %s (owner=%s, type=%s, dims=%d)", rec.ID, rec.OwnerID, rec.MessageType, len(rec.Embedding))
	return nil
}

// SearchSimilar runs database-side cosine similarity via sqlite-vec.
// Results are strictly above the threshold, descending by similarity,
// truncated to limit. Errors when the extension is unavailable so callers
// can fall back to ScanSimilar.
func (s *Store) SearchSimilar(ownerID string, query []float32, threshold float64, limit int) ([]SimilarityMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.vectorExt {
		return nil, fmt.Errorf("sqlite-vec extension not available")
	}
	if limit <= 0 {
		limit = 10
	}

	queryJSON, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize query vector: %w", err)
	}

	// vec_distance_cosine returns cosine distance; similarity = 1 - distance.
	rows, err := s.db.Query(`
		SELECT id, content, sim FROM (
			SELECT id, content, 1.0 - vec_distance_cosine(embedding, ?) AS sim
			FROM memories
			WHERE owner_id = ? AND embedding IS NOT NULL
		)
		WHERE sim > ?
		ORDER BY sim DESC
		LIMIT ?`,
		string(queryJSON), ownerID, threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("vec similarity query failed: %w", err)
	}
	defer rows.Close()

	return scanMatches(rows)
}

// ScanSimilar is the client-side fallback: fetch up to scanLimit raw
// records for the owner and compute cosine similarity locally, with
// identical filter/sort/truncate behavior to SearchSimilar. The scan limit
// bounds the table read, not correctness.
func (s *Store) ScanSimilar(ownerID string, query []float32, threshold float64, limit, scanLimit int) ([]SimilarityMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	if scanLimit <= 0 {
		scanLimit = 50
	}

	rows, err := s.db.Query(
		"SELECT id, content, embedding FROM memories WHERE owner_id = ? AND embedding IS NOT NULL ORDER BY created_at DESC LIMIT ?",
		ownerID, scanLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("memory scan failed: %w", err)
	}
	defer rows.Close()

	var matches []SimilarityMatch
	for rows.Next() {
		var id, content, embJSON string
		if err := rows.Scan(&id, &content, &embJSON); err != nil {
			continue
		}

		var vec []float32
		if err := json.Unmarshal([]byte(embJSON), &vec); err != nil {
			logging.StoreDebug("Skipping memory %s: bad embedding: %v", id, err)
			continue
		}

		sim, err := embedding.CosineSimilarity(query, vec)
		if err != nil {
			logging.StoreDebug("Skipping memory %s: %v", id, err)
			continue
		}
		if sim > threshold {
			matches = append(matches, SimilarityMatch{ID: id, Content: content, Similarity: sim})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// ListMemories returns the most recent memories for an owner, newest first.
func (s *Store) ListMemories(ownerID string, limit int) ([]MemoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		"SELECT id, owner_id, content, embedding, message_type, tags, created_at FROM memories WHERE owner_id = ? ORDER BY created_at DESC LIMIT ?",
		ownerID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []MemoryRecord
	for rows.Next() {
		var rec MemoryRecord
		var embJSON, tagsJSON sql.NullString
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.Content, &embJSON, &rec.MessageType, &tagsJSON, &rec.CreatedAt); err != nil {
			continue
		}
		if embJSON.Valid {
			_ = json.Unmarshal([]byte(embJSON.String), &rec.Embedding)
		}
		if tagsJSON.Valid {
			_ = json.Unmarshal([]byte(tagsJSON.String), &rec.Tags)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanMatches(rows *sql.Rows) ([]SimilarityMatch, error) {
	var matches []SimilarityMatch
	for rows.Next() {
		var m SimilarityMatch
		if err := rows.Scan(&m.ID, &m.Content, &m.Similarity); err != nil {
			continue
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
