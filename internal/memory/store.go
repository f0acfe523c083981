// Package memory implements Travis's semantic memory: embedding-backed
// recall, lived-memory context synthesis and permanent-fact bookkeeping.
package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"travis/internal/config"
	"travis/internal/embedding"
	"travis/internal/logging"
	"travis/internal/store"
)

// Memory types recorded on stored embeddings.
const (
	TypeChat       = "chat"
	TypePersistent = "persistent"
)

// Recall is one retrieved memory with its similarity score.
type Recall struct {
	Content    string
	Similarity float64
}

// Store is the embedding-backed memory store. All operations fail soft:
// an unavailable embedding backend degrades recall, it never blocks the
// message pipeline.
type Store struct {
	db     *store.Store
	engine embedding.Engine
	cfg    config.MemoryConfig

	// sleep is swapped in tests to avoid real batch pauses
	sleep func(ctx context.Context, d time.Duration)
}

// NewStore creates a memory store over the given database and engine.
func NewStore(db *store.Store, engine embedding.Engine, cfg config.MemoryConfig) *Store {
	return &Store{
		db:     db,
		engine: engine,
		cfg:    cfg,
		sleep:  sleepCtx,
	}
}

// GenerateEmbedding returns the embedding for text, or nil when the text
// is empty or the backend call fails. Callers treat nil as "skip".
func (s *Store) GenerateEmbedding(ctx context.Context, text string) []float32 {
	if text == "" {
		return nil
	}
	if s.engine == nil {
		logging.EmbeddingDebug("no embedding engine configured; skipping")
		return nil
	}

	vec, err := s.engine.Embed(ctx, text)
	if err != nil {
		logging.Get(logging.CategoryEmbedding).Warn("embedding generation failed: %v", err)
		return nil
	}
	return vec
}

// StoreMemory embeds and persists one memory. When the embedding comes
// back nil the call silently no-ops: partial memory loss is acceptable,
// blocking generation is not.
func (s *Store) StoreMemory(ctx context.Context, ownerID, content, messageType string, tags []string) {
	s.storeOne(ctx, ownerID, content, messageType, tags)
}

func (s *Store) storeOne(ctx context.Context, ownerID, content, messageType string, tags []string) bool {
	vec := s.GenerateEmbedding(ctx, content)
	if vec == nil {
		return false
	}

	rec := store.MemoryRecord{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Content:     content,
		Embedding:   vec,
		MessageType: messageType,
		Tags:        tags,
	}
	if err := s.db.InsertMemory(rec); err != nil {
		logging.Get(logging.CategoryMemory).Warn("memory insert failed: %v", err)
		return false
	}
	logging.MemoryDebug("stored %s memory for %s (%d chars)", messageType, ownerID, len(content))
	return true
}

// RetrieveRelevant returns memories similar to the query, descending by
// cosine similarity, strictly above the threshold, truncated to limit.
// The database-side path is tried first; on error the client-side scan
// produces identical rankings. Any failure yields an empty result.
func (s *Store) RetrieveRelevant(ctx context.Context, ownerID, query string, limit int, threshold float64) []Recall {
	if limit <= 0 {
		limit = s.cfg.RecallLimit
	}
	if threshold <= 0 {
		threshold = s.cfg.SimilarityThreshold
	}

	vec := s.GenerateEmbedding(ctx, query)
	if vec == nil {
		return nil
	}

	matches, err := s.db.SearchSimilar(ownerID, vec, threshold, limit)
	if err != nil {
		logging.MemoryDebug("database-side similarity unavailable (%v); using client-side scan", err)
		matches, err = s.db.ScanSimilar(ownerID, vec, threshold, limit, s.cfg.FallbackScanLimit)
		if err != nil {
			logging.Get(logging.CategoryMemory).Warn("similarity scan failed: %v", err)
			return nil
		}
	}

	recalls := make([]Recall, len(matches))
	for i, m := range matches {
		recalls[i] = Recall{Content: m.Content, Similarity: m.Similarity}
	}
	return recalls
}

// ProcessBatch stores embeddings for a batch of messages. Texts shorter
// than the minimum are skipped, work proceeds in fixed-size chunks with a
// pause between chunks to respect embedding rate limits, and individual
// failures never abort the batch. Returns the number of messages stored.
func (s *Store) ProcessBatch(ctx context.Context, ownerID string, messages []string) int {
	minChars := s.cfg.BatchMinTextChars
	if minChars <= 0 {
		minChars = 10
	}
	chunkSize := s.cfg.BatchChunkSize
	if chunkSize <= 0 {
		chunkSize = 5
	}
	pause, err := time.ParseDuration(s.cfg.BatchChunkPause)
	if err != nil || pause < 0 {
		pause = time.Second
	}

	var eligible []string
	for _, msg := range messages {
		if len(msg) < minChars {
			logging.MemoryDebug("batch: skipping short text (%d chars)", len(msg))
			continue
		}
		eligible = append(eligible, msg)
	}

	stored := 0
	for i := 0; i < len(eligible); i += chunkSize {
		if ctx.Err() != nil {
			logging.Memory("batch cancelled after %d messages", stored)
			return stored
		}
		if i > 0 {
			s.sleep(ctx, pause)
		}

		end := i + chunkSize
		if end > len(eligible) {
			end = len(eligible)
		}
		for _, msg := range eligible[i:end] {
			if s.storeOne(ctx, ownerID, msg, TypeChat, nil) {
				stored++
			}
		}
	}

	logging.Memory("batch complete: %d/%d messages stored for %s", stored, len(messages), ownerID)
	return stored
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
