package memory

import (
	"context"
	"fmt"
	"strings"

	"travis/internal/config"
	"travis/internal/logging"
	"travis/internal/soul"
	"travis/internal/store"
)

// Context block labels, in priority order.
const (
	LabelPermanentMemories = "PERMANENT MEMORIES"
	LabelRelevantMemories  = "RELEVANT MEMORIES"
	LabelLatestReflection  = "LATEST REFLECTION"
	LabelCurrentSoulstate  = "CURRENT SOULSTATE"
	LabelLatestJournal     = "LATEST JOURNAL ENTRY"
)

// Similarity tier boundaries for recalled memories.
const (
	tierHighAbove = 0.85
	tierMedAbove  = 0.78
)

// ContextBlock is one labeled section of the prompt context. Blocks are
// ephemeral: built fresh per message send, never persisted.
type ContextBlock struct {
	Label        string
	Body         string
	PriorityRank int
}

// Synthesizer assembles the lived-memory context injected into the
// generation prompt.
type Synthesizer struct {
	db  *store.Store
	mem *Store
	cfg config.MemoryConfig
}

// NewSynthesizer creates a synthesizer over the database and memory store.
func NewSynthesizer(db *store.Store, mem *Store, cfg config.MemoryConfig) *Synthesizer {
	return &Synthesizer{db: db, mem: mem, cfg: cfg}
}

// BuildContext assembles the prioritized context blocks for one input
// message. It never fails: every source is independently recovered, so a
// broken source drops its block without blocking the others.
func (s *Synthesizer) BuildContext(ctx context.Context, ownerID, input string) []ContextBlock {
	timer := logging.StartTimer(logging.CategoryMemory, "BuildContext")
	defer timer.Stop()

	var blocks []ContextBlock
	rank := 0
	add := func(label, body string) {
		if body == "" {
			return
		}
		rank++
		blocks = append(blocks, ContextBlock{Label: label, Body: body, PriorityRank: rank})
	}

	// 1. Persistent facts always lead when present.
	add(LabelPermanentMemories, s.permanentFactsBody(ownerID))

	// 2. Embedding recall, bucketed into similarity tiers.
	add(LabelRelevantMemories, s.recalledMemoriesBody(ctx, ownerID, input))

	// 3. Most recent reflection.
	add(LabelLatestReflection, s.latestEntryBody(ownerID, store.EntryTypeReflection))

	// 4. Soulstate, rendered as a first-person sentence.
	add(LabelCurrentSoulstate, s.soulstateBody(ownerID))

	// 5. Most recent journal entry.
	add(LabelLatestJournal, s.latestEntryBody(ownerID, store.EntryTypeJournal))

	logging.MemoryDebug("built context: %d blocks for %s", len(blocks), ownerID)
	return blocks
}

func (s *Synthesizer) permanentFactsBody(ownerID string) string {
	var facts []string
	found, err := s.db.GetValue(ownerID, store.KeyPermanentMemories, &facts)
	if err != nil {
		logging.Get(logging.CategoryMemory).Warn("permanent facts read failed: %v", err)
		return ""
	}
	if !found || len(facts) == 0 {
		return ""
	}
	return strings.Join(facts, "\n")
}

func (s *Synthesizer) recalledMemoriesBody(ctx context.Context, ownerID, input string) string {
	recalls := s.mem.RetrieveRelevant(ctx, ownerID, input, s.cfg.RecallLimit, s.cfg.SimilarityThreshold)
	if len(recalls) == 0 {
		return ""
	}

	// Re-bucket into tiers, concatenated HIGH then MED then REF. Recalls
	// arrive sorted descending so order within tiers is preserved.
	var high, med, ref []string
	for _, r := range recalls {
		line := fmt.Sprintf("[%s] %s", tierFor(r.Similarity), r.Content)
		switch {
		case r.Similarity > tierHighAbove:
			high = append(high, line)
		case r.Similarity > tierMedAbove:
			med = append(med, line)
		default:
			ref = append(ref, line)
		}
	}

	var lines []string
	lines = append(lines, high...)
	lines = append(lines, med...)
	lines = append(lines, ref...)
	return strings.Join(lines, "\n")
}

func tierFor(similarity float64) string {
	switch {
	case similarity > tierHighAbove:
		return "HIGH"
	case similarity > tierMedAbove:
		return "MED"
	default:
		return "REF"
	}
}

func (s *Synthesizer) latestEntryBody(ownerID, entryType string) string {
	entry, err := s.db.LatestByType(ownerID, entryType)
	if err != nil {
		logging.Get(logging.CategoryMemory).Warn("%s read failed: %v", entryType, err)
		return ""
	}
	if entry == nil {
		return ""
	}
	return truncate(entry.Content, s.excerptLimit())
}

func (s *Synthesizer) soulstateBody(ownerID string) string {
	var state soul.State
	found, err := s.db.GetValue(ownerID, store.KeySoulstate, &state)
	if err != nil {
		logging.Get(logging.CategoryMemory).Warn("soulstate read failed: %v", err)
		return ""
	}
	if !found {
		return ""
	}
	return state.Describe()
}

func (s *Synthesizer) excerptLimit() int {
	if s.cfg.ExcerptLimit > 0 {
		return s.cfg.ExcerptLimit
	}
	return 500
}

// StoreFact appends a fact to the permanent memory list unless it is
// already present. Repeat calls with the same fact are idempotent.
func (s *Synthesizer) StoreFact(ownerID, fact string) error {
	fact = strings.TrimSpace(fact)
	if fact == "" {
		return nil
	}

	var facts []string
	if _, err := s.db.GetValue(ownerID, store.KeyPermanentMemories, &facts); err != nil {
		// Malformed stored state is treated as absent
		logging.Get(logging.CategoryMemory).Warn("permanent facts unreadable, resetting: %v", err)
		facts = nil
	}

	for _, existing := range facts {
		if existing == fact {
			return nil
		}
	}

	facts = append(facts, fact)
	if err := s.db.PutValue(ownerID, store.KeyPermanentMemories, facts); err != nil {
		return fmt.Errorf("failed to store fact: %w", err)
	}
	logging.Memory("stored permanent fact for %s: %s", ownerID, fact)
	return nil
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
