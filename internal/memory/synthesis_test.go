package memory

import (
	"context"
	"strings"
	"testing"

	"travis/internal/config"
	"travis/internal/soul"
	"travis/internal/store"
)

func newTestSynthesizer(t *testing.T, engine *MockEngine) (*Synthesizer, *store.Store) {
	t.Helper()
	mem, db := newTestMemoryStore(t, engine)
	return NewSynthesizer(db, mem, config.DefaultMemoryConfig()), db
}

func blockLabels(blocks []ContextBlock) []string {
	labels := make([]string, len(blocks))
	for i, b := range blocks {
		labels[i] = b.Label
	}
	return labels
}

func TestBuildContextPriorityOrder(t *testing.T) {
	engine := wordVectorEngine(map[string][]float32{
		"the input":     {1, 0, 0, 0},
		"a past moment": {0.95, 0.05, 0, 0},
	})
	syn, db := newTestSynthesizer(t, engine)
	ctx := context.Background()

	// Populate every source
	if err := syn.StoreFact("sabrina", "Sabrina's boyfriend's name is Dan"); err != nil {
		t.Fatalf("StoreFact failed: %v", err)
	}
	syn.mem.StoreMemory(ctx, "sabrina", "a past moment", TypeChat, nil)
	if _, err := db.InsertEntry(store.JournalEntry{OwnerID: "sabrina", Content: "I noticed something", EntryType: store.EntryTypeReflection}); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}
	if err := db.PutValue("sabrina", store.KeySoulstate, soul.State{State: "calm", Tone: "warm"}); err != nil {
		t.Fatalf("PutValue failed: %v", err)
	}
	if _, err := db.InsertEntry(store.JournalEntry{OwnerID: "sabrina", Content: "today was quiet", EntryType: store.EntryTypeJournal}); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}

	blocks := syn.BuildContext(ctx, "sabrina", "the input")

	want := []string{
		LabelPermanentMemories,
		LabelRelevantMemories,
		LabelLatestReflection,
		LabelCurrentSoulstate,
		LabelLatestJournal,
	}
	got := blockLabels(blocks)
	if len(got) != len(want) {
		t.Fatalf("Expected %d blocks, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Block %d: expected %s, got %s", i, want[i], got[i])
		}
	}
	// Priority ranks ascend
	for i := 1; i < len(blocks); i++ {
		if blocks[i].PriorityRank <= blocks[i-1].PriorityRank {
			t.Errorf("Priority ranks not ascending at block %d", i)
		}
	}
}

func TestBuildContextOmitsAbsentSources(t *testing.T) {
	syn, _ := newTestSynthesizer(t, &MockEngine{})

	if err := syn.StoreFact("sabrina", "Sabrina's cat's name is Mochi"); err != nil {
		t.Fatalf("StoreFact failed: %v", err)
	}

	blocks := syn.BuildContext(context.Background(), "sabrina", "hello")

	// Only facts present; relative order must hold regardless of gaps
	got := blockLabels(blocks)
	if len(got) != 1 || got[0] != LabelPermanentMemories {
		t.Errorf("Expected only permanent memories block, got %v", got)
	}
}

func TestBuildContextSurvivesRecallFailure(t *testing.T) {
	engine := &MockEngine{
		EmbedFunc: func(ctx context.Context, text string) ([]float32, error) {
			return nil, context.DeadlineExceeded
		},
	}
	syn, db := newTestSynthesizer(t, engine)

	if err := db.PutValue("sabrina", store.KeySoulstate, soul.State{State: "tired"}); err != nil {
		t.Fatalf("PutValue failed: %v", err)
	}

	blocks := syn.BuildContext(context.Background(), "sabrina", "anything")
	got := blockLabels(blocks)
	if len(got) != 1 || got[0] != LabelCurrentSoulstate {
		t.Errorf("Expected soulstate block despite recall failure, got %v", got)
	}
}

func TestBuildContextTierTags(t *testing.T) {
	// Unit-length vectors so similarity to the query equals the first
	// component: 0.999 -> HIGH, 0.80 -> MED, 0.77 -> REF.
	engine := wordVectorEngine(map[string][]float32{
		"query":      {1, 0, 0, 0},
		"very close": {0.999, 0.0447, 0, 0},
		"close":      {0.8, 0.6, 0, 0},
		"loose":      {0.77, 0.638, 0, 0},
	})
	syn, _ := newTestSynthesizer(t, engine)
	ctx := context.Background()

	syn.mem.StoreMemory(ctx, "sabrina", "loose", TypeChat, nil)
	syn.mem.StoreMemory(ctx, "sabrina", "very close", TypeChat, nil)
	syn.mem.StoreMemory(ctx, "sabrina", "close", TypeChat, nil)

	blocks := syn.BuildContext(ctx, "sabrina", "query")
	if len(blocks) != 1 {
		t.Fatalf("Expected one recall block, got %d", len(blocks))
	}

	lines := strings.Split(blocks[0].Body, "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 recall lines, got %v", lines)
	}
	if !strings.HasPrefix(lines[0], "[HIGH] very close") {
		t.Errorf("Expected HIGH tier first, got %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "[MED] close") {
		t.Errorf("Expected MED tier second, got %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "[REF] loose") {
		t.Errorf("Expected REF tier last, got %q", lines[2])
	}
}

func TestBuildContextTruncatesExcerpts(t *testing.T) {
	syn, db := newTestSynthesizer(t, &MockEngine{})

	long := strings.Repeat("r", 600)
	if _, err := db.InsertEntry(store.JournalEntry{OwnerID: "sabrina", Content: long, EntryType: store.EntryTypeReflection}); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}

	blocks := syn.BuildContext(context.Background(), "sabrina", "hi")
	var reflection *ContextBlock
	for i := range blocks {
		if blocks[i].Label == LabelLatestReflection {
			reflection = &blocks[i]
		}
	}
	if reflection == nil {
		t.Fatal("Expected reflection block")
	}
	if len(reflection.Body) != 503 || !strings.HasSuffix(reflection.Body, "...") {
		t.Errorf("Expected 500-char excerpt with ellipsis, got %d chars", len(reflection.Body))
	}
}

func TestStoreFactIdempotent(t *testing.T) {
	syn, db := newTestSynthesizer(t, &MockEngine{})

	for i := 0; i < 3; i++ {
		if err := syn.StoreFact("sabrina", "Sabrina's boyfriend's name is Dan"); err != nil {
			t.Fatalf("StoreFact failed: %v", err)
		}
	}

	var facts []string
	if _, err := db.GetValue("sabrina", store.KeyPermanentMemories, &facts); err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	count := 0
	for _, f := range facts {
		if f == "Sabrina's boyfriend's name is Dan" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("Expected exactly one occurrence, got %d", count)
	}
}

func TestStoreFactOrderPreserved(t *testing.T) {
	syn, db := newTestSynthesizer(t, &MockEngine{})

	facts := []string{"first fact", "second fact", "third fact"}
	for _, f := range facts {
		if err := syn.StoreFact("sabrina", f); err != nil {
			t.Fatalf("StoreFact failed: %v", err)
		}
	}

	var got []string
	if _, err := db.GetValue("sabrina", store.KeyPermanentMemories, &got); err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	for i, want := range facts {
		if got[i] != want {
			t.Errorf("Fact %d: expected %q, got %q", i, want, got[i])
		}
	}
}
