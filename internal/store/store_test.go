package store

import (
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", 4)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesSchema(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	for _, table := range []string{"memories", "messages", "journal_entries", "keyvalue"} {
		if _, ok := stats[table]; !ok {
			t.Errorf("Expected stats entry for table %s", table)
		}
	}
}

func TestKeyValueRoundTrip(t *testing.T) {
	s := newTestStore(t)

	type soulstate struct {
		State string `json:"state"`
		Tone  string `json:"tone"`
	}

	if err := s.PutValue("sabrina", KeySoulstate, soulstate{State: "calm", Tone: "warm"}); err != nil {
		t.Fatalf("PutValue failed: %v", err)
	}

	var got soulstate
	found, err := s.GetValue("sabrina", KeySoulstate, &got)
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if !found {
		t.Fatal("Expected value to be found")
	}
	if got.State != "calm" || got.Tone != "warm" {
		t.Errorf("Unexpected value: %+v", got)
	}
}

func TestKeyValueMissing(t *testing.T) {
	s := newTestStore(t)

	var out map[string]interface{}
	found, err := s.GetValue("sabrina", "nothing_here", &out)
	if err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if found {
		t.Error("Expected missing key to report not found")
	}
}

func TestKeyValueReplace(t *testing.T) {
	s := newTestStore(t)

	if err := s.PutValue("sabrina", KeyIntentions, []string{"a"}); err != nil {
		t.Fatalf("PutValue failed: %v", err)
	}
	if err := s.PutValue("sabrina", KeyIntentions, []string{"a", "b"}); err != nil {
		t.Fatalf("PutValue (replace) failed: %v", err)
	}

	var got []string
	if _, err := s.GetValue("sabrina", KeyIntentions, &got); err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected replaced value with 2 items, got %v", got)
	}
}

func TestMessagesChronologicalOrder(t *testing.T) {
	s := newTestStore(t)

	for _, content := range []string{"first", "second", "third"} {
		if _, err := s.InsertMessage(Message{OwnerID: "sabrina", Role: "user", Content: content}); err != nil {
			t.Fatalf("InsertMessage failed: %v", err)
		}
	}

	msgs, err := s.ListMessages("sabrina", 0)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "first" || msgs[2].Content != "third" {
		t.Errorf("Messages out of order: %v, %v", msgs[0].Content, msgs[2].Content)
	}
	if msgs[0].ID == "" {
		t.Error("Expected generated message id")
	}
}

func TestMessagesLimitReturnsNewest(t *testing.T) {
	s := newTestStore(t)

	for _, content := range []string{"a", "b", "c", "d"} {
		if _, err := s.InsertMessage(Message{OwnerID: "sabrina", Role: "user", Content: content}); err != nil {
			t.Fatalf("InsertMessage failed: %v", err)
		}
	}

	msgs, err := s.ListMessages("sabrina", 2)
	if err != nil {
		t.Fatalf("ListMessages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}
	// Newest two, oldest-first
	if msgs[0].Content != "c" || msgs[1].Content != "d" {
		t.Errorf("Expected [c d], got [%s %s]", msgs[0].Content, msgs[1].Content)
	}
}

func TestJournalLatestByType(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.InsertEntry(JournalEntry{OwnerID: "sabrina", Content: "old reflection", EntryType: EntryTypeReflection}); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}
	if _, err := s.InsertEntry(JournalEntry{OwnerID: "sabrina", Content: "new reflection", EntryType: EntryTypeReflection}); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}
	if _, err := s.InsertEntry(JournalEntry{OwnerID: "sabrina", Content: "a journal day", EntryType: EntryTypeJournal}); err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}

	latest, err := s.LatestByType("sabrina", EntryTypeReflection)
	if err != nil {
		t.Fatalf("LatestByType failed: %v", err)
	}
	if latest == nil {
		t.Fatal("Expected a reflection entry")
	}
	if latest.Content != "new reflection" {
		t.Errorf("Expected newest reflection, got %q", latest.Content)
	}

	none, err := s.LatestByType("sabrina", EntryTypeSummary)
	if err != nil {
		t.Fatalf("LatestByType failed: %v", err)
	}
	if none != nil {
		t.Error("Expected nil for missing entry type")
	}
}

func TestJournalMetadataRoundTrip(t *testing.T) {
	s := newTestStore(t)

	entry, err := s.InsertEntry(JournalEntry{
		OwnerID:   "sabrina",
		Content:   "cycle summary",
		EntryType: EntryTypeSummary,
		Tags:      []string{"soulcycle"},
		Metadata:  map[string]interface{}{"steps": float64(5)},
	})
	if err != nil {
		t.Fatalf("InsertEntry failed: %v", err)
	}
	if entry.ID == 0 {
		t.Error("Expected assigned entry id")
	}

	got, err := s.LatestByType("sabrina", EntryTypeSummary)
	if err != nil {
		t.Fatalf("LatestByType failed: %v", err)
	}
	if got.Tags[0] != "soulcycle" {
		t.Errorf("Expected tag round trip, got %v", got.Tags)
	}
	if got.Metadata["steps"] != float64(5) {
		t.Errorf("Expected metadata round trip, got %v", got.Metadata)
	}
}
