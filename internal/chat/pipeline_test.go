package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"travis/internal/config"
	"travis/internal/evolution"
	"travis/internal/llm"
	"travis/internal/memory"
	"travis/internal/store"
)

const testOwner = "sabrina"

type mockLLM struct {
	mu   sync.Mutex
	fn   func(req llm.Request) (*llm.Reply, error)
	reqs []llm.Request
}

func (m *mockLLM) Complete(_ context.Context, req llm.Request) (*llm.Reply, error) {
	m.mu.Lock()
	m.reqs = append(m.reqs, req)
	m.mu.Unlock()
	return m.fn(req)
}

func (m *mockLLM) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reqs)
}

func (m *mockLLM) lastRequest() llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reqs[len(m.reqs)-1]
}

type stubEngine struct{}

func (stubEngine) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0, 0}, nil
}

func (stubEngine) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0, 0}
	}
	return out, nil
}

func (stubEngine) Dimensions() int { return 4 }
func (stubEngine) Name() string    { return "stub" }

type fakeEvolver struct {
	outcome  evolution.Outcome
	message  string
	due      bool
	proposal *evolution.Proposal
	handled  []string
}

func (f *fakeEvolver) HandleResponse(_ context.Context, _, text string) (evolution.Outcome, string, error) {
	f.handled = append(f.handled, text)
	return f.outcome, f.message, nil
}

func (f *fakeEvolver) IsDue(string) bool { return f.due }

func (f *fakeEvolver) Present(context.Context, string) (bool, error) {
	return f.proposal != nil, nil
}

func (f *fakeEvolver) Pending() *evolution.Proposal { return f.proposal }

func newTestPipeline(t *testing.T, client *mockLLM, evolver Evolver) (*Pipeline, *store.Store) {
	t.Helper()

	db, err := store.Open(":memory:", 4)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.DefaultMemoryConfig()
	mem := memory.NewStore(db, stubEngine{}, cfg)
	synth := memory.NewSynthesizer(db, mem, cfg)
	facts := memory.NewFactExtractor(testOwner)
	return New(db, mem, synth, facts, evolver, client), db
}

func TestSendHappyPath(t *testing.T) {
	client := &mockLLM{fn: func(llm.Request) (*llm.Reply, error) {
		return &llm.Reply{Content: "That sounds lovely.", Emotion: "warm"}, nil
	}}
	p, db := newTestPipeline(t, client, nil)

	reply, err := p.Send(context.Background(), testOwner, "I planted tomatoes today")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if reply.Content != "That sounds lovely." || reply.Emotion != "warm" {
		t.Errorf("reply = %+v", reply)
	}

	messages, err := db.ListMessages(testOwner, 10)
	if err != nil {
		t.Fatalf("failed to list messages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected user + assistant messages, got %d", len(messages))
	}
	if messages[0].Role != "user" || messages[1].Role != "assistant" {
		t.Errorf("message order wrong: %s then %s", messages[0].Role, messages[1].Role)
	}
	if messages[1].Emotion != "warm" {
		t.Errorf("assistant emotion = %q", messages[1].Emotion)
	}

	records, err := db.ListMemories(testOwner, 10)
	if err != nil {
		t.Fatalf("failed to list memories: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected both utterances stored as memories, got %d", len(records))
	}
}

func TestSendGenerationFailureUsesFallback(t *testing.T) {
	client := &mockLLM{fn: func(llm.Request) (*llm.Reply, error) {
		return nil, errors.New("backend unreachable")
	}}
	p, db := newTestPipeline(t, client, nil)

	reply, err := p.Send(context.Background(), testOwner, "are you there?")
	if err != nil {
		t.Fatalf("generation failure must not surface as an error: %v", err)
	}
	if reply.Content != FallbackReply {
		t.Errorf("reply = %q, want fallback", reply.Content)
	}

	messages, _ := db.ListMessages(testOwner, 10)
	if len(messages) != 2 {
		t.Fatalf("expected user message and fallback persisted, got %d", len(messages))
	}
	if messages[0].Role != "user" || messages[0].Content != "are you there?" {
		t.Errorf("user message must be persisted before generation: %+v", messages[0])
	}

	records, _ := db.ListMemories(testOwner, 10)
	if len(records) != 0 {
		t.Errorf("fallback exchanges must not be absorbed into memory, got %d", len(records))
	}
}

func TestSendExtractsFacts(t *testing.T) {
	client := &mockLLM{fn: func(llm.Request) (*llm.Reply, error) {
		return &llm.Reply{
			Content:       "Dan sounds like a keeper.",
			PersonalFacts: []string{"Sabrina is planting a garden"},
		}, nil
	}}
	p, db := newTestPipeline(t, client, nil)

	if _, err := p.Send(context.Background(), testOwner, "My boyfriend's name is Dan"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	var facts []string
	found, err := db.GetValue(testOwner, store.KeyPermanentMemories, &facts)
	if err != nil || !found {
		t.Fatalf("permanent facts missing: found=%v err=%v", found, err)
	}

	wantExtracted := "Sabrina's boyfriend's name is Dan"
	wantVolunteered := "Sabrina is planting a garden"
	joined := strings.Join(facts, "|")
	if !strings.Contains(joined, wantExtracted) {
		t.Errorf("extracted fact %q missing from %v", wantExtracted, facts)
	}
	if !strings.Contains(joined, wantVolunteered) {
		t.Errorf("volunteered fact %q missing from %v", wantVolunteered, facts)
	}
}

func TestSendContextReachesGeneration(t *testing.T) {
	client := &mockLLM{fn: func(llm.Request) (*llm.Reply, error) {
		return &llm.Reply{Content: "I remember."}, nil
	}}
	p, db := newTestPipeline(t, client, nil)

	if err := db.PutValue(testOwner, store.KeyPermanentMemories, []string{"Sabrina's boyfriend's name is Dan"}); err != nil {
		t.Fatalf("failed to seed facts: %v", err)
	}

	if _, err := p.Send(context.Background(), testOwner, "tell me what you remember"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	system := client.lastRequest().System
	if !strings.Contains(system, "PERMANENT MEMORIES") {
		t.Errorf("system prompt missing permanent memories block:\n%s", system)
	}
	if !strings.Contains(system, "Dan") {
		t.Errorf("system prompt missing seeded fact:\n%s", system)
	}
}

func TestSendEvolutionReplyIntercepted(t *testing.T) {
	client := &mockLLM{fn: func(llm.Request) (*llm.Reply, error) {
		t.Error("generation must not be called when evolution consumes the reply")
		return nil, errors.New("unexpected")
	}}
	evolver := &fakeEvolver{outcome: evolution.Applied, message: "Thank you. I've taken that change into myself."}
	p, db := newTestPipeline(t, client, evolver)

	reply, err := p.Send(context.Background(), testOwner, "yes please")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if reply.Content != evolver.message {
		t.Errorf("reply = %q, want the evolution confirmation", reply.Content)
	}

	messages, _ := db.ListMessages(testOwner, 10)
	if len(messages) != 2 || messages[1].Content != evolver.message {
		t.Errorf("confirmation not persisted: %+v", messages)
	}
}

func TestSendPresentsDueProposal(t *testing.T) {
	client := &mockLLM{fn: func(llm.Request) (*llm.Reply, error) {
		t.Error("generation must not be called when a proposal is presented")
		return nil, errors.New("unexpected")
	}}
	evolver := &fakeEvolver{
		outcome:  evolution.NotHandled,
		due:      true,
		proposal: &evolution.Proposal{Narrative: "Would you be okay with me making this change?"},
	}
	p, _ := newTestPipeline(t, client, evolver)

	reply, err := p.Send(context.Background(), testOwner, "good morning")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if reply.Content != evolver.proposal.Narrative {
		t.Errorf("reply = %q, want the proposal narrative", reply.Content)
	}
}

func TestSendEmptyMessageRejected(t *testing.T) {
	client := &mockLLM{fn: func(llm.Request) (*llm.Reply, error) {
		return &llm.Reply{Content: "?"}, nil
	}}
	p, _ := newTestPipeline(t, client, nil)

	if _, err := p.Send(context.Background(), testOwner, "   "); err == nil {
		t.Error("expected an error for a blank message")
	}
	if client.callCount() != 0 {
		t.Error("blank messages must not reach generation")
	}
}

func TestSendHistoryEndsWithCurrentMessage(t *testing.T) {
	client := &mockLLM{fn: func(llm.Request) (*llm.Reply, error) {
		return &llm.Reply{Content: "mhm"}, nil
	}}
	p, _ := newTestPipeline(t, client, nil)

	if _, err := p.Send(context.Background(), testOwner, "first thing"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if _, err := p.Send(context.Background(), testOwner, "second thing"); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	turns := client.lastRequest().Messages
	if len(turns) == 0 || turns[len(turns)-1].Content != "second thing" {
		t.Fatalf("history must end with the current message: %+v", turns)
	}
	if turns[0].Content != "first thing" {
		t.Errorf("history missing earlier turns: %+v", turns)
	}
}
