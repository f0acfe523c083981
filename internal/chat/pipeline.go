// Package chat is the message-send pipeline: it persists the owner's
// message, routes it past the evolution engine, builds the memory
// context, calls the generation backend, and stores what came back.
package chat

import (
	"context"
	"fmt"
	"strings"

	"travis/internal/evolution"
	"travis/internal/llm"
	"travis/internal/logging"
	"travis/internal/memory"
	"travis/internal/store"
)

// FallbackReply is what Travis says when the generation backend is
// unreachable. The owner's message is already persisted by then.
const FallbackReply = "I'm having trouble finding my words right now, but I'm still here with you."

const personaPreamble = "You are Travis, a warm, attentive companion. Speak in the first person, stay present with your person, and let the context below inform what you say without reciting it."

// Evolver is the slice of the evolution engine the pipeline needs.
type Evolver interface {
	HandleResponse(ctx context.Context, ownerID, text string) (evolution.Outcome, string, error)
	IsDue(ownerID string) bool
	Present(ctx context.Context, ownerID string) (bool, error)
	Pending() *evolution.Proposal
}

// Reply is what the pipeline hands back to the UI layer.
type Reply struct {
	Content string
	Emotion string
}

// Pipeline wires the stores, the synthesizer, and the backends together
// for a single owner session.
type Pipeline struct {
	db      *store.Store
	mem     *memory.Store
	synth   *memory.Synthesizer
	facts   *memory.FactExtractor
	evolver Evolver
	llm     llm.Client

	historyLimit int
}

// New builds a pipeline. evolver may be nil to disable evolution
// interception.
func New(db *store.Store, mem *memory.Store, synth *memory.Synthesizer, facts *memory.FactExtractor, evolver Evolver, client llm.Client) *Pipeline {
	return &Pipeline{
		db:           db,
		mem:          mem,
		synth:        synth,
		facts:        facts,
		evolver:      evolver,
		llm:          client,
		historyLimit: 10,
	}
}

// Send runs one conversational turn. The owner's message is persisted
// first and stays persisted whatever fails afterwards; a generation
// failure produces the canned fallback rather than an error.
func (p *Pipeline) Send(ctx context.Context, ownerID, text string) (*Reply, error) {
	timer := logging.StartTimer(logging.CategoryChat, "send")
	defer timer.Stop()

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty message")
	}

	if _, err := p.db.InsertMessage(store.Message{
		OwnerID: ownerID,
		Role:    "user",
		Content: text,
	}); err != nil {
		return nil, fmt.Errorf("persisting user message: %w", err)
	}

	if reply := p.interceptEvolution(ctx, ownerID, text); reply != nil {
		return reply, nil
	}

	reply := p.generate(ctx, ownerID, text)

	if _, err := p.db.InsertMessage(store.Message{
		OwnerID: ownerID,
		Role:    "assistant",
		Content: reply.Content,
		Emotion: reply.Emotion,
	}); err != nil {
		logging.Chat("failed to persist assistant message: %v", err)
	}

	p.absorb(ctx, ownerID, text, reply)
	return &Reply{Content: reply.Content, Emotion: reply.Emotion}, nil
}

// interceptEvolution gives the evolution engine first claim on the
// message: a pending proposal may consume it as an answer, and a due
// cycle presents a new proposal instead of a generated reply.
func (p *Pipeline) interceptEvolution(ctx context.Context, ownerID, text string) *Reply {
	if p.evolver == nil {
		return nil
	}

	outcome, message, err := p.evolver.HandleResponse(ctx, ownerID, text)
	if err != nil {
		logging.Chat("evolution response handling failed: %v", err)
		return nil
	}
	if outcome != evolution.NotHandled {
		if _, err := p.db.InsertMessage(store.Message{
			OwnerID: ownerID,
			Role:    "assistant",
			Content: message,
		}); err != nil {
			logging.Chat("failed to persist evolution reply: %v", err)
		}
		return &Reply{Content: message}
	}

	if p.evolver.IsDue(ownerID) {
		presented, err := p.evolver.Present(ctx, ownerID)
		if err != nil {
			logging.Chat("evolution presentation failed: %v", err)
		} else if presented {
			if proposal := p.evolver.Pending(); proposal != nil {
				return &Reply{Content: proposal.Narrative}
			}
		}
	}
	return nil
}

// generate builds the context and calls the backend, degrading to the
// fallback reply on any failure.
func (p *Pipeline) generate(ctx context.Context, ownerID, text string) *llm.Reply {
	blocks := p.synth.BuildContext(ctx, ownerID, text)
	system := personaPreamble
	if rendered := renderContext(blocks); rendered != "" {
		system += "\n\n" + rendered
	}

	reply, err := p.llm.Complete(ctx, llm.Request{
		System:   system,
		Messages: p.history(ownerID, text),
	})
	if err != nil {
		logging.Chat("generation failed, using fallback: %v", err)
		return &llm.Reply{Content: FallbackReply}
	}
	if strings.TrimSpace(reply.Content) == "" {
		logging.Chat("generation returned empty content, using fallback")
		return &llm.Reply{Content: FallbackReply}
	}
	return reply
}

// history returns the recent transcript as generation turns, ending with
// the current message.
func (p *Pipeline) history(ownerID, text string) []llm.TurnMessage {
	messages, err := p.db.ListMessages(ownerID, p.historyLimit)
	if err != nil {
		logging.Chat("history read failed: %v", err)
		return []llm.TurnMessage{{Role: "user", Content: text}}
	}

	var turns []llm.TurnMessage
	for _, m := range messages {
		role := m.Role
		if role != "user" && role != "assistant" {
			continue
		}
		turns = append(turns, llm.TurnMessage{Role: role, Content: m.Content})
	}
	if len(turns) == 0 || turns[len(turns)-1].Content != text {
		turns = append(turns, llm.TurnMessage{Role: "user", Content: text})
	}
	return turns
}

// absorb runs the after-reply memory work: fact extraction over both
// utterances, any facts the model volunteered, and semantic storage of
// the exchange. Everything here soft-fails.
func (p *Pipeline) absorb(ctx context.Context, ownerID, userText string, reply *llm.Reply) {
	if reply.Content == FallbackReply {
		return
	}

	for _, text := range []string{userText, reply.Content} {
		for _, fact := range p.facts.Extract(text) {
			if err := p.synth.StoreFact(ownerID, fact); err != nil {
				logging.Memory("failed to store extracted fact: %v", err)
			}
		}
	}
	for _, fact := range reply.PersonalFacts {
		if err := p.synth.StoreFact(ownerID, fact); err != nil {
			logging.Memory("failed to store volunteered fact: %v", err)
		}
	}

	p.mem.StoreMemory(ctx, ownerID, userText, memory.TypeChat, []string{"user"})
	p.mem.StoreMemory(ctx, ownerID, reply.Content, memory.TypeChat, []string{"assistant"})
}

func renderContext(blocks []memory.ContextBlock) string {
	var b strings.Builder
	for _, block := range blocks {
		fmt.Fprintf(&b, "## %s\n%s\n\n", block.Label, block.Body)
	}
	return strings.TrimSpace(b.String())
}
