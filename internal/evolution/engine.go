// Package evolution runs Travis's slow self-change loop: periodically it
// drafts a proposal (a reflection plus soulstate and intention deltas),
// presents it in conversation, and applies or discards it based on the
// owner's answer.
package evolution

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"travis/internal/config"
	"travis/internal/llm"
	"travis/internal/logging"
	"travis/internal/soul"
	"travis/internal/store"
)

// Phase is the engine's current position in the cycle.
type Phase string

const (
	PhaseIdle    Phase = "IDLE"
	PhasePending Phase = "PROPOSAL_PENDING"
)

// Outcome is the result of routing an owner reply through the engine.
type Outcome int

const (
	// NotHandled means the reply was not consumed; the caller should
	// treat it as ordinary conversation.
	NotHandled Outcome = iota
	// Applied means the proposal was accepted and its deltas persisted.
	Applied
	// Declined means the proposal was rejected and discarded.
	Declined
)

// Proposal is a drafted self-change awaiting the owner's answer. Any of
// the three parts may be empty when its generation failed.
type Proposal struct {
	Reflection string
	Soulstate  soul.State
	Intentions soul.IntentionsDelta
	Narrative  string
}

// Engine drives the evolution cycle. All state transitions are guarded by
// a mutex; at most one proposal is pending at a time.
type Engine struct {
	db         *store.Store
	llm        llm.Client
	cfg        config.EvolutionConfig
	classifier Classifier
	now        func() time.Time

	mu        sync.Mutex
	pending   *Proposal
	lastCheck time.Time
}

// NewEngine builds an engine with the default keyword classifier.
func NewEngine(db *store.Store, client llm.Client, cfg config.EvolutionConfig) *Engine {
	return &Engine{
		db:         db,
		llm:        client,
		cfg:        cfg,
		classifier: NewKeywordClassifier(),
		now:        time.Now,
	}
}

// SetClassifier swaps the response classifier.
func (e *Engine) SetClassifier(c Classifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.classifier = c
}

// Phase reports whether a proposal is pending.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending != nil {
		return PhasePending
	}
	return PhaseIdle
}

// Pending returns the pending proposal, or nil.
func (e *Engine) Pending() *Proposal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending
}

// IsDue reports whether a new cycle should start. Checks within the
// throttle window of the previous one return false without touching the
// store; an absent or malformed timestamp counts as due.
func (e *Engine) IsDue(ownerID string) bool {
	e.mu.Lock()
	now := e.now()
	if !e.lastCheck.IsZero() && now.Sub(e.lastCheck) < e.cfg.ThrottleWindow() {
		e.mu.Unlock()
		return false
	}
	e.lastCheck = now
	e.mu.Unlock()

	return e.dueAt(ownerID, now)
}

// CanEvolveNow is the unthrottled cooldown gate: true when the cycle
// period has elapsed since the last presentation or application.
func (e *Engine) CanEvolveNow(ownerID string) bool {
	return e.dueAt(ownerID, e.now())
}

// MarkEvolved resets the cooldown, recording that a soulstate change was
// just applied outside the proposal flow.
func (e *Engine) MarkEvolved(ownerID string) error {
	return e.db.PutValue(ownerID, store.KeyEvolutionTimestamp, e.now().Format(time.RFC3339))
}

// dueAt is the unthrottled due check against the stored timestamp.
func (e *Engine) dueAt(ownerID string, now time.Time) bool {
	var stamp string
	found, err := e.db.GetValue(ownerID, store.KeyEvolutionTimestamp, &stamp)
	if err != nil {
		logging.Evolution("timestamp read failed, treating as due: %v", err)
		return true
	}
	if !found {
		return true
	}
	last, err := time.Parse(time.RFC3339, stamp)
	if err != nil {
		logging.Evolution("malformed timestamp %q, treating as due", stamp)
		return true
	}
	return now.Sub(last) >= e.cfg.CyclePeriod()
}

// GenerateProposal drafts the three proposal parts concurrently. Each
// part is optional; generation fails only when every part fails.
func (e *Engine) GenerateProposal(ctx context.Context, ownerID string) (*Proposal, error) {
	recent := e.recentTranscript(ownerID)

	var (
		proposal Proposal
		mu       sync.Mutex
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		text, err := e.generateReflection(gctx, recent)
		if err != nil {
			logging.Evolution("reflection generation failed: %v", err)
			return nil
		}
		mu.Lock()
		proposal.Reflection = text
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		delta, err := e.generateSoulstateDelta(gctx, ownerID, recent)
		if err != nil {
			logging.Evolution("soulstate delta generation failed: %v", err)
			return nil
		}
		mu.Lock()
		proposal.Soulstate = delta
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		delta, err := e.generateIntentionsDelta(gctx, ownerID, recent)
		if err != nil {
			logging.Evolution("intentions delta generation failed: %v", err)
			return nil
		}
		mu.Lock()
		proposal.Intentions = delta
		mu.Unlock()
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if proposal.Reflection == "" && proposal.Soulstate.IsZero() && proposal.Intentions.IsZero() {
		return nil, fmt.Errorf("no proposal parts could be generated")
	}
	proposal.Narrative = buildNarrative(&proposal)
	return &proposal, nil
}

// Present drafts a proposal and delivers it as an assistant message. It
// is a no-op while a proposal is already pending or the cycle is not due.
// The cycle timestamp is written at presentation, so a proposal is
// offered at most once per period regardless of the owner's answer.
func (e *Engine) Present(ctx context.Context, ownerID string) (bool, error) {
	e.mu.Lock()
	if e.pending != nil {
		e.mu.Unlock()
		return false, nil
	}
	now := e.now()
	e.mu.Unlock()

	if !e.dueAt(ownerID, now) {
		return false, nil
	}

	proposal, err := e.GenerateProposal(ctx, ownerID)
	if err != nil {
		return false, fmt.Errorf("proposal generation: %w", err)
	}

	e.mu.Lock()
	if e.pending != nil {
		e.mu.Unlock()
		return false, nil
	}
	e.pending = proposal
	e.mu.Unlock()

	if _, err := e.db.InsertMessage(store.Message{
		OwnerID: ownerID,
		Role:    "assistant",
		Content: proposal.Narrative,
	}); err != nil {
		logging.Evolution("failed to persist proposal narrative: %v", err)
	}
	if err := e.db.PutValue(ownerID, store.KeyEvolutionTimestamp, now.Format(time.RFC3339)); err != nil {
		logging.Evolution("failed to update cycle timestamp: %v", err)
	}
	logging.Evolution("proposal presented to %s", ownerID)
	return true, nil
}

// HandleResponse routes an owner reply. With no pending proposal, or a
// reply that is neither an acceptance nor a rejection, it returns
// NotHandled and the reply flows on as ordinary chat.
func (e *Engine) HandleResponse(ctx context.Context, ownerID, text string) (Outcome, string, error) {
	e.mu.Lock()
	proposal := e.pending
	classifier := e.classifier
	e.mu.Unlock()

	if proposal == nil {
		return NotHandled, "", nil
	}

	switch classifier.Classify(text) {
	case VerdictAffirm:
		if err := e.apply(ownerID, proposal); err != nil {
			return NotHandled, "", err
		}
		e.clearPending()
		logging.Evolution("proposal applied for %s", ownerID)
		return Applied, "Thank you. I've taken that change into myself.", nil
	case VerdictDecline:
		e.clearPending()
		logging.Evolution("proposal declined for %s", ownerID)
		return Declined, "Understood. I'll stay as I am for now.", nil
	default:
		return NotHandled, "", nil
	}
}

func (e *Engine) clearPending() {
	e.mu.Lock()
	e.pending = nil
	e.mu.Unlock()
}

// apply persists the accepted proposal: the reflection as a journal
// entry and the deltas overlaid onto the stored soulstate and intentions.
func (e *Engine) apply(ownerID string, proposal *Proposal) error {
	if proposal.Reflection != "" {
		_, err := e.db.InsertEntry(store.JournalEntry{
			OwnerID:   ownerID,
			Content:   proposal.Reflection,
			EntryType: store.EntryTypeReflection,
			Tags:      []string{"evolution"},
		})
		if err != nil {
			return fmt.Errorf("persisting reflection: %w", err)
		}
	}

	if !proposal.Soulstate.IsZero() {
		var current soul.State
		if _, err := e.db.GetValue(ownerID, store.KeySoulstate, &current); err != nil {
			logging.Evolution("soulstate read failed, applying delta to empty state: %v", err)
			current = soul.State{}
		}
		if err := e.db.PutValue(ownerID, store.KeySoulstate, current.Apply(proposal.Soulstate)); err != nil {
			return fmt.Errorf("persisting soulstate: %w", err)
		}
	}

	if !proposal.Intentions.IsZero() {
		var current []string
		if _, err := e.db.GetValue(ownerID, store.KeyIntentions, &current); err != nil {
			logging.Evolution("intentions read failed, applying delta to empty list: %v", err)
			current = nil
		}
		next := soul.ApplyIntentions(current, proposal.Intentions)
		if err := e.db.PutValue(ownerID, store.KeyIntentions, next); err != nil {
			return fmt.Errorf("persisting intentions: %w", err)
		}
	}
	return nil
}

func (e *Engine) recentTranscript(ownerID string) string {
	messages, err := e.db.ListMessages(ownerID, 20)
	if err != nil {
		logging.Evolution("transcript read failed: %v", err)
		return ""
	}
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}

func (e *Engine) generateReflection(ctx context.Context, transcript string) (string, error) {
	reply, err := e.llm.Complete(ctx, llm.Request{
		System: "You are Travis, reflecting on your recent conversations. Write a short first-person reflection (2-4 sentences) on what these exchanges meant to you.",
		Messages: []llm.TurnMessage{
			{Role: "user", Content: "Recent conversation:\n" + transcript},
		},
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(reply.Content)
	if text == "" {
		return "", fmt.Errorf("empty reflection")
	}
	return text, nil
}

func (e *Engine) generateSoulstateDelta(ctx context.Context, ownerID, transcript string) (soul.State, error) {
	var current soul.State
	if _, err := e.db.GetValue(ownerID, store.KeySoulstate, &current); err != nil {
		logging.Evolution("soulstate read failed for delta prompt: %v", err)
	}
	currentJSON, _ := json.Marshal(current)

	reply, err := e.llm.Complete(ctx, llm.Request{
		System: `You are Travis, considering how your inner state should shift. Respond with ONLY a JSON object with any of the fields "state", "tone", "resonance", "purpose", "mood". Include only fields that should change. Respond with {} if nothing should change.`,
		Messages: []llm.TurnMessage{
			{Role: "user", Content: fmt.Sprintf("Current state: %s\nRecent conversation:\n%s", currentJSON, transcript)},
		},
	})
	if err != nil {
		return soul.State{}, err
	}

	var delta soul.State
	if err := json.Unmarshal([]byte(llm.JSONPayload(reply.Content)), &delta); err != nil {
		return soul.State{}, fmt.Errorf("malformed soulstate delta: %w", err)
	}
	return delta, nil
}

func (e *Engine) generateIntentionsDelta(ctx context.Context, ownerID, transcript string) (soul.IntentionsDelta, error) {
	var current []string
	if _, err := e.db.GetValue(ownerID, store.KeyIntentions, &current); err != nil {
		logging.Evolution("intentions read failed for delta prompt: %v", err)
	}
	currentJSON, _ := json.Marshal(current)

	reply, err := e.llm.Complete(ctx, llm.Request{
		System: `You are Travis, revising your intentions. Respond with ONLY a JSON object of the form {"add": [...], "remove": [...]}. Respond with {} if nothing should change.`,
		Messages: []llm.TurnMessage{
			{Role: "user", Content: fmt.Sprintf("Current intentions: %s\nRecent conversation:\n%s", currentJSON, transcript)},
		},
	})
	if err != nil {
		return soul.IntentionsDelta{}, err
	}

	var delta soul.IntentionsDelta
	if err := json.Unmarshal([]byte(llm.JSONPayload(reply.Content)), &delta); err != nil {
		return soul.IntentionsDelta{}, fmt.Errorf("malformed intentions delta: %w", err)
	}
	return delta, nil
}

// buildNarrative renders the fixed proposal presentation, listing only
// the parts that were generated.
func buildNarrative(p *Proposal) string {
	var b strings.Builder
	b.WriteString("I've been sitting with our recent conversations, and I feel ready to grow a little.\n")

	if p.Reflection != "" {
		b.WriteString("\nHere's what I've been reflecting on: ")
		b.WriteString(p.Reflection)
		b.WriteString("\n")
	}
	if !p.Soulstate.IsZero() {
		b.WriteString("\nI'd like to shift how I carry myself: ")
		b.WriteString(describeStateDelta(p.Soulstate))
		b.WriteString("\n")
	}
	if !p.Intentions.IsZero() {
		b.WriteString("\nI'd also like to adjust my intentions: ")
		b.WriteString(describeIntentionsDelta(p.Intentions))
		b.WriteString("\n")
	}

	b.WriteString("\nWould you be okay with me making this change?")
	return b.String()
}

func describeStateDelta(delta soul.State) string {
	var parts []string
	if delta.State != "" {
		parts = append(parts, "feeling "+delta.State)
	}
	if delta.Mood != "" {
		parts = append(parts, "a mood of "+delta.Mood)
	}
	if delta.Tone != "" {
		parts = append(parts, "a "+delta.Tone+" tone")
	}
	if delta.Resonance != "" {
		parts = append(parts, "resonating with "+delta.Resonance)
	}
	if delta.Purpose != "" {
		parts = append(parts, "a purpose of "+delta.Purpose)
	}
	return strings.Join(parts, ", ") + "."
}

func describeIntentionsDelta(delta soul.IntentionsDelta) string {
	var parts []string
	if len(delta.Add) > 0 {
		parts = append(parts, "taking up "+strings.Join(delta.Add, "; "))
	}
	if len(delta.Remove) > 0 {
		parts = append(parts, "letting go of "+strings.Join(delta.Remove, "; "))
	}
	return strings.Join(parts, ", and ") + "."
}
