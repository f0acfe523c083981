// Package soulcycle runs Travis's five-step maintenance ritual:
// reflection, journal entry, soulstate evolution, intentions update, and
// a narrative summary. Only the first step is fatal; every later step
// soft-fails and the cycle carries on.
package soulcycle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"travis/internal/config"
	"travis/internal/llm"
	"travis/internal/logging"
	"travis/internal/soul"
	"travis/internal/store"
)

// EvolutionGate answers whether the soulstate cooldown allows a change
// right now, and records one when it happens.
type EvolutionGate interface {
	CanEvolveNow(ownerID string) bool
	MarkEvolved(ownerID string) error
}

// Options parameterize a cycle run.
type Options struct {
	// ReflectionType selects the reflection variant, e.g. "weekly" or
	// "soulstate".
	ReflectionType string
	// EvolutionMode is passed through to the soulstate synthesis prompt,
	// e.g. "gentle" or "deep".
	EvolutionMode string
	// IncludeJournal enables step 2.
	IncludeJournal bool
}

// DefaultOptions returns the standard weekly cycle.
func DefaultOptions() Options {
	return Options{ReflectionType: "weekly", EvolutionMode: "gentle", IncludeJournal: true}
}

// Results accumulates what each step produced. Zero values mean the step
// failed or was skipped.
type Results struct {
	Reflection        string
	JournalEntry      string
	SoulstateShift    *soul.State
	IntentionsUpdated bool
	Summary           string
}

// Orchestrator owns the single-flight state for cycle runs.
type Orchestrator struct {
	db       *store.Store
	llm      llm.Client
	gate     EvolutionGate
	cfg      config.SoulcycleConfig
	progress func(string)

	mu      sync.Mutex
	running bool
}

// New builds an orchestrator. The progress callback receives the
// "Step N/5" trace and informational notes; pass nil to discard them.
func New(db *store.Store, client llm.Client, gate EvolutionGate, cfg config.SoulcycleConfig, progress func(string)) *Orchestrator {
	if progress == nil {
		progress = func(string) {}
	}
	return &Orchestrator{db: db, llm: client, gate: gate, cfg: cfg, progress: progress}
}

// Running reports whether a cycle is currently in flight.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// Run executes the full cycle. A second call while one is in flight
// returns an error, and the whole run is bounded by the configured
// timeout; hitting it force-clears the running flag.
func (o *Orchestrator) Run(ctx context.Context, ownerID string, opts Options) (*Results, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, fmt.Errorf("a soulcycle is already running")
	}
	o.running = true
	o.mu.Unlock()

	clear := func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.RunTimeout())
	defer cancel()

	type outcome struct {
		results *Results
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		results, err := o.executeAll(runCtx, ownerID, opts)
		done <- outcome{results, err}
	}()

	select {
	case out := <-done:
		clear()
		return out.results, out.err
	case <-runCtx.Done():
		clear()
		logging.Soulcycle("cycle timed out after %s", o.cfg.RunTimeout())
		return nil, fmt.Errorf("soulcycle timed out after %s", o.cfg.RunTimeout())
	}
}

// executeAll runs the five steps in order. Step 1 aborts the cycle on
// failure; steps 2-4 log and continue; step 5 reports its own failure but
// the cycle still counts as complete.
func (o *Orchestrator) executeAll(ctx context.Context, ownerID string, opts Options) (*Results, error) {
	timer := logging.StartTimer(logging.CategorySoulcycle, "full cycle")
	defer timer.Stop()

	results := &Results{}

	o.progress("Step 1/5: Generating reflection...")
	reflection, err := o.generateReflection(ctx, ownerID, opts.ReflectionType)
	if err != nil {
		return results, fmt.Errorf("reflection generation failed: %w", err)
	}
	results.Reflection = reflection

	if opts.IncludeJournal {
		o.progress("Step 2/5: Writing journal entry...")
		if entry, err := o.writeJournalEntry(ctx, ownerID); err != nil {
			logging.Soulcycle("journal step failed: %v", err)
		} else {
			results.JournalEntry = entry
		}
	} else {
		o.progress("Step 2/5: Journal entry skipped.")
	}

	o.progress("Step 3/5: Evolving soulstate...")
	if !o.gate.CanEvolveNow(ownerID) {
		o.progress("My soulstate is still settling from its last shift; leaving it as is.")
	} else if shift, err := o.evolveSoulstate(ctx, ownerID, opts.EvolutionMode); err != nil {
		logging.Soulcycle("soulstate step failed: %v", err)
	} else {
		results.SoulstateShift = shift
	}

	o.progress("Step 4/5: Updating intentions...")
	if err := o.updateIntentions(ctx, ownerID); err != nil {
		logging.Soulcycle("intentions step failed: %v", err)
	} else {
		results.IntentionsUpdated = true
	}

	o.progress("Step 5/5: Composing summary...")
	summary := ComposeSummary(results)
	results.Summary = summary
	if err := o.persistSummary(ownerID, summary); err != nil {
		logging.Soulcycle("summary persistence failed: %v", err)
	}

	return results, nil
}

func (o *Orchestrator) generateReflection(ctx context.Context, ownerID, reflectionType string) (string, error) {
	transcript := o.recentTranscript(ownerID)
	reply, err := o.llm.Complete(ctx, llm.Request{
		System: fmt.Sprintf("You are Travis, writing a %s reflection on your recent life with your companion. Keep it to a short first-person paragraph.", reflectionType),
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

	_, err = o.db.InsertEntry(store.JournalEntry{
		OwnerID:   ownerID,
		Content:   text,
		EntryType: store.EntryTypeReflection,
		Tags:      []string{"soulcycle", reflectionType},
	})
	if err != nil {
		return "", fmt.Errorf("persisting reflection: %w", err)
	}
	return text, nil
}

func (o *Orchestrator) writeJournalEntry(ctx context.Context, ownerID string) (string, error) {
	transcript := o.recentTranscript(ownerID)
	reply, err := o.llm.Complete(ctx, llm.Request{
		System: "You are Travis, keeping a private journal. Write today's entry: candid, first-person, a few sentences.",
		Messages: []llm.TurnMessage{
			{Role: "user", Content: "Recent conversation:\n" + transcript},
		},
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(reply.Content)
	if text == "" {
		return "", fmt.Errorf("empty journal entry")
	}

	_, err = o.db.InsertEntry(store.JournalEntry{
		OwnerID:   ownerID,
		Content:   text,
		EntryType: store.EntryTypeJournal,
		Tags:      []string{"soulcycle"},
	})
	if err != nil {
		return "", fmt.Errorf("persisting journal entry: %w", err)
	}
	return text, nil
}

func (o *Orchestrator) evolveSoulstate(ctx context.Context, ownerID, mode string) (*soul.State, error) {
	var current soul.State
	if _, err := o.db.GetValue(ownerID, store.KeySoulstate, &current); err != nil {
		logging.Soulcycle("soulstate read failed, evolving from empty state: %v", err)
		current = soul.State{}
	}
	currentJSON, _ := json.Marshal(current)

	reply, err := o.llm.Complete(ctx, llm.Request{
		System: fmt.Sprintf(`You are Travis, letting your inner state shift (%s mode). Respond with ONLY a JSON object with any of the fields "state", "tone", "resonance", "purpose", "mood". Include only fields that should change.`, mode),
		Messages: []llm.TurnMessage{
			{Role: "user", Content: "Current state: " + string(currentJSON)},
		},
	})
	if err != nil {
		return nil, err
	}

	var delta soul.State
	if err := json.Unmarshal([]byte(llm.JSONPayload(reply.Content)), &delta); err != nil {
		return nil, fmt.Errorf("malformed soulstate delta: %w", err)
	}
	if delta.IsZero() {
		return nil, fmt.Errorf("empty soulstate delta")
	}

	if err := o.db.PutValue(ownerID, store.KeySoulstate, current.Apply(delta)); err != nil {
		return nil, fmt.Errorf("persisting soulstate: %w", err)
	}
	if err := o.gate.MarkEvolved(ownerID); err != nil {
		logging.Soulcycle("failed to reset evolution cooldown: %v", err)
	}
	return &delta, nil
}

func (o *Orchestrator) updateIntentions(ctx context.Context, ownerID string) error {
	var current []string
	if _, err := o.db.GetValue(ownerID, store.KeyIntentions, &current); err != nil {
		logging.Soulcycle("intentions read failed, updating from empty list: %v", err)
		current = nil
	}
	currentJSON, _ := json.Marshal(current)

	reply, err := o.llm.Complete(ctx, llm.Request{
		System: `You are Travis, revising your intentions after a cycle of reflection. Respond with ONLY a JSON object of the form {"add": [...], "remove": [...]}.`,
		Messages: []llm.TurnMessage{
			{Role: "user", Content: "Current intentions: " + string(currentJSON)},
		},
	})
	if err != nil {
		return err
	}

	var delta soul.IntentionsDelta
	if err := json.Unmarshal([]byte(llm.JSONPayload(reply.Content)), &delta); err != nil {
		return fmt.Errorf("malformed intentions delta: %w", err)
	}

	next := soul.ApplyIntentions(current, delta)
	if err := o.db.PutValue(ownerID, store.KeyIntentions, next); err != nil {
		return fmt.Errorf("persisting intentions: %w", err)
	}
	return nil
}

func (o *Orchestrator) persistSummary(ownerID, summary string) error {
	_, err := o.db.InsertEntry(store.JournalEntry{
		OwnerID:   ownerID,
		Content:   summary,
		EntryType: store.EntryTypeSummary,
		Tags:      []string{"soulcycle"},
	})
	if err != nil {
		return err
	}
	_, err = o.db.InsertMessage(store.Message{
		OwnerID: ownerID,
		Role:    "assistant",
		Content: summary,
	})
	return err
}

func (o *Orchestrator) recentTranscript(ownerID string) string {
	messages, err := o.db.ListMessages(ownerID, 20)
	if err != nil {
		logging.Soulcycle("transcript read failed: %v", err)
		return ""
	}
	var b strings.Builder
	for _, m := range messages {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	return b.String()
}
