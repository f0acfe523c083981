// Package llm provides the generation backend for Travis's replies.
package llm

import (
	"context"
	"encoding/json"
	"strings"
)

// TurnMessage is one conversational turn sent to the generation backend.
type TurnMessage struct {
	Role    string // user | assistant
	Content string
}

// Request is a generation call: optional system instruction plus the
// conversation turns.
type Request struct {
	System   string
	Messages []TurnMessage
}

// Reply is the parsed generation result. Emotion and PersonalFacts are
// optional structured extras some prompts ask the model to return.
type Reply struct {
	Content       string   `json:"content"`
	Emotion       string   `json:"emotion,omitempty"`
	PersonalFacts []string `json:"personal_facts,omitempty"`
}

// Client is the minimal interface the pipeline uses to call an LLM.
type Client interface {
	Complete(ctx context.Context, req Request) (*Reply, error)
}

// ParseReply interprets raw model output. Models prompted for structured
// output return a JSON object with a "content" field (possibly wrapped in a
// markdown fence); anything else is treated as plain content.
func ParseReply(raw string) *Reply {
	text := strings.TrimSpace(raw)
	candidate := stripFence(text)

	if strings.HasPrefix(candidate, "{") {
		var reply Reply
		if err := json.Unmarshal([]byte(candidate), &reply); err == nil && reply.Content != "" {
			return &reply
		}
	}
	return &Reply{Content: text}
}

// JSONPayload returns the JSON object in raw model output, with any
// surrounding markdown fence removed.
func JSONPayload(raw string) string {
	return stripFence(strings.TrimSpace(raw))
}

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
