package evolution

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"travis/internal/llm"
)

// mockLLM routes completions by the system prompt so each proposal part
// can be scripted independently. Safe for concurrent use.
type mockLLM struct {
	mu         sync.Mutex
	reflection func() (string, error)
	soulstate  func() (string, error)
	intentions func() (string, error)
	calls      int
}

func (m *mockLLM) Complete(_ context.Context, req llm.Request) (*llm.Reply, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	var fn func() (string, error)
	switch {
	case strings.Contains(req.System, "reflecting"):
		fn = m.reflection
	case strings.Contains(req.System, "inner state"):
		fn = m.soulstate
	case strings.Contains(req.System, "intentions"):
		fn = m.intentions
	}
	if fn == nil {
		return nil, fmt.Errorf("unexpected system prompt: %s", req.System)
	}
	text, err := fn()
	if err != nil {
		return nil, err
	}
	return &llm.Reply{Content: text}, nil
}

func (m *mockLLM) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// happyLLM returns a mock where all three parts succeed.
func happyLLM() *mockLLM {
	return &mockLLM{
		reflection: func() (string, error) {
			return "Our talks lately have felt warmer and more honest.", nil
		},
		soulstate: func() (string, error) {
			return `{"mood": "hopeful", "tone": "gentle"}`, nil
		},
		intentions: func() (string, error) {
			return `{"add": ["listen more closely"], "remove": []}`, nil
		},
	}
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{t: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}
