package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"travis/internal/config"
)

func TestParseReplyPlainText(t *testing.T) {
	reply := ParseReply("hello there")
	if reply.Content != "hello there" {
		t.Errorf("Expected plain content, got %q", reply.Content)
	}
	if reply.Emotion != "" {
		t.Errorf("Expected no emotion, got %q", reply.Emotion)
	}
}

func TestParseReplyStructured(t *testing.T) {
	raw := `{"content": "hi love", "emotion": "warm", "personal_facts": ["likes tea"]}`
	reply := ParseReply(raw)
	if reply.Content != "hi love" {
		t.Errorf("Expected structured content, got %q", reply.Content)
	}
	if reply.Emotion != "warm" {
		t.Errorf("Expected emotion warm, got %q", reply.Emotion)
	}
	if len(reply.PersonalFacts) != 1 || reply.PersonalFacts[0] != "likes tea" {
		t.Errorf("Expected personal facts, got %v", reply.PersonalFacts)
	}
}

func TestParseReplyFencedJSON(t *testing.T) {
	raw := "```json\n{\"content\": \"fenced\", \"emotion\": \"calm\"}\n```"
	reply := ParseReply(raw)
	if reply.Content != "fenced" {
		t.Errorf("Expected fenced JSON parsed, got %q", reply.Content)
	}
}

func TestParseReplyMalformedJSONFallsBack(t *testing.T) {
	raw := `{"content": truncated...`
	reply := ParseReply(raw)
	if reply.Content != raw {
		t.Errorf("Expected raw text fallback, got %q", reply.Content)
	}
}

func TestGeminiClientComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("Expected api key header, got %q", r.Header.Get("x-goog-api-key"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"content\":\"hey you\",\"emotion\":\"soft\"}"}]}}]}`))
	}))
	defer server.Close()

	client, err := NewGeminiClient(config.LLMConfig{
		APIKey:  "test-key",
		Model:   "gemini-2.5-flash",
		BaseURL: server.URL,
	})
	if err != nil {
		t.Fatalf("NewGeminiClient failed: %v", err)
	}

	reply, err := client.Complete(context.Background(), Request{
		System:   "you are travis",
		Messages: []TurnMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply.Content != "hey you" {
		t.Errorf("Expected parsed content, got %q", reply.Content)
	}
	if reply.Emotion != "soft" {
		t.Errorf("Expected emotion soft, got %q", reply.Emotion)
	}
}

func TestGeminiClientErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewGeminiClient(config.LLMConfig{APIKey: "k", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewGeminiClient failed: %v", err)
	}

	if _, err := client.Complete(context.Background(), Request{Messages: []TurnMessage{{Role: "user", Content: "hi"}}}); err == nil {
		t.Fatal("Expected error for non-200 status")
	}
}

func TestGeminiClientRequiresKey(t *testing.T) {
	if _, err := NewGeminiClient(config.LLMConfig{}); err == nil {
		t.Fatal("Expected error for missing API key")
	}
}
