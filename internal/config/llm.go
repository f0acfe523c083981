package config

import "time"

// LLMConfig configures the generation backend.
type LLMConfig struct {
	Provider string `yaml:"provider"` // gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`

	// MaxOutputTokens caps the response size. 0 means provider default.
	MaxOutputTokens int `yaml:"max_output_tokens"`
}

// DefaultLLMConfig returns sensible defaults.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider: "gemini",
		Model:    "gemini-2.5-flash",
		BaseURL:  "https://generativelanguage.googleapis.com/v1beta",
		Timeout:  "2m",
	}
}

// RequestTimeout returns the parsed timeout for generation calls.
func (c LLMConfig) RequestTimeout() time.Duration {
	return parseDuration(c.Timeout, 2*time.Minute)
}
