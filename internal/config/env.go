package config

import "os"

// applyEnvOverrides layers TRAVIS_* environment variables over the loaded
// config. Environment always wins over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRAVIS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("TRAVIS_OWNER"); v != "" {
		cfg.Owner = v
	}

	// LLM
	if v := os.Getenv("TRAVIS_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	} else if v := os.Getenv("GEMINI_API_KEY"); v != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("TRAVIS_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("TRAVIS_LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}

	// Embedding
	if v := os.Getenv("TRAVIS_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("TRAVIS_OLLAMA_ENDPOINT"); v != "" {
		cfg.Embedding.OllamaEndpoint = v
	}
	if v := os.Getenv("TRAVIS_GENAI_API_KEY"); v != "" {
		cfg.Embedding.GenAIAPIKey = v
	} else if v := os.Getenv("GEMINI_API_KEY"); v != "" && cfg.Embedding.GenAIAPIKey == "" {
		cfg.Embedding.GenAIAPIKey = v
	}

	// Logging
	if v := os.Getenv("TRAVIS_DEBUG"); v == "1" || v == "true" {
		cfg.Logging.DebugMode = true
	}
}
