package config

// MemoryConfig configures embedding recall and memory synthesis.
type MemoryConfig struct {
	// Minimum cosine similarity for a memory to be recalled.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// Maximum memories returned per recall.
	RecallLimit int `yaml:"recall_limit"`

	// FallbackScanLimit bounds the client-side similarity scan when the
	// database-side search path is unavailable.
	FallbackScanLimit int `yaml:"fallback_scan_limit"`

	// Batch embedding settings
	BatchChunkSize    int    `yaml:"batch_chunk_size"`
	BatchChunkPause   string `yaml:"batch_chunk_pause"`
	BatchMinTextChars int    `yaml:"batch_min_text_chars"`

	// Reflection and journal excerpts in the context are truncated to
	// this many characters.
	ExcerptLimit int `yaml:"excerpt_limit"`
}

// DefaultMemoryConfig returns sensible defaults.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		SimilarityThreshold: 0.75,
		RecallLimit:         5,
		FallbackScanLimit:   50,
		BatchChunkSize:      5,
		BatchChunkPause:     "1s",
		BatchMinTextChars:   10,
		ExcerptLimit:        500,
	}
}
