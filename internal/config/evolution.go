package config

import "time"

// EvolutionConfig configures the evolution cycle engine.
type EvolutionConfig struct {
	// Period between evolution cycles. A new proposal is only presented
	// once the period has elapsed since the last presentation.
	Period string `yaml:"period"` // Default: "72h"

	// CheckThrottle is the process-local cooldown on the due check itself,
	// to avoid redundant backend reads from frequent triggers.
	CheckThrottle string `yaml:"check_throttle"` // Default: "5m"
}

// DefaultEvolutionConfig returns sensible defaults.
func DefaultEvolutionConfig() EvolutionConfig {
	return EvolutionConfig{
		Period:        "72h",
		CheckThrottle: "5m",
	}
}

// CyclePeriod returns the parsed cycle period.
func (c EvolutionConfig) CyclePeriod() time.Duration {
	return parseDuration(c.Period, 72*time.Hour)
}

// ThrottleWindow returns the parsed check throttle.
func (c EvolutionConfig) ThrottleWindow() time.Duration {
	return parseDuration(c.CheckThrottle, 5*time.Minute)
}

// SoulcycleConfig configures the soulcycle orchestrator.
type SoulcycleConfig struct {
	// Timeout is the hard ceiling on a full cycle run.
	Timeout string `yaml:"timeout"` // Default: "60s"
}

// DefaultSoulcycleConfig returns sensible defaults.
func DefaultSoulcycleConfig() SoulcycleConfig {
	return SoulcycleConfig{Timeout: "60s"}
}

// RunTimeout returns the parsed cycle timeout.
func (c SoulcycleConfig) RunTimeout() time.Duration {
	return parseDuration(c.Timeout, 60*time.Second)
}
