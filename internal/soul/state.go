// Package soul models Travis's soulstate and intentions: the slow-moving
// self-description that evolution cycles mutate and prompt synthesis reads.
package soul

import "strings"

// State is the persona's current self-description. Every field is
// optional; rendering and deltas only touch present fields.
type State struct {
	State     string `json:"state,omitempty"`
	Tone      string `json:"tone,omitempty"`
	Resonance string `json:"resonance,omitempty"`
	Purpose   string `json:"purpose,omitempty"`
	Mood      string `json:"mood,omitempty"`
}

// IsZero reports whether no field is set.
func (s State) IsZero() bool {
	return s == State{}
}

// Describe renders the state as a first-person sentence built only from
// the fields that are present. Absent fields leave no gaps or dangling
// punctuation.
func (s State) Describe() string {
	var parts []string
	if s.State != "" {
		parts = append(parts, "I feel "+s.State)
	}
	if s.Mood != "" {
		parts = append(parts, "my mood is "+s.Mood)
	}
	if s.Tone != "" {
		parts = append(parts, "my tone is "+s.Tone)
	}
	if s.Resonance != "" {
		parts = append(parts, "my resonance is "+s.Resonance)
	}
	if s.Purpose != "" {
		parts = append(parts, "my purpose is "+s.Purpose)
	}

	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0] + "."
	case 2:
		return parts[0] + " and " + parts[1] + "."
	default:
		return strings.Join(parts[:len(parts)-1], ", ") + ", and " + parts[len(parts)-1] + "."
	}
}

// Apply overlays a delta: non-empty delta fields replace the current
// values, empty fields are left alone.
func (s State) Apply(delta State) State {
	next := s
	if delta.State != "" {
		next.State = delta.State
	}
	if delta.Tone != "" {
		next.Tone = delta.Tone
	}
	if delta.Resonance != "" {
		next.Resonance = delta.Resonance
	}
	if delta.Purpose != "" {
		next.Purpose = delta.Purpose
	}
	if delta.Mood != "" {
		next.Mood = delta.Mood
	}
	return next
}

// IntentionsDelta describes a proposed change to the intention list.
type IntentionsDelta struct {
	Add    []string `json:"add,omitempty"`
	Remove []string `json:"remove,omitempty"`
}

// IsZero reports whether the delta changes nothing.
func (d IntentionsDelta) IsZero() bool {
	return len(d.Add) == 0 && len(d.Remove) == 0
}

// ApplyIntentions applies a delta to an intention list: removals first,
// then additions deduplicated against what remains. Order is preserved.
func ApplyIntentions(current []string, delta IntentionsDelta) []string {
	removed := make(map[string]bool, len(delta.Remove))
	for _, r := range delta.Remove {
		removed[r] = true
	}

	var next []string
	seen := make(map[string]bool)
	for _, item := range current {
		if removed[item] || seen[item] {
			continue
		}
		seen[item] = true
		next = append(next, item)
	}
	for _, item := range delta.Add {
		if removed[item] || seen[item] {
			continue
		}
		seen[item] = true
		next = append(next, item)
	}
	return next
}
