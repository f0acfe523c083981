package evolution

import "testing"

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier()

	tests := []struct {
		text string
		want Verdict
	}{
		{"yes", VerdictAffirm},
		{"Yeah, go ahead!", VerdictAffirm},
		{"sounds good to me", VerdictAffirm},
		{"OKAY", VerdictAffirm},
		{"I approve", VerdictAffirm},
		{"accept", VerdictAffirm},
		{"agreed", VerdictAffirm},
		{"confirm", VerdictAffirm},
		{"evolve", VerdictAffirm},
		{"no", VerdictDecline},
		{"nah, not yet", VerdictDecline},
		{"let's skip this one", VerdictDecline},
		{"maybe later", VerdictDecline},
		{"wait", VerdictDecline},
		{"I reject that", VerdictDecline},
		{"negative", VerdictDecline},
		{"stop", VerdictDecline},
		{"yes, but not now", VerdictAffirm}, // affirmative wins on overlap
		{"tell me more about it first", VerdictNeither},
		{"", VerdictNeither},
		{"yesterday was fun", VerdictNeither}, // word boundary, not substring
	}
	for _, tt := range tests {
		if got := c.Classify(tt.text); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}
