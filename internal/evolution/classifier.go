package evolution

import "regexp"

// Verdict is the classification of an owner's reply to a pending proposal.
type Verdict int

const (
	// VerdictNeither means the reply is ordinary conversation, not an
	// answer to the proposal.
	VerdictNeither Verdict = iota
	// VerdictAffirm means the owner accepted the proposal.
	VerdictAffirm
	// VerdictDecline means the owner rejected the proposal.
	VerdictDecline
)

// Classifier decides whether a reply answers a pending proposal.
type Classifier interface {
	Classify(text string) Verdict
}

// KeywordClassifier matches affirmative and negative keywords on word
// boundaries. The affirmative set is evaluated first, so a reply matching
// both ("yes, but not now") counts as an affirmation.
type KeywordClassifier struct {
	affirm  *regexp.Regexp
	decline *regexp.Regexp
}

// NewKeywordClassifier builds the default classifier.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{
		affirm: regexp.MustCompile(`(?i)\b(yes|yeah|yep|yup|sure|ok|okay|approve|accept|agreed|confirm|evolve|absolutely|definitely|go ahead|do it|sounds good|please do|let's do it)\b`),
		decline: regexp.MustCompile(`(?i)\b(no|nope|nah|not now|not yet|wait|reject|negative|stop|don't|dont|later|skip|decline|pass|maybe later)\b`),
	}
}

// Classify returns the verdict for a reply.
func (c *KeywordClassifier) Classify(text string) Verdict {
	if c.affirm.MatchString(text) {
		return VerdictAffirm
	}
	if c.decline.MatchString(text) {
		return VerdictDecline
	}
	return VerdictNeither
}
