package memory

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// FactExtractor scans conversation text for statements worth keeping as
// permanent facts. It is a best-effort heuristic layer: false negatives
// are expected and fine, the anchored patterns keep false positives rare.
type FactExtractor struct {
	subject  string
	patterns []factPattern
}

type factPattern struct {
	re       *regexp.Regexp
	template string // uses %s for subject, $1/$2 style groups expanded first
}

// NewFactExtractor builds an extractor attributing facts to the given
// subject (the owner's display name).
func NewFactExtractor(subject string) *FactExtractor {
	subject = titleCase(subject)
	return &FactExtractor{
		subject: subject,
		patterns: []factPattern{
			// "my boyfriend's name is Dan" (user speaking)
			{
				re:       regexp.MustCompile(`(?i)\bmy (boyfriend|girlfriend|husband|wife|partner)'s name is (\w+)`),
				template: "%s's $1's name is $2",
			},
			// "your boyfriend's name is Dan" (assistant recalling)
			{
				re:       regexp.MustCompile(`(?i)\byour (boyfriend|girlfriend|husband|wife|partner)'s name is (\w+)`),
				template: "%s's $1's name is $2",
			},
			// "my dog's name is Rex"
			{
				re:       regexp.MustCompile(`(?i)\bmy (dog|cat|pet|bird)'s name is (\w+)`),
				template: "%s's $1's name is $2",
			},
			{
				re:       regexp.MustCompile(`(?i)\byour (dog|cat|pet|bird)'s name is (\w+)`),
				template: "%s's $1's name is $2",
			},
			// "my birthday is June 4th"
			{
				re:       regexp.MustCompile(`(?i)\bmy birthday is ([\w ]+?)(?:\.|,|$)`),
				template: "%s's birthday is $1",
			},
			// "my favorite color is teal"
			{
				re:       regexp.MustCompile(`(?i)\bmy favou?rite (\w+) is (\w+)`),
				template: "%s's favorite $1 is $2",
			},
		},
	}
}

// Extract returns the facts found in text, normalized and deduplicated.
func (e *FactExtractor) Extract(text string) []string {
	var facts []string
	seen := make(map[string]bool)

	for _, p := range e.patterns {
		matches := p.re.FindAllStringSubmatchIndex(text, -1)
		for _, m := range matches {
			expanded := string(p.re.ExpandString(nil, p.template, text, m))
			fact := strings.TrimSpace(fmt.Sprintf(expanded, e.subject))
			fact = normalizeFact(fact)
			if fact == "" || seen[fact] {
				continue
			}
			seen[fact] = true
			facts = append(facts, fact)
		}
	}
	return facts
}

// normalizeFact collapses internal whitespace.
func normalizeFact(fact string) string {
	return strings.Join(strings.Fields(fact), " ")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
