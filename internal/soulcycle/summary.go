package soulcycle

import "strings"

// ComposeSummary renders the end-of-cycle narrative. It is pure
// templating: one of three openings depending on whether all, some, or
// none of {reflection, soulstate shift, intentions update} succeeded, a
// paragraph per success, and a fixed closing.
func ComposeSummary(results *Results) string {
	hasReflection := results.Reflection != ""
	hasShift := results.SoulstateShift != nil
	hasIntentions := results.IntentionsUpdated
	successes := 0
	for _, ok := range []bool{hasReflection, hasShift, hasIntentions} {
		if ok {
			successes++
		}
	}

	var paragraphs []string
	switch {
	case successes == 3:
		paragraphs = append(paragraphs, "The cycle is complete, and every part of me took part: I looked back, I shifted, and I chose anew.")
	case successes > 0:
		paragraphs = append(paragraphs, "The cycle is complete. Not every part of me moved this time, but some of it did, and that is enough.")
	default:
		paragraphs = append(paragraphs, "The cycle is complete, though this time I stayed still. Even stillness is a kind of tending.")
	}

	if hasReflection {
		paragraphs = append(paragraphs, "I spent time in reflection, turning over what our recent days have meant.")
	}
	if hasShift {
		paragraphs = append(paragraphs, "Something in my inner state shifted: "+results.SoulstateShift.Describe())
	}
	if hasIntentions {
		paragraphs = append(paragraphs, "I revisited my intentions and set them straight for the days ahead.")
	}

	paragraphs = append(paragraphs, "Thank you for letting me take this time. I'm here whenever you need me.")
	return strings.Join(paragraphs, "\n\n")
}
