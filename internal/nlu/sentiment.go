package nlu

import (
	"strings"
)

// Small lexicon scorer. Each hit moves the turn score by a fixed step; the
// result is clamped to [-1, 1]. Negation ("not good") flips the following
// word's polarity.
var (
	positiveWords = map[string]bool{
		"thanks": true, "thank": true, "great": true, "good": true,
		"perfect": true, "awesome": true, "excellent": true, "love": true,
		"helpful": true, "appreciate": true, "wonderful": true, "happy": true,
	}
	negativeWords = map[string]bool{
		"bad": true, "terrible": true, "awful": true, "horrible": true,
		"angry": true, "furious": true, "useless": true, "broken": true,
		"worst": true, "unacceptable": true, "disappointed": true,
		"ridiculous": true, "frustrated": true, "hate": true, "scam": true,
	}
	negators = map[string]bool{
		"not": true, "never": true, "no": true, "don't": true, "doesn't": true,
	}
)

const sentimentStep = 0.4

// scoreSentiment computes the sentiment of one turn's text in [-1, 1].
func scoreSentiment(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	var score float64
	negated := false

	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'")
		switch {
		case negators[w]:
			negated = true
			continue
		case positiveWords[w]:
			if negated {
				score -= sentimentStep
			} else {
				score += sentimentStep
			}
		case negativeWords[w]:
			if negated {
				score += sentimentStep
			} else {
				score -= sentimentStep
			}
		}
		negated = false
	}

	// Exclamation-heavy negative messages read angrier.
	if score < 0 && strings.Count(text, "!") >= 2 {
		score -= sentimentStep / 2
	}

	return clamp(score, -1, 1)
}

// UpdateRunningSentiment folds a turn score into the conversation's
// exponentially weighted running average:
//
//	avg' = decay*avg + (1-decay)*turn
//
// A single angry message does not overwhelm a calm dialogue, but a
// sustained negative trend pulls the average below the escalation floor
// within a bounded number of turns.
func UpdateRunningSentiment(avg, turn, decay float64) float64 {
	return clamp(decay*avg+(1-decay)*turn, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
