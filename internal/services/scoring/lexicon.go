package scoring

import (
	"strings"
	"unicode"

	"marketpulse/internal/domain/mention"
)

// lexiconValences maps tokens to AFINN-style valences in [-5, 5].
// Skewed toward financial news vocabulary.
var lexiconValences = map[string]float64{
	// positive
	"gain": 2, "gains": 2, "surge": 3, "surges": 3, "surged": 3,
	"rally": 3, "rallies": 3, "soar": 3, "soars": 3, "soared": 3,
	"beat": 2, "beats": 2, "strong": 2, "stronger": 2, "growth": 2,
	"profit": 2, "profits": 2, "record": 1, "upgrade": 3, "upgraded": 3,
	"outperform": 3, "bullish": 3, "buy": 1, "buyback": 2, "dividend": 1,
	"expansion": 2, "win": 2, "wins": 2, "approval": 2, "approved": 2,
	"robust": 2, "recovery": 2, "rebound": 2, "momentum": 1, "optimistic": 2,
	"upbeat": 2, "jump": 2, "jumps": 2, "jumped": 2, "high": 1,

	// negative
	"loss": -2, "losses": -2, "drop": -2, "drops": -2, "dropped": -2,
	"fall": -2, "falls": -2, "fell": -2, "plunge": -3, "plunges": -3,
	"plunged": -3, "crash": -4, "crashes": -4, "miss": -2, "missed": -2,
	"weak": -2, "weaker": -2, "downgrade": -3, "downgraded": -3,
	"underperform": -3, "bearish": -3, "sell": -1, "selloff": -3,
	"default": -3, "fraud": -4, "investigation": -3, "probe": -2,
	"lawsuit": -3, "fine": -2, "penalty": -2, "debt": -1, "layoff": -3,
	"layoffs": -3, "decline": -2, "declines": -2, "declined": -2,
	"slump": -3, "warning": -2, "risk": -1, "concern": -1, "concerns": -1,
	"low": -1, "cut": -1, "cuts": -1, "bankruptcy": -5, "scandal": -4,
}

// lexiconModel scores text by summing token valences, normalized to [-1, 1]
type lexiconModel struct{}

func (m *lexiconModel) Name() string { return "lexicon" }

func (m *lexiconModel) Score(text string) mention.ModelScore {
	tokens := tokenize(text)

	raw := 0.0
	for _, tok := range tokens {
		raw += lexiconValences[tok]
	}

	normalized := clamp(raw/10, -1, 1)

	return mention.ModelScore{
		ModelName:  m.Name(),
		Score:      normalized,
		Confidence: clamp(absFloat(normalized), 0, 1),
		Weight:     0.25,
	}
}

// tokenize lowercases and splits on anything that is not a letter or digit
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
