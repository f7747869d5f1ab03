package scoring

import (
	"math"
	"strings"

	"marketpulse/internal/domain/mention"
)

// Phrase lists for the rule-based model. Each hit moves the score by 0.1.
var (
	bullishPhrases = []string{
		"beat estimates", "upgrade", "strong demand", "record high",
		"buyback", "raised guidance", "order win", "share gain",
	}
	bearishPhrases = []string{
		"missed estimates", "downgrade", "investigation", "default",
		"selloff", "cut guidance", "margin pressure", "recall",
	}
)

// keywordModel scores on fixed bullish/bearish phrase hits
type keywordModel struct{}

func (m *keywordModel) Name() string { return "keyword_rules" }

func (m *keywordModel) Score(text string) mention.ModelScore {
	lower := strings.ToLower(text)

	score := 0.0
	for _, phrase := range bullishPhrases {
		if strings.Contains(lower, phrase) {
			score += 0.1
		}
	}
	for _, phrase := range bearishPhrases {
		if strings.Contains(lower, phrase) {
			score -= 0.1
		}
	}
	score = clamp(score, -1, 1)

	return mention.ModelScore{
		ModelName:  m.Name(),
		Score:      score,
		Confidence: math.Min(0.6, absFloat(score)),
		Weight:     0.15,
	}
}

// ExtractSignals derives rule-based event signals from a mention text,
// independent of the numeric sentiment score
func ExtractSignals(text string) []mention.Signal {
	lower := strings.ToLower(text)

	var signals []mention.Signal
	if strings.Contains(lower, "downgrade") || strings.Contains(lower, "cut to") {
		signals = append(signals, mention.Signal{
			Type: "analyst", Description: "Analyst downgrade", Strength: 0.7,
		})
	}
	if strings.Contains(lower, "upgrade") {
		signals = append(signals, mention.Signal{
			Type: "analyst", Description: "Analyst upgrade", Strength: 0.7,
		})
	}
	if strings.Contains(lower, "investigation") || strings.Contains(lower, "probe") {
		signals = append(signals, mention.Signal{
			Type: "risk", Description: "Regulatory investigation mentioned", Strength: 0.6,
		})
	}
	if strings.Contains(lower, "record high") || strings.Contains(lower, "all-time high") {
		signals = append(signals, mention.Signal{
			Type: "momentum", Description: "Record high mention", Strength: 0.5,
		})
	}

	return signals
}
