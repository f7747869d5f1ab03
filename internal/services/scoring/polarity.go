package scoring

import (
	"math"

	"marketpulse/internal/domain/mention"
)

// Modifier words adjusting the valence of the following token
var (
	intensifiers = map[string]float64{
		"very": 1.3, "extremely": 1.5, "highly": 1.3, "sharply": 1.4,
		"significantly": 1.4, "strongly": 1.3, "slightly": 0.7,
		"marginally": 0.7, "somewhat": 0.8,
	}
	negations = map[string]bool{
		"not": true, "no": true, "never": true, "without": true,
		"hardly": true, "barely": true, "fails": true, "failed": true,
	}
)

// polarityModel is a general valence model: token valences with negation
// and intensity handling, compound-normalized like VADER
type polarityModel struct{}

func (m *polarityModel) Name() string { return "polarity" }

func (m *polarityModel) Score(text string) mention.ModelScore {
	tokens := tokenize(text)

	sum := 0.0
	positive := 0
	negative := 0
	for i, tok := range tokens {
		valence := lexiconValences[tok]
		if valence == 0 {
			continue
		}

		// Look back one token for a modifier
		if i > 0 {
			prev := tokens[i-1]
			if mult, ok := intensifiers[prev]; ok {
				valence *= mult
			}
			if negations[prev] {
				valence = -valence * 0.74
			}
		}

		sum += valence
		if valence > 0 {
			positive++
		} else {
			negative++
		}
	}

	// Compound normalization keeps long texts bounded in [-1, 1]
	compound := sum / math.Sqrt(sum*sum+15)

	neutralRatio := 1.0
	if len(tokens) > 0 {
		neutralRatio = float64(len(tokens)-positive-negative) / float64(len(tokens))
	}

	return mention.ModelScore{
		ModelName:  m.Name(),
		Score:      clamp(compound, -1, 1),
		Confidence: clamp(1-absFloat(neutralRatio-0.5), 0, 1),
		Weight:     0.35,
	}
}
