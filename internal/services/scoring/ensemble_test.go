package scoring

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/domain/mention"
)

func TestAnalyzeBlankTextYieldsNoResult(t *testing.T) {
	e := NewEnsemble()

	for _, text := range []string{"", "   ", "\n\t"} {
		result, err := e.Analyze(context.Background(), text)
		require.NoError(t, err)
		assert.Nil(t, result)
	}
}

func TestAnalyzePositiveText(t *testing.T) {
	e := NewEnsemble()

	result, err := e.Analyze(context.Background(), "Company beat estimates with record profit, strong demand and an analyst upgrade")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Positive(t, result.Score)
	assert.Equal(t, mention.LabelPositive, result.Label)
	assert.Len(t, result.Models, 3)
}

func TestAnalyzeNegativeText(t *testing.T) {
	e := NewEnsemble()

	result, err := e.Analyze(context.Background(), "Shares crash after fraud investigation, analyst downgrade and missed estimates trigger selloff")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Negative(t, result.Score)
	assert.Equal(t, mention.LabelNegative, result.Label)
}

func TestAnalyzeBoundsHoldForArbitraryText(t *testing.T) {
	e := NewEnsemble()

	texts := []string{
		"profit profit profit growth surge rally boom win strong bullish upgrade",
		"loss crash fraud default bankruptcy collapse plunge bearish downgrade weak",
		"the quick brown fox jumps over the lazy dog",
		"q3 results due next week, board meeting scheduled",
	}

	for _, text := range texts {
		result, err := e.Analyze(context.Background(), text)
		require.NoError(t, err)
		require.NotNil(t, result)

		assert.GreaterOrEqual(t, result.Score, -1.0, text)
		assert.LessOrEqual(t, result.Score, 1.0, text)
		assert.GreaterOrEqual(t, result.Confidence, 0.0, text)
		assert.LessOrEqual(t, result.Confidence, 1.0, text)
	}
}

func TestDetermineLabelThresholdsInclusive(t *testing.T) {
	thresholds := DefaultThresholds()

	assert.Equal(t, mention.LabelPositive, DetermineLabel(0.15, thresholds))
	assert.Equal(t, mention.LabelNegative, DetermineLabel(-0.15, thresholds))
	assert.Equal(t, mention.LabelNeutral, DetermineLabel(0.149, thresholds))
	assert.Equal(t, mention.LabelNeutral, DetermineLabel(-0.149, thresholds))
	assert.Equal(t, mention.LabelNeutral, DetermineLabel(0, thresholds))
}

func TestConsensusScoreWeighting(t *testing.T) {
	models := []mention.ModelScore{
		{Score: 1, Weight: 0.75},
		{Score: 0, Weight: 0.25},
	}
	assert.InDelta(t, 0.75, consensusScore(models), 1e-9)

	// missing weight defaults to 0.25
	models = []mention.ModelScore{
		{Score: 0.8, Weight: 0.25},
		{Score: 0.4},
	}
	assert.InDelta(t, 0.6, consensusScore(models), 1e-9)

	assert.Zero(t, consensusScore(nil))
}

func TestConsensusConfidenceAgreement(t *testing.T) {
	agreeing := []mention.ModelScore{
		{Score: 0.5, Confidence: 0.8},
		{Score: 0.5, Confidence: 0.8},
	}
	disagreeing := []mention.ModelScore{
		{Score: 0.9, Confidence: 0.8},
		{Score: -0.9, Confidence: 0.8},
	}

	assert.Greater(t, consensusConfidence(agreeing), consensusConfidence(disagreeing))

	// missing per-model confidence defaults to 0.5
	defaulted := consensusConfidence([]mention.ModelScore{{Score: 0}})
	assert.InDelta(t, 0.75, defaulted, 1e-9)
}

func TestAnalyzeWithRemoteModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[[{"label":"positive","score":0.92},{"label":"negative","score":0.03},{"label":"neutral","score":0.05}]]`))
	}))
	defer server.Close()

	remote := NewFinBERTModel(server.URL, "test-key", time.Second)
	require.NotNil(t, remote)

	e := NewEnsemble(WithRemoteModel(remote))
	result, err := e.Analyze(context.Background(), "Strong quarterly earnings beat estimates")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Len(t, result.Models, 4)
}

func TestAnalyzeRemoteFailureDegradesQuietly(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	remote := NewFinBERTModel(server.URL, "test-key", time.Second)
	e := NewEnsemble(WithRemoteModel(remote))

	result, err := e.Analyze(context.Background(), "Strong quarterly earnings beat estimates")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Len(t, result.Models, 3, "failed remote model must be excluded, not fatal")
}

func TestNewFinBERTModelWithoutKey(t *testing.T) {
	assert.Nil(t, NewFinBERTModel("https://example.com", "", time.Second))
}

func TestExtractSignals(t *testing.T) {
	signals := ExtractSignals("Broker upgrade follows record high close; regulator opens investigation")

	types := make(map[string]int)
	for _, s := range signals {
		types[s.Type]++
	}
	assert.Equal(t, 1, types["analyst"])
	assert.Equal(t, 1, types["risk"])
	assert.Equal(t, 1, types["momentum"])

	assert.Empty(t, ExtractSignals("nothing notable here"))
}

func TestKeywordModelPhraseHits(t *testing.T) {
	m := &keywordModel{}

	bullish := m.Score("company beat estimates after upgrade and strong demand")
	assert.InDelta(t, 0.3, bullish.Score, 1e-9)
	assert.Equal(t, 0.15, bullish.Weight)

	bearish := m.Score("downgrade follows investigation and margin pressure")
	assert.InDelta(t, -0.3, bearish.Score, 1e-9)
}

func TestLexiconModelDirection(t *testing.T) {
	m := &lexiconModel{}

	up := m.Score("profit growth strong rally")
	down := m.Score("loss fraud weak crash")

	assert.Positive(t, up.Score)
	assert.Negative(t, down.Score)
	assert.Equal(t, 0.25, up.Weight)
}

func TestPolarityModelNegation(t *testing.T) {
	m := &polarityModel{}

	plain := m.Score("the results were strong")
	negated := m.Score("the results were not strong")

	assert.Greater(t, plain.Score, negated.Score)
	assert.Equal(t, 0.35, plain.Weight)
}
