package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"marketpulse/internal/domain/mention"
	"marketpulse/pkg/errors"
)

const finbertMaxInputChars = 512

// FinBERTModel calls a hosted financial-domain sentiment classifier.
// The model is optional: construction returns nil without an API key, and
// callers treat any scoring error as "exclude from ensemble".
type FinBERTModel struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewFinBERTModel creates the remote model, or nil when no API key is set
func NewFinBERTModel(url, apiKey string, timeout time.Duration) *FinBERTModel {
	if apiKey == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 7 * time.Second
	}
	return &FinBERTModel{
		url:    url,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type finbertRequest struct {
	Inputs string `json:"inputs"`
}

type finbertLabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Score classifies the text remotely. Any failure is returned as an error
// so the ensemble can silently drop this member.
func (m *FinBERTModel) Score(ctx context.Context, text string) (*mention.ModelScore, error) {
	input := text
	if len(input) > finbertMaxInputChars {
		input = input[:finbertMaxInputChars]
	}

	body, err := json.Marshal(finbertRequest{Inputs: input})
	if err != nil {
		return nil, errors.Wrap(err, "finbert: encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "finbert: create request")
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrUpstreamUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Wrapf(errors.ErrUpstreamUnavailable, "finbert: status %d: %s", resp.StatusCode, string(msg))
	}

	var payload [][]finbertLabelScore
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "finbert: decode response")
	}
	if len(payload) == 0 || len(payload[0]) == 0 {
		return nil, errors.New("finbert: empty response")
	}

	labelScores := make(map[string]float64, len(payload[0]))
	for _, item := range payload[0] {
		labelScores[strings.ToLower(item.Label)] = item.Score
	}

	score := clamp(labelScores["positive"]-labelScores["negative"], -1, 1)

	return &mention.ModelScore{
		ModelName:  "finbert",
		Score:      score,
		Confidence: math.Max(labelScores["positive"], labelScores["negative"]),
		Weight:     0.4,
	}, nil
}
