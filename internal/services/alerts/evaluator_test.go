package alerts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/domain/alert"
	"marketpulse/internal/domain/mention"
	"marketpulse/pkg/errors"
)

type memoryAlertRepo struct {
	rules  []alert.Rule
	events map[uuid.UUID]*alert.Event
	order  []uuid.UUID
}

var _ alert.Repository = (*memoryAlertRepo)(nil)

func newMemoryAlertRepo(rules ...alert.Rule) *memoryAlertRepo {
	return &memoryAlertRepo{rules: rules, events: map[uuid.UUID]*alert.Event{}}
}

func (r *memoryAlertRepo) ActiveRules(_ context.Context, symbol string) ([]alert.Rule, error) {
	var out []alert.Rule
	for _, rule := range r.rules {
		if rule.Symbol == symbol && rule.IsActive {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *memoryAlertRepo) UpdateLastTriggered(_ context.Context, ruleID uuid.UUID, at time.Time) error {
	for i := range r.rules {
		if r.rules[i].ID == ruleID {
			r.rules[i].LastTriggeredAt = &at
		}
	}
	return nil
}

func (r *memoryAlertRepo) InsertEvent(_ context.Context, e *alert.Event) error {
	copied := *e
	r.events[e.ID] = &copied
	r.order = append(r.order, e.ID)
	return nil
}

func (r *memoryAlertRepo) MarkEventSent(_ context.Context, eventID uuid.UUID, at time.Time) error {
	if e, ok := r.events[eventID]; ok {
		e.Status = alert.EventSent
		e.SentAt = &at
	}
	return nil
}

func (r *memoryAlertRepo) MarkEventFailed(_ context.Context, eventID uuid.UUID, errMsg string) error {
	if e, ok := r.events[eventID]; ok {
		e.Status = alert.EventFailed
		e.Error = errMsg
	}
	return nil
}

func (r *memoryAlertRepo) EventsForSymbol(_ context.Context, symbol string, limit int) ([]alert.Event, error) {
	var out []alert.Event
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		if e := r.events[r.order[i]]; e.Symbol == symbol {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (r *memoryAlertRepo) singleEvent(t *testing.T) *alert.Event {
	t.Helper()
	require.Len(t, r.order, 1)
	return r.events[r.order[0]]
}

func sentimentRule(op alert.Operator, threshold float64, channel alert.Channel) alert.Rule {
	return alert.Rule{
		ID:     uuid.New(),
		Owner:  "user-1",
		Name:   "sentiment watch",
		Symbol: "TEST.NS",
		Condition: alert.Condition{
			Metric:      alert.MetricSentiment,
			Operator:    op,
			Threshold:   threshold,
			MinMentions: 1,
		},
		Channel:         channel,
		CooldownMinutes: 60,
		IsActive:        true,
		CreatedAt:       time.Now(),
	}
}

func bearishAggregate() *mention.Aggregate {
	return &mention.Aggregate{
		Symbol:        "TEST.NS",
		AvgSentiment:  -0.3,
		TotalMentions: 5,
		Trend:         mention.TrendBearish,
		DataAvailable: true,
	}
}

func TestEvaluateWebhookSentAndCooldownStamped(t *testing.T) {
	var received int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received++
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	repo := newMemoryAlertRepo(sentimentRule(alert.OpLT, -0.1, alert.Channel{Type: alert.ChannelWebhook, Destination: server.URL}))
	evaluator := NewEvaluator(repo, map[alert.ChannelType]Dispatcher{
		alert.ChannelWebhook: NewWebhookDispatcher(server.Client()),
	})

	require.NoError(t, evaluator.EvaluateSymbol(context.Background(), "TEST.NS", bearishAggregate(), nil))

	assert.Equal(t, 1, received)
	event := repo.singleEvent(t)
	assert.Equal(t, alert.EventSent, event.Status)
	assert.NotNil(t, event.SentAt)
	assert.NotNil(t, repo.rules[0].LastTriggeredAt)
}

func TestEvaluateCooldownBlocks(t *testing.T) {
	rule := sentimentRule(alert.OpLT, -0.1, alert.Channel{Type: alert.ChannelInApp})
	recent := time.Now().Add(-5 * time.Minute)
	rule.LastTriggeredAt = &recent

	repo := newMemoryAlertRepo(rule)
	evaluator := NewEvaluator(repo, nil)

	require.NoError(t, evaluator.EvaluateSymbol(context.Background(), "TEST.NS", bearishAggregate(), nil))
	assert.Empty(t, repo.order)
}

func TestEvaluateMinMentionsBlocks(t *testing.T) {
	rule := sentimentRule(alert.OpLT, -0.1, alert.Channel{Type: alert.ChannelInApp})
	rule.Condition.MinMentions = 10

	repo := newMemoryAlertRepo(rule)
	evaluator := NewEvaluator(repo, nil)

	// aggregate has 5 mentions, below the evidence gate
	require.NoError(t, evaluator.EvaluateSymbol(context.Background(), "TEST.NS", bearishAggregate(), nil))
	assert.Empty(t, repo.order)
}

func TestEvaluateEmailNoRecipientFails(t *testing.T) {
	repo := newMemoryAlertRepo(sentimentRule(alert.OpLT, -0.1, alert.Channel{Type: alert.ChannelEmail}))
	evaluator := NewEvaluator(repo, map[alert.ChannelType]Dispatcher{
		alert.ChannelEmail: NewEmailDispatcher(nil, nil),
	})

	require.NoError(t, evaluator.EvaluateSymbol(context.Background(), "TEST.NS", bearishAggregate(), nil))

	event := repo.singleEvent(t)
	assert.Equal(t, alert.EventFailed, event.Status)
	assert.Equal(t, errors.ErrNoRecipient.Error(), event.Error)
	assert.Nil(t, repo.rules[0].LastTriggeredAt, "failed dispatch must not stamp the cooldown")
}

type stubResolver struct{ email string }

func (r *stubResolver) EmailFor(context.Context, string) (string, error) {
	if r.email == "" {
		return "", errors.ErrNotFound
	}
	return r.email, nil
}

type captureSender struct {
	to, subject, body string
	err               error
}

func (s *captureSender) Send(_ context.Context, to, subject, body string) error {
	s.to, s.subject, s.body = to, subject, body
	return s.err
}

func TestEvaluateEmailResolvesOwnerAddress(t *testing.T) {
	sender := &captureSender{}
	repo := newMemoryAlertRepo(sentimentRule(alert.OpLT, -0.1, alert.Channel{Type: alert.ChannelEmail}))
	evaluator := NewEvaluator(repo, map[alert.ChannelType]Dispatcher{
		alert.ChannelEmail: NewEmailDispatcher(sender, &stubResolver{email: "owner@example.com"}),
	})

	require.NoError(t, evaluator.EvaluateSymbol(context.Background(), "TEST.NS", bearishAggregate(), nil))

	event := repo.singleEvent(t)
	assert.Equal(t, alert.EventSent, event.Status)
	assert.Equal(t, "owner@example.com", sender.to)
	assert.Contains(t, sender.subject, "TEST.NS")
	assert.Contains(t, sender.body, "Sentiment")
}

func TestEvaluateWebhookFailureRecordsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	repo := newMemoryAlertRepo(sentimentRule(alert.OpLT, -0.1, alert.Channel{Type: alert.ChannelWebhook, Destination: server.URL}))
	evaluator := NewEvaluator(repo, map[alert.ChannelType]Dispatcher{
		alert.ChannelWebhook: NewWebhookDispatcher(server.Client()),
	})

	require.NoError(t, evaluator.EvaluateSymbol(context.Background(), "TEST.NS", bearishAggregate(), nil))

	event := repo.singleEvent(t)
	assert.Equal(t, alert.EventFailed, event.Status)
	assert.Contains(t, event.Error, "502")
	assert.Nil(t, repo.rules[0].LastTriggeredAt)
}

func TestEvaluateNonNumericMetricSkipped(t *testing.T) {
	rule := sentimentRule(alert.OpGT, 3, alert.Channel{Type: alert.ChannelInApp})
	rule.Condition.Metric = alert.MetricPriceChange
	rule.Condition.MinMentions = 0

	repo := newMemoryAlertRepo(rule)
	evaluator := NewEvaluator(repo, nil)

	// no price_change in the metric context: rule is skipped, not failed
	require.NoError(t, evaluator.EvaluateSymbol(context.Background(), "TEST.NS", nil, map[string]float64{}))
	assert.Empty(t, repo.order)

	// with the metric present it fires through the in-app channel
	require.NoError(t, evaluator.EvaluateSymbol(context.Background(), "TEST.NS", nil, map[string]float64{"price_change": 4.2}))
	event := repo.singleEvent(t)
	assert.Equal(t, alert.EventSent, event.Status)
}

func TestEvaluateInAppSentImmediately(t *testing.T) {
	repo := newMemoryAlertRepo(sentimentRule(alert.OpLT, -0.1, alert.Channel{Type: alert.ChannelInApp}))
	evaluator := NewEvaluator(repo, nil)

	require.NoError(t, evaluator.EvaluateSymbol(context.Background(), "TEST.NS", bearishAggregate(), nil))

	event := repo.singleEvent(t)
	assert.Equal(t, alert.EventSent, event.Status)
	assert.NotNil(t, event.SentAt)
}

func TestMatchOperatorTable(t *testing.T) {
	cases := []struct {
		value     float64
		op        alert.Operator
		threshold float64
		want      bool
	}{
		{-0.3, alert.OpLT, -0.1, true},
		{-0.05, alert.OpLT, -0.1, false},
		{0.1, alert.OpLTE, 0.1, true},
		{0.5, alert.OpGT, 0.3, true},
		{0.3, alert.OpGT, 0.3, false},
		{0.3, alert.OpGTE, 0.3, true},
		{0.3, alert.OpCrossesAbove, 0.3, true},
		{0.29, alert.OpCrossesAbove, 0.3, false},
		{-0.3, alert.OpCrossesBelow, -0.3, true},
		{-0.29, alert.OpCrossesBelow, -0.3, false},
		{1, alert.Operator("unknown"), 0, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, matchOperator(tc.value, tc.op, tc.threshold),
			"value=%v op=%s threshold=%v", tc.value, tc.op, tc.threshold)
	}
}

func TestRecentEvents(t *testing.T) {
	repo := newMemoryAlertRepo(sentimentRule(alert.OpLT, -0.1, alert.Channel{Type: alert.ChannelInApp}))
	evaluator := NewEvaluator(repo, nil)

	require.NoError(t, evaluator.EvaluateSymbol(context.Background(), "TEST.NS", bearishAggregate(), nil))

	events, err := evaluator.RecentEvents(context.Background(), "TEST.NS", 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
