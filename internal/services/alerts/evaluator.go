package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marketpulse/internal/domain/alert"
	"marketpulse/internal/domain/mention"
	"marketpulse/internal/metrics"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

// Evaluator matches live metric values against persisted alert rules and
// dispatches matched rules through their configured channel. One rule's
// dispatch failure never blocks evaluation of the remaining rules.
type Evaluator struct {
	repo        alert.Repository
	dispatchers map[alert.ChannelType]Dispatcher
	log         *logger.Logger
}

func NewEvaluator(repo alert.Repository, dispatchers map[alert.ChannelType]Dispatcher) *Evaluator {
	if dispatchers == nil {
		dispatchers = map[alert.ChannelType]Dispatcher{}
	}
	if _, ok := dispatchers[alert.ChannelInApp]; !ok {
		dispatchers[alert.ChannelInApp] = &InAppDispatcher{}
	}
	return &Evaluator{
		repo:        repo,
		dispatchers: dispatchers,
		log:         logger.Get().With("component", "alerts"),
	}
}

// EvaluateSymbol runs every active rule for the symbol against the
// sentiment aggregate and/or a generic named-metric context. Either input
// may be nil; rules whose metric cannot be resolved to a number are
// skipped, not failed.
func (e *Evaluator) EvaluateSymbol(ctx context.Context, symbol string, agg *mention.Aggregate, metricContext map[string]float64) error {
	rules, err := e.repo.ActiveRules(ctx, symbol)
	if err != nil {
		return errors.Wrap(err, "load active rules")
	}

	now := time.Now().UTC()
	for i := range rules {
		rule := &rules[i]

		if err := ctx.Err(); err != nil {
			return err
		}

		value, ok := resolveValue(rule.Condition.Metric, agg, metricContext)
		if !ok {
			continue
		}
		if rule.InCooldown(now) {
			continue
		}

		totalMentions := 0
		if agg != nil {
			totalMentions = agg.TotalMentions
		}
		if totalMentions < rule.Condition.MinMentions {
			continue
		}

		if !matchOperator(value, rule.Condition.Operator, rule.Condition.Threshold) {
			continue
		}

		e.dispatch(ctx, rule, buildPayload(rule, value, agg, now))
	}

	return nil
}

// resolveValue picks the observed value for a rule's metric
func resolveValue(metric alert.Metric, agg *mention.Aggregate, metricContext map[string]float64) (float64, bool) {
	if metric == alert.MetricSentiment {
		if agg == nil {
			return 0, false
		}
		return agg.AvgSentiment, true
	}
	value, ok := metricContext[string(metric)]
	return value, ok
}

// matchOperator applies a rule operator. crosses_above/crosses_below are
// level checks, see the Operator doc.
func matchOperator(value float64, op alert.Operator, threshold float64) bool {
	switch op {
	case alert.OpLT:
		return value < threshold
	case alert.OpLTE:
		return value <= threshold
	case alert.OpGT:
		return value > threshold
	case alert.OpGTE:
		return value >= threshold
	case alert.OpCrossesAbove:
		return value >= threshold
	case alert.OpCrossesBelow:
		return value <= threshold
	default:
		return false
	}
}

func buildPayload(rule *alert.Rule, value float64, agg *mention.Aggregate, now time.Time) alert.Payload {
	metricName := "Sentiment"
	if rule.Condition.Metric != alert.MetricSentiment {
		metricName = string(rule.Condition.Metric)
	}

	payload := alert.Payload{
		"symbol":      rule.Symbol,
		"summary":     fmt.Sprintf("%s %.2f crossed %s %g", metricName, value, rule.Condition.Operator, rule.Condition.Threshold),
		"value":       value,
		"operator":    string(rule.Condition.Operator),
		"threshold":   rule.Condition.Threshold,
		"triggeredAt": now,
	}
	if agg != nil && rule.Condition.Metric == alert.MetricSentiment {
		payload["aggregate"] = agg
	}
	return payload
}

// dispatch creates the queued event, delivers it through the channel
// strategy and records the outcome. Never returns an error: failures are
// captured on the event.
func (e *Evaluator) dispatch(ctx context.Context, rule *alert.Rule, payload alert.Payload) {
	summary, _ := payload["summary"].(string)

	event := &alert.Event{
		ID:        uuid.New(),
		RuleID:    rule.ID,
		Owner:     rule.Owner,
		Symbol:    rule.Symbol,
		Channel:   rule.Channel.Type,
		Status:    alert.EventQueued,
		Summary:   summary,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	if err := e.repo.InsertEvent(ctx, event); err != nil {
		e.log.Errorw("failed to queue alert event", "rule", rule.Name, "symbol", rule.Symbol, "error", err)
		return
	}

	dispatcher, ok := e.dispatchers[rule.Channel.Type]
	if !ok {
		// unconfigured channel types degrade to in-app delivery
		dispatcher = e.dispatchers[alert.ChannelInApp]
	}

	if err := dispatcher.Deliver(ctx, rule, event); err != nil {
		e.log.Warnw("alert dispatch failed",
			"rule", rule.Name, "symbol", rule.Symbol, "channel", rule.Channel.Type, "error", err)
		if markErr := e.repo.MarkEventFailed(ctx, event.ID, err.Error()); markErr != nil {
			e.log.Errorw("failed to mark alert event failed", "event_id", event.ID, "error", markErr)
		}
		metrics.AlertsDispatched.WithLabelValues(string(rule.Channel.Type), "failed").Inc()
		return
	}

	now := time.Now().UTC()
	if err := e.repo.MarkEventSent(ctx, event.ID, now); err != nil {
		e.log.Errorw("failed to mark alert event sent", "event_id", event.ID, "error", err)
	}
	if err := e.repo.UpdateLastTriggered(ctx, rule.ID, now); err != nil {
		e.log.Errorw("failed to update rule trigger time", "rule_id", rule.ID, "error", err)
	}
	metrics.AlertsDispatched.WithLabelValues(string(rule.Channel.Type), "sent").Inc()
}

// RecentEvents returns the latest dispatch events for a symbol
func (e *Evaluator) RecentEvents(ctx context.Context, symbol string, limit int) ([]alert.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	return e.repo.EventsForSymbol(ctx, symbol, limit)
}
