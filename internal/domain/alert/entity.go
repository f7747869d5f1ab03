package alert

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"marketpulse/pkg/errors"
)

// Metric identifies which observed value a rule compares against
type Metric string

const (
	MetricSentiment   Metric = "sentiment"
	MetricPriceChange Metric = "price_change"
	MetricVolumeSpike Metric = "volume_spike"
	MetricComposite   Metric = "composite"
)

// Operator compares an observed value against a rule threshold.
// crosses_above/crosses_below are level checks (>= / <=), not true
// edge-detection: the evaluator keeps no memory of the prior value.
type Operator string

const (
	OpLT           Operator = "lt"
	OpLTE          Operator = "lte"
	OpGT           Operator = "gt"
	OpGTE          Operator = "gte"
	OpCrossesAbove Operator = "crosses_above"
	OpCrossesBelow Operator = "crosses_below"
)

// ChannelType selects the delivery transport for a triggered rule
type ChannelType string

const (
	ChannelEmail   ChannelType = "email"
	ChannelWebhook ChannelType = "webhook"
	ChannelInApp   ChannelType = "in-app"
)

// EventStatus is the delivery state of one alert event
type EventStatus string

const (
	EventQueued EventStatus = "queued"
	EventSent   EventStatus = "sent"
	EventFailed EventStatus = "failed"
)

// Condition is the trigger expression of a rule
type Condition struct {
	Metric        Metric   `json:"metric"`
	Operator      Operator `json:"operator"`
	Threshold     float64  `json:"threshold"`
	MinMentions   int      `json:"minMentions"`
	LookbackHours int      `json:"lookbackHours"`
}

// Channel is the delivery target of a rule
type Channel struct {
	Type        ChannelType `json:"type"`
	Destination string      `json:"destination"`
}

// Rule is a user-defined alert threshold rule. The core only reads rules
// and updates LastTriggeredAt; rule CRUD belongs to an external surface.
type Rule struct {
	ID              uuid.UUID  `db:"id"`
	Owner           string     `db:"owner"`
	Name            string     `db:"name"`
	Symbol          string     `db:"symbol"`
	Condition       Condition  `db:"condition"`
	Channel         Channel    `db:"channel"`
	CooldownMinutes int        `db:"cooldown_minutes"`
	IsActive        bool       `db:"is_active"`
	LastTriggeredAt *time.Time `db:"last_triggered_at"`
	CreatedAt       time.Time  `db:"created_at"`
}

// InCooldown reports whether the rule fired within its cooldown window
func (r *Rule) InCooldown(now time.Time) bool {
	if r.LastTriggeredAt == nil || r.CooldownMinutes <= 0 {
		return false
	}
	return now.Sub(*r.LastTriggeredAt) < time.Duration(r.CooldownMinutes)*time.Minute
}

// Event records one dispatch attempt for a triggered rule.
// Created queued, transitioned exactly once to sent or failed.
type Event struct {
	ID        uuid.UUID   `db:"id"`
	RuleID    uuid.UUID   `db:"rule_id"`
	Owner     string      `db:"owner"`
	Symbol    string      `db:"symbol"`
	Channel   ChannelType `db:"channel"`
	Status    EventStatus `db:"status"`
	Summary   string      `db:"summary"`
	Payload   Payload     `db:"payload"`
	CreatedAt time.Time   `db:"created_at"`
	SentAt    *time.Time  `db:"sent_at"`
	Error     string      `db:"error"`
}

// Payload is the JSON body delivered to the channel
type Payload map[string]interface{}

func (p Payload) Value() (driver.Value, error) { return json.Marshal(p) }

func (p *Payload) Scan(src interface{}) error {
	switch data := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(data, p)
	case string:
		return json.Unmarshal([]byte(data), p)
	default:
		return errors.Newf("unsupported payload source type %T", src)
	}
}

func (c Condition) Value() (driver.Value, error) { return json.Marshal(c) }

func (c *Condition) Scan(src interface{}) error {
	switch data := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(data, c)
	case string:
		return json.Unmarshal([]byte(data), c)
	default:
		return errors.Newf("unsupported condition source type %T", src)
	}
}

func (c Channel) Value() (driver.Value, error) { return json.Marshal(c) }

func (c *Channel) Scan(src interface{}) error {
	switch data := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(data, c)
	case string:
		return json.Unmarshal([]byte(data), c)
	default:
		return errors.Newf("unsupported channel source type %T", src)
	}
}
