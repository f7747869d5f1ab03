package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"marketpulse/internal/domain/alert"
	"marketpulse/pkg/errors"
)

const webhookTimeout = 5 * time.Second

// Dispatcher delivers one queued alert event over a single channel type.
// A nil return means delivered; any error is recorded on the event.
type Dispatcher interface {
	Deliver(ctx context.Context, rule *alert.Rule, event *alert.Event) error
}

// WebhookDispatcher POSTs the event payload to the rule's destination URL
type WebhookDispatcher struct {
	client *http.Client
}

var _ Dispatcher = (*WebhookDispatcher)(nil)

func NewWebhookDispatcher(client *http.Client) *WebhookDispatcher {
	if client == nil {
		client = &http.Client{Timeout: webhookTimeout}
	}
	return &WebhookDispatcher{client: client}
}

func (d *WebhookDispatcher) Deliver(ctx context.Context, rule *alert.Rule, event *alert.Event) error {
	if rule.Channel.Destination == "" {
		return errors.Wrap(errors.ErrDispatchFailed, "webhook destination missing")
	}

	body, err := json.Marshal(event.Payload)
	if err != nil {
		return errors.Wrap(err, "encode webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rule.Channel.Destination, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "post webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Wrapf(errors.ErrDispatchFailed, "webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// EmailDispatcher resolves the recipient and hands off to the mail
// transport. Destination on the rule wins; otherwise the owner's
// registered address is looked up.
type EmailDispatcher struct {
	sender   alert.MailSender
	resolver alert.RecipientResolver
}

var _ Dispatcher = (*EmailDispatcher)(nil)

func NewEmailDispatcher(sender alert.MailSender, resolver alert.RecipientResolver) *EmailDispatcher {
	return &EmailDispatcher{sender: sender, resolver: resolver}
}

func (d *EmailDispatcher) Deliver(ctx context.Context, rule *alert.Rule, event *alert.Event) error {
	recipient := rule.Channel.Destination
	if recipient == "" && d.resolver != nil && rule.Owner != "" {
		resolved, err := d.resolver.EmailFor(ctx, rule.Owner)
		if err == nil {
			recipient = resolved
		}
	}
	if recipient == "" {
		return errors.ErrNoRecipient
	}
	if d.sender == nil {
		return errors.Wrap(errors.ErrDispatchFailed, "mail transport not configured")
	}

	subject := fmt.Sprintf("Alert: %s - %s", rule.Name, rule.Symbol)
	body := event.Summary
	if details, err := json.MarshalIndent(event.Payload, "", "  "); err == nil {
		body = fmt.Sprintf("%s\n\nDetails:\n%s", event.Summary, details)
	}

	return d.sender.Send(ctx, recipient, subject, body)
}

// InAppDispatcher marks delivery implicit: the stored event record is the
// notification
type InAppDispatcher struct{}

var _ Dispatcher = (*InAppDispatcher)(nil)

func (d *InAppDispatcher) Deliver(context.Context, *alert.Rule, *alert.Event) error {
	return nil
}
