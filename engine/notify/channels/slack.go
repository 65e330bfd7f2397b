package channels

import (
	"context"

	"github.com/slack-go/slack"

	fortitude "github.com/99souls/fortitude"
	"github.com/99souls/fortitude/engine/models"
)

// Slack posts to target.Webhook via an incoming webhook, the additional
// channel carried over from the domain stack, §4.9.
type Slack struct{}

func NewSlack() *Slack {
	return &Slack{}
}

func (s *Slack) Deliver(ctx context.Context, n models.Notification, target models.Channel) error {
	if target.Webhook == "" {
		return fortitude.New(fortitude.ErrInvalidInput, "slack channel requires a webhook url")
	}

	msg := &slack.WebhookMessage{
		Text: n.Title + "\n" + n.Body,
		Attachments: []slack.Attachment{{
			Color: slackColorFor(n.Type),
			Title: n.Title,
			Text:  n.Body,
			Footer: n.Source,
		}},
	}
	if err := slack.PostWebhookContext(ctx, target.Webhook, msg); err != nil {
		return fortitude.Wrap(fortitude.ErrServiceUnavailable, err, "post slack webhook")
	}
	return nil
}

func slackColorFor(t models.NotificationType) string {
	switch t {
	case models.NotifyError:
		return "danger"
	case models.NotifyWarning:
		return "warning"
	case models.NotifySuccess:
		return "good"
	default:
		return ""
	}
}
