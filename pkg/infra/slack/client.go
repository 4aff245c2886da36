package slack

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"

	"github.com/m-mizutani/herald/pkg/domain/interfaces"
	"github.com/m-mizutani/herald/pkg/domain/model"
	"github.com/m-mizutani/herald/pkg/domain/types"
)

// Config holds Slack incoming-webhook settings. The webhook URL embeds a
// credential and is masked in logs.
type Config struct {
	WebhookURL string `yaml:"webhook_url" toml:"webhook_url" masq:"secret"`
}

// Validate checks that the webhook destination is present.
func (x *Config) Validate() error {
	if x.WebhookURL == "" {
		return goerr.New("slack webhook_url is required", goerr.T(types.ErrTagConfig))
	}
	return nil
}

type client struct {
	webhookURL string
}

// New creates a Slack notification sink backed by an incoming webhook.
func New(cfg Config) interfaces.Notifier {
	return &client{webhookURL: cfg.WebhookURL}
}

// Name identifies the sink in logs.
func (c *client) Name() string { return "slack" }

// Notify posts the notification to the webhook: subject as the message text,
// release details as an attachment.
func (c *client) Notify(ctx context.Context, n *model.Notification) error {
	msg := &slack.WebhookMessage{
		Text: n.Subject(),
		Attachments: []slack.Attachment{
			{
				Title:     n.Release.Title,
				TitleLink: n.Release.Link,
				Text:      "Published: " + n.PublishedLabel(),
				Footer:    n.Source.String(),
			},
		},
	}

	if err := slack.PostWebhookContext(ctx, c.webhookURL, msg); err != nil {
		return goerr.Wrap(err, "failed to post Slack webhook",
			goerr.T(types.ErrTagDelivery),
			goerr.V("source", n.Source),
		)
	}

	return nil
}
