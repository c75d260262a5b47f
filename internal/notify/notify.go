// Package notify posts operational alerts, such as retention purge
// summaries, to chat platforms. Delivery is best effort: a failed post
// is logged by the caller, never retried here.
package notify

import (
	"context"
	"fmt"

	"github.com/sandwichops/relay/internal/config"
)

// Severity hints at how an alert should be rendered.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Alert is one outbound platform message.
type Alert struct {
	Title    string
	Body     string
	Severity string
	Fields   []Field
}

// Field is a key-value pair attached to an alert.
type Field struct {
	Name  string
	Value string
}

// Notifier posts alerts to a single platform.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
	Close() error
}

// FromConfig builds one notifier per configured platform. An empty config
// yields an empty slice; callers treat that as notifications disabled.
func FromConfig(cfg config.NotifyConfig) ([]Notifier, error) {
	var out []Notifier
	if cfg.Slack.BotToken != "" {
		n, err := NewSlack(SlackOpts{
			BotToken:  cfg.Slack.BotToken,
			ChannelID: cfg.Slack.ChannelID,
		})
		if err != nil {
			return nil, fmt.Errorf("notify: slack: %w", err)
		}
		out = append(out, n)
	}
	if cfg.Discord.BotToken != "" {
		n, err := NewDiscord(DiscordOpts{
			BotToken:  cfg.Discord.BotToken,
			ChannelID: cfg.Discord.ChannelID,
		})
		if err != nil {
			return nil, fmt.Errorf("notify: discord: %w", err)
		}
		out = append(out, n)
	}
	return out, nil
}

// severityColor maps a severity to the sidebar color both platforms use.
func severityColor(severity string) string {
	switch severity {
	case SeverityWarning:
		return "#daa038"
	case SeverityError:
		return "#a30200"
	default:
		return "#36a64f"
	}
}
