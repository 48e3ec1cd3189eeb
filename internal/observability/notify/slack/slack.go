// Package slack posts directory health events to a Slack incoming webhook.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/target/mmk-ldap-auth/internal/observability/notify"
)

// Config captures the subset of Slack webhook behaviour we need.
type Config struct {
	WebhookURL string
	Channel    string
	Username   string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
}

// Client delivers events to a Slack webhook.
type Client struct {
	webhookURL string
	channel    string
	username   string
	retryLimit int
	client     *http.Client
}

var _ notify.Sink = (*Client)(nil)

// NewClient builds a Slack webhook client.
func NewClient(cfg Config) (*Client, error) {
	webhookURL := strings.TrimSpace(cfg.WebhookURL)
	if webhookURL == "" {
		return nil, errors.New("slack webhook url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	username := strings.TrimSpace(cfg.Username)
	if username == "" {
		username = "ldapauth"
	}
	return &Client{
		webhookURL: webhookURL,
		channel:    strings.TrimSpace(cfg.Channel),
		username:   username,
		retryLimit: max(cfg.RetryLimit, 0),
		client:     hc,
	}, nil
}

// Send posts a formatted message to Slack.
func (c *Client) Send(ctx context.Context, event notify.Event) error {
	body, err := json.Marshal(c.formatMessage(event))
	if err != nil {
		return fmt.Errorf("encode slack payload: %w", err)
	}
	return notify.PostJSON(ctx, c.client, "slack webhook", c.webhookURL, body, c.retryLimit)
}

func (c *Client) formatMessage(event notify.Event) map[string]any {
	var text strings.Builder
	if event.Resolved() {
		text.WriteString(":white_check_mark: *Directory recovered*")
	} else {
		text.WriteString(":rotating_light: *Directory unreachable*")
	}
	if event.Server != "" {
		text.WriteString(" `")
		text.WriteString(escape(event.Server))
		text.WriteByte('`')
	}
	text.WriteByte('\n')

	severity := event.Severity
	if severity == "" {
		severity = notify.SeverityCritical
	}
	failures := ""
	if event.Failures > 0 {
		failures = strconv.Itoa(event.Failures)
	}
	for _, f := range []struct{ label, value string }{
		{"Severity", severity},
		{"Consecutive failures", failures},
		{"Error class", event.ErrorClass},
		{"Error", escape(event.Error)},
	} {
		writeField(&text, f.label, f.value)
	}

	if len(event.Metadata) > 0 {
		keys := make([]string, 0, len(event.Metadata))
		for k := range event.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			writeField(&text, k, escape(event.Metadata[k]))
		}
	}

	at := event.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	text.WriteString("• Timestamp: ")
	text.WriteString(at.UTC().Format(time.RFC3339))

	msg := map[string]any{
		"text":     text.String(),
		"username": c.username,
	}
	if c.channel != "" {
		msg["channel"] = c.channel
	}
	return msg
}

func writeField(text *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(text, "• %s: %s\n", label, value)
}

// escape neutralizes Slack's control characters in untrusted text.
func escape(value string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(value)
}
