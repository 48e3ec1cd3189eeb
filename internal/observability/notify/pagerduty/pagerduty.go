// Package pagerduty raises and resolves directory outage incidents through the
// PagerDuty Events API v2.
package pagerduty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/target/mmk-ldap-auth/internal/observability/notify"
)

// APIEndpoint is the PagerDuty Events API v2 ingest URL.
const APIEndpoint = "https://events.pagerduty.com/v2/enqueue"

// Config captures runtime configuration for the PagerDuty sink.
type Config struct {
	RoutingKey string
	Source     string
	Component  string
	Timeout    time.Duration
	RetryLimit int
	Client     *http.Client
	// Endpoint overrides APIEndpoint.
	Endpoint string
}

// Client publishes events via PagerDuty's Events API v2.
type Client struct {
	routingKey string
	source     string
	component  string
	endpoint   string
	retryLimit int
	client     *http.Client
}

var _ notify.Sink = (*Client)(nil)

type eventPayload struct {
	Summary       string         `json:"summary"`
	Severity      string         `json:"severity"`
	Source        string         `json:"source"`
	Component     string         `json:"component,omitempty"`
	Timestamp     string         `json:"timestamp"`
	CustomDetails map[string]any `json:"custom_details,omitempty"`
}

type enqueueRequest struct {
	RoutingKey  string        `json:"routing_key"`
	EventAction string        `json:"event_action"`
	DedupKey    string        `json:"dedup_key"`
	Payload     *eventPayload `json:"payload,omitempty"`
}

// NewClient constructs a PagerDuty events client. A routing key is required.
func NewClient(cfg Config) (*Client, error) {
	key := strings.TrimSpace(cfg.RoutingKey)
	if key == "" {
		return nil, errors.New("pagerduty routing key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	hc := cfg.Client
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		routingKey: key,
		source:     orDefault(cfg.Source, "ldapauth"),
		component:  orDefault(cfg.Component, "directory"),
		endpoint:   orDefault(cfg.Endpoint, APIEndpoint),
		retryLimit: max(cfg.RetryLimit, 0),
		client:     hc,
	}, nil
}

// Send triggers an incident for an outage and resolves it on recovery.
func (c *Client) Send(ctx context.Context, event notify.Event) error {
	body, err := json.Marshal(c.buildRequest(event))
	if err != nil {
		return fmt.Errorf("encode pagerduty payload: %w", err)
	}
	return notify.PostJSON(ctx, c.client, "pagerduty api", c.endpoint, body, c.retryLimit)
}

func (c *Client) buildRequest(event notify.Event) enqueueRequest {
	req := enqueueRequest{
		RoutingKey:  c.routingKey,
		EventAction: "trigger",
		DedupKey:    event.DedupKey(),
	}
	if event.Resolved() {
		req.EventAction = "resolve"
		return req
	}

	at := event.OccurredAt
	if at.IsZero() {
		at = time.Now()
	}
	custom := map[string]any{
		"server":      event.Server,
		"failures":    event.Failures,
		"error":       event.Error,
		"error_class": event.ErrorClass,
	}
	for k, v := range event.Metadata {
		if _, exists := custom[k]; !exists {
			custom[k] = v
		}
	}
	req.Payload = &eventPayload{
		Summary:       fmt.Sprintf("Directory %s unreachable after %d login attempts", orDefault(event.Server, "unknown"), event.Failures),
		Severity:      orDefault(strings.ToLower(event.Severity), notify.SeverityCritical),
		Source:        c.source,
		Component:     c.component,
		Timestamp:     at.UTC().Format(time.RFC3339),
		CustomDetails: custom,
	}
	return req
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
