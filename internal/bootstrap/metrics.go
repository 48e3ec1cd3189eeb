package bootstrap

import (
	"context"
	"log/slog"

	"github.com/target/mmk-ldap-auth/config"
	"github.com/target/mmk-ldap-auth/internal/observability/notify/pagerduty"
	"github.com/target/mmk-ldap-auth/internal/observability/notify/slack"
	"github.com/target/mmk-ldap-auth/internal/observability/statsd"
	"github.com/target/mmk-ldap-auth/internal/service/outage"
)

// BuildMetrics returns the StatsD client. When metrics are disabled the client is a
// no-op, so callers never branch on it.
func BuildMetrics(ctx context.Context, cfg config.ObservabilityMetricsConfig, logger *slog.Logger) (*statsd.Client, error) {
	client, err := statsd.NewClient(ctx, statsd.Config{
		Enabled:    cfg.IsEnabled(),
		Address:    cfg.StatsdAddress,
		Prefix:     cfg.Prefix,
		GlobalTags: map[string]string{"service": "ldapauth"},
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	if client.Enabled() {
		logger.InfoContext(ctx, "statsd metrics enabled", "address", cfg.StatsdAddress, "prefix", cfg.Prefix)
	}
	return client, nil
}

// BuildOutageMonitor wires the configured notification sinks into a directory outage
// monitor. It returns nil when notifications are disabled or no sink is usable.
func BuildOutageMonitor(cfg *config.AppConfig, logger *slog.Logger) *outage.Monitor {
	ncfg := cfg.Observability.Notifications
	if !ncfg.Enabled {
		return nil
	}

	var sinks []outage.SinkRegistration
	if ncfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL: ncfg.Slack.WebhookURL,
			Channel:    ncfg.Slack.Channel,
			Username:   ncfg.Slack.Username,
			Timeout:    ncfg.Timeout,
			RetryLimit: ncfg.RetryLimit,
		})
		if err != nil {
			logger.Error("slack notifications disabled", "error", err)
		} else {
			sinks = append(sinks, outage.SinkRegistration{Name: "slack", Sink: client})
		}
	}
	if ncfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: ncfg.PagerDuty.RoutingKey,
			Source:     ncfg.PagerDuty.Source,
			Component:  ncfg.PagerDuty.Component,
			Timeout:    ncfg.Timeout,
			RetryLimit: ncfg.RetryLimit,
		})
		if err != nil {
			logger.Error("pagerduty notifications disabled", "error", err)
		} else {
			sinks = append(sinks, outage.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}
	if len(sinks) == 0 {
		logger.Warn("outage notifications enabled but no sink is configured")
		return nil
	}

	server := cfg.LDAP.ServerPath
	if cfg.Auth.Mode == config.AuthModeMock {
		server = "mock:" + cfg.Auth.DevDirectoryFile
	}
	return outage.NewMonitor(outage.Options{
		Server:    server,
		Threshold: ncfg.Threshold,
		Cooldown:  ncfg.Cooldown,
		Metadata:  map[string]string{"domain": cfg.LDAP.Domain},
		Sinks:     sinks,
		Logger:    logger,
	})
}
