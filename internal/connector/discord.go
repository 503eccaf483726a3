// Package connector delivers operator notifications to Discord.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/matchgate/internal/config"
	"github.com/energizer-project/matchgate/internal/events"
	"github.com/energizer-project/matchgate/internal/util"
)

// Embed colors by level.
const (
	colorInfo    = 0x00FF00
	colorWarning = 0xFFAA00
	colorError   = 0xFF0000
)

// DiscordConnector posts admin notifications to a Discord webhook.
type DiscordConnector struct {
	cfg    config.DiscordConfig
	client *http.Client
	logger zerolog.Logger
	now    func() time.Time
}

// NewDiscordConnector creates a connector and subscribes it to the events
// enabled in cfg. A nil bus leaves it unsubscribed.
func NewDiscordConnector(cfg config.DiscordConfig, eventBus *events.EventBus) *DiscordConnector {
	dc := &DiscordConnector{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: log.With().Str("component", "discord").Logger(),
		now:    time.Now,
	}

	if eventBus != nil {
		eventBus.Subscribe(events.EventNotifyDiscordAdmin, "discord.notify", dc.onNotifyAdmin)
		if cfg.NotifyOnDecodeFailure {
			eventBus.Subscribe(events.EventReportDecodeFailed, "discord.decodeFailed", dc.onDecodeFailed)
		}
		if cfg.NotifyOnPoolLow {
			eventBus.Subscribe(events.EventPoolLow, "discord.poolLow", dc.onPoolLow)
		}
	}

	return dc
}

// Enabled reports whether a webhook is configured.
func (dc *DiscordConnector) Enabled() bool {
	return dc.cfg.WebhookURL != ""
}

// SendAdminNotification posts an embed to the webhook. Without a webhook it
// only logs.
func (dc *DiscordConnector) SendAdminNotification(ctx context.Context, title, message, level string) error {
	if !dc.Enabled() {
		dc.logger.Debug().Str("title", title).Msg("no Discord webhook configured, notification dropped")
		return nil
	}
	return dc.sendWebhook(ctx, dc.cfg.WebhookURL, title, message, level)
}

func (dc *DiscordConnector) sendWebhook(ctx context.Context, webhookURL, title, message, level string) error {
	var color int
	switch level {
	case "error":
		color = colorError
	case "warning":
		color = colorWarning
	default:
		color = colorInfo
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       title,
				"description": message,
				"color":       color,
				"timestamp":   dc.now().UTC().Format(time.RFC3339),
				"footer": map[string]string{
					"text": fmt.Sprintf("%s %s", util.AppName, util.Version),
				},
			},
		},
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := dc.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	dc.logger.Debug().Str("title", title).Msg("Discord webhook notification sent")
	return nil
}

func (dc *DiscordConnector) onNotifyAdmin(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.NotifyDiscordPayload)
	if !ok {
		return nil
	}
	return dc.SendAdminNotification(ctx, payload.Title, payload.Message, payload.Level)
}

func (dc *DiscordConnector) onDecodeFailed(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.ReportPayload)
	if !ok {
		return nil
	}
	msg := fmt.Sprintf("csid `%s` ccid `%s` profile %d sent %d bytes that could not be decoded: %s",
		payload.CSID, payload.CCID, payload.ProfileID, payload.RawSize, payload.DecodeError)
	return dc.SendAdminNotification(ctx, "Match report decode failed", msg, "warning")
}

func (dc *DiscordConnector) onPoolLow(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PoolPayload)
	if !ok {
		return nil
	}
	level := "warning"
	if payload.Available == 0 {
		level = "error"
	}
	msg := fmt.Sprintf("%d of %d certificates available (low water %d)",
		payload.Available, payload.Total, payload.LowWater)
	return dc.SendAdminNotification(ctx, "Certificate pool low", msg, level)
}
