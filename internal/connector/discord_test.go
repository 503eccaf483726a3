package connector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/energizer-project/matchgate/internal/config"
	"github.com/energizer-project/matchgate/internal/events"
)

type webhookBody struct {
	Embeds []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Color       int    `json:"color"`
	} `json:"embeds"`
}

func webhookServer(t *testing.T, status int) (*httptest.Server, chan webhookBody) {
	t.Helper()
	received := make(chan webhookBody, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body webhookBody
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		received <- body
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, received
}

func TestSendAdminNotification(t *testing.T) {
	srv, received := webhookServer(t, http.StatusNoContent)
	dc := NewDiscordConnector(config.DiscordConfig{WebhookURL: srv.URL}, nil)

	require.NoError(t, dc.SendAdminNotification(context.Background(), "title", "body", "error"))

	body := <-received
	require.Len(t, body.Embeds, 1)
	assert.Equal(t, "title", body.Embeds[0].Title)
	assert.Equal(t, "body", body.Embeds[0].Description)
	assert.Equal(t, colorError, body.Embeds[0].Color)
}

func TestSendAdminNotificationErrorStatus(t *testing.T) {
	srv, _ := webhookServer(t, http.StatusBadRequest)
	dc := NewDiscordConnector(config.DiscordConfig{WebhookURL: srv.URL}, nil)

	err := dc.SendAdminNotification(context.Background(), "title", "body", "info")
	assert.Error(t, err)
}

func TestSendWithoutWebhook(t *testing.T) {
	dc := NewDiscordConnector(config.DiscordConfig{}, nil)
	assert.False(t, dc.Enabled())
	assert.NoError(t, dc.SendAdminNotification(context.Background(), "t", "m", "info"))
}

func TestPoolLowEvent(t *testing.T) {
	srv, received := webhookServer(t, http.StatusOK)
	bus := events.NewEventBus()
	defer bus.Stop()

	NewDiscordConnector(config.DiscordConfig{WebhookURL: srv.URL, NotifyOnPoolLow: true}, bus)

	bus.Emit(context.Background(), events.Event{
		Type:    events.EventPoolLow,
		Payload: events.PoolPayload{Total: 10, Available: 0, LowWater: 5},
	})

	select {
	case body := <-received:
		require.Len(t, body.Embeds, 1)
		assert.Equal(t, "Certificate pool low", body.Embeds[0].Title)
		assert.Equal(t, colorError, body.Embeds[0].Color)
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not called")
	}
}

func TestDecodeFailureDisabled(t *testing.T) {
	bus := events.NewEventBus()
	defer bus.Stop()

	NewDiscordConnector(config.DiscordConfig{WebhookURL: "http://127.0.0.1:1"}, bus)
	assert.Equal(t, 0, bus.HandlerCount(events.EventReportDecodeFailed))
	assert.Equal(t, 1, bus.HandlerCount(events.EventNotifyDiscordAdmin))
}
