// Package events defines the event bus and the events Matchgate components
// exchange.
package events

import "time"

// EventType identifies an event.
type EventType string

const (
	// Competition events
	EventSessionCreated     EventType = "session_created"
	EventIntentionSet       EventType = "intention_set"
	EventReportSubmitted    EventType = "report_submitted"
	EventReportDecodeFailed EventType = "report_decode_failed"

	// Certificate pool events
	EventCertificateAllocated EventType = "certificate_allocated"
	EventPoolLow              EventType = "pool_low"

	// Notification events
	EventNotifyDiscordAdmin EventType = "notify_discord_admin"

	// System events
	EventShutdown EventType = "shutdown"
)

// Event is a message on the EventBus.
type Event struct {
	Type    EventType
	Source  string
	Time    time.Time
	Payload interface{}
}

// SessionPayload accompanies session_created and intention_set.
type SessionPayload struct {
	CSID      string `json:"csid"`
	CCID      string `json:"ccid"`
	ProfileID int    `json:"profile_id"`
	State     string `json:"state"`
}

// ReportPayload accompanies report_submitted and report_decode_failed.
type ReportPayload struct {
	CSID        string `json:"csid"`
	CCID        string `json:"ccid"`
	ProfileID   int    `json:"profile_id"`
	Result      string `json:"result,omitempty"`
	GameType    string `json:"game_type,omitempty"`
	MapPath     string `json:"map_path,omitempty"`
	Duration    uint32 `json:"duration,omitempty"`
	WinnerIDs   []int  `json:"winner_ids,omitempty"`
	LoserIDs    []int  `json:"loser_ids,omitempty"`
	RawSize     int    `json:"raw_size"`
	DecodeError string `json:"decode_error,omitempty"`
}

// CertificatePayload accompanies certificate_allocated.
type CertificatePayload struct {
	CertificateID int64  `json:"certificate_id,omitempty"`
	Placeholder   bool   `json:"placeholder"`
	Expiry        string `json:"expiry"`
}

// PoolPayload accompanies pool_low.
type PoolPayload struct {
	Total     int `json:"total"`
	Available int `json:"available"`
	LowWater  int `json:"low_water"`
}

// NotifyDiscordPayload is used for sending Discord notifications.
type NotifyDiscordPayload struct {
	Title   string
	Message string
	Level   string // "info", "warning", "error"
}

// ShutdownPayload accompanies shutdown.
type ShutdownPayload struct {
	Reason string `json:"reason"`
}
