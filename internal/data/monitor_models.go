package data

import (
	"fmt"
	"time"
)

// CameraStatus is the stored per-camera availability verdict.
type CameraStatus string

const (
	StatusOnline      CameraStatus = "Online"
	StatusOffline     CameraStatus = "Offline"
	StatusSystemError CameraStatus = "System Error"
)

// IsOnline reports whether s counts as healthy.
func (s CameraStatus) IsOnline() bool { return s == StatusOnline }

// CameraKey uniquely identifies one channel on one NVR.
type CameraKey struct {
	NVRIP     string
	ChannelID string
}

func (k CameraKey) String() string {
	return fmt.Sprintf("%s/%s", k.NVRIP, k.ChannelID)
}

// CameraRecord is the authoritative per-camera state row.
//
// LastOnline is overloaded: while the camera is Online it is the last
// confirmed-online time; at the first non-Online observation it is
// re-stamped to that moment and then frozen, so during downtime it
// marks the start of the current downtime episode, not a heartbeat.
type CameraRecord struct {
	NVRIP           string       `json:"nvr_ip"`
	ChannelID       string       `json:"channel_id"`
	CameraIP        string       `json:"camera_ip"`
	CameraName      string       `json:"camera_name"`
	Status          CameraStatus `json:"status"`
	LastOnline      time.Time    `json:"last_online"`
	LastCheck       time.Time    `json:"last_check"`
	DownCheckCount  int          `json:"down_check_count"`
	AlertEmailCount int          `json:"alert_email_count"`
	IsMuted         bool         `json:"is_muted"`
	LastAlertTime   *time.Time   `json:"last_alert_time,omitempty"`
}

func (r *CameraRecord) Key() CameraKey {
	return CameraKey{NVRIP: r.NVRIP, ChannelID: r.ChannelID}
}

// EventKind classifies alert-log entries.
type EventKind string

const (
	EventCameraDown           EventKind = "camera_down"
	EventCameraUp             EventKind = "camera_up"
	EventNVRError             EventKind = "nvr_error"
	EventMailAlertTriggered   EventKind = "mail_alert_triggered"
	EventCameraMuted          EventKind = "camera_muted"
	EventMailSent             EventKind = "mail_sent"
	EventMailFailed           EventKind = "mail_failed"
	EventServiceStarted       EventKind = "service_started"
	EventServiceStopped       EventKind = "service_stopped"
	EventServiceConfigChanged EventKind = "service_config_changed"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// AlertLogEntry is one append-only event row. The monitor only ever
// inserts these; the reporting surface reads them.
type AlertLogEntry struct {
	ID              int64        `json:"id"`
	Timestamp       time.Time    `json:"timestamp"`
	Kind            EventKind    `json:"alert_type"`
	NVRIP           string       `json:"nvr_ip,omitempty"`
	CameraIP        string       `json:"camera_ip,omitempty"`
	CameraName      string       `json:"camera_name,omitempty"`
	Status          CameraStatus `json:"status,omitempty"`
	Details         string       `json:"details,omitempty"`
	Severity        Severity     `json:"severity"`
	MailRecipients  string       `json:"mail_recipients,omitempty"`
	DownCheckCount  *int         `json:"down_check_count,omitempty"`
	DurationSeconds *int         `json:"duration_seconds,omitempty"`
}

// Check record status glyphs, as stored.
const (
	CheckGlyphOK      = "✅"
	CheckGlyphPartial = "⚠️"
	CheckGlyphError   = "🚫"
)

// CheckRecord summarizes one completed poll cycle.
type CheckRecord struct {
	ID            int64     `json:"id"`
	CheckNumber   int64     `json:"check_number"`
	Timestamp     time.Time `json:"timestamp"`
	NVRIP         string    `json:"nvr_ip"`
	TotalCameras  int       `json:"total_cameras"`
	OnlineCameras int       `json:"online_cameras"`
	Status        string    `json:"status"`
}

// CycleBatch carries every write produced by one reconciliation pass.
// The store applies it in a single transaction: partial cycles must
// never become visible to readers.
type CycleBatch struct {
	Upserts []CameraRecord
	Deletes []CameraKey
	Events  []AlertLogEntry
	Check   *CheckRecord
}

// AlertBatch carries the staged alert-policy mutations for one cycle.
// It is committed only after the digest email was delivered.
type AlertBatch struct {
	Updates []CameraRecord
	Events  []AlertLogEntry
}
