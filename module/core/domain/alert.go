package domain

import "time"

// Contact is an emergency contact as stored externally. Only verified
// contacts are ever read by the alert pipeline.
type Contact struct {
	ID          string `json:"id"`
	PhoneNumber string `json:"phone_number"`
	Verified    bool   `json:"verified"`
}

// AlertEvent is created once per raised SOS and never mutated afterwards.
// Coordinates are optional; the composer drops the location line when
// either is absent.
type AlertEvent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Latitude    *float64  `json:"latitude,omitempty"`
	Longitude   *float64  `json:"longitude,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// DeliveryResult captures one send attempt. Aggregated per invocation for
// logging only, never persisted.
type DeliveryResult struct {
	Recipient   string `json:"recipient"`
	Channel     string `json:"channel"`
	Success     bool   `json:"success"`
	ErrorDetail string `json:"error_detail,omitempty"`
}

// SOSAudit summarizes one fan-out invocation for the audit stream.
type SOSAudit struct {
	AlertID    string    `json:"alert_id"`
	UserID     string    `json:"user_id"`
	Attempted  int       `json:"attempted"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	OccurredAt time.Time `json:"occurred_at"`
}
