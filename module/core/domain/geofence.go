package domain

import "time"

const (
	DefaultRadiusMeters     = 100.0
	DefaultHysteresisMeters = 10.0
	DefaultCooldown         = 5 * time.Minute
)

// GeofenceConfig is the per-user safe area. Owned by the user, read-only
// to the evaluation path.
type GeofenceConfig struct {
	CenterLatitude   float64       `json:"center_latitude"`
	CenterLongitude  float64       `json:"center_longitude"`
	RadiusMeters     float64       `json:"radius_meters"`
	HysteresisMeters float64       `json:"hysteresis_meters"`
	Cooldown         time.Duration `json:"-"`
}

// ApplyDefaults fills unset tuning fields. Center coordinates are never
// defaulted; a config without a center is still a valid config at (0,0).
func (c *GeofenceConfig) ApplyDefaults() {
	if c.RadiusMeters <= 0 {
		c.RadiusMeters = DefaultRadiusMeters
	}
	if c.HysteresisMeters <= 0 {
		c.HysteresisMeters = DefaultHysteresisMeters
	}
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
}

// GeofenceStatus is the persisted per-user state machine record. Version
// backs the compare-and-set write; it never decreases.
type GeofenceStatus struct {
	Inside             bool      `json:"inside"`
	LastDistanceMeters float64   `json:"last_distance_meters"`
	LastTransitionAt   time.Time `json:"last_transition_at"`
	LastNotifiedAt     time.Time `json:"last_notified_at"`
	Version            int64     `json:"-"`
}

// DefaultGeofenceStatus is the state assumed on a user's first-ever sample:
// inside, never notified. Starting inside means no alert fires just because
// a user turned the app on.
func DefaultGeofenceStatus() GeofenceStatus {
	return GeofenceStatus{Inside: true}
}

type TransitionType string

const (
	GeofenceEnter TransitionType = "geofence_enter"
	GeofenceExit  TransitionType = "geofence_exit"
)

type GeofenceTransition struct {
	UserID         string         `json:"user_id"`
	Type           TransitionType `json:"type"`
	Position       Position       `json:"position"`
	DistanceMeters float64        `json:"distance_meters"`
	Notified       bool           `json:"notified"`
	OccurredAt     time.Time      `json:"occurred_at"`
}
