package domain

import "time"

type Position struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	ObservedAt time.Time `json:"observed_at"`
}

type UserPosition struct {
	UserID   string   `json:"user_id"`
	Position Position `json:"position"`
}
