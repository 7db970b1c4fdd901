package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sinch-billava935/AlertMate-360/module/core/domain"
)

const locationTopicPattern = "/alertmate/user/+/location"

type geofenceService interface {
	HandleSample(ctx context.Context, up *domain.UserPosition) error
}

type locationMessage struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	ObservedAt int64   `json:"observed_at"`
}

// LocationSubscriber adapts the realtime position feed to the geofence
// evaluator. One message is one independent unit of work; bad input is
// logged and dropped, never surfaced to the broker.
type LocationSubscriber struct {
	client      mqtt.Client
	geofenceSvc geofenceService
}

func NewLocationSubscriber(client mqtt.Client, geofenceSvc geofenceService) *LocationSubscriber {
	return &LocationSubscriber{
		client:      client,
		geofenceSvc: geofenceSvc,
	}
}

func (s *LocationSubscriber) Start() error {
	token := s.client.Subscribe(locationTopicPattern, 1, s.handleMessage)
	token.Wait()
	return token.Error()
}

func (s *LocationSubscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	userID, err := userIDFromTopic(msg.Topic())
	if err != nil {
		log.Printf("location: %v", err)
		return
	}

	var raw locationMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		log.Printf("location: invalid message for user %s: %v", userID, err)
		return
	}

	if err := validateLocationMessage(&raw); err != nil {
		log.Printf("location: validation error for user %s: %v", userID, err)
		return
	}

	observedAt := time.Now()
	if raw.ObservedAt > 0 {
		observedAt = time.Unix(raw.ObservedAt, 0)
	}

	up := &domain.UserPosition{
		UserID: userID,
		Position: domain.Position{
			Latitude:   raw.Latitude,
			Longitude:  raw.Longitude,
			ObservedAt: observedAt,
		},
	}

	if err := s.geofenceSvc.HandleSample(context.Background(), up); err != nil {
		log.Printf("location: geofence evaluation for user %s: %v", userID, err)
	}
}

// userIDFromTopic extracts the user segment of /alertmate/user/{id}/{leaf}.
func userIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[1] != "alertmate" || parts[2] != "user" || parts[3] == "" {
		return "", fmt.Errorf("unexpected topic %q", topic)
	}
	return parts[3], nil
}

func validateLocationMessage(msg *locationMessage) error {
	if msg.Latitude < -90 || msg.Latitude > 90 {
		return fmt.Errorf("latitude: must be between -90 and 90")
	}
	if msg.Longitude < -180 || msg.Longitude > 180 {
		return fmt.Errorf("longitude: must be between -180 and 180")
	}
	if msg.ObservedAt < 0 {
		return fmt.Errorf("observed_at: must not be negative")
	}
	return nil
}
