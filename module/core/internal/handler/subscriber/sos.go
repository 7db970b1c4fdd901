package subscriber

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/sinch-billava935/AlertMate-360/module/core/domain"
)

const sosTopicPattern = "/alertmate/user/+/sos"

type alertService interface {
	HandleSOS(ctx context.Context, evt *domain.AlertEvent) error
}

type sosMessage struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Timestamp int64    `json:"timestamp"`
}

// SOSSubscriber adapts the raise-SOS trigger to the alert fan-out
// pipeline.
type SOSSubscriber struct {
	client   mqtt.Client
	alertSvc alertService
}

func NewSOSSubscriber(client mqtt.Client, alertSvc alertService) *SOSSubscriber {
	return &SOSSubscriber{
		client:   client,
		alertSvc: alertSvc,
	}
}

func (s *SOSSubscriber) Start() error {
	token := s.client.Subscribe(sosTopicPattern, 1, s.handleMessage)
	token.Wait()
	return token.Error()
}

func (s *SOSSubscriber) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	userID, err := userIDFromTopic(msg.Topic())
	if err != nil {
		log.Printf("sos: %v", err)
		return
	}

	var raw sosMessage
	if err := json.Unmarshal(msg.Payload(), &raw); err != nil {
		log.Printf("sos: invalid message for user %s: %v", userID, err)
		return
	}

	if err := validateSOSMessage(&raw); err != nil {
		log.Printf("sos: validation error for user %s: %v", userID, err)
		return
	}

	evt := &domain.AlertEvent{
		UserID:    userID,
		Latitude:  raw.Latitude,
		Longitude: raw.Longitude,
	}
	if raw.Timestamp > 0 {
		evt.OccurredAt = time.Unix(raw.Timestamp, 0)
	}

	if err := s.alertSvc.HandleSOS(context.Background(), evt); err != nil {
		log.Printf("sos: fan-out for user %s: %v", userID, err)
	}
}

func validateSOSMessage(msg *sosMessage) error {
	if msg.Latitude != nil && (*msg.Latitude < -90 || *msg.Latitude > 90) {
		return fmt.Errorf("latitude: must be between -90 and 90")
	}
	if msg.Longitude != nil && (*msg.Longitude < -180 || *msg.Longitude > 180) {
		return fmt.Errorf("longitude: must be between -180 and 180")
	}
	if msg.Timestamp < 0 {
		return fmt.Errorf("timestamp: must not be negative")
	}
	return nil
}
