// Mock feed for local runs: publishes position samples that wander around
// a safe-area center and raises the occasional SOS.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type locationMessage struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	ObservedAt int64   `json:"observed_at"`
}

type sosMessage struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

const (
	centerLat = 12.9716
	centerLon = 77.5946
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <user_id> <interval_seconds>\n", os.Args[0])
		os.Exit(1)
	}
	userID := os.Args[1]

	intervalSec, err := strconv.Atoi(os.Args[2])
	if err != nil || intervalSec <= 0 {
		fmt.Fprintf(os.Stderr, "error: interval must be a positive integer\n")
		os.Exit(1)
	}

	broker := "tcp://localhost:1883"
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		broker = v
	}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID("alertmate-mock-feed")

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("mqtt connect: %v", token.Error())
	}
	defer client.Disconnect(250)

	log.Printf("connected to %s, feeding user %s every %ds...", broker, userID, intervalSec)

	locationTopic := fmt.Sprintf("/alertmate/user/%s/location", userID)
	sosTopic := fmt.Sprintf("/alertmate/user/%s/sos", userID)

	ticker := time.NewTicker(time.Duration(intervalSec) * time.Second)
	defer ticker.Stop()

	// Random walk that drifts in and out of a 100m fence.
	offset := 0.0
	for range ticker.C {
		offset += (rand.Float64() - 0.45) * 0.0008 // ~±45m steps, slight outward bias
		if offset < 0 {
			offset = 0
		}

		msg := locationMessage{
			Latitude:   centerLat + offset,
			Longitude:  centerLon,
			ObservedAt: time.Now().Unix(),
		}
		payload, _ := json.Marshal(msg)
		token := client.Publish(locationTopic, 1, false, payload)
		token.Wait()
		log.Printf("published to %s: %s", locationTopic, payload)

		// 5% chance to raise an SOS at the current position.
		if rand.Float64() < 0.05 {
			lat, lon := msg.Latitude, msg.Longitude
			sos := sosMessage{Latitude: &lat, Longitude: &lon, Timestamp: time.Now().Unix()}
			payload, _ := json.Marshal(sos)
			token := client.Publish(sosTopic, 1, false, payload)
			token.Wait()
			log.Printf("published to %s: %s", sosTopic, payload)
		}
	}
}
