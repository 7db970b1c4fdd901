package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sinch-billava935/AlertMate-360/module/core/internal/provider"
)

var _ provider.PushSender = (*Sender)(nil)

const defaultEndpoint = "https://fcm.googleapis.com/fcm/send"

type Sender struct {
	httpClient *http.Client
	endpoint   string
	serverKey  string
}

func NewSender(serverKey string) *Sender {
	return &Sender{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		endpoint:   defaultEndpoint,
		serverKey:  serverKey,
	}
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type fcmPayload struct {
	To           string            `json:"to"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

func (s *Sender) SendPush(ctx context.Context, msg *provider.PushMessage) error {
	payload := fcmPayload{
		To:           msg.Token,
		Notification: fcmNotification{Title: msg.Title, Body: msg.Body},
		Data:         msg.Data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal push: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "key="+s.serverKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("fcm send: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
