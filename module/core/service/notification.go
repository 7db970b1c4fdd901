package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/sinch-billava935/AlertMate-360/module/core/domain"
	"github.com/sinch-billava935/AlertMate-360/module/core/internal/provider"
	"github.com/sinch-billava935/AlertMate-360/module/core/metrics"
)

type tokenSource interface {
	Tokens(ctx context.Context, userID string) ([]string, error)
}

// NotificationService resolves a device token and sends one push per
// geofence transition. Token resolution tries the low-latency store first
// and falls back to the document store.
type NotificationService struct {
	primary      tokenSource
	fallback     tokenSource
	push         provider.PushSender
	queryTimeout time.Duration
	sendTimeout  time.Duration
}

func NewNotificationService(primary, fallback tokenSource, push provider.PushSender) *NotificationService {
	return &NotificationService{
		primary:      primary,
		fallback:     fallback,
		push:         push,
		queryTimeout: defaultQueryTimeout,
		sendTimeout:  defaultSendTimeout,
	}
}

// NotifyTransition sends the boundary-crossing push. A user with no
// resolvable token is skipped with a warning; the status update has
// already been recorded, so there is nothing to retry.
func (s *NotificationService) NotifyTransition(ctx context.Context, userID string, t domain.TransitionType, pos domain.Position, distanceMeters float64) error {
	token, ok := s.resolveToken(ctx, userID)
	if !ok {
		metrics.Notifications.WithLabelValues("skipped").Inc()
		log.Printf("notify: no device token for user %s, skipping push", userID)
		return nil
	}

	title, body := transitionCopy(t, distanceMeters)
	msg := &provider.PushMessage{
		Token: token,
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":      string(t),
			"latitude":  strconv.FormatFloat(pos.Latitude, 'f', 6, 64),
			"longitude": strconv.FormatFloat(pos.Longitude, 'f', 6, 64),
			"distance":  strconv.Itoa(int(math.Round(distanceMeters))),
		},
	}

	sctx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()
	if err := s.push.SendPush(sctx, msg); err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
	return nil
}

// resolveToken returns the first token from the primary store, then the
// fallback. Only the first resolved token is used even when several exist,
// so users with multiple registered devices get the push on one of them.
// TODO: broadcast to every registered device token.
func (s *NotificationService) resolveToken(ctx context.Context, userID string) (string, bool) {
	for _, src := range []tokenSource{s.primary, s.fallback} {
		if src == nil {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
		tokens, err := src.Tokens(cctx, userID)
		cancel()
		if err != nil {
			log.Printf("notify: token lookup for user %s: %v", userID, err)
			continue
		}
		if len(tokens) > 0 && tokens[0] != "" {
			return tokens[0], true
		}
	}
	return "", false
}

func transitionCopy(t domain.TransitionType, distanceMeters float64) (title, body string) {
	d := int(math.Round(distanceMeters))
	if t == domain.GeofenceEnter {
		return "Back in safe area", "You are back inside your safe area."
	}
	return "Left safe area", fmt.Sprintf("You are about %d m outside your safe area.", d)
}
