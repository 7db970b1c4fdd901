package service

import (
	"context"
	"errors"
	"testing"

	"github.com/sinch-billava935/AlertMate-360/module/core/domain"
	"github.com/sinch-billava935/AlertMate-360/module/core/internal/provider"
)

type mockTokenSource struct {
	tokensFn func(ctx context.Context, userID string) ([]string, error)
}

func (m *mockTokenSource) Tokens(ctx context.Context, userID string) ([]string, error) {
	return m.tokensFn(ctx, userID)
}

type mockPushSender struct {
	sendFn func(ctx context.Context, msg *provider.PushMessage) error
	sent   []*provider.PushMessage
}

func (m *mockPushSender) SendPush(ctx context.Context, msg *provider.PushMessage) error {
	m.sent = append(m.sent, msg)
	if m.sendFn != nil {
		return m.sendFn(ctx, msg)
	}
	return nil
}

func staticTokens(tokens ...string) *mockTokenSource {
	return &mockTokenSource{
		tokensFn: func(_ context.Context, _ string) ([]string, error) {
			return tokens, nil
		},
	}
}

func TestNotifyTransition_UsesPrimaryFirstTokenOnly(t *testing.T) {
	fallback := &mockTokenSource{
		tokensFn: func(_ context.Context, _ string) ([]string, error) {
			t.Fatal("fallback must not be queried when primary resolves")
			return nil, nil
		},
	}
	push := &mockPushSender{}
	svc := NewNotificationService(staticTokens("tok-a", "tok-b"), fallback, push)

	err := svc.NotifyTransition(context.Background(), "u1", domain.GeofenceExit, domain.Position{Latitude: 12.9716, Longitude: 77.5946}, 128.4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(push.sent) != 1 {
		t.Fatalf("expected 1 push, got %d", len(push.sent))
	}
	msg := push.sent[0]
	if msg.Token != "tok-a" {
		t.Errorf("token = %s, want first token tok-a", msg.Token)
	}
	if msg.Data["type"] != "geofence_exit" {
		t.Errorf("data.type = %s, want geofence_exit", msg.Data["type"])
	}
	if msg.Data["distance"] != "128" {
		t.Errorf("data.distance = %s, want 128", msg.Data["distance"])
	}
	if msg.Data["latitude"] != "12.971600" || msg.Data["longitude"] != "77.594600" {
		t.Errorf("coordinates = %s,%s", msg.Data["latitude"], msg.Data["longitude"])
	}
	if msg.Title != "Left safe area" {
		t.Errorf("title = %s", msg.Title)
	}
}

func TestNotifyTransition_FallsBackOnPrimaryMiss(t *testing.T) {
	primary := &mockTokenSource{
		tokensFn: func(_ context.Context, _ string) ([]string, error) {
			return nil, nil
		},
	}
	push := &mockPushSender{}
	svc := NewNotificationService(primary, staticTokens("tok-fallback"), push)

	err := svc.NotifyTransition(context.Background(), "u1", domain.GeofenceEnter, domain.Position{}, 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(push.sent) != 1 || push.sent[0].Token != "tok-fallback" {
		t.Fatalf("expected fallback token to be used, got %+v", push.sent)
	}
	if push.sent[0].Title != "Back in safe area" {
		t.Errorf("title = %s", push.sent[0].Title)
	}
	if push.sent[0].Data["type"] != "geofence_enter" {
		t.Errorf("data.type = %s", push.sent[0].Data["type"])
	}
}

func TestNotifyTransition_FallsBackOnPrimaryError(t *testing.T) {
	primary := &mockTokenSource{
		tokensFn: func(_ context.Context, _ string) ([]string, error) {
			return nil, errors.New("redis down")
		},
	}
	push := &mockPushSender{}
	svc := NewNotificationService(primary, staticTokens("tok-pg"), push)

	if err := svc.NotifyTransition(context.Background(), "u1", domain.GeofenceExit, domain.Position{}, 200); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(push.sent) != 1 || push.sent[0].Token != "tok-pg" {
		t.Fatalf("expected fallback after primary error, got %+v", push.sent)
	}
}

func TestNotifyTransition_NoTokenSkipsSend(t *testing.T) {
	empty := staticTokens()
	push := &mockPushSender{
		sendFn: func(_ context.Context, _ *provider.PushMessage) error {
			t.Fatal("no push expected without a token")
			return nil
		},
	}
	svc := NewNotificationService(empty, empty, push)

	if err := svc.NotifyTransition(context.Background(), "u1", domain.GeofenceExit, domain.Position{}, 150); err != nil {
		t.Fatalf("missing token must not error: %v", err)
	}
}

func TestNotifyTransition_SendErrorPropagates(t *testing.T) {
	push := &mockPushSender{
		sendFn: func(_ context.Context, _ *provider.PushMessage) error {
			return errors.New("fcm 500")
		},
	}
	svc := NewNotificationService(staticTokens("tok"), nil, push)

	if err := svc.NotifyTransition(context.Background(), "u1", domain.GeofenceExit, domain.Position{}, 150); err == nil {
		t.Fatal("expected send error to propagate")
	}
}
