package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/sinch-billava935/AlertMate-360/module/core/domain"
	"github.com/sinch-billava935/AlertMate-360/module/core/internal/repository/database"
)

// posAt returns a position due north of (0,0) at the given distance. With
// no longitude delta the haversine reduces to R*dLat, so the distance is
// exact up to float error.
func posAt(meters float64) domain.Position {
	return domain.Position{
		Latitude:   meters / earthRadiusMeters * 180 / math.Pi,
		Longitude:  0,
		ObservedAt: time.Unix(1715003456, 0),
	}
}

func testConfig() domain.GeofenceConfig {
	return domain.GeofenceConfig{
		CenterLatitude:   0,
		CenterLongitude:  0,
		RadiusMeters:     100,
		HysteresisMeters: 10,
		Cooldown:         5 * time.Minute,
	}
}

func TestEvaluate_DeadBandIsSticky(t *testing.T) {
	cfg := testConfig()
	now := time.Unix(1715003456, 0)

	// 105m is inside the [90,110] dead band: prior classification holds.
	insidePrior := domain.GeofenceStatus{Inside: true}
	ev := Evaluate(posAt(105), cfg, insidePrior, now)
	if !ev.Status.Inside {
		t.Error("prior inside at 105m should stay inside")
	}
	if ev.ShouldNotify {
		t.Error("no transition, no notification")
	}

	outsidePrior := domain.GeofenceStatus{Inside: false}
	ev = Evaluate(posAt(105), cfg, outsidePrior, now)
	if ev.Status.Inside {
		t.Error("prior outside at 105m should stay outside")
	}
	if ev.ShouldNotify {
		t.Error("no transition, no notification")
	}
}

func TestEvaluate_ExitBeyondBandNotifies(t *testing.T) {
	cfg := testConfig()
	now := time.Unix(1715003456, 0)

	ev := Evaluate(posAt(115), cfg, domain.GeofenceStatus{Inside: true}, now)
	if ev.Status.Inside {
		t.Error("115m with prior inside should exit")
	}
	if !ev.ShouldNotify {
		t.Error("expected notification on exit")
	}
	if !ev.Status.LastTransitionAt.Equal(now) {
		t.Errorf("LastTransitionAt = %v, want %v", ev.Status.LastTransitionAt, now)
	}
	if !ev.Status.LastNotifiedAt.Equal(now) {
		t.Errorf("LastNotifiedAt = %v, want %v", ev.Status.LastNotifiedAt, now)
	}
	if math.Abs(ev.DistanceMeters-115) > 0.01 {
		t.Errorf("DistanceMeters = %f, want ~115", ev.DistanceMeters)
	}
}

func TestEvaluate_EnterBelowBandNotifies(t *testing.T) {
	cfg := testConfig()
	now := time.Unix(1715003456, 0)

	ev := Evaluate(posAt(85), cfg, domain.GeofenceStatus{Inside: false}, now)
	if !ev.Status.Inside {
		t.Error("85m with prior outside should enter")
	}
	if !ev.ShouldNotify {
		t.Error("expected notification on enter")
	}
}

func TestEvaluate_CooldownSuppressesNotifyButUpdatesState(t *testing.T) {
	cfg := testConfig()
	now := time.Unix(1715003456, 0)

	prior := domain.GeofenceStatus{
		Inside:         true,
		LastNotifiedAt: now.Add(-time.Minute), // inside the 5m cooldown window
	}
	ev := Evaluate(posAt(115), cfg, prior, now)
	if ev.Status.Inside {
		t.Error("state must still flip during cooldown")
	}
	if ev.ShouldNotify {
		t.Error("notification must be suppressed during cooldown")
	}
	if !ev.Status.LastNotifiedAt.Equal(prior.LastNotifiedAt) {
		t.Error("suppressed notification must not touch LastNotifiedAt")
	}
	if !ev.Status.LastTransitionAt.Equal(now) {
		t.Error("transition time must be recorded even when suppressed")
	}
}

func TestEvaluate_AtMostOneNotificationPerCooldown(t *testing.T) {
	cfg := testConfig()
	t0 := time.Unix(1715003456, 0)

	// Exit at t0: notifies.
	ev1 := Evaluate(posAt(115), cfg, domain.GeofenceStatus{Inside: true}, t0)
	if !ev1.ShouldNotify {
		t.Fatal("first crossing should notify")
	}

	// Re-enter one minute later: state flips, notification suppressed.
	t1 := t0.Add(time.Minute)
	ev2 := Evaluate(posAt(85), cfg, ev1.Status, t1)
	if !ev2.Status.Inside {
		t.Error("re-entry must update state")
	}
	if ev2.ShouldNotify {
		t.Error("second crossing within cooldown must not notify")
	}

	// After the window the next crossing notifies again.
	t2 := t0.Add(6 * time.Minute)
	ev3 := Evaluate(posAt(115), cfg, ev2.Status, t2)
	if !ev3.ShouldNotify {
		t.Error("crossing after cooldown should notify")
	}
}

func TestEvaluate_IdenticalSampleIsIdempotent(t *testing.T) {
	cfg := testConfig()
	now := time.Unix(1715003456, 0)

	ev1 := Evaluate(posAt(50), cfg, domain.GeofenceStatus{Inside: true}, now)
	ev2 := Evaluate(posAt(50), cfg, ev1.Status, now.Add(time.Second))
	if ev1.Status.Inside != ev2.Status.Inside {
		t.Error("identical sample changed classification")
	}
	if ev2.ShouldNotify {
		t.Error("identical sample produced a notification")
	}
}

type mockGeofenceRepo struct {
	getConfigFn       func(ctx context.Context, userID string) (*domain.GeofenceConfig, error)
	upsertConfigFn    func(ctx context.Context, userID string, cfg *domain.GeofenceConfig) error
	getStatusFn       func(ctx context.Context, userID string) (*domain.GeofenceStatus, error)
	insertStatusFn    func(ctx context.Context, userID string, st *domain.GeofenceStatus) error
	updateStatusCASFn func(ctx context.Context, userID string, st *domain.GeofenceStatus, priorVersion int64) (bool, error)
}

func (m *mockGeofenceRepo) GetConfig(ctx context.Context, userID string) (*domain.GeofenceConfig, error) {
	return m.getConfigFn(ctx, userID)
}

func (m *mockGeofenceRepo) UpsertConfig(ctx context.Context, userID string, cfg *domain.GeofenceConfig) error {
	return m.upsertConfigFn(ctx, userID, cfg)
}

func (m *mockGeofenceRepo) GetStatus(ctx context.Context, userID string) (*domain.GeofenceStatus, error) {
	return m.getStatusFn(ctx, userID)
}

func (m *mockGeofenceRepo) InsertStatus(ctx context.Context, userID string, st *domain.GeofenceStatus) error {
	return m.insertStatusFn(ctx, userID, st)
}

func (m *mockGeofenceRepo) UpdateStatusCAS(ctx context.Context, userID string, st *domain.GeofenceStatus, priorVersion int64) (bool, error) {
	return m.updateStatusCASFn(ctx, userID, st, priorVersion)
}

type mockRecorder struct {
	recorded []*domain.UserPosition
}

func (m *mockRecorder) Record(_ context.Context, up *domain.UserPosition) error {
	m.recorded = append(m.recorded, up)
	return nil
}

type mockNotifier struct {
	notifyFn func(ctx context.Context, userID string, t domain.TransitionType, pos domain.Position, distanceMeters float64) error
	calls    []domain.TransitionType
}

func (m *mockNotifier) NotifyTransition(ctx context.Context, userID string, tt domain.TransitionType, pos domain.Position, d float64) error {
	m.calls = append(m.calls, tt)
	if m.notifyFn != nil {
		return m.notifyFn(ctx, userID, tt, pos, d)
	}
	return nil
}

type mockEventPublisher struct {
	transitions []*domain.GeofenceTransition
	audits      []*domain.SOSAudit
}

func (m *mockEventPublisher) PublishTransition(_ context.Context, t *domain.GeofenceTransition) error {
	m.transitions = append(m.transitions, t)
	return nil
}

func (m *mockEventPublisher) PublishSOS(_ context.Context, a *domain.SOSAudit) error {
	m.audits = append(m.audits, a)
	return nil
}

func newTestGeofenceService(repo *mockGeofenceRepo, rec *mockRecorder, not *mockNotifier, pub *mockEventPublisher) *GeofenceService {
	svc := NewGeofenceService(repo, rec, not, pub)
	svc.now = func() time.Time { return time.Unix(1715003456, 0) }
	return svc
}

func TestHandleSample_NoConfigSkips(t *testing.T) {
	repo := &mockGeofenceRepo{
		getConfigFn: func(_ context.Context, _ string) (*domain.GeofenceConfig, error) {
			return nil, database.ErrNotFound
		},
		getStatusFn: func(_ context.Context, _ string) (*domain.GeofenceStatus, error) {
			t.Fatal("GetStatus should not be called without a config")
			return nil, nil
		},
	}
	svc := newTestGeofenceService(repo, &mockRecorder{}, &mockNotifier{}, &mockEventPublisher{})

	err := svc.HandleSample(context.Background(), &domain.UserPosition{UserID: "u1", Position: posAt(115)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHandleSample_NonFiniteDropped(t *testing.T) {
	repo := &mockGeofenceRepo{
		getConfigFn: func(_ context.Context, _ string) (*domain.GeofenceConfig, error) {
			t.Fatal("GetConfig should not be called for non-finite input")
			return nil, nil
		},
	}
	svc := newTestGeofenceService(repo, &mockRecorder{}, &mockNotifier{}, &mockEventPublisher{})

	up := &domain.UserPosition{UserID: "u1", Position: domain.Position{Latitude: math.NaN(), Longitude: 0}}
	if err := svc.HandleSample(context.Background(), up); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHandleSample_ExitNotifiesAndPublishes(t *testing.T) {
	cfg := testConfig()
	var savedStatus *domain.GeofenceStatus
	repo := &mockGeofenceRepo{
		getConfigFn: func(_ context.Context, _ string) (*domain.GeofenceConfig, error) {
			c := cfg
			return &c, nil
		},
		getStatusFn: func(_ context.Context, _ string) (*domain.GeofenceStatus, error) {
			return &domain.GeofenceStatus{Inside: true, Version: 3}, nil
		},
		updateStatusCASFn: func(_ context.Context, _ string, st *domain.GeofenceStatus, priorVersion int64) (bool, error) {
			if priorVersion != 3 {
				t.Errorf("priorVersion = %d, want 3", priorVersion)
			}
			savedStatus = st
			return true, nil
		},
	}
	rec := &mockRecorder{}
	not := &mockNotifier{}
	pub := &mockEventPublisher{}
	svc := newTestGeofenceService(repo, rec, not, pub)

	err := svc.HandleSample(context.Background(), &domain.UserPosition{UserID: "u1", Position: posAt(115)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if savedStatus == nil || savedStatus.Inside {
		t.Fatal("expected outside status to be saved")
	}
	if len(rec.recorded) != 1 {
		t.Errorf("expected 1 recorded position, got %d", len(rec.recorded))
	}
	if len(not.calls) != 1 || not.calls[0] != domain.GeofenceExit {
		t.Fatalf("expected one exit notification, got %v", not.calls)
	}
	if len(pub.transitions) != 1 {
		t.Fatalf("expected 1 published transition, got %d", len(pub.transitions))
	}
	if pub.transitions[0].Type != domain.GeofenceExit || !pub.transitions[0].Notified {
		t.Errorf("unexpected transition event: %+v", pub.transitions[0])
	}
}

func TestHandleSample_CooldownSuppressedStillPublishes(t *testing.T) {
	cfg := testConfig()
	now := time.Unix(1715003456, 0)
	repo := &mockGeofenceRepo{
		getConfigFn: func(_ context.Context, _ string) (*domain.GeofenceConfig, error) {
			c := cfg
			return &c, nil
		},
		getStatusFn: func(_ context.Context, _ string) (*domain.GeofenceStatus, error) {
			return &domain.GeofenceStatus{Inside: true, LastNotifiedAt: now.Add(-time.Minute), Version: 1}, nil
		},
		updateStatusCASFn: func(_ context.Context, _ string, _ *domain.GeofenceStatus, _ int64) (bool, error) {
			return true, nil
		},
	}
	not := &mockNotifier{
		notifyFn: func(_ context.Context, _ string, _ domain.TransitionType, _ domain.Position, _ float64) error {
			t.Fatal("notifier must not be called during cooldown")
			return nil
		},
	}
	pub := &mockEventPublisher{}
	svc := newTestGeofenceService(repo, &mockRecorder{}, not, pub)

	err := svc.HandleSample(context.Background(), &domain.UserPosition{UserID: "u1", Position: posAt(115)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pub.transitions) != 1 || pub.transitions[0].Notified {
		t.Fatalf("expected one unnotified transition, got %+v", pub.transitions)
	}
}

func TestHandleSample_CASConflictRetries(t *testing.T) {
	cfg := testConfig()
	statusReads := 0
	casCalls := 0
	repo := &mockGeofenceRepo{
		getConfigFn: func(_ context.Context, _ string) (*domain.GeofenceConfig, error) {
			c := cfg
			return &c, nil
		},
		getStatusFn: func(_ context.Context, _ string) (*domain.GeofenceStatus, error) {
			statusReads++
			return &domain.GeofenceStatus{Inside: true, Version: int64(statusReads)}, nil
		},
		updateStatusCASFn: func(_ context.Context, _ string, _ *domain.GeofenceStatus, _ int64) (bool, error) {
			casCalls++
			return casCalls > 1, nil // first write loses the race
		},
	}
	not := &mockNotifier{}
	svc := newTestGeofenceService(repo, &mockRecorder{}, not, &mockEventPublisher{})

	err := svc.HandleSample(context.Background(), &domain.UserPosition{UserID: "u1", Position: posAt(115)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if statusReads != 2 || casCalls != 2 {
		t.Errorf("expected 2 reads and 2 CAS attempts, got %d/%d", statusReads, casCalls)
	}
	if len(not.calls) != 1 {
		t.Errorf("expected exactly one notification after retry, got %d", len(not.calls))
	}
}

func TestHandleSample_CASExhaustedDropsSample(t *testing.T) {
	cfg := testConfig()
	repo := &mockGeofenceRepo{
		getConfigFn: func(_ context.Context, _ string) (*domain.GeofenceConfig, error) {
			c := cfg
			return &c, nil
		},
		getStatusFn: func(_ context.Context, _ string) (*domain.GeofenceStatus, error) {
			return &domain.GeofenceStatus{Inside: true, Version: 1}, nil
		},
		updateStatusCASFn: func(_ context.Context, _ string, _ *domain.GeofenceStatus, _ int64) (bool, error) {
			return false, nil
		},
	}
	not := &mockNotifier{}
	svc := newTestGeofenceService(repo, &mockRecorder{}, not, &mockEventPublisher{})

	err := svc.HandleSample(context.Background(), &domain.UserPosition{UserID: "u1", Position: posAt(115)})
	if err != nil {
		t.Fatalf("dropping a sample must not error: %v", err)
	}
	if len(not.calls) != 0 {
		t.Error("dropped sample must not notify")
	}
}

func TestHandleSample_FirstSampleInsertsDefault(t *testing.T) {
	cfg := testConfig()
	inserted := false
	repo := &mockGeofenceRepo{
		getConfigFn: func(_ context.Context, _ string) (*domain.GeofenceConfig, error) {
			c := cfg
			return &c, nil
		},
		getStatusFn: func(_ context.Context, _ string) (*domain.GeofenceStatus, error) {
			if !inserted {
				return nil, database.ErrNotFound
			}
			st := domain.DefaultGeofenceStatus()
			return &st, nil
		},
		insertStatusFn: func(_ context.Context, _ string, st *domain.GeofenceStatus) error {
			if !st.Inside {
				t.Error("default status must start inside")
			}
			inserted = true
			return nil
		},
		updateStatusCASFn: func(_ context.Context, _ string, _ *domain.GeofenceStatus, priorVersion int64) (bool, error) {
			if priorVersion != 0 {
				t.Errorf("priorVersion = %d, want 0", priorVersion)
			}
			return true, nil
		},
	}
	not := &mockNotifier{}
	svc := newTestGeofenceService(repo, &mockRecorder{}, not, &mockEventPublisher{})

	// First-ever sample inside the fence: no transition, no notification.
	err := svc.HandleSample(context.Background(), &domain.UserPosition{UserID: "u1", Position: posAt(50)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !inserted {
		t.Fatal("expected default status insert")
	}
	if len(not.calls) != 0 {
		t.Error("first sample inside must not notify")
	}
}

func TestHandleSample_NotifierErrorIsSwallowed(t *testing.T) {
	cfg := testConfig()
	repo := &mockGeofenceRepo{
		getConfigFn: func(_ context.Context, _ string) (*domain.GeofenceConfig, error) {
			c := cfg
			return &c, nil
		},
		getStatusFn: func(_ context.Context, _ string) (*domain.GeofenceStatus, error) {
			return &domain.GeofenceStatus{Inside: true, Version: 1}, nil
		},
		updateStatusCASFn: func(_ context.Context, _ string, _ *domain.GeofenceStatus, _ int64) (bool, error) {
			return true, nil
		},
	}
	not := &mockNotifier{
		notifyFn: func(_ context.Context, _ string, _ domain.TransitionType, _ domain.Position, _ float64) error {
			return errors.New("provider down")
		},
	}
	svc := newTestGeofenceService(repo, &mockRecorder{}, not, &mockEventPublisher{})

	if err := svc.HandleSample(context.Background(), &domain.UserPosition{UserID: "u1", Position: posAt(115)}); err != nil {
		t.Fatalf("notify failure must not fail the sample: %v", err)
	}
}
