package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sinch-billava935/AlertMate-360/module/core/domain"
	"github.com/sinch-billava935/AlertMate-360/module/core/internal/repository/database"
	"github.com/sinch-billava935/AlertMate-360/module/core/internal/repository/publisher"
	"github.com/sinch-billava935/AlertMate-360/module/core/metrics"
)

// casAttempts bounds the read-evaluate-write loop. A sample dropped after
// exhausting the attempts is recovered by the next sample; the cooldown
// invariant is what the CAS protects.
const casAttempts = 3

const defaultQueryTimeout = 3 * time.Second

type transitionNotifier interface {
	NotifyTransition(ctx context.Context, userID string, t domain.TransitionType, pos domain.Position, distanceMeters float64) error
}

type positionRecorder interface {
	Record(ctx context.Context, up *domain.UserPosition) error
}

type GeofenceService struct {
	repo         database.GeofenceRepository
	positions    positionRecorder
	notifier     transitionNotifier
	publisher    publisher.EventPublisher
	queryTimeout time.Duration
	now          func() time.Time
}

func NewGeofenceService(repo database.GeofenceRepository, positions positionRecorder, notifier transitionNotifier, pub publisher.EventPublisher) *GeofenceService {
	return &GeofenceService{
		repo:         repo,
		positions:    positions,
		notifier:     notifier,
		publisher:    pub,
		queryTimeout: defaultQueryTimeout,
		now:          time.Now,
	}
}

// Evaluation is the outcome of classifying one position sample.
type Evaluation struct {
	Status         domain.GeofenceStatus
	ShouldNotify   bool
	DistanceMeters float64
}

// Evaluate classifies pos against cfg given the prior status. Pure: the
// caller persists the returned status and performs the notify side effect.
//
// The hysteresis band keeps the prior classification sticky within
// [radius-hysteresis, radius+hysteresis] so GPS jitter around the boundary
// cannot flap the state. A transition always updates the status; the
// cooldown gates only the notification.
func Evaluate(pos domain.Position, cfg domain.GeofenceConfig, prior domain.GeofenceStatus, now time.Time) Evaluation {
	d := haversine(pos.Latitude, pos.Longitude, cfg.CenterLatitude, cfg.CenterLongitude)

	inside := prior.Inside
	if prior.Inside {
		inside = d <= cfg.RadiusMeters+cfg.HysteresisMeters
	} else {
		inside = d <= cfg.RadiusMeters-cfg.HysteresisMeters
	}

	next := prior
	next.LastDistanceMeters = d

	if inside == prior.Inside {
		return Evaluation{Status: next, DistanceMeters: d}
	}

	next.Inside = inside
	next.LastTransitionAt = now

	if now.Sub(prior.LastNotifiedAt) < cfg.Cooldown {
		return Evaluation{Status: next, DistanceMeters: d}
	}

	next.LastNotifiedAt = now
	return Evaluation{Status: next, ShouldNotify: true, DistanceMeters: d}
}

// HandleSample runs one position sample through the full evaluation path:
// load config, CAS-update the status, record the trail, then notify and
// publish on a boundary crossing. Notify and publish failures are logged
// only; the status write already stands.
func (s *GeofenceService) HandleSample(ctx context.Context, up *domain.UserPosition) error {
	if !isFinite(up.Position.Latitude) || !isFinite(up.Position.Longitude) {
		log.Printf("geofence: dropping sample for user %s: non-finite coordinates", up.UserID)
		return nil
	}

	cfg, err := s.loadConfig(ctx, up.UserID)
	if errors.Is(err, database.ErrNotFound) {
		log.Printf("geofence: no config for user %s, skipping evaluation", up.UserID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyDefaults()

	metrics.SamplesEvaluated.Inc()

	var eval Evaluation
	var prior domain.GeofenceStatus
	saved := false
	for attempt := 0; attempt < casAttempts; attempt++ {
		st, err := s.loadStatus(ctx, up.UserID)
		if err != nil {
			return fmt.Errorf("load status: %w", err)
		}
		prior = *st

		eval = Evaluate(up.Position, *cfg, prior, s.now())

		ok, err := s.updateStatus(ctx, up.UserID, &eval.Status, prior.Version)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if ok {
			saved = true
			break
		}
	}
	if !saved {
		log.Printf("geofence: dropping sample for user %s after %d conflicting status writes", up.UserID, casAttempts)
		return nil
	}

	if err := s.positions.Record(ctx, up); err != nil {
		log.Printf("geofence: record position for user %s: %v", up.UserID, err)
	}

	if eval.Status.Inside == prior.Inside {
		return nil
	}

	direction := domain.GeofenceExit
	if eval.Status.Inside {
		direction = domain.GeofenceEnter
	}
	metrics.Transitions.WithLabelValues(string(direction)).Inc()

	if s.publisher != nil {
		transition := &domain.GeofenceTransition{
			UserID:         up.UserID,
			Type:           direction,
			Position:       up.Position,
			DistanceMeters: eval.DistanceMeters,
			Notified:       eval.ShouldNotify,
			OccurredAt:     eval.Status.LastTransitionAt,
		}
		if err := s.publisher.PublishTransition(ctx, transition); err != nil {
			log.Printf("geofence: publish transition for user %s: %v", up.UserID, err)
		}
	}

	if !eval.ShouldNotify {
		metrics.Notifications.WithLabelValues("suppressed").Inc()
		log.Printf("geofence: user %s crossed boundary (%s) within cooldown, notification suppressed", up.UserID, direction)
		return nil
	}

	if err := s.notifier.NotifyTransition(ctx, up.UserID, direction, up.Position, eval.DistanceMeters); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		log.Printf("geofence: notify user %s: %v", up.UserID, err)
	}
	return nil
}

// Status returns the persisted state machine record for a user.
func (s *GeofenceService) Status(ctx context.Context, userID string) (*domain.GeofenceStatus, error) {
	cctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	return s.repo.GetStatus(cctx, userID)
}

func (s *GeofenceService) SaveConfig(ctx context.Context, userID string, cfg *domain.GeofenceConfig) error {
	cfg.ApplyDefaults()
	cctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	return s.repo.UpsertConfig(cctx, userID, cfg)
}

func (s *GeofenceService) loadConfig(ctx context.Context, userID string) (*domain.GeofenceConfig, error) {
	cctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	return s.repo.GetConfig(cctx, userID)
}

// loadStatus reads the user's status, creating the inside/never-notified
// default on first observation. The insert is a no-op on conflict, so two
// concurrent first samples converge on one record.
func (s *GeofenceService) loadStatus(ctx context.Context, userID string) (*domain.GeofenceStatus, error) {
	cctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	st, err := s.repo.GetStatus(cctx, userID)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	def := domain.DefaultGeofenceStatus()
	if err := s.repo.InsertStatus(cctx, userID, &def); err != nil {
		return nil, err
	}
	return s.repo.GetStatus(cctx, userID)
}

func (s *GeofenceService) updateStatus(ctx context.Context, userID string, st *domain.GeofenceStatus, priorVersion int64) (bool, error) {
	cctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	return s.repo.UpdateStatusCAS(cctx, userID, st, priorVersion)
}
