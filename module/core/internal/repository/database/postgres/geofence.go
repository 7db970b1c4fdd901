package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sinch-billava935/AlertMate-360/module/core/domain"
	"github.com/sinch-billava935/AlertMate-360/module/core/internal/repository/database"
)

var _ database.GeofenceRepository = (*GeofenceRepo)(nil)

type GeofenceRepo struct {
	db *sql.DB
}

func NewGeofenceRepo(db *sql.DB) *GeofenceRepo {
	return &GeofenceRepo{db: db}
}

func (r *GeofenceRepo) GetConfig(ctx context.Context, userID string) (*domain.GeofenceConfig, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT center_latitude, center_longitude, radius_meters, hysteresis_meters, cooldown_ms FROM geofence_configs WHERE user_id = $1`,
		userID,
	)

	var cfg domain.GeofenceConfig
	var cooldownMs int64
	if err := row.Scan(&cfg.CenterLatitude, &cfg.CenterLongitude, &cfg.RadiusMeters, &cfg.HysteresisMeters, &cooldownMs); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	cfg.Cooldown = time.Duration(cooldownMs) * time.Millisecond
	return &cfg, nil
}

func (r *GeofenceRepo) UpsertConfig(ctx context.Context, userID string, cfg *domain.GeofenceConfig) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO geofence_configs (user_id, center_latitude, center_longitude, radius_meters, hysteresis_meters, cooldown_ms)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE SET
		   center_latitude = EXCLUDED.center_latitude,
		   center_longitude = EXCLUDED.center_longitude,
		   radius_meters = EXCLUDED.radius_meters,
		   hysteresis_meters = EXCLUDED.hysteresis_meters,
		   cooldown_ms = EXCLUDED.cooldown_ms`,
		userID, cfg.CenterLatitude, cfg.CenterLongitude, cfg.RadiusMeters, cfg.HysteresisMeters, cfg.Cooldown.Milliseconds(),
	)
	return err
}

func (r *GeofenceRepo) GetStatus(ctx context.Context, userID string) (*domain.GeofenceStatus, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT inside, last_distance_meters, last_transition_at, last_notified_at, version FROM geofence_statuses WHERE user_id = $1`,
		userID,
	)

	var st domain.GeofenceStatus
	var transitionAt, notifiedAt sql.NullTime
	if err := row.Scan(&st.Inside, &st.LastDistanceMeters, &transitionAt, &notifiedAt, &st.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	if transitionAt.Valid {
		st.LastTransitionAt = transitionAt.Time
	}
	if notifiedAt.Valid {
		st.LastNotifiedAt = notifiedAt.Time
	}
	return &st, nil
}

func (r *GeofenceRepo) InsertStatus(ctx context.Context, userID string, st *domain.GeofenceStatus) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO geofence_statuses (user_id, inside, last_distance_meters, last_transition_at, last_notified_at, version)
		 VALUES ($1, $2, $3, $4, $5, 0)
		 ON CONFLICT (user_id) DO NOTHING`,
		userID, st.Inside, st.LastDistanceMeters, nullTime(st.LastTransitionAt), nullTime(st.LastNotifiedAt),
	)
	return err
}

func (r *GeofenceRepo) UpdateStatusCAS(ctx context.Context, userID string, st *domain.GeofenceStatus, priorVersion int64) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE geofence_statuses SET
		   inside = $2,
		   last_distance_meters = $3,
		   last_transition_at = $4,
		   last_notified_at = $5,
		   version = version + 1
		 WHERE user_id = $1 AND version = $6`,
		userID, st.Inside, st.LastDistanceMeters, nullTime(st.LastTransitionAt), nullTime(st.LastNotifiedAt), priorVersion,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
