package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sinch-billava935/AlertMate-360/module/core/domain"
	"github.com/sinch-billava935/AlertMate-360/module/core/internal/repository/database"
)

var _ database.PositionRepository = (*PositionRepo)(nil)

type PositionRepo struct {
	db *sql.DB
}

func NewPositionRepo(db *sql.DB) *PositionRepo {
	return &PositionRepo{db: db}
}

func (r *PositionRepo) Insert(ctx context.Context, up *domain.UserPosition) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_positions (user_id, latitude, longitude, observed_at) VALUES ($1, $2, $3, $4)`,
		up.UserID, up.Position.Latitude, up.Position.Longitude, up.Position.ObservedAt,
	)
	return err
}

func (r *PositionRepo) GetLatest(ctx context.Context, userID string) (*domain.UserPosition, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT user_id, latitude, longitude, observed_at FROM user_positions WHERE user_id = $1 ORDER BY observed_at DESC LIMIT 1`,
		userID,
	)

	var up domain.UserPosition
	if err := row.Scan(&up.UserID, &up.Position.Latitude, &up.Position.Longitude, &up.Position.ObservedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return &up, nil
}

func (r *PositionRepo) GetRecent(ctx context.Context, userID string, limit int) ([]domain.UserPosition, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT user_id, latitude, longitude, observed_at FROM user_positions WHERE user_id = $1 ORDER BY observed_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []domain.UserPosition
	for rows.Next() {
		var up domain.UserPosition
		if err := rows.Scan(&up.UserID, &up.Position.Latitude, &up.Position.Longitude, &up.Position.ObservedAt); err != nil {
			return nil, err
		}
		results = append(results, up)
	}
	return results, rows.Err()
}
