package postgres

import (
	"context"
	"database/sql"

	"github.com/sinch-billava935/AlertMate-360/module/core/domain"
	"github.com/sinch-billava935/AlertMate-360/module/core/internal/repository/database"
)

var _ database.ContactRepository = (*ContactRepo)(nil)

type ContactRepo struct {
	db *sql.DB
}

func NewContactRepo(db *sql.DB) *ContactRepo {
	return &ContactRepo{db: db}
}

func (r *ContactRepo) ListVerified(ctx context.Context, userID string) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, phone_number, verified FROM emergency_contacts WHERE user_id = $1 AND verified ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []domain.Contact
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.ID, &c.PhoneNumber, &c.Verified); err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}
