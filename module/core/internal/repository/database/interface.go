package database

import (
	"context"
	"errors"

	"github.com/sinch-billava935/AlertMate-360/module/core/domain"
)

var ErrNotFound = errors.New("not found")

type GeofenceRepository interface {
	GetConfig(ctx context.Context, userID string) (*domain.GeofenceConfig, error)
	UpsertConfig(ctx context.Context, userID string, cfg *domain.GeofenceConfig) error
	GetStatus(ctx context.Context, userID string) (*domain.GeofenceStatus, error)
	// InsertStatus creates the initial status record. It must be a no-op
	// when a record already exists so concurrent first samples cannot
	// clobber one another.
	InsertStatus(ctx context.Context, userID string, st *domain.GeofenceStatus) error
	// UpdateStatusCAS writes st only if the stored version still equals
	// priorVersion. Returns false (and no error) on a version conflict.
	UpdateStatusCAS(ctx context.Context, userID string, st *domain.GeofenceStatus, priorVersion int64) (bool, error)
}

type ContactRepository interface {
	// ListVerified returns the user's verified contacts in creation order.
	ListVerified(ctx context.Context, userID string) ([]domain.Contact, error)
}

type TokenRepository interface {
	// Tokens returns the user's device tokens, newest first.
	Tokens(ctx context.Context, userID string) ([]string, error)
}

type PositionRepository interface {
	Insert(ctx context.Context, up *domain.UserPosition) error
	GetLatest(ctx context.Context, userID string) (*domain.UserPosition, error)
	GetRecent(ctx context.Context, userID string, limit int) ([]domain.UserPosition, error)
}
