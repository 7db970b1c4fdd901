package service

import (
	"context"

	"github.com/sinch-billava935/AlertMate-360/module/core/domain"
	"github.com/sinch-billava935/AlertMate-360/module/core/internal/repository/database"
)

type PositionService struct {
	repo database.PositionRepository
}

func NewPositionService(repo database.PositionRepository) *PositionService {
	return &PositionService{repo: repo}
}

func (s *PositionService) Record(ctx context.Context, up *domain.UserPosition) error {
	return s.repo.Insert(ctx, up)
}

func (s *PositionService) Latest(ctx context.Context, userID string) (*domain.UserPosition, error) {
	return s.repo.GetLatest(ctx, userID)
}

func (s *PositionService) Recent(ctx context.Context, userID string, limit int) ([]domain.UserPosition, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.repo.GetRecent(ctx, userID, limit)
}
