package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"leadwatch/internal/repository"
)

// RetentionService prunes raw snapshots past their retention window.
// Derived state and events are kept indefinitely.
type RetentionService struct {
	Repo   repository.Repository
	Logger *zap.Logger
	MaxAge time.Duration
}

func (s *RetentionService) PruneRawIngests(ctx context.Context) error {
	if s.MaxAge <= 0 {
		return nil
	}
	cutoff := time.Now().UTC().Add(-s.MaxAge)
	deleted, err := s.Repo.DeleteRawIngestsBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.Logger.Info("raw snapshots pruned",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
	}
	return nil
}
