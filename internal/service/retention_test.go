package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestPruneRawIngests(t *testing.T) {
	repo := &stubRepo{pruned: 7}
	svc := &RetentionService{Repo: repo, Logger: zap.NewNop(), MaxAge: 24 * time.Hour}

	before := time.Now().UTC().Add(-24 * time.Hour)
	if err := svc.PruneRawIngests(context.Background()); err != nil {
		t.Fatalf("PruneRawIngests: %v", err)
	}
	if repo.deletedBefore == nil {
		t.Fatalf("delete never issued")
	}
	if repo.deletedBefore.Before(before.Add(-time.Minute)) || repo.deletedBefore.After(time.Now().UTC()) {
		t.Fatalf("cutoff = %v, want roughly now-24h", repo.deletedBefore)
	}
}

func TestPruneDisabledWithoutMaxAge(t *testing.T) {
	repo := &stubRepo{}
	svc := &RetentionService{Repo: repo, Logger: zap.NewNop()}
	if err := svc.PruneRawIngests(context.Background()); err != nil {
		t.Fatalf("PruneRawIngests: %v", err)
	}
	if repo.deletedBefore != nil {
		t.Fatalf("prune ran with zero retention window")
	}
}
