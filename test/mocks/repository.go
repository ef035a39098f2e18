// Package mocks holds hand-rolled testify mocks shared between service
// tests.
package mocks

import (
	"context"

	"github.com/Houeta/rival-radar/internal/models"
	"github.com/stretchr/testify/mock"
)

// SnapshotRepository is a mock of repository.SnapshotRepository.
type SnapshotRepository struct {
	mock.Mock
}

func (m *SnapshotRepository) LatestSnapshot(ctx context.Context, pageID int64) (*models.Snapshot, error) {
	args := m.Called(ctx, pageID)

	var snap *models.Snapshot
	if args.Get(0) != nil {
		snap = args.Get(0).(*models.Snapshot)
	}
	return snap, args.Error(1)
}

func (m *SnapshotRepository) AppendSnapshot(ctx context.Context, snap *models.Snapshot) (*models.Snapshot, error) {
	args := m.Called(ctx, snap)

	var stored *models.Snapshot
	if args.Get(0) != nil {
		stored = args.Get(0).(*models.Snapshot)
	}
	return stored, args.Error(1)
}

func (m *SnapshotRepository) RecordChanges(ctx context.Context, events []models.ChangeEvent) (int, error) {
	args := m.Called(ctx, events)
	return args.Int(0), args.Error(1)
}
