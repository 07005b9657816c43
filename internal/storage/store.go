package storage

import (
	"context"

	"catbox/internal/model"
)

// Store defines transaction-like persistence operations for simulation runs.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	DeleteRun(ctx context.Context, id string) error
	SaveOutcome(ctx context.Context, outcome model.OutcomeRecord) error
	GetOutcome(ctx context.Context, runID string) (model.OutcomeRecord, bool, error)
	SaveTrajectory(ctx context.Context, runID string, points []model.TrajectoryPoint) error
	GetTrajectory(ctx context.Context, runID string) ([]model.TrajectoryPoint, bool, error)
}

// Resetter is implemented by stores that can drop all persisted data.
type Resetter interface {
	Reset(ctx context.Context) error
}
