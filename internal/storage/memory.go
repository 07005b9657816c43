package storage

import (
	"context"
	"sync"

	"catbox/internal/model"
)

type MemoryStore struct {
	mu           sync.RWMutex
	initialized  bool
	runs         map[string]model.RunRecord
	outcomes     map[string]model.OutcomeRecord
	trajectories map[string][]model.TrajectoryPoint
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.outcomes = make(map[string]model.OutcomeRecord)
	s.trajectories = make(map[string][]model.TrajectoryPoint)
	return nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	return s.Init(ctx)
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, id)
	delete(s.outcomes, id)
	delete(s.trajectories, id)
	return nil
}

func (s *MemoryStore) SaveOutcome(_ context.Context, outcome model.OutcomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.outcomes[outcome.RunID] = outcome
	return nil
}

func (s *MemoryStore) GetOutcome(_ context.Context, runID string) (model.OutcomeRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	outcome, ok := s.outcomes[runID]
	return outcome, ok, nil
}

func (s *MemoryStore) SaveTrajectory(_ context.Context, runID string, points []model.TrajectoryPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := append([]model.TrajectoryPoint(nil), points...)
	s.trajectories[runID] = copied
	return nil
}

func (s *MemoryStore) GetTrajectory(_ context.Context, runID string) ([]model.TrajectoryPoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points, ok := s.trajectories[runID]
	if !ok {
		return nil, false, nil
	}
	copied := append([]model.TrajectoryPoint(nil), points...)
	return copied, true, nil
}
