package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"hubpsp-backend/internal/models"
)

// MemoryStore keeps snapshots in process memory. Snapshots are stored encoded so
// callers never share maps or slices with the store.
type MemoryStore struct {
	mu         sync.Mutex
	states     map[string][]byte
	movements  map[string][]models.Movement
	maxPerUser int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:     make(map[string][]byte),
		movements:  make(map[string][]models.Movement),
		maxPerUser: MaxMovementHistory,
	}
}

func (s *MemoryStore) SaveUserState(_ context.Context, state *models.PlatformUserState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal user state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.UserID] = data
	return nil
}

func (s *MemoryStore) LoadUserState(_ context.Context, userID string) (*models.PlatformUserState, error) {
	s.mu.Lock()
	data, ok := s.states[userID]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	var state models.PlatformUserState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user state: %w", err)
	}
	return &state, nil
}

func (s *MemoryStore) AppendMovements(_ context.Context, userID string, movements []models.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := append(s.movements[userID], movements...)
	if len(all) > s.maxPerUser {
		all = all[len(all)-s.maxPerUser:]
	}
	s.movements[userID] = all
	return nil
}

func (s *MemoryStore) ListMovements(_ context.Context, userID string, limit int64) ([]models.Movement, error) {
	limit = clampHistoryLimit(limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.movements[userID]
	out := make([]models.Movement, 0, min(int64(len(all)), limit))
	for i := len(all) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func clampHistoryLimit(limit int64) int64 {
	if limit <= 0 || limit > MaxMovementHistory {
		return 50
	}
	return limit
}
