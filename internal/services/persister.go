package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"hubpsp-backend/internal/models"
)

// Persister moves user state between the engine and a PlatformStore. It remembers,
// per user, how much of the in-memory journal has already been written so each
// Flush appends only new movements.
type Persister struct {
	engine  *PlatformEngine
	store   PlatformStore
	logger  *zap.SugaredLogger
	mu      sync.Mutex
	flushed map[string]int
}

func NewPersister(engine *PlatformEngine, store PlatformStore, logger *zap.SugaredLogger) *Persister {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Persister{
		engine:  engine,
		store:   store,
		logger:  logger,
		flushed: make(map[string]int),
	}
}

// Restore provisions the user on the engine from the stored snapshot, or from
// defaultSeed when none exists. Users already live in the engine are left alone.
// It reports whether a stored snapshot was used.
func (p *Persister) Restore(ctx context.Context, userID string, defaultSeed *models.PlatformUserSeed) (bool, error) {
	if p.engine.HasUser(userID) {
		return false, nil
	}

	state, err := p.store.LoadUserState(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load state for %s: %w", userID, err)
	}

	seed := defaultSeed
	if state != nil {
		seed = SeedFromState(state)
	}
	if err := p.initUser(userID, seed); err != nil {
		return false, err
	}

	if state != nil {
		p.logger.Infow("user state restored", "user_id", userID, "saved_at", state.SavedAt)
	}
	return state != nil, nil
}

// Rehydrate loads a stored snapshot for a user that is not live in the engine.
// Users with no snapshot stay unknown, so queries about them still fail with ErrNotFound.
func (p *Persister) Rehydrate(ctx context.Context, userID string) error {
	if p.engine.HasUser(userID) {
		return nil
	}

	state, err := p.store.LoadUserState(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load state for %s: %w", userID, err)
	}
	if state == nil {
		return nil
	}

	if err := p.initUser(userID, SeedFromState(state)); err != nil {
		return err
	}
	p.logger.Infow("user state restored", "user_id", userID, "saved_at", state.SavedAt)
	return nil
}

func (p *Persister) initUser(userID string, seed *models.PlatformUserSeed) error {
	if err := p.engine.InitUser(userID, seed); err != nil {
		return err
	}

	p.mu.Lock()
	if _, ok := p.flushed[userID]; !ok {
		// Seed balances are not movements, so the journal starts empty after a restore.
		p.flushed[userID] = 0
	}
	p.mu.Unlock()
	return nil
}

// Flush saves the user's snapshot and appends movements recorded since the last flush.
func (p *Persister) Flush(ctx context.Context, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	offset := p.flushed[userID]
	state, pending, err := p.engine.ExportUserStateSince(userID, offset)
	if err != nil {
		return err
	}

	if err := p.store.AppendMovements(ctx, userID, pending); err != nil {
		return fmt.Errorf("failed to append movements for %s: %w", userID, err)
	}
	p.flushed[userID] = offset + len(pending)

	if err := p.store.SaveUserState(ctx, state); err != nil {
		return fmt.Errorf("failed to save state for %s: %w", userID, err)
	}
	return nil
}

// FlushAll flushes every user the engine knows about and returns the first error.
func (p *Persister) FlushAll(ctx context.Context) error {
	var firstErr error
	for _, userID := range p.engine.UserIDs() {
		if err := p.Flush(ctx, userID); err != nil {
			p.logger.Errorw("failed to flush user state", "user_id", userID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// History returns stored movements, newest first.
func (p *Persister) History(ctx context.Context, userID string, limit int64) ([]models.Movement, error) {
	return p.store.ListMovements(ctx, userID, limit)
}
