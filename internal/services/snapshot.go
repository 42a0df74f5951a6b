package services

import (
	"context"
	"fmt"

	"hubpsp-backend/internal/models"
)

// PlatformStore persists snapshots and the movement journal, keyed by user id.
type PlatformStore interface {
	SaveUserState(ctx context.Context, state *models.PlatformUserState) error
	// LoadUserState returns nil, nil when no snapshot exists for the user.
	LoadUserState(ctx context.Context, userID string) (*models.PlatformUserState, error)
	AppendMovements(ctx context.Context, userID string, movements []models.Movement) error
	// ListMovements returns the most recent movements first.
	ListMovements(ctx context.Context, userID string, limit int64) ([]models.Movement, error)
	Close() error
}

// ExportUserState captures everything needed to rebuild the user on a fresh engine:
// balances, level curve position, streaks, lifetime stats, unlocks and mission progress.
func (e *PlatformEngine) ExportUserState(userID string) (*models.PlatformUserState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exportLocked(userID)
}

// ExportUserStateSince returns the snapshot together with the movements recorded
// after the first offset ones, read under the same lock so they always agree.
func (e *PlatformEngine) ExportUserStateSince(userID string, offset int) (*models.PlatformUserState, []models.Movement, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	state, err := e.exportLocked(userID)
	if err != nil {
		return nil, nil, err
	}
	return state, e.ledger.MovementsSince(userID, offset), nil
}

func (e *PlatformEngine) exportLocked(userID string) (*models.PlatformUserState, error) {
	wallet, ok := e.ledger.GetWallet(userID)
	if !ok {
		return nil, fmt.Errorf("%w: no wallet for %s", models.ErrNotFound, userID)
	}
	progress, err := e.tracker.GetProgress(userID)
	if err != nil {
		return nil, err
	}

	return &models.PlatformUserState{
		UserID: userID,
		Wallet: models.WalletState{
			SoftTokens: wallet.SoftTokens,
			HardTokens: wallet.HardTokens,
		},
		Progress: models.ProgressState{
			Level:                  progress.Level,
			XP:                     progress.XP,
			XPToNextLevel:          progress.XPToNextLevel,
			CurrentStreak:          progress.CurrentStreak,
			BestStreak:             progress.BestStreak,
			Stats:                  progress.Stats,
			UnlockedAchievementIDs: progress.UnlockedAchievementIDs,
			Missions:               progress.Missions,
		},
		SavedAt: e.now(),
	}, nil
}

// SeedFromState turns a snapshot back into an InitUser seed.
func SeedFromState(state *models.PlatformUserState) *models.PlatformUserSeed {
	if state == nil {
		return nil
	}

	seed := &models.PlatformUserSeed{
		Coins:                  state.Wallet.SoftTokens,
		Gems:                   state.Wallet.HardTokens,
		Level:                  state.Progress.Level,
		XP:                     state.Progress.XP,
		XPToNextLevel:          state.Progress.XPToNextLevel,
		CurrentStreak:          state.Progress.CurrentStreak,
		BestStreak:             state.Progress.BestStreak,
		Stats:                  state.Progress.Stats,
		UnlockedAchievementIDs: append([]string{}, state.Progress.UnlockedAchievementIDs...),
		Missions:               make(map[string]models.MissionProgress, len(state.Progress.Missions)),
	}
	for id, mp := range state.Progress.Missions {
		seed.Missions[id] = mp
	}
	return seed
}

var (
	_ PlatformStore = (*MemoryStore)(nil)
	_ PlatformStore = (*RedisService)(nil)
	_ PlatformStore = (*SQLiteStore)(nil)
)
