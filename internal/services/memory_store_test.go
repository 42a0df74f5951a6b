package services_test

import (
	"context"
	"fmt"
	"testing"

	"hubpsp-backend/internal/models"
	"hubpsp-backend/internal/services"
)

func TestMemoryStoreState(t *testing.T) {
	ctx := context.Background()
	store := services.NewMemoryStore()
	defer store.Close()

	state, err := store.LoadUserState(ctx, "alice")
	if err != nil || state != nil {
		t.Fatalf("Expected absent state, got %v %v", state, err)
	}

	saved := &models.PlatformUserState{
		UserID: "alice",
		Wallet: models.WalletState{SoftTokens: 10, HardTokens: 1},
		Progress: models.ProgressState{
			Level:                  2,
			UnlockedAchievementIDs: []string{"first_game"},
		},
	}
	if err := store.SaveUserState(ctx, saved); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}
	saved.Progress.UnlockedAchievementIDs[0] = "mutated"

	state, err = store.LoadUserState(ctx, "alice")
	if err != nil || state == nil {
		t.Fatalf("Expected stored state, got %v %v", state, err)
	}
	if state.Wallet.SoftTokens != 10 || state.Progress.Level != 2 {
		t.Errorf("Unexpected state %+v", state)
	}
	if state.Progress.UnlockedAchievementIDs[0] != "first_game" {
		t.Error("Store must not share slices with the caller")
	}
}

func TestMemoryStoreMovements(t *testing.T) {
	ctx := context.Background()
	store := services.NewMemoryStore()

	var batch []models.Movement
	for i := 0; i < services.MaxMovementHistory+20; i++ {
		batch = append(batch, models.Movement{ID: fmt.Sprintf("mv_%03d", i), UserID: "alice", Amount: 1})
	}
	if err := store.AppendMovements(ctx, "alice", batch); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}

	list, _ := store.ListMovements(ctx, "alice", 5)
	if len(list) != 5 || list[0].ID != "mv_119" || list[4].ID != "mv_115" {
		t.Errorf("Expected newest five first, got %v", list)
	}

	all, _ := store.ListMovements(ctx, "alice", 100)
	if len(all) != services.MaxMovementHistory || all[len(all)-1].ID != "mv_020" {
		t.Errorf("Expected history trimmed to %d, got %d", services.MaxMovementHistory, len(all))
	}

	clamped, _ := store.ListMovements(ctx, "alice", 0)
	if len(clamped) != 50 {
		t.Errorf("Expected default limit 50, got %d", len(clamped))
	}

	none, err := store.ListMovements(ctx, "bob", 10)
	if err != nil || len(none) != 0 {
		t.Errorf("Expected empty history, got %v %v", none, err)
	}
}
