package models

import "time"

type WalletState struct {
	SoftTokens int64 `json:"softTokens"`
	HardTokens int64 `json:"hardTokens"`
}

type ProgressState struct {
	Level                  int                        `json:"level"`
	XP                     int                        `json:"xp"`
	XPToNextLevel          int                        `json:"xpToNextLevel"`
	CurrentStreak          int                        `json:"currentStreak"`
	BestStreak             int                        `json:"bestStreak"`
	Stats                  Stats                      `json:"stats"`
	UnlockedAchievementIDs []string                   `json:"unlockedAchievementIds"`
	Missions               map[string]MissionProgress `json:"missions,omitempty"`
}

// PlatformUserState is the persisted snapshot of one user.
type PlatformUserState struct {
	UserID   string        `json:"userId"`
	Wallet   WalletState   `json:"wallet"`
	Progress ProgressState `json:"progress"`
	SavedAt  time.Time     `json:"savedAt"`
}

// PlatformUserSeed provisions a user that has no wallet or progress yet.
// Zero Level and XPToNextLevel fall back to the configured curve.
type PlatformUserSeed struct {
	Coins                  int64
	Gems                   int64
	Level                  int
	XP                     int
	XPToNextLevel          int
	CurrentStreak          int
	BestStreak             int
	Stats                  Stats
	UnlockedAchievementIDs []string
	Missions               map[string]MissionProgress
}
