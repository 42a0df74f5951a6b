package models

import "fmt"

type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
	DifficultyExpert Difficulty = "EXPERT"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExpert:
		return true
	}
	return false
}

// GameFinishInput is what a game reports when a round ends.
// Multiplier is an optional event boost; zero means 1.0.
type GameFinishInput struct {
	GameID     string     `json:"game_id"`
	Score      int64      `json:"score" binding:"min=0"`
	Difficulty Difficulty `json:"difficulty" binding:"required,oneof=EASY MEDIUM HARD EXPERT"`
	Won        bool       `json:"won"`
	Multiplier float64    `json:"multiplier,omitempty" binding:"min=0"`
}

type GameFinishOutput struct {
	BaseReward            int64           `json:"base_reward"`
	BonusFromAchievements int64           `json:"bonus_from_achievements"`
	BonusFromMissions     int64           `json:"bonus_from_missions"`
	TotalCoinsAwarded     int64           `json:"total_coins_awarded"`
	GemsAwarded           int64           `json:"gems_awarded"`
	XPEarned              int             `json:"xp_earned"`
	LevelsGained          int             `json:"levels_gained"`
	UnlockedAchievements  []Achievement   `json:"unlocked_achievements"`
	CompletedMissions     []Mission       `json:"completed_missions"`
	Progress              UserProgress    `json:"progress"`
	Reward                RewardBreakdown `json:"reward"`
}

// RewardBreakdown shows how a base reward was derived.
type RewardBreakdown struct {
	Score                int64      `json:"score"`
	Difficulty           Difficulty `json:"difficulty"`
	DifficultyMultiplier float64    `json:"difficulty_multiplier"`
	Streak               int        `json:"streak"`
	StreakBonus          float64    `json:"streak_bonus"`
	Multiplier           float64    `json:"multiplier"`
	FinalReward          int64      `json:"final_reward"`
}

// EconomyChange is a manual adjustment. Signed coin and gem deltas, non-negative XP.
type EconomyChange struct {
	Coins int64 `json:"coins"`
	Gems  int64 `json:"gems"`
	XP    int   `json:"xp"`
}

type StartGameRequest struct {
	MinBet int64 `json:"min_bet" binding:"min=0"`
}

type RefundRequest struct {
	Amount int64 `json:"amount" binding:"required,min=1"`
}

func (in *GameFinishInput) Validate() error {
	if in.GameID == "" {
		return fmt.Errorf("%w: game id is required", ErrInvalidInput)
	}
	if in.Score < 0 {
		return fmt.Errorf("%w: score must be non-negative, got %d", ErrInvalidInput, in.Score)
	}
	if !in.Difficulty.Valid() {
		return fmt.Errorf("%w: unknown difficulty %q", ErrInvalidInput, in.Difficulty)
	}
	if in.Multiplier < 0 {
		return fmt.Errorf("%w: multiplier must be non-negative", ErrInvalidInput)
	}
	return nil
}
