package services

import (
	"fmt"
	"math"

	"hubpsp-backend/internal/models"
)

// RewardCalculator turns a finished round into a coin reward. It holds no state
// besides its rules, so identical inputs always produce identical output.
type RewardCalculator struct {
	rules models.RewardRules
}

func NewRewardCalculator(rules models.RewardRules) *RewardCalculator {
	return &RewardCalculator{rules: rules}
}

// Calculate computes
//
//	floor(score * baseRate * difficulty * (1 + streakBonus) * multiplier)
//
// where streakBonus grows by StreakBonusPerPoint for every streak point above one,
// capped at MaxStreakBonus. A streak of zero counts as one, and a zero multiplier
// counts as 1.0. Rewards too large for an int64 fail with ErrInvalidInput.
func (rc *RewardCalculator) Calculate(score int64, difficulty models.Difficulty, streak int, multiplier float64) (models.RewardBreakdown, error) {
	if score < 0 {
		return models.RewardBreakdown{}, fmt.Errorf("%w: score must be non-negative, got %d", models.ErrInvalidInput, score)
	}
	difficultyMultiplier, ok := rc.rules.DifficultyMultipliers[difficulty]
	if !ok {
		return models.RewardBreakdown{}, fmt.Errorf("%w: unknown difficulty %q", models.ErrInvalidInput, difficulty)
	}
	if multiplier < 0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return models.RewardBreakdown{}, fmt.Errorf("%w: multiplier must be a non-negative number", models.ErrInvalidInput)
	}
	if multiplier == 0 {
		multiplier = 1.0
	}
	if streak < 1 {
		streak = 1
	}

	streakBonus := math.Min(float64(streak-1)*rc.rules.StreakBonusPerPoint, rc.rules.MaxStreakBonus)

	raw := float64(score) * rc.rules.BaseRate * difficultyMultiplier * (1 + streakBonus) * multiplier
	// The epsilon keeps values like 29.999999999 from losing a coin to float error.
	floored := math.Floor(raw + 1e-9)
	// float64(math.MaxInt64) rounds up to 2^63, which no int64 can hold.
	if floored >= float64(math.MaxInt64) {
		return models.RewardBreakdown{}, fmt.Errorf("%w: reward of %g coins is out of range", models.ErrInvalidInput, floored)
	}
	reward := int64(floored)
	if reward < 0 {
		reward = 0
	}

	return models.RewardBreakdown{
		Score:                score,
		Difficulty:           difficulty,
		DifficultyMultiplier: difficultyMultiplier,
		Streak:               streak,
		StreakBonus:          streakBonus,
		Multiplier:           multiplier,
		FinalReward:          reward,
	}, nil
}

// XPForScore is the experience granted for a round: one point per ScorePerXP score,
// never less than MinXPPerRound.
func XPForScore(rules models.Rules, score int64) int {
	xp := int(score / int64(rules.ScorePerXP))
	if xp < rules.MinXPPerRound {
		return rules.MinXPPerRound
	}
	return xp
}
