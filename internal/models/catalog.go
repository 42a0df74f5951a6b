package models

import "fmt"

// Metric names a counter that achievement and mission conditions are checked against.
type Metric string

const (
	MetricGamesPlayed Metric = "GAMES_PLAYED"
	MetricWins        Metric = "WINS"
	MetricBestScore   Metric = "BEST_SCORE"
	MetricTotalScore  Metric = "TOTAL_SCORE"
	MetricStreak      Metric = "STREAK"
	MetricLevel       Metric = "LEVEL"
	// MetricRoundScore is only meaningful for missions: the score of a single round.
	MetricRoundScore Metric = "ROUND_SCORE"
)

type Condition struct {
	Metric    Metric `json:"metric" mapstructure:"metric"`
	Threshold int64  `json:"threshold" mapstructure:"threshold"`
}

type Achievement struct {
	ID          string    `json:"id" mapstructure:"id"`
	Name        string    `json:"name" mapstructure:"name"`
	Description string    `json:"description,omitempty" mapstructure:"description"`
	Condition   Condition `json:"condition" mapstructure:"condition"`
	TokenReward int64     `json:"token_reward" mapstructure:"token_reward"`
	GemReward   int64     `json:"gem_reward,omitempty" mapstructure:"gem_reward"`
}

type MissionPeriod string

const (
	PeriodDaily  MissionPeriod = "DAILY"
	PeriodWeekly MissionPeriod = "WEEKLY"
	PeriodNone   MissionPeriod = "NONE"
)

type MissionReward struct {
	SoftTokens int64 `json:"soft_tokens" mapstructure:"soft_tokens"`
	HardTokens int64 `json:"hard_tokens" mapstructure:"hard_tokens"`
	XP         int   `json:"xp" mapstructure:"xp"`
}

type Mission struct {
	ID          string        `json:"id" mapstructure:"id"`
	Name        string        `json:"name" mapstructure:"name"`
	Description string        `json:"description,omitempty" mapstructure:"description"`
	Condition   Condition     `json:"condition" mapstructure:"condition"`
	Period      MissionPeriod `json:"period" mapstructure:"period"`
	Reward      MissionReward `json:"reward" mapstructure:"reward"`
}

// LevelCurve describes the XP threshold of each level. The threshold of level n+1 is
// the threshold of level n grown by GrowthPercent, and always at least one more.
type LevelCurve struct {
	FirstLevelXP  int `json:"first_level_xp" mapstructure:"first_level_xp"`
	GrowthPercent int `json:"growth_percent" mapstructure:"growth_percent"`
}

type RewardRules struct {
	BaseRate              float64                `json:"base_rate" mapstructure:"base_rate"`
	DifficultyMultipliers map[Difficulty]float64 `json:"difficulty_multipliers" mapstructure:"difficulty_multipliers"`
	StreakBonusPerPoint   float64                `json:"streak_bonus_per_point" mapstructure:"streak_bonus_per_point"`
	MaxStreakBonus        float64                `json:"max_streak_bonus" mapstructure:"max_streak_bonus"`
}

// Rules is the whole tunable surface of the progression engine.
type Rules struct {
	Curve         LevelCurve    `json:"curve" mapstructure:"curve"`
	Reward        RewardRules   `json:"reward" mapstructure:"reward"`
	MinXPPerRound int           `json:"min_xp_per_round" mapstructure:"min_xp_per_round"`
	ScorePerXP    int           `json:"score_per_xp" mapstructure:"score_per_xp"`
	Achievements  []Achievement `json:"achievements" mapstructure:"achievements"`
	Missions      []Mission     `json:"missions" mapstructure:"missions"`
}

var difficultyOrder = []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyExpert}

func (r *Rules) Validate() error {
	if r.Curve.FirstLevelXP <= 0 {
		return fmt.Errorf("%w: first level xp must be positive", ErrInvalidInput)
	}
	if r.Curve.GrowthPercent < 0 {
		return fmt.Errorf("%w: growth percent must be non-negative", ErrInvalidInput)
	}
	if r.Reward.BaseRate < 0 || r.Reward.StreakBonusPerPoint < 0 || r.Reward.MaxStreakBonus < 0 {
		return fmt.Errorf("%w: reward rates must be non-negative", ErrInvalidInput)
	}
	if r.ScorePerXP <= 0 {
		return fmt.Errorf("%w: score per xp must be positive", ErrInvalidInput)
	}

	prev := 0.0
	for _, d := range difficultyOrder {
		m, ok := r.Reward.DifficultyMultipliers[d]
		if !ok {
			return fmt.Errorf("%w: missing multiplier for %s", ErrInvalidInput, d)
		}
		if m <= prev {
			return fmt.Errorf("%w: multiplier for %s must exceed the easier tier", ErrInvalidInput, d)
		}
		prev = m
	}

	seen := make(map[string]bool)
	for _, a := range r.Achievements {
		if a.ID == "" || seen[a.ID] {
			return fmt.Errorf("%w: duplicate or empty achievement id %q", ErrInvalidInput, a.ID)
		}
		if a.Condition.Metric == MetricRoundScore {
			return fmt.Errorf("%w: achievement %s cannot use %s", ErrInvalidInput, a.ID, MetricRoundScore)
		}
		if a.TokenReward < 0 || a.GemReward < 0 {
			return fmt.Errorf("%w: achievement %s has a negative reward", ErrInvalidInput, a.ID)
		}
		seen[a.ID] = true
	}

	seen = make(map[string]bool)
	for _, m := range r.Missions {
		if m.ID == "" || seen[m.ID] {
			return fmt.Errorf("%w: duplicate or empty mission id %q", ErrInvalidInput, m.ID)
		}
		switch m.Condition.Metric {
		case MetricGamesPlayed, MetricWins, MetricTotalScore, MetricRoundScore:
		default:
			return fmt.Errorf("%w: mission %s cannot use %s", ErrInvalidInput, m.ID, m.Condition.Metric)
		}
		switch m.Period {
		case PeriodDaily, PeriodWeekly, PeriodNone:
		default:
			return fmt.Errorf("%w: mission %s has unknown period %q", ErrInvalidInput, m.ID, m.Period)
		}
		if m.Reward.SoftTokens < 0 || m.Reward.HardTokens < 0 || m.Reward.XP < 0 {
			return fmt.Errorf("%w: mission %s has a negative reward", ErrInvalidInput, m.ID)
		}
		seen[m.ID] = true
	}

	return nil
}
