package models

import "time"

type Stats struct {
	GamesPlayed int64 `json:"games_played"`
	Wins        int64 `json:"wins"`
	Losses      int64 `json:"losses"`
	TotalScore  int64 `json:"total_score"`
	BestScore   int64 `json:"best_score"`
}

// MissionProgress is the state of one mission inside the period named by PeriodKey.
type MissionProgress struct {
	Progress  int64  `json:"progress"`
	Completed bool   `json:"completed"`
	PeriodKey string `json:"period_key"`
}

type UserProgress struct {
	UserID                 string                     `json:"user_id"`
	Level                  int                        `json:"level"`
	XP                     int                        `json:"xp"`
	XPToNextLevel          int                        `json:"xp_to_next_level"`
	CurrentStreak          int                        `json:"current_streak"`
	BestStreak             int                        `json:"best_streak"`
	Stats                  Stats                      `json:"stats"`
	UnlockedAchievementIDs []string                   `json:"unlocked_achievement_ids"`
	Missions               map[string]MissionProgress `json:"missions"`
	CreatedAt              time.Time                  `json:"created_at"`
	UpdatedAt              time.Time                  `json:"updated_at"`
}

func (p *UserProgress) HasAchievement(id string) bool {
	for _, unlocked := range p.UnlockedAchievementIDs {
		if unlocked == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers never share slices or maps with the tracker.
func (p *UserProgress) Clone() UserProgress {
	c := *p
	c.UnlockedAchievementIDs = append([]string{}, p.UnlockedAchievementIDs...)
	c.Missions = make(map[string]MissionProgress, len(p.Missions))
	for id, mp := range p.Missions {
		c.Missions[id] = mp
	}
	return c
}

// CumulativeValue reads a lifetime metric. ROUND_SCORE has no lifetime value.
func (p *UserProgress) CumulativeValue(m Metric) int64 {
	switch m {
	case MetricGamesPlayed:
		return p.Stats.GamesPlayed
	case MetricWins:
		return p.Stats.Wins
	case MetricBestScore:
		return p.Stats.BestScore
	case MetricTotalScore:
		return p.Stats.TotalScore
	case MetricStreak:
		return int64(p.CurrentStreak)
	case MetricLevel:
		return int64(p.Level)
	}
	return 0
}
