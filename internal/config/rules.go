package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"hubpsp-backend/internal/models"
)

// DefaultRules is the built-in level curve, reward table and catalog.
func DefaultRules() models.Rules {
	return models.Rules{
		Curve: models.LevelCurve{
			FirstLevelXP:  1000,
			GrowthPercent: 20,
		},
		Reward: models.RewardRules{
			BaseRate: 0.1,
			DifficultyMultipliers: map[models.Difficulty]float64{
				models.DifficultyEasy:   1.0,
				models.DifficultyMedium: 1.5,
				models.DifficultyHard:   2.0,
				models.DifficultyExpert: 3.0,
			},
			StreakBonusPerPoint: 0.05,
			MaxStreakBonus:      0.5,
		},
		MinXPPerRound: 50,
		ScorePerXP:    20,
		Achievements: []models.Achievement{
			{ID: "first_game", Name: "Primera partida", Condition: models.Condition{Metric: models.MetricGamesPlayed, Threshold: 1}, TokenReward: 50},
			{ID: "first_win", Name: "Primera victoria", Condition: models.Condition{Metric: models.MetricWins, Threshold: 1}, TokenReward: 100},
			{ID: "hot_streak", Name: "Racha caliente", Condition: models.Condition{Metric: models.MetricStreak, Threshold: 3}, TokenReward: 250, GemReward: 1},
			{ID: "unstoppable", Name: "Imparable", Condition: models.Condition{Metric: models.MetricStreak, Threshold: 10}, TokenReward: 1000, GemReward: 5},
			{ID: "high_scorer", Name: "Puntuación alta", Condition: models.Condition{Metric: models.MetricBestScore, Threshold: 1000}, TokenReward: 300},
			{ID: "veteran", Name: "Veterano", Condition: models.Condition{Metric: models.MetricGamesPlayed, Threshold: 50}, TokenReward: 500, GemReward: 2},
			{ID: "level_5", Name: "Nivel 5", Condition: models.Condition{Metric: models.MetricLevel, Threshold: 5}, TokenReward: 400, GemReward: 3},
		},
		Missions: []models.Mission{
			{
				ID: "daily_play_3", Name: "Juega 3 partidas hoy",
				Condition: models.Condition{Metric: models.MetricGamesPlayed, Threshold: 3},
				Period:    models.PeriodDaily,
				Reward:    models.MissionReward{SoftTokens: 100, XP: 50},
			},
			{
				ID: "daily_win_2", Name: "Gana 2 partidas hoy",
				Condition: models.Condition{Metric: models.MetricWins, Threshold: 2},
				Period:    models.PeriodDaily,
				Reward:    models.MissionReward{SoftTokens: 150},
			},
			{
				ID: "daily_score_500", Name: "Consigue 500 puntos en una partida",
				Condition: models.Condition{Metric: models.MetricRoundScore, Threshold: 500},
				Period:    models.PeriodDaily,
				Reward:    models.MissionReward{SoftTokens: 200, HardTokens: 1},
			},
			{
				ID: "weekly_score_5000", Name: "Acumula 5000 puntos esta semana",
				Condition: models.Condition{Metric: models.MetricTotalScore, Threshold: 5000},
				Period:    models.PeriodWeekly,
				Reward:    models.MissionReward{SoftTokens: 500, HardTokens: 2, XP: 200},
			},
		},
	}
}

// LoadRules reads a rules file (yaml, json or toml) on top of DefaultRules.
// Sections missing from the file keep their defaults; catalogs present in the file
// replace the built-in ones. An empty path returns the defaults.
func LoadRules(path string) (models.Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return models.Rules{}, fmt.Errorf("failed to read rules file: %w", err)
	}

	// Decoding merges into existing slices element by element, so catalogs are cleared first.
	if v.IsSet("achievements") {
		rules.Achievements = nil
	}
	if v.IsSet("missions") {
		rules.Missions = nil
	}

	if err := v.Unmarshal(&rules); err != nil {
		return models.Rules{}, fmt.Errorf("failed to decode rules file: %w", err)
	}

	normalizeRules(&rules)

	if err := rules.Validate(); err != nil {
		return models.Rules{}, err
	}
	return rules, nil
}

// viper lower-cases keys, and rule files are usually written in lower case.
func normalizeRules(r *models.Rules) {
	multipliers := make(map[models.Difficulty]float64, len(r.Reward.DifficultyMultipliers))
	for d, m := range r.Reward.DifficultyMultipliers {
		if strings.ToUpper(string(d)) == string(d) {
			multipliers[d] = m
		}
	}
	for d, m := range r.Reward.DifficultyMultipliers {
		if upper := models.Difficulty(strings.ToUpper(string(d))); upper != d {
			multipliers[upper] = m
		}
	}
	r.Reward.DifficultyMultipliers = multipliers

	for i := range r.Achievements {
		r.Achievements[i].Condition.Metric = models.Metric(strings.ToUpper(string(r.Achievements[i].Condition.Metric)))
	}
	for i := range r.Missions {
		m := &r.Missions[i]
		m.Condition.Metric = models.Metric(strings.ToUpper(string(m.Condition.Metric)))
		m.Period = models.MissionPeriod(strings.ToUpper(string(m.Period)))
		if m.Period == "" {
			m.Period = models.PeriodNone
		}
	}
}
