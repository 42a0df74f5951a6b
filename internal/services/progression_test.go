package services_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"hubpsp-backend/internal/config"
	"hubpsp-backend/internal/models"
	"hubpsp-backend/internal/services"
)

func progressionRules() models.Rules {
	return models.Rules{
		Curve:         models.LevelCurve{FirstLevelXP: 100, GrowthPercent: 50},
		Reward:        config.DefaultRules().Reward,
		MinXPPerRound: 10,
		ScorePerXP:    10,
		Achievements: []models.Achievement{
			{ID: "win_1", Condition: models.Condition{Metric: models.MetricWins, Threshold: 1}, TokenReward: 10},
			{ID: "streak_2", Condition: models.Condition{Metric: models.MetricStreak, Threshold: 2}, TokenReward: 20},
			{ID: "level_3", Condition: models.Condition{Metric: models.MetricLevel, Threshold: 3}, TokenReward: 30},
		},
		Missions: []models.Mission{
			{
				ID:        "daily_play_2",
				Condition: models.Condition{Metric: models.MetricGamesPlayed, Threshold: 2},
				Period:    models.PeriodDaily,
				Reward:    models.MissionReward{XP: 300},
			},
			{
				ID:        "daily_round_100",
				Condition: models.Condition{Metric: models.MetricRoundScore, Threshold: 100},
				Period:    models.PeriodDaily,
				Reward:    models.MissionReward{SoftTokens: 5},
			},
		},
	}
}

type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestProgressionCreate(t *testing.T) {
	tracker := services.NewProgressionTracker(progressionRules(), nil)

	p, err := tracker.CreateUserProgress("alice")
	if err != nil {
		t.Fatalf("Failed to create progress: %v", err)
	}
	if p.Level != 1 || p.XP != 0 || p.XPToNextLevel != 100 || p.CurrentStreak != 0 {
		t.Errorf("Unexpected initial progress %+v", p)
	}
	if len(p.UnlockedAchievementIDs) != 0 {
		t.Errorf("Expected no unlocks, got %v", p.UnlockedAchievementIDs)
	}

	if _, err := tracker.CreateUserProgress("alice"); !errors.Is(err, models.ErrProgressExists) {
		t.Errorf("Expected ErrProgressExists, got %v", err)
	}
	if _, err := tracker.GetProgress("bob"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := tracker.RecordGamePlayed("bob", 10, true, 10); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestProgressionRejectsNegativeInput(t *testing.T) {
	tracker := services.NewProgressionTracker(progressionRules(), nil)
	tracker.CreateUserProgress("alice")

	if _, err := tracker.RecordGamePlayed("alice", -1, false, 10); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for negative score, got %v", err)
	}
	if _, err := tracker.RecordGamePlayed("alice", 1, false, -10); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for negative xp, got %v", err)
	}
	if _, err := tracker.AddXP("alice", -1); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput from AddXP, got %v", err)
	}
}

func TestProgressionLevelUpCarriesRemainder(t *testing.T) {
	rules := progressionRules()
	rules.Missions = nil
	rules.Achievements = nil
	tracker := services.NewProgressionTracker(rules, nil)
	tracker.CreateUserProgress("alice")

	// 100 + 150 = 250 to reach level 3, 30 left toward the 225 threshold.
	result, err := tracker.RecordGamePlayed("alice", 0, false, 280)
	if err != nil {
		t.Fatalf("Failed to record game: %v", err)
	}
	if result.LevelsGained != 2 {
		t.Errorf("Expected 2 levels, got %d", result.LevelsGained)
	}
	p := result.Progress
	if p.Level != 3 || p.XP != 30 || p.XPToNextLevel != 225 {
		t.Errorf("Expected level 3 with 30/225, got %d with %d/%d", p.Level, p.XP, p.XPToNextLevel)
	}
}

func TestProgressionCurveAlwaysGrows(t *testing.T) {
	rules := progressionRules()
	rules.Curve = models.LevelCurve{FirstLevelXP: 1, GrowthPercent: 0}
	tracker := services.NewProgressionTracker(rules, nil)

	if got := tracker.NextThreshold(1); got != 2 {
		t.Errorf("Expected flat curve to still grow by one, got %d", got)
	}

	def := services.NewProgressionTracker(config.DefaultRules(), nil)
	if got := def.NextThreshold(1000); got != 1200 {
		t.Errorf("Expected 1200 after 1000, got %d", got)
	}
}

func TestProgressionStreakAndStats(t *testing.T) {
	tracker := services.NewProgressionTracker(progressionRules(), nil)
	tracker.CreateUserProgress("alice")

	tracker.RecordGamePlayed("alice", 50, true, 10)
	tracker.RecordGamePlayed("alice", 80, true, 10)
	result, _ := tracker.RecordGamePlayed("alice", 20, false, 10)

	p := result.Progress
	if p.CurrentStreak != 0 || p.BestStreak != 2 {
		t.Errorf("Expected streak 0 with best 2, got %d/%d", p.CurrentStreak, p.BestStreak)
	}
	want := models.Stats{GamesPlayed: 3, Wins: 2, Losses: 1, TotalScore: 150, BestScore: 80}
	if p.Stats != want {
		t.Errorf("Expected stats %+v, got %+v", want, p.Stats)
	}
}

func TestProgressionUnlocksOnce(t *testing.T) {
	rules := progressionRules()
	rules.Missions = nil
	tracker := services.NewProgressionTracker(rules, nil)
	tracker.CreateUserProgress("alice")

	first, _ := tracker.RecordGamePlayed("alice", 10, true, 10)
	if ids := achievementIDs(first.UnlockedAchievements); len(ids) != 1 || ids[0] != "win_1" {
		t.Fatalf("Expected win_1 on first win, got %v", ids)
	}

	second, _ := tracker.RecordGamePlayed("alice", 10, true, 10)
	if ids := achievementIDs(second.UnlockedAchievements); len(ids) != 1 || ids[0] != "streak_2" {
		t.Fatalf("Expected only streak_2 on second win, got %v", ids)
	}

	for i := 0; i < 5; i++ {
		again, _ := tracker.RecordGamePlayed("alice", 10, true, 10)
		if len(again.UnlockedAchievements) != 0 {
			t.Fatalf("Round %d re-unlocked %v", i, achievementIDs(again.UnlockedAchievements))
		}
	}
}

func TestProgressionMissionXPUnlocksLevelAchievement(t *testing.T) {
	tracker := services.NewProgressionTracker(progressionRules(), nil)
	tracker.CreateUserProgress("alice")

	tracker.RecordGamePlayed("alice", 0, false, 10)
	result, err := tracker.RecordGamePlayed("alice", 0, false, 10)
	if err != nil {
		t.Fatalf("Failed to record game: %v", err)
	}

	if ids := missionIDs(result.CompletedMissions); len(ids) != 1 || ids[0] != "daily_play_2" {
		t.Fatalf("Expected daily_play_2 to complete, got %v", ids)
	}
	// 20 + 300 mission xp: level 2 at 100, level 3 at 250, 70 left.
	if result.Progress.Level != 3 || result.Progress.XP != 70 || result.LevelsGained != 2 {
		t.Errorf("Expected level 3 with 70 xp, got %+v", result.Progress)
	}
	if ids := achievementIDs(result.UnlockedAchievements); len(ids) != 1 || ids[0] != "level_3" {
		t.Errorf("Expected level_3 to unlock in the same round, got %v", ids)
	}

	third, _ := tracker.RecordGamePlayed("alice", 0, false, 10)
	if len(third.CompletedMissions) != 0 {
		t.Errorf("Completed mission must not complete again in the same period, got %v", missionIDs(third.CompletedMissions))
	}
}

func TestProgressionRoundScoreMission(t *testing.T) {
	tracker := services.NewProgressionTracker(progressionRules(), nil)
	tracker.CreateUserProgress("alice")

	tracker.RecordGamePlayed("alice", 60, false, 10)
	second, _ := tracker.RecordGamePlayed("alice", 60, false, 10)
	for _, m := range second.CompletedMissions {
		if m.ID == "daily_round_100" {
			t.Fatal("Round score mission must not sum rounds")
		}
	}
	if got := second.Progress.Missions["daily_round_100"].Progress; got != 60 {
		t.Errorf("Expected best round 60, got %d", got)
	}

	third, _ := tracker.RecordGamePlayed("alice", 100, false, 10)
	if ids := missionIDs(third.CompletedMissions); len(ids) != 1 || ids[0] != "daily_round_100" {
		t.Errorf("Expected daily_round_100 to complete, got %v", ids)
	}
}

func TestProgressionMissionsRollOver(t *testing.T) {
	clock := newTestClock()
	tracker := services.NewProgressionTracker(progressionRules(), clock.Now)
	tracker.CreateUserProgress("alice")

	tracker.RecordGamePlayed("alice", 0, false, 10)
	tracker.RecordGamePlayed("alice", 0, false, 10)

	p, _ := tracker.GetProgress("alice")
	if !p.Missions["daily_play_2"].Completed {
		t.Fatal("Expected daily_play_2 completed on day one")
	}

	rolled, err := tracker.RollMissionPeriods("alice")
	if err != nil || rolled {
		t.Fatalf("Expected nothing to roll within the day, got %v %v", rolled, err)
	}

	clock.Advance(24 * time.Hour)
	rolled, err = tracker.RollMissionPeriods("alice")
	if err != nil || !rolled {
		t.Fatalf("Expected missions to roll on a new day, got %v %v", rolled, err)
	}

	p, _ = tracker.GetProgress("alice")
	mp := p.Missions["daily_play_2"]
	if mp.Completed || mp.Progress != 0 || mp.PeriodKey != "2026-03-11" {
		t.Errorf("Expected fresh mission for 2026-03-11, got %+v", mp)
	}

	tracker.RecordGamePlayed("alice", 0, false, 10)
	result, _ := tracker.RecordGamePlayed("alice", 0, false, 10)
	if ids := missionIDs(result.CompletedMissions); len(ids) != 1 || ids[0] != "daily_play_2" {
		t.Errorf("Expected daily_play_2 to complete again on day two, got %v", ids)
	}
}

func TestPeriodKey(t *testing.T) {
	now := time.Date(2026, 1, 1, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600))

	if got := services.PeriodKey(models.PeriodDaily, now); got != "2026-01-02" {
		t.Errorf("Expected UTC date 2026-01-02, got %s", got)
	}
	if got := services.PeriodKey(models.PeriodWeekly, now); got != "2026-W01" {
		t.Errorf("Expected 2026-W01, got %s", got)
	}
	if got := services.PeriodKey(models.PeriodNone, now); got != "" {
		t.Errorf("Expected empty key, got %q", got)
	}
}

func TestProgressionSeedLevelsUp(t *testing.T) {
	tracker := services.NewProgressionTracker(progressionRules(), nil)

	p, err := tracker.CreateUserProgressFrom("alice", &models.PlatformUserSeed{Level: 2, XP: 160})
	if err != nil {
		t.Fatalf("Failed to create from seed: %v", err)
	}
	// Level 2 needs 150, so the seed carries 10 into level 3.
	if p.Level != 3 || p.XP != 10 || p.XPToNextLevel != 225 {
		t.Errorf("Expected level 3 with 10/225, got %+v", p)
	}
}

func TestProgressionFlatCurveSettlesLargeXP(t *testing.T) {
	rules := progressionRules()
	rules.Curve = models.LevelCurve{FirstLevelXP: 1, GrowthPercent: 0}
	tracker := services.NewProgressionTracker(rules, nil)

	// Thresholds 1+2+3+4 use up all ten points.
	p, err := tracker.CreateUserProgressFrom("alice", &models.PlatformUserSeed{XP: 10})
	if err != nil {
		t.Fatalf("Failed to create from seed: %v", err)
	}
	if p.Level != 5 || p.XP != 0 || p.XPToNextLevel != 5 {
		t.Errorf("Expected level 5 with 0/5, got %d with %d/%d", p.Level, p.XP, p.XPToNextLevel)
	}

	const seeded = 1_000_000_000_000_000_000
	p, err = tracker.CreateUserProgressFrom("bob", &models.PlatformUserSeed{XP: seeded})
	if err != nil {
		t.Fatalf("Failed to create from seed: %v", err)
	}
	if p.XPToNextLevel != p.Level || p.XP >= p.XPToNextLevel {
		t.Fatalf("Level %d left %d/%d unsettled", p.Level, p.XP, p.XPToNextLevel)
	}
	if spent := (p.Level-1)*p.Level/2 + p.XP; spent != seeded {
		t.Errorf("Expected all %d xp accounted for, got %d", seeded, spent)
	}
}

func TestProgressionThresholdSaturates(t *testing.T) {
	tracker := services.NewProgressionTracker(config.DefaultRules(), nil)

	if got := tracker.NextThreshold(math.MaxInt - 10); got != math.MaxInt {
		t.Errorf("Expected saturation at MaxInt, got %d", got)
	}
	if got := tracker.NextThreshold(math.MaxInt); got != math.MaxInt {
		t.Errorf("Expected MaxInt to stay put, got %d", got)
	}
}

func TestProgressionAddXPRejectsOverflow(t *testing.T) {
	tracker := services.NewProgressionTracker(progressionRules(), nil)
	tracker.CreateUserProgress("alice")

	if _, err := tracker.AddXP("alice", 50); err != nil {
		t.Fatalf("Failed to add xp: %v", err)
	}
	if _, err := tracker.AddXP("alice", math.MaxInt); !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
	p, _ := tracker.GetProgress("alice")
	if p.Level != 1 || p.XP != 50 {
		t.Errorf("Rejected grant changed progress: %+v", p)
	}
}

func achievementIDs(list []models.Achievement) []string {
	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	return ids
}

func missionIDs(list []models.Mission) []string {
	ids := make([]string, 0, len(list))
	for _, m := range list {
		ids = append(ids, m.ID)
	}
	return ids
}
