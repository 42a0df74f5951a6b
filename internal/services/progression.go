package services

import (
	"fmt"
	"math"
	"sort"
	"time"

	"hubpsp-backend/internal/models"
)

// PlayResult lists what changed for a user during one recorded round.
// Only items that unlocked or completed in that call are included.
type PlayResult struct {
	UnlockedAchievements []models.Achievement
	CompletedMissions    []models.Mission
	LevelsGained         int
	Progress             models.UserProgress
}

// ProgressionTracker owns level, XP, streak and unlock state per user.
// It is not safe for concurrent use; PlatformEngine serializes access.
type ProgressionTracker struct {
	curve        models.LevelCurve
	achievements []models.Achievement
	missions     []models.Mission
	progress     map[string]*models.UserProgress
	now          func() time.Time
}

func NewProgressionTracker(rules models.Rules, now func() time.Time) *ProgressionTracker {
	if now == nil {
		now = time.Now
	}
	return &ProgressionTracker{
		curve:        rules.Curve,
		achievements: append([]models.Achievement{}, rules.Achievements...),
		missions:     append([]models.Mission{}, rules.Missions...),
		progress:     make(map[string]*models.UserProgress),
		now:          now,
	}
}

// CreateUserProgress fails with ErrProgressExists if the user already has a record.
func (t *ProgressionTracker) CreateUserProgress(userID string) (models.UserProgress, error) {
	return t.CreateUserProgressFrom(userID, nil)
}

// CreateUserProgressFrom provisions a record from a seed, typically a restored snapshot.
// Zero level and threshold fall back to the curve; XP above the threshold is
// carried into level-ups.
func (t *ProgressionTracker) CreateUserProgressFrom(userID string, seed *models.PlatformUserSeed) (models.UserProgress, error) {
	if userID == "" {
		return models.UserProgress{}, fmt.Errorf("%w: empty user id", models.ErrInvalidInput)
	}
	if _, exists := t.progress[userID]; exists {
		return models.UserProgress{}, fmt.Errorf("%w: %s", models.ErrProgressExists, userID)
	}

	now := t.now()
	p := &models.UserProgress{
		UserID:                 userID,
		Level:                  1,
		XPToNextLevel:          t.curve.FirstLevelXP,
		UnlockedAchievementIDs: []string{},
		Missions:               make(map[string]models.MissionProgress),
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	if seed != nil {
		if seed.Level < 0 || seed.XP < 0 || seed.XPToNextLevel < 0 || seed.CurrentStreak < 0 || seed.BestStreak < 0 {
			return models.UserProgress{}, fmt.Errorf("%w: seed values must be non-negative", models.ErrInvalidInput)
		}
		if seed.Level > 0 {
			p.Level = seed.Level
		}
		p.XPToNextLevel = seed.XPToNextLevel
		if p.XPToNextLevel == 0 {
			p.XPToNextLevel = t.thresholdForLevel(p.Level)
		}
		p.XP = seed.XP
		p.CurrentStreak = seed.CurrentStreak
		p.BestStreak = max(seed.BestStreak, seed.CurrentStreak)
		p.Stats = seed.Stats
		for _, id := range seed.UnlockedAchievementIDs {
			if !p.HasAchievement(id) {
				p.UnlockedAchievementIDs = append(p.UnlockedAchievementIDs, id)
			}
		}
		for id, mp := range seed.Missions {
			p.Missions[id] = mp
		}
		t.applyLevelUps(p)
	}

	t.progress[userID] = p
	return p.Clone(), nil
}

func (t *ProgressionTracker) GetProgress(userID string) (models.UserProgress, error) {
	p, ok := t.progress[userID]
	if !ok {
		return models.UserProgress{}, fmt.Errorf("%w: no progress for %s", models.ErrNotFound, userID)
	}
	return p.Clone(), nil
}

func (t *ProgressionTracker) HasProgress(userID string) bool {
	_, ok := t.progress[userID]
	return ok
}

func (t *ProgressionTracker) UserIDs() []string {
	ids := make([]string, 0, len(t.progress))
	for id := range t.progress {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// RecordGamePlayed applies one finished round: XP with level-ups, streak, lifetime
// stats, then achievement and mission evaluation. Mission XP rewards are applied
// after evaluation and can trigger level achievements in the same call.
func (t *ProgressionTracker) RecordGamePlayed(userID string, score int64, won bool, xpEarned int) (*PlayResult, error) {
	if score < 0 || xpEarned < 0 {
		return nil, fmt.Errorf("%w: score and xp must be non-negative", models.ErrInvalidInput)
	}
	p, ok := t.progress[userID]
	if !ok {
		return nil, fmt.Errorf("%w: no progress for %s", models.ErrNotFound, userID)
	}

	now := t.now()
	t.rollMissions(p, now)

	p.Stats.GamesPlayed++
	p.Stats.TotalScore = addCapped(p.Stats.TotalScore, score)
	if score > p.Stats.BestScore {
		p.Stats.BestScore = score
	}
	if won {
		p.Stats.Wins++
		p.CurrentStreak++
		if p.CurrentStreak > p.BestStreak {
			p.BestStreak = p.CurrentStreak
		}
	} else {
		p.Stats.Losses++
		p.CurrentStreak = 0
	}

	result := &PlayResult{}
	p.XP = addXPCapped(p.XP, xpEarned)
	result.LevelsGained = t.applyLevelUps(p)

	result.UnlockedAchievements = t.evaluateAchievements(p)
	result.CompletedMissions = t.evaluateMissions(p, score, won, now)

	missionXP := 0
	for _, m := range result.CompletedMissions {
		missionXP = addXPCapped(missionXP, m.Reward.XP)
	}
	if missionXP > 0 {
		p.XP = addXPCapped(p.XP, missionXP)
		if gained := t.applyLevelUps(p); gained > 0 {
			result.LevelsGained += gained
			result.UnlockedAchievements = append(result.UnlockedAchievements, t.evaluateAchievements(p)...)
		}
	}

	p.UpdatedAt = now
	result.Progress = p.Clone()
	return result, nil
}

// AddXP grants experience outside a round. It levels up but does not evaluate unlocks.
func (t *ProgressionTracker) AddXP(userID string, xp int) (int, error) {
	if err := t.CanAddXP(userID, xp); err != nil {
		return 0, err
	}
	p := t.progress[userID]
	if xp == 0 {
		return 0, nil
	}
	p.XP += xp
	gained := t.applyLevelUps(p)
	p.UpdatedAt = t.now()
	return gained, nil
}

// CanAddXP reports whether AddXP would succeed without applying it.
func (t *ProgressionTracker) CanAddXP(userID string, xp int) error {
	if xp < 0 {
		return fmt.Errorf("%w: xp must be non-negative, got %d", models.ErrInvalidInput, xp)
	}
	p, ok := t.progress[userID]
	if !ok {
		return fmt.Errorf("%w: no progress for %s", models.ErrNotFound, userID)
	}
	if xp > math.MaxInt-p.XP {
		return fmt.Errorf("%w: adding %d xp would overflow %d", models.ErrInvalidInput, xp, p.XP)
	}
	return nil
}

// RollMissionPeriods resets missions whose period ended. It reports whether anything changed.
func (t *ProgressionTracker) RollMissionPeriods(userID string) (bool, error) {
	p, ok := t.progress[userID]
	if !ok {
		return false, fmt.Errorf("%w: no progress for %s", models.ErrNotFound, userID)
	}
	return t.rollMissions(p, t.now()), nil
}

// NextThreshold is the XP needed for the level after one that needed current.
// It saturates at math.MaxInt.
func (t *ProgressionTracker) NextThreshold(current int) int {
	if current >= math.MaxInt {
		return math.MaxInt
	}
	g := t.curve.GrowthPercent
	q, r := current/100, current%100
	if g > 0 && q > math.MaxInt/g {
		return math.MaxInt
	}
	growth := q*g + r*g/100
	if growth < 1 {
		growth = 1
	}
	if growth > math.MaxInt-current {
		return math.MaxInt
	}
	return current + growth
}

func (t *ProgressionTracker) thresholdForLevel(level int) int {
	threshold := t.curve.FirstLevelXP
	for l := 1; l < level; l++ {
		threshold = t.NextThreshold(threshold)
	}
	return threshold
}

func (t *ProgressionTracker) applyLevelUps(p *models.UserProgress) int {
	gained := 0
	if t.curve.GrowthPercent == 0 && p.XP >= p.XPToNextLevel {
		// Flat curves only add one XP per level, so large grants are settled in bulk.
		k := linearLevelUps(p.XP, p.XPToNextLevel)
		p.XP -= k*p.XPToNextLevel + triangular(k)
		p.Level += k
		p.XPToNextLevel += k
		gained = k
	}
	for p.XP >= p.XPToNextLevel {
		p.XP -= p.XPToNextLevel
		p.Level++
		p.XPToNextLevel = t.NextThreshold(p.XPToNextLevel)
		gained++
	}
	return gained
}

// linearLevelUps returns a number of levels, close to but never above the real
// count, that xp pays for when thresholds start at first and grow by one per level.
func linearLevelUps(xp, first int) int {
	x, f := float64(xp), float64(first)
	b := 2*f - 1
	k := int((math.Sqrt(b*b+8*x)-b)/2) - 2
	for k > 0 && f*float64(k)+float64(k)*float64(k-1)/2 > x {
		k--
	}
	return max(k, 0)
}

// triangular is k*(k-1)/2 without overflowing the intermediate product.
func triangular(k int) int {
	if k%2 == 0 {
		return k / 2 * (k - 1)
	}
	return (k - 1) / 2 * k
}

func addXPCapped(a, b int) int {
	if b > math.MaxInt-a {
		return math.MaxInt
	}
	return a + b
}

func (t *ProgressionTracker) evaluateAchievements(p *models.UserProgress) []models.Achievement {
	unlocked := []models.Achievement{}
	for _, a := range t.achievements {
		if p.HasAchievement(a.ID) {
			continue
		}
		if p.CumulativeValue(a.Condition.Metric) >= a.Condition.Threshold {
			p.UnlockedAchievementIDs = append(p.UnlockedAchievementIDs, a.ID)
			unlocked = append(unlocked, a)
		}
	}
	return unlocked
}

func (t *ProgressionTracker) evaluateMissions(p *models.UserProgress, score int64, won bool, now time.Time) []models.Mission {
	completed := []models.Mission{}
	for _, m := range t.missions {
		mp, ok := p.Missions[m.ID]
		if !ok {
			mp = models.MissionProgress{PeriodKey: PeriodKey(m.Period, now)}
		}
		if mp.Completed {
			continue
		}

		switch m.Condition.Metric {
		case models.MetricGamesPlayed:
			mp.Progress++
		case models.MetricWins:
			if won {
				mp.Progress++
			}
		case models.MetricTotalScore:
			mp.Progress = addCapped(mp.Progress, score)
		case models.MetricRoundScore:
			if score > mp.Progress {
				mp.Progress = score
			}
		}

		if mp.Progress >= m.Condition.Threshold {
			mp.Completed = true
			completed = append(completed, m)
		}
		p.Missions[m.ID] = mp
	}
	return completed
}

func (t *ProgressionTracker) rollMissions(p *models.UserProgress, now time.Time) bool {
	changed := false
	for _, m := range t.missions {
		mp, ok := p.Missions[m.ID]
		if !ok {
			continue
		}
		key := PeriodKey(m.Period, now)
		if mp.PeriodKey != key {
			p.Missions[m.ID] = models.MissionProgress{PeriodKey: key}
			changed = true
		}
	}
	return changed
}

// PeriodKey names the period containing now: a UTC date for daily missions, an ISO
// week for weekly ones, and the empty string for missions that never reset.
func PeriodKey(period models.MissionPeriod, now time.Time) string {
	now = now.UTC()
	switch period {
	case models.PeriodDaily:
		return now.Format("2006-01-02")
	case models.PeriodWeekly:
		year, week := now.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	}
	return ""
}
