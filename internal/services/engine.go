package services

import (
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"hubpsp-backend/internal/models"
)

// PlatformEngine is the facade game UIs talk to. It owns every user's wallet and
// progress and runs each operation to completion under one lock; listeners are
// notified once per operation, after the lock is released and before the call returns.
//
// Users must be provisioned with InitUser before any other operation. Reads of an
// unknown user fail with models.ErrNotFound, except GetCoins and GetGems which report 0.
type PlatformEngine struct {
	mu        sync.Mutex
	rules     models.Rules
	ledger    *Ledger
	tracker   *ProgressionTracker
	rewards   *RewardCalculator
	observers *observerRegistry
	logger    *zap.SugaredLogger
	now       func() time.Time

	// Largest bonus a single round can pay, used to refuse rounds that cannot be settled.
	maxBonusCoins int64
	maxBonusGems  int64
}

type EngineOption func(*PlatformEngine)

func WithClock(now func() time.Time) EngineOption {
	return func(e *PlatformEngine) {
		e.now = now
	}
}

func WithLogger(logger *zap.SugaredLogger) EngineOption {
	return func(e *PlatformEngine) {
		e.logger = logger
	}
}

func NewPlatformEngine(rules models.Rules, opts ...EngineOption) (*PlatformEngine, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid progression rules: %w", err)
	}

	e := &PlatformEngine{
		rules:     rules,
		observers: newObserverRegistry(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop().Sugar()
	}

	e.ledger = NewLedger(e.now)
	e.tracker = NewProgressionTracker(rules, e.now)
	e.rewards = NewRewardCalculator(rules.Reward)

	for _, a := range rules.Achievements {
		e.maxBonusCoins = addCapped(e.maxBonusCoins, a.TokenReward)
		e.maxBonusGems = addCapped(e.maxBonusGems, a.GemReward)
	}
	for _, m := range rules.Missions {
		e.maxBonusCoins = addCapped(e.maxBonusCoins, m.Reward.SoftTokens)
		e.maxBonusGems = addCapped(e.maxBonusGems, m.Reward.HardTokens)
	}

	return e, nil
}

// Subscribe registers a listener and returns a function that removes it.
// Calling the returned function more than once is a no-op.
func (e *PlatformEngine) Subscribe(listener Listener) func() {
	if listener == nil {
		return func() {}
	}
	id := e.observers.add(listener)
	var once sync.Once
	return func() {
		once.Do(func() { e.observers.remove(id) })
	}
}

// InitUser provisions a wallet and a progress record for the user if either is
// missing. Existing state is never reset, so repeated calls are safe.
func (e *PlatformEngine) InitUser(userID string, seed *models.PlatformUserSeed) error {
	if userID == "" {
		return fmt.Errorf("%w: empty user id", models.ErrInvalidInput)
	}
	if err := validateSeed(seed); err != nil {
		return err
	}

	e.mu.Lock()
	created := false
	if _, ok := e.ledger.GetWallet(userID); !ok {
		var coins, gems int64
		if seed != nil {
			coins, gems = seed.Coins, seed.Gems
		}
		if _, err := e.ledger.CreateWallet(userID, coins, gems); err != nil {
			e.mu.Unlock()
			return err
		}
		created = true
	}
	if !e.tracker.HasProgress(userID) {
		if _, err := e.tracker.CreateUserProgressFrom(userID, seed); err != nil {
			e.mu.Unlock()
			return err
		}
		created = true
	}
	e.mu.Unlock()

	if created {
		e.logger.Infow("user initialized", "user_id", userID)
	}
	e.notify()
	return nil
}

// StartGame charges the entry fee for a round. With minBet zero nothing is charged.
// On insufficient funds the round must not start and listeners are not notified.
func (e *PlatformEngine) StartGame(userID, gameID string, minBet int64) error {
	if gameID == "" {
		return fmt.Errorf("%w: game id is required", models.ErrInvalidInput)
	}
	if minBet < 0 {
		return fmt.Errorf("%w: min bet must be non-negative, got %d", models.ErrInvalidInput, minBet)
	}

	e.mu.Lock()
	if err := e.requireUser(userID); err != nil {
		e.mu.Unlock()
		return err
	}
	if minBet > 0 {
		if _, err := e.ledger.Debit(userID, minBet, models.TokenSoft, models.CategoryEntryFee, models.EntryReason(gameID)); err != nil {
			e.mu.Unlock()
			return fmt.Errorf("failed to start %s: %w", gameID, err)
		}
	}
	e.mu.Unlock()

	e.notify()
	return nil
}

// FinishGame settles a round: base reward from the streak held before the round,
// progression update, then achievement and mission bonuses.
func (e *PlatformEngine) FinishGame(userID string, input models.GameFinishInput) (*models.GameFinishOutput, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	out, err := e.finishGameLocked(userID, input)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if out.LevelsGained > 0 {
		e.logger.Infow("level up", "user_id", userID, "level", out.Progress.Level, "levels_gained", out.LevelsGained)
	}
	for _, a := range out.UnlockedAchievements {
		e.logger.Infow("achievement unlocked", "user_id", userID, "achievement", a.ID)
	}
	for _, m := range out.CompletedMissions {
		e.logger.Infow("mission completed", "user_id", userID, "mission", m.ID)
	}

	e.notify()
	return out, nil
}

func (e *PlatformEngine) finishGameLocked(userID string, input models.GameFinishInput) (*models.GameFinishOutput, error) {
	if err := e.requireUser(userID); err != nil {
		return nil, err
	}
	before, err := e.tracker.GetProgress(userID)
	if err != nil {
		return nil, err
	}

	breakdown, err := e.rewards.Calculate(input.Score, input.Difficulty, before.CurrentStreak, input.Multiplier)
	if err != nil {
		return nil, err
	}
	baseReward := breakdown.FinalReward
	if err := e.checkPayout(userID, baseReward); err != nil {
		return nil, fmt.Errorf("failed to settle %s: %w", input.GameID, err)
	}
	if baseReward > 0 {
		if _, err := e.ledger.Credit(userID, baseReward, models.TokenSoft, models.CategoryReward, models.GameReason(input.GameID)); err != nil {
			return nil, err
		}
	}

	xpEarned := XPForScore(e.rules, input.Score)
	play, err := e.tracker.RecordGamePlayed(userID, input.Score, input.Won, xpEarned)
	if err != nil {
		return nil, err
	}

	var achievementCoins, achievementGems int64
	for _, a := range play.UnlockedAchievements {
		achievementCoins += a.TokenReward
		achievementGems += a.GemReward
	}
	if err := e.creditBonus(userID, achievementCoins, achievementGems, models.CategoryAchievement, models.AchievementsReason(input.GameID)); err != nil {
		return nil, err
	}

	var missionCoins, missionGems int64
	for _, m := range play.CompletedMissions {
		missionCoins += m.Reward.SoftTokens
		missionGems += m.Reward.HardTokens
	}
	if err := e.creditBonus(userID, missionCoins, missionGems, models.CategoryReward, models.MissionsReason(input.GameID)); err != nil {
		return nil, err
	}

	return &models.GameFinishOutput{
		BaseReward:            baseReward,
		BonusFromAchievements: achievementCoins,
		BonusFromMissions:     missionCoins,
		TotalCoinsAwarded:     baseReward + achievementCoins + missionCoins,
		GemsAwarded:           achievementGems + missionGems,
		XPEarned:              xpEarned,
		LevelsGained:          play.LevelsGained,
		UnlockedAchievements:  play.UnlockedAchievements,
		CompletedMissions:     play.CompletedMissions,
		Progress:              play.Progress,
		Reward:                breakdown,
	}, nil
}

func (e *PlatformEngine) creditBonus(userID string, coins, gems int64, category models.MovementCategory, reason string) error {
	if coins > 0 {
		if _, err := e.ledger.Credit(userID, coins, models.TokenSoft, category, reason); err != nil {
			return err
		}
	}
	if gems > 0 {
		if _, err := e.ledger.Credit(userID, gems, models.TokenHard, category, reason); err != nil {
			return err
		}
	}
	return nil
}

// UpdateEconomy applies a manual adjustment. Positive deltas are credited as rewards,
// negative ones debited as manual adjustments. Every delta is checked before anything
// is applied, so a change that would overdraw or overflow leaves the user untouched.
func (e *PlatformEngine) UpdateEconomy(userID string, change models.EconomyChange) error {
	if change.XP < 0 {
		return fmt.Errorf("%w: xp must be non-negative, got %d", models.ErrInvalidInput, change.XP)
	}

	e.mu.Lock()
	err := e.updateEconomyLocked(userID, change)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.notify()
	return nil
}

func (e *PlatformEngine) updateEconomyLocked(userID string, change models.EconomyChange) error {
	if err := e.requireUser(userID); err != nil {
		return err
	}
	if err := e.checkAdjust(userID, change.Coins, models.TokenSoft); err != nil {
		return err
	}
	if err := e.checkAdjust(userID, change.Gems, models.TokenHard); err != nil {
		return err
	}
	if err := e.tracker.CanAddXP(userID, change.XP); err != nil {
		return err
	}

	if err := e.adjust(userID, change.Coins, models.TokenSoft); err != nil {
		return err
	}
	if err := e.adjust(userID, change.Gems, models.TokenHard); err != nil {
		return err
	}
	if _, err := e.tracker.AddXP(userID, change.XP); err != nil {
		return err
	}
	return nil
}

func (e *PlatformEngine) checkAdjust(userID string, delta int64, kind models.TokenKind) error {
	switch {
	case delta > 0:
		return e.ledger.CanCredit(userID, delta, kind)
	case delta < 0:
		return e.ledger.CanDebit(userID, -delta, kind)
	}
	return nil
}

// checkPayout makes sure the wallet can hold the base reward plus every bonus the
// catalog could pay in the same round, so settlement never stops halfway.
func (e *PlatformEngine) checkPayout(userID string, baseReward int64) error {
	if coins := addCapped(baseReward, e.maxBonusCoins); coins > 0 {
		if err := e.ledger.CanCredit(userID, coins, models.TokenSoft); err != nil {
			return err
		}
	}
	if e.maxBonusGems > 0 {
		if err := e.ledger.CanCredit(userID, e.maxBonusGems, models.TokenHard); err != nil {
			return err
		}
	}
	return nil
}

func (e *PlatformEngine) adjust(userID string, delta int64, kind models.TokenKind) error {
	var err error
	switch {
	case delta > 0:
		_, err = e.ledger.Credit(userID, delta, kind, models.CategoryReward, models.ManualUpdateReason)
	case delta < 0:
		_, err = e.ledger.Debit(userID, -delta, kind, models.CategoryManualAdjustment, models.ManualUpdateReason)
	}
	return err
}

// Refund returns coins for a round that was paid for but could not be played.
func (e *PlatformEngine) Refund(userID, gameID string, amount int64) error {
	if gameID == "" {
		return fmt.Errorf("%w: game id is required", models.ErrInvalidInput)
	}

	e.mu.Lock()
	if err := e.requireUser(userID); err != nil {
		e.mu.Unlock()
		return err
	}
	_, err := e.ledger.Credit(userID, amount, models.TokenSoft, models.CategoryRefund, models.RefundReason(gameID))
	e.mu.Unlock()
	if err != nil {
		return err
	}

	e.notify()
	return nil
}

// RollMissionPeriods resets every mission whose period has ended and returns how many
// users changed. Listeners are notified once if any did.
func (e *PlatformEngine) RollMissionPeriods() int {
	e.mu.Lock()
	changed := 0
	for _, userID := range e.tracker.UserIDs() {
		rolled, err := e.tracker.RollMissionPeriods(userID)
		if err != nil {
			e.logger.Errorw("failed to roll missions", "user_id", userID, "error", err)
			continue
		}
		if rolled {
			changed++
		}
	}
	e.mu.Unlock()

	if changed > 0 {
		e.logger.Infow("mission periods rolled", "users", changed)
		e.notify()
	}
	return changed
}

func (e *PlatformEngine) GetCoins(userID string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	wallet, _ := e.ledger.GetWallet(userID)
	return wallet.SoftTokens
}

func (e *PlatformEngine) GetGems(userID string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	wallet, _ := e.ledger.GetWallet(userID)
	return wallet.HardTokens
}

func (e *PlatformEngine) GetWallet(userID string) (models.Wallet, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	wallet, ok := e.ledger.GetWallet(userID)
	if !ok {
		return models.Wallet{}, fmt.Errorf("%w: no wallet for %s", models.ErrNotFound, userID)
	}
	return wallet, nil
}

// GetProgress is a pure query: it never provisions a missing user.
func (e *PlatformEngine) GetProgress(userID string) (models.UserProgress, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.GetProgress(userID)
}

func (e *PlatformEngine) HasUser(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requireUser(userID) == nil
}

func (e *PlatformEngine) Movements(userID string) []models.Movement {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Movements(userID)
}

func (e *PlatformEngine) MovementsSince(userID string, offset int) []models.Movement {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.MovementsSince(userID, offset)
}

func (e *PlatformEngine) ListenerCount() int {
	return e.observers.len()
}

func (e *PlatformEngine) Rules() models.Rules {
	return e.rules
}

func (e *PlatformEngine) requireUser(userID string) error {
	if _, ok := e.ledger.GetWallet(userID); !ok {
		return fmt.Errorf("%w: %s is not initialized", models.ErrNotFound, userID)
	}
	if !e.tracker.HasProgress(userID) {
		return fmt.Errorf("%w: %s is not initialized", models.ErrNotFound, userID)
	}
	return nil
}

func (e *PlatformEngine) notify() {
	for _, listener := range e.observers.snapshot() {
		e.call(listener)
	}
}

func (e *PlatformEngine) call(listener Listener) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorw("listener panicked", "panic", r)
		}
	}()
	listener()
}

func validateSeed(seed *models.PlatformUserSeed) error {
	if seed == nil {
		return nil
	}
	if seed.Coins < 0 || seed.Gems < 0 {
		return fmt.Errorf("%w: seed balances must be non-negative", models.ErrInvalidInput)
	}
	if seed.Level < 0 || seed.XP < 0 || seed.XPToNextLevel < 0 || seed.CurrentStreak < 0 || seed.BestStreak < 0 {
		return fmt.Errorf("%w: seed progress must be non-negative", models.ErrInvalidInput)
	}
	return nil
}

func (e *PlatformEngine) UserIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.UserIDs()
}

func addCapped(a, b int64) int64 {
	if b > math.MaxInt64-a {
		return math.MaxInt64
	}
	return a + b
}
