package services

import (
	"fmt"
	"math"
	"time"

	"hubpsp-backend/internal/models"
)

// Ledger owns wallet balances and the movement trail behind them.
// It is not safe for concurrent use; PlatformEngine serializes access.
type Ledger struct {
	wallets   map[string]*models.Wallet
	movements map[string][]models.Movement
	now       func() time.Time
}

func NewLedger(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		wallets:   make(map[string]*models.Wallet),
		movements: make(map[string][]models.Movement),
		now:       now,
	}
}

// CreateWallet fails with ErrWalletExists if the user already has a wallet.
// Seeded balances are not recorded as movements.
func (l *Ledger) CreateWallet(userID string, initialSoft, initialHard int64) (models.Wallet, error) {
	if userID == "" {
		return models.Wallet{}, fmt.Errorf("%w: empty user id", models.ErrInvalidInput)
	}
	if initialSoft < 0 || initialHard < 0 {
		return models.Wallet{}, fmt.Errorf("%w: initial balances must be non-negative", models.ErrInvalidInput)
	}
	if _, exists := l.wallets[userID]; exists {
		return models.Wallet{}, fmt.Errorf("%w: %s", models.ErrWalletExists, userID)
	}

	wallet := &models.Wallet{
		UserID:     userID,
		SoftTokens: initialSoft,
		HardTokens: initialHard,
		UpdatedAt:  l.now(),
	}
	l.wallets[userID] = wallet
	return *wallet, nil
}

func (l *Ledger) GetWallet(userID string) (models.Wallet, bool) {
	wallet, ok := l.wallets[userID]
	if !ok {
		return models.Wallet{}, false
	}
	return *wallet, true
}

// Credit fails with ErrInvalidInput when the balance cannot hold the amount.
func (l *Ledger) Credit(userID string, amount int64, kind models.TokenKind, category models.MovementCategory, reason string) (models.Movement, error) {
	wallet, err := l.prepare(userID, amount, kind, category)
	if err != nil {
		return models.Movement{}, err
	}
	if err := checkHeadroom(wallet, amount, kind); err != nil {
		return models.Movement{}, err
	}
	return l.apply(wallet, amount, kind, category, reason), nil
}

// CanCredit reports whether Credit would succeed without applying it.
func (l *Ledger) CanCredit(userID string, amount int64, kind models.TokenKind) error {
	wallet, err := l.prepare(userID, amount, kind, models.CategoryReward)
	if err != nil {
		return err
	}
	return checkHeadroom(wallet, amount, kind)
}

// Debit is all-or-nothing: on ErrInsufficientFunds the wallet is unchanged.
func (l *Ledger) Debit(userID string, amount int64, kind models.TokenKind, category models.MovementCategory, reason string) (models.Movement, error) {
	wallet, err := l.prepare(userID, amount, kind, category)
	if err != nil {
		return models.Movement{}, err
	}
	if balance := wallet.Balance(kind); balance < amount {
		return models.Movement{}, fmt.Errorf("%w: have %d %s, need %d", models.ErrInsufficientFunds, balance, kind, amount)
	}
	return l.apply(wallet, -amount, kind, category, reason), nil
}

// CanDebit reports whether Debit would succeed without applying it.
func (l *Ledger) CanDebit(userID string, amount int64, kind models.TokenKind) error {
	wallet, err := l.prepare(userID, amount, kind, models.CategoryManualAdjustment)
	if err != nil {
		return err
	}
	if balance := wallet.Balance(kind); balance < amount {
		return fmt.Errorf("%w: have %d %s, need %d", models.ErrInsufficientFunds, balance, kind, amount)
	}
	return nil
}

func (l *Ledger) Movements(userID string) []models.Movement {
	return l.MovementsSince(userID, 0)
}

// MovementsSince returns the movements recorded after the first offset ones.
func (l *Ledger) MovementsSince(userID string, offset int) []models.Movement {
	all := l.movements[userID]
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return []models.Movement{}
	}
	return append([]models.Movement{}, all[offset:]...)
}

func (l *Ledger) MovementCount(userID string) int {
	return len(l.movements[userID])
}

func (l *Ledger) prepare(userID string, amount int64, kind models.TokenKind, category models.MovementCategory) (*models.Wallet, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %d", models.ErrInvalidInput, amount)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown token kind %q", models.ErrInvalidInput, kind)
	}
	if !category.Valid() {
		return nil, fmt.Errorf("%w: unknown movement category %q", models.ErrInvalidInput, category)
	}
	wallet, ok := l.wallets[userID]
	if !ok {
		return nil, fmt.Errorf("%w: no wallet for %s", models.ErrNotFound, userID)
	}
	return wallet, nil
}

func checkHeadroom(wallet *models.Wallet, amount int64, kind models.TokenKind) error {
	if balance := wallet.Balance(kind); amount > math.MaxInt64-balance {
		return fmt.Errorf("%w: crediting %d %s would overflow balance %d", models.ErrInvalidInput, amount, kind, balance)
	}
	return nil
}

func (l *Ledger) apply(wallet *models.Wallet, signed int64, kind models.TokenKind, category models.MovementCategory, reason string) models.Movement {
	now := l.now()

	var balanceAfter int64
	if kind == models.TokenHard {
		wallet.HardTokens += signed
		balanceAfter = wallet.HardTokens
	} else {
		wallet.SoftTokens += signed
		balanceAfter = wallet.SoftTokens
	}
	wallet.UpdatedAt = now

	movement := models.Movement{
		ID:           models.GenerateMovementID(),
		UserID:       wallet.UserID,
		Amount:       signed,
		TokenKind:    kind,
		Category:     category,
		Reason:       reason,
		BalanceAfter: balanceAfter,
		CreatedAt:    now,
	}
	l.movements[wallet.UserID] = append(l.movements[wallet.UserID], movement)
	return movement
}
