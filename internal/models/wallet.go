package models

import "time"

type TokenKind string

const (
	TokenSoft TokenKind = "SOFT"
	TokenHard TokenKind = "HARD"
)

func (k TokenKind) Valid() bool {
	return k == TokenSoft || k == TokenHard
}

// Wallet holds the two balances of one user. Coins are soft tokens, gems are hard tokens.
type Wallet struct {
	UserID     string    `json:"user_id"`
	SoftTokens int64     `json:"soft_tokens"`
	HardTokens int64     `json:"hard_tokens"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (w Wallet) Balance(kind TokenKind) int64 {
	if kind == TokenHard {
		return w.HardTokens
	}
	return w.SoftTokens
}

type MovementCategory string

const (
	CategoryReward           MovementCategory = "REWARD"
	CategoryAchievement      MovementCategory = "ACHIEVEMENT"
	CategoryEntryFee         MovementCategory = "ENTRY_FEE"
	CategoryManualAdjustment MovementCategory = "MANUAL_ADJUSTMENT"
	CategoryRefund           MovementCategory = "REFUND"
)

func (c MovementCategory) Valid() bool {
	switch c {
	case CategoryReward, CategoryAchievement, CategoryEntryFee, CategoryManualAdjustment, CategoryRefund:
		return true
	}
	return false
}

// Movement is one applied change to a wallet balance. Amount is signed.
type Movement struct {
	ID           string           `json:"id" redis:"id"`
	UserID       string           `json:"user_id" redis:"user_id"`
	Amount       int64            `json:"amount" redis:"amount"`
	TokenKind    TokenKind        `json:"token_kind" redis:"token_kind"`
	Category     MovementCategory `json:"category" redis:"category"`
	Reason       string           `json:"reason" redis:"reason"`
	BalanceAfter int64            `json:"balance_after" redis:"balance_after"`
	CreatedAt    time.Time        `json:"created_at" redis:"created_at"`
}

type BalanceResponse struct {
	Coins int64 `json:"coins"`
	Gems  int64 `json:"gems"`
}
