package models

import "errors"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("user record not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrWalletExists      = errors.New("wallet already exists")
	ErrProgressExists    = errors.New("progress record already exists")
)
