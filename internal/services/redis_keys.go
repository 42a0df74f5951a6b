package services

import "time"

const (
	KeyUserState     = "platform:user:%s:state"
	KeyUserMovements = "platform:user:%s:movements"
	KeyRateLimit     = "ratelimit:%s:%s"

	TTLMovements = 30 * 24 * time.Hour // 30 days

	MaxMovementHistory = 100

	DefaultRateLimitFinish = 60 // Max 60 finished rounds per minute
	DefaultRateLimitStart  = 60
)
