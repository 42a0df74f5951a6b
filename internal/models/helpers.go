package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const GuestUserID = "guest"

func GenerateMovementID() string {
	return fmt.Sprintf("mv_%s_%s",
		time.Now().Format("20060102"),
		uuid.New().String())
}

func GenerateSessionID() string {
	return uuid.New().String()
}

func EntryReason(gameID string) string        { return "entry:" + gameID }
func GameReason(gameID string) string         { return "game:" + gameID }
func AchievementsReason(gameID string) string { return "achievements:" + gameID }
func MissionsReason(gameID string) string     { return "missions:" + gameID }
func RefundReason(gameID string) string       { return "refund:" + gameID }

const ManualUpdateReason = "manual_update"
