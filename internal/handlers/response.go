package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"hubpsp-backend/internal/models"
	"hubpsp-backend/internal/services"
)

func respondError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInsufficientFunds):
		status = http.StatusConflict
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrWalletExists), errors.Is(err, models.ErrProgressExists):
		status = http.StatusConflict
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

// stateView is the projection of one user pushed to game UIs.
func stateView(engine *services.PlatformEngine, userID string) (gin.H, error) {
	progress, err := engine.GetProgress(userID)
	if err != nil {
		return nil, err
	}

	return gin.H{
		"user_id":  userID,
		"coins":    engine.GetCoins(userID),
		"gems":     engine.GetGems(userID),
		"progress": progress,
	}, nil
}
