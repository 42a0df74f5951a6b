package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hubpsp-backend/internal/models"
	"hubpsp-backend/internal/services"
)

type GameHandler struct {
	engine    *services.PlatformEngine
	persister *services.Persister
	logger    *zap.SugaredLogger
}

func NewGameHandler(engine *services.PlatformEngine, persister *services.Persister, logger *zap.SugaredLogger) *GameHandler {
	return &GameHandler{
		engine:    engine,
		persister: persister,
		logger:    logger,
	}
}

// StartGame charges the entry fee. The body is optional; without it the round is free.
func (h *GameHandler) StartGame(c *gin.Context) {
	userID := c.GetString("user_id")
	gameID := c.Param("gameId")

	var req models.StartGameRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if err := h.persister.Rehydrate(c.Request.Context(), userID); err != nil {
		respondError(c, "Failed to load state", err)
		return
	}
	if err := h.engine.StartGame(userID, gameID, req.MinBet); err != nil {
		respondError(c, "Failed to start game", err)
		return
	}
	flush(c, h.persister, h.logger, userID)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game_id": gameID,
		"balance": models.BalanceResponse{
			Coins: h.engine.GetCoins(userID),
			Gems:  h.engine.GetGems(userID),
		},
	})
}

func (h *GameHandler) FinishGame(c *gin.Context) {
	userID := c.GetString("user_id")

	var input models.GameFinishInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	input.GameID = c.Param("gameId")

	if err := h.persister.Rehydrate(c.Request.Context(), userID); err != nil {
		respondError(c, "Failed to load state", err)
		return
	}
	result, err := h.engine.FinishGame(userID, input)
	if err != nil {
		respondError(c, "Failed to finish game", err)
		return
	}
	flush(c, h.persister, h.logger, userID)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
		"balance": models.BalanceResponse{
			Coins: h.engine.GetCoins(userID),
			Gems:  h.engine.GetGems(userID),
		},
	})
}

func (h *GameHandler) Refund(c *gin.Context) {
	userID := c.GetString("user_id")
	gameID := c.Param("gameId")

	var req models.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if err := h.persister.Rehydrate(c.Request.Context(), userID); err != nil {
		respondError(c, "Failed to load state", err)
		return
	}
	if err := h.engine.Refund(userID, gameID, req.Amount); err != nil {
		respondError(c, "Failed to refund", err)
		return
	}
	flush(c, h.persister, h.logger, userID)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": models.BalanceResponse{
			Coins: h.engine.GetCoins(userID),
			Gems:  h.engine.GetGems(userID),
		},
	})
}
