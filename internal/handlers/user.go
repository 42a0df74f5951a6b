package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hubpsp-backend/internal/models"
	"hubpsp-backend/internal/services"
)

type UserHandler struct {
	engine    *services.PlatformEngine
	persister *services.Persister
	seed      models.PlatformUserSeed
	logger    *zap.SugaredLogger
}

func NewUserHandler(engine *services.PlatformEngine, persister *services.Persister, seed models.PlatformUserSeed, logger *zap.SugaredLogger) *UserHandler {
	return &UserHandler{
		engine:    engine,
		persister: persister,
		seed:      seed,
		logger:    logger,
	}
}

// InitUser provisions the caller: a stored snapshot wins over the starting balance.
func (h *UserHandler) InitUser(c *gin.Context) {
	userID := c.GetString("user_id")

	seed := h.seed
	restored, err := h.persister.Restore(c.Request.Context(), userID, &seed)
	if err != nil {
		respondError(c, "Failed to initialize user", err)
		return
	}
	flush(c, h.persister, h.logger, userID)

	state, err := stateView(h.engine, userID)
	if err != nil {
		respondError(c, "Failed to read state", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"restored": restored,
		"state":    state,
	})
}

func (h *UserHandler) GetState(c *gin.Context) {
	userID := c.GetString("user_id")

	if err := h.persister.Rehydrate(c.Request.Context(), userID); err != nil {
		respondError(c, "Failed to load state", err)
		return
	}

	state, err := stateView(h.engine, userID)
	if err != nil {
		respondError(c, "Failed to read state", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"state":   state,
	})
}

func (h *UserHandler) GetMovements(c *gin.Context) {
	userID := c.GetString("user_id")

	limitStr := c.DefaultQuery("limit", "50")
	limit, err := strconv.ParseInt(limitStr, 10, 64)
	if err != nil || limit <= 0 || limit > services.MaxMovementHistory {
		limit = 50
	}

	if err := h.persister.Rehydrate(c.Request.Context(), userID); err != nil {
		respondError(c, "Failed to load state", err)
		return
	}
	if !h.engine.HasUser(userID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not initialized"})
		return
	}

	movements, err := h.persister.History(c.Request.Context(), userID, limit)
	if err != nil {
		respondError(c, "Failed to fetch movements", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"movements": movements,
		"count":     len(movements),
	})
}

func (h *UserHandler) UpdateEconomy(c *gin.Context) {
	userID := c.GetString("user_id")

	var change models.EconomyChange
	if err := c.ShouldBindJSON(&change); err != nil {
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
	if err := h.engine.UpdateEconomy(userID, change); err != nil {
		respondError(c, "Failed to update economy", err)
		return
	}
	flush(c, h.persister, h.logger, userID)

	state, err := stateView(h.engine, userID)
	if err != nil {
		respondError(c, "Failed to read state", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"state":   state,
	})
}

func (h *UserHandler) GetCatalog(c *gin.Context) {
	rules := h.engine.Rules()

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"curve":        rules.Curve,
		"achievements": rules.Achievements,
		"missions":     rules.Missions,
	})
}

// flush persists the user after a mutation. The mutation already happened in
// memory, so a storage failure is logged rather than returned.
func flush(c *gin.Context, persister *services.Persister, logger *zap.SugaredLogger, userID string) {
	if err := persister.Flush(c.Request.Context(), userID); err != nil {
		logger.Errorw("failed to persist user state", "user_id", userID, "error", err)
	}
}
