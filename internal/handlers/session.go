package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"hubpsp-backend/internal/models"
	"hubpsp-backend/internal/services"
)

type SessionHandler struct {
	jwtService *services.JWTService
}

func NewSessionHandler(jwtService *services.JWTService) *SessionHandler {
	return &SessionHandler{jwtService: jwtService}
}

type createSessionRequest struct {
	UserID string `json:"user_id" binding:"omitempty,max=64"`
}

// CreateSession issues a token for the given player id, or for the guest when none is sent.
// Identity is trusted as supplied; verifying it belongs to the site's login flow.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	if req.UserID == "" {
		req.UserID = models.GuestUserID
	}

	token, claims, err := h.jwtService.GenerateToken(req.UserID)
	if err != nil {
		respondError(c, "Failed to create session", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"token":      token,
		"user_id":    claims.UserID,
		"session_id": claims.SessionID,
		"expires_at": claims.ExpiresAt.Time,
	})
}
