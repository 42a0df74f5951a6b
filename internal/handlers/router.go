package handlers

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hubpsp-backend/internal/middleware"
	"hubpsp-backend/internal/models"
	"hubpsp-backend/internal/services"
)

type RouterDeps struct {
	Engine       *services.PlatformEngine
	Persister    *services.Persister
	JWT          *services.JWTService
	StartingSeed models.PlatformUserSeed
	Logger       *zap.SugaredLogger
	// Limiter is optional; without it rounds are not rate limited.
	Limiter middleware.RateLimiter
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}

	sessionHandler := NewSessionHandler(deps.JWT)
	userHandler := NewUserHandler(deps.Engine, deps.Persister, deps.StartingSeed, deps.Logger)
	gameHandler := NewGameHandler(deps.Engine, deps.Persister, deps.Logger)
	wsHandler := NewWebSocketHandler(deps.Engine, deps.Persister, deps.Logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.CORS())

	router.POST("/api/session", sessionHandler.CreateSession)
	router.GET("/api/catalog", userHandler.GetCatalog)

	api := router.Group("/api")
	api.Use(middleware.SessionMiddleware(deps.JWT))
	if deps.Limiter != nil {
		api.Use(middleware.RateLimitMiddleware(deps.Limiter, deps.Logger))
	}
	{
		api.GET("/ws", wsHandler.HandleWebSocket)
		api.POST("/economy", userHandler.UpdateEconomy)

		platform := api.Group("/platform")
		{
			platform.POST("/init", userHandler.InitUser)
			platform.GET("/state", userHandler.GetState)
			platform.GET("/movements", userHandler.GetMovements)
		}

		games := api.Group("/games/:gameId")
		{
			games.POST("/start", gameHandler.StartGame)
			games.POST("/finish", gameHandler.FinishGame)
			games.POST("/refund", gameHandler.Refund)
		}
	}

	return router
}
