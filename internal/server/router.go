package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ellyeware/idiombot/internal/handlers"
	"github.com/ellyeware/idiombot/internal/middleware"
)

type RouterConfig struct {
	AllowedOrigins []string
	HubHandler     *handlers.HubHandler
	BotHandler     *handlers.BotHandler
	BotAuth        *middleware.BotAuthMiddleware
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-Bot-Token"},
		AllowCredentials: false,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	// public gallery
	api := router.Group("/api")
	{
		api.GET("/index", cfg.HubHandler.Index)
		api.GET("/search", cfg.HubHandler.Search)
	}

	// chat platform adapter
	botAPI := router.Group("/api/bot")
	botAPI.Use(cfg.BotAuth.RequireBotToken())
	{
		botAPI.POST("/upload", cfg.BotHandler.Upload)
		botAPI.POST("/search", cfg.BotHandler.Search)
		botAPI.POST("/admin/:command", cfg.BotHandler.Admin)
	}

	return router
}
