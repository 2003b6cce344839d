package app

import (
	"github.com/gin-gonic/gin"

	"github.com/ellyeware/idiombot/internal/server"
)

func wireRouter(cfg Config, handlerset Handlers, middlewareset Middleware) *gin.Engine {
	return server.NewRouter(server.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		HubHandler:     handlerset.Hub,
		BotHandler:     handlerset.Bot,
		BotAuth:        middlewareset.BotAuth,
	})
}
