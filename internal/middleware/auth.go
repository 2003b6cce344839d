package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ellyeware/idiombot/internal/platform/envutil"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

// BotAuthMiddleware guards the bot command endpoints with a shared token.
// The platform adapter is the only intended caller. An empty BOT_API_TOKEN
// disables the check for local development.
type BotAuthMiddleware struct {
	log   *logger.Logger
	token string
}

func NewBotAuthMiddleware(log *logger.Logger) *BotAuthMiddleware {
	middlewareLog := log.With("middleware", "BotAuthMiddleware")
	token := envutil.GetEnv("BOT_API_TOKEN", "", log)
	if token == "" {
		middlewareLog.Warn("BOT_API_TOKEN unset, bot endpoints are unauthenticated")
	}
	return &BotAuthMiddleware{log: middlewareLog, token: token}
}

func (m *BotAuthMiddleware) RequireBotToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.token == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-Bot-Token") != m.token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
			return
		}
		c.Next()
	}
}
