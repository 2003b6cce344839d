package app

import (
	"github.com/ellyeware/idiombot/internal/middleware"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

type Middleware struct {
	BotAuth *middleware.BotAuthMiddleware
}

func wireMiddleware(log *logger.Logger) Middleware {
	return Middleware{
		BotAuth: middleware.NewBotAuthMiddleware(log),
	}
}
