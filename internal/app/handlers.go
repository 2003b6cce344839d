package app

import (
	"github.com/ellyeware/idiombot/internal/handlers"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

type Handlers struct {
	Hub *handlers.HubHandler
	Bot *handlers.BotHandler
}

func wireHandlers(reposet Repos, services Services, clients Clients, log *logger.Logger) Handlers {
	return Handlers{
		Hub: handlers.NewHubHandler(reposet.Idioms, services.Ranker, services.Catalogues, clients.Images, log),
		Bot: handlers.NewBotHandler(services.Upload, services.Search, services.Admin, services.Whitelist, log),
	}
}
