package app

import (
	"context"
	"fmt"

	"github.com/ellyeware/idiombot/internal/bot"
	"github.com/ellyeware/idiombot/internal/core/dedup"
	"github.com/ellyeware/idiombot/internal/core/search"
	"github.com/ellyeware/idiombot/internal/data/index"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

type Services struct {
	Index      *index.Index
	Catalogues bot.CatalogueService
	Ranker     *search.Ranker
	Deduper    *dedup.Detector
	Upload     bot.UploadService
	Search     bot.SearchService
	Admin      bot.AdminService
	Whitelist  bot.Whitelist
}

// catalogueAliases defers to the live resolver so reloads are picked up.
type catalogueAliases struct {
	cats bot.CatalogueService
}

func (a catalogueAliases) ResolveID(id string) (string, bool) {
	return a.cats.Resolver().ResolveID(id)
}

func wireServices(cfg Config, reposet Repos, clients Clients, log *logger.Logger) (Services, error) {
	idx, err := index.New(cfg.IndexPath, log)
	if err != nil {
		return Services{}, fmt.Errorf("init search index: %w", err)
	}

	catalogues := bot.NewCatalogueService(reposet.Catalogues, log)
	if err := catalogues.Reload(context.Background()); err != nil {
		return Services{}, fmt.Errorf("load catalogues: %w", err)
	}

	store := bot.NewStoreAdapter(reposet.Idioms)
	ranker := search.NewRanker(store, idx, catalogueAliases{cats: catalogues}, log)
	deduper := dedup.NewDetector(store, idx, log)
	whitelist := bot.WhitelistFromEnv(log)

	var limiter bot.Limiter
	if clients.Limiter != nil {
		limiter = clients.Limiter
	}

	upload := bot.NewUploadService(
		reposet.Idioms, idx, clients.Images, clients.Vision, clients.Fetcher,
		clients.Relay, deduper, catalogues, limiter, whitelist, log,
	)
	searchSvc := bot.NewSearchService(ranker, clients.Images, catalogues, log)
	admin := bot.NewAdminService(
		reposet.Idioms, reposet.Greylist, idx, clients.Images, clients.Vision,
		clients.Relay, catalogues, log,
	)

	return Services{
		Index:      idx,
		Catalogues: catalogues,
		Ranker:     ranker,
		Deduper:    deduper,
		Upload:     upload,
		Search:     searchSvc,
		Admin:      admin,
		Whitelist:  whitelist,
	}, nil
}
