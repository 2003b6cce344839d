package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/ellyeware/idiombot/internal/core/catalogue"
	"github.com/ellyeware/idiombot/internal/data/repos"
	"github.com/ellyeware/idiombot/internal/domain"
	"github.com/ellyeware/idiombot/internal/platform/dbctx"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

// CatalogueService caches the catalogue table as a name resolver. The table
// changes rarely; Reload is called at startup and after moderation edits.
type CatalogueService interface {
	Reload(ctx context.Context) error
	Resolver() *catalogue.Resolver
}

type catalogueService struct {
	repo repos.CatalogueRepo
	log  *logger.Logger

	mu       sync.RWMutex
	resolver *catalogue.Resolver
}

func NewCatalogueService(repo repos.CatalogueRepo, log *logger.Logger) CatalogueService {
	return &catalogueService{
		repo:     repo,
		log:      log.With("service", "bot.CatalogueService"),
		resolver: catalogue.NewResolver(nil, 0),
	}
}

func (s *catalogueService) Reload(ctx context.Context) error {
	rows, err := s.repo.All(dbctx.New(ctx))
	if err != nil {
		return fmt.Errorf("load catalogues: %w", err)
	}
	entries := make([]domain.Catalogue, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, *row)
	}

	s.mu.Lock()
	s.resolver = catalogue.NewResolver(entries, 0)
	s.mu.Unlock()
	s.log.Info("catalogue resolver reloaded", "entries", len(entries))
	return nil
}

func (s *catalogueService) Resolver() *catalogue.Resolver {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolver
}
