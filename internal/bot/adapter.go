package bot

import (
	"context"

	"github.com/ellyeware/idiombot/internal/data/repos"
	"github.com/ellyeware/idiombot/internal/domain"
	"github.com/ellyeware/idiombot/internal/platform/dbctx"
)

// StoreAdapter bridges context-only consumers (ranker, dedup detector, short-ID
// resolution) to the dbctx-based idiom repo.
type StoreAdapter struct {
	idioms repos.IdiomRepo
}

func NewStoreAdapter(idioms repos.IdiomRepo) StoreAdapter {
	return StoreAdapter{idioms: idioms}
}

func (a StoreAdapter) GetByImageHash(ctx context.Context, hash string) (*domain.Idiom, error) {
	return a.idioms.GetByImageHash(dbctx.New(ctx), hash)
}

func (a StoreAdapter) ByCatalogue(ctx context.Context, catalogueIDs []string) ([]*domain.Idiom, error) {
	return a.idioms.ByCatalogue(dbctx.New(ctx), catalogueIDs)
}

func (a StoreAdapter) ByComment(ctx context.Context, comments []string) ([]*domain.Idiom, error) {
	return a.idioms.ByComment(dbctx.New(ctx), comments)
}

func (a StoreAdapter) OCRTextByHash(ctx context.Context, hash string) ([]string, error) {
	return a.idioms.OCRTextByHash(dbctx.New(ctx), hash)
}

func (a StoreAdapter) HashesByPrefix(ctx context.Context, prefix string) ([]string, error) {
	return a.idioms.HashesByPrefix(dbctx.New(ctx), prefix)
}
