// Package search shapes full-text and filter queries into the bounded result
// listings shown in chat.
//
// Two disjoint modes exist. With free-text terms the search engine ranks by
// relevance and the store is consulted as the source of truth for filters and
// review state (the index may lag moderation). Without terms the store is
// queried directly by catalogue or comment membership and scores play no part.
package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/ellyeware/idiombot/internal/core/ident"
	"github.com/ellyeware/idiombot/internal/domain"
	"github.com/ellyeware/idiombot/internal/platform/logger"
	"github.com/ellyeware/idiombot/internal/platform/xerrors"
)

// Hit is one ranked match from the full-text engine. Tags are the indexed
// tags; an empty list means the hit matched on OCR text alone.
type Hit struct {
	Hash  string
	Score float64
	Tags  []string
}

// Store is the authoritative record source.
type Store interface {
	GetByImageHash(ctx context.Context, hash string) (*domain.Idiom, error)
	ByCatalogue(ctx context.Context, catalogueIDs []string) ([]*domain.Idiom, error)
	ByComment(ctx context.Context, comments []string) ([]*domain.Idiom, error)
}

// Engine runs the weighted full-text query (tags over OCR text).
type Engine interface {
	Query(ctx context.Context, keyword string) ([]Hit, error)
}

// AliasResolver recovers display names for catalogue IDs.
type AliasResolver interface {
	ResolveID(id string) (string, bool)
}

// Query is one search invocation, already tokenized.
type Query struct {
	Terms        []string
	CatalogueIDs []string
	Comments     []string
	Limit        int
}

// Result is one presentable listing entry. Order of a result slice is
// acceptance order.
type Result struct {
	ImageHash  string
	ShortID    string
	Filename   string
	Score      float64
	Ranked     bool
	Tags       []string
	FromOCR    bool
	Catalogues []string
	Comments   []string
}

type Ranker struct {
	store   Store
	engine  Engine
	aliases AliasResolver
	log     *logger.Logger
}

func NewRanker(store Store, engine Engine, aliases AliasResolver, log *logger.Logger) *Ranker {
	return &Ranker{store: store, engine: engine, aliases: aliases, log: log.With("service", "search.Ranker")}
}

// Rank executes the query. matched is false only when a ranked query produced
// no hits at all; an empty (non-nil) result slice with matched=true means
// every hit fell to a post-filter.
func (r *Ranker) Rank(ctx context.Context, q Query) (results []Result, matched bool, err error) {
	if q.Limit <= 0 {
		return nil, false, fmt.Errorf("limit must be positive, got %d: %w", q.Limit, xerrors.ErrInvalidArgument)
	}
	if len(q.Terms) == 0 {
		return r.rankStructured(ctx, q)
	}
	return r.rankByRelevance(ctx, q)
}

func (r *Ranker) rankStructured(ctx context.Context, q Query) ([]Result, bool, error) {
	var rows []*domain.Idiom
	switch {
	case len(q.CatalogueIDs) > 0 && len(q.Comments) > 0:
		byCat, err := r.store.ByCatalogue(ctx, q.CatalogueIDs)
		if err != nil {
			return nil, false, fmt.Errorf("catalogue lookup: %w", err)
		}
		byCom, err := r.store.ByComment(ctx, q.Comments)
		if err != nil {
			return nil, false, fmt.Errorf("comment lookup: %w", err)
		}
		inComment := make(map[string]struct{}, len(byCom))
		for _, row := range byCom {
			inComment[row.ImageHash] = struct{}{}
		}
		for _, row := range byCat {
			if _, ok := inComment[row.ImageHash]; ok {
				rows = append(rows, row)
			}
		}
	case len(q.CatalogueIDs) > 0:
		var err error
		rows, err = r.store.ByCatalogue(ctx, q.CatalogueIDs)
		if err != nil {
			return nil, false, fmt.Errorf("catalogue lookup: %w", err)
		}
	case len(q.Comments) > 0:
		var err error
		rows, err = r.store.ByComment(ctx, q.Comments)
		if err != nil {
			return nil, false, fmt.Errorf("comment lookup: %w", err)
		}
	default:
		return nil, false, nil
	}

	results := make([]Result, 0, min(len(rows), q.Limit))
	for _, row := range rows {
		if len(results) >= q.Limit {
			break
		}
		results = append(results, r.render(row, nil))
	}
	return results, true, nil
}

func (r *Ranker) rankByRelevance(ctx context.Context, q Query) ([]Result, bool, error) {
	keyword := strings.Join(q.Terms, " ")
	hits, err := r.engine.Query(ctx, keyword)
	if err != nil {
		return nil, false, fmt.Errorf("full-text query: %w", err)
	}
	if len(hits) == 0 {
		return nil, false, nil
	}

	results := make([]Result, 0, q.Limit)
	for _, hit := range hits {
		if len(results) >= q.Limit {
			break
		}
		// noise floor
		if hit.Score < 1 {
			continue
		}
		row, err := r.store.GetByImageHash(ctx, hit.Hash)
		if err != nil {
			r.log.Warn("authoritative lookup failed, dropping hit", "image_hash", hit.Hash, "error", err)
			continue
		}
		if row == nil {
			// index entry with no record behind it
			continue
		}
		if row.UnderReview {
			// the index may lag moderation state
			continue
		}
		if len(q.Comments) > 0 && !hasCommonMember(q.Comments, row.Comment) {
			continue
		}
		if len(q.CatalogueIDs) > 0 && !hasCommonMember(q.CatalogueIDs, row.Catalogue) {
			continue
		}
		results = append(results, r.render(row, &hit))
	}
	return results, true, nil
}

func (r *Ranker) render(row *domain.Idiom, hit *Hit) Result {
	res := Result{
		ImageHash: row.ImageHash,
		ShortID:   ident.Shorten(row.ImageHash),
		Filename:  row.Filename(),
		Tags:      row.Tags,
		Comments:  row.Comment,
	}
	for _, id := range row.Catalogue {
		if alias, ok := r.aliases.ResolveID(id); ok {
			res.Catalogues = append(res.Catalogues, alias)
		} else {
			res.Catalogues = append(res.Catalogues, id)
		}
	}
	if hit != nil {
		res.Ranked = true
		res.Score = hit.Score
		res.FromOCR = len(hit.Tags) == 0
	}
	return res
}

func hasCommonMember(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
