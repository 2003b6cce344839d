package search

import (
	"context"
	"errors"
	"testing"

	"github.com/ellyeware/idiombot/internal/domain"
	"github.com/ellyeware/idiombot/internal/platform/logger"
	"github.com/ellyeware/idiombot/internal/platform/xerrors"
)

type fakeStore struct {
	rows map[string]*domain.Idiom
}

func (f *fakeStore) GetByImageHash(_ context.Context, hash string) (*domain.Idiom, error) {
	return f.rows[hash], nil
}

func (f *fakeStore) ByCatalogue(_ context.Context, ids []string) ([]*domain.Idiom, error) {
	return f.filter(func(row *domain.Idiom) bool { return hasCommonMember(ids, row.Catalogue) }), nil
}

func (f *fakeStore) ByComment(_ context.Context, comments []string) ([]*domain.Idiom, error) {
	return f.filter(func(row *domain.Idiom) bool { return hasCommonMember(comments, row.Comment) }), nil
}

func (f *fakeStore) filter(keep func(*domain.Idiom) bool) []*domain.Idiom {
	// deterministic order for assertions
	var out []*domain.Idiom
	for _, hash := range sortedKeys(f.rows) {
		if row := f.rows[hash]; keep(row) {
			out = append(out, row)
		}
	}
	return out
}

func sortedKeys(m map[string]*domain.Idiom) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j] < keys[j-1]; j-- {
			keys[j], keys[j-1] = keys[j-1], keys[j]
		}
	}
	return keys
}

type fakeEngine struct {
	hits []Hit
}

func (f *fakeEngine) Query(_ context.Context, _ string) ([]Hit, error) {
	return f.hits, nil
}

type fakeAliases struct{ names map[string]string }

func (f *fakeAliases) ResolveID(id string) (string, bool) {
	name, ok := f.names[id]
	return name, ok
}

func row(hash string, tags, cats, comments []string, underReview bool) *domain.Idiom {
	return &domain.Idiom{
		ImageHash:   hash,
		ImageExt:    "jpg",
		Tags:        tags,
		Catalogue:   cats,
		Comment:     comments,
		UnderReview: underReview,
	}
}

func ranker(store *fakeStore, engine *fakeEngine) *Ranker {
	return NewRanker(store, engine, &fakeAliases{names: map[string]string{"491673070": "怡宝"}}, logger.NewNop())
}

func TestRankRejectsNonPositiveLimit(t *testing.T) {
	r := ranker(&fakeStore{}, &fakeEngine{})

	_, _, err := r.Rank(context.Background(), Query{Terms: []string{"可爱"}})
	if !errors.Is(err, xerrors.ErrInvalidArgument) {
		t.Fatalf("zero limit: %v", err)
	}
}

func TestStructuredModeByCatalogue(t *testing.T) {
	store := &fakeStore{rows: map[string]*domain.Idiom{
		"aaaa111122223333": row("aaaa111122223333", nil, []string{"491673070"}, nil, false),
		"bbbb111122223333": row("bbbb111122223333", nil, []string{"269077688"}, nil, false),
	}}
	r := ranker(store, &fakeEngine{})

	results, matched, err := r.Rank(context.Background(), Query{CatalogueIDs: []string{"491673070"}, Limit: 5})
	if err != nil || !matched {
		t.Fatalf("Rank: matched=%v err=%v", matched, err)
	}
	if len(results) != 1 || results[0].ImageHash != "aaaa111122223333" {
		t.Fatalf("results: %+v", results)
	}
	if results[0].Ranked {
		t.Fatal("structured mode must not carry a relevance score")
	}
	if results[0].ShortID != "AAAA11" || results[0].Filename != "aaaa111122223333.jpg" {
		t.Fatalf("rendering: %+v", results[0])
	}
	if len(results[0].Catalogues) != 1 || results[0].Catalogues[0] != "怡宝" {
		t.Fatalf("catalogue display name: %+v", results[0].Catalogues)
	}
}

func TestStructuredModeIntersection(t *testing.T) {
	store := &fakeStore{rows: map[string]*domain.Idiom{
		"aaaa111122223333": row("aaaa111122223333", nil, []string{"491673070"}, []string{"测试"}, false),
		"bbbb111122223333": row("bbbb111122223333", nil, []string{"491673070"}, []string{"其他"}, false),
		"cccc111122223333": row("cccc111122223333", nil, []string{"269077688"}, []string{"测试"}, false),
	}}
	r := ranker(store, &fakeEngine{})

	results, matched, err := r.Rank(context.Background(), Query{
		CatalogueIDs: []string{"491673070"},
		Comments:     []string{"测试"},
		Limit:        5,
	})
	if err != nil || !matched {
		t.Fatalf("Rank: matched=%v err=%v", matched, err)
	}
	if len(results) != 1 || results[0].ImageHash != "aaaa111122223333" {
		t.Fatalf("intersection results: %+v", results)
	}
}

func TestStructuredModeHonorsLimit(t *testing.T) {
	rows := map[string]*domain.Idiom{}
	for _, h := range []string{"aaaa111122223333", "bbbb111122223333", "cccc111122223333"} {
		rows[h] = row(h, nil, []string{"491673070"}, nil, false)
	}
	r := ranker(&fakeStore{rows: rows}, &fakeEngine{})

	results, _, err := r.Rank(context.Background(), Query{CatalogueIDs: []string{"491673070"}, Limit: 2})
	if err != nil || len(results) != 2 {
		t.Fatalf("limit: got %d results err=%v", len(results), err)
	}
}

func TestRankedModeZeroHitsVsFilteredOut(t *testing.T) {
	store := &fakeStore{rows: map[string]*domain.Idiom{
		"aaaa111122223333": row("aaaa111122223333", []string{"可爱"}, nil, nil, true),
	}}

	// no hits at all
	r := ranker(store, &fakeEngine{})
	results, matched, err := r.Rank(context.Background(), Query{Terms: []string{"可爱"}, Limit: 5})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if matched || results != nil {
		t.Fatalf("zero hits must report no match: matched=%v results=%v", matched, results)
	}

	// hits exist but every one is filtered out (under review)
	r = ranker(store, &fakeEngine{hits: []Hit{{Hash: "aaaa111122223333", Score: 10, Tags: []string{"可爱"}}}})
	results, matched, err = r.Rank(context.Background(), Query{Terms: []string{"可爱"}, Limit: 5})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if !matched {
		t.Fatal("hits existed; matched must be true")
	}
	if len(results) != 0 {
		t.Fatalf("under-review hit must be dropped: %+v", results)
	}
}

func TestRankedModeNoiseFloorAndOrder(t *testing.T) {
	store := &fakeStore{rows: map[string]*domain.Idiom{
		"aaaa111122223333": row("aaaa111122223333", []string{"可爱"}, nil, nil, false),
		"bbbb111122223333": row("bbbb111122223333", nil, nil, nil, false),
		"cccc111122223333": row("cccc111122223333", nil, nil, nil, false),
	}}
	engine := &fakeEngine{hits: []Hit{
		{Hash: "aaaa111122223333", Score: 12, Tags: []string{"可爱"}},
		{Hash: "bbbb111122223333", Score: 3},
		{Hash: "cccc111122223333", Score: 0.4},
	}}
	r := ranker(store, engine)

	results, matched, err := r.Rank(context.Background(), Query{Terms: []string{"可爱"}, Limit: 5})
	if err != nil || !matched {
		t.Fatalf("Rank: matched=%v err=%v", matched, err)
	}
	if len(results) != 2 {
		t.Fatalf("noise floor should drop the 0.4 hit: %+v", results)
	}
	if results[0].ImageHash != "aaaa111122223333" || results[1].ImageHash != "bbbb111122223333" {
		t.Fatalf("acceptance order must follow score order: %+v", results)
	}
	if !results[0].Ranked || results[0].Score != 12 {
		t.Fatalf("ranked rendering: %+v", results[0])
	}
	if results[0].FromOCR {
		t.Fatal("hit with indexed tags is not OCR-sourced")
	}
	if !results[1].FromOCR {
		t.Fatal("hit without indexed tags must be marked OCR-sourced")
	}
}

func TestRankedModePostFilters(t *testing.T) {
	store := &fakeStore{rows: map[string]*domain.Idiom{
		"aaaa111122223333": row("aaaa111122223333", []string{"可爱"}, []string{"491673070"}, []string{"测试"}, false),
		"bbbb111122223333": row("bbbb111122223333", []string{"可爱"}, []string{"269077688"}, []string{"其他"}, false),
	}}
	engine := &fakeEngine{hits: []Hit{
		{Hash: "aaaa111122223333", Score: 10, Tags: []string{"可爱"}},
		{Hash: "bbbb111122223333", Score: 9, Tags: []string{"可爱"}},
	}}
	r := ranker(store, engine)

	results, _, err := r.Rank(context.Background(), Query{
		Terms:        []string{"可爱"},
		CatalogueIDs: []string{"491673070"},
		Limit:        5,
	})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(results) != 1 || results[0].ImageHash != "aaaa111122223333" {
		t.Fatalf("catalogue post-filter: %+v", results)
	}

	results, _, err = r.Rank(context.Background(), Query{
		Terms:    []string{"可爱"},
		Comments: []string{"其他"},
		Limit:    5,
	})
	if err != nil {
		t.Fatalf("Rank: %v", err)
	}
	if len(results) != 1 || results[0].ImageHash != "bbbb111122223333" {
		t.Fatalf("comment post-filter: %+v", results)
	}
}
