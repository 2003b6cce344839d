// Package index wraps the embedded bleve full-text index over idiom tags and
// OCR text. It serves both the user-facing ranked search (tags weighted well
// above OCR text) and the near-duplicate similarity query used on upload.
package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/ellyeware/idiombot/internal/core/dedup"
	coresearch "github.com/ellyeware/idiombot/internal/core/search"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

const (
	// tags matter an order of magnitude more than recognized text
	tagsBoost = 10.0

	maxQueryHits   = 50
	maxSimilarHits = 5
)

// Doc is the indexed projection of an idiom record.
type Doc struct {
	ImageHash   string
	Tags        []string
	OCRText     []string
	UnderReview bool
}

type Index struct {
	idx bleve.Index
	log *logger.Logger
}

// New opens (or creates) the index at path. An empty path builds a memory-only
// index, which tests rely on.
func New(path string, log *logger.Logger) (*Index, error) {
	serviceLog := log.With("service", "index.Index")

	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(buildMapping())
	} else {
		idx, err = bleve.Open(path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			serviceLog.Info("creating new search index", "path", path)
			idx, err = bleve.New(path, buildMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	return &Index{idx: idx, log: serviceLog}, nil
}

// Chinese text dominates the corpus; the CJK analyzer stands in for the
// ik_max_word analysis the hosted engine used.
func buildMapping() mapping.IndexMapping {
	tagField := bleve.NewTextFieldMapping()
	tagField.Analyzer = cjk.AnalyzerName
	ocrField := bleve.NewTextFieldMapping()
	ocrField.Analyzer = cjk.AnalyzerName

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("tags", tagField)
	doc.AddFieldMappingsAt("ocr_text", ocrField)
	doc.AddFieldMappingsAt("image_hash", bleve.NewKeywordFieldMapping())
	doc.AddFieldMappingsAt("under_review", bleve.NewBooleanFieldMapping())

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Upsert indexes (or reindexes) one idiom document keyed by its image hash.
func (i *Index) Upsert(doc Doc) error {
	return i.idx.Index(doc.ImageHash, map[string]interface{}{
		"image_hash":   doc.ImageHash,
		"tags":         doc.Tags,
		"ocr_text":     doc.OCRText,
		"under_review": doc.UnderReview,
	})
}

// Delete removes an idiom from the index.
func (i *Index) Delete(imageHash string) error {
	return i.idx.Delete(imageHash)
}

// Query runs the weighted full-text query and returns ranked hits.
func (i *Index) Query(ctx context.Context, keyword string) ([]coresearch.Hit, error) {
	tagQuery := bleve.NewMatchQuery(keyword)
	tagQuery.SetField("tags")
	tagQuery.SetBoost(tagsBoost)
	ocrQuery := bleve.NewMatchQuery(keyword)
	ocrQuery.SetField("ocr_text")

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(tagQuery, ocrQuery), maxQueryHits, 0, false)
	req.Fields = []string{"tags"}

	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	hits := make([]coresearch.Hit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		hits = append(hits, coresearch.Hit{
			Hash:  hit.ID,
			Score: hit.Score,
			Tags:  stringsFromField(hit.Fields["tags"]),
		})
	}
	return hits, nil
}

// SimilarByOCRText finds items whose OCR text resembles the given text,
// excluding anything still under review. Descending by score.
func (i *Index) SimilarByOCRText(ctx context.Context, text string) ([]dedup.Candidate, error) {
	ocrQuery := bleve.NewMatchQuery(text)
	ocrQuery.SetField("ocr_text")
	underReview := bleve.NewBoolFieldQuery(true)
	underReview.SetField("under_review")

	boolQuery := bleve.NewBooleanQuery()
	boolQuery.AddMust(ocrQuery)
	boolQuery.AddMustNot(underReview)

	req := bleve.NewSearchRequestOptions(boolQuery, maxSimilarHits, 0, false)
	res, err := i.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	candidates := make([]dedup.Candidate, 0, len(res.Hits))
	for _, hit := range res.Hits {
		candidates = append(candidates, dedup.Candidate{Hash: hit.ID, Score: hit.Score})
	}
	return candidates, nil
}

func (i *Index) Close() error {
	return i.idx.Close()
}

func stringsFromField(v interface{}) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
