// Package dedup flags freshly stored idioms whose OCR text is suspiciously
// close to an existing one. The check is advisory only: it never blocks an
// upload, it annotates the reply so the uploader (or a reviewer) can judge.
package dedup

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ellyeware/idiombot/internal/core/ident"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

// Candidate is one near-duplicate hit with its similarity score.
type Candidate struct {
	Hash  string
	Score float64
}

// OCRStore reads the recognized text fragments of a stored idiom. A nil slice
// means the item has no OCR text.
type OCRStore interface {
	OCRTextByHash(ctx context.Context, hash string) ([]string, error)
}

// SimilaritySearcher runs a similarity query over the OCR text of items that
// are not under review, descending by score.
type SimilaritySearcher interface {
	SimilarByOCRText(ctx context.Context, text string) ([]Candidate, error)
}

type Detector struct {
	store  OCRStore
	engine SimilaritySearcher
	log    *logger.Logger
}

func NewDetector(store OCRStore, engine SimilaritySearcher, log *logger.Logger) *Detector {
	return &Detector{store: store, engine: engine, log: log.With("service", "dedup.Detector")}
}

// Short OCR strings produce inflated scores on trivial overlap, so the
// acceptance threshold grows with text length. Tuning table, not a formula.
func scoreThreshold(runeLen int) float64 {
	switch {
	case runeLen < 10:
		return 8
	case runeLen < 30:
		return 16
	default:
		return 32
	}
}

// Check inspects each newly stored hash and returns the concatenated warning
// lines, one per suspected duplicate, in input order. An empty string means
// nothing suspicious. Errors on one hash are reported in place and do not
// abort the rest of the batch.
func (d *Detector) Check(ctx context.Context, hashes ...string) string {
	var sb strings.Builder
	for _, hash := range hashes {
		line, err := d.checkOne(ctx, hash)
		if err != nil {
			d.log.Warn("duplicate check failed", "image_hash", hash, "error", err)
			sb.WriteString(fmt.Sprintf("图片 %s 查重失败。\n", ident.Shorten(hash)))
			continue
		}
		sb.WriteString(line)
	}
	return sb.String()
}

func (d *Detector) checkOne(ctx context.Context, hash string) (string, error) {
	fragments, err := d.store.OCRTextByHash(ctx, hash)
	if err != nil {
		return "", fmt.Errorf("fetch ocr text: %w", err)
	}
	text := strings.Join(fragments, "")
	if text == "" {
		// no OCR text, no basis for a text-similarity check
		return "", nil
	}
	threshold := scoreThreshold(utf8.RuneCountInString(text))

	candidates, err := d.engine.SimilarByOCRText(ctx, text)
	if err != nil {
		return "", fmt.Errorf("similarity query: %w", err)
	}
	for _, cand := range candidates {
		if cand.Hash == hash {
			continue
		}
		if cand.Score > threshold {
			return fmt.Sprintf("图片 %s 疑似与 %s 重复（相关性 %.2f）。\n",
				ident.Shorten(hash), ident.Shorten(cand.Hash), cand.Score), nil
		}
		// scores are descending; the first non-self candidate decides
		break
	}
	return "", nil
}
