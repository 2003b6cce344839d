package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/ellyeware/idiombot/internal/core/argparse"
	"github.com/ellyeware/idiombot/internal/core/search"
	"github.com/ellyeware/idiombot/internal/domain"
	"github.com/ellyeware/idiombot/internal/platform/envutil"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

// SearchReply is a rendered chat response. Message is set for text-only
// outcomes; Segments carries the image/text listing otherwise.
type SearchReply struct {
	Message  string
	Segments []domain.Segment
}

type SearchService interface {
	Search(ctx context.Context, segments []domain.Segment) (*SearchReply, error)
}

type searchService struct {
	log        *logger.Logger
	ranker     *search.Ranker
	images     ImageStore
	catalogues CatalogueService
	limit      int
}

func NewSearchService(ranker *search.Ranker, images ImageStore, catalogues CatalogueService, log *logger.Logger) SearchService {
	return &searchService{
		log:        log.With("service", "bot.SearchService"),
		ranker:     ranker,
		images:     images,
		catalogues: catalogues,
		limit:      envutil.GetEnvAsInt("EI_SEARCH_LIMIT", 5, log),
	}
}

func (s *searchService) Search(ctx context.Context, segments []domain.Segment) (*SearchReply, error) {
	// search must not inherit the upload default catalogue, or every keyword
	// query silently gains a filter
	parsed := argparse.Parse(segments, s.catalogues.Resolver(), argparse.Options{})

	if len(parsed.Tags) == 0 && len(parsed.Catalogues) == 0 && len(parsed.Comments) == 0 && len(parsed.UnresolvedCatalogues) == 0 {
		return &SearchReply{Message: "请输入查询关键词。"}, nil
	}

	var head strings.Builder
	for _, name := range parsed.UnresolvedCatalogues {
		head.WriteString(fmt.Sprintf("未知分类：%s。\n", name))
	}

	results, matched, err := s.ranker.Rank(ctx, search.Query{
		Terms:        parsed.Tags,
		CatalogueIDs: parsed.Catalogues,
		Comments:     parsed.Comments,
		Limit:        s.limit,
	})
	if err != nil {
		return nil, fmt.Errorf("rank query: %w", err)
	}
	if !matched {
		return &SearchReply{Message: head.String() + "未找到相关结果。"}, nil
	}
	if len(results) == 0 {
		return &SearchReply{Message: head.String() + "相关结果均在审核中，暂不展示。"}, nil
	}

	out := make([]domain.Segment, 0, 2*len(results)+1)
	if head.Len() > 0 {
		out = append(out, domain.TextSegment{Text: head.String()})
	}
	for _, res := range results {
		out = append(out, domain.ImageSegment{URL: s.images.GetPublicURL(res.Filename)})
		out = append(out, domain.TextSegment{Text: renderResult(res)})
	}
	return &SearchReply{Segments: out}, nil
}

func renderResult(res search.Result) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("ID：%s\n", res.ShortID))
	if res.Ranked {
		sb.WriteString(fmt.Sprintf("相关性：%.2f\n", res.Score))
	}
	if len(res.Tags) > 0 {
		sb.WriteString(fmt.Sprintf("标签：%s\n", strings.Join(res.Tags, " ")))
	} else if res.FromOCR {
		sb.WriteString("来源：文字OCR\n")
	}
	if len(res.Catalogues) > 0 {
		sb.WriteString(fmt.Sprintf("分类：%s\n", strings.Join(res.Catalogues, " ")))
	}
	if len(res.Comments) > 0 {
		sb.WriteString(fmt.Sprintf("备注：%s\n", strings.Join(res.Comments, " ")))
	}
	return sb.String()
}
