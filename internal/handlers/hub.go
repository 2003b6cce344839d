package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ellyeware/idiombot/internal/bot"
	"github.com/ellyeware/idiombot/internal/core/argparse"
	"github.com/ellyeware/idiombot/internal/core/search"
	"github.com/ellyeware/idiombot/internal/data/repos"
	"github.com/ellyeware/idiombot/internal/domain"
	"github.com/ellyeware/idiombot/internal/platform/dbctx"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

const (
	hubIndexSize  = 25
	hubSearchSize = 25
)

// HubHandler serves the public web gallery: a latest-uploads index and a
// keyword search, both returning card payloads.
type HubHandler struct {
	log        *logger.Logger
	idioms     repos.IdiomRepo
	ranker     *search.Ranker
	catalogues bot.CatalogueService
	images     bot.ImageStore
}

func NewHubHandler(idioms repos.IdiomRepo, ranker *search.Ranker, catalogues bot.CatalogueService, images bot.ImageStore, log *logger.Logger) *HubHandler {
	return &HubHandler{
		log:        log.With("handler", "HubHandler"),
		idioms:     idioms,
		ranker:     ranker,
		catalogues: catalogues,
		images:     images,
	}
}

type hubEntry struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Img      string `json:"img"`
}

func (h *HubHandler) Index(c *gin.Context) {
	rows, err := h.idioms.Latest(dbctx.New(c.Request.Context()), hubIndexSize)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "hub_index", err)
		return
	}
	payload := make([]hubEntry, 0, len(rows))
	for _, row := range rows {
		if row.UnderReview {
			continue
		}
		payload = append(payload, h.entryFromRow(row))
	}
	RespondOK(c, payload)
}

func (h *HubHandler) Search(c *gin.Context) {
	keyword := strings.TrimSpace(c.Query("keyword"))
	if keyword == "" {
		RespondOK(c, gin.H{"status": "no result"})
		return
	}
	results, matched, err := h.ranker.Rank(c.Request.Context(), search.Query{
		Terms: argparse.Tokenize(keyword),
		Limit: hubSearchSize,
	})
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "hub_search", err)
		return
	}
	if !matched || len(results) == 0 {
		RespondOK(c, gin.H{"status": "no result"})
		return
	}
	payload := make([]hubEntry, 0, len(results))
	for _, res := range results {
		payload = append(payload, hubEntry{
			Title:    strings.Join(res.Tags, " "),
			Subtitle: subtitle(res.Comments, res.Catalogues),
			Img:      h.images.GetPublicURL(res.Filename),
		})
	}
	RespondOK(c, payload)
}

func (h *HubHandler) entryFromRow(row *domain.Idiom) hubEntry {
	resolver := h.catalogues.Resolver()
	names := make([]string, 0, len(row.Catalogue))
	for _, id := range row.Catalogue {
		if name, ok := resolver.ResolveID(id); ok {
			names = append(names, name)
		} else {
			names = append(names, id)
		}
	}
	return hubEntry{
		Title:    strings.Join(row.Tags, " "),
		Subtitle: subtitle(row.Comment, names),
		Img:      h.images.GetPublicURL(row.Filename()),
	}
}

func subtitle(comments, catalogueNames []string) string {
	com := strings.Join(comments, " ")
	if com == "" {
		com = "无"
	}
	return fmt.Sprintf("备注:%s 分类:%s", com, strings.Join(catalogueNames, " "))
}
