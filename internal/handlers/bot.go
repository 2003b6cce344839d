package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ellyeware/idiombot/internal/bot"
	"github.com/ellyeware/idiombot/internal/core/ident"
	"github.com/ellyeware/idiombot/internal/domain"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

// BotHandler exposes the chat commands over HTTP for the platform adapter.
// Request and reply bodies carry messages as ordered segment lists, mirroring
// how chat platforms deliver them.
type BotHandler struct {
	log       *logger.Logger
	upload    bot.UploadService
	search    bot.SearchService
	admin     bot.AdminService
	whitelist bot.Whitelist
}

func NewBotHandler(upload bot.UploadService, search bot.SearchService, admin bot.AdminService, whitelist bot.Whitelist, log *logger.Logger) *BotHandler {
	return &BotHandler{
		log:       log.With("handler", "BotHandler"),
		upload:    upload,
		search:    search,
		admin:     admin,
		whitelist: whitelist,
	}
}

type segmentDTO struct {
	Type string            `json:"type"`
	Data map[string]string `json:"data"`
}

type senderDTO struct {
	Nickname string `json:"nickname"`
	ID       string `json:"id"`
	Platform string `json:"platform"`
}

type messageRequest struct {
	Sender  senderDTO    `json:"sender"`
	Message []segmentDTO `json:"message"`
}

func (r messageRequest) segments() []domain.Segment {
	out := make([]domain.Segment, 0, len(r.Message))
	for _, seg := range r.Message {
		switch seg.Type {
		case "text":
			out = append(out, domain.TextSegment{Text: seg.Data["text"]})
		case "image":
			out = append(out, domain.ImageSegment{URL: seg.Data["url"]})
		}
	}
	return out
}

func (r messageRequest) uploader() domain.Uploader {
	platform := r.Sender.Platform
	if platform == "" {
		platform = "qq"
	}
	return domain.Uploader{Nickname: r.Sender.Nickname, ID: r.Sender.ID, Platform: platform}
}

func segmentsToDTO(segments []domain.Segment) []segmentDTO {
	out := make([]segmentDTO, 0, len(segments))
	for _, seg := range segments {
		switch s := seg.(type) {
		case domain.TextSegment:
			out = append(out, segmentDTO{Type: "text", Data: map[string]string{"text": s.Text}})
		case domain.ImageSegment:
			out = append(out, segmentDTO{Type: "image", Data: map[string]string{"url": s.URL}})
		}
	}
	return out
}

func (h *BotHandler) Upload(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	reply, err := h.upload.Upload(c.Request.Context(), bot.UploadRequest{
		Segments: req.segments(),
		Sender:   req.uploader(),
	})
	if err != nil {
		h.log.Error("upload command failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "upload_failed", err)
		return
	}
	shortIDs := make([]string, 0, len(reply.StoredHashes))
	for _, hash := range reply.StoredHashes {
		shortIDs = append(shortIDs, ident.Shorten(hash))
	}
	RespondOK(c, gin.H{
		"message":      reply.Message,
		"stored":       shortIDs,
		"under_review": reply.UnderReview,
	})
}

func (h *BotHandler) Search(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	reply, err := h.search.Search(c.Request.Context(), req.segments())
	if err != nil {
		h.log.Error("search command failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "search_failed", err)
		return
	}
	RespondOK(c, gin.H{
		"message": reply.Message,
		"reply":   segmentsToDTO(reply.Segments),
	})
}

type adminRequest struct {
	Sender senderDTO `json:"sender"`
	ID     string    `json:"id"`
	Values []string  `json:"values"`
}

func (h *BotHandler) Admin(c *gin.Context) {
	command := c.Param("command")

	var req adminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	if !h.whitelist.Allows(req.Sender.ID) {
		RespondOK(c, gin.H{"message": "您没有权限使用此命令。"})
		return
	}

	ctx := c.Request.Context()
	scope := "api"

	var (
		message  string
		segReply *bot.SearchReply
		err      error
	)
	switch command {
	case "delete":
		message, err = h.admin.Delete(ctx, req.ID, scope)
	case "approve":
		message, err = h.admin.Approve(ctx, req.ID, scope)
	case "reject":
		message, err = h.admin.Reject(ctx, req.ID, scope)
	case "add_tags":
		message, err = h.admin.AddTags(ctx, req.ID, scope, req.Values)
	case "set_tags":
		message, err = h.admin.SetTags(ctx, req.ID, scope, req.Values)
	case "set_comment":
		message, err = h.admin.SetComment(ctx, req.ID, scope, req.Values)
	case "set_catalogue":
		message, err = h.admin.SetCatalogue(ctx, req.ID, scope, req.Values)
	case "reocr":
		message, err = h.admin.ReOCR(ctx, req.ID, scope)
	case "pending":
		segReply, err = h.admin.Pending(ctx)
	case "stats":
		message, err = h.admin.Stats(ctx)
	case "random":
		segReply, err = h.admin.Random(ctx)
	default:
		RespondError(c, http.StatusNotFound, "unknown_command", fmt.Errorf("unknown admin command %q", command))
		return
	}
	if err != nil {
		h.log.Error("admin command failed", "command", command, "error", err)
		RespondError(c, http.StatusInternalServerError, "admin_failed", err)
		return
	}

	if segReply != nil {
		RespondOK(c, gin.H{
			"message": segReply.Message,
			"reply":   segmentsToDTO(segReply.Segments),
		})
		return
	}
	RespondOK(c, gin.H{"message": message})
}
