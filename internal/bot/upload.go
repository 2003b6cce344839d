package bot

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/h2non/filetype"
	"github.com/zeebo/xxh3"
	"gorm.io/datatypes"

	"github.com/ellyeware/idiombot/internal/clients/fetch"
	"github.com/ellyeware/idiombot/internal/clients/telegram"
	"github.com/ellyeware/idiombot/internal/core/argparse"
	"github.com/ellyeware/idiombot/internal/core/ident"
	"github.com/ellyeware/idiombot/internal/data/index"
	"github.com/ellyeware/idiombot/internal/data/repos"
	"github.com/ellyeware/idiombot/internal/domain"
	"github.com/ellyeware/idiombot/internal/platform/dbctx"
	"github.com/ellyeware/idiombot/internal/platform/envutil"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

const (
	maxImageBytes      = 10 * 1024 * 1024
	maxImagesPerUpload = 10
	maxCaptionRunes    = 100

	uploadRateLimit  = 10
	uploadRateWindow = time.Minute
)

type UploadRequest struct {
	Segments []domain.Segment
	Sender   domain.Uploader
}

// UploadReply is rendered verbatim as the chat response. StoredHashes carries
// the full hashes of everything actually persisted.
type UploadReply struct {
	Message      string
	StoredHashes []string
	UnderReview  bool
}

type UploadService interface {
	Upload(ctx context.Context, req UploadRequest) (*UploadReply, error)
}

type uploadService struct {
	log        *logger.Logger
	idioms     repos.IdiomRepo
	idx        SearchIndex
	images     ImageStore
	ocr        OCRClient
	fetcher    fetch.Fetcher
	relay      telegram.Relay
	deduper    Deduper
	catalogues CatalogueService
	limiter    Limiter
	whitelist  Whitelist

	defaultCatalogue string
	reviewAll        bool
}

// NewUploadService wires the upload intake. relay and limiter may be nil;
// relaying and throttling are then skipped.
func NewUploadService(
	idioms repos.IdiomRepo,
	idx SearchIndex,
	images ImageStore,
	ocr OCRClient,
	fetcher fetch.Fetcher,
	relay telegram.Relay,
	deduper Deduper,
	catalogues CatalogueService,
	limiter Limiter,
	whitelist Whitelist,
	log *logger.Logger,
) UploadService {
	return &uploadService{
		log:              log.With("service", "bot.UploadService"),
		idioms:           idioms,
		idx:              idx,
		images:           images,
		ocr:              ocr,
		fetcher:          fetcher,
		relay:            relay,
		deduper:          deduper,
		catalogues:       catalogues,
		limiter:          limiter,
		whitelist:        whitelist,
		defaultCatalogue: envutil.GetEnv("EI_DEFAULT_CATALOGUE", "怡宝", log),
		reviewAll:        envutil.GetEnvAsBool("EI_REVIEW_ALL", false, log),
	}
}

func (s *uploadService) Upload(ctx context.Context, req UploadRequest) (*UploadReply, error) {
	var urls []string
	for _, seg := range req.Segments {
		if img, ok := seg.(domain.ImageSegment); ok {
			urls = append(urls, img.URL)
		}
	}
	if len(urls) == 0 {
		return &UploadReply{Message: "仅接受图片投稿。"}, nil
	}
	if len(urls) > maxImagesPerUpload {
		return &UploadReply{Message: "一次最多上传10张图片。"}, nil
	}

	whitelisted := s.whitelist.Allows(req.Sender.ID)
	underReview := !whitelisted || s.reviewAll

	if s.limiter != nil && !whitelisted {
		allowed, err := s.limiter.Hit(ctx, "upload", req.Sender.ID, uploadRateLimit, uploadRateWindow)
		if err != nil {
			s.log.Warn("rate limiter unavailable, allowing upload", "user_id", req.Sender.ID, "error", err)
		} else if !allowed {
			return &UploadReply{Message: "操作过于频繁，请稍后再试。"}, nil
		}
	}

	parsed := argparse.Parse(req.Segments, s.catalogues.Resolver(), argparse.Options{
		DefaultCatalogue: s.defaultCatalogue,
	})
	if utf8.RuneCountInString(strings.Join(parsed.Tags, " ")) > maxCaptionRunes {
		return &UploadReply{Message: "标签过长。"}, nil
	}

	var warnings strings.Builder
	for _, name := range parsed.UnresolvedCatalogues {
		warnings.WriteString(fmt.Sprintf("未知分类：%s。\n", name))
	}

	var stored []string
	var photos []telegram.Photo
	for _, url := range urls {
		hash, photo, err := s.storeOne(ctx, url, parsed, req.Sender, underReview, &warnings)
		if err != nil {
			return nil, err
		}
		if hash == "" {
			continue
		}
		stored = append(stored, hash)
		photos = append(photos, photo)
	}

	if len(stored) == 0 {
		msg := warnings.String()
		if msg == "" {
			msg = "没有可收录的图片。"
		}
		return &UploadReply{Message: msg, UnderReview: underReview}, nil
	}

	if dupMsg := s.deduper.Check(ctx, stored...); dupMsg != "" {
		warnings.WriteString(dupMsg)
	}

	if s.relay != nil {
		caption := relayCaption(parsed.Tags, req.Sender)
		var err error
		if len(photos) == 1 {
			err = s.relay.SendPhoto(ctx, underReview, caption, photos[0].Filename, photos[0].Data)
		} else {
			err = s.relay.SendAlbum(ctx, underReview, caption, photos)
		}
		if err != nil {
			s.log.Warn("telegram relay failed", "error", err)
			warnings.WriteString("投稿失败，可能是Telegram端出现问题。\n")
		}
	}

	shortIDs := make([]string, 0, len(stored))
	for _, hash := range stored {
		shortIDs = append(shortIDs, ident.Shorten(hash))
	}
	okQuote := "上传成功。"
	if underReview {
		okQuote = "上传成功，请等待审核。"
	}
	msg := warnings.String() + fmt.Sprintf("收录ID：%s\n%s", strings.Join(shortIDs, " "), okQuote)

	return &UploadReply{Message: msg, StoredHashes: stored, UnderReview: underReview}, nil
}

// storeOne persists a single image. A "" hash with nil error means the image
// was skipped and the reason already written to warnings.
func (s *uploadService) storeOne(ctx context.Context, url string, parsed argparse.Parsed, sender domain.Uploader, underReview bool, warnings *strings.Builder) (string, telegram.Photo, error) {
	data, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		s.log.Warn("image download failed", "url", url, "error", err)
		warnings.WriteString("有图片下载失败，已跳过。\n")
		return "", telegram.Photo{}, nil
	}
	if len(data) > maxImageBytes {
		warnings.WriteString("有图片超过大小限制，已跳过。\n")
		return "", telegram.Photo{}, nil
	}

	hash := fmt.Sprintf("%016x", xxh3.Hash(data))
	exists, err := s.idioms.ExistsByImageHash(dbctx.New(ctx), hash)
	if err != nil {
		return "", telegram.Photo{}, fmt.Errorf("existence check: %w", err)
	}
	if exists {
		warnings.WriteString(fmt.Sprintf("图片 %s 已存在。\n", ident.Shorten(hash)))
		return "", telegram.Photo{}, nil
	}

	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		warnings.WriteString("有图片格式无法识别，已跳过。\n")
		return "", telegram.Photo{}, nil
	}
	ext := kind.Extension

	ocrText, ocrErr := s.ocr.TextFragments(ctx, data)
	if ocrErr != nil {
		s.log.Warn("ocr failed", "image_hash", hash, "error", ocrErr)
		warnings.WriteString(fmt.Sprintf("图片 %s 文字识别失败。\n", ident.Shorten(hash)))
		ocrText = nil
	}
	// An image with neither OCR text nor tags can never be found again.
	if ocrErr == nil && len(ocrText) == 0 && len(parsed.Tags) == 0 {
		warnings.WriteString("有图片无法识别内容且未提供标签，已跳过。\n")
		return "", telegram.Photo{}, nil
	}

	filename := hash + "." + ext
	if err := s.images.UploadFile(ctx, filename, bytes.NewReader(data)); err != nil {
		return "", telegram.Photo{}, fmt.Errorf("store image %s: %w", filename, err)
	}

	row := &domain.Idiom{
		ImageHash:   hash,
		ImageExt:    ext,
		Tags:        datatypes.NewJSONSlice(parsed.Tags),
		OCRText:     datatypes.NewJSONSlice(ocrText),
		Catalogue:   datatypes.NewJSONSlice(parsed.Catalogues),
		Comment:     datatypes.NewJSONSlice(parsed.Comments),
		Uploader:    datatypes.NewJSONType(sender),
		UnderReview: underReview,
	}
	if err := s.idioms.Create(dbctx.New(ctx), row); err != nil {
		return "", telegram.Photo{}, fmt.Errorf("persist idiom %s: %w", hash, err)
	}
	if err := s.idx.Upsert(index.Doc{
		ImageHash:   hash,
		Tags:        parsed.Tags,
		OCRText:     ocrText,
		UnderReview: underReview,
	}); err != nil {
		// store of record is already written; index catches up on reindex
		s.log.Warn("index upsert failed", "image_hash", hash, "error", err)
	}

	s.log.Info("idiom stored", "image_hash", hash, "ext", ext, "under_review", underReview)
	return hash, telegram.Photo{Filename: filename, Data: data}, nil
}

func relayCaption(tags []string, sender domain.Uploader) string {
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		parts = append(parts, "#"+t)
	}
	return fmt.Sprintf("%s\n投稿人：%s(%s)", strings.Join(parts, " "), sender.Nickname, sender.ID)
}
