package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ellyeware/idiombot/internal/clients/telegram"
	"github.com/ellyeware/idiombot/internal/core/ident"
	"github.com/ellyeware/idiombot/internal/data/index"
	"github.com/ellyeware/idiombot/internal/data/repos"
	"github.com/ellyeware/idiombot/internal/domain"
	"github.com/ellyeware/idiombot/internal/platform/dbctx"
	"github.com/ellyeware/idiombot/internal/platform/logger"
	"github.com/ellyeware/idiombot/internal/platform/xerrors"
)

const pendingListLimit = 10

// AdminService executes moderation commands. Every method returns the chat
// reply text; ambiguous or unknown short IDs come back as replies, not errors.
type AdminService interface {
	Delete(ctx context.Context, shortID, scope string) (string, error)
	Approve(ctx context.Context, shortID, scope string) (string, error)
	Reject(ctx context.Context, shortID, scope string) (string, error)
	AddTags(ctx context.Context, shortID, scope string, tags []string) (string, error)
	SetTags(ctx context.Context, shortID, scope string, tags []string) (string, error)
	SetComment(ctx context.Context, shortID, scope string, comments []string) (string, error)
	SetCatalogue(ctx context.Context, shortID, scope string, names []string) (string, error)
	ReOCR(ctx context.Context, shortID, scope string) (string, error)
	Pending(ctx context.Context) (*SearchReply, error)
	Stats(ctx context.Context) (string, error)
	Random(ctx context.Context) (*SearchReply, error)
}

type adminService struct {
	log        *logger.Logger
	idioms     repos.IdiomRepo
	greylist   repos.GreylistRepo
	idx        SearchIndex
	images     ImageStore
	ocr        OCRClient
	relay      telegram.Relay
	catalogues CatalogueService
	hashes     ident.HashIndex
}

func NewAdminService(
	idioms repos.IdiomRepo,
	greylist repos.GreylistRepo,
	idx SearchIndex,
	images ImageStore,
	ocr OCRClient,
	relay telegram.Relay,
	catalogues CatalogueService,
	log *logger.Logger,
) AdminService {
	return &adminService{
		log:        log.With("service", "bot.AdminService"),
		idioms:     idioms,
		greylist:   greylist,
		idx:        idx,
		images:     images,
		ocr:        ocr,
		relay:      relay,
		catalogues: catalogues,
		hashes:     NewStoreAdapter(idioms),
	}
}

// resolve maps a short ID to the unique full hash. A non-empty reply means
// resolution failed in a user-visible way and the command should stop.
func (s *adminService) resolve(ctx context.Context, shortID, scope string) (hash, reply string, err error) {
	hash, err = ident.Extend(ctx, s.hashes, shortID, scope)
	if err == nil {
		return hash, "", nil
	}
	var notFound *ident.NotFoundError
	if errors.As(err, &notFound) {
		return "", fmt.Sprintf("未找到ID为 %s 的图片。", shortID), nil
	}
	var conflict *ident.ConflictError
	if errors.As(err, &conflict) {
		shorts := make([]string, 0, len(conflict.Hashes))
		for _, h := range conflict.Hashes {
			shorts = append(shorts, ident.Shorten(h))
		}
		return "", fmt.Sprintf("ID %s 不明确，匹配到多张图片：%s。请输入更长的前缀。", shortID, strings.Join(shorts, " ")), nil
	}
	return "", "", err
}

func (s *adminService) Delete(ctx context.Context, shortID, scope string) (string, error) {
	hash, reply, err := s.resolve(ctx, shortID, scope)
	if err != nil || reply != "" {
		return reply, err
	}
	row, err := s.idioms.GetByImageHash(dbctx.New(ctx), hash)
	if err != nil {
		return "", fmt.Errorf("load idiom %s: %w", hash, err)
	}
	if row == nil {
		return fmt.Sprintf("未找到ID为 %s 的图片。", shortID), nil
	}
	if err := s.images.DeleteFile(ctx, row.Filename()); err != nil {
		// keep going; the record is what users can reach
		s.log.Warn("image delete failed", "filename", row.Filename(), "error", err)
	}
	if err := s.idioms.DeleteByImageHash(dbctx.New(ctx), hash); err != nil {
		return "", fmt.Errorf("delete idiom %s: %w", hash, err)
	}
	if err := s.idx.Delete(hash); err != nil {
		s.log.Warn("index delete failed", "image_hash", hash, "error", err)
	}
	s.log.Info("idiom deleted", "image_hash", hash)
	return "已删除。", nil
}

func (s *adminService) Approve(ctx context.Context, shortID, scope string) (string, error) {
	hash, reply, err := s.resolve(ctx, shortID, scope)
	if err != nil || reply != "" {
		return reply, err
	}
	row, err := s.idioms.GetByImageHash(dbctx.New(ctx), hash)
	if err != nil {
		return "", fmt.Errorf("load idiom %s: %w", hash, err)
	}
	if row == nil {
		return fmt.Sprintf("未找到ID为 %s 的图片。", shortID), nil
	}
	if !row.UnderReview {
		return "该图片无需审核。", nil
	}
	if err := s.idioms.SetUnderReview(dbctx.New(ctx), hash, false); err != nil {
		return "", fmt.Errorf("approve idiom %s: %w", hash, err)
	}
	row.UnderReview = false
	s.reindex(row)

	if s.relay != nil {
		if data, err := s.images.DownloadFile(ctx, row.Filename()); err == nil {
			uploader := row.Uploader.Data()
			caption := relayCaption(row.Tags, uploader)
			if err := s.relay.SendPhoto(ctx, false, caption, row.Filename(), data); err != nil {
				s.log.Warn("public relay failed", "image_hash", hash, "error", err)
			}
		} else {
			s.log.Warn("image download for relay failed", "image_hash", hash, "error", err)
		}
	}
	return "已通过审核。", nil
}

func (s *adminService) Reject(ctx context.Context, shortID, scope string) (string, error) {
	hash, reply, err := s.resolve(ctx, shortID, scope)
	if err != nil || reply != "" {
		return reply, err
	}
	row, err := s.idioms.GetByImageHash(dbctx.New(ctx), hash)
	if err != nil {
		return "", fmt.Errorf("load idiom %s: %w", hash, err)
	}
	if row == nil {
		return fmt.Sprintf("未找到ID为 %s 的图片。", shortID), nil
	}
	if !row.UnderReview {
		return "该图片已通过审核，请使用删除。", nil
	}

	if err := s.images.DeleteFile(ctx, row.Filename()); err != nil {
		s.log.Warn("image delete failed", "filename", row.Filename(), "error", err)
	}
	if err := s.idioms.DeleteByImageHash(dbctx.New(ctx), hash); err != nil {
		return "", fmt.Errorf("delete idiom %s: %w", hash, err)
	}
	if err := s.idx.Delete(hash); err != nil {
		s.log.Warn("index delete failed", "image_hash", hash, "error", err)
	}

	uploader := row.Uploader.Data()
	if uploader.ID != "" {
		count, err := s.greylist.Incr(dbctx.New(ctx), uploader.ID, uploader.Platform)
		if err != nil {
			s.log.Warn("greylist strike failed", "user_id", uploader.ID, "error", err)
		} else {
			s.log.Info("greylist strike recorded", "user_id", uploader.ID, "count", count)
		}
	}
	return "已拒绝。", nil
}

func (s *adminService) AddTags(ctx context.Context, shortID, scope string, tags []string) (string, error) {
	return s.mutateTags(ctx, shortID, scope, tags, true)
}

func (s *adminService) SetTags(ctx context.Context, shortID, scope string, tags []string) (string, error) {
	return s.mutateTags(ctx, shortID, scope, tags, false)
}

func (s *adminService) mutateTags(ctx context.Context, shortID, scope string, tags []string, merge bool) (string, error) {
	if len(tags) == 0 {
		return "请输入标签。", nil
	}
	hash, reply, err := s.resolve(ctx, shortID, scope)
	if err != nil || reply != "" {
		return reply, err
	}
	if merge {
		err = s.idioms.AddTags(dbctx.New(ctx), hash, tags)
	} else {
		err = s.idioms.SetTags(dbctx.New(ctx), hash, tags)
	}
	if errors.Is(err, xerrors.ErrNotFound) {
		// deleted between resolution and update
		return fmt.Sprintf("未找到ID为 %s 的图片。", shortID), nil
	}
	if err != nil {
		return "", fmt.Errorf("update tags %s: %w", hash, err)
	}
	if row, err := s.idioms.GetByImageHash(dbctx.New(ctx), hash); err == nil && row != nil {
		s.reindex(row)
	}
	return "已更新标签。", nil
}

func (s *adminService) SetComment(ctx context.Context, shortID, scope string, comments []string) (string, error) {
	hash, reply, err := s.resolve(ctx, shortID, scope)
	if err != nil || reply != "" {
		return reply, err
	}
	if err := s.idioms.SetComment(dbctx.New(ctx), hash, comments); err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return fmt.Sprintf("未找到ID为 %s 的图片。", shortID), nil
		}
		return "", fmt.Errorf("update comment %s: %w", hash, err)
	}
	return "已更新备注。", nil
}

func (s *adminService) SetCatalogue(ctx context.Context, shortID, scope string, names []string) (string, error) {
	if len(names) == 0 {
		return "请输入分类。", nil
	}
	resolver := s.catalogues.Resolver()
	ids := make([]string, 0, len(names))
	for _, name := range names {
		id, ok := resolver.ResolveAlias(name)
		if !ok {
			return fmt.Sprintf("未知分类：%s。", name), nil
		}
		ids = append(ids, id)
	}

	hash, reply, err := s.resolve(ctx, shortID, scope)
	if err != nil || reply != "" {
		return reply, err
	}
	if err := s.idioms.SetCatalogue(dbctx.New(ctx), hash, ids); err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return fmt.Sprintf("未找到ID为 %s 的图片。", shortID), nil
		}
		return "", fmt.Errorf("update catalogue %s: %w", hash, err)
	}
	return "已更新分类。", nil
}

// ReOCR re-runs text recognition over the stored image and replaces the
// indexed OCR text. Useful after recognition quality improves.
func (s *adminService) ReOCR(ctx context.Context, shortID, scope string) (string, error) {
	hash, reply, err := s.resolve(ctx, shortID, scope)
	if err != nil || reply != "" {
		return reply, err
	}
	row, err := s.idioms.GetByImageHash(dbctx.New(ctx), hash)
	if err != nil {
		return "", fmt.Errorf("load idiom %s: %w", hash, err)
	}
	if row == nil {
		return fmt.Sprintf("未找到ID为 %s 的图片。", shortID), nil
	}
	data, err := s.images.DownloadFile(ctx, row.Filename())
	if err != nil {
		return "", fmt.Errorf("download image %s: %w", row.Filename(), err)
	}
	ocrText, err := s.ocr.TextFragments(ctx, data)
	if err != nil {
		return fmt.Sprintf("图片 %s 文字识别失败。", shortID), nil
	}
	if err := s.idioms.SetOCRText(dbctx.New(ctx), hash, ocrText); err != nil {
		return "", fmt.Errorf("update ocr text %s: %w", hash, err)
	}
	row.OCRText = ocrText
	s.reindex(row)
	return "已更新文字识别结果。", nil
}

func (s *adminService) Pending(ctx context.Context) (*SearchReply, error) {
	rows, err := s.idioms.UnderReview(dbctx.New(ctx), pendingListLimit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	if len(rows) == 0 {
		return &SearchReply{Message: "当前没有待审核的投稿。"}, nil
	}
	out := make([]domain.Segment, 0, 2*len(rows))
	for _, row := range rows {
		uploader := row.Uploader.Data()
		out = append(out, domain.ImageSegment{URL: s.images.GetPublicURL(row.Filename())})
		out = append(out, domain.TextSegment{Text: fmt.Sprintf(
			"ID：%s\n标签：%s\n投稿人：%s(%s)\n",
			ident.Shorten(row.ImageHash),
			strings.Join(row.Tags, " "),
			uploader.Nickname, uploader.ID,
		)})
	}
	return &SearchReply{Segments: out}, nil
}

func (s *adminService) Stats(ctx context.Context) (string, error) {
	reviewed, err := s.idioms.CountReviewed(dbctx.New(ctx))
	if err != nil {
		return "", fmt.Errorf("count reviewed: %w", err)
	}
	pending, err := s.idioms.CountUnderReview(dbctx.New(ctx))
	if err != nil {
		return "", fmt.Errorf("count pending: %w", err)
	}
	ranks, err := s.idioms.UploaderRank(dbctx.New(ctx))
	if err != nil {
		return "", fmt.Errorf("uploader rank: %w", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("已收录：%d\n待审核：%d\n", reviewed, pending))
	if len(ranks) > 0 {
		sb.WriteString("投稿排行：\n")
		for i, r := range ranks {
			if i >= 10 {
				break
			}
			sb.WriteString(fmt.Sprintf("%d. %s：%d\n", i+1, r.UploaderID, r.Count))
		}
	}
	return sb.String(), nil
}

func (s *adminService) Random(ctx context.Context) (*SearchReply, error) {
	row, err := s.idioms.Random(dbctx.New(ctx))
	if err != nil {
		return nil, fmt.Errorf("random idiom: %w", err)
	}
	if row == nil {
		return &SearchReply{Message: "图库是空的。"}, nil
	}
	return &SearchReply{Segments: []domain.Segment{
		domain.ImageSegment{URL: s.images.GetPublicURL(row.Filename())},
		domain.TextSegment{Text: fmt.Sprintf("ID：%s\n标签：%s\n", ident.Shorten(row.ImageHash), strings.Join(row.Tags, " "))},
	}}, nil
}

func (s *adminService) reindex(row *domain.Idiom) {
	if err := s.idx.Upsert(index.Doc{
		ImageHash:   row.ImageHash,
		Tags:        row.Tags,
		OCRText:     row.OCRText,
		UnderReview: row.UnderReview,
	}); err != nil {
		s.log.Warn("index upsert failed", "image_hash", row.ImageHash, "error", err)
	}
}
