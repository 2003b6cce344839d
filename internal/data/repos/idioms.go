package repos

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ellyeware/idiombot/internal/domain"
	"github.com/ellyeware/idiombot/internal/platform/dbctx"
	"github.com/ellyeware/idiombot/internal/platform/logger"
	"github.com/ellyeware/idiombot/internal/platform/xerrors"
)

type IdiomRepo interface {
	Create(dbc dbctx.Context, row *domain.Idiom) error
	GetByImageHash(dbc dbctx.Context, imageHash string) (*domain.Idiom, error)
	ExistsByImageHash(dbc dbctx.Context, imageHash string) (bool, error)
	HashesByPrefix(dbc dbctx.Context, prefix string) ([]string, error)
	ByCatalogue(dbc dbctx.Context, catalogueIDs []string) ([]*domain.Idiom, error)
	ByComment(dbc dbctx.Context, comments []string) ([]*domain.Idiom, error)
	OCRTextByHash(dbc dbctx.Context, imageHash string) ([]string, error)

	AddTags(dbc dbctx.Context, imageHash string, tags []string) error
	SetTags(dbc dbctx.Context, imageHash string, tags []string) error
	SetComment(dbc dbctx.Context, imageHash string, comments []string) error
	SetCatalogue(dbc dbctx.Context, imageHash string, catalogueIDs []string) error
	SetOCRText(dbc dbctx.Context, imageHash string, ocrText []string) error
	SetUnderReview(dbc dbctx.Context, imageHash string, underReview bool) error
	DeleteByImageHash(dbc dbctx.Context, imageHash string) error

	Latest(dbc dbctx.Context, limit int) ([]*domain.Idiom, error)
	UnderReview(dbc dbctx.Context, limit int) ([]*domain.Idiom, error)
	CountUnderReview(dbc dbctx.Context) (int64, error)
	CountReviewed(dbc dbctx.Context) (int64, error)
	Random(dbc dbctx.Context) (*domain.Idiom, error)
	UploaderRank(dbc dbctx.Context) ([]domain.UploaderCount, error)
}

type idiomRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewIdiomRepo(db *gorm.DB, baseLog *logger.Logger) IdiomRepo {
	return &idiomRepo{db: db, log: baseLog.With("repo", "IdiomRepo")}
}

func (r *idiomRepo) conn(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *idiomRepo) Create(dbc dbctx.Context, row *domain.Idiom) error {
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	return r.conn(dbc).Create(row).Error
}

func (r *idiomRepo) GetByImageHash(dbc dbctx.Context, imageHash string) (*domain.Idiom, error) {
	var rows []*domain.Idiom
	if err := r.conn(dbc).Where("image_hash = ?", imageHash).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *idiomRepo) ExistsByImageHash(dbc dbctx.Context, imageHash string) (bool, error) {
	var count int64
	if err := r.conn(dbc).Model(&domain.Idiom{}).Where("image_hash = ?", imageHash).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *idiomRepo) HashesByPrefix(dbc dbctx.Context, prefix string) ([]string, error) {
	if prefix == "" {
		return nil, nil
	}
	var hashes []string
	err := r.conn(dbc).Model(&domain.Idiom{}).
		Where("image_hash LIKE ?", escapeLike(prefix)+"%").
		Order("image_hash").
		Pluck("image_hash", &hashes).Error
	if err != nil {
		return nil, err
	}
	return hashes, nil
}

func (r *idiomRepo) ByCatalogue(dbc dbctx.Context, catalogueIDs []string) ([]*domain.Idiom, error) {
	if len(catalogueIDs) == 0 {
		return nil, nil
	}
	var rows []*domain.Idiom
	cond, args := r.jsonMemberCondition("catalogue", catalogueIDs)
	if err := r.conn(dbc).Where(cond, args...).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *idiomRepo) ByComment(dbc dbctx.Context, comments []string) ([]*domain.Idiom, error) {
	if len(comments) == 0 {
		return nil, nil
	}
	var rows []*domain.Idiom
	cond, args := r.jsonMemberCondition("comment", comments)
	if err := r.conn(dbc).Where(cond, args...).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *idiomRepo) OCRTextByHash(dbc dbctx.Context, imageHash string) ([]string, error) {
	row, err := r.GetByImageHash(dbc, imageHash)
	if err != nil || row == nil {
		return nil, err
	}
	return row.OCRText, nil
}

func (r *idiomRepo) AddTags(dbc dbctx.Context, imageHash string, tags []string) error {
	row, err := r.GetByImageHash(dbc, imageHash)
	if err != nil {
		return err
	}
	if row == nil {
		return fmt.Errorf("idiom %s: %w", imageHash, xerrors.ErrNotFound)
	}
	seen := make(map[string]struct{}, len(row.Tags))
	merged := append([]string(nil), row.Tags...)
	for _, t := range row.Tags {
		seen[t] = struct{}{}
	}
	for _, t := range tags {
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			merged = append(merged, t)
		}
	}
	return r.SetTags(dbc, imageHash, merged)
}

func (r *idiomRepo) SetTags(dbc dbctx.Context, imageHash string, tags []string) error {
	return r.updateColumn(dbc, imageHash, "tags", tags)
}

func (r *idiomRepo) SetComment(dbc dbctx.Context, imageHash string, comments []string) error {
	return r.updateColumn(dbc, imageHash, "comment", comments)
}

func (r *idiomRepo) SetCatalogue(dbc dbctx.Context, imageHash string, catalogueIDs []string) error {
	return r.updateColumn(dbc, imageHash, "catalogue", catalogueIDs)
}

func (r *idiomRepo) SetOCRText(dbc dbctx.Context, imageHash string, ocrText []string) error {
	return r.updateColumn(dbc, imageHash, "ocr_text", ocrText)
}

func (r *idiomRepo) updateColumn(dbc dbctx.Context, imageHash, column string, values []string) error {
	if values == nil {
		values = []string{}
	}
	res := r.conn(dbc).Model(&domain.Idiom{}).
		Where("image_hash = ?", imageHash).
		Updates(map[string]interface{}{
			column:       datatypes.NewJSONSlice(values),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("idiom %s: %w", imageHash, xerrors.ErrNotFound)
	}
	return nil
}

func (r *idiomRepo) SetUnderReview(dbc dbctx.Context, imageHash string, underReview bool) error {
	return r.conn(dbc).Model(&domain.Idiom{}).
		Where("image_hash = ?", imageHash).
		Updates(map[string]interface{}{
			"under_review": underReview,
			"updated_at":   time.Now(),
		}).Error
}

func (r *idiomRepo) DeleteByImageHash(dbc dbctx.Context, imageHash string) error {
	return r.conn(dbc).Where("image_hash = ?", imageHash).Delete(&domain.Idiom{}).Error
}

func (r *idiomRepo) Latest(dbc dbctx.Context, limit int) ([]*domain.Idiom, error) {
	var rows []*domain.Idiom
	if err := r.conn(dbc).Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *idiomRepo) UnderReview(dbc dbctx.Context, limit int) ([]*domain.Idiom, error) {
	var rows []*domain.Idiom
	if err := r.conn(dbc).Where("under_review = ?", true).Order("created_at").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *idiomRepo) CountUnderReview(dbc dbctx.Context) (int64, error) {
	return r.countByReview(dbc, true)
}

func (r *idiomRepo) CountReviewed(dbc dbctx.Context) (int64, error) {
	return r.countByReview(dbc, false)
}

func (r *idiomRepo) countByReview(dbc dbctx.Context, underReview bool) (int64, error) {
	var count int64
	err := r.conn(dbc).Model(&domain.Idiom{}).Where("under_review = ?", underReview).Count(&count).Error
	return count, err
}

func (r *idiomRepo) Random(dbc dbctx.Context) (*domain.Idiom, error) {
	var rows []*domain.Idiom
	if err := r.conn(dbc).Order("random()").Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *idiomRepo) UploaderRank(dbc dbctx.Context) ([]domain.UploaderCount, error) {
	idExpr := "json_extract(uploader, '$.id')"
	platformExpr := "json_extract(uploader, '$.platform')"
	if r.dialect() == "postgres" {
		idExpr = "uploader::jsonb ->> 'id'"
		platformExpr = "uploader::jsonb ->> 'platform'"
	}
	var out []domain.UploaderCount
	err := r.conn(dbc).Model(&domain.Idiom{}).
		Select(idExpr+" AS uploader_id, COUNT(*) AS count").
		Where("under_review = ?", false).
		Where(platformExpr+" = ?", "qq").
		Group(idExpr).
		Order("count DESC").
		Scan(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *idiomRepo) dialect() string {
	return r.db.Dialector.Name()
}

// jsonMemberCondition builds "any of these values is a member of the JSON
// array column". Column names come from internal constants only.
func (r *idiomRepo) jsonMemberCondition(column string, values []string) (string, []interface{}) {
	clauses := make([]string, 0, len(values))
	args := make([]interface{}, 0, len(values))
	for _, v := range values {
		if r.dialect() == "postgres" {
			clauses = append(clauses, fmt.Sprintf("%s::jsonb @> ?", column))
			args = append(args, mustJSON([]string{v}))
		} else {
			clauses = append(clauses, fmt.Sprintf("EXISTS (SELECT 1 FROM json_each(idioms.%s) je WHERE je.value = ?)", column))
			args = append(args, v)
		}
	}
	return strings.Join(clauses, " OR "), args
}

func mustJSON(values []string) string {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		// a []string cannot fail to marshal
		panic(err)
	}
	return string(b)
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
