package repos

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ellyeware/idiombot/internal/domain"
	"github.com/ellyeware/idiombot/internal/platform/dbctx"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

type CatalogueRepo interface {
	All(dbc dbctx.Context) ([]*domain.Catalogue, error)
	GetByID(dbc dbctx.Context, id string) (*domain.Catalogue, error)
	Upsert(dbc dbctx.Context, row *domain.Catalogue) error
	Delete(dbc dbctx.Context, id string) error
}

type catalogueRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCatalogueRepo(db *gorm.DB, baseLog *logger.Logger) CatalogueRepo {
	return &catalogueRepo{db: db, log: baseLog.With("repo", "CatalogueRepo")}
}

func (r *catalogueRepo) conn(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

// All returns every catalogue in display order.
func (r *catalogueRepo) All(dbc dbctx.Context) ([]*domain.Catalogue, error) {
	var rows []*domain.Catalogue
	if err := r.conn(dbc).Order("position, id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *catalogueRepo) GetByID(dbc dbctx.Context, id string) (*domain.Catalogue, error) {
	var rows []*domain.Catalogue
	if err := r.conn(dbc).Where("id = ?", id).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *catalogueRepo) Upsert(dbc dbctx.Context, row *domain.Catalogue) error {
	return r.conn(dbc).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"aliases", "position"}),
	}).Create(row).Error
}

func (r *catalogueRepo) Delete(dbc dbctx.Context, id string) error {
	return r.conn(dbc).Where("id = ?", id).Delete(&domain.Catalogue{}).Error
}
