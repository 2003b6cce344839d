package repos

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ellyeware/idiombot/internal/domain"
	"github.com/ellyeware/idiombot/internal/platform/dbctx"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

type GreylistRepo interface {
	Incr(dbc dbctx.Context, userID, platform string) (int, error)
	Count(dbc dbctx.Context, userID, platform string) (int, error)
	Reset(dbc dbctx.Context, userID, platform string) error
}

type greylistRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGreylistRepo(db *gorm.DB, baseLog *logger.Logger) GreylistRepo {
	return &greylistRepo{db: db, log: baseLog.With("repo", "GreylistRepo")}
}

func (r *greylistRepo) conn(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

// Incr bumps the strike count for a user, creating the entry on first strike,
// and returns the new count.
func (r *greylistRepo) Incr(dbc dbctx.Context, userID, platform string) (int, error) {
	row := &domain.GreylistEntry{
		ID:        uuid.New(),
		UserID:    userID,
		Platform:  platform,
		Count:     1,
		UpdatedAt: time.Now(),
	}
	err := r.conn(dbc).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "platform"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count":      gorm.Expr("greylist.count + 1"),
			"updated_at": time.Now(),
		}),
	}).Create(row).Error
	if err != nil {
		return 0, err
	}
	return r.Count(dbc, userID, platform)
}

func (r *greylistRepo) Count(dbc dbctx.Context, userID, platform string) (int, error) {
	var rows []*domain.GreylistEntry
	err := r.conn(dbc).
		Where("user_id = ? AND platform = ?", userID, platform).
		Limit(1).Find(&rows).Error
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Count, nil
}

func (r *greylistRepo) Reset(dbc dbctx.Context, userID, platform string) error {
	return r.conn(dbc).
		Where("user_id = ? AND platform = ?", userID, platform).
		Delete(&domain.GreylistEntry{}).Error
}
