package chat

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/pkg/dbctx"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

type ThreadRepo interface {
	Create(dbc dbctx.Context, rows []*types.ChatThread) ([]*types.ChatThread, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ChatThread, error)
	GetByExternalID(dbc dbctx.Context, externalID string) (*types.ChatThread, error)
	// LatestByUser returns nil, nil when the user has no thread.
	LatestByUser(dbc dbctx.Context, userID uuid.UUID) (*types.ChatThread, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.ChatThread, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.ChatThread, error)
	// Touch moves updated_at forward to at; it never moves it backwards.
	Touch(dbc dbctx.Context, id uuid.UUID, at time.Time) error
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type threadRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewThreadRepo(db *gorm.DB, log *logger.Logger) ThreadRepo {
	return &threadRepo{db: db, log: log.With("repo", "ThreadRepo")}
}

func (r *threadRepo) Create(dbc dbctx.Context, rows []*types.ChatThread) ([]*types.ChatThread, error) {
	if len(rows) == 0 {
		return []*types.ChatThread{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *threadRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ChatThread, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	var out types.ChatThread
	if err := dbc.DB(r.db).Where("id = ?", id).Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *threadRepo) GetByExternalID(dbc dbctx.Context, externalID string) (*types.ChatThread, error) {
	if externalID == "" {
		return nil, fmt.Errorf("missing external_id")
	}
	var out types.ChatThread
	if err := dbc.DB(r.db).Where("external_id = ?", externalID).Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *threadRepo) LatestByUser(dbc dbctx.Context, userID uuid.UUID) (*types.ChatThread, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	var out types.ChatThread
	err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("created_at DESC").
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *threadRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.ChatThread, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	q := dbc.DB(r.db).
		Model(&types.ChatThread{}).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("created_at DESC")
	// limit <= 0 lists every thread the user owns.
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*types.ChatThread
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *threadRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.ChatThread, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockByID requires dbc.Tx")
	}
	var out types.ChatThread
	if err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *threadRepo) Touch(dbc dbctx.Context, id uuid.UUID, at time.Time) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	res := dbc.DB(r.db).
		Model(&types.ChatThread{}).
		Where("id = ? AND updated_at < ?", id, at.UTC()).
		UpdateColumn("updated_at", at.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Either the thread is gone or updated_at is already at/after at.
		var n int64
		if err := dbc.DB(r.db).Model(&types.ChatThread{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

func (r *threadRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	if len(updates) == 0 {
		return nil
	}
	res := dbc.DB(r.db).
		Model(&types.ChatThread{}).
		Where("id = ?", id).
		UpdateColumns(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *threadRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	return dbc.DB(r.db).Transaction(func(txx *gorm.DB) error {
		if err := txx.Where("thread_id = ?", id).Delete(&types.ChatMessage{}).Error; err != nil {
			return err
		}
		res := txx.Where("id = ?", id).Delete(&types.ChatThread{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}
