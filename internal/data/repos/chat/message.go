package chat

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/pkg/dbctx"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

type MessageRepo interface {
	Create(dbc dbctx.Context, rows []*types.ChatMessage) ([]*types.ChatMessage, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ChatMessage, error)
	// ListByThread returns the whole log in replay order (seq ASC).
	ListByThread(dbc dbctx.Context, threadID uuid.UUID) ([]*types.ChatMessage, error)
	// Last returns nil, nil for an empty thread.
	Last(dbc dbctx.Context, threadID uuid.UUID) (*types.ChatMessage, error)
	GetByRunID(dbc dbctx.Context, threadID uuid.UUID, runID string) (*types.ChatMessage, error)
}

type messageRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewMessageRepo(db *gorm.DB, log *logger.Logger) MessageRepo {
	return &messageRepo{db: db, log: log.With("repo", "MessageRepo")}
}

func (r *messageRepo) Create(dbc dbctx.Context, rows []*types.ChatMessage) ([]*types.ChatMessage, error) {
	if len(rows) == 0 {
		return []*types.ChatMessage{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *messageRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ChatMessage, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	var out types.ChatMessage
	if err := dbc.DB(r.db).Where("id = ?", id).Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *messageRepo) ListByThread(dbc dbctx.Context, threadID uuid.UUID) ([]*types.ChatMessage, error) {
	if threadID == uuid.Nil {
		return nil, fmt.Errorf("missing thread_id")
	}
	out := []*types.ChatMessage{}
	if err := dbc.DB(r.db).
		Model(&types.ChatMessage{}).
		Where("thread_id = ?", threadID).
		Order("seq ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *messageRepo) Last(dbc dbctx.Context, threadID uuid.UUID) (*types.ChatMessage, error) {
	if threadID == uuid.Nil {
		return nil, fmt.Errorf("missing thread_id")
	}
	var out types.ChatMessage
	err := dbc.DB(r.db).
		Where("thread_id = ?", threadID).
		Order("seq DESC").
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *messageRepo) GetByRunID(dbc dbctx.Context, threadID uuid.UUID, runID string) (*types.ChatMessage, error) {
	if threadID == uuid.Nil || runID == "" {
		return nil, fmt.Errorf("missing thread_id or run_id")
	}
	var out types.ChatMessage
	err := dbc.DB(r.db).
		Where("thread_id = ? AND remote_run_id = ?", threadID, runID).
		Take(&out).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
