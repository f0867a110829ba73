package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/concierge-backend/internal/data/db"
	chatrepo "github.com/yungbote/concierge-backend/internal/data/repos/chat"
	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/domain/chat"
	"github.com/yungbote/concierge-backend/internal/pkg/dbctx"
	"github.com/yungbote/concierge-backend/internal/platform/apierr"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

const maxMessageLen = 20000

type MessageStore interface {
	Append(ctx context.Context, threadID uuid.UUID, role chat.Role, content string) (*types.ChatMessage, error)
	// AppendReply stores the reply of runID once; a second call returns the stored row.
	AppendReply(ctx context.Context, threadID uuid.UUID, content, runID string) (*types.ChatMessage, error)
	List(ctx context.Context, threadID uuid.UUID) ([]*types.ChatMessage, error)
	Last(ctx context.Context, threadID uuid.UUID) (*types.ChatMessage, error)
	Get(ctx context.Context, threadID, messageID uuid.UUID) (*types.ChatMessage, error)
}

type messageStore struct {
	db       *gorm.DB
	log      *logger.Logger
	threads  chatrepo.ThreadRepo
	messages chatrepo.MessageRepo
	now      func() time.Time
}

func NewMessageStore(
	db *gorm.DB,
	baseLog *logger.Logger,
	threadRepo chatrepo.ThreadRepo,
	messageRepo chatrepo.MessageRepo,
) MessageStore {
	return &messageStore{
		db:       db,
		log:      baseLog.With("service", "MessageStore"),
		threads:  threadRepo,
		messages: messageRepo,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *messageStore) Append(ctx context.Context, threadID uuid.UUID, role chat.Role, content string) (*types.ChatMessage, error) {
	return s.append(ctx, threadID, role, content, "")
}

func (s *messageStore) AppendReply(ctx context.Context, threadID uuid.UUID, content, runID string) (*types.ChatMessage, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return nil, apierr.Validation("missing run id")
	}
	return s.append(ctx, threadID, chat.RoleAssistant, content, runID)
}

func (s *messageStore) append(ctx context.Context, threadID uuid.UUID, role chat.Role, content, runID string) (*types.ChatMessage, error) {
	if threadID == uuid.Nil {
		return nil, apierr.Validation("missing thread id")
	}
	if !role.Valid() {
		return nil, apierr.Validation("unknown role " + string(role))
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apierr.Validation("message content is empty")
	}
	if len(content) > maxMessageLen {
		return nil, apierr.Validation("message too large")
	}

	var out *types.ChatMessage
	err := s.db.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: ctx, Tx: txx}
		// Lock thread for concurrency-safe sequencing.
		th, err := s.threads.LockByID(inner, threadID)
		if err != nil {
			return err
		}
		if runID != "" {
			existing, err := s.messages.GetByRunID(inner, threadID, runID)
			if err != nil {
				return err
			}
			if existing != nil {
				out = existing
				return nil
			}
		}

		// created_at never goes below the previous message so seq and time order agree.
		createdAt := s.now()
		if createdAt.Before(th.LastMessageAt) {
			createdAt = th.LastMessageAt
		}
		msg := &types.ChatMessage{
			ThreadID:    threadID,
			Seq:         th.NextSeq + 1,
			Role:        role,
			Content:     content,
			RemoteRunID: runID,
			CreatedAt:   createdAt,
		}
		if _, err := s.messages.Create(inner, []*types.ChatMessage{msg}); err != nil {
			return err
		}
		if err := s.threads.UpdateFields(inner, threadID, map[string]interface{}{
			"next_seq":        msg.Seq,
			"last_message_at": createdAt,
		}); err != nil {
			return err
		}
		out = msg
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("conversation not available")
	}
	if err != nil {
		return nil, db.MapError("append message", err)
	}
	return out, nil
}

func (s *messageStore) List(ctx context.Context, threadID uuid.UUID) ([]*types.ChatMessage, error) {
	if threadID == uuid.Nil {
		return nil, apierr.Validation("missing thread id")
	}
	rows, err := s.messages.ListByThread(dbctx.Context{Ctx: ctx}, threadID)
	if err != nil {
		return nil, db.MapError("list messages", err)
	}
	return rows, nil
}

func (s *messageStore) Last(ctx context.Context, threadID uuid.UUID) (*types.ChatMessage, error) {
	if threadID == uuid.Nil {
		return nil, apierr.Validation("missing thread id")
	}
	m, err := s.messages.Last(dbctx.Context{Ctx: ctx}, threadID)
	if err != nil {
		return nil, db.MapError("last message", err)
	}
	return m, nil
}

func (s *messageStore) Get(ctx context.Context, threadID, messageID uuid.UUID) (*types.ChatMessage, error) {
	m, err := s.messages.GetByID(dbctx.Context{Ctx: ctx}, messageID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("message not found")
	}
	if err != nil {
		return nil, db.MapError("get message", err)
	}
	if m.ThreadID != threadID {
		return nil, apierr.NotFound("message not found")
	}
	return m, nil
}
