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
	"github.com/yungbote/concierge-backend/internal/platform/assistant"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

const maxTitleLen = 200

type ThreadStore interface {
	// GetOrCreate returns the user's most recently updated thread, minting a remote one when none exists.
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*types.ChatThread, error)
	Create(ctx context.Context, userID uuid.UUID, title string) (*types.ChatThread, error)
	List(ctx context.Context, userID uuid.UUID) ([]*types.ChatThread, error)
	Get(ctx context.Context, threadID, userID uuid.UUID) (*types.ChatThread, error)
	GetByExternalID(ctx context.Context, externalID string, userID uuid.UUID) (*types.ChatThread, error)
	// Lookup skips the ownership check; only staff paths may call it.
	Lookup(ctx context.Context, threadID uuid.UUID) (*types.ChatThread, error)
	Rename(ctx context.Context, userID, threadID uuid.UUID, title string) (*types.ChatThread, error)
	Delete(ctx context.Context, userID, threadID uuid.UUID) error
	Touch(ctx context.Context, userID, threadID uuid.UUID, at time.Time) error
	SetActiveRun(ctx context.Context, userID, threadID uuid.UUID, runID string) error
	SetUndelivered(ctx context.Context, userID, threadID uuid.UUID, messageID *uuid.UUID) error
}

type threadStore struct {
	log     *logger.Logger
	threads chatrepo.ThreadRepo
	gateway assistant.Gateway
	cache   ThreadListCache
	notify  ChatNotifier
	now     func() time.Time
}

func NewThreadStore(
	baseLog *logger.Logger,
	threadRepo chatrepo.ThreadRepo,
	gateway assistant.Gateway,
	cache ThreadListCache,
	notify ChatNotifier,
) ThreadStore {
	if cache == nil {
		cache = NewNoopThreadCache()
	}
	return &threadStore{
		log:     baseLog.With("service", "ThreadStore"),
		threads: threadRepo,
		gateway: gateway,
		cache:   cache,
		notify:  notify,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *threadStore) GetOrCreate(ctx context.Context, userID uuid.UUID) (*types.ChatThread, error) {
	if userID == uuid.Nil {
		return nil, apierr.Validation("missing user id")
	}
	latest, err := s.threads.LatestByUser(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, db.MapError("latest thread", err)
	}
	if latest != nil {
		return latest, nil
	}
	return s.create(ctx, userID, "")
}

func (s *threadStore) Create(ctx context.Context, userID uuid.UUID, title string) (*types.ChatThread, error) {
	if userID == uuid.Nil {
		return nil, apierr.Validation("missing user id")
	}
	title = strings.TrimSpace(title)
	if len(title) > maxTitleLen {
		return nil, apierr.Validation("title too long")
	}
	return s.create(ctx, userID, title)
}

func (s *threadStore) create(ctx context.Context, userID uuid.UUID, title string) (*types.ChatThread, error) {
	// The remote id is minted first; no local row exists without one.
	externalID, err := s.gateway.CreateThread(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if title == "" {
		title = chat.DefaultTitle(now)
	}
	thread := &types.ChatThread{
		UserID:        userID,
		ExternalID:    externalID,
		Title:         title,
		LastMessageAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	created, err := s.threads.Create(dbctx.Context{Ctx: ctx}, []*types.ChatThread{thread})
	if err != nil {
		return nil, db.MapError("create thread", err)
	}
	s.cache.Invalidate(ctx, userID)
	s.log.Info("Thread created", "thread_id", thread.ID, "user_id", userID)
	if s.notify != nil {
		s.notify.ThreadCreated(userID, created[0])
	}
	return created[0], nil
}

func (s *threadStore) List(ctx context.Context, userID uuid.UUID) ([]*types.ChatThread, error) {
	if userID == uuid.Nil {
		return nil, apierr.Validation("missing user id")
	}
	rows, gen, ok := s.cache.Get(ctx, userID)
	if ok {
		return rows, nil
	}
	rows, err := s.threads.ListByUser(dbctx.Context{Ctx: ctx}, userID, 0)
	if err != nil {
		return nil, db.MapError("list threads", err)
	}
	if rows == nil {
		rows = []*types.ChatThread{}
	}
	s.cache.Set(ctx, userID, gen, rows)
	return rows, nil
}

func (s *threadStore) Get(ctx context.Context, threadID, userID uuid.UUID) (*types.ChatThread, error) {
	if threadID == uuid.Nil {
		return nil, apierr.Validation("missing thread id")
	}
	th, err := s.threads.GetByID(dbctx.Context{Ctx: ctx}, threadID)
	return ownedThread(th, err, userID)
}

func (s *threadStore) GetByExternalID(ctx context.Context, externalID string, userID uuid.UUID) (*types.ChatThread, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, apierr.Validation("missing external id")
	}
	th, err := s.threads.GetByExternalID(dbctx.Context{Ctx: ctx}, externalID)
	return ownedThread(th, err, userID)
}

func (s *threadStore) Lookup(ctx context.Context, threadID uuid.UUID) (*types.ChatThread, error) {
	if threadID == uuid.Nil {
		return nil, apierr.Validation("missing thread id")
	}
	th, err := s.threads.GetByID(dbctx.Context{Ctx: ctx}, threadID)
	if err != nil {
		return ownedThread(nil, err, uuid.Nil)
	}
	return th, nil
}

// ownedThread hides threads of other users behind the same not-found answer as missing ones.
func ownedThread(th *types.ChatThread, err error, userID uuid.UUID) (*types.ChatThread, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("conversation not available")
	}
	if err != nil {
		return nil, db.MapError("get thread", err)
	}
	if th == nil || userID == uuid.Nil || th.UserID != userID {
		return nil, apierr.NotFound("conversation not available")
	}
	return th, nil
}

func (s *threadStore) Rename(ctx context.Context, userID, threadID uuid.UUID, title string) (*types.ChatThread, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apierr.Validation("title must not be empty")
	}
	if len(title) > maxTitleLen {
		return nil, apierr.Validation("title too long")
	}
	if _, err := s.Get(ctx, threadID, userID); err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	if err := s.threads.UpdateFields(dbc, threadID, map[string]interface{}{"title": title}); err != nil {
		return nil, db.MapError("rename thread", err)
	}
	// Same-title renames still count as an update.
	if err := s.threads.Touch(dbc, threadID, s.now()); err != nil {
		return nil, db.MapError("touch thread", err)
	}
	s.cache.Invalidate(ctx, userID)

	th, err := s.threads.GetByID(dbc, threadID)
	if err != nil {
		return nil, db.MapError("get thread", err)
	}
	if s.notify != nil {
		s.notify.ThreadUpdated(userID, th)
	}
	return th, nil
}

func (s *threadStore) Delete(ctx context.Context, userID, threadID uuid.UUID) error {
	if _, err := s.Get(ctx, threadID, userID); err != nil {
		return err
	}
	if err := s.threads.Delete(dbctx.Context{Ctx: ctx}, threadID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierr.NotFound("conversation not available")
		}
		return db.MapError("delete thread", err)
	}
	s.cache.Invalidate(ctx, userID)
	s.log.Info("Thread deleted", "thread_id", threadID, "user_id", userID)
	if s.notify != nil {
		s.notify.ThreadDeleted(userID, threadID)
	}
	return nil
}

func (s *threadStore) Touch(ctx context.Context, userID, threadID uuid.UUID, at time.Time) error {
	if at.IsZero() {
		at = s.now()
	}
	if err := s.threads.Touch(dbctx.Context{Ctx: ctx}, threadID, at); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierr.NotFound("conversation not available")
		}
		return db.MapError("touch thread", err)
	}
	s.cache.Invalidate(ctx, userID)
	return nil
}

func (s *threadStore) SetActiveRun(ctx context.Context, userID, threadID uuid.UUID, runID string) error {
	return s.updateBookkeeping(ctx, userID, threadID, map[string]interface{}{"active_run_id": strings.TrimSpace(runID)})
}

func (s *threadStore) SetUndelivered(ctx context.Context, userID, threadID uuid.UUID, messageID *uuid.UUID) error {
	return s.updateBookkeeping(ctx, userID, threadID, map[string]interface{}{"undelivered_message_id": messageID})
}

func (s *threadStore) updateBookkeeping(ctx context.Context, userID, threadID uuid.UUID, updates map[string]interface{}) error {
	if err := s.threads.UpdateFields(dbctx.Context{Ctx: ctx}, threadID, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierr.NotFound("conversation not available")
		}
		return db.MapError("update thread", err)
	}
	s.cache.Invalidate(ctx, userID)
	return nil
}
