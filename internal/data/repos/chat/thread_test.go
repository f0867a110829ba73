package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/concierge-backend/internal/data/repos/testutil"
	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/domain/chat"
	"github.com/yungbote/concierge-backend/internal/pkg/dbctx"
)

func TestThreadRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewThreadRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	userID := uuid.New()
	otherUser := uuid.New()

	if got, err := repo.LatestByUser(dbc, userID); err != nil || got != nil {
		t.Fatalf("LatestByUser(empty): got=%v err=%v", got, err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	older := &types.ChatThread{UserID: userID, ExternalID: "thread_a", Title: "a", CreatedAt: now.Add(-2 * time.Hour)}
	newer := &types.ChatThread{UserID: userID, ExternalID: "thread_b", Title: "b", CreatedAt: now.Add(-1 * time.Hour)}
	foreign := &types.ChatThread{UserID: otherUser, ExternalID: "thread_c", Title: "c", CreatedAt: now}
	if _, err := repo.Create(dbc, []*types.ChatThread{older, newer, foreign}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := repo.Create(dbc, []*types.ChatThread{{UserID: userID, ExternalID: "thread_a", Title: "dup"}}); !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("Create duplicate external_id: got=%v want=%v", err, gorm.ErrDuplicatedKey)
	}

	latest, err := repo.LatestByUser(dbc, userID)
	if err != nil || latest == nil || latest.ID != newer.ID {
		t.Fatalf("LatestByUser: got=%v err=%v want=%v", latest, err, newer.ID)
	}

	// Touch moves the older thread to the front.
	if err := repo.Touch(dbc, older.ID, now); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	list, err := repo.ListByUser(dbc, userID, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 2 || list[0].ID != older.ID || list[1].ID != newer.ID {
		t.Fatalf("ListByUser order: got=%v", list)
	}

	// Touch never rewinds.
	if err := repo.Touch(dbc, older.ID, now.Add(-time.Hour*24)); err != nil {
		t.Fatalf("Touch(past): %v", err)
	}
	got, err := repo.GetByID(dbc, older.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.UpdatedAt.Equal(now) {
		t.Fatalf("updated_at rewound: got=%v want=%v", got.UpdatedAt, now)
	}

	if err := repo.Touch(dbc, uuid.New(), now); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("Touch(missing): got=%v want=%v", err, gorm.ErrRecordNotFound)
	}

	byExt, err := repo.GetByExternalID(dbc, "thread_c")
	if err != nil || byExt.ID != foreign.ID {
		t.Fatalf("GetByExternalID: got=%v err=%v", byExt, err)
	}

	if err := repo.UpdateFields(dbc, newer.ID, map[string]interface{}{"title": "Dinner plans"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, _ = repo.GetByID(dbc, newer.ID)
	if got.Title != "Dinner plans" {
		t.Fatalf("title: got=%q want=%q", got.Title, "Dinner plans")
	}
	if err := repo.UpdateFields(dbc, uuid.New(), map[string]interface{}{"title": "x"}); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("UpdateFields(missing): got=%v", err)
	}

	locked, err := repo.LockByID(dbc, newer.ID)
	if err != nil || locked.ID != newer.ID {
		t.Fatalf("LockByID: got=%v err=%v", locked, err)
	}
	if _, err := repo.LockByID(dbctx.Context{Ctx: ctx}, newer.ID); err == nil {
		t.Fatalf("LockByID without tx should fail")
	}

	msgs := NewMessageRepo(db, testutil.Logger(t))
	if _, err := msgs.Create(dbc, []*types.ChatMessage{{ThreadID: newer.ID, Seq: 1, Role: chat.RoleUser, Content: "hi"}}); err != nil {
		t.Fatalf("Create message: %v", err)
	}
	if err := repo.Delete(dbc, newer.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(dbc, newer.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("GetByID after delete: got=%v", err)
	}
	left, err := msgs.ListByThread(dbc, newer.ID)
	if err != nil || len(left) != 0 {
		t.Fatalf("messages after delete: got=%d err=%v", len(left), err)
	}
	if err := repo.Delete(dbc, newer.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("Delete twice: got=%v", err)
	}
}

func TestThreadRepoListByUserUnbounded(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	repo := NewThreadRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}

	userID := uuid.New()
	const owned = 55
	for i := 0; i < owned; i++ {
		testutil.SeedThread(t, ctx, tx, userID, "")
	}

	all, err := repo.ListByUser(dbc, userID, 0)
	if err != nil {
		t.Fatalf("ListByUser(0): %v", err)
	}
	if len(all) != owned {
		t.Fatalf("ListByUser(0): got=%d want=%d", len(all), owned)
	}

	page, err := repo.ListByUser(dbc, userID, 10)
	if err != nil || len(page) != 10 {
		t.Fatalf("ListByUser(10): got=%d err=%v", len(page), err)
	}
}
