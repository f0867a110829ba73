package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/domain/chat"
)

func SeedThread(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, externalID string) *types.ChatThread {
	tb.Helper()
	if externalID == "" {
		externalID = "thread_" + uuid.NewString()
	}
	th := &types.ChatThread{
		UserID:     userID,
		ExternalID: externalID,
		Title:      chat.DefaultTitle(time.Now()),
	}
	if err := tx.WithContext(ctx).Create(th).Error; err != nil {
		tb.Fatalf("seed thread: %v", err)
	}
	return th
}

func SeedMessage(tb testing.TB, ctx context.Context, tx *gorm.DB, threadID uuid.UUID, seq int64, role chat.Role, content string) *types.ChatMessage {
	tb.Helper()
	m := &types.ChatMessage{
		ThreadID: threadID,
		Seq:      seq,
		Role:     role,
		Content:  content,
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed message: %v", err)
	}
	return m
}

// SeedReservation stores a reservation whose PIN hash matches pin.
func SeedReservation(tb testing.TB, ctx context.Context, tx *gorm.DB, code, lastName, pin string, checkIn, checkOut time.Time) *types.Reservation {
	tb.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	if err != nil {
		tb.Fatalf("hash pin: %v", err)
	}
	r := &types.Reservation{
		ConfirmationCode: code,
		GuestLastName:    lastName,
		VillaName:        "Villa Serena",
		CheckIn:          checkIn.UTC(),
		CheckOut:         checkOut.UTC(),
		PinHash:          string(hash),
	}
	if err := tx.WithContext(ctx).Create(r).Error; err != nil {
		tb.Fatalf("seed reservation: %v", err)
	}
	return r
}
