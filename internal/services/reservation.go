package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yungbote/concierge-backend/internal/data/db"
	conciergerepo "github.com/yungbote/concierge-backend/internal/data/repos/concierge"
	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/pkg/dbctx"
	"github.com/yungbote/concierge-backend/internal/platform/apierr"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

// ReservationImport is one row of the property-management feed.
type ReservationImport struct {
	ConfirmationCode string    `json:"confirmation_code"`
	GuestLastName    string    `json:"guest_last_name"`
	VillaName        string    `json:"villa_name"`
	CheckIn          time.Time `json:"check_in"`
	CheckOut         time.Time `json:"check_out"`
	PIN              string    `json:"pin"`
}

type ReservationService interface {
	// Link claims a reservation for userID. Any credential mismatch reads as not found.
	Link(ctx context.Context, userID uuid.UUID, code, lastName, pin string) (*types.Reservation, error)
	ListMine(ctx context.Context, userID uuid.UUID) ([]*types.Reservation, error)
	Import(ctx context.Context, rows []ReservationImport) ([]*types.Reservation, error)
}

type reservationService struct {
	db      *gorm.DB
	log     *logger.Logger
	repo    conciergerepo.ReservationRepo
	notify  ConciergeNotifier
	pinCost int
	now     func() time.Time
}

func NewReservationService(
	db *gorm.DB,
	baseLog *logger.Logger,
	repo conciergerepo.ReservationRepo,
	notify ConciergeNotifier,
) ReservationService {
	return &reservationService{
		db:      db,
		log:     baseLog.With("service", "ReservationService"),
		repo:    repo,
		notify:  notify,
		pinCost: bcrypt.DefaultCost,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

var errReservationUnavailable = apierr.NotFound("reservation not found")

func (s *reservationService) Link(ctx context.Context, userID uuid.UUID, code, lastName, pin string) (*types.Reservation, error) {
	if userID == uuid.Nil {
		return nil, apierr.Validation("missing user id")
	}
	code = conciergerepo.NormalizeCode(code)
	lastName = strings.TrimSpace(lastName)
	pin = strings.TrimSpace(pin)
	if code == "" || lastName == "" || pin == "" {
		return nil, apierr.Validation("confirmation code, last name and pin are required")
	}

	var (
		out      *types.Reservation
		newlySet bool
	)
	err := s.db.WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		inner := dbctx.Context{Ctx: ctx, Tx: txx}
		res, err := s.repo.LockByCode(inner, code)
		if err != nil {
			return err
		}
		if !strings.EqualFold(res.GuestLastName, lastName) {
			return errReservationUnavailable
		}
		if bcrypt.CompareHashAndPassword([]byte(res.PinHash), []byte(pin)) != nil {
			return errReservationUnavailable
		}
		if res.UserID != nil {
			if *res.UserID != userID {
				return apierr.Conflict("reservation is linked to another account")
			}
			out = res
			return nil
		}
		now := s.now()
		if err := s.repo.UpdateFields(inner, res.ID, map[string]interface{}{
			"user_id":   userID,
			"linked_at": now,
		}); err != nil {
			return err
		}
		res.UserID = &userID
		res.LinkedAt = &now
		out = res
		newlySet = true
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errReservationUnavailable
	}
	if err != nil {
		return nil, db.MapError("link reservation", err)
	}

	if newlySet {
		s.log.Info("Reservation linked", "reservation_id", out.ID, "user_id", userID)
		if s.notify != nil {
			s.notify.ReservationLinked(userID, out)
		}
	}
	return out, nil
}

func (s *reservationService) ListMine(ctx context.Context, userID uuid.UUID) ([]*types.Reservation, error) {
	if userID == uuid.Nil {
		return nil, apierr.Validation("missing user id")
	}
	rows, err := s.repo.ListByUser(dbctx.Context{Ctx: ctx}, userID)
	if err != nil {
		return nil, db.MapError("list reservations", err)
	}
	if rows == nil {
		rows = []*types.Reservation{}
	}
	return rows, nil
}

func (s *reservationService) Import(ctx context.Context, rows []ReservationImport) ([]*types.Reservation, error) {
	if len(rows) == 0 {
		return []*types.Reservation{}, nil
	}
	out := make([]*types.Reservation, 0, len(rows))
	for i, in := range rows {
		code := conciergerepo.NormalizeCode(in.ConfirmationCode)
		lastName := strings.TrimSpace(in.GuestLastName)
		pin := strings.TrimSpace(in.PIN)
		switch {
		case code == "":
			return nil, apierr.Validation(rowMsg(i, "confirmation_code is required"))
		case lastName == "":
			return nil, apierr.Validation(rowMsg(i, "guest_last_name is required"))
		case pin == "":
			return nil, apierr.Validation(rowMsg(i, "pin is required"))
		case in.CheckIn.IsZero() || !in.CheckOut.After(in.CheckIn):
			return nil, apierr.Validation(rowMsg(i, "check_out must be after check_in"))
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(pin), s.pinCost)
		if err != nil {
			return nil, apierr.Validation(rowMsg(i, "pin: "+err.Error()))
		}
		out = append(out, &types.Reservation{
			ConfirmationCode: code,
			GuestLastName:    lastName,
			VillaName:        strings.TrimSpace(in.VillaName),
			CheckIn:          in.CheckIn.UTC(),
			CheckOut:         in.CheckOut.UTC(),
			PinHash:          string(hash),
		})
	}

	saved, err := s.repo.Upsert(dbctx.Context{Ctx: ctx}, out)
	if err != nil {
		return nil, db.MapError("import reservations", err)
	}
	s.log.Info("Reservations imported", "count", len(saved))
	return saved, nil
}

func rowMsg(i int, msg string) string {
	return fmt.Sprintf("row %d: %s", i, msg)
}
