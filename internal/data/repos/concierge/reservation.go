package concierge

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/pkg/dbctx"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

type ReservationRepo interface {
	// Upsert inserts or refreshes imported rows keyed by confirmation code; links are preserved.
	Upsert(dbc dbctx.Context, rows []*types.Reservation) ([]*types.Reservation, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Reservation, error)
	LockByCode(dbc dbctx.Context, code string) (*types.Reservation, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Reservation, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
}

type reservationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReservationRepo(db *gorm.DB, log *logger.Logger) ReservationRepo {
	return &reservationRepo{db: db, log: log.With("repo", "ReservationRepo")}
}

// NormalizeCode uppercases and strips spaces so "ab 123" and "AB123" match.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.Join(strings.Fields(code), ""))
}

func (r *reservationRepo) Upsert(dbc dbctx.Context, rows []*types.Reservation) ([]*types.Reservation, error) {
	if len(rows) == 0 {
		return []*types.Reservation{}, nil
	}
	codes := make([]string, 0, len(rows))
	for _, row := range rows {
		row.ConfirmationCode = NormalizeCode(row.ConfirmationCode)
		codes = append(codes, row.ConfirmationCode)
	}
	if err := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "confirmation_code"}},
			DoUpdates: clause.AssignmentColumns([]string{"guest_last_name", "villa_name", "check_in", "check_out", "pin_hash", "updated_at"}),
		}).
		Create(&rows).Error; err != nil {
		return nil, err
	}

	// Refreshed rows keep their stored id and link; Create only knows the ids it generated.
	var stored []*types.Reservation
	if err := dbc.DB(r.db).Where("confirmation_code IN ?", codes).Find(&stored).Error; err != nil {
		return nil, err
	}
	byCode := make(map[string]*types.Reservation, len(stored))
	for _, row := range stored {
		byCode[row.ConfirmationCode] = row
	}
	out := make([]*types.Reservation, 0, len(codes))
	for _, code := range codes {
		row, ok := byCode[code]
		if !ok {
			return nil, fmt.Errorf("reservation %s missing after upsert", code)
		}
		out = append(out, row)
	}
	return out, nil
}

func (r *reservationRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Reservation, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	var out types.Reservation
	if err := dbc.DB(r.db).Where("id = ?", id).Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *reservationRepo) LockByCode(dbc dbctx.Context, code string) (*types.Reservation, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, fmt.Errorf("missing confirmation_code")
	}
	if dbc.Tx == nil {
		return nil, fmt.Errorf("LockByCode requires dbc.Tx")
	}
	var out types.Reservation
	if err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("confirmation_code = ?", code).
		Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *reservationRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.Reservation, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	out := []*types.Reservation{}
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("check_in ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *reservationRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return fmt.Errorf("missing id")
	}
	return dbc.DB(r.db).
		Model(&types.Reservation{}).
		Where("id = ?", id).
		Updates(updates).Error
}
