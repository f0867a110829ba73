package concierge

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/pkg/dbctx"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

type ServiceRequestRepo interface {
	Create(dbc dbctx.Context, rows []*types.ServiceRequest) ([]*types.ServiceRequest, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ServiceRequest, error)
	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.ServiceRequest, error)
	// CompareAndSetStatus moves a request from -> to; false when the row was not in from.
	CompareAndSetStatus(dbc dbctx.Context, id uuid.UUID, from, to types.ServiceRequestStatus) (bool, error)
}

type serviceRequestRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewServiceRequestRepo(db *gorm.DB, log *logger.Logger) ServiceRequestRepo {
	return &serviceRequestRepo{db: db, log: log.With("repo", "ServiceRequestRepo")}
}

func (r *serviceRequestRepo) Create(dbc dbctx.Context, rows []*types.ServiceRequest) ([]*types.ServiceRequest, error) {
	if len(rows) == 0 {
		return []*types.ServiceRequest{}, nil
	}
	if err := dbc.DB(r.db).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *serviceRequestRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.ServiceRequest, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("missing id")
	}
	var out types.ServiceRequest
	if err := dbc.DB(r.db).Where("id = ?", id).Take(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *serviceRequestRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit int) ([]*types.ServiceRequest, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("missing user_id")
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	out := []*types.ServiceRequest{}
	if err := dbc.DB(r.db).
		Where("user_id = ?", userID).
		Order("scheduled_for DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *serviceRequestRepo) CompareAndSetStatus(dbc dbctx.Context, id uuid.UUID, from, to types.ServiceRequestStatus) (bool, error) {
	if id == uuid.Nil {
		return false, fmt.Errorf("missing id")
	}
	res := dbc.DB(r.db).
		Model(&types.ServiceRequest{}).
		Where("id = ? AND status = ?", id, from).
		UpdateColumns(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
