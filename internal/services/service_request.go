package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/concierge-backend/internal/data/db"
	conciergerepo "github.com/yungbote/concierge-backend/internal/data/repos/concierge"
	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/domain/concierge"
	"github.com/yungbote/concierge-backend/internal/observability"
	"github.com/yungbote/concierge-backend/internal/pkg/dbctx"
	"github.com/yungbote/concierge-backend/internal/platform/apierr"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

const maxNotesLen = 2000

type CreateServiceRequestInput struct {
	// ReservationID is optional; without it the linked stay covering ScheduledFor is used.
	ReservationID *uuid.UUID            `json:"reservation_id,omitempty"`
	Category      types.ServiceCategory `json:"category"`
	Options       json.RawMessage       `json:"options"`
	ScheduledFor  time.Time             `json:"scheduled_for"`
	Notes         string                `json:"notes,omitempty"`
}

type ServiceRequestService interface {
	Catalog() []CatalogEntry
	Create(ctx context.Context, userID uuid.UUID, in CreateServiceRequestInput) (*types.ServiceRequest, error)
	ListMine(ctx context.Context, userID uuid.UUID, limit int) ([]*types.ServiceRequest, error)
	Cancel(ctx context.Context, userID, requestID uuid.UUID) (*types.ServiceRequest, error)
	// UpdateStatus is the staff path; it does not check ownership.
	UpdateStatus(ctx context.Context, requestID uuid.UUID, to types.ServiceRequestStatus) (*types.ServiceRequest, error)
}

type serviceRequestService struct {
	log          *logger.Logger
	reservations conciergerepo.ReservationRepo
	requests     conciergerepo.ServiceRequestRepo
	catalog      ServiceCatalog
	notify       ConciergeNotifier
	metrics      *observability.Metrics
	now          func() time.Time
}

func NewServiceRequestService(
	baseLog *logger.Logger,
	reservations conciergerepo.ReservationRepo,
	requests conciergerepo.ServiceRequestRepo,
	catalog ServiceCatalog,
	notify ConciergeNotifier,
	metrics *observability.Metrics,
) ServiceRequestService {
	return &serviceRequestService{
		log:          baseLog.With("service", "ServiceRequestService"),
		reservations: reservations,
		requests:     requests,
		catalog:      catalog,
		notify:       notify,
		metrics:      metrics,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *serviceRequestService) Catalog() []CatalogEntry {
	return s.catalog.Entries()
}

func (s *serviceRequestService) Create(ctx context.Context, userID uuid.UUID, in CreateServiceRequestInput) (*types.ServiceRequest, error) {
	if userID == uuid.Nil {
		return nil, apierr.Validation("missing user id")
	}
	category := types.ServiceCategory(strings.ToLower(strings.TrimSpace(string(in.Category))))
	entry, ok := s.catalog.Entry(category)
	if !ok {
		return nil, apierr.Validation("unknown service category " + string(in.Category))
	}
	if in.ScheduledFor.IsZero() {
		return nil, apierr.Validation("scheduled_for is required")
	}
	notes := strings.TrimSpace(in.Notes)
	if len(notes) > maxNotesLen {
		return nil, apierr.Validation("notes too long")
	}
	at := in.ScheduledFor.UTC()
	if earliest := s.now().Add(time.Duration(entry.LeadTimeMinutes) * time.Minute); at.Before(earliest) {
		return nil, apierr.Validation("requested time is too soon for " + entry.Title)
	}

	opts, err := s.catalog.Validate(category, in.Options)
	if err != nil {
		return nil, err
	}
	normalized, err := json.Marshal(opts)
	if err != nil {
		return nil, apierr.Validation("options: " + err.Error())
	}

	res, err := s.stayFor(ctx, userID, in.ReservationID, at)
	if err != nil {
		return nil, err
	}

	req := &types.ServiceRequest{
		UserID:        userID,
		ReservationID: res.ID,
		Category:      category,
		Status:        concierge.StatusPending,
		Options:       datatypes.JSON(normalized),
		ScheduledFor:  at,
		Notes:         notes,
	}
	created, err := s.requests.Create(dbctx.Context{Ctx: ctx}, []*types.ServiceRequest{req})
	if err != nil {
		return nil, db.MapError("create service request", err)
	}
	out := created[0]
	s.metrics.IncServiceRequest(string(out.Category), string(out.Status))
	s.log.Info("Service request created", "request_id", out.ID, "user_id", userID, "category", out.Category)
	s.emit(out)
	return out, nil
}

// stayFor resolves the user's linked reservation whose stay covers at.
func (s *serviceRequestService) stayFor(ctx context.Context, userID uuid.UUID, reservationID *uuid.UUID, at time.Time) (*types.Reservation, error) {
	dbc := dbctx.Context{Ctx: ctx}
	if reservationID != nil && *reservationID != uuid.Nil {
		res, err := s.reservations.GetByID(dbc, *reservationID)
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && (res.UserID == nil || *res.UserID != userID)) {
			return nil, apierr.NotFound("reservation not found")
		}
		if err != nil {
			return nil, db.MapError("get reservation", err)
		}
		if !res.Active(at) {
			return nil, apierr.Validation("requested time is outside the stay")
		}
		return res, nil
	}

	rows, err := s.reservations.ListByUser(dbc, userID)
	if err != nil {
		return nil, db.MapError("list reservations", err)
	}
	if len(rows) == 0 {
		return nil, apierr.Validation("link a reservation before requesting services")
	}
	for _, r := range rows {
		if r.Active(at) {
			return r, nil
		}
	}
	return nil, apierr.Validation("requested time is outside the stay")
}

func (s *serviceRequestService) ListMine(ctx context.Context, userID uuid.UUID, limit int) ([]*types.ServiceRequest, error) {
	if userID == uuid.Nil {
		return nil, apierr.Validation("missing user id")
	}
	rows, err := s.requests.ListByUser(dbctx.Context{Ctx: ctx}, userID, limit)
	if err != nil {
		return nil, db.MapError("list service requests", err)
	}
	return rows, nil
}

func (s *serviceRequestService) Cancel(ctx context.Context, userID, requestID uuid.UUID) (*types.ServiceRequest, error) {
	req, err := s.get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.UserID != userID {
		return nil, apierr.NotFound("service request not found")
	}
	if req.Status != concierge.StatusPending {
		return nil, apierr.Conflict("only pending requests can be cancelled")
	}
	return s.transition(ctx, req, concierge.StatusCancelled)
}

func (s *serviceRequestService) UpdateStatus(ctx context.Context, requestID uuid.UUID, to types.ServiceRequestStatus) (*types.ServiceRequest, error) {
	switch to {
	case concierge.StatusPending, concierge.StatusConfirmed, concierge.StatusInProgress,
		concierge.StatusCompleted, concierge.StatusCancelled:
	default:
		return nil, apierr.Validation("unknown status " + string(to))
	}
	req, err := s.get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !concierge.CanTransition(req.Status, to) {
		return nil, apierr.Conflict("cannot move request from " + string(req.Status) + " to " + string(to))
	}
	return s.transition(ctx, req, to)
}

func (s *serviceRequestService) get(ctx context.Context, requestID uuid.UUID) (*types.ServiceRequest, error) {
	if requestID == uuid.Nil {
		return nil, apierr.Validation("missing request id")
	}
	req, err := s.requests.GetByID(dbctx.Context{Ctx: ctx}, requestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apierr.NotFound("service request not found")
	}
	if err != nil {
		return nil, db.MapError("get service request", err)
	}
	return req, nil
}

func (s *serviceRequestService) transition(ctx context.Context, req *types.ServiceRequest, to types.ServiceRequestStatus) (*types.ServiceRequest, error) {
	dbc := dbctx.Context{Ctx: ctx}
	ok, err := s.requests.CompareAndSetStatus(dbc, req.ID, req.Status, to)
	if err != nil {
		return nil, db.MapError("update service request", err)
	}
	if !ok {
		return nil, apierr.Conflict("service request changed concurrently")
	}
	out, err := s.requests.GetByID(dbc, req.ID)
	if err != nil {
		return nil, db.MapError("get service request", err)
	}
	s.metrics.IncServiceRequest(string(out.Category), string(out.Status))
	s.log.Info("Service request updated", "request_id", out.ID, "from", req.Status, "to", out.Status)
	s.emit(out)
	return out, nil
}

func (s *serviceRequestService) emit(req *types.ServiceRequest) {
	if s.notify != nil {
		s.notify.ServiceRequestUpdated(req.UserID, req)
	}
}
