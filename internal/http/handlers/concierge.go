package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/concierge-backend/internal/http/response"
	"github.com/yungbote/concierge-backend/internal/services"
)

type ReservationHandler struct {
	reservations services.ReservationService
}

func NewReservationHandler(reservations services.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservations: reservations}
}

// GET /api/reservations
func (h *ReservationHandler) ListMine(c *gin.Context) {
	rd, ok := currentUser(c)
	if !ok {
		return
	}
	rows, err := h.reservations.ListMine(c.Request.Context(), rd.UserID)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"reservations": rows})
}

type linkReservationReq struct {
	ConfirmationCode string `json:"confirmation_code"`
	LastName         string `json:"last_name"`
	PIN              string `json:"pin"`
}

// POST /api/reservations/link
func (h *ReservationHandler) Link(c *gin.Context) {
	rd, ok := currentUser(c)
	if !ok {
		return
	}
	var req linkReservationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	res, err := h.reservations.Link(c.Request.Context(), rd.UserID, req.ConfirmationCode, req.LastName, req.PIN)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"reservation": res})
}

type ServiceRequestHandler struct {
	requests services.ServiceRequestService
}

func NewServiceRequestHandler(requests services.ServiceRequestService) *ServiceRequestHandler {
	return &ServiceRequestHandler{requests: requests}
}

// GET /api/services/catalog
func (h *ServiceRequestHandler) Catalog(c *gin.Context) {
	response.RespondOK(c, gin.H{"categories": h.requests.Catalog()})
}

// GET /api/service-requests?limit=50
func (h *ServiceRequestHandler) ListMine(c *gin.Context) {
	rd, ok := currentUser(c)
	if !ok {
		return
	}
	rows, err := h.requests.ListMine(c.Request.Context(), rd.UserID, queryInt(c, "limit", 50))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"service_requests": rows})
}

// POST /api/service-requests
func (h *ServiceRequestHandler) Create(c *gin.Context) {
	rd, ok := currentUser(c)
	if !ok {
		return
	}
	var req services.CreateServiceRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	out, err := h.requests.Create(c.Request.Context(), rd.UserID, req)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"service_request": out})
}

// POST /api/service-requests/:id/cancel
func (h *ServiceRequestHandler) Cancel(c *gin.Context) {
	rd, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	out, err := h.requests.Cancel(c.Request.Context(), rd.UserID, id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"service_request": out})
}
