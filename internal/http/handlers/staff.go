package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/http/response"
	"github.com/yungbote/concierge-backend/internal/services"
)

// StaffHandler serves routes mounted behind RequireStaff.
type StaffHandler struct {
	reservations services.ReservationService
	requests     services.ServiceRequestService
	conv         services.ConversationService
}

func NewStaffHandler(reservations services.ReservationService, requests services.ServiceRequestService, conv services.ConversationService) *StaffHandler {
	return &StaffHandler{reservations: reservations, requests: requests, conv: conv}
}

type importReservationsReq struct {
	Reservations []services.ReservationImport `json:"reservations"`
}

// POST /api/staff/reservations/import
func (h *StaffHandler) ImportReservations(c *gin.Context) {
	var req importReservationsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	rows, err := h.reservations.Import(c.Request.Context(), req.Reservations)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"imported": len(rows), "reservations": rows})
}

type updateStatusReq struct {
	Status types.ServiceRequestStatus `json:"status"`
}

// PATCH /api/staff/service-requests/:id/status
func (h *StaffHandler) UpdateServiceRequestStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	out, err := h.requests.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"service_request": out})
}

type staffMessageReq struct {
	Content string `json:"content"`
}

// POST /api/staff/chat/threads/:id/messages
func (h *StaffHandler) PostThreadMessage(c *gin.Context) {
	threadID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req staffMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	msg, err := h.conv.PostAdminMessage(c.Request.Context(), threadID, req.Content)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"message": msg})
}
