package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/platform/apierr"
	"github.com/yungbote/concierge-backend/internal/services"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`

	// Set for failed chat turns.
	Stage       string             `json:"stage,omitempty"`
	Scope       string             `json:"scope,omitempty"`
	ThreadID    *uuid.UUID         `json:"thread_id,omitempty"`
	UserMessage *types.ChatMessage `json:"user_message,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondErr maps err onto the shared taxonomy and writes the envelope.
func RespondErr(c *gin.Context, err error) {
	status, code := Classify(err)
	msg := "internal error"
	if status < http.StatusInternalServerError || status == http.StatusBadGateway || status == http.StatusGatewayTimeout {
		msg = err.Error()
	}
	body := APIError{Message: msg, Code: code}

	var terr *services.TurnError
	if errors.As(err, &terr) {
		body.Stage = string(terr.Stage)
		body.Scope = string(terr.Scope)
		body.UserMessage = terr.UserMessage
		if terr.Thread != nil {
			id := terr.Thread.ID
			body.ThreadID = &id
		}
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, ErrorEnvelope{Error: body})
}

// Classify returns the HTTP status and stable code for err.
func Classify(err error) (int, string) {
	var (
		apiErr  *apierr.Error
		timeout *apierr.RunTimeoutError
		failed  *apierr.RunFailedError
		empty   *apierr.EmptyReplyError
		remote  *apierr.RemoteServiceError
	)
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.As(err, &apiErr):
		return apiErr.Status, apiErr.Code
	case errors.Is(err, apierr.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apierr.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apierr.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apierr.ErrBusy):
		return http.StatusConflict, "assistant_busy"
	case errors.Is(err, apierr.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.As(err, &timeout):
		return http.StatusGatewayTimeout, "run_timeout"
	case errors.As(err, &failed):
		return http.StatusBadGateway, "run_failed"
	case errors.As(err, &empty):
		return http.StatusBadGateway, "empty_reply"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return 499, "client_closed_request"
	case errors.As(err, &remote):
		if remote.Service == "database" {
			return http.StatusInternalServerError, "database_error"
		}
		return http.StatusBadGateway, "remote_service_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
