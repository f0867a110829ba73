package app

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/concierge-backend/internal/http"
	httpH "github.com/yungbote/concierge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/concierge-backend/internal/http/middleware"
	"github.com/yungbote/concierge-backend/internal/observability"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
	"github.com/yungbote/concierge-backend/internal/realtime"
)

const serviceName = "concierge-backend"

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health         *httpH.HealthHandler
	Realtime       *httpH.RealtimeHandler
	Chat           *httpH.ChatHandler
	Reservation    *httpH.ReservationHandler
	ServiceRequest *httpH.ServiceRequestHandler
	Staff          *httpH.StaffHandler
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services, sseHub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:         httpH.NewHealthHandler(db),
		Realtime:       httpH.NewRealtimeHandler(log, sseHub),
		Chat:           httpH.NewChatHandler(log, services.Threads, services.Messages, services.Conversation),
		Reservation:    httpH.NewReservationHandler(services.Reservations),
		ServiceRequest: httpH.NewServiceRequestHandler(services.ServiceRequest),
		Staff:          httpH.NewStaffHandler(services.Reservations, services.ServiceRequest, services.Conversation),
	}
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers, middleware Middleware) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:                   log,
		Metrics:               metrics,
		ServiceName:           serviceName,
		CORSOrigins:           cfg.CORSOrigins,
		AuthMiddleware:        middleware.Auth,
		HealthHandler:         handlers.Health,
		RealtimeHandler:       handlers.Realtime,
		ChatHandler:           handlers.Chat,
		ReservationHandler:    handlers.Reservation,
		ServiceRequestHandler: handlers.ServiceRequest,
		StaffHandler:          handlers.Staff,
	})
}
