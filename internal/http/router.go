package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/concierge-backend/internal/http/handlers"
	httpMW "github.com/yungbote/concierge-backend/internal/http/middleware"
	"github.com/yungbote/concierge-backend/internal/observability"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler         *httpH.HealthHandler
	RealtimeHandler       *httpH.RealtimeHandler
	ChatHandler           *httpH.ChatHandler
	ReservationHandler    *httpH.ReservationHandler
	ServiceRequestHandler *httpH.ServiceRequestHandler
	StaffHandler          *httpH.StaffHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS(cfg.CORSOrigins...))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.RequestLogger(cfg.Log))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	protected := api.Group("/")
	{
		// Middleware
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			protected.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
			protected.POST("/sse/subscribe", cfg.RealtimeHandler.SSESubscribe)
			protected.POST("/sse/unsubscribe", cfg.RealtimeHandler.SSEUnsubscribe)
		}

		// Chat
		if cfg.ChatHandler != nil {
			protected.GET("/chat/threads", cfg.ChatHandler.ListThreads)
			protected.POST("/chat/threads", cfg.ChatHandler.CreateThread)
			protected.GET("/chat/threads/current", cfg.ChatHandler.CurrentThread)
			protected.GET("/chat/threads/external/:external_id", cfg.ChatHandler.GetThreadByExternalID)
			protected.PATCH("/chat/threads/:id", cfg.ChatHandler.RenameThread)
			protected.DELETE("/chat/threads/:id", cfg.ChatHandler.DeleteThread)
			protected.GET("/chat/threads/:id/messages", cfg.ChatHandler.ListMessages)
			protected.POST("/chat/threads/:id/retry", cfg.ChatHandler.RetryReply)
			protected.POST("/chat/messages", cfg.ChatHandler.SendMessage)
		}

		// Reservations
		if cfg.ReservationHandler != nil {
			protected.GET("/reservations", cfg.ReservationHandler.ListMine)
			protected.POST("/reservations/link", cfg.ReservationHandler.Link)
		}

		// Service requests
		if cfg.ServiceRequestHandler != nil {
			protected.GET("/services/catalog", cfg.ServiceRequestHandler.Catalog)
			protected.GET("/service-requests", cfg.ServiceRequestHandler.ListMine)
			protected.POST("/service-requests", cfg.ServiceRequestHandler.Create)
			protected.POST("/service-requests/:id/cancel", cfg.ServiceRequestHandler.Cancel)
		}
	}

	// Staff
	if cfg.StaffHandler != nil && cfg.AuthMiddleware != nil {
		staff := api.Group("/staff", cfg.AuthMiddleware.RequireAuth(), cfg.AuthMiddleware.RequireStaff())
		staff.POST("/reservations/import", cfg.StaffHandler.ImportReservations)
		staff.PATCH("/service-requests/:id/status", cfg.StaffHandler.UpdateServiceRequestStatus)
		staff.POST("/chat/threads/:id/messages", cfg.StaffHandler.PostThreadMessage)
	}

	return r
}
