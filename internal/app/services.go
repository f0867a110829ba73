package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/concierge-backend/internal/observability"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
	"github.com/yungbote/concierge-backend/internal/realtime"
	"github.com/yungbote/concierge-backend/internal/services"
)

type Services struct {
	Auth           services.AuthService
	Threads        services.ThreadStore
	Messages       services.MessageStore
	Poller         services.RunPoller
	Conversation   services.ConversationService
	Reservations   services.ReservationService
	Catalog        services.ServiceCatalog
	ServiceRequest services.ServiceRequestService
}

func wireServices(
	db *gorm.DB,
	log *logger.Logger,
	cfg Config,
	repos Repos,
	clients Clients,
	hub *realtime.SSEHub,
	metrics *observability.Metrics,
) (Services, error) {
	log.Info("Wiring services...")

	// Events go through the bus; the forwarder started in App.Start feeds the local hub.
	var emit services.SSEEmitter = &services.BusEmitter{Bus: clients.SSEBus, Log: log}
	if clients.SSEBus == nil {
		emit = &services.HubEmitter{Hub: hub}
	}
	chatNotify := services.NewChatNotifier(emit)
	conciergeNotify := services.NewConciergeNotifier(emit)

	cache := services.NewNoopThreadCache()
	if clients.Redis != nil {
		cache = services.NewRedisThreadCache(clients.Redis, cfg.ThreadCacheTTL, log, metrics)
	}

	catalog, err := services.LoadServiceCatalog(cfg.ServiceCatalogPath)
	if err != nil {
		return Services{}, fmt.Errorf("load service catalog: %w", err)
	}

	threads := services.NewThreadStore(log, repos.Thread, clients.Assistant, cache, chatNotify)
	messages := services.NewMessageStore(db, log, repos.Thread, repos.Message)
	poller := services.NewRunPoller(log, clients.Assistant, cfg.Poller, metrics)

	return Services{
		Auth:           services.NewAuthService(log, cfg.JWTSecretKey, cfg.AccessTokenTTL),
		Threads:        threads,
		Messages:       messages,
		Poller:         poller,
		Conversation:   services.NewConversationService(log, threads, messages, clients.Assistant, poller, chatNotify, metrics),
		Reservations:   services.NewReservationService(db, log, repos.Reservation, conciergeNotify),
		Catalog:        catalog,
		ServiceRequest: services.NewServiceRequestService(log, repos.Reservation, repos.ServiceRequest, catalog, conciergeNotify, metrics),
	}, nil
}
