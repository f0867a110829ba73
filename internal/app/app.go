package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/concierge-backend/internal/data/db"
	"github.com/yungbote/concierge-backend/internal/observability"
	"github.com/yungbote/concierge-backend/internal/platform/envutil"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
	"github.com/yungbote/concierge-backend/internal/realtime"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Metrics  *observability.Metrics
	Clients  Clients
	Repos    Repos
	Services Services
	SSEHub   *realtime.SSEHub
	cancel   context.CancelFunc
}

func New() (*App, error) {
	log, err := logger.NewWithOptions(envutil.String("LOG_MODE", "development"), logger.Options{
		Level:    envutil.String("LOG_LEVEL", "info"),
		Redact:   envutil.Bool("LOG_REDACT", true),
		HashSalt: envutil.String("LOG_HASH_SALT", ""),
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)
	metrics := observability.Init(log)

	theDB, err := db.Open(cfg.DB, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := db.AutoMigrateAll(theDB); err != nil {
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}

	clients, err := wireClients(log, cfg, metrics)
	if err != nil {
		log.Sync()
		return nil, err
	}

	ssehub := realtime.NewSSEHub(log)
	if metrics != nil {
		ssehub.OnDrop(metrics.IncRealtimeDropped)
	}

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(theDB, log, cfg, reposet, clients, ssehub, metrics)
	if err != nil {
		clients.Close()
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, theDB, serviceset, ssehub)
	middleware := wireMiddleware(log, serviceset)
	router := wireRouter(log, cfg, metrics, handlerset, middleware)

	return &App{
		Log:      log,
		DB:       theDB,
		Router:   router,
		Cfg:      cfg,
		Metrics:  metrics,
		Clients:  clients,
		Repos:    reposet,
		Services: serviceset,
		SSEHub:   ssehub,
	}, nil
}

// Start connects the realtime bus to the local hub. It returns once the forwarder is subscribed.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if a.Clients.SSEBus != nil {
		if err := a.Clients.SSEBus.StartForwarder(ctx, a.SSEHub.Broadcast); err != nil {
			cancel()
			a.cancel = nil
			return fmt.Errorf("start realtime forwarder: %w", err)
		}
	}
	return nil
}

func (a *App) Addr() string {
	return ":" + a.Cfg.Port
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close()
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
