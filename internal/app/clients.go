package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/concierge-backend/internal/observability"
	"github.com/yungbote/concierge-backend/internal/platform/assistant"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
	"github.com/yungbote/concierge-backend/internal/realtime/bus"
)

type Clients struct {
	Redis     goredis.UniversalClient
	SSEBus    bus.Bus
	Assistant assistant.Gateway
}

func wireClients(log *logger.Logger, cfg Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")

	// Redis
	var (
		rdb goredis.UniversalClient
		b   bus.Bus
	)
	if cfg.RedisAddr != "" {
		rdb = goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("redis ping: %w", err)
		}
		rb, err := bus.NewRedisBus(log, rdb, cfg.RedisChannel)
		if err != nil {
			_ = rdb.Close()
			return Clients{}, fmt.Errorf("init redis SSE bus: %w", err)
		}
		b = rb
	} else {
		b = bus.NewLocalBus()
	}

	// Assistant
	acfg := cfg.Assistant
	if metrics != nil {
		acfg.Observer = metrics
	}
	gw, err := assistant.New(acfg, log)
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return Clients{}, fmt.Errorf("init assistant gateway: %w", err)
	}

	return Clients{
		Redis:     rdb,
		SSEBus:    b,
		Assistant: gw,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.SSEBus != nil {
		_ = c.SSEBus.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
