package services

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	types "github.com/yungbote/concierge-backend/internal/domain"
	"github.com/yungbote/concierge-backend/internal/observability"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

// ThreadListCache holds each user's thread listing between mutations.
// Get reports the listing generation even on a miss; Set only stores rows
// read under that generation, so an Invalidate that lands mid-read wins.
type ThreadListCache interface {
	Get(ctx context.Context, userID uuid.UUID) ([]*types.ChatThread, int64, bool)
	Set(ctx context.Context, userID uuid.UUID, gen int64, rows []*types.ChatThread)
	Invalidate(ctx context.Context, userID uuid.UUID)
}

type noopThreadCache struct{}

func NewNoopThreadCache() ThreadListCache { return noopThreadCache{} }

func (noopThreadCache) Get(context.Context, uuid.UUID) ([]*types.ChatThread, int64, bool) {
	return nil, 0, false
}
func (noopThreadCache) Set(context.Context, uuid.UUID, int64, []*types.ChatThread) {}
func (noopThreadCache) Invalidate(context.Context, uuid.UUID)                      {}

// Generation keys outlive any listing so a reset cannot collide with a held generation.
const threadGenTTL = 24 * time.Hour

type redisThreadCache struct {
	rdb     goredis.UniversalClient
	ttl     time.Duration
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewRedisThreadCache(rdb goredis.UniversalClient, ttl time.Duration, baseLog *logger.Logger, metrics *observability.Metrics) ThreadListCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisThreadCache{
		rdb:     rdb,
		ttl:     ttl,
		log:     baseLog.With("service", "ThreadListCache"),
		metrics: metrics,
	}
}

func threadListKey(userID uuid.UUID) string {
	return "concierge:threads:" + userID.String()
}

func threadGenKey(userID uuid.UUID) string {
	return threadListKey(userID) + ":gen"
}

func parseGen(v interface{}) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (c *redisThreadCache) Get(ctx context.Context, userID uuid.UUID) ([]*types.ChatThread, int64, bool) {
	vals, err := c.rdb.MGet(ctx, threadListKey(userID), threadGenKey(userID)).Result()
	if err != nil || len(vals) != 2 {
		c.log.Warn("thread cache read failed", "user_id", userID, "error", err)
		c.metrics.IncThreadCache("error")
		// -1 never matches a stored generation, so the following Set is dropped.
		return nil, -1, false
	}
	gen := parseGen(vals[1])
	raw, ok := vals[0].(string)
	if !ok {
		c.metrics.IncThreadCache("miss")
		return nil, gen, false
	}
	var rows []*types.ChatThread
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		c.log.Warn("thread cache decode failed", "user_id", userID, "error", err)
		c.metrics.IncThreadCache("error")
		return nil, gen, false
	}
	c.metrics.IncThreadCache("hit")
	return rows, gen, true
}

func (c *redisThreadCache) Set(ctx context.Context, userID uuid.UUID, gen int64, rows []*types.ChatThread) {
	raw, err := json.Marshal(rows)
	if err != nil {
		return
	}
	genKey := threadGenKey(userID)
	err = c.rdb.Watch(ctx, func(tx *goredis.Tx) error {
		cur, err := tx.Get(ctx, genKey).Int64()
		if errors.Is(err, goredis.Nil) {
			cur = 0
		} else if err != nil {
			return err
		}
		if cur != gen {
			return errStaleThreadList
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.Set(ctx, threadListKey(userID), raw, c.ttl)
			return nil
		})
		return err
	}, genKey)
	switch {
	case err == nil:
	case errors.Is(err, errStaleThreadList), errors.Is(err, goredis.TxFailedErr):
		c.metrics.IncThreadCache("stale")
	default:
		c.log.Warn("thread cache write failed", "user_id", userID, "error", err)
	}
}

func (c *redisThreadCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	genKey := threadGenKey(userID)
	_, err := c.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.Incr(ctx, genKey)
		p.Expire(ctx, genKey, threadGenTTL)
		p.Del(ctx, threadListKey(userID))
		return nil
	})
	if err != nil {
		c.log.Warn("thread cache invalidate failed", "user_id", userID, "error", err)
	}
}

var errStaleThreadList = errors.New("thread list generation moved")
