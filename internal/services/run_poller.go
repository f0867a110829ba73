package services

import (
	"context"
	"time"

	"github.com/yungbote/concierge-backend/internal/domain/chat"
	"github.com/yungbote/concierge-backend/internal/observability"
	"github.com/yungbote/concierge-backend/internal/platform/apierr"
	"github.com/yungbote/concierge-backend/internal/platform/assistant"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
)

const (
	DefaultPollInterval    = time.Second
	DefaultPollMaxAttempts = 60
)

type PollerConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

func (c PollerConfig) withDefaults() PollerConfig {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultPollMaxAttempts
	}
	return c
}

type RunPoller interface {
	// Wait returns the completed run. It makes at most MaxAttempts status calls and
	// sleeps Interval between them; leaving early via ctx does not cancel the remote run.
	Wait(ctx context.Context, threadID, runID string) (*chat.Run, error)
}

type runPoller struct {
	log     *logger.Logger
	gateway assistant.Gateway
	cfg     PollerConfig
	metrics *observability.Metrics
}

func NewRunPoller(baseLog *logger.Logger, gateway assistant.Gateway, cfg PollerConfig, metrics *observability.Metrics) RunPoller {
	return &runPoller{
		log:     baseLog.With("service", "RunPoller"),
		gateway: gateway,
		cfg:     cfg.withDefaults(),
		metrics: metrics,
	}
}

func (p *runPoller) Wait(ctx context.Context, threadID, runID string) (*chat.Run, error) {
	start := time.Now()
	lastStatus := chat.RunQueued

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		run, err := p.gateway.GetRun(ctx, threadID, runID)
		if err != nil {
			p.metrics.ObserveRunWait("error", attempt, time.Since(start))
			return nil, err
		}
		lastStatus = run.Status

		switch run.Status {
		case chat.RunCompleted:
			p.metrics.ObserveRunWait("completed", attempt, time.Since(start))
			return run, nil
		case chat.RunFailed, chat.RunCancelled:
			p.metrics.ObserveRunWait(string(run.Status), attempt, time.Since(start))
			rf := &apierr.RunFailedError{RunID: runID, Status: string(run.Status)}
			if run.LastError != nil {
				rf.Code = run.LastError.Code
				rf.Message = run.LastError.Message
			}
			p.log.Warn("Run ended unsuccessfully", "run_id", runID, "status", run.Status, "code", rf.Code, "error", rf.Message)
			return nil, rf
		}

		if attempt == p.cfg.MaxAttempts {
			break
		}
		if timer == nil {
			timer = time.NewTimer(p.cfg.Interval)
		} else {
			timer.Reset(p.cfg.Interval)
		}
		select {
		case <-ctx.Done():
			p.metrics.ObserveRunWait("abandoned", attempt, time.Since(start))
			p.log.Info("Run wait abandoned", "run_id", runID, "attempts", attempt, "status", run.Status)
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	elapsed := time.Since(start)
	p.metrics.ObserveRunWait("timeout", p.cfg.MaxAttempts, elapsed)
	p.log.Warn("Run wait timed out", "run_id", runID, "attempts", p.cfg.MaxAttempts, "status", lastStatus)
	return nil, &apierr.RunTimeoutError{
		RunID:      runID,
		Attempts:   p.cfg.MaxAttempts,
		Elapsed:    elapsed,
		LastStatus: string(lastStatus),
	}
}
