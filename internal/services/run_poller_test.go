package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/concierge-backend/internal/data/repos/testutil"
	"github.com/yungbote/concierge-backend/internal/domain/chat"
	"github.com/yungbote/concierge-backend/internal/platform/apierr"
)

func TestRunPollerTimesOutAfterExactAttempts(t *testing.T) {
	gw := newFakeGateway("", chat.RunInProgress)
	interval := 10 * time.Millisecond
	p := NewRunPoller(testutil.Logger(t), gw, PollerConfig{Interval: interval, MaxAttempts: 3}, nil)

	start := time.Now()
	_, err := p.Wait(context.Background(), "thread_1", "run_1")
	elapsed := time.Since(start)

	var timeout *apierr.RunTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected RunTimeoutError, got %v", err)
	}
	if gw.getRunCalls != 3 || timeout.Attempts != 3 {
		t.Fatalf("calls: got=%d attempts=%d want=3", gw.getRunCalls, timeout.Attempts)
	}
	if timeout.LastStatus != string(chat.RunInProgress) {
		t.Fatalf("last status: got=%q", timeout.LastStatus)
	}
	// Sleeps happen between calls only.
	if elapsed < 2*interval {
		t.Fatalf("returned too early: %v", elapsed)
	}
	if elapsed > 3*interval+200*time.Millisecond {
		t.Fatalf("returned too late: %v", elapsed)
	}
}

func TestRunPollerReturnsOnFirstTerminalStatus(t *testing.T) {
	gw := newFakeGateway("", chat.RunCompleted)
	p := NewRunPoller(testutil.Logger(t), gw, PollerConfig{Interval: time.Hour, MaxAttempts: 10}, nil)

	run, err := p.Wait(context.Background(), "thread_1", "run_1")
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if run.Status != chat.RunCompleted || gw.getRunCalls != 1 {
		t.Fatalf("got status=%s calls=%d", run.Status, gw.getRunCalls)
	}
}

func TestRunPollerCancelledRun(t *testing.T) {
	gw := newFakeGateway("", chat.RunQueued, chat.RunCancelled)
	p := NewRunPoller(testutil.Logger(t), gw, PollerConfig{Interval: time.Millisecond, MaxAttempts: 10}, nil)

	_, err := p.Wait(context.Background(), "thread_1", "run_1")
	var failed *apierr.RunFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected RunFailedError, got %v", err)
	}
	if failed.Status != string(chat.RunCancelled) {
		t.Fatalf("status: got=%q want=cancelled", failed.Status)
	}
}

func TestRunPollerStopsWhenContextEnds(t *testing.T) {
	gw := newFakeGateway("", chat.RunInProgress)
	p := NewRunPoller(testutil.Logger(t), gw, PollerConfig{Interval: time.Hour, MaxAttempts: 100}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Wait(ctx, "thread_1", "run_1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if gw.getRunCalls != 1 {
		t.Fatalf("calls: got=%d want=1", gw.getRunCalls)
	}
}

func TestPollerConfigDefaults(t *testing.T) {
	cfg := PollerConfig{}.withDefaults()
	if cfg.Interval != DefaultPollInterval || cfg.MaxAttempts != DefaultPollMaxAttempts {
		t.Fatalf("got=%+v", cfg)
	}
}
