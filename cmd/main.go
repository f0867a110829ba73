package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/concierge-backend/internal/app"
	"github.com/yungbote/concierge-backend/internal/http"
	"github.com/yungbote/concierge-backend/internal/observability"
	"github.com/yungbote/concierge-backend/internal/platform/envutil"
	"github.com/yungbote/concierge-backend/internal/platform/logger"
	"github.com/yungbote/concierge-backend/internal/services"
)

const shutdownTimeout = 15 * time.Second

func main() {
	issue := flag.Bool("issue-token", false, "print an access token and exit")
	userFlag := flag.String("user", "", "user id for -issue-token (random when empty)")
	roleFlag := flag.String("role", "guest", "role for -issue-token: guest or staff")
	flag.Parse()

	if *issue {
		if err := issueToken(*userFlag, *roleFlag); err != nil {
			fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server exited: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New()
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer a.Close()

	shutdownOTel := observability.InitOTel(ctx, a.Log, observability.OtelConfig{
		ServiceName: "concierge-backend",
		Environment: a.Cfg.Environment,
		Version:     envutil.String("APP_VERSION", ""),
	})

	if err := a.Start(ctx); err != nil {
		return err
	}

	srv := http.NewServer(a.Addr(), a.Router)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Log.Info("HTTP server listening", "addr", a.Addr())
		return srv.Run()
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Log.Info("Shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Streams never go idle, so Shutdown would wait out the timeout on them.
		a.SSEHub.CloseAll()
		if err := srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		if shutdownOTel != nil {
			if err := shutdownOTel(sctx); err != nil {
				a.Log.Warn("otel shutdown failed", "error", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func issueToken(rawUser, role string) error {
	log, err := logger.New("test")
	if err != nil {
		return err
	}
	secret := envutil.String("JWT_SECRET_KEY", "")
	if secret == "" {
		return errors.New("JWT_SECRET_KEY is not set")
	}
	userID := uuid.New()
	if rawUser != "" {
		if userID, err = uuid.Parse(rawUser); err != nil {
			return fmt.Errorf("invalid -user: %w", err)
		}
	}
	auth := services.NewAuthService(log, secret, envutil.Seconds("ACCESS_TOKEN_TTL", time.Hour))
	token, err := auth.IssueToken(userID, uuid.New(), role)
	if err != nil {
		return err
	}
	fmt.Printf("user_id=%s\n%s\n", userID, token)
	return nil
}
