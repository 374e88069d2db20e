package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/lawha-app/lawha/backend/internal/config"
	"github.com/lawha-app/lawha/backend/internal/handler"
	collabHandler "github.com/lawha-app/lawha/backend/internal/handler/collab"
	"github.com/lawha-app/lawha/backend/internal/service/cursor"
	"github.com/lawha-app/lawha/backend/internal/service/feed"
	inviteservice "github.com/lawha-app/lawha/backend/internal/service/invite"
	"github.com/lawha-app/lawha/backend/internal/service/lock"
	"github.com/lawha-app/lawha/backend/internal/service/presence"
	"github.com/lawha-app/lawha/backend/internal/service/snapshot"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	hub := collabHandler.NewHub()

	feedSvc := feed.New(cfg.Collab.FeedCap, hub)
	lockSvc := lock.NewManager(cfg.Collab.LockTTL, hub)
	registry := presence.NewRegistry(cfg.Collab.HeartbeatStale, lockSvc, feedSvc, hub)
	cursorSvc := cursor.New(cfg.Collab.CoalesceWindow, registry, hub)

	var store snapshot.Store
	if cfg.Redis.Enabled() {
		redisStore, err := snapshot.NewRedisStore(cfg.Redis.URL, cfg.Collab.SnapshotCap)
		if err != nil {
			log.Fatalf("failed to connect snapshot store: %v", err)
		}
		defer redisStore.Close()
		store = redisStore
		log.Println("snapshot store backed by redis")
	} else {
		store = snapshot.NewMemoryStore(cfg.Collab.SnapshotCap)
		log.Println("REDIS_URL not set, snapshots kept in memory")
	}
	snapshotSvc := snapshot.NewService(store, cfg.Collab.SnapshotInterval, feedSvc, hub)

	inviteSvc := inviteservice.NewService(cfg.Invite.Secret, cfg.Invite.BaseURL, cfg.Invite.TTL)

	go lockSvc.Run(ctx)
	go registry.Run(ctx)
	go snapshotSvc.Run(ctx)

	router := handler.NewRouter(hub, registry, cursorSvc, lockSvc, feedSvc, snapshotSvc, inviteSvc)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Lawha collaboration backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
