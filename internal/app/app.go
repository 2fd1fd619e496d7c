// Package app wires the chat server together: storage, presence, the
// socket gateway, the REST surface, the expiry sweeper and the HTTP
// listener, with a single lifecycle from New to shutdown.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"m5chat/internal/sweeper"
	"m5chat/pkg/api"
	"m5chat/pkg/blob"
	"m5chat/pkg/config"
	"m5chat/pkg/gateway"
	"m5chat/pkg/logger"
	"m5chat/pkg/presence"
	"m5chat/pkg/state"
	"m5chat/pkg/store"
)

// App encapsulates the server components and lifecycle.
type App struct {
	cfg     *config.Config
	version string

	st      *store.Store
	blobs   *blob.FS
	tracker *presence.Tracker
	gw      *gateway.Gateway
	rest    *api.API
	sweep   *sweeper.Sweeper

	srv *http.Server
}

// New opens the store and attachment directory and builds every
// component. It does not listen or start the sweeper; call Run for that.
func New(cfg *config.Config, version string) (*App, error) {
	_ = godotenv.Load(".env")

	if err := state.EnsureStateDirs(cfg.DBPath()); err != nil {
		return nil, fmt.Errorf("failed to prepare state dirs under %s: %w", cfg.DBPath(), err)
	}
	st, err := store.Open(cfg.DBPath(), cfg.TTL())
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", cfg.DBPath(), err)
	}
	blobs, err := blob.New(cfg.UploadDir(), cfg.MaxUploadBytes())
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	tracker := presence.NewTracker()
	gw := gateway.New(st, tracker, gateway.Options{
		Greeting:       cfg.Greeting(),
		RPS:            cfg.Security.RateLimit.RPS,
		Burst:          cfg.Security.RateLimit.Burst,
		AllowedOrigins: cfg.Security.CORS.AllowedOrigins,
	})
	sw, err := sweeper.New(st, blobs, cfg.SweepInterval(), cfg.Chat.SweepCron)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &App{
		cfg:     cfg,
		version: version,
		st:      st,
		blobs:   blobs,
		tracker: tracker,
		gw:      gw,
		rest:    api.New(st, tracker, gw, blobs, cfg.MaxUploadBytes()),
		sweep:   sw,
	}, nil
}

// Run starts the sweeper and the HTTP server and blocks until ctx is
// cancelled or a fatal server error occurs. The store closes on return.
func (a *App) Run(ctx context.Context) error {
	stopSweep := a.sweep.Start(ctx)
	defer stopSweep()

	a.printBanner()
	errCh := a.startHTTP()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.srv.Shutdown(shCtx); err != nil {
			logger.Warn("http_shutdown_failed", "error", err)
		}
		<-errCh
		err := a.st.Close()
		logger.Info("server_stopped")
		return err
	case err := <-errCh:
		_ = a.st.Close()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
