package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "github.com/mind-engage/labeld/internal/api/http"
	auth "github.com/mind-engage/labeld/internal/auth/middleware"
	"github.com/mind-engage/labeld/internal/client"
	"github.com/mind-engage/labeld/internal/config"
	"github.com/mind-engage/labeld/internal/db"
	"github.com/mind-engage/labeld/internal/labeling"
	"github.com/mind-engage/labeld/internal/session"
	storage "github.com/mind-engage/labeld/internal/storage"
	syncx "github.com/mind-engage/labeld/internal/sync"
	"github.com/mind-engage/labeld/internal/wizard"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- DB ---
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dbh, err := db.Open(openCtx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		slog.Error("db open failed", "error", err, "driver", cfg.DBDriver)
		os.Exit(1)
	}
	defer dbh.Close()

	// --- Upstream dataset backend ---
	up, err := client.New(client.Config{BaseURL: cfg.UpstreamURL, Timeout: cfg.UpstreamTimeout})
	if err != nil {
		slog.Error("upstream client", "error", err)
		os.Exit(1)
	}

	bs, err := storage.NewFSStore(cfg.BlobBasePath)
	if err != nil {
		slog.Error("blob store", "error", err)
		os.Exit(1)
	}

	srv := &api.Server{
		DB:       dbh,
		Upstream: up,
		Auth:     auth.NewAuthService(cfg.AuthHMACSecret, cfg.SessionTTL),
		Sessions: session.NewStore(dbh, cfg.SessionTTL),
		Desk:     labeling.NewDesk(),
		Wizards:  wizard.NewRegistry(),
		Blobs:    bs,
		Events:   syncx.NewEventRepo(dbh),
		LocalLogin: auth.LocalLoginConfig{
			Enabled:       cfg.EnableLocalAuth,
			AdminUser:     cfg.AdminUser,
			AdminPassHash: cfg.AdminPassHash,
		},
		CORSOrigins: cfg.CORSOrigins(),
	}

	go sweepSessions(ctx, srv)

	hs := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}()

	slog.Info("labeld listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode, "upstream", cfg.UpstreamURL)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func sweepSessions(ctx context.Context, srv *api.Server) {
	t := time.NewTicker(10 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := srv.SweepSessions(ctx)
			if err != nil {
				slog.Warn("session sweep failed", "error", err)
			}
			if n > 0 {
				slog.Info("expired sessions removed", "count", n)
			}
		}
	}
}
