// Command devserver serves the generate route and the browser page over plain
// HTTP for local development.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmorgan81/pixelgen/internal/config"
	"github.com/dmorgan81/pixelgen/internal/handler"
	"github.com/dmorgan81/pixelgen/internal/inject"
	"github.com/dmorgan81/pixelgen/internal/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.New(os.Stderr, slog.LevelInfo).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := log.New(os.Stderr, cfg.LogLevel)
	baseCtx := log.NewContext(context.Background(), logger)

	injector := inject.Setup(baseCtx, cfg)
	h := do.MustInvoke[*handler.Handler](injector)

	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer)
	r.Get("/", h.ServePage)
	r.Get("/index.html", h.ServePage)
	r.Handle(handler.GeneratePath, h)
	r.Handle("/generate", h)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}

	ctx, stop := signal.NotifyContext(baseCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("dev server listening", "addr", cfg.Addr, "provider", cfg.Provider)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("dev server failed", "error", err)
	}
	_ = injector.Shutdown()
	logger.Info("dev server stopped")
}
