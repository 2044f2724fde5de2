package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	myhttp "github.com/hasanulhasan/url-shortify-backend/internal/api/http"
	"github.com/hasanulhasan/url-shortify-backend/internal/config"
	repo "github.com/hasanulhasan/url-shortify-backend/internal/database/postgres"
	"github.com/hasanulhasan/url-shortify-backend/internal/service"
	"github.com/hasanulhasan/url-shortify-backend/pkg/postgres"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		panic(err)
	}
}

func run(ctx context.Context) error {
	const op = "main.run"

	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	logger := httplog.NewLogger("url-shortify", httplog.Options{
		JSON:     cfg.Env == config.EnvProd,
		LogLevel: slog.LevelInfo,
		Concise:  cfg.Env != config.EnvProd,
	})

	db, err := postgres.New(ctx, cfg.Postgres.DSN(),
		postgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
		postgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
		postgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
		postgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
	)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.RunMigrations("file://migrations", cfg.Postgres.DSN()); err != nil {
		return err
	}

	linkRepo := repo.NewLinkRepository(db)
	quotaRepo := repo.NewQuotaRepository(db)

	recorder := service.NewClickRecorder(linkRepo, logger.Logger, service.RecorderConfig{
		BufferSize:   cfg.ClickRecorder.BufferSize,
		Workers:      cfg.ClickRecorder.Workers,
		WriteTimeout: cfg.ClickRecorder.WriteTimeout,
	})

	urlSvc := service.NewURLService(linkRepo, quotaRepo, recorder, logger.Logger, service.Config{
		ShortCodeLength: cfg.ShortCode.Length,
		MaxAttempts:     cfg.ShortCode.MaxAttempts,
		QuotaLimits:     cfg.Quotas,
	})

	r := myhttp.NewRouter(logger, urlSvc, cfg.BaseURL, []byte(cfg.JWTSecret))

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        r,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		// Queued click events are flushed once no request can enqueue more.
		recorder.Close()

		return nil
	})

	return g.Wait()
}
