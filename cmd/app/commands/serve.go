package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	v1 "github.com/JojoWeyn/transcriber/internal/controller/http/v1"
	"github.com/JojoWeyn/transcriber/internal/domain/usecase"
	"github.com/JojoWeyn/transcriber/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// ServeAction runs the intake API and the live status bridge.
func ServeAction(ctx context.Context, cmd *cli.Command) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	defer ac.Close()

	if err := ac.connectStreams(ctx); err != nil {
		return err
	}
	cfg := ac.Config

	retry := usecase.DefaultRetryPolicy()
	retry.MaxAttempts = cfg.Intake.RetryAttempts

	intake := usecase.NewIntakeUseCase(ac.Audio, ac.Records, ac.Queue, cfg.Intake.MaxAudioBytes, retry)
	status := usecase.NewStatusUseCase(ac.Progress, ac.Records, cfg.Stream.GracePeriod)
	handler := v1.NewTranscriptionHandler(intake, status, ac.Audio, cfg.S3.URLExpiry, cfg.Intake.MaxAudioBytes)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())
	r.GET("/healthz", v1.Health)

	api := r.Group("/api/v1")
	api.Use(middleware.TokenAuthMiddleware(cfg.Auth.Tokens))
	v1.RegisterRoutes(api, handler, middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RedisClient: ac.Redis,
		Limit:       cfg.Limit.Limit,
		Window:      cfg.Limit.Window,
		KeyPrefix:   "rl:transcriptions:",
	}))

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ac.Logger.Info("http server started", "addr", srv.Addr, "queue", cfg.Queue.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		ac.Logger.Info("shutting down http server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
