package commands

import (
	"context"
	"errors"

	"github.com/JojoWeyn/transcriber/internal/domain/usecase"
	"github.com/JojoWeyn/transcriber/internal/transcriber"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

// WorkerAction runs Worker.Concurrency consumers against the configured queue.
func WorkerAction(ctx context.Context, cmd *cli.Command) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	defer ac.Close()

	if err := ac.connectStreams(ctx); err != nil {
		return err
	}
	cfg := ac.Config
	if cfg.OpenAI.APIKey == "" {
		return errors.New("OPENAI_API_KEY is required for the worker")
	}

	backend := transcriber.NewOpenAI(transcriber.OpenAIConfig{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
	})
	worker := usecase.NewWorkerUseCase(ac.Records, ac.Audio, ac.Progress, backend, cfg.Worker.PollTimeout)

	ac.Logger.Info("worker started", "concurrency", cfg.Worker.Concurrency, "queue", cfg.Queue.Driver)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Worker.Concurrency; i++ {
		g.Go(func() error {
			return worker.Run(gctx, ac.Queue)
		})
	}
	err = g.Wait()
	ac.Logger.Info("worker stopped")
	return err
}
