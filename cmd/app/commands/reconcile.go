package commands

import (
	"context"
	"fmt"

	"github.com/JojoWeyn/transcriber/internal/domain/usecase"
	"github.com/urfave/cli/v3"
)

// ReconcileAction re-enqueues queued records older than --older-than.
func ReconcileAction(ctx context.Context, cmd *cli.Command) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	defer ac.Close()

	if err := ac.connectStreams(ctx); err != nil {
		return err
	}

	n, err := usecase.NewReconcileUseCase(ac.Records, ac.Queue).
		RequeueStale(ctx, cmd.Duration("older-than"), cmd.Int("limit"))
	if err != nil {
		return err
	}
	fmt.Printf("re-enqueued %d transcription(s)\n", n)
	return nil
}
