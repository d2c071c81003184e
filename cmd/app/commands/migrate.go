package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

func MigrateAction(ctx context.Context, cmd *cli.Command) error {
	ac, err := newAppContext(cmd)
	if err != nil {
		return err
	}
	defer ac.Close()

	if err := ac.Records.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	ac.Logger.Info("migration complete")
	return nil
}
