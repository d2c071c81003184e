package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/JojoWeyn/transcriber/cmd/app/commands"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envFlag := &cli.StringFlag{
		Name:  "env",
		Usage: "path to an env file",
		Value: ".env.local",
	}

	app := &cli.Command{
		Name:  "transcriber",
		Usage: "audio transcription intake, worker and status stream",
		Flags: []cli.Flag{envFlag},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API: submissions, records and live status",
				Action: commands.ServeAction,
			},
			{
				Name:   "worker",
				Usage:  "consume the job queue and transcribe artifacts",
				Action: commands.WorkerAction,
			},
			{
				Name:   "migrate",
				Usage:  "create or update the transcription table",
				Action: commands.MigrateAction,
			},
			{
				Name:  "reconcile",
				Usage: "re-enqueue transcriptions stuck in queued",
				Flags: []cli.Flag{
					&cli.DurationFlag{
						Name:     "older-than",
						Usage:    "only records not updated within this window",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "maximum records to re-enqueue",
						Value: 100,
					},
				},
				Action: commands.ReconcileAction,
			},
		},
	}

	if err := app.Run(ctx, os.Args); err != nil {
		stop()
		log.Fatalf("transcriber: %v", err)
	}
}
