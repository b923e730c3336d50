package main

import (
	"context"
	"errors"
	"os"

	"montaxi/internal/amqp"
	"montaxi/internal/cli"
	"montaxi/internal/log"
	gsheet "montaxi/internal/sheets/google"
	"montaxi/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(nil, log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg, log.ComponentWorker)

	if err := cfg.ValidateMirror(); err != nil {
		logger.Error("Mirror configuration invalid", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Starting montaxi-worker", log.FieldOperation, log.OpStartup)

	backend := cli.OpenBackend(context.Background(), logger, cfg)
	defer backend.Cleanup()

	sheetsClient, err := gsheet.New(context.Background(), gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		CredentialsFile: cfg.GoogleServiceAccountFile,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirror := worker.NewMirrorWorker(backend.Store, sheetsClient, cfg.SheetsTabPrefix, logger)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	// Changes made while the worker was down never produced a message.
	if err := mirror.MirrorAll(ctx); err != nil {
		logger.Error("Startup mirror failed", log.FieldError, err)
	}

	go func() {
		err := amqpClient.ConsumeWithRetry(ctx, mirror.HandleRecordChange)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption stopped", log.FieldError, err)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
