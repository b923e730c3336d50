package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"montaxi/internal/amqp"
	"montaxi/internal/calc"
	"montaxi/internal/cli"
	apphttp "montaxi/internal/http"
	"montaxi/internal/log"
	"montaxi/internal/services"
	"montaxi/internal/settings"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(nil, log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger(cfg, log.ComponentApp)

	policy, err := calc.ParseWithholdingPolicy(cfg.WithholdingPolicy)
	if err != nil {
		logger.Error("Invalid withholding policy", log.FieldError, err)
		os.Exit(1)
	}

	backend := cli.OpenBackend(context.Background(), logger, cfg)
	st := settings.Open(cfg.SettingsPath, logger)

	// The mirror is optional: without a broker records are still saved.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, spreadsheet mirror disabled", log.FieldError, err)
		} else {
			publisher = client
		}
	}

	ledger := services.NewLedgerService(backend.Store, st, policy, publisher, logger)
	srv := apphttp.NewServer(":"+cfg.Port, ledger, logger)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := ledger.Close(); err != nil {
			logger.Error("Failed to close ledger", log.FieldError, err)
		}
	})

	logger.Info("Starting montaxi server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"withholding_policy", string(policy),
		log.FieldOperation, log.OpStartup,
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
