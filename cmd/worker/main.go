package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/lumora-sms/lumora/internal/app"
	"github.com/lumora-sms/lumora/internal/ledger"
	"github.com/lumora-sms/lumora/internal/platform/db"
	"github.com/lumora-sms/lumora/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	ledgerRepo := ledger.NewRepository(pool)
	ledgerService := ledger.NewService(ledgerRepo)

	gateway := jobs.LogGateway{Logger: logger}
	notificationHandler := jobs.NewNotificationHandler(logger, gateway)
	mirrorHandler := jobs.NewMirrorPaymentHandler(logger, ledgerService)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInvoiceGenerated, Handler: notificationHandler},
			{Type: jobs.TaskPaymentReceived, Handler: notificationHandler},
			{Type: jobs.TaskPaymentReminder, Handler: notificationHandler},
			{Type: jobs.TaskMirrorPayment, Handler: mirrorHandler},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
