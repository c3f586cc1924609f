package main

import (
	"context"
	"errors"
	"os"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/report"
	"fintrack/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig("worker", (*config.Config).ValidateWorker)
	logger.Info("Starting fintrack-worker", "queue", cfg.AMQPQueue)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	mailer, err := cli.NewMailer(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize mail sender", log.FieldError, err)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	exporter := worker.NewExportWorker(repo, mailer, report.NewRenderer(cfg.ReportCurrency), logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	if err := client.ConsumeExportJobs(ctx, exporter.HandleExportJob); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	<-done
	logger.Info("Worker stopped gracefully")
}
