package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/amqp"
	"fintrack/internal/log"
	"fintrack/internal/mail"
	"fintrack/internal/report"
	"fintrack/internal/storage"
)

// ExportWorker turns export jobs into emailed CSV reports.
type ExportWorker struct {
	storage  *storage.SQLiteRepository
	mailer   mail.Sender
	renderer *report.Renderer
	logger   *log.Logger
}

func NewExportWorker(storage *storage.SQLiteRepository, mailer mail.Sender, renderer *report.Renderer, logger *log.Logger) *ExportWorker {
	return &ExportWorker{
		storage:  storage,
		mailer:   mailer,
		renderer: renderer,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleExportJob builds and mails one user's report. Jobs for unknown users
// and users without transactions are dropped without error.
func (w *ExportWorker) HandleExportJob(ctx context.Context, msg *amqp.ExportJobMessage) error {
	logger := w.logger.With(log.FieldUserID, msg.UserID, log.FieldOperation, log.OpExport)
	start := time.Now()

	user, err := w.storage.GetUserByID(ctx, msg.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		logger.ErrorContext(ctx, "User not found, dropping export job")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	txs, err := w.storage.ListTransactions(ctx, storage.TransactionFilter{UserID: user.ID, Ascending: true})
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	if len(txs) == 0 {
		logger.InfoContext(ctx, "No transactions, nothing to export")
		return nil
	}
	budgets, err := w.storage.ListBudgets(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("load budgets: %w", err)
	}

	content, err := w.renderer.Render(txs, budgets)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	msgOut, err := mail.ReportMessage(user.Email, user.Name, mail.Attachment{Name: report.FileName, Content: content})
	if err != nil {
		return err
	}
	if err := w.mailer.Send(ctx, msgOut); err != nil {
		return fmt.Errorf("send report: %w", err)
	}

	logger.InfoContext(ctx, "Report sent",
		"transactions", len(txs),
		"budgets", len(budgets),
		"bytes", len(content),
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// Summary returns the all-time figures for userID.
func (w *ExportWorker) Summary(ctx context.Context, userID string) (report.Summary, error) {
	txs, err := w.storage.ListTransactions(ctx, storage.TransactionFilter{UserID: userID})
	if err != nil {
		return report.Summary{}, fmt.Errorf("load transactions: %w", err)
	}
	return report.Summarize(txs), nil
}

