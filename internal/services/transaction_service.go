package services

import (
	"context"
	"strings"
	"time"

	"fintrack/internal/aggregate"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// ExportPublisher enqueues report exports for the worker.
type ExportPublisher interface {
	PublishExportJob(ctx context.Context, userID string) error
}

// TransactionService records income and expense entries. Categories named
// on create are resolved per owner and created on first use.
type TransactionService struct {
	storage   *storage.SQLiteRepository
	publisher ExportPublisher
	logger    *log.Logger
	now       func() time.Time
}

func NewTransactionService(storage *storage.SQLiteRepository, publisher ExportPublisher, logger *log.Logger) *TransactionService {
	return &TransactionService{
		storage:   storage,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentTransaction),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// TransactionInput carries create fields and, as pointers, partial updates.
// Date accepts RFC 3339 or YYYY-MM-DD.
type TransactionInput struct {
	Category    *string     `json:"category"`
	Amount      *core.Money `json:"amount"`
	Type        *string     `json:"type"`
	Description *string     `json:"description"`
	Date        *string     `json:"date"`
}

// ListQuery selects a period. Zero Year and Month list everything; a Month
// without a Year means that month of the current year.
type ListQuery struct {
	Year  int
	Month int
}

func (s *TransactionService) Create(ctx context.Context, userID string, in TransactionInput) (core.Transaction, error) {
	name := strings.TrimSpace(deref(in.Category))
	if name == "" {
		return core.Transaction{}, core.Validationf("Category is required")
	}
	typ, err := core.ParseTransactionType(deref(in.Type))
	if err != nil {
		return core.Transaction{}, core.Validationf("Type must be income or expense")
	}
	t := core.Transaction{
		UserID:      userID,
		Amount:      deref(in.Amount),
		Type:        typ,
		Description: strings.TrimSpace(deref(in.Description)),
	}
	if in.Date != nil && *in.Date != "" {
		if t.Date, err = parseDate(*in.Date); err != nil {
			return core.Transaction{}, err
		}
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, transactionValidation(err)
	}

	category, err := s.resolveCategory(ctx, userID, name, typ)
	if err != nil {
		return core.Transaction{}, err
	}
	t.CategoryID = category.ID
	t.Category = category.Name

	if err := s.storage.CreateTransaction(ctx, &t); err != nil {
		return core.Transaction{}, storageError(err, "Transaction not found")
	}

	s.logger.InfoContext(ctx, "Transaction created",
		log.NewFields().
			WithUser(userID).
			WithTransaction(t.ID, t.Category, string(t.Type), t.Amount.String()).
			ToSlice()...)
	return t, nil
}

// resolveCategory finds or creates the owner's category and checks that its
// type agrees with the transaction.
func (s *TransactionService) resolveCategory(ctx context.Context, userID, name string, typ core.TransactionType) (core.Category, error) {
	category, _, err := s.storage.FindOrCreateCategory(ctx, userID, name, typ)
	if err != nil {
		return core.Category{}, storageError(err, "Category not found")
	}
	if category.Type != typ {
		return core.Category{}, core.Validationf("Category %q is a %s category, transaction type must match", category.Name, category.Type)
	}
	return category, nil
}

// List returns the owner's transactions for the period, grouped by day.
func (s *TransactionService) List(ctx context.Context, userID string, q ListQuery) ([]aggregate.DayGroup, error) {
	filter := storage.TransactionFilter{UserID: userID}
	if q.Month != 0 && (q.Month < 1 || q.Month > 12) {
		return nil, core.Validationf("Month must be between 1 and 12")
	}
	if q.Year < 0 {
		return nil, core.Validationf("Year must be a positive number")
	}
	switch {
	case q.Month != 0:
		year := q.Year
		if year == 0 {
			year = s.now().Year()
		}
		w := aggregate.MonthWindow(year, time.Month(q.Month))
		filter.From, filter.To = w.Start, w.End
	case q.Year != 0:
		w := aggregate.YearWindow(q.Year)
		filter.From, filter.To = w.Start, w.End
	}

	txs, err := s.storage.ListTransactions(ctx, filter)
	if err != nil {
		return nil, storageError(err, "")
	}
	return aggregate.GroupByDay(txs), nil
}

func (s *TransactionService) Get(ctx context.Context, userID, id string) (core.Transaction, error) {
	t, err := s.storage.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, storageError(err, "Transaction not found")
	}
	if err := owned(t.UserID, userID, "transaction"); err != nil {
		return core.Transaction{}, err
	}
	return t, nil
}

// Update merges the non-nil fields of in. A new category name is resolved
// like on create; a type change must still agree with the category.
func (s *TransactionService) Update(ctx context.Context, userID, id string, in TransactionInput) (core.Transaction, error) {
	t, err := s.Get(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if in.Amount != nil {
		t.Amount = *in.Amount
	}
	if in.Description != nil {
		t.Description = strings.TrimSpace(*in.Description)
	}
	if in.Date != nil {
		if t.Date, err = parseDate(*in.Date); err != nil {
			return core.Transaction{}, err
		}
	}
	typeChanged := false
	if in.Type != nil {
		typ, err := core.ParseTransactionType(*in.Type)
		if err != nil {
			return core.Transaction{}, core.Validationf("Type must be income or expense")
		}
		typeChanged = typ != t.Type
		t.Type = typ
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, transactionValidation(err)
	}

	switch {
	case in.Category != nil:
		name := strings.TrimSpace(*in.Category)
		if name == "" {
			return core.Transaction{}, core.Validationf("Category is required")
		}
		category, err := s.resolveCategory(ctx, userID, name, t.Type)
		if err != nil {
			return core.Transaction{}, err
		}
		t.CategoryID, t.Category = category.ID, category.Name
	case typeChanged:
		category, err := s.storage.GetCategory(ctx, t.CategoryID)
		if err != nil {
			return core.Transaction{}, storageError(err, "Category not found")
		}
		if category.Type != t.Type {
			return core.Transaction{}, core.Validationf("Category %q is a %s category, transaction type must match", category.Name, category.Type)
		}
	}

	if err := s.storage.UpdateTransaction(ctx, &t); err != nil {
		return core.Transaction{}, storageError(err, "Transaction not found")
	}
	s.logger.InfoContext(ctx, "Transaction updated", log.FieldUserID, userID, log.FieldEntityID, id)
	return t, nil
}

func (s *TransactionService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.storage.DeleteTransaction(ctx, id); err != nil {
		return storageError(err, "Transaction not found")
	}
	s.logger.InfoContext(ctx, "Transaction deleted", log.FieldUserID, userID, log.FieldEntityID, id)
	return nil
}

// RequestExport queues a CSV report to be emailed to the user.
func (s *TransactionService) RequestExport(ctx context.Context, userID string) error {
	if s.publisher == nil {
		s.logger.WarnContext(ctx, "AMQP client not available, export not queued", log.FieldUserID, userID)
		return core.Internal("export queue unavailable", nil)
	}
	if err := s.publisher.PublishExportJob(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish export job", log.FieldUserID, userID, log.FieldError, err)
		return core.Internal("export queue unavailable", err)
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, core.Validationf("Invalid date %q, expected YYYY-MM-DD or RFC 3339", s)
}

func transactionValidation(err error) error {
	switch err {
	case core.ErrInvalidAmount:
		return core.Validationf("Amount must be greater than zero")
	case core.ErrInvalidType:
		return core.Validationf("Type must be income or expense")
	default:
		return validationError(err)
	}
}
