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

// BudgetService manages spending limits and reports usage against them.
type BudgetService struct {
	storage *storage.SQLiteRepository
	logger  *log.Logger
	now     func() time.Time
}

func NewBudgetService(storage *storage.SQLiteRepository, logger *log.Logger) *BudgetService {
	return &BudgetService{
		storage: storage,
		logger:  logger.WithComponent(log.ComponentBudget),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// BudgetInput carries create fields and, as pointers, partial updates.
type BudgetInput struct {
	Category    *string     `json:"category"`
	AmountLimit *core.Money `json:"amountLimit"`
	StartDate   *string     `json:"startDate"`
	EndDate     *string     `json:"endDate"`
}

// BudgetDetail is a budget with its usage and the transactions counted
// against it.
type BudgetDetail struct {
	core.BudgetUsage
	Transactions []core.Transaction `json:"transactions"`
}

// Create stores a budget for an existing category. The period defaults to
// one month starting now.
func (s *BudgetService) Create(ctx context.Context, userID string, in BudgetInput) (core.Budget, error) {
	name := strings.TrimSpace(deref(in.Category))
	if name == "" {
		return core.Budget{}, core.Validationf("Category is required")
	}
	b := core.Budget{UserID: userID, AmountLimit: deref(in.AmountLimit)}
	if b.AmountLimit.Cents <= 0 {
		return core.Budget{}, core.Validationf("Amount limit must be greater than zero")
	}

	now := s.now()
	b.StartDate, b.EndDate = now, now.AddDate(0, 1, 0)
	if err := applyPeriod(&b, in); err != nil {
		return core.Budget{}, err
	}
	if in.StartDate != nil && in.EndDate == nil {
		b.EndDate = b.StartDate.AddDate(0, 1, 0)
	}
	if err := b.Validate(); err != nil {
		return core.Budget{}, budgetValidation(err)
	}

	category, err := s.storage.GetCategoryByName(ctx, userID, name)
	if err != nil {
		return core.Budget{}, storageError(err, "Category not found")
	}
	b.CategoryID, b.Category = category.ID, category.Name

	if err := s.storage.CreateBudget(ctx, &b); err != nil {
		return core.Budget{}, storageError(err, "Budget not found")
	}
	s.logger.InfoContext(ctx, "Budget created",
		log.FieldUserID, userID,
		log.FieldEntityID, b.ID,
		log.FieldCategory, b.Category,
		log.FieldAmount, b.AmountLimit.String())
	return b, nil
}

func (s *BudgetService) List(ctx context.Context, userID string) ([]core.Budget, error) {
	budgets, err := s.storage.ListBudgets(ctx, userID)
	if err != nil {
		return nil, storageError(err, "")
	}
	return budgets, nil
}

func (s *BudgetService) get(ctx context.Context, userID, id string) (core.Budget, error) {
	b, err := s.storage.GetBudget(ctx, id)
	if err != nil {
		return core.Budget{}, storageError(err, "Budget not found")
	}
	if err := owned(b.UserID, userID, "budget"); err != nil {
		return core.Budget{}, err
	}
	return b, nil
}

// Get returns the budget with the category's transactions inside its period.
func (s *BudgetService) Get(ctx context.Context, userID, id string) (BudgetDetail, error) {
	b, err := s.get(ctx, userID, id)
	if err != nil {
		return BudgetDetail{}, err
	}
	txs, err := s.storage.ListTransactions(ctx, storage.TransactionFilter{
		UserID:     userID,
		CategoryID: b.CategoryID,
		From:       b.StartDate,
		To:         b.EndDate,
	})
	if err != nil {
		return BudgetDetail{}, storageError(err, "")
	}
	return BudgetDetail{BudgetUsage: aggregate.Usage(b, txs), Transactions: txs}, nil
}

func (s *BudgetService) Update(ctx context.Context, userID, id string, in BudgetInput) (core.Budget, error) {
	b, err := s.get(ctx, userID, id)
	if err != nil {
		return core.Budget{}, err
	}
	if in.AmountLimit != nil {
		if in.AmountLimit.Cents < 0 {
			return core.Budget{}, core.Validationf("Amount limit cannot be negative")
		}
		b.AmountLimit = *in.AmountLimit
	}
	if err := applyPeriod(&b, in); err != nil {
		return core.Budget{}, err
	}
	if !b.EndDate.After(b.StartDate) {
		return core.Budget{}, budgetValidation(core.ErrInvalidPeriod)
	}
	if in.Category != nil {
		category, err := s.storage.GetCategoryByName(ctx, userID, *in.Category)
		if err != nil {
			return core.Budget{}, storageError(err, "Category not found")
		}
		b.CategoryID, b.Category = category.ID, category.Name
	}

	if err := s.storage.UpdateBudget(ctx, &b); err != nil {
		return core.Budget{}, storageError(err, "Budget not found")
	}
	s.logger.InfoContext(ctx, "Budget updated", log.FieldUserID, userID, log.FieldEntityID, id)
	return b, nil
}

func (s *BudgetService) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.storage.DeleteBudget(ctx, id); err != nil {
		return storageError(err, "Budget not found")
	}
	s.logger.InfoContext(ctx, "Budget deleted", log.FieldUserID, userID, log.FieldEntityID, id)
	return nil
}

// MonthlyReport rolls up the owner's budgets overlapping the month against
// the expenses dated in it.
func (s *BudgetService) MonthlyReport(ctx context.Context, userID string, year, month int) (aggregate.BudgetReport, error) {
	if month < 1 || month > 12 {
		return aggregate.BudgetReport{}, core.Validationf("Month must be between 1 and 12")
	}
	if year < 1 {
		return aggregate.BudgetReport{}, core.Validationf("Year must be a positive number")
	}
	w := aggregate.MonthWindow(year, time.Month(month))

	budgets, err := s.storage.ListBudgetsOverlapping(ctx, userID, w.Start, w.End)
	if err != nil {
		return aggregate.BudgetReport{}, storageError(err, "")
	}
	if len(budgets) == 0 {
		return aggregate.BudgetReport{}, core.NotFoundf("No budgets found")
	}
	txs, err := s.storage.ListTransactions(ctx, storage.TransactionFilter{
		UserID: userID,
		Type:   core.Expense,
		From:   w.Start,
		To:     w.End,
	})
	if err != nil {
		return aggregate.BudgetReport{}, storageError(err, "")
	}

	report := aggregate.MonthlyBudgetReport(w, budgets, txs)
	s.logger.DebugContext(ctx, "Monthly budget report built",
		log.FieldUserID, userID,
		log.FieldYear, year,
		log.FieldMonth, month,
		"budgets", len(report.Budgets))
	return report, nil
}

func applyPeriod(b *core.Budget, in BudgetInput) error {
	var err error
	if in.StartDate != nil {
		if b.StartDate, err = parseDate(*in.StartDate); err != nil {
			return err
		}
	}
	if in.EndDate != nil {
		if b.EndDate, err = parseDate(*in.EndDate); err != nil {
			return err
		}
	}
	return nil
}

func budgetValidation(err error) error {
	switch err {
	case core.ErrInvalidAmount:
		return core.Validationf("Amount limit must be greater than zero")
	case core.ErrInvalidPeriod:
		return core.Validationf("End date must be after start date")
	default:
		return validationError(err)
	}
}
