package services

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/aggregate"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// StatsService answers per-category income and expense statistics.
type StatsService struct {
	storage *storage.SQLiteRepository
	logger  *log.Logger
}

func NewStatsService(storage *storage.SQLiteRepository, logger *log.Logger) *StatsService {
	return &StatsService{storage: storage, logger: logger.WithComponent(log.ComponentStatistics)}
}

// StatsQuery selects the window and, optionally, a single type. Month 0
// means the whole year.
type StatsQuery struct {
	Year  int
	Month int
	Type  core.TransactionType
}

// TypeBreakdown is the per-category detail of one transaction type.
type TypeBreakdown struct {
	Type        core.TransactionType      `json:"type"`
	TotalAmount core.Money                `json:"total_amount"`
	Percentage  float64                   `json:"percentage"`
	Details     []aggregate.CategoryShare `json:"details"`
}

// TypedStats is the answer when a type was requested.
type TypedStats struct {
	Type      core.TransactionType
	Total     core.Money
	Breakdown []TypeBreakdown
}

// MarshalJSON nests the figures under "data", keying the total by type.
func (s TypedStats) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"data": map[string]any{
			"total_" + string(s.Type): s.Total,
			"breakdown_by_type":       s.Breakdown,
		},
	})
}

// Summary is the income/expense overview.
type Summary struct {
	TotalIncome  core.Money `json:"total_income"`
	TotalExpense core.Money `json:"total_expense"`
	NetBalance   core.Money `json:"net_balance"`
}

// OverallStats is the answer when no type was requested.
type OverallStats struct {
	Summary          Summary         `json:"summary"`
	IncomeBreakdown  []TypeBreakdown `json:"income_breakdown"`
	ExpenseBreakdown []TypeBreakdown `json:"expense_breakdown"`
}

// Monthly requires a month.
func (s *StatsService) Monthly(ctx context.Context, userID string, q StatsQuery) (any, error) {
	if q.Month == 0 {
		return nil, core.Validationf("Query parameter month is required for monthly statistics")
	}
	return s.stats(ctx, userID, q)
}

// Yearly narrows to a month when one is given.
func (s *StatsService) Yearly(ctx context.Context, userID string, q StatsQuery) (any, error) {
	return s.stats(ctx, userID, q)
}

func (s *StatsService) stats(ctx context.Context, userID string, q StatsQuery) (any, error) {
	w, err := statsWindow(q)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With(log.FieldUserID, userID, log.FieldYear, q.Year, log.FieldMonth, q.Month)

	if q.Type != "" {
		if !q.Type.Valid() {
			return nil, core.Validationf("Type must be income or expense")
		}
		b, err := s.breakdown(ctx, userID, q.Type, w)
		if err != nil {
			return nil, err
		}
		logger.DebugContext(ctx, "Typed statistics computed", log.FieldType, q.Type)
		total := core.Money{}
		for _, t := range b {
			total = total.Add(t.TotalAmount)
		}
		return TypedStats{Type: q.Type, Total: total, Breakdown: b}, nil
	}

	var income, expense []TypeBreakdown
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		income, err = s.breakdown(gctx, userID, core.Income, w)
		return err
	})
	g.Go(func() error {
		var err error
		expense, err = s.breakdown(gctx, userID, core.Expense, w)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := OverallStats{IncomeBreakdown: income, ExpenseBreakdown: expense}
	for _, b := range income {
		out.Summary.TotalIncome = out.Summary.TotalIncome.Add(b.TotalAmount)
	}
	for _, b := range expense {
		out.Summary.TotalExpense = out.Summary.TotalExpense.Add(b.TotalAmount)
	}
	out.Summary.NetBalance = out.Summary.TotalIncome.Sub(out.Summary.TotalExpense)
	logger.DebugContext(ctx, "Overall statistics computed")
	return out, nil
}

// breakdown returns at most one group: the type's categories, or nothing
// when the window holds no matching transactions.
func (s *StatsService) breakdown(ctx context.Context, userID string, typ core.TransactionType, w aggregate.Window) ([]TypeBreakdown, error) {
	totals, err := s.storage.CategoryTotals(ctx, userID, typ, w.Start, w.End)
	if err != nil {
		return nil, storageError(err, "")
	}
	if len(totals) == 0 {
		return []TypeBreakdown{}, nil
	}
	total, shares := aggregate.Breakdown(totals)
	return []TypeBreakdown{{
		Type:        typ,
		TotalAmount: total,
		Percentage:  aggregate.Share(total, total),
		Details:     shares,
	}}, nil
}

func statsWindow(q StatsQuery) (aggregate.Window, error) {
	if q.Year < 1 {
		return aggregate.Window{}, core.Validationf("Query parameter year is required")
	}
	if q.Month == 0 {
		return aggregate.YearWindow(q.Year), nil
	}
	if q.Month < 1 || q.Month > 12 {
		return aggregate.Window{}, core.Validationf("Month must be between 1 and 12")
	}
	return aggregate.MonthWindow(q.Year, time.Month(q.Month)), nil
}
