// Package aggregate turns raw budgets and transactions into the rollups the
// API reports: monthly spend against limits, per-category breakdowns and
// day-grouped transaction lists. Everything here is pure; callers load the
// data and pass it in.
package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// MonthWindow covers one calendar month in UTC.
func MonthWindow(year int, month time.Month) Window {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(0, 1, 0)}
}

// YearWindow covers one calendar year in UTC.
func YearWindow(year int) Window {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(1, 0, 0)}
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Overlaps reports whether [start, end) intersects the window.
func (w Window) Overlaps(start, end time.Time) bool {
	return start.Before(w.End) && end.After(w.Start)
}

var hundred = decimal.NewFromInt(100)

// RemainingPercentage is remaining/limit*100, unrounded, and 0 for a zero limit.
func RemainingPercentage(remaining, limit core.Money) float64 {
	if limit.Cents == 0 {
		return 0
	}
	f, _ := decimal.NewFromInt(remaining.Cents).Mul(hundred).Div(decimal.NewFromInt(limit.Cents)).Float64()
	return f
}

// Share is part/whole*100 rounded to two decimals, and 0 for a zero whole.
func Share(part, whole core.Money) float64 {
	if whole.Cents == 0 {
		return 0
	}
	f, _ := decimal.NewFromInt(part.Cents).Mul(hundred).DivRound(decimal.NewFromInt(whole.Cents), 2).Float64()
	return f
}

// Usage derives spend figures for b from txs. Only expense transactions of
// the budget's category dated inside the budget period count.
func Usage(b core.Budget, txs []core.Transaction) core.BudgetUsage {
	var spent core.Money
	for _, t := range txs {
		if t.Type == core.Expense && t.CategoryID == b.CategoryID && b.Covers(t.Date) {
			spent = spent.Add(t.Amount)
		}
	}
	remaining := b.AmountLimit.Sub(spent)
	return core.BudgetUsage{
		Budget:          b,
		SpentAmount:     spent,
		RemainingAmount: remaining,
		Percentage:      RemainingPercentage(remaining, b.AmountLimit),
	}
}

// BudgetReport is the monthly spend-versus-limit rollup.
type BudgetReport struct {
	TotalBudget  core.Money         `json:"totalBudget"`
	TotalExpense core.Money         `json:"totalExpense"`
	Budgets      []core.BudgetUsage `json:"budgets"`
}

// MonthlyBudgetReport rolls budgets overlapping w up against the
// transactions dated inside w. Spend is measured over the window, not over
// each budget's own period.
func MonthlyBudgetReport(w Window, budgets []core.Budget, txs []core.Transaction) BudgetReport {
	spentByCategory := make(map[string]core.Money)
	var report BudgetReport
	for _, t := range txs {
		if !w.Contains(t.Date) || t.Type != core.Expense {
			continue
		}
		report.TotalExpense = report.TotalExpense.Add(t.Amount)
		spentByCategory[t.CategoryID] = spentByCategory[t.CategoryID].Add(t.Amount)
	}

	report.Budgets = []core.BudgetUsage{}
	for _, b := range budgets {
		if !w.Overlaps(b.StartDate, b.EndDate) {
			continue
		}
		report.TotalBudget = report.TotalBudget.Add(b.AmountLimit)
		spent := spentByCategory[b.CategoryID]
		remaining := b.AmountLimit.Sub(spent)
		report.Budgets = append(report.Budgets, core.BudgetUsage{
			Budget:          b,
			SpentAmount:     spent,
			RemainingAmount: remaining,
			Percentage:      RemainingPercentage(remaining, b.AmountLimit),
		})
	}
	return report
}

// CategoryShare is one line of a breakdown.
type CategoryShare struct {
	CategoryName string     `json:"category_name"`
	TotalAmount  core.Money `json:"total_amount"`
	Percentage   float64    `json:"percentage"`
}

// Breakdown computes each category's share of the total, largest first.
// Ties keep their input order.
func Breakdown(totals []core.CategoryAmount) (core.Money, []CategoryShare) {
	var total core.Money
	for _, t := range totals {
		total = total.Add(t.Amount)
	}

	shares := make([]CategoryShare, 0, len(totals))
	for _, t := range totals {
		shares = append(shares, CategoryShare{
			CategoryName: t.Name,
			TotalAmount:  t.Amount,
			Percentage:   Share(t.Amount, total),
		})
	}
	sort.SliceStable(shares, func(i, j int) bool {
		return shares[i].TotalAmount.Cents > shares[j].TotalAmount.Cents
	})
	return total, shares
}

// DayGroup holds one calendar day of transactions.
type DayGroup struct {
	Date         string             `json:"date"`
	TotalIncome  core.Money         `json:"totalIncome"`
	TotalExpense core.Money         `json:"totalExpense"`
	Transactions []core.Transaction `json:"transactions"`
}

// GroupByDay buckets txs by UTC calendar day, newest day first. Within a day
// transactions keep their input order.
func GroupByDay(txs []core.Transaction) []DayGroup {
	index := make(map[string]int)
	groups := []DayGroup{}
	for _, t := range txs {
		key := t.Date.UTC().Format(time.DateOnly)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, DayGroup{Date: key, Transactions: []core.Transaction{}})
		}
		g := &groups[i]
		switch t.Type {
		case core.Income:
			g.TotalIncome = g.TotalIncome.Add(t.Amount)
		case core.Expense:
			g.TotalExpense = g.TotalExpense.Add(t.Amount)
		}
		g.Transactions = append(g.Transactions, t)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Date > groups[j].Date
	})
	return groups
}

// Totals sums txs by type.
func Totals(txs []core.Transaction) (income, expense core.Money) {
	for _, t := range txs {
		switch t.Type {
		case core.Income:
			income = income.Add(t.Amount)
		case core.Expense:
			expense = expense.Add(t.Amount)
		}
	}
	return income, expense
}

// ExpenseByCategory sums expense amounts per category name, largest first.
func ExpenseByCategory(txs []core.Transaction) []core.CategoryAmount {
	index := make(map[string]int)
	out := []core.CategoryAmount{}
	for _, t := range txs {
		if t.Type != core.Expense {
			continue
		}
		i, ok := index[t.Category]
		if !ok {
			i = len(out)
			index[t.Category] = i
			out = append(out, core.CategoryAmount{Name: t.Category})
		}
		out[i].Amount = out[i].Amount.Add(t.Amount)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Amount.Cents > out[j].Amount.Cents })
	return out
}
