package aggregate

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func money(major int64) core.Money {
	return core.NewMoney(major * 100)
}

func TestWindows(t *testing.T) {
	w := MonthWindow(2025, time.December)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), w.Start)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), w.End)
	assert.True(t, w.Contains(w.Start))
	assert.False(t, w.Contains(w.End))

	y := YearWindow(2024)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), y.End)

	assert.True(t, w.Overlaps(w.Start.AddDate(0, -1, 0), w.Start.Add(time.Hour)))
	assert.False(t, w.Overlaps(w.Start.AddDate(0, -1, 0), w.Start), "touching end does not overlap")
	assert.False(t, w.Overlaps(w.End, w.End.AddDate(0, 1, 0)))
}

func TestMonthlyBudgetReport(t *testing.T) {
	w := MonthWindow(2025, time.June)
	budgets := []core.Budget{
		{ID: "a", CategoryID: "A", AmountLimit: money(1000), StartDate: w.Start, EndDate: w.End},
		{ID: "b", CategoryID: "B", AmountLimit: money(2000), StartDate: w.Start, EndDate: w.End},
	}
	txs := []core.Transaction{
		{CategoryID: "A", Type: core.Expense, Amount: money(150), Date: day(2025, 6, 3)},
		{CategoryID: "A", Type: core.Expense, Amount: money(50), Date: day(2025, 6, 20)},
		{CategoryID: "B", Type: core.Expense, Amount: money(1000), Date: day(2025, 6, 10)},
		{CategoryID: "S", Type: core.Income, Amount: money(5000), Date: day(2025, 6, 1)},
		{CategoryID: "A", Type: core.Expense, Amount: money(999), Date: day(2025, 7, 1)},
	}

	report := MonthlyBudgetReport(w, budgets, txs)

	assert.Equal(t, money(3000), report.TotalBudget)
	assert.Equal(t, money(1200), report.TotalExpense)
	require.Len(t, report.Budgets, 2)

	a, b := report.Budgets[0], report.Budgets[1]
	assert.Equal(t, money(200), a.SpentAmount)
	assert.Equal(t, money(800), a.RemainingAmount)
	assert.Equal(t, 80.0, a.Percentage)
	assert.Equal(t, money(1000), b.RemainingAmount)
	assert.Equal(t, 50.0, b.Percentage)
}

func TestMonthlyBudgetReportSkipsBudgetsOutsideWindow(t *testing.T) {
	w := MonthWindow(2025, time.June)
	budgets := []core.Budget{
		{ID: "may", CategoryID: "A", AmountLimit: money(10), StartDate: day(2025, 5, 1), EndDate: w.Start},
	}
	report := MonthlyBudgetReport(w, budgets, nil)
	assert.Empty(t, report.Budgets)
	assert.Equal(t, core.Money{}, report.TotalBudget)
}

func TestRemainingPercentage(t *testing.T) {
	tests := []struct {
		name             string
		remaining, limit core.Money
		want             float64
	}{
		{"zero limit", money(0), money(0), 0},
		{"overspent", money(-50), money(100), -50},
		{"untouched", money(100), money(100), 100},
		{"thirds", core.NewMoney(100), core.NewMoney(300), 100.0 / 3.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RemainingPercentage(tt.remaining, tt.limit)
			assert.False(t, math.IsNaN(got) || math.IsInf(got, 0))
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestUsageCountsOnlyMatchingExpensesInPeriod(t *testing.T) {
	b := core.Budget{CategoryID: "A", AmountLimit: money(100), StartDate: day(2025, 1, 1), EndDate: day(2025, 2, 1)}
	txs := []core.Transaction{
		{CategoryID: "A", Type: core.Expense, Amount: money(30), Date: day(2025, 1, 5)},
		{CategoryID: "A", Type: core.Expense, Amount: money(30), Date: day(2025, 2, 5)},
		{CategoryID: "B", Type: core.Expense, Amount: money(30), Date: day(2025, 1, 5)},
		{CategoryID: "A", Type: core.Income, Amount: money(30), Date: day(2025, 1, 5)},
	}
	u := Usage(b, txs)
	assert.Equal(t, money(30), u.SpentAmount)
	assert.Equal(t, money(70), u.RemainingAmount)
	assert.Equal(t, 70.0, u.Percentage)
}

func TestBreakdownYearlyExpense(t *testing.T) {
	total, shares := Breakdown([]core.CategoryAmount{
		{Name: "Transport", Amount: money(50)},
		{Name: "Food", Amount: money(400)},
	})

	assert.Equal(t, money(450), total)
	require.Len(t, shares, 2)
	assert.Equal(t, CategoryShare{CategoryName: "Food", TotalAmount: money(400), Percentage: 88.89}, shares[0])
	assert.Equal(t, CategoryShare{CategoryName: "Transport", TotalAmount: money(50), Percentage: 11.11}, shares[1])
}

func TestBreakdownPercentagesSumToHundred(t *testing.T) {
	inputs := [][]core.CategoryAmount{
		{{Name: "a", Amount: core.NewMoney(1)}, {Name: "b", Amount: core.NewMoney(1)}, {Name: "c", Amount: core.NewMoney(1)}},
		{{Name: "a", Amount: core.NewMoney(12345)}, {Name: "b", Amount: core.NewMoney(678)}, {Name: "c", Amount: core.NewMoney(9)}},
		{{Name: "only", Amount: core.NewMoney(77)}},
	}
	for _, in := range inputs {
		_, shares := Breakdown(in)
		sum := 0.0
		for _, s := range shares {
			sum += s.Percentage
		}
		assert.InDelta(t, 100, sum, 0.01*float64(len(shares)))
	}
}

func TestBreakdownZeroTotal(t *testing.T) {
	total, shares := Breakdown([]core.CategoryAmount{{Name: "a"}, {Name: "b"}})
	assert.Equal(t, core.Money{}, total)
	for _, s := range shares {
		assert.Zero(t, s.Percentage)
	}

	_, empty := Breakdown(nil)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestBreakdownStableTies(t *testing.T) {
	_, shares := Breakdown([]core.CategoryAmount{
		{Name: "first", Amount: money(10)},
		{Name: "second", Amount: money(10)},
		{Name: "big", Amount: money(20)},
	})
	names := []string{shares[0].CategoryName, shares[1].CategoryName, shares[2].CategoryName}
	assert.Equal(t, []string{"big", "first", "second"}, names)
}

func TestGroupByDay(t *testing.T) {
	txs := []core.Transaction{
		{ID: "1", Type: core.Expense, Amount: money(10), Date: time.Date(2025, 6, 2, 23, 0, 0, 0, time.UTC)},
		{ID: "2", Type: core.Income, Amount: money(100), Date: time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)},
		{ID: "3", Type: core.Expense, Amount: money(5), Date: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
		{ID: "4", Type: core.Expense, Amount: money(7), Date: time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)},
	}

	groups := GroupByDay(txs)
	require.Len(t, groups, 3)
	assert.Equal(t, "2025-06-03", groups[0].Date)
	assert.Equal(t, "2025-06-02", groups[1].Date)
	assert.Equal(t, "2025-06-01", groups[2].Date)

	assert.Equal(t, money(100), groups[1].TotalIncome)
	assert.Equal(t, money(10), groups[1].TotalExpense)
	require.Len(t, groups[1].Transactions, 2)
	assert.Equal(t, "1", groups[1].Transactions[0].ID)

	assert.Empty(t, GroupByDay(nil))
}

func TestTotalsAndExpenseByCategory(t *testing.T) {
	txs := []core.Transaction{
		{Category: "Salary", Type: core.Income, Amount: money(1000)},
		{Category: "Food", Type: core.Expense, Amount: money(40)},
		{Category: "Rent", Type: core.Expense, Amount: money(500)},
		{Category: "Food", Type: core.Expense, Amount: money(60)},
	}
	income, expense := Totals(txs)
	assert.Equal(t, money(1000), income)
	assert.Equal(t, money(600), expense)

	assert.Equal(t, []core.CategoryAmount{
		{Name: "Rent", Amount: money(500)},
		{Name: "Food", Amount: money(100)},
	}, ExpenseByCategory(txs))
}
