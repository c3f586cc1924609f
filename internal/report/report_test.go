package report

import (
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func day(d int) time.Time { return time.Date(2025, 6, d, 9, 0, 0, 0, time.UTC) }

func fixture() ([]core.Transaction, []core.Budget) {
	txs := []core.Transaction{
		{CategoryID: "c-salary", Category: "Salary", Type: core.Income, Amount: core.NewMoney(500000), Date: day(1), Description: "June"},
		{CategoryID: "c-food", Category: "Food", Type: core.Expense, Amount: core.NewMoney(20000), Date: day(3), Description: "groceries, weekly"},
		{CategoryID: "c-food", Category: "Food", Type: core.Expense, Amount: core.NewMoney(5050), Date: day(4)},
		{CategoryID: "c-x", Type: core.Expense, Amount: core.NewMoney(100), Date: day(5)},
	}
	budgets := []core.Budget{
		{CategoryID: "c-food", Category: "Food", AmountLimit: core.NewMoney(100000), StartDate: day(1), EndDate: day(30)},
	}
	return txs, budgets
}

func TestSummarize(t *testing.T) {
	txs, _ := fixture()
	s := Summarize(txs)
	assert.Equal(t, int64(500000), s.TotalIncome.Cents)
	assert.Equal(t, int64(25150), s.TotalExpense.Cents)
	assert.Equal(t, int64(474850), s.Balance.Cents)
}

func TestRenderSections(t *testing.T) {
	txs, budgets := fixture()
	out, err := NewRenderer("usd").Render(txs, budgets)
	require.NoError(t, err)

	sections := strings.Split(string(out), "\n\n")
	require.Len(t, sections, 3)
	assert.True(t, strings.HasPrefix(sections[0], "SUMMARY\n"))
	assert.True(t, strings.HasPrefix(sections[1], "BUDGET SUMMARY\n"))
	assert.True(t, strings.HasPrefix(sections[2], "TRANSACTIONS\n"))

	summary := readSection(t, sections[0])
	assert.Equal(t, []string{"Total Income", "5000.00", "$5,000.00"}, summary[2])
	assert.Equal(t, []string{"Final Balance", "4748.50", "$4,748.50"}, summary[4])

	budgetRows := readSection(t, sections[1])
	require.Len(t, budgetRows, 3)
	assert.Equal(t, []string{"Food", "1000.00", "250.50", "749.50", "2025-06-01", "2025-06-30"}, budgetRows[2])

	txRows := readSection(t, sections[2])
	require.Len(t, txRows, 6)
	assert.Equal(t, []string{"2025-06-03", "Food", "expense", "200.00", "groceries, weekly"}, txRows[3])
	assert.Equal(t, "Uncategorized", txRows[5][1])
}

func TestRenderNoBudgets(t *testing.T) {
	txs, _ := fixture()
	out, err := NewRenderer("").Render(txs, nil)
	require.NoError(t, err)
	assert.Contains(t, string(out), "BUDGET SUMMARY\nBudget Category,")
}

func TestNewRendererFallsBackToUSD(t *testing.T) {
	assert.Equal(t, "USD", NewRenderer("nope").currency)
	assert.Equal(t, "EUR", NewRenderer(" eur ").currency)
}

func readSection(t *testing.T, s string) [][]string {
	t.Helper()
	r := csv.NewReader(strings.NewReader(s))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}
