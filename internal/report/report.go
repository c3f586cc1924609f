// Package report renders a user's full financial history as CSV.
package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"

	"fintrack/internal/aggregate"
	"fintrack/internal/core"
)

// FileName is the attachment name used for exported reports.
const FileName = "Fintrack_Report.csv"

const (
	sectionSummary      = "SUMMARY"
	sectionBudgets      = "BUDGET SUMMARY"
	sectionTransactions = "TRANSACTIONS"
)

// Summary holds the overall figures shown at the top of a report.
type Summary struct {
	TotalIncome  core.Money
	TotalExpense core.Money
	Balance      core.Money
}

// Summarize computes overall income, expense and balance.
func Summarize(txs []core.Transaction) Summary {
	income, expense := aggregate.Totals(txs)
	return Summary{TotalIncome: income, TotalExpense: expense, Balance: income.Sub(expense)}
}

// Renderer writes reports. Currency only affects the human-readable column
// of the summary section.
type Renderer struct {
	currency string
}

func NewRenderer(currency string) *Renderer {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" || money.GetCurrency(currency) == nil {
		currency = money.USD
	}
	return &Renderer{currency: currency}
}

// Render produces the three report sections, separated by blank lines.
// Transactions are listed in the order given.
func (r *Renderer) Render(txs []core.Transaction, budgets []core.Budget) ([]byte, error) {
	var buf bytes.Buffer

	sections := []func(*bytes.Buffer) error{
		func(b *bytes.Buffer) error { return r.writeSummary(b, Summarize(txs)) },
		func(b *bytes.Buffer) error { return writeBudgets(b, budgets, txs) },
		func(b *bytes.Buffer) error { return writeTransactions(b, txs) },
	}
	for i, write := range sections {
		if i > 0 {
			buf.WriteString("\n")
		}
		if err := write(&buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Display formats m in the report currency, e.g. "$1,234.50".
func (r *Renderer) Display(m core.Money) string {
	return money.New(m.Cents, r.currency).Display()
}

func (r *Renderer) writeSummary(buf *bytes.Buffer, s Summary) error {
	w := csv.NewWriter(buf)
	rows := [][]string{
		{sectionSummary},
		{"Field", "Value", "Formatted"},
		{"Total Income", s.TotalIncome.String(), r.Display(s.TotalIncome)},
		{"Total Expense", s.TotalExpense.String(), r.Display(s.TotalExpense)},
		{"Final Balance", s.Balance.String(), r.Display(s.Balance)},
	}
	return writeAll(w, rows, sectionSummary)
}

func writeBudgets(buf *bytes.Buffer, budgets []core.Budget, txs []core.Transaction) error {
	spent := make(map[string]core.Money)
	for _, t := range txs {
		if t.Type == core.Expense {
			spent[t.CategoryID] = spent[t.CategoryID].Add(t.Amount)
		}
	}

	rows := [][]string{
		{sectionBudgets},
		{"Budget Category", "Budget Limit", "Total Expense", "Remaining Budget", "Start Date", "End Date"},
	}
	for _, b := range budgets {
		s := spent[b.CategoryID]
		rows = append(rows, []string{
			b.Category,
			b.AmountLimit.String(),
			s.String(),
			b.AmountLimit.Sub(s).String(),
			b.StartDate.UTC().Format("2006-01-02"),
			b.EndDate.UTC().Format("2006-01-02"),
		})
	}
	return writeAll(csv.NewWriter(buf), rows, sectionBudgets)
}

func writeTransactions(buf *bytes.Buffer, txs []core.Transaction) error {
	rows := [][]string{
		{sectionTransactions},
		{"Date", "Category", "Type", "Amount", "Description"},
	}
	for _, t := range txs {
		category := t.Category
		if category == "" {
			category = "Uncategorized"
		}
		rows = append(rows, []string{
			t.Date.UTC().Format("2006-01-02"),
			category,
			string(t.Type),
			t.Amount.String(),
			t.Description,
		})
	}
	return writeAll(csv.NewWriter(buf), rows, sectionTransactions)
}

func writeAll(w *csv.Writer, rows [][]string, section string) error {
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("write %s section: %w", strings.ToLower(section), err)
	}
	return nil
}
