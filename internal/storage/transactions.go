package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/core"
)

const transactionSelect = `SELECT t.id, t.user_id, t.category_id, c.name, t.amount_cents, t.type,
	t.description, t.date, t.created_at, t.updated_at
	FROM transactions t JOIN categories c ON c.id = t.category_id`

// TransactionFilter narrows ListTransactions. Zero times leave the window
// open on that side; To is exclusive.
type TransactionFilter struct {
	UserID     string
	CategoryID string
	Type       core.TransactionType
	From       time.Time
	To         time.Time
	Ascending  bool
}

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		t                        core.Transaction
		typ                      string
		date, createdAt, updated int64
	)
	err := row.Scan(&t.ID, &t.UserID, &t.CategoryID, &t.Category, &t.Amount.Cents, &typ,
		&t.Description, &date, &createdAt, &updated)
	if err != nil {
		return core.Transaction{}, translateError(err)
	}
	t.Type = core.TransactionType(typ)
	t.Date = fromMillis(date)
	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = fromMillis(updated)
	return t, nil
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t *core.Transaction) error {
	now := r.now()
	if t.ID == "" {
		t.ID = newID()
	}
	if t.Date.IsZero() {
		t.Date = now
	}
	t.CreatedAt, t.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `INSERT INTO transactions
		(id, user_id, category_id, amount_cents, type, description, date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.CategoryID, t.Amount.Cents, string(t.Type), t.Description,
		toMillis(t.Date), toMillis(now), toMillis(now))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", translateError(err))
	}
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	return scanTransaction(r.db.QueryRowContext(ctx, transactionSelect+` WHERE t.id = ?`, id))
}

// ListTransactions returns matching transactions with category names, newest
// first unless f.Ascending is set.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, f TransactionFilter) ([]core.Transaction, error) {
	var (
		where = []string{"t.user_id = ?"}
		args  = []any{f.UserID}
	)
	if f.CategoryID != "" {
		where = append(where, "t.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Type != "" {
		where = append(where, "t.type = ?")
		args = append(args, string(f.Type))
	}
	if !f.From.IsZero() {
		where = append(where, "t.date >= ?")
		args = append(args, toMillis(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "t.date < ?")
		args = append(args, toMillis(f.To))
	}
	order := "DESC"
	if f.Ascending {
		order = "ASC"
	}

	query := transactionSelect + ` WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY t.date ` + order + `, t.created_at ` + order
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t *core.Transaction) error {
	t.UpdatedAt = r.now()
	err := expectOne(r.db.ExecContext(ctx, `UPDATE transactions SET
			category_id = ?, amount_cents = ?, type = ?, description = ?, date = ?, updated_at = ?
		WHERE id = ?`,
		t.CategoryID, t.Amount.Cents, string(t.Type), t.Description, toMillis(t.Date),
		toMillis(t.UpdatedAt), t.ID))
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", t.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	if err := expectOne(r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return nil
}

// CategoryTotals sums the owner's transactions of typ in [from, to) per
// category, keeping only categories of the same type. Largest total first.
func (r *SQLiteRepository) CategoryTotals(ctx context.Context, userID string, typ core.TransactionType, from, to time.Time) ([]core.CategoryAmount, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT c.name, SUM(t.amount_cents) AS total
		FROM transactions t JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ? AND t.type = ? AND c.type = ? AND t.date >= ? AND t.date < ?
		GROUP BY c.id, c.name
		ORDER BY total DESC, c.name`,
		userID, string(typ), string(typ), toMillis(from), toMillis(to))
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	totals := []core.CategoryAmount{}
	for rows.Next() {
		var ca core.CategoryAmount
		if err := rows.Scan(&ca.Name, &ca.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		totals = append(totals, ca)
	}
	return totals, rows.Err()
}
