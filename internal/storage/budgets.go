package storage

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
)

const budgetSelect = `SELECT b.id, b.user_id, b.category_id, c.name, b.amount_limit_cents,
	b.start_date, b.end_date, b.created_at, b.updated_at
	FROM budgets b JOIN categories c ON c.id = b.category_id`

func scanBudget(row scanner) (core.Budget, error) {
	var (
		b                            core.Budget
		start, end, created, updated int64
	)
	err := row.Scan(&b.ID, &b.UserID, &b.CategoryID, &b.Category, &b.AmountLimit.Cents,
		&start, &end, &created, &updated)
	if err != nil {
		return core.Budget{}, translateError(err)
	}
	b.StartDate = fromMillis(start)
	b.EndDate = fromMillis(end)
	b.CreatedAt = fromMillis(created)
	b.UpdatedAt = fromMillis(updated)
	return b, nil
}

func (r *SQLiteRepository) CreateBudget(ctx context.Context, b *core.Budget) error {
	now := r.now()
	if b.ID == "" {
		b.ID = newID()
	}
	b.CreatedAt, b.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `INSERT INTO budgets
		(id, user_id, category_id, amount_limit_cents, start_date, end_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.CategoryID, b.AmountLimit.Cents, toMillis(b.StartDate), toMillis(b.EndDate),
		toMillis(now), toMillis(now))
	if err != nil {
		return fmt.Errorf("insert budget: %w", translateError(err))
	}
	return nil
}

func (r *SQLiteRepository) GetBudget(ctx context.Context, id string) (core.Budget, error) {
	return scanBudget(r.db.QueryRowContext(ctx, budgetSelect+` WHERE b.id = ?`, id))
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, userID string) ([]core.Budget, error) {
	return r.queryBudgets(ctx, budgetSelect+` WHERE b.user_id = ? ORDER BY b.start_date DESC, c.name`, userID)
}

// ListBudgetsOverlapping returns the owner's budgets whose period intersects
// the half-open window [from, to).
func (r *SQLiteRepository) ListBudgetsOverlapping(ctx context.Context, userID string, from, to time.Time) ([]core.Budget, error) {
	return r.queryBudgets(ctx, budgetSelect+`
		WHERE b.user_id = ? AND b.start_date < ? AND b.end_date > ?
		ORDER BY c.name, b.start_date`,
		userID, toMillis(to), toMillis(from))
}

func (r *SQLiteRepository) queryBudgets(ctx context.Context, query string, args ...any) ([]core.Budget, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	budgets := []core.Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

func (r *SQLiteRepository) UpdateBudget(ctx context.Context, b *core.Budget) error {
	b.UpdatedAt = r.now()
	err := expectOne(r.db.ExecContext(ctx, `UPDATE budgets SET
			category_id = ?, amount_limit_cents = ?, start_date = ?, end_date = ?, updated_at = ?
		WHERE id = ?`,
		b.CategoryID, b.AmountLimit.Cents, toMillis(b.StartDate), toMillis(b.EndDate),
		toMillis(b.UpdatedAt), b.ID))
	if err != nil {
		return fmt.Errorf("update budget %s: %w", b.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, id string) error {
	if err := expectOne(r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)); err != nil {
		return fmt.Errorf("delete budget %s: %w", id, err)
	}
	return nil
}
