package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fintrack/internal/core"
)

const categoryColumns = `id, user_id, name, type, icon, created_at, updated_at`

func scanCategory(row scanner) (core.Category, error) {
	var (
		c                  core.Category
		typ                string
		createdAt, updated int64
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &typ, &c.Icon, &createdAt, &updated); err != nil {
		return core.Category{}, translateError(err)
	}
	c.Type = core.TransactionType(typ)
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updated)
	return c, nil
}

// CreateCategory inserts c. Returns ErrConflict when the owner already has
// a category with the same name.
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c *core.Category) error {
	now := r.now()
	if c.ID == "" {
		c.ID = newID()
	}
	c.Name = strings.TrimSpace(c.Name)
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, string(c.Type), c.Icon, toMillis(now), toMillis(now))
	if err != nil {
		return fmt.Errorf("insert category: %w", translateError(err))
	}
	return nil
}

// FindOrCreateCategory returns the owner's category called name, creating it
// with typ when missing. Concurrent callers converge on the same row because
// the insert is a no-op on the (user_id, name) unique key.
func (r *SQLiteRepository) FindOrCreateCategory(ctx context.Context, userID, name string, typ core.TransactionType) (core.Category, bool, error) {
	name = strings.TrimSpace(name)
	now := toMillis(r.now())
	res, err := r.db.ExecContext(ctx, `INSERT INTO categories (`+categoryColumns+`)
		VALUES (?, ?, ?, ?, '', ?, ?)
		ON CONFLICT (user_id, name) DO NOTHING`,
		newID(), userID, name, string(typ), now, now)
	if err != nil {
		return core.Category{}, false, fmt.Errorf("find or create category: %w", translateError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Category{}, false, fmt.Errorf("rows affected: %w", err)
	}

	c, err := r.GetCategoryByName(ctx, userID, name)
	if err != nil {
		return core.Category{}, false, fmt.Errorf("reload category %q: %w", name, err)
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "Category created implicitly", "user_id", userID, "category", name, "type", typ)
	}
	return c, n > 0, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	return scanCategory(r.db.QueryRowContext(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = ?`, id))
}

func (r *SQLiteRepository) GetCategoryByName(ctx context.Context, userID, name string) (core.Category, error) {
	return scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? AND name = ?`,
		userID, strings.TrimSpace(name)))
}

func (r *SQLiteRepository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? ORDER BY type, name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// UpdateCategory returns ErrInUse when the type would change while
// transactions still reference the category.
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c *core.Category) error {
	c.UpdatedAt = r.now()
	c.Name = strings.TrimSpace(c.Name)
	err := expectOne(r.db.ExecContext(ctx, `UPDATE categories SET name = ?, type = ?, icon = ?, updated_at = ?
		WHERE id = ? AND (type = ? OR NOT EXISTS (SELECT 1 FROM transactions WHERE category_id = categories.id))`,
		c.Name, string(c.Type), c.Icon, toMillis(c.UpdatedAt), c.ID, string(c.Type)))
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.GetCategory(ctx, c.ID); getErr == nil {
			err = fmt.Errorf("%w: category type is used by transactions", ErrInUse)
		}
	}
	if err != nil {
		return fmt.Errorf("update category %s: %w", c.ID, err)
	}
	return nil
}

// DeleteCategory returns ErrInUse while transactions or budgets reference it.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	if err := expectOne(r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)); err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	return nil
}
