package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fintrack/internal/core"
)

const userColumns = `id, uid, email, password_hash, name, provider, phone, photo_url,
	company, email_verified, is_active, role, last_login, created_at, updated_at`

func scanUser(row scanner) (core.User, error) {
	var (
		u                  core.User
		uid                sql.NullString
		lastLogin          sql.NullInt64
		provider, role     string
		createdAt, updated int64
	)
	err := row.Scan(&u.ID, &uid, &u.Email, &u.PasswordHash, &u.Name, &provider, &u.Phone,
		&u.PhotoURL, &u.Company, &u.EmailVerified, &u.IsActive, &role, &lastLogin, &createdAt, &updated)
	if err != nil {
		return core.User{}, translateError(err)
	}
	u.UID = uid.String
	u.Provider = core.Provider(provider)
	u.Role = core.Role(role)
	if lastLogin.Valid {
		t := fromMillis(lastLogin.Int64)
		u.LastLogin = &t
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updated)
	return u, nil
}

func nullableUID(uid string) sql.NullString {
	return sql.NullString{String: uid, Valid: uid != ""}
}

func nullableTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

// CreateUser inserts u, assigning its id and timestamps. Returns ErrConflict
// when the email or external uid is taken.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u *core.User) error {
	now := r.now()
	if u.ID == "" {
		u.ID = newID()
	}
	if u.Role == "" {
		u.Role = core.RoleUser
	}
	if u.Provider == "" {
		u.Provider = core.ProviderEmail
	}
	u.Email = core.NormalizeEmail(u.Email)
	u.CreatedAt, u.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, nullableUID(u.UID), u.Email, u.PasswordHash, u.Name, string(u.Provider), u.Phone,
		u.PhotoURL, u.Company, u.EmailVerified, u.IsActive, string(u.Role), nullableTime(u.LastLogin),
		toMillis(now), toMillis(now))
	if err != nil {
		return fmt.Errorf("insert user: %w", translateError(err))
	}

	r.logger.DebugContext(ctx, "User created", "user_id", u.ID, "provider", u.Provider)
	return nil
}

func (r *SQLiteRepository) GetUserByID(ctx context.Context, id string) (core.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`,
		core.NormalizeEmail(email)))
}

func (r *SQLiteRepository) GetUserByUID(ctx context.Context, uid string) (core.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE uid = ?`, uid))
}

// UpdateUser writes every mutable column of u.
func (r *SQLiteRepository) UpdateUser(ctx context.Context, u *core.User) error {
	u.UpdatedAt = r.now()
	u.Email = core.NormalizeEmail(u.Email)
	err := expectOne(r.db.ExecContext(ctx, `UPDATE users SET
			uid = ?, email = ?, password_hash = ?, name = ?, provider = ?, phone = ?, photo_url = ?,
			company = ?, email_verified = ?, is_active = ?, role = ?, last_login = ?, updated_at = ?
		WHERE id = ?`,
		nullableUID(u.UID), u.Email, u.PasswordHash, u.Name, string(u.Provider), u.Phone, u.PhotoURL,
		u.Company, u.EmailVerified, u.IsActive, string(u.Role), nullableTime(u.LastLogin),
		toMillis(u.UpdatedAt), u.ID))
	if err != nil {
		return fmt.Errorf("update user %s: %w", u.ID, err)
	}
	return nil
}

// DeleteUser removes the user together with everything they own.
func (r *SQLiteRepository) DeleteUser(ctx context.Context, id string) error {
	if err := expectOne(r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	r.logger.InfoContext(ctx, "User deleted", "user_id", id)
	return nil
}

func (r *SQLiteRepository) AddRefreshToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO refresh_tokens (token_hash, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)`, tokenHash, userID, toMillis(expiresAt), toMillis(r.now()))
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", translateError(err))
	}
	return nil
}

// HasRefreshToken reports whether tokenHash is a live credential of userID.
func (r *SQLiteRepository) HasRefreshToken(ctx context.Context, userID, tokenHash string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM refresh_tokens
		WHERE token_hash = ? AND user_id = ? AND expires_at > ?`,
		tokenHash, userID, toMillis(r.now())).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup refresh token: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) DeleteRefreshToken(ctx context.Context, userID, tokenHash string) error {
	if err := expectOne(r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token_hash = ? AND user_id = ?`,
		tokenHash, userID)); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// DeleteUserRefreshTokens revokes every refresh credential of userID.
func (r *SQLiteRepository) DeleteUserRefreshTokens(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("delete refresh tokens: %w", err)
	}
	return nil
}
