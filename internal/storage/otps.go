package storage

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// UpsertOTP stores o, replacing any earlier code for the same email and purpose.
func (r *SQLiteRepository) UpsertOTP(ctx context.Context, o *core.OTP) error {
	if o.ID == "" {
		o.ID = newID()
	}
	o.Email = core.NormalizeEmail(o.Email)
	o.Attempts = 0
	o.CreatedAt = r.now()

	_, err := r.db.ExecContext(ctx, `INSERT INTO otps (id, email, purpose, code_hash, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (email, purpose) DO UPDATE SET
			id = excluded.id,
			code_hash = excluded.code_hash,
			attempts = 0,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at`,
		o.ID, o.Email, string(o.Purpose), o.CodeHash, toMillis(o.ExpiresAt), toMillis(o.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert otp: %w", translateError(err))
	}
	return nil
}

func (r *SQLiteRepository) GetOTP(ctx context.Context, email string, purpose core.OTPPurpose) (core.OTP, error) {
	var (
		o                  core.OTP
		p                  string
		expires, createdAt int64
	)
	err := r.db.QueryRowContext(ctx, `SELECT id, email, purpose, code_hash, attempts, expires_at, created_at
		FROM otps WHERE email = ? AND purpose = ?`, core.NormalizeEmail(email), string(purpose)).
		Scan(&o.ID, &o.Email, &p, &o.CodeHash, &o.Attempts, &expires, &createdAt)
	if err != nil {
		return core.OTP{}, translateError(err)
	}
	o.Purpose = core.OTPPurpose(p)
	o.ExpiresAt = fromMillis(expires)
	o.CreatedAt = fromMillis(createdAt)
	return o, nil
}

// RecordOTPFailure counts a wrong guess against the code and returns the
// total so far.
func (r *SQLiteRepository) RecordOTPFailure(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.db.QueryRowContext(ctx, `UPDATE otps SET attempts = attempts + 1 WHERE id = ? RETURNING attempts`, id).
		Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("record otp failure: %w", translateError(err))
	}
	return attempts, nil
}

func (r *SQLiteRepository) DeleteOTP(ctx context.Context, id string) error {
	if err := expectOne(r.db.ExecContext(ctx, `DELETE FROM otps WHERE id = ?`, id)); err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

// DeleteExpiredOTPs purges codes that expired at or before now.
func (r *SQLiteRepository) DeleteExpiredOTPs(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM otps WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("purge otps: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		r.logger.InfoContext(ctx, "Expired OTPs purged", "count", n)
	}
	return n, nil
}
