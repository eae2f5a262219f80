package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger implements the quota operations against PostgreSQL. The
// check-then-increment in Consume runs as a single transaction with a
// row lock, so two concurrent consumes for the same user can never both
// pass the limit check on the last remaining unit.
type Ledger struct {
	pool         *pgxpool.Pool
	defaultLimit int
	now          func() time.Time
}

// NewLedger creates a ledger backed by the given pool. Profiles missing
// at consume time are created lazily with defaultLimit.
func NewLedger(pool *pgxpool.Pool, defaultLimit int) *Ledger {
	return &Ledger{
		pool:         pool,
		defaultLimit: defaultLimit,
		now:          time.Now,
	}
}

// Status describes a user's quota for today.
type Status struct {
	DailyLimit int `json:"daily_limit"`
	UsedToday  int `json:"used_today"`
	Remaining  int `json:"remaining"`
}

// Consume atomically records one unit of today's usage for the user.
// Returns ErrLimitExceeded, without mutation, when the daily budget is
// exhausted. A stored counter from a previous day counts as zero.
func (l *Ledger) Consume(ctx context.Context, userID string) error {
	today := dayKey(l.now())

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin quota transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := l.lockRecord(ctx, tx, userID, true)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("quota record for user %s missing after create", userID)
	}

	next, err := applyConsume(*rec, today)
	if err != nil {
		return err
	}

	if err := l.writeRecord(ctx, tx, userID, next); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit quota transaction: %w", err)
	}

	return nil
}

// Refund returns one previously consumed unit. No-op when the user has
// no profile, the last usage is not from today, or the counter is
// already zero. Callers treat a failed refund as log-only: it degrades
// quota accuracy but must not change a job outcome.
func (l *Ledger) Refund(ctx context.Context, userID string) error {
	today := dayKey(l.now())

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin quota transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := l.lockRecord(ctx, tx, userID, false)
	if err != nil {
		return err
	}
	if rec == nil {
		// nothing to refund
		return nil
	}

	next, changed := applyRefund(*rec, today)
	if !changed {
		return nil
	}

	if err := l.writeRecord(ctx, tx, userID, next); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit quota transaction: %w", err)
	}

	return nil
}

// Status reports today's usage without mutating anything.
func (l *Ledger) Status(ctx context.Context, userID string) (*Status, error) {
	today := dayKey(l.now())

	var rec record
	err := l.pool.QueryRow(ctx, `
		SELECT daily_limit, used_today, COALESCE(to_char(last_usage_date, 'YYYY-MM-DD'), '')
		FROM users
		WHERE id = $1
	`, userID).Scan(&rec.DailyLimit, &rec.UsedToday, &rec.LastUsageDate)

	if err == pgx.ErrNoRows {
		rec = record{DailyLimit: l.defaultLimit}
	} else if err != nil {
		return nil, fmt.Errorf("failed to read quota record: %w", err)
	}

	used := effectiveUsed(rec, today)
	remaining := rec.DailyLimit - used
	if rec.DailyLimit == 0 || remaining < 0 {
		remaining = 0
	}

	return &Status{
		DailyLimit: rec.DailyLimit,
		UsedToday:  used,
		Remaining:  remaining,
	}, nil
}

// lockRecord selects the user's quota row FOR UPDATE. With create set,
// a missing profile is synthesized with the default limit inside the
// same transaction; otherwise a missing row yields (nil, nil).
func (l *Ledger) lockRecord(ctx context.Context, tx pgx.Tx, userID string, create bool) (*record, error) {
	if create {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, email, role, daily_limit, used_today)
			VALUES ($1, '', 'user', $2, 0)
			ON CONFLICT (id) DO NOTHING
		`, userID, l.defaultLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to ensure quota record: %w", err)
		}
	}

	var rec record
	err := tx.QueryRow(ctx, `
		SELECT daily_limit, used_today, COALESCE(to_char(last_usage_date, 'YYYY-MM-DD'), '')
		FROM users
		WHERE id = $1
		FOR UPDATE
	`, userID).Scan(&rec.DailyLimit, &rec.UsedToday, &rec.LastUsageDate)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock quota record: %w", err)
	}

	return &rec, nil
}

func (l *Ledger) writeRecord(ctx context.Context, tx pgx.Tx, userID string, rec record) error {
	_, err := tx.Exec(ctx, `
		UPDATE users
		SET used_today = $2, last_usage_date = $3::date, updated_at = NOW()
		WHERE id = $1
	`, userID, rec.UsedToday, rec.LastUsageDate)
	if err != nil {
		return fmt.Errorf("failed to update quota record: %w", err)
	}

	return nil
}
