package quota

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger is an in-process implementation of the quota operations,
// guarded by a mutex instead of a database transaction. Used by tests
// and by local runs without PostgreSQL; it applies the same consume and
// refund rules as the SQL ledger.
type MemoryLedger struct {
	mu           sync.Mutex
	records      map[string]record
	defaultLimit int

	// Now is the clock used for day keys; overridable in tests.
	Now func() time.Time
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger(defaultLimit int) *MemoryLedger {
	return &MemoryLedger{
		records:      make(map[string]record),
		defaultLimit: defaultLimit,
		Now:          time.Now,
	}
}

// Consume atomically records one unit of today's usage for the user.
func (l *MemoryLedger) Consume(ctx context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[userID]
	if !ok {
		rec = record{DailyLimit: l.defaultLimit}
	}

	next, err := applyConsume(rec, dayKey(l.Now()))
	if err != nil {
		return err
	}

	l.records[userID] = next
	return nil
}

// Refund returns one previously consumed unit, if any was consumed today.
func (l *MemoryLedger) Refund(ctx context.Context, userID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[userID]
	if !ok {
		return nil
	}

	next, changed := applyRefund(rec, dayKey(l.Now()))
	if changed {
		l.records[userID] = next
	}

	return nil
}

// UsedToday returns the effective counter for today, for assertions.
func (l *MemoryLedger) UsedToday(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[userID]
	if !ok {
		return 0
	}
	return effectiveUsed(rec, dayKey(l.Now()))
}

// SetRecord seeds a user's quota state, for tests.
func (l *MemoryLedger) SetRecord(userID string, dailyLimit, usedToday int, lastUsageDate string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records[userID] = record{
		DailyLimit:    dailyLimit,
		UsedToday:     usedToday,
		LastUsageDate: lastUsageDate,
	}
}
