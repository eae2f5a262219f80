package models

import "time"

// User roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account together with its daily quota
// fields. The quota fields (DailyLimit, UsedToday, LastUsageDate) are
// mutated exclusively by the quota ledger. A DailyLimit of 0 means
// unlimited. UsedToday is only meaningful relative to LastUsageDate: if
// the stored date is not today, the effective counter is 0.
type User struct {
	ID            string     `json:"id" db:"id"`
	Email         string     `json:"email" db:"email"`
	PasswordHash  string     `json:"-" db:"password_hash"`
	Role          string     `json:"role" db:"role"`
	DailyLimit    int        `json:"daily_limit" db:"daily_limit"`
	UsedToday     int        `json:"used_today" db:"used_today"`
	LastUsageDate *time.Time `json:"last_usage_date,omitempty" db:"last_usage_date"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}
