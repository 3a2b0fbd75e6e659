// Package domain contains the per-user minutes ledger model and contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// UsageLedger holds a user's remaining minutes balance. The balance field
// always means minutes remaining: deduction decreases it, crediting a
// confirmed payment is the only increasing writer.
type UsageLedger struct {
	ID     snowflake.ID `gorm:"primaryKey" json:"-"`
	UserID snowflake.ID `gorm:"not null;uniqueIndex" json:"user_id"`

	MinutesRemaining float64 `gorm:"not null;default:0" json:"minutes_remaining"`

	// LowBalanceNotified guards against repeat notifications while the
	// balance stays under the threshold.
	LowBalanceNotified bool `gorm:"not null;default:false" json:"-"`

	RecordedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"recorded_at"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (UsageLedger) TableName() string { return "usage_ledgers" }

// Service is the only writer of usage_ledgers rows.
type Service interface {
	// Deduct converts secondsConsumed to minutes and subtracts them from
	// the user's balance, all or nothing. Returns the new balance rounded
	// to two decimals.
	Deduct(ctx context.Context, userID snowflake.ID, secondsConsumed float64) (float64, error)

	// Peek returns the current balance without mutating it.
	Peek(ctx context.Context, userID snowflake.ID) (float64, error)

	// Credit adds minutes to the balance, creating the ledger if absent.
	// Source labels the originating flow for the event trail.
	Credit(ctx context.Context, userID snowflake.ID, minutes float64, source string) (float64, error)

	// CreditTx is Credit running on the caller's transaction, so the
	// credit commits or rolls back with the caller's own writes.
	CreditTx(ctx context.Context, tx *gorm.DB, userID snowflake.ID, minutes float64, source string) (float64, error)
}

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidSeconds      = errors.New("invalid_seconds")
	ErrInvalidMinutes      = errors.New("invalid_minutes")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrLedgerNotFound      = errors.New("ledger_not_found")
)
