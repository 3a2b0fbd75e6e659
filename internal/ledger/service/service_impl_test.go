package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/PsiTechC/medai-billing/internal/events"
	ledgerdomain "github.com/PsiTechC/medai-billing/internal/ledger/domain"
)

func TestDeductCreatesLedgerAndRejectsWhenEmpty(t *testing.T) {
	svc := setupLedgerService(t)
	userID := snowflake.ID(101)

	_, err := svc.Deduct(context.Background(), userID, 600)
	if !errors.Is(err, ledgerdomain.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	// Rejected deduction still created the zero-balance row.
	balance, err := svc.Peek(context.Background(), userID)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected balance 0, got %v", balance)
	}
}

func TestDeductConvertsSecondsToMinutes(t *testing.T) {
	svc := setupLedgerService(t)
	userID := snowflake.ID(102)

	if _, err := svc.Credit(context.Background(), userID, 6000, "test"); err != nil {
		t.Fatalf("credit: %v", err)
	}

	newBalance, err := svc.Deduct(context.Background(), userID, 60000)
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if newBalance != 5000 {
		t.Fatalf("expected new balance 5000, got %v", newBalance)
	}
}

func TestDeductExactBalanceLeavesZero(t *testing.T) {
	svc := setupLedgerService(t)
	userID := snowflake.ID(103)

	if _, err := svc.Credit(context.Background(), userID, 10, "test"); err != nil {
		t.Fatalf("credit: %v", err)
	}

	newBalance, err := svc.Deduct(context.Background(), userID, 600)
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if newBalance != 0 {
		t.Fatalf("expected new balance 0, got %v", newBalance)
	}
}

func TestDeductRejectionLeavesBalanceUnchanged(t *testing.T) {
	svc := setupLedgerService(t)
	userID := snowflake.ID(104)

	if _, err := svc.Credit(context.Background(), userID, 5, "test"); err != nil {
		t.Fatalf("credit: %v", err)
	}

	_, err := svc.Deduct(context.Background(), userID, 600)
	if !errors.Is(err, ledgerdomain.ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	balance, err := svc.Peek(context.Background(), userID)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if balance != 5 {
		t.Fatalf("expected balance 5, got %v", balance)
	}
}

func TestDeductRoundsForDisplay(t *testing.T) {
	svc := setupLedgerService(t)
	userID := snowflake.ID(105)

	if _, err := svc.Credit(context.Background(), userID, 10, "test"); err != nil {
		t.Fatalf("credit: %v", err)
	}

	// 100 seconds is 1.666... minutes; display balance rounds to 2 decimals.
	newBalance, err := svc.Deduct(context.Background(), userID, 100)
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if newBalance != 8.33 {
		t.Fatalf("expected 8.33, got %v", newBalance)
	}
}

func TestDeductValidatesInput(t *testing.T) {
	svc := setupLedgerService(t)

	if _, err := svc.Deduct(context.Background(), 0, 60); !errors.Is(err, ledgerdomain.ErrInvalidUser) {
		t.Fatalf("expected invalid user, got %v", err)
	}
	if _, err := svc.Deduct(context.Background(), 106, 0); !errors.Is(err, ledgerdomain.ErrInvalidSeconds) {
		t.Fatalf("expected invalid seconds, got %v", err)
	}
	if _, err := svc.Deduct(context.Background(), 106, -60); !errors.Is(err, ledgerdomain.ErrInvalidSeconds) {
		t.Fatalf("expected invalid seconds, got %v", err)
	}
}

func TestPeekWithoutLedger(t *testing.T) {
	svc := setupLedgerService(t)

	_, err := svc.Peek(context.Background(), snowflake.ID(107))
	if !errors.Is(err, ledgerdomain.ErrLedgerNotFound) {
		t.Fatalf("expected ledger not found, got %v", err)
	}
}

func TestCreditCreatesAndAccumulates(t *testing.T) {
	svc := setupLedgerService(t)
	userID := snowflake.ID(108)

	balance, err := svc.Credit(context.Background(), userID, 25000, "payment")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if balance != 25000 {
		t.Fatalf("expected 25000, got %v", balance)
	}

	balance, err = svc.Credit(context.Background(), userID, 1000, "payment")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if balance != 26000 {
		t.Fatalf("expected 26000, got %v", balance)
	}
}

func TestCreditTxCommitsAndRollsBackWithCaller(t *testing.T) {
	db := setupLedgerTestDB(t)
	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS billing_events (
			id INTEGER PRIMARY KEY,
			event_type TEXT NOT NULL,
			payload TEXT,
			dedupe_key TEXT UNIQUE,
			published BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL
		)`,
	).Error; err != nil {
		t.Fatalf("create billing_events: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	svc := NewService(Params{
		DB:     db,
		Log:    zap.NewNop(),
		GenID:  node,
		Outbox: events.NewOutbox(db, node),
	})
	userID := snowflake.ID(109)

	// A failing caller transaction must take the credit and its event down
	// with it.
	err = db.Transaction(func(tx *gorm.DB) error {
		if _, err := svc.CreditTx(context.Background(), tx, userID, 500, "payment"); err != nil {
			return err
		}
		return errors.New("caller_failed")
	})
	if err == nil {
		t.Fatal("expected the caller's error to surface")
	}
	if _, err := svc.Peek(context.Background(), userID); !errors.Is(err, ledgerdomain.ErrLedgerNotFound) {
		t.Fatalf("rolled-back credit must leave no ledger, got %v", err)
	}
	if n := countBillingEvents(t, db); n != 0 {
		t.Fatalf("rolled-back credit must leave no events, got %d", n)
	}

	// A committing caller lands both.
	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.CreditTx(context.Background(), tx, userID, 500, "payment")
		return err
	})
	if err != nil {
		t.Fatalf("credit in transaction: %v", err)
	}
	balance, err := svc.Peek(context.Background(), userID)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if balance != 500 {
		t.Fatalf("expected 500, got %v", balance)
	}
	if n := countBillingEvents(t, db); n != 1 {
		t.Fatalf("expected 1 event, got %d", n)
	}
}

func countBillingEvents(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Raw(`SELECT COUNT(*) FROM billing_events`).Scan(&count).Error; err != nil {
		t.Fatalf("count events: %v", err)
	}
	return count
}

func setupLedgerService(t *testing.T) ledgerdomain.Service {
	t.Helper()
	db := setupLedgerTestDB(t)
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
	})
}

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS usage_ledgers (
			id INTEGER PRIMARY KEY,
			user_id BIGINT NOT NULL UNIQUE,
			minutes_remaining REAL NOT NULL DEFAULT 0,
			low_balance_notified BOOLEAN NOT NULL DEFAULT FALSE,
			recorded_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	).Error; err != nil {
		t.Fatalf("create usage_ledgers: %v", err)
	}
	return db
}
