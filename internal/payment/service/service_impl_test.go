package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	catalogdomain "github.com/PsiTechC/medai-billing/internal/catalog/domain"
	catalogservice "github.com/PsiTechC/medai-billing/internal/catalog/service"
	ledgerdomain "github.com/PsiTechC/medai-billing/internal/ledger/domain"
	ledgerservice "github.com/PsiTechC/medai-billing/internal/ledger/service"
	paymentdomain "github.com/PsiTechC/medai-billing/internal/payment/domain"
)

type fakeGateway struct {
	orders  int
	failing bool
}

func (f *fakeGateway) CreateOrder(_ context.Context, amount int64, currency, _ string) (*paymentdomain.GatewayOrder, error) {
	if f.failing {
		return nil, errors.New("gateway_down")
	}
	f.orders++
	return &paymentdomain.GatewayOrder{
		OrderID:  fmt.Sprintf("order_%d", f.orders),
		Amount:   amount * 100,
		Currency: currency,
	}, nil
}

func (f *fakeGateway) VerifySignature(orderID, paymentID, signature string) error {
	if signature != orderID+"|"+paymentID {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

func TestInitiateRejectsMissingContact(t *testing.T) {
	env := setupPaymentTest(t)

	_, _, err := env.svc.Initiate(context.Background(), paymentdomain.InitiateRequest{
		UserID:   "1",
		FullName: "Asha Rao",
		Email:    "asha@example.com",
		Amount:   4999,
		Plan:     "Launch Plan",
	})
	if !errors.Is(err, paymentdomain.ErrMissingField) {
		t.Fatalf("expected missing field, got %v", err)
	}
	if env.gateway.orders != 0 {
		t.Fatal("no gateway order may be created for an invalid request")
	}
	if n := countPayments(t, env.db); n != 0 {
		t.Fatalf("expected no payment rows, found %d", n)
	}
}

func TestInitiateCreatesOrderAndRecord(t *testing.T) {
	env := setupPaymentTest(t)

	record, order, err := env.svc.Initiate(context.Background(), validInitiate())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if order.OrderID == "" || record.OrderID != order.OrderID {
		t.Fatalf("record must carry the gateway order id, got %q vs %q", record.OrderID, order.OrderID)
	}
	if record.Status != paymentdomain.StatusCreated {
		t.Fatalf("expected created status, got %q", record.Status)
	}
	if order.Amount != 4999*100 {
		t.Fatalf("expected paise amount 499900, got %d", order.Amount)
	}
}

func TestConfirmUnknownOrder(t *testing.T) {
	env := setupPaymentTest(t)

	_, err := env.svc.Confirm(context.Background(), paymentdomain.ConfirmRequest{
		OrderID:   "order_missing",
		PaymentID: "pay_1",
		Status:    paymentdomain.StatusSuccessful,
	})
	if !errors.Is(err, paymentdomain.ErrPaymentNotFound) {
		t.Fatalf("expected payment not found, got %v", err)
	}
}

func TestConfirmCreditsOnceAndRejectsReplay(t *testing.T) {
	env := setupPaymentTest(t)

	record, _, err := env.svc.Initiate(context.Background(), validInitiate())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	confirmed, err := env.svc.Confirm(context.Background(), paymentdomain.ConfirmRequest{
		OrderID:       record.OrderID,
		PaymentID:     "pay_1",
		PaymentMethod: "upi",
		Status:        paymentdomain.StatusSuccessful,
	})
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != paymentdomain.StatusSuccessful || confirmed.PaymentID != "pay_1" {
		t.Fatalf("unexpected confirmed record: %+v", confirmed)
	}

	balance, err := env.ledger.Peek(context.Background(), record.UserID)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if balance != 25000 {
		t.Fatalf("expected 25000 minutes credited, got %v", balance)
	}

	_, err = env.svc.Confirm(context.Background(), paymentdomain.ConfirmRequest{
		OrderID:   record.OrderID,
		PaymentID: "pay_1",
		Status:    paymentdomain.StatusSuccessful,
	})
	if !errors.Is(err, paymentdomain.ErrAlreadyProcessed) {
		t.Fatalf("expected already processed, got %v", err)
	}

	balance, err = env.ledger.Peek(context.Background(), record.UserID)
	if err != nil {
		t.Fatalf("peek after replay: %v", err)
	}
	if balance != 25000 {
		t.Fatalf("replayed confirmation must not credit again, balance %v", balance)
	}
}

// flakyLedger fails a configured number of transactional credits before
// delegating to the real service.
type flakyLedger struct {
	ledgerdomain.Service
	failures int
}

func (f *flakyLedger) CreditTx(ctx context.Context, tx *gorm.DB, userID snowflake.ID, minutes float64, source string) (float64, error) {
	if f.failures > 0 {
		f.failures--
		return 0, errors.New("ledger_unavailable")
	}
	return f.Service.CreditTx(ctx, tx, userID, minutes, source)
}

func TestConfirmCreditFailureLeavesOrderRetryable(t *testing.T) {
	env := setupPaymentTest(t)

	flaky := &flakyLedger{Service: env.ledger, failures: 1}
	svc := NewService(Params{
		DB:         env.db,
		Log:        zap.NewNop(),
		GenID:      env.node,
		Gateway:    env.gateway,
		LedgerSvc:  flaky,
		CatalogSvc: env.catalog,
	})

	record, _, err := svc.Initiate(context.Background(), validInitiate())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	_, err = svc.Confirm(context.Background(), paymentdomain.ConfirmRequest{
		OrderID:       record.OrderID,
		PaymentID:     "pay_1",
		PaymentMethod: "upi",
		Status:        paymentdomain.StatusSuccessful,
	})
	if err == nil || errors.Is(err, paymentdomain.ErrAlreadyProcessed) {
		t.Fatalf("expected credit failure to surface, got %v", err)
	}

	// The status flip must roll back with the failed credit.
	var status string
	if err := env.db.Raw(`SELECT status FROM payments WHERE order_id = ?`, record.OrderID).Scan(&status).Error; err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status != paymentdomain.StatusCreated {
		t.Fatalf("expected status %q after rollback, got %q", paymentdomain.StatusCreated, status)
	}
	if _, err := env.ledger.Peek(context.Background(), record.UserID); !errors.Is(err, ledgerdomain.ErrLedgerNotFound) {
		t.Fatalf("rolled-back confirm must not create a ledger, got %v", err)
	}

	confirmed, err := svc.Confirm(context.Background(), paymentdomain.ConfirmRequest{
		OrderID:       record.OrderID,
		PaymentID:     "pay_1",
		PaymentMethod: "upi",
		Status:        paymentdomain.StatusSuccessful,
	})
	if err != nil {
		t.Fatalf("retried confirm: %v", err)
	}
	if confirmed.Status != paymentdomain.StatusSuccessful {
		t.Fatalf("expected successful status on retry, got %q", confirmed.Status)
	}

	balance, err := env.ledger.Peek(context.Background(), record.UserID)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if balance != 25000 {
		t.Fatalf("expected 25000 minutes after retry, got %v", balance)
	}
}

func TestConfirmFailedStatusDoesNotCredit(t *testing.T) {
	env := setupPaymentTest(t)

	record, _, err := env.svc.Initiate(context.Background(), validInitiate())
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	confirmed, err := env.svc.Confirm(context.Background(), paymentdomain.ConfirmRequest{
		OrderID:   record.OrderID,
		PaymentID: "pay_1",
		Status:    paymentdomain.StatusFailed,
	})
	if err != nil {
		t.Fatalf("confirm failed status: %v", err)
	}
	if confirmed.Status != paymentdomain.StatusFailed {
		t.Fatalf("expected failed status, got %q", confirmed.Status)
	}

	_, err = env.ledger.Peek(context.Background(), record.UserID)
	if !errors.Is(err, ledgerdomain.ErrLedgerNotFound) {
		t.Fatalf("failed payment must not create a ledger, got %v", err)
	}
}

func TestConfirmCustomPlanUsesOverride(t *testing.T) {
	env := setupPaymentTest(t)

	minutes := 61000.0
	req := validInitiate()
	req.Plan = "Custom Plan"
	req.TotalMinutes = &minutes

	record, _, err := env.svc.Initiate(context.Background(), req)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if _, err := env.svc.Confirm(context.Background(), paymentdomain.ConfirmRequest{
		OrderID:   record.OrderID,
		PaymentID: "pay_1",
		Status:    paymentdomain.StatusSuccessful,
	}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	balance, err := env.ledger.Peek(context.Background(), record.UserID)
	if err != nil {
		t.Fatalf("peek: %v", err)
	}
	if balance != 61000 {
		t.Fatalf("expected custom override credited, got %v", balance)
	}
}

func TestConfirmCustomPlanWithoutOverride(t *testing.T) {
	env := setupPaymentTest(t)

	req := validInitiate()
	req.Plan = "Custom Plan"

	record, _, err := env.svc.Initiate(context.Background(), req)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	_, err = env.svc.Confirm(context.Background(), paymentdomain.ConfirmRequest{
		OrderID:   record.OrderID,
		PaymentID: "pay_1",
		Status:    paymentdomain.StatusSuccessful,
	})
	if !errors.Is(err, paymentdomain.ErrMissingTotalMinutes) {
		t.Fatalf("expected missing total minutes, got %v", err)
	}
}

func TestConfirmUnknownPlanName(t *testing.T) {
	env := setupPaymentTest(t)

	req := validInitiate()
	req.Plan = "Mystery Plan"

	record, _, err := env.svc.Initiate(context.Background(), req)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	_, err = env.svc.Confirm(context.Background(), paymentdomain.ConfirmRequest{
		OrderID:   record.OrderID,
		PaymentID: "pay_1",
		Status:    paymentdomain.StatusSuccessful,
	})
	if !errors.Is(err, paymentdomain.ErrUnknownPlan) {
		t.Fatalf("expected unknown plan, got %v", err)
	}
}

func TestVerifySignature(t *testing.T) {
	env := setupPaymentTest(t)

	err := env.svc.Verify(context.Background(), paymentdomain.VerifyRequest{
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: "order_1|pay_1",
	})
	if err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}

	err = env.svc.Verify(context.Background(), paymentdomain.VerifyRequest{
		OrderID:   "order_1",
		PaymentID: "pay_1",
		Signature: "forged",
	})
	if !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
}

type paymentTestEnv struct {
	db      *gorm.DB
	node    *snowflake.Node
	svc     paymentdomain.Service
	ledger  ledgerdomain.Service
	catalog catalogdomain.Service
	gateway *fakeGateway
}

func validInitiate() paymentdomain.InitiateRequest {
	return paymentdomain.InitiateRequest{
		UserID:   "7",
		FullName: "Asha Rao",
		Email:    "asha@example.com",
		Contact:  "+911234567890",
		Amount:   4999,
		Plan:     "Launch Plan",
	}
}

func setupPaymentTest(t *testing.T) *paymentTestEnv {
	t.Helper()
	db := setupPaymentTestDB(t)

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
	})
	catalogSvc := catalogservice.NewService(catalogservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
	})
	gw := &fakeGateway{}

	svc := NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Gateway:    gw,
		LedgerSvc:  ledgerSvc,
		CatalogSvc: catalogSvc,
	})

	return &paymentTestEnv{db: db, node: node, svc: svc, ledger: ledgerSvc, catalog: catalogSvc, gateway: gw}
}

func countPayments(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Raw(`SELECT COUNT(*) FROM payments`).Scan(&count).Error; err != nil {
		t.Fatalf("count payments: %v", err)
	}
	return count
}

func setupPaymentTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS payments (
			id INTEGER PRIMARY KEY,
			user_id BIGINT NOT NULL,
			full_name TEXT NOT NULL,
			email TEXT NOT NULL,
			contact TEXT NOT NULL,
			amount BIGINT NOT NULL,
			plan TEXT NOT NULL,
			description TEXT,
			gst_number TEXT,
			billing_address TEXT,
			company_name TEXT,
			pan_number TEXT,
			contact_person TEXT,
			contact_person_phone TEXT,
			order_id TEXT NOT NULL UNIQUE,
			payment_id TEXT,
			payment_method TEXT,
			status TEXT NOT NULL DEFAULT 'created',
			total_minutes REAL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS usage_ledgers (
			id INTEGER PRIMARY KEY,
			user_id BIGINT NOT NULL UNIQUE,
			minutes_remaining REAL NOT NULL DEFAULT 0,
			low_balance_notified BOOLEAN NOT NULL DEFAULT FALSE,
			recorded_at TIMESTAMP NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS services (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS plans (
			id INTEGER PRIMARY KEY,
			service_id BIGINT NOT NULL,
			user_id BIGINT,
			name TEXT NOT NULL,
			price_per_minute REAL NOT NULL,
			range_start REAL NOT NULL,
			range_end REAL,
			is_last BOOLEAN NOT NULL DEFAULT FALSE,
			minutes_granted REAL NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}
