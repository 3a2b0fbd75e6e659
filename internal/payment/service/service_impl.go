package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	catalogdomain "github.com/PsiTechC/medai-billing/internal/catalog/domain"
	"github.com/PsiTechC/medai-billing/internal/events"
	ledgerdomain "github.com/PsiTechC/medai-billing/internal/ledger/domain"
	"github.com/PsiTechC/medai-billing/internal/observability/metrics"
	paymentdomain "github.com/PsiTechC/medai-billing/internal/payment/domain"
	"github.com/PsiTechC/medai-billing/pkg/db/option"
	"github.com/PsiTechC/medai-billing/pkg/db/pagination"
	"github.com/PsiTechC/medai-billing/pkg/repository"
)

// legacyPlanMinutes resolves older plan names sold before allotments moved
// onto the catalog rows themselves.
var legacyPlanMinutes = map[string]float64{
	"Launch Plan":   25000,
	"Growth Plan":   49000,
	"Ascend Plan":   73000,
	"Pinnacle Plan": 121000,
	"Elite Plan":    122000,
}

const customPlanName = "Custom Plan"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Gateway    paymentdomain.Gateway
	LedgerSvc  ledgerdomain.Service
	CatalogSvc catalogdomain.Service
	Outbox     *events.Outbox          `optional:"true"`
	Metrics    *metrics.BillingMetrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	gateway    paymentdomain.Gateway
	ledgerSvc  ledgerdomain.Service
	catalogSvc catalogdomain.Service
	outbox     *events.Outbox
	metrics    *metrics.BillingMetrics
	repo       repository.Repository[paymentdomain.PaymentRecord]
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		gateway:    p.Gateway,
		ledgerSvc:  p.LedgerSvc,
		catalogSvc: p.CatalogSvc,
		outbox:     p.Outbox,
		metrics:    p.Metrics,
		repo:       repository.ProvideStore[paymentdomain.PaymentRecord](p.DB),
	}
}

func (s *Service) Initiate(ctx context.Context, req paymentdomain.InitiateRequest) (*paymentdomain.PaymentRecord, *paymentdomain.GatewayOrder, error) {
	if err := validateInitiate(req); err != nil {
		return nil, nil, err
	}

	userID, err := snowflake.ParseString(strings.TrimSpace(req.UserID))
	if err != nil {
		return nil, nil, paymentdomain.ErrInvalidID
	}

	id := s.genID.Generate()
	order, err := s.gateway.CreateOrder(ctx, req.Amount, "INR", id.String())
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	record := &paymentdomain.PaymentRecord{
		ID:       id,
		UserID:   userID,
		FullName: strings.TrimSpace(req.FullName),
		Email:    strings.TrimSpace(req.Email),
		Contact:  strings.TrimSpace(req.Contact),
		Amount:   req.Amount,
		Plan:     strings.TrimSpace(req.Plan),

		Description:        req.Description,
		GSTNumber:          req.GSTNumber,
		BillingAddress:     req.BillingAddress,
		CompanyName:        req.CompanyName,
		PANNumber:          req.PANNumber,
		ContactPerson:      req.ContactPerson,
		ContactPersonPhone: req.ContactPersonPhone,

		OrderID:      order.OrderID,
		Status:       paymentdomain.StatusCreated,
		TotalMinutes: req.TotalMinutes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, nil, err
	}

	s.log.Info("payment initiated",
		zap.String("order_id", order.OrderID),
		zap.String("user_id", userID.String()),
		zap.Int64("amount", req.Amount),
		zap.String("plan", record.Plan))
	return record, order, nil
}

// Confirm applies the gateway callback. The status transition is guarded by
// a conditional update so a replayed callback for an already successful
// order cannot credit the ledger twice.
func (s *Service) Confirm(ctx context.Context, req paymentdomain.ConfirmRequest) (*paymentdomain.PaymentRecord, error) {
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		return nil, paymentdomain.ErrMissingField
	}
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if status != paymentdomain.StatusSuccessful && status != paymentdomain.StatusFailed {
		return nil, paymentdomain.ErrInvalidStatus
	}

	record, err := s.repo.FindOne(ctx, &paymentdomain.PaymentRecord{OrderID: orderID})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}

	// Resolve the allotment before touching the row so a bad plan leaves
	// the payment retryable instead of stranded as successful.
	var minutes float64
	if status == paymentdomain.StatusSuccessful {
		if minutes, err = s.resolveMinutes(ctx, record); err != nil {
			return nil, err
		}
	}

	// The status flip and the credit commit together. A credit failure
	// rolls the flip back, so a retried callback can win the conditional
	// update again instead of being told the order was already processed.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Exec(
			`UPDATE payments
			 SET payment_id = ?, payment_method = ?, status = ?, updated_at = ?
			 WHERE order_id = ? AND status <> ?`,
			strings.TrimSpace(req.PaymentID),
			strings.TrimSpace(req.PaymentMethod),
			status,
			time.Now().UTC(),
			orderID,
			paymentdomain.StatusSuccessful,
		)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return paymentdomain.ErrAlreadyProcessed
		}
		if status != paymentdomain.StatusSuccessful {
			return nil
		}
		if _, err := s.ledgerSvc.CreditTx(ctx, tx, record.UserID, minutes, "payment"); err != nil {
			s.log.Error("ledger credit within payment confirm failed",
				zap.String("order_id", orderID),
				zap.Float64("minutes", minutes),
				zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	record, err = s.repo.FindOne(ctx, &paymentdomain.PaymentRecord{OrderID: orderID})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}

	s.metrics.IncPaymentConfirmed(status)
	if status != paymentdomain.StatusSuccessful {
		s.log.Warn("payment failed at gateway", zap.String("order_id", orderID))
		return record, nil
	}

	if s.outbox != nil {
		payload := events.PaymentPayload{
			OrderID:        record.OrderID,
			PaymentID:      record.PaymentID,
			Plan:           record.Plan,
			MinutesGranted: minutes,
		}
		if err := s.outbox.Publish(ctx, events.Event{
			Type:      events.EventPaymentConfirmed,
			Payload:   payload.ToMap(),
			DedupeKey: record.OrderID,
		}); err != nil {
			s.log.Warn("publish payment event failed", zap.Error(err))
		}
	}

	s.log.Info("payment confirmed",
		zap.String("order_id", orderID),
		zap.String("user_id", record.UserID.String()),
		zap.Float64("minutes_granted", minutes))
	return record, nil
}

func (s *Service) Verify(ctx context.Context, req paymentdomain.VerifyRequest) error {
	if strings.TrimSpace(req.OrderID) == "" || strings.TrimSpace(req.PaymentID) == "" || strings.TrimSpace(req.Signature) == "" {
		return paymentdomain.ErrMissingField
	}
	return s.gateway.VerifySignature(req.OrderID, req.PaymentID, req.Signature)
}

func (s *Service) List(ctx context.Context, filter paymentdomain.ListFilter) ([]paymentdomain.PaymentRecord, *pagination.PageInfo, error) {
	conds := &paymentdomain.PaymentRecord{}
	if strings.TrimSpace(filter.UserID) != "" {
		userID, err := snowflake.ParseString(strings.TrimSpace(filter.UserID))
		if err != nil {
			return nil, nil, paymentdomain.ErrInvalidID
		}
		conds.UserID = userID
	}

	rows, err := s.repo.Find(ctx, conds,
		option.WithSortBy(option.QuerySortBy{Allow: map[string]bool{"created_at": true}}),
		option.ApplyPagination(filter.Pagination),
	)
	if err != nil {
		return nil, nil, err
	}

	size := filter.Pagination.PageSize
	if size <= 0 {
		size = pagination.DefaultPageSize
	}
	pageInfo := pagination.BuildCursorPageInfo(rows, int32(size), func(row *paymentdomain.PaymentRecord) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        row.ID.String(),
			CreatedAt: row.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})

	if len(rows) > size {
		rows = rows[:size]
	}
	records := make([]paymentdomain.PaymentRecord, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			records = append(records, *row)
		}
	}
	return records, pageInfo, nil
}

// resolveMinutes maps a confirmed payment to the minute allotment it buys.
// Catalog rows are authoritative; the legacy name table covers plans sold
// before minutes_granted existed; custom plans carry their own override.
func (s *Service) resolveMinutes(ctx context.Context, record *paymentdomain.PaymentRecord) (float64, error) {
	planName := strings.TrimSpace(record.Plan)
	if planName == "" {
		return 0, paymentdomain.ErrUnknownPlan
	}

	if strings.EqualFold(planName, customPlanName) {
		if record.TotalMinutes == nil || *record.TotalMinutes <= 0 {
			return 0, paymentdomain.ErrMissingTotalMinutes
		}
		return *record.TotalMinutes, nil
	}

	plan, err := s.catalogSvc.FindPlanByName(ctx, planName)
	if err == nil && plan.MinutesGranted > 0 {
		return plan.MinutesGranted, nil
	}
	if err != nil && !errors.Is(err, catalogdomain.ErrPlanNotFound) {
		return 0, err
	}

	if minutes, ok := legacyPlanMinutes[planName]; ok {
		return minutes, nil
	}
	return 0, paymentdomain.ErrUnknownPlan
}

func validateInitiate(req paymentdomain.InitiateRequest) error {
	if strings.TrimSpace(req.UserID) == "" ||
		strings.TrimSpace(req.Email) == "" ||
		strings.TrimSpace(req.Contact) == "" ||
		strings.TrimSpace(req.FullName) == "" {
		return paymentdomain.ErrMissingField
	}
	if req.Amount <= 0 {
		return paymentdomain.ErrInvalidAmount
	}
	return nil
}
