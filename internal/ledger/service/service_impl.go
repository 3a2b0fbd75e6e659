package service

import (
	"context"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/PsiTechC/medai-billing/internal/events"
	ledgerdomain "github.com/PsiTechC/medai-billing/internal/ledger/domain"
	"github.com/PsiTechC/medai-billing/internal/observability/metrics"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Outbox  *events.Outbox          `optional:"true"`
	Metrics *metrics.BillingMetrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	outbox  *events.Outbox
	metrics *metrics.BillingMetrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("ledger.service"),

		genID:   p.GenID,
		outbox:  p.Outbox,
		metrics: p.Metrics,
	}
}

func (s *Service) Deduct(ctx context.Context, userID snowflake.ID, secondsConsumed float64) (float64, error) {
	if userID == 0 {
		return 0, ledgerdomain.ErrInvalidUser
	}
	if secondsConsumed <= 0 || math.IsNaN(secondsConsumed) || math.IsInf(secondsConsumed, 0) {
		return 0, ledgerdomain.ErrInvalidSeconds
	}

	minutes := secondsConsumed / 60

	if err := s.ensureLedger(ctx, s.db, userID); err != nil {
		return 0, err
	}

	// Single conditional update so two concurrent deductions can never both
	// read the same pre-deduction balance. RowsAffected == 0 means the
	// balance would have gone negative and nothing was written.
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Exec(
		`UPDATE usage_ledgers
		 SET minutes_remaining = minutes_remaining - ?,
		     recorded_at = ?,
		     updated_at = ?
		 WHERE user_id = ? AND minutes_remaining >= ?`,
		minutes,
		now,
		now,
		userID,
		minutes,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		s.metrics.IncDeductionRejected()
		return 0, ledgerdomain.ErrInsufficientBalance
	}

	balance, err := s.readBalance(ctx, s.db, userID)
	if err != nil {
		return 0, err
	}

	s.metrics.AddMinutesDeducted(minutes)
	s.publishEvent(ctx, s.db, events.EventMinutesDeducted, events.LedgerPayload{
		UserID:     userID.String(),
		Minutes:    minutes,
		NewBalance: balance,
	})

	s.log.Info("minutes deducted",
		zap.String("user_id", userID.String()),
		zap.Float64("minutes", minutes),
		zap.Float64("new_balance", balance),
	)
	return round2(balance), nil
}

func (s *Service) Peek(ctx context.Context, userID snowflake.ID) (float64, error) {
	if userID == 0 {
		return 0, ledgerdomain.ErrInvalidUser
	}

	var ledger ledgerdomain.UsageLedger
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&ledger).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return 0, ledgerdomain.ErrLedgerNotFound
		}
		return 0, err
	}
	return ledger.MinutesRemaining, nil
}

func (s *Service) Credit(ctx context.Context, userID snowflake.ID, minutes float64, source string) (float64, error) {
	return s.credit(ctx, s.db, userID, minutes, source)
}

// CreditTx runs the credit on the caller's transaction. A payment confirm
// uses this so the status flip and the credit land or roll back together.
func (s *Service) CreditTx(ctx context.Context, tx *gorm.DB, userID snowflake.ID, minutes float64, source string) (float64, error) {
	if tx == nil {
		return 0, ledgerdomain.ErrInvalidUser
	}
	return s.credit(ctx, tx, userID, minutes, source)
}

func (s *Service) credit(ctx context.Context, db *gorm.DB, userID snowflake.ID, minutes float64, source string) (float64, error) {
	if userID == 0 {
		return 0, ledgerdomain.ErrInvalidUser
	}
	if minutes <= 0 || math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return 0, ledgerdomain.ErrInvalidMinutes
	}

	if err := s.ensureLedger(ctx, db, userID); err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	if err := db.WithContext(ctx).Exec(
		`UPDATE usage_ledgers
		 SET minutes_remaining = minutes_remaining + ?,
		     recorded_at = ?,
		     updated_at = ?
		 WHERE user_id = ?`,
		minutes,
		now,
		now,
		userID,
	).Error; err != nil {
		return 0, err
	}

	balance, err := s.readBalance(ctx, db, userID)
	if err != nil {
		return 0, err
	}

	s.metrics.AddMinutesCredited(minutes)
	s.publishEvent(ctx, db, events.EventMinutesCredited, events.LedgerPayload{
		UserID:     userID.String(),
		Minutes:    minutes,
		NewBalance: balance,
		Source:     source,
	})

	s.log.Info("minutes credited",
		zap.String("user_id", userID.String()),
		zap.Float64("minutes", minutes),
		zap.Float64("new_balance", balance),
		zap.String("source", source),
	)
	return balance, nil
}

// ensureLedger creates the zero-balance row on first touch.
func (s *Service) ensureLedger(ctx context.Context, db *gorm.DB, userID snowflake.ID) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).Exec(
		`INSERT INTO usage_ledgers (id, user_id, minutes_remaining, low_balance_notified, recorded_at, created_at, updated_at)
		 VALUES (?, ?, 0, false, ?, ?, ?)
		 ON CONFLICT (user_id) DO NOTHING`,
		s.genID.Generate(),
		userID,
		now,
		now,
		now,
	).Error
}

func (s *Service) readBalance(ctx context.Context, db *gorm.DB, userID snowflake.ID) (float64, error) {
	var balance float64
	err := db.WithContext(ctx).Raw(
		`SELECT minutes_remaining FROM usage_ledgers WHERE user_id = ?`,
		userID,
	).Scan(&balance).Error
	return balance, err
}

func (s *Service) publishEvent(ctx context.Context, db *gorm.DB, eventType string, payload events.LedgerPayload) {
	if s.outbox == nil {
		return
	}
	if err := s.outbox.PublishTx(ctx, db, events.Event{
		Type:    eventType,
		Payload: payload.ToMap(),
	}); err != nil {
		s.log.Warn("failed to publish ledger event", zap.String("event", eventType), zap.Error(err))
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
