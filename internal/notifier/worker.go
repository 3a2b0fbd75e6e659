// Package notifier sweeps usage ledgers and warns users running low on minutes.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/PsiTechC/medai-billing/internal/events"
	"github.com/PsiTechC/medai-billing/internal/mailer"
	"github.com/PsiTechC/medai-billing/internal/observability/metrics"
)

const lowBalanceSubject = "Low balance alert"

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Mailer  mailer.Mailer
	Outbox  *events.Outbox          `optional:"true"`
	Metrics *metrics.BillingMetrics `optional:"true"`
	Config  Config                  `optional:"true"`
}

type Worker struct {
	db      *gorm.DB
	log     *zap.Logger
	mailer  mailer.Mailer
	outbox  *events.Outbox
	metrics *metrics.BillingMetrics
	cfg     Config
}

func NewWorker(p Params) *Worker {
	cfg := p.Config.withDefaults()
	return &Worker{
		db:      p.DB,
		log:     p.Log.Named("notifier.worker"),
		mailer:  p.Mailer,
		outbox:  p.Outbox,
		metrics: p.Metrics,
		cfg:     cfg,
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(); err != nil {
			w.log.Warn("low balance sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) RunOnce() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := w.Sweep(ctx)
	return err
}

// candidate joins a ledger row with the owning user's contact details.
type candidate struct {
	UserID             int64
	Email              string
	MinutesRemaining   float64
	LowBalanceNotified bool
}

// Sweep walks the ledger once: users under the threshold who have not yet
// been warned get one email, users back above the threshold get their flag
// cleared so the next dip warns them again. A failed email or update for one
// user never stops the rest of the batch.
func (w *Worker) Sweep(ctx context.Context) (int, error) {
	if w.db == nil || w.mailer == nil {
		return 0, errors.New("notifier_unavailable")
	}

	var rows []candidate
	err := w.db.WithContext(ctx).
		Table("usage_ledgers").
		Select("usage_ledgers.user_id AS user_id, users.email AS email, usage_ledgers.minutes_remaining AS minutes_remaining, usage_ledgers.low_balance_notified AS low_balance_notified").
		Joins("JOIN users ON users.id = usage_ledgers.user_id").
		Where("(usage_ledgers.minutes_remaining < ? AND NOT usage_ledgers.low_balance_notified) OR (usage_ledgers.minutes_remaining >= ? AND usage_ledgers.low_balance_notified)",
			w.cfg.ThresholdMinutes, w.cfg.ThresholdMinutes).
		Limit(w.cfg.BatchSize).
		Scan(&rows).Error
	if err != nil {
		return 0, err
	}

	notified := 0
	for _, row := range rows {
		if row.MinutesRemaining >= w.cfg.ThresholdMinutes {
			if err := w.setFlag(ctx, row.UserID, false); err != nil {
				w.log.Warn("reset low balance flag failed",
					zap.Int64("user_id", row.UserID),
					zap.Error(err))
			}
			continue
		}

		if err := w.notify(ctx, row); err != nil {
			w.log.Warn("low balance notification failed",
				zap.Int64("user_id", row.UserID),
				zap.Error(err))
			continue
		}
		notified++
	}
	return notified, nil
}

func (w *Worker) notify(ctx context.Context, row candidate) error {
	text := fmt.Sprintf(
		"Your remaining balance is %.2f minutes, below the %.0f minute threshold. Please top up to avoid interruption.",
		row.MinutesRemaining, w.cfg.ThresholdMinutes)
	html := fmt.Sprintf(
		"<p>Your remaining balance is <b>%.2f minutes</b>, below the %.0f minute threshold.</p><p>Please top up to avoid interruption.</p>",
		row.MinutesRemaining, w.cfg.ThresholdMinutes)

	if err := w.mailer.Send(ctx, row.Email, lowBalanceSubject, text, html); err != nil {
		return err
	}

	if err := w.setFlag(ctx, row.UserID, true); err != nil {
		// The email went out; a second copy on the next sweep beats silence.
		return err
	}

	w.metrics.IncLowBalanceNotice()
	if w.outbox != nil {
		if err := w.outbox.Publish(ctx, events.Event{
			Type: events.EventLowBalanceNotified,
			Payload: map[string]any{
				"user_id": fmt.Sprintf("%d", row.UserID),
				"balance": row.MinutesRemaining,
			},
		}); err != nil {
			w.log.Warn("publish low balance event failed", zap.Error(err))
		}
	}
	return nil
}

func (w *Worker) setFlag(ctx context.Context, userID int64, value bool) error {
	return w.db.WithContext(ctx).
		Table("usage_ledgers").
		Where("user_id = ?", userID).
		Update("low_balance_notified", value).Error
}
