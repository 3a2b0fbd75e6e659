// Package worker applies scheduled catalog mutations when they come due.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	catalogdomain "github.com/PsiTechC/medai-billing/internal/catalog/domain"
	"github.com/PsiTechC/medai-billing/internal/clock"
	"github.com/PsiTechC/medai-billing/internal/events"
	scheduledomain "github.com/PsiTechC/medai-billing/internal/schedule/domain"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	CatalogSvc catalogdomain.Service
	Outbox     *events.Outbox `optional:"true"`
	Config     Config         `optional:"true"`
}

type Worker struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	catalogSvc catalogdomain.Service
	outbox     *events.Outbox
	cfg        Config
}

func NewWorker(p Params) *Worker {
	cfg := p.Config.withDefaults()
	return &Worker{
		db:         p.DB,
		log:        p.Log.Named("schedule.worker"),
		clock:      p.Clock,
		catalogSvc: p.CatalogSvc,
		outbox:     p.Outbox,
		cfg:        cfg,
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(); err != nil {
			w.log.Warn("scheduled mutation sweep failed", zap.Error(err))
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

	_, err := w.ProcessDue(ctx)
	return err
}

// ProcessDue claims and executes every due pending mutation. Each row is
// claimed with a conditional update, so concurrent workers never execute
// the same mutation twice, and one failing mutation never aborts the rest.
func (w *Worker) ProcessDue(ctx context.Context) (int, error) {
	if w.db == nil || w.catalogSvc == nil {
		return 0, errors.New("schedule_worker_unavailable")
	}

	now := w.clock.Now()
	var due []scheduledomain.ScheduledMutation
	err := w.db.WithContext(ctx).
		Where("status = ? AND run_at <= ?", scheduledomain.StatusPending, now).
		Order("run_at ASC").
		Limit(w.cfg.BatchSize).
		Find(&due).Error
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, mutation := range due {
		claimed, err := w.claim(ctx, mutation.ID)
		if err != nil {
			w.log.Warn("claim mutation failed",
				zap.String("mutation_id", mutation.ID.String()),
				zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}

		if err := w.execute(ctx, mutation); err != nil {
			w.log.Warn("scheduled mutation failed",
				zap.String("mutation_id", mutation.ID.String()),
				zap.String("action", mutation.Action),
				zap.Error(err))
			if markErr := w.finish(ctx, mutation.ID, scheduledomain.StatusFailed, err.Error()); markErr != nil {
				w.log.Error("mark mutation failed", zap.Error(markErr))
			}
			continue
		}

		if err := w.finish(ctx, mutation.ID, scheduledomain.StatusApplied, ""); err != nil {
			w.log.Error("mark mutation applied", zap.Error(err))
			continue
		}
		applied++

		if w.outbox != nil {
			if err := w.outbox.Publish(ctx, events.Event{
				Type: events.EventPlanMutationApplied,
				Payload: map[string]any{
					"mutation_id": mutation.ID.String(),
					"action":      mutation.Action,
				},
				DedupeKey: "mutation:" + mutation.ID.String(),
			}); err != nil {
				w.log.Warn("publish mutation event failed", zap.Error(err))
			}
		}
	}
	return applied, nil
}

func (w *Worker) execute(ctx context.Context, mutation scheduledomain.ScheduledMutation) error {
	var payload scheduledomain.MutationPayload
	if err := json.Unmarshal(mutation.Payload, &payload); err != nil {
		return scheduledomain.ErrMutationInvalid
	}

	switch mutation.Action {
	case scheduledomain.ActionPlanCreate:
		if payload.Plan == nil {
			return scheduledomain.ErrMissingPayload
		}
		_, err := w.catalogSvc.CreatePlan(ctx, *payload.Plan)
		return err
	case scheduledomain.ActionPlanUpdate:
		if payload.Plan == nil {
			return scheduledomain.ErrMissingPayload
		}
		_, err := w.catalogSvc.UpdatePlan(ctx, payload.PlanID, *payload.Plan)
		return err
	case scheduledomain.ActionPlanDelete:
		return w.catalogSvc.DeletePlan(ctx, payload.PlanID)
	default:
		return scheduledomain.ErrInvalidAction
	}
}

func (w *Worker) claim(ctx context.Context, id snowflake.ID) (bool, error) {
	result := w.db.WithContext(ctx).Exec(
		`UPDATE scheduled_mutations
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		scheduledomain.StatusRunning, w.clock.Now(),
		id, scheduledomain.StatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (w *Worker) finish(ctx context.Context, id snowflake.ID, status, lastError string) error {
	now := w.clock.Now()
	updates := map[string]any{
		"status":     status,
		"last_error": lastError,
		"updated_at": now,
	}
	if status == scheduledomain.StatusApplied {
		updates["applied_at"] = now
	}
	return w.db.WithContext(ctx).
		Table("scheduled_mutations").
		Where("id = ?", id).
		Updates(updates).Error
}
