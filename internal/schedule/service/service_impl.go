package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	catalogdomain "github.com/PsiTechC/medai-billing/internal/catalog/domain"
	"github.com/PsiTechC/medai-billing/internal/clock"
	scheduledomain "github.com/PsiTechC/medai-billing/internal/schedule/domain"
	"github.com/PsiTechC/medai-billing/pkg/repository"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	CatalogSvc catalogdomain.Service
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	catalogSvc catalogdomain.Service
	repo       repository.Repository[scheduledomain.ScheduledMutation]
}

func NewService(p Params) scheduledomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("schedule.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		catalogSvc: p.CatalogSvc,
		repo:       repository.ProvideStore[scheduledomain.ScheduledMutation](p.DB),
	}
}

func (s *Service) Schedule(ctx context.Context, action string, payload scheduledomain.MutationPayload, runAt time.Time) (*scheduledomain.ScheduledMutation, error) {
	action = strings.TrimSpace(action)
	if err := s.validate(ctx, action, payload); err != nil {
		return nil, err
	}
	if !runAt.After(s.clock.Now()) {
		return nil, scheduledomain.ErrPastRunAt
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	record := &scheduledomain.ScheduledMutation{
		ID:        s.genID.Generate(),
		Action:    action,
		Payload:   datatypes.JSON(raw),
		RunAt:     runAt.UTC(),
		Status:    scheduledomain.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}

	s.log.Info("mutation scheduled",
		zap.String("mutation_id", record.ID.String()),
		zap.String("action", action),
		zap.Time("run_at", record.RunAt))
	return record, nil
}

func (s *Service) List(ctx context.Context, status string) ([]scheduledomain.ScheduledMutation, error) {
	status = strings.TrimSpace(status)
	filter := &scheduledomain.ScheduledMutation{}
	if status != "" {
		switch status {
		case scheduledomain.StatusPending, scheduledomain.StatusRunning,
			scheduledomain.StatusApplied, scheduledomain.StatusFailed:
			filter.Status = status
		default:
			return nil, scheduledomain.ErrInvalidStatus
		}
	}

	var rows []scheduledomain.ScheduledMutation
	err := s.db.WithContext(ctx).
		Where(filter).
		Order("run_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// validate checks the action shape and that referenced entities exist now.
// Existence is re-checked at execution time; a plan deleted in between
// fails the mutation then, not the whole sweep.
func (s *Service) validate(ctx context.Context, action string, payload scheduledomain.MutationPayload) error {
	switch action {
	case scheduledomain.ActionPlanCreate:
		if payload.Plan == nil {
			return scheduledomain.ErrMissingPayload
		}
		if err := catalogdomain.ValidateInput(*payload.Plan); err != nil {
			return err
		}
		if _, err := s.catalogSvc.GetService(ctx, payload.Plan.ServiceID); err != nil {
			return err
		}
	case scheduledomain.ActionPlanUpdate:
		if payload.Plan == nil {
			return scheduledomain.ErrMissingPayload
		}
		if strings.TrimSpace(payload.PlanID) == "" {
			return scheduledomain.ErrMissingPlanID
		}
		if err := catalogdomain.ValidateInput(*payload.Plan); err != nil {
			return err
		}
		if _, err := s.catalogSvc.GetPlan(ctx, payload.PlanID); err != nil {
			return err
		}
	case scheduledomain.ActionPlanDelete:
		if strings.TrimSpace(payload.PlanID) == "" {
			return scheduledomain.ErrMissingPlanID
		}
		if _, err := s.catalogSvc.GetPlan(ctx, payload.PlanID); err != nil {
			return err
		}
	default:
		return scheduledomain.ErrInvalidAction
	}
	return nil
}
