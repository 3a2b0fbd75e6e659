package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"

	catalogdomain "github.com/PsiTechC/medai-billing/internal/catalog/domain"
)

// Actions a mutation can defer.
const (
	ActionPlanCreate = "plan.create"
	ActionPlanUpdate = "plan.update"
	ActionPlanDelete = "plan.delete"
)

// Mutation statuses. Pending rows are claimed into running by exactly one
// worker pass, then finish as applied or failed.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusApplied = "applied"
	StatusFailed  = "failed"
)

// ScheduledMutation is a catalog change deferred to a future instant. Rows
// survive restarts; anything still due after a crash is picked up by the
// next sweep.
type ScheduledMutation struct {
	ID        snowflake.ID   `gorm:"column:id;primaryKey" json:"id,string"`
	Action    string         `gorm:"column:action" json:"action"`
	Payload   datatypes.JSON `gorm:"column:payload" json:"payload"`
	RunAt     time.Time      `gorm:"column:run_at" json:"run_at"`
	Status    string         `gorm:"column:status" json:"status"`
	LastError string         `gorm:"column:last_error" json:"last_error,omitempty"`
	AppliedAt *time.Time     `gorm:"column:applied_at" json:"applied_at,omitempty"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (ScheduledMutation) TableName() string {
	return "scheduled_mutations"
}

// MutationPayload is the JSON body stored for a deferred action. PlanID is
// required for update and delete; Plan carries the full input for create
// and update.
type MutationPayload struct {
	PlanID string                   `json:"plan_id,omitempty"`
	Plan   *catalogdomain.PlanInput `json:"plan,omitempty"`
}

type Service interface {
	// Schedule validates and persists a deferred mutation. RunAt must be
	// strictly in the future.
	Schedule(ctx context.Context, action string, payload MutationPayload, runAt time.Time) (*ScheduledMutation, error)

	// List returns mutations newest first, optionally filtered by status.
	List(ctx context.Context, status string) ([]ScheduledMutation, error)
}

var (
	ErrInvalidAction   = errors.New("invalid_action")
	ErrPastRunAt       = errors.New("run_at_must_be_future")
	ErrMissingPayload  = errors.New("missing_payload")
	ErrMissingPlanID   = errors.New("missing_plan_id")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrMutationInvalid = errors.New("mutation_invalid")
)
