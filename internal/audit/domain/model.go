package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ActorType represents who triggered an action.
type ActorType string

const (
	ActorTypeUser   ActorType = "user"
	ActorTypeAdmin  ActorType = "admin"
	ActorTypeSystem ActorType = "system"
)

// Audited actions.
const (
	ActionUserSignup       = "user.signup"
	ActionUserLogin        = "user.login"
	ActionUserAccessChange = "user.access_change"
	ActionPlanCreate       = "plan.create"
	ActionPlanUpdate       = "plan.update"
	ActionPlanDelete       = "plan.delete"
	ActionPlanSchedule     = "plan.schedule"
	ActionPaymentInitiate  = "payment.initiate"
	ActionPaymentConfirm   = "payment.confirm"
)

// AuditLog captures an immutable record of a security or billing action.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey"`
	ActorType  string            `gorm:"type:text;not null"`
	ActorID    *string           `gorm:"type:text"`
	Action     string            `gorm:"type:text;not null;index"`
	TargetType string            `gorm:"type:text;not null"`
	TargetID   *string           `gorm:"type:text"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	IPAddress  *string           `gorm:"type:text"`
	UserAgent  *string           `gorm:"type:text"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }

// Entry is the caller-facing shape for a new audit record. Actor and
// request attributes left empty are filled from the context.
type Entry struct {
	ActorType  ActorType
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

type ListFilter struct {
	Action     string
	TargetType string
	ActorType  string
	Limit      int
}

type Service interface {
	// Record stores an entry. Failures are returned for the caller to
	// log; auditing must never abort the action it describes.
	Record(ctx context.Context, entry Entry) error

	List(ctx context.Context, filter ListFilter) ([]AuditLog, error)
}
