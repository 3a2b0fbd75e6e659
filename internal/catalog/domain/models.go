// Package domain contains the pricing catalog models and contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// MediaService is a processing category plans price against, e.g.
// subtitling or song detection.
type MediaService struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null;uniqueIndex" json:"name"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (MediaService) TableName() string { return "services" }

// Plan is one pricing tier. A nil UserID marks a public tier; a set UserID
// scopes the plan to exactly that user.
type Plan struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	ServiceID snowflake.ID  `gorm:"not null;index" json:"service_id"`
	UserID    *snowflake.ID `gorm:"index" json:"user_id,omitempty"`

	Name           string  `gorm:"type:text;not null" json:"name"`
	PricePerMinute float64 `gorm:"not null" json:"price_per_minute"`

	RangeStart float64  `gorm:"not null" json:"range_start"`
	RangeEnd   *float64 `json:"range_end,omitempty"`

	// IsLast marks the open-ended top tier; RangeEnd must be nil iff set.
	IsLast bool `gorm:"not null;default:false" json:"is_last"`

	// MinutesGranted is the allotment credited when a payment for this
	// plan confirms. Stored on the plan so the catalog and the crediting
	// table cannot drift apart.
	MinutesGranted float64 `gorm:"not null;default:0" json:"minutes_granted"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (Plan) TableName() string { return "plans" }

// PlanInput is the write shape for create and update.
type PlanInput struct {
	ServiceID      string
	UserID         string
	Name           string
	PricePerMinute float64
	RangeStart     float64
	RangeEnd       *float64
	IsLast         bool
	MinutesGranted float64
}

type Service interface {
	CreateService(ctx context.Context, name string) (*MediaService, error)
	ListServices(ctx context.Context) ([]MediaService, error)
	GetService(ctx context.Context, serviceID string) (*MediaService, error)

	CreatePlan(ctx context.Context, input PlanInput) (*Plan, error)
	UpdatePlan(ctx context.Context, planID string, input PlanInput) (*Plan, error)
	DeletePlan(ctx context.Context, planID string) error
	GetPlan(ctx context.Context, planID string) (*Plan, error)

	// ListForService filters by exact user scope: an empty userID returns
	// public tiers only, never a union of public and user plans.
	ListForService(ctx context.Context, serviceID, userID string) ([]Plan, error)

	// FindPlanByName resolves a public plan by its display name. Used by
	// payment crediting; results are cached briefly.
	FindPlanByName(ctx context.Context, name string) (*Plan, error)
}

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidPrice      = errors.New("invalid_price")
	ErrInvalidRangeStart = errors.New("invalid_range_start")
	ErrMissingRangeEnd   = errors.New("missing_range_end")
	ErrInvalidRange      = errors.New("invalid_range")
	ErrRangeEndForbidden = errors.New("range_end_forbidden")
	ErrServiceNotFound   = errors.New("service_not_found")
	ErrPlanNotFound      = errors.New("plan_not_found")
	ErrUserNotFound      = errors.New("user_not_found")
)
