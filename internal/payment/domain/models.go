package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/PsiTechC/medai-billing/pkg/db/pagination"
)

// Payment statuses. A record is created in StatusCreated and transitions
// exactly once on gateway confirmation.
const (
	StatusCreated    = "created"
	StatusSuccessful = "successful"
	StatusFailed     = "failed"
)

// PaymentRecord mirrors the payments table. Invoice fields are optional
// extras collected at checkout for GST invoicing.
type PaymentRecord struct {
	ID       snowflake.ID `gorm:"column:id;primaryKey" json:"id,string"`
	UserID   snowflake.ID `gorm:"column:user_id" json:"user_id,string"`
	FullName string       `gorm:"column:full_name" json:"full_name"`
	Email    string       `gorm:"column:email" json:"email"`
	Contact  string       `gorm:"column:contact" json:"contact"`
	Amount   int64        `gorm:"column:amount" json:"amount"`
	Plan     string       `gorm:"column:plan" json:"plan"`

	Description        string `gorm:"column:description" json:"description,omitempty"`
	GSTNumber          string `gorm:"column:gst_number" json:"gst_number,omitempty"`
	BillingAddress     string `gorm:"column:billing_address" json:"billing_address,omitempty"`
	CompanyName        string `gorm:"column:company_name" json:"company_name,omitempty"`
	PANNumber          string `gorm:"column:pan_number" json:"pan_number,omitempty"`
	ContactPerson      string `gorm:"column:contact_person" json:"contact_person,omitempty"`
	ContactPersonPhone string `gorm:"column:contact_person_phone" json:"contact_person_phone,omitempty"`

	OrderID       string   `gorm:"column:order_id" json:"order_id"`
	PaymentID     string   `gorm:"column:payment_id" json:"payment_id,omitempty"`
	PaymentMethod string   `gorm:"column:payment_method" json:"payment_method,omitempty"`
	Status        string   `gorm:"column:status" json:"status"`
	TotalMinutes  *float64 `gorm:"column:total_minutes" json:"total_minutes,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (PaymentRecord) TableName() string {
	return "payments"
}

// InitiateRequest carries the checkout form for a new payment order.
type InitiateRequest struct {
	UserID   string
	FullName string
	Email    string
	Contact  string
	Amount   int64
	Plan     string

	Description        string
	GSTNumber          string
	BillingAddress     string
	CompanyName        string
	PANNumber          string
	ContactPerson      string
	ContactPersonPhone string

	// TotalMinutes overrides the plan lookup for custom plans.
	TotalMinutes *float64
}

// ConfirmRequest carries the gateway callback for an existing order.
type ConfirmRequest struct {
	OrderID       string
	PaymentID     string
	PaymentMethod string
	Status        string
}

// VerifyRequest carries the checkout signature handshake.
type VerifyRequest struct {
	OrderID   string
	PaymentID string
	Signature string
}

// GatewayOrder is the provider-side order handle returned to the client
// for checkout redirect.
type GatewayOrder struct {
	OrderID  string
	Amount   int64
	Currency string
}

// Gateway creates provider orders and checks callback signatures.
type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*GatewayOrder, error)
	VerifySignature(orderID, paymentID, signature string) error
}

type ListFilter struct {
	UserID     string
	Pagination pagination.Pagination
}

type Service interface {
	Initiate(ctx context.Context, req InitiateRequest) (*PaymentRecord, *GatewayOrder, error)
	Confirm(ctx context.Context, req ConfirmRequest) (*PaymentRecord, error)
	Verify(ctx context.Context, req VerifyRequest) error
	List(ctx context.Context, filter ListFilter) ([]PaymentRecord, *pagination.PageInfo, error)
}

var (
	ErrMissingField        = errors.New("missing_required_field")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidID           = errors.New("invalid_id")
	ErrPaymentNotFound     = errors.New("payment_not_found")
	ErrAlreadyProcessed    = errors.New("payment_already_processed")
	ErrUnknownPlan         = errors.New("unknown_plan")
	ErrMissingTotalMinutes = errors.New("missing_total_minutes")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidSignature    = errors.New("invalid_signature")
	ErrGatewayUnavailable  = errors.New("gateway_unavailable")
)
