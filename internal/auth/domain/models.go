// Package domain contains the user identity model and auth service contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Role grants capabilities on the user record itself. The break-glass
// administrative identity is a role here, not an env-var side channel.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is an account with billing access.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Email        string       `gorm:"type:text;not null;uniqueIndex" json:"email"`
	PasswordHash string       `gorm:"type:text;not null" json:"-"`
	Role         Role         `gorm:"type:text;not null;default:'user'" json:"role"`

	// IsAccess is the admin kill switch, independent of balance.
	IsAccess bool `gorm:"not null;default:true" json:"is_access"`

	OTPCode      *string    `gorm:"type:text" json:"-"`
	OTPExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"-"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// IsAdmin reports whether the user carries the admin role.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

type SignupRequest struct {
	Email    string
	Password string
}

type LoginRequest struct {
	Email    string
	Password string
}

type LoginResponse struct {
	Token string
	User  User
}

// Claims is the identity the JWT middleware resolves per request.
type Claims struct {
	UserID snowflake.ID
	Email  string
	Role   Role
}

type Service interface {
	Signup(ctx context.Context, req SignupRequest) (*User, error)
	VerifyOTP(ctx context.Context, email, otp string) error
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	ParseToken(token string) (*Claims, error)
	GetUser(ctx context.Context, userID snowflake.ID) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	SetAccess(ctx context.Context, userID snowflake.ID, isAccess bool) (*User, error)
}

var (
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidPassword    = errors.New("invalid_password")
	ErrUserExists         = errors.New("user_exists")
	ErrUserNotFound       = errors.New("user_not_found")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrInvalidOTP         = errors.New("invalid_otp")
	ErrOTPExpired         = errors.New("otp_expired")
	ErrInvalidToken       = errors.New("invalid_token")
	ErrAccessRevoked      = errors.New("access_revoked")
)
