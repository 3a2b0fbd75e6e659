package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	authdomain "github.com/PsiTechC/medai-billing/internal/auth/domain"
	"github.com/PsiTechC/medai-billing/internal/auth/password"
	"github.com/PsiTechC/medai-billing/internal/config"
	"github.com/PsiTechC/medai-billing/internal/mailer"
	"github.com/PsiTechC/medai-billing/pkg/repository"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Cfg    config.Config
	Mailer mailer.Mailer
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	userrepo repository.Repository[authdomain.User]
	mailer   mailer.Mailer

	jwtSecret []byte
	tokenTTL  time.Duration
	otpTTL    time.Duration
}

func NewService(p Params) authdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("auth.service"),

		genID:    p.GenID,
		userrepo: repository.ProvideStore[authdomain.User](p.DB),
		mailer:   p.Mailer,

		jwtSecret: []byte(p.Cfg.Auth.JWTSecret),
		tokenTTL:  p.Cfg.Auth.TokenTTL,
		otpTTL:    p.Cfg.Auth.OTPTTL,
	}
}

func (s *Service) Signup(ctx context.Context, req authdomain.SignupRequest) (*authdomain.User, error) {
	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, authdomain.ErrInvalidEmail
	}
	if len(req.Password) < 8 {
		return nil, authdomain.ErrInvalidPassword
	}

	existing, err := s.userrepo.FindOne(ctx, &authdomain.User{Email: email})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, authdomain.ErrUserExists
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	otp, err := generateOTP()
	if err != nil {
		return nil, err
	}
	expires := time.Now().UTC().Add(s.otpTTL)

	now := time.Now().UTC()
	user := &authdomain.User{
		ID:           s.genID.Generate(),
		Email:        email,
		PasswordHash: hashed,
		Role:         authdomain.RoleUser,
		IsAccess:     true,
		OTPCode:      &otp,
		OTPExpiresAt: &expires,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userrepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.sendOTPMail(ctx, email, otp)
	return user, nil
}

func (s *Service) VerifyOTP(ctx context.Context, email, otp string) error {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.OTPCode == nil || strings.TrimSpace(otp) != *user.OTPCode {
		return authdomain.ErrInvalidOTP
	}
	if user.OTPExpiresAt != nil && time.Now().UTC().After(*user.OTPExpiresAt) {
		return authdomain.ErrOTPExpired
	}

	return s.db.WithContext(ctx).
		Model(&authdomain.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"otp_code":       nil,
			"otp_expires_at": nil,
			"updated_at":     time.Now().UTC(),
		}).Error
}

func (s *Service) Login(ctx context.Context, req authdomain.LoginRequest) (*authdomain.LoginResponse, error) {
	user, err := s.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	ok, err := password.Verify(req.Password, user.PasswordHash)
	if err != nil || !ok {
		return nil, authdomain.ErrInvalidCredentials
	}
	if !user.IsAccess {
		return nil, authdomain.ErrAccessRevoked
	}

	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.ID.String(),
		"email": user.Email,
		"role":  string(user.Role),
		"iat":   now.Unix(),
		"exp":   now.Add(s.tokenTTL).Unix(),
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &authdomain.LoginResponse{Token: signed, User: *user}, nil
}

func (s *Service) ParseToken(raw string) (*authdomain.Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, authdomain.ErrInvalidToken
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, authdomain.ErrInvalidToken
		}
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, authdomain.ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, authdomain.ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	userID, err := snowflake.ParseString(sub)
	if err != nil || userID == 0 {
		return nil, authdomain.ErrInvalidToken
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)

	return &authdomain.Claims{
		UserID: userID,
		Email:  email,
		Role:   authdomain.Role(role),
	}, nil
}

func (s *Service) GetUser(ctx context.Context, userID snowflake.ID) (*authdomain.User, error) {
	user, err := s.userrepo.FindOne(ctx, &authdomain.User{ID: userID})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, authdomain.ErrUserNotFound
	}
	return user, nil
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*authdomain.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, authdomain.ErrInvalidEmail
	}
	user, err := s.userrepo.FindOne(ctx, &authdomain.User{Email: email})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, authdomain.ErrUserNotFound
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]authdomain.User, error) {
	rows, err := s.userrepo.Find(ctx, &authdomain.User{})
	if err != nil {
		return nil, err
	}
	users := make([]authdomain.User, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			users = append(users, *row)
		}
	}
	return users, nil
}

func (s *Service) SetAccess(ctx context.Context, userID snowflake.ID, isAccess bool) (*authdomain.User, error) {
	result := s.db.WithContext(ctx).
		Model(&authdomain.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"is_access":  isAccess,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, authdomain.ErrUserNotFound
	}
	return s.GetUser(ctx, userID)
}

func (s *Service) sendOTPMail(ctx context.Context, email, otp string) {
	if s.mailer == nil {
		return
	}
	subject := "Your OTP for MEDai Signup"
	text := fmt.Sprintf("Your One-Time Password (OTP) is: %s\nIt is valid for the next %d minutes.", otp, int(s.otpTTL.Minutes()))
	html := fmt.Sprintf("<p>Your One-Time Password (OTP) is: <b>%s</b></p><p>It is valid for the next %d minutes.</p>", otp, int(s.otpTTL.Minutes()))
	if err := s.mailer.Send(ctx, email, subject, text, html); err != nil {
		s.log.Warn("failed to send otp mail", zap.String("email", email), zap.Error(err))
	}
}

func generateOTP() (string, error) {
	max := big.NewInt(900000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
