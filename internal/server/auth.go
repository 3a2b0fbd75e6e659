package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	auditdomain "github.com/PsiTechC/medai-billing/internal/audit/domain"
	authdomain "github.com/PsiTechC/medai-billing/internal/auth/domain"
)

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// @Summary      Sign up
// @Description  Register a new account and send a verification OTP
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body signupRequest true "Signup Request"
// @Success      201  {object}  authdomain.User
// @Router       /auth/signup [post]
func (s *Server) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, err := s.authSvc.Signup(c.Request.Context(), authdomain.SignupRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.Entry{
		ActorType:  auditdomain.ActorTypeUser,
		ActorID:    user.ID.String(),
		Action:     auditdomain.ActionUserSignup,
		TargetType: "user",
		TargetID:   user.ID.String(),
	})
	c.JSON(http.StatusCreated, gin.H{"data": user})
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// @Summary      Verify OTP
// @Description  Confirm the emailed one-time code
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body verifyOTPRequest true "Verify OTP Request"
// @Success      200  {object}  map[string]string
// @Router       /auth/verify-otp [post]
func (s *Server) VerifyOTP(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.authSvc.VerifyOTP(c.Request.Context(), req.Email, req.OTP); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"verified": true}})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// @Summary      Log in
// @Description  Exchange credentials for a session token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body loginRequest true "Login Request"
// @Success      200  {object}  authdomain.LoginResponse
// @Router       /auth/login [post]
func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.authSvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	maxAge := int(s.cfg.Auth.TokenTTL.Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, resp.Token, maxAge, "/", "", s.cfg.IsProduction(), true)

	s.recordAudit(c, auditdomain.Entry{
		ActorType:  auditdomain.ActorTypeUser,
		ActorID:    resp.User.ID.String(),
		Action:     auditdomain.ActionUserLogin,
		TargetType: "user",
		TargetID:   resp.User.ID.String(),
	})
	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"token": resp.Token,
		"user":  resp.User,
	}})
}

// @Summary      Log out
// @Description  Clear the session cookie
// @Tags         auth
// @Produce      json
// @Success      200  {object}  map[string]bool
// @Router       /auth/logout [post]
func (s *Server) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookieName, "", -1, "/", "", s.cfg.IsProduction(), true)
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"logged_out": true}})
}

// @Summary      Current user
// @Description  Return the authenticated user's profile
// @Tags         auth
// @Produce      json
// @Success      200  {object}  authdomain.User
// @Router       /auth/me [get]
func (s *Server) Me(c *gin.Context) {
	claims, ok := s.claimsFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	user, err := s.authSvc.GetUser(c.Request.Context(), claims.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": user})
}

// recordAudit stores an audit entry, logging instead of failing the request.
func (s *Server) recordAudit(c *gin.Context, entry auditdomain.Entry) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.Record(c.Request.Context(), entry); err != nil {
		s.log.Warn("audit record failed",
			zap.String("action", entry.Action),
			zap.Error(err))
	}
}
