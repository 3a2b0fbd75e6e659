package server

import (
	"strings"

	"github.com/gin-gonic/gin"

	authdomain "github.com/PsiTechC/medai-billing/internal/auth/domain"
	"github.com/PsiTechC/medai-billing/internal/auditcontext"
)

const (
	sessionCookieName = "medai_session"
	claimsContextKey  = "auth_claims"
)

// Authenticate resolves the caller's identity from a bearer token or the
// session cookie and rejects revoked accounts before any handler runs.
func (s *Server) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			if cookie, err := c.Cookie(sessionCookieName); err == nil {
				token = cookie
			}
		}
		if token == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		claims, err := s.authSvc.ParseToken(token)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		user, err := s.authSvc.GetUser(c.Request.Context(), claims.UserID)
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if !user.IsAccess {
			AbortWithError(c, authdomain.ErrAccessRevoked)
			return
		}

		c.Set(claimsContextKey, claims)

		ctx := auditcontext.WithActor(c.Request.Context(), string(claims.Role), claims.UserID.String())
		ctx = auditcontext.WithIPAddress(ctx, c.ClientIP())
		ctx = auditcontext.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireAdmin gates admin-only routes. It assumes Authenticate already ran.
func (s *Server) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := s.claimsFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if claims.Role != authdomain.RoleAdmin {
			AbortWithError(c, ErrForbidden)
			return
		}
		c.Next()
	}
}

// RateLimitAuth throttles credential endpoints per client address.
func (s *Server) RateLimitAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.authLimiter.Allow(c.ClientIP()) {
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func (s *Server) claimsFromContext(c *gin.Context) (*authdomain.Claims, bool) {
	value, ok := c.Get(claimsContextKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*authdomain.Claims)
	return claims, ok
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
