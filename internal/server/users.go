package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	auditdomain "github.com/PsiTechC/medai-billing/internal/audit/domain"
)

// @Summary      List users
// @Tags         users
// @Produce      json
// @Success      200  {object}  []authdomain.User
// @Router       /users [get]
func (s *Server) ListUsers(c *gin.Context) {
	records, err := s.authSvc.ListUsers(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

type setAccessRequest struct {
	IsAccess *bool `json:"is_access"`
}

// @Summary      Set user access
// @Description  Toggle the account kill switch independent of balance
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id      path  string            true  "User ID"
// @Param        request body  setAccessRequest  true  "Access Request"
// @Success      200  {object}  authdomain.User
// @Router       /users/{id}/access [put]
func (s *Server) SetUserAccess(c *gin.Context) {
	userID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "user id is invalid"))
		return
	}

	var req setAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.IsAccess == nil {
		AbortWithError(c, newValidationError("is_access", "required", "is_access is required"))
		return
	}

	record, err := s.authSvc.SetAccess(c.Request.Context(), userID, *req.IsAccess)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.Entry{
		Action:     auditdomain.ActionUserAccessChange,
		TargetType: "user",
		TargetID:   userID.String(),
		Metadata:   map[string]any{"is_access": *req.IsAccess},
	})
	c.JSON(http.StatusOK, gin.H{"data": record})
}

// @Summary      List audit logs
// @Tags         audit
// @Produce      json
// @Param        action  query  string  false  "Action filter"
// @Param        limit   query  int     false  "Row limit"
// @Success      200  {object}  []auditdomain.AuditLog
// @Router       /audit-logs [get]
func (s *Server) ListAuditLogs(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be an integer"))
			return
		}
		limit = parsed
	}

	records, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListFilter{
		Action:     strings.TrimSpace(c.Query("action")),
		TargetType: strings.TrimSpace(c.Query("target_type")),
		ActorType:  strings.TrimSpace(c.Query("actor_type")),
		Limit:      limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}
