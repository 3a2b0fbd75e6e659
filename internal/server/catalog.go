package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	auditdomain "github.com/PsiTechC/medai-billing/internal/audit/domain"
	catalogdomain "github.com/PsiTechC/medai-billing/internal/catalog/domain"
	scheduledomain "github.com/PsiTechC/medai-billing/internal/schedule/domain"
)

type createMediaServiceRequest struct {
	Name string `json:"name"`
}

// @Summary      Create media service
// @Description  Register a billable media-processing category
// @Tags         services
// @Accept       json
// @Produce      json
// @Param        request body createMediaServiceRequest true "Create Service Request"
// @Success      201  {object}  catalogdomain.MediaService
// @Router       /services [post]
func (s *Server) CreateMediaService(c *gin.Context) {
	var req createMediaServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	record, err := s.catalogSvc.CreateService(c.Request.Context(), req.Name)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": record})
}

// @Summary      List media services
// @Tags         services
// @Produce      json
// @Success      200  {object}  []catalogdomain.MediaService
// @Router       /services [get]
func (s *Server) ListMediaServices(c *gin.Context) {
	records, err := s.catalogSvc.ListServices(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

// @Summary      List plans
// @Description  List a service's public tiers, or a user's negotiated tiers via user_id
// @Tags         plans
// @Produce      json
// @Param        id       path   string  true   "Service ID"
// @Param        user_id  query  string  false  "User scope"
// @Success      200  {object}  []catalogdomain.Plan
// @Router       /services/{id}/plans [get]
func (s *Server) ListPlans(c *gin.Context) {
	serviceID := strings.TrimSpace(c.Param("id"))
	userID := strings.TrimSpace(c.Query("user_id"))

	records, err := s.catalogSvc.ListForService(c.Request.Context(), serviceID, userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}

type planRequest struct {
	ServiceID      string   `json:"service_id"`
	UserID         string   `json:"user_id"`
	Name           string   `json:"name"`
	PricePerMinute float64  `json:"price_per_minute"`
	RangeStart     float64  `json:"range_start"`
	RangeEnd       *float64 `json:"range_end"`
	IsLast         bool     `json:"is_last"`
	MinutesGranted float64  `json:"minutes_granted"`

	// ScheduleTime defers the mutation to a future instant instead of
	// applying it now.
	ScheduleTime *time.Time `json:"schedule_time"`
}

func (r planRequest) toInput() catalogdomain.PlanInput {
	return catalogdomain.PlanInput{
		ServiceID:      r.ServiceID,
		UserID:         r.UserID,
		Name:           r.Name,
		PricePerMinute: r.PricePerMinute,
		RangeStart:     r.RangeStart,
		RangeEnd:       r.RangeEnd,
		IsLast:         r.IsLast,
		MinutesGranted: r.MinutesGranted,
	}
}

// @Summary      Create plan
// @Description  Create a pricing tier now, or at schedule_time when provided
// @Tags         plans
// @Accept       json
// @Produce      json
// @Param        request body planRequest true "Create Plan Request"
// @Success      201  {object}  catalogdomain.Plan
// @Router       /plans [post]
func (s *Server) CreatePlan(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	input := req.toInput()
	if req.ScheduleTime != nil {
		s.scheduleMutation(c, scheduledomain.ActionPlanCreate, scheduledomain.MutationPayload{
			Plan: &input,
		}, *req.ScheduleTime)
		return
	}

	record, err := s.catalogSvc.CreatePlan(c.Request.Context(), input)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.Entry{
		Action:     auditdomain.ActionPlanCreate,
		TargetType: "plan",
		TargetID:   record.ID.String(),
		Metadata:   map[string]any{"name": record.Name},
	})
	c.JSON(http.StatusCreated, gin.H{"data": record})
}

// @Summary      Update plan
// @Description  Update a pricing tier now, or at schedule_time when provided
// @Tags         plans
// @Accept       json
// @Produce      json
// @Param        id      path  string       true  "Plan ID"
// @Param        request body  planRequest  true  "Update Plan Request"
// @Success      200  {object}  catalogdomain.Plan
// @Router       /plans/{id} [put]
func (s *Server) UpdatePlan(c *gin.Context) {
	planID := strings.TrimSpace(c.Param("id"))

	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	input := req.toInput()
	if req.ScheduleTime != nil {
		s.scheduleMutation(c, scheduledomain.ActionPlanUpdate, scheduledomain.MutationPayload{
			PlanID: planID,
			Plan:   &input,
		}, *req.ScheduleTime)
		return
	}

	record, err := s.catalogSvc.UpdatePlan(c.Request.Context(), planID, input)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.Entry{
		Action:     auditdomain.ActionPlanUpdate,
		TargetType: "plan",
		TargetID:   planID,
	})
	c.JSON(http.StatusOK, gin.H{"data": record})
}

// @Summary      Delete plan
// @Description  Delete a pricing tier now, or at schedule_time when provided
// @Tags         plans
// @Produce      json
// @Param        id             path   string  true   "Plan ID"
// @Param        schedule_time  query  string  false  "RFC3339 deferral instant"
// @Success      200  {object}  map[string]bool
// @Router       /plans/{id} [delete]
func (s *Server) DeletePlan(c *gin.Context) {
	planID := strings.TrimSpace(c.Param("id"))

	if raw := strings.TrimSpace(c.Query("schedule_time")); raw != "" {
		runAt, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("schedule_time", "invalid_timestamp", "schedule_time must be RFC3339"))
			return
		}
		s.scheduleMutation(c, scheduledomain.ActionPlanDelete, scheduledomain.MutationPayload{
			PlanID: planID,
		}, runAt)
		return
	}

	if err := s.catalogSvc.DeletePlan(c.Request.Context(), planID); err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.Entry{
		Action:     auditdomain.ActionPlanDelete,
		TargetType: "plan",
		TargetID:   planID,
	})
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"deleted": true}})
}

// scheduleMutation defers a catalog change and acknowledges with 202.
func (s *Server) scheduleMutation(c *gin.Context, action string, payload scheduledomain.MutationPayload, runAt time.Time) {
	record, err := s.scheduleSvc.Schedule(c.Request.Context(), action, payload, runAt)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.Entry{
		Action:     auditdomain.ActionPlanSchedule,
		TargetType: "scheduled_mutation",
		TargetID:   record.ID.String(),
		Metadata:   map[string]any{"action": action, "run_at": record.RunAt},
	})
	c.JSON(http.StatusAccepted, gin.H{"data": gin.H{
		"scheduled": true,
		"mutation":  record,
	}})
}
