package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// @Summary      List scheduled mutations
// @Description  List deferred catalog changes, optionally filtered by status
// @Tags         schedules
// @Produce      json
// @Param        status  query  string  false  "pending|running|applied|failed"
// @Success      200  {object}  []scheduledomain.ScheduledMutation
// @Router       /schedules [get]
func (s *Server) ListSchedules(c *gin.Context) {
	status := strings.TrimSpace(c.Query("status"))

	records, err := s.scheduleSvc.List(c.Request.Context(), status)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records})
}
