package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type deductMinutesRequest struct {
	SecondsConsumed float64 `json:"seconds_consumed"`
}

// @Summary      Deduct minutes
// @Description  Convert consumed seconds to minutes and deduct them from the caller's balance
// @Tags         minutes
// @Accept       json
// @Produce      json
// @Param        request body deductMinutesRequest true "Deduct Request"
// @Success      200  {object}  map[string]float64
// @Router       /minutes/deduct [post]
func (s *Server) DeductMinutes(c *gin.Context) {
	claims, ok := s.claimsFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req deductMinutesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.SecondsConsumed <= 0 {
		AbortWithError(c, newValidationError("seconds_consumed", "required", "seconds_consumed must be positive"))
		return
	}

	balance, err := s.ledgerSvc.Deduct(c.Request.Context(), claims.UserID, req.SecondsConsumed)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"balance_minutes": balance}})
}

// @Summary      Get balance
// @Description  Read the caller's remaining minutes
// @Tags         minutes
// @Produce      json
// @Success      200  {object}  map[string]float64
// @Router       /minutes/balance [get]
func (s *Server) GetBalance(c *gin.Context) {
	claims, ok := s.claimsFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	balance, err := s.ledgerSvc.Peek(c.Request.Context(), claims.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"balance_minutes": balance}})
}
