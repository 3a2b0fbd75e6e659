package server

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	auditdomain "github.com/PsiTechC/medai-billing/internal/audit/domain"
	authdomain "github.com/PsiTechC/medai-billing/internal/auth/domain"
	paymentdomain "github.com/PsiTechC/medai-billing/internal/payment/domain"
	"github.com/PsiTechC/medai-billing/pkg/db/pagination"
)

type initiatePaymentRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Contact  string `json:"contact"`
	Amount   int64  `json:"amount"`
	Plan     string `json:"plan"`

	Description        string   `json:"description"`
	GSTNumber          string   `json:"gst_number"`
	BillingAddress     string   `json:"billing_address"`
	CompanyName        string   `json:"company_name"`
	PANNumber          string   `json:"pan_number"`
	ContactPerson      string   `json:"contact_person"`
	ContactPersonPhone string   `json:"contact_person_phone"`
	TotalMinutes       *float64 `json:"total_minutes"`
}

// @Summary      Initiate payment
// @Description  Create a gateway order and a pending payment record
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body initiatePaymentRequest true "Initiate Request"
// @Success      201  {object}  paymentdomain.PaymentRecord
// @Router       /payments/orders [post]
func (s *Server) InitiatePayment(c *gin.Context) {
	claims, ok := s.claimsFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	record, order, err := s.paymentSvc.Initiate(c.Request.Context(), paymentdomain.InitiateRequest{
		UserID:             claims.UserID.String(),
		FullName:           req.FullName,
		Email:              req.Email,
		Contact:            req.Contact,
		Amount:             req.Amount,
		Plan:               req.Plan,
		Description:        req.Description,
		GSTNumber:          req.GSTNumber,
		BillingAddress:     req.BillingAddress,
		CompanyName:        req.CompanyName,
		PANNumber:          req.PANNumber,
		ContactPerson:      req.ContactPerson,
		ContactPersonPhone: req.ContactPersonPhone,
		TotalMinutes:       req.TotalMinutes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.Entry{
		ActorType:  auditdomain.ActorTypeUser,
		ActorID:    claims.UserID.String(),
		Action:     auditdomain.ActionPaymentInitiate,
		TargetType: "payment",
		TargetID:   record.OrderID,
		Metadata:   map[string]any{"amount": req.Amount, "plan": req.Plan},
	})
	c.JSON(http.StatusCreated, gin.H{"data": gin.H{
		"record": record,
		"order": gin.H{
			"id":       order.OrderID,
			"amount":   order.Amount,
			"currency": order.Currency,
		},
	}})
}

type verifyPaymentRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

// @Summary      Verify payment signature
// @Description  Check the checkout signature returned by the gateway
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body verifyPaymentRequest true "Verify Request"
// @Success      200  {object}  map[string]bool
// @Router       /payments/verify [post]
func (s *Server) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	err := s.paymentSvc.Verify(c.Request.Context(), paymentdomain.VerifyRequest{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"valid": true}})
}

type confirmPaymentRequest struct {
	OrderID       string `json:"order_id"`
	PaymentID     string `json:"payment_id"`
	PaymentMethod string `json:"payment_method"`
	Status        string `json:"status"`
}

// @Summary      Confirm payment
// @Description  Apply the gateway outcome and credit purchased minutes
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body confirmPaymentRequest true "Confirm Request"
// @Success      200  {object}  paymentdomain.PaymentRecord
// @Router       /payments/confirm [put]
func (s *Server) ConfirmPayment(c *gin.Context) {
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	record, err := s.paymentSvc.Confirm(c.Request.Context(), paymentdomain.ConfirmRequest{
		OrderID:       req.OrderID,
		PaymentID:     req.PaymentID,
		PaymentMethod: req.PaymentMethod,
		Status:        req.Status,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.recordAudit(c, auditdomain.Entry{
		Action:     auditdomain.ActionPaymentConfirm,
		TargetType: "payment",
		TargetID:   record.OrderID,
		Metadata:   map[string]any{"status": record.Status},
	})
	c.JSON(http.StatusOK, gin.H{"data": record})
}

// @Summary      List payments
// @Description  List the caller's payments, or any user's for admins; format=csv streams an export
// @Tags         payments
// @Produce      json
// @Param        user_id     query  string  false  "User filter (admin only)"
// @Param        format      query  string  false  "Set to csv for an export"
// @Param        page_token  query  string  false  "Cursor token"
// @Param        page_size   query  int     false  "Page size"
// @Success      200  {object}  []paymentdomain.PaymentRecord
// @Router       /payments [get]
func (s *Server) ListPayments(c *gin.Context) {
	claims, ok := s.claimsFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	userID := claims.UserID.String()
	if requested := strings.TrimSpace(c.Query("user_id")); requested != "" && requested != userID {
		if claims.Role != authdomain.RoleAdmin {
			AbortWithError(c, ErrForbidden)
			return
		}
		userID = requested
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	records, pageInfo, err := s.paymentSvc.List(c.Request.Context(), paymentdomain.ListFilter{
		UserID:     userID,
		Pagination: page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if strings.EqualFold(c.Query("format"), "csv") {
		writePaymentsCSV(c, records)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": records, "page_info": pageInfo})
}

func writePaymentsCSV(c *gin.Context, records []paymentdomain.PaymentRecord) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "payments.csv"))

	writer := csv.NewWriter(c.Writer)
	defer writer.Flush()

	_ = writer.Write([]string{"Order ID", "Payment ID", "Plan", "Amount", "Status", "Total Minutes", "Created At"})
	for _, record := range records {
		totalMinutes := ""
		if record.TotalMinutes != nil {
			totalMinutes = strconv.FormatFloat(*record.TotalMinutes, 'f', 2, 64)
		}
		_ = writer.Write([]string{
			record.OrderID,
			record.PaymentID,
			record.Plan,
			strconv.FormatInt(record.Amount, 10),
			record.Status,
			totalMinutes,
			record.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
}
