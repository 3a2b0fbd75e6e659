// Package gateway adapts the Razorpay SDK behind the payment domain interface.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	razorpay "github.com/razorpay/razorpay-go"
	"go.uber.org/zap"

	"github.com/PsiTechC/medai-billing/internal/config"
	paymentdomain "github.com/PsiTechC/medai-billing/internal/payment/domain"
)

type razorpayGateway struct {
	client *razorpay.Client
	secret string
	log    *zap.Logger
}

func NewRazorpayGateway(cfg config.Config, log *zap.Logger) (paymentdomain.Gateway, error) {
	keyID := strings.TrimSpace(cfg.Razorpay.KeyID)
	keySecret := strings.TrimSpace(cfg.Razorpay.KeySecret)
	if keyID == "" || keySecret == "" {
		return nil, paymentdomain.ErrGatewayUnavailable
	}

	return &razorpayGateway{
		client: razorpay.NewClient(keyID, keySecret),
		secret: keySecret,
		log:    log.Named("payment.gateway"),
	}, nil
}

func (g *razorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*paymentdomain.GatewayOrder, error) {
	if amount <= 0 {
		return nil, paymentdomain.ErrInvalidAmount
	}
	if currency == "" {
		currency = "INR"
	}

	// Razorpay expects the amount in the currency's minor unit (paise).
	body, err := g.client.Order.Create(map[string]interface{}{
		"amount":   amount * 100,
		"currency": currency,
		"receipt":  receipt,
	}, nil)
	if err != nil {
		g.log.Error("razorpay order create failed", zap.Error(err))
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	orderID, _ := body["id"].(string)
	if orderID == "" {
		return nil, fmt.Errorf("create gateway order: missing order id")
	}

	return &paymentdomain.GatewayOrder{
		OrderID:  orderID,
		Amount:   amount * 100,
		Currency: currency,
	}, nil
}

func (g *razorpayGateway) VerifySignature(orderID, paymentID, signature string) error {
	if orderID == "" || paymentID == "" || signature == "" {
		return paymentdomain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(g.secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}
