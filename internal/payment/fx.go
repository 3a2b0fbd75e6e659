package payment

import (
	"go.uber.org/fx"

	"github.com/PsiTechC/medai-billing/internal/payment/gateway"
	"github.com/PsiTechC/medai-billing/internal/payment/service"
)

var Module = fx.Module("payment.service",
	fx.Provide(gateway.NewRazorpayGateway),
	fx.Provide(service.NewService),
)
