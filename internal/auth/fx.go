package auth

import (
	"go.uber.org/fx"

	"github.com/PsiTechC/medai-billing/internal/auth/service"
)

var Module = fx.Module("auth.service",
	fx.Provide(service.NewService),
)
