package audit

import (
	"go.uber.org/fx"

	"github.com/PsiTechC/medai-billing/internal/audit/service"
)

var Module = fx.Module("audit.service",
	fx.Provide(service.NewService),
)
