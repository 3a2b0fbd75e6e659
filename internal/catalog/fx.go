package catalog

import (
	"go.uber.org/fx"

	"github.com/PsiTechC/medai-billing/internal/catalog/service"
)

var Module = fx.Module("catalog.service",
	fx.Provide(service.NewService),
)
