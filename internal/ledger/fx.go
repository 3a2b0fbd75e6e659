package ledger

import (
	"go.uber.org/fx"

	"github.com/PsiTechC/medai-billing/internal/ledger/service"
)

var Module = fx.Module("ledger.service",
	fx.Provide(service.NewService),
)
