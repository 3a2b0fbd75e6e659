// Package observability wires logging, tracing, and metrics as one module.
package observability

import (
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"

	"github.com/PsiTechC/medai-billing/internal/observability/logger"
	"github.com/PsiTechC/medai-billing/internal/observability/metrics"
	"github.com/PsiTechC/medai-billing/internal/observability/tracing"
)

var Module = fx.Module("observability",
	logger.Module,
	fx.Provide(tracing.NewProvider),
	fx.Provide(metrics.NewBillingMetrics),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
