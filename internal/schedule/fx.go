package schedule

import (
	"context"

	"go.uber.org/fx"

	"github.com/PsiTechC/medai-billing/internal/schedule/service"
	"github.com/PsiTechC/medai-billing/internal/schedule/worker"
)

var Module = fx.Module("schedule.service",
	fx.Provide(worker.DefaultConfig),
	fx.Provide(worker.NewWorker),
	fx.Provide(service.NewService),
	fx.Invoke(runWorker),
)

func runWorker(lc fx.Lifecycle, w *worker.Worker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go w.RunForever(ctx)
			return nil
		},
	})
}
