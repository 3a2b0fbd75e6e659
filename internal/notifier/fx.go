package notifier

import (
	"context"

	"go.uber.org/fx"

	"github.com/PsiTechC/medai-billing/internal/config"
)

var Module = fx.Module("notifier.worker",
	fx.Provide(NewConfig),
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)

func NewConfig(cfg config.Config) Config {
	return Config{
		SweepInterval:    cfg.Notifier.SweepInterval,
		ThresholdMinutes: cfg.Notifier.ThresholdMinutes,
		BatchSize:        cfg.Notifier.BatchSize,
	}.withDefaults()
}

func runWorker(lc fx.Lifecycle, worker *Worker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go worker.RunForever(ctx)
			return nil
		},
	})
}
