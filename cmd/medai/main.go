package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/PsiTechC/medai-billing/internal/audit"
	"github.com/PsiTechC/medai-billing/internal/auth"
	"github.com/PsiTechC/medai-billing/internal/catalog"
	"github.com/PsiTechC/medai-billing/internal/clock"
	"github.com/PsiTechC/medai-billing/internal/config"
	"github.com/PsiTechC/medai-billing/internal/events"
	"github.com/PsiTechC/medai-billing/internal/ledger"
	"github.com/PsiTechC/medai-billing/internal/mailer"
	"github.com/PsiTechC/medai-billing/internal/migration"
	"github.com/PsiTechC/medai-billing/internal/notifier"
	"github.com/PsiTechC/medai-billing/internal/observability"
	"github.com/PsiTechC/medai-billing/internal/payment"
	"github.com/PsiTechC/medai-billing/internal/schedule"
	"github.com/PsiTechC/medai-billing/internal/seed"
	"github.com/PsiTechC/medai-billing/internal/server"
	"github.com/PsiTechC/medai-billing/pkg/db"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Invoke(func(log *zap.Logger, cfg config.Config) {
			log.Info("starting medai-billing",
				zap.String("version", version),
				zap.String("environment", cfg.Environment))
		}),
		clock.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		fx.Invoke(func(conn *gorm.DB, node *snowflake.Node, cfg config.Config) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.RunMigrations(sqlDB); err != nil {
				return err
			}
			return seed.EnsureAdminUser(conn, node, cfg.Bootstrap)
		}),
		events.Module,
		mailer.Module,
		auth.Module,
		audit.Module,
		ledger.Module,
		catalog.Module,
		payment.Module,
		schedule.Module,
		notifier.Module,
		server.Module,
	)
	app.Run()
}
