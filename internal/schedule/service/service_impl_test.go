package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	catalogdomain "github.com/PsiTechC/medai-billing/internal/catalog/domain"
	catalogservice "github.com/PsiTechC/medai-billing/internal/catalog/service"
	"github.com/PsiTechC/medai-billing/internal/clock"
	scheduledomain "github.com/PsiTechC/medai-billing/internal/schedule/domain"
)

var scheduleTestNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestScheduleRejectsPastRunAt(t *testing.T) {
	svc, _, serviceID := setupScheduleTest(t)

	end := 100.0
	_, err := svc.Schedule(context.Background(), scheduledomain.ActionPlanCreate,
		scheduledomain.MutationPayload{
			Plan: &catalogdomain.PlanInput{
				ServiceID:      serviceID,
				Name:           "Deferred Plan",
				PricePerMinute: 1.5,
				RangeStart:     0,
				RangeEnd:       &end,
			},
		},
		scheduleTestNow.Add(-time.Minute))
	if !errors.Is(err, scheduledomain.ErrPastRunAt) {
		t.Fatalf("expected past run_at rejection, got %v", err)
	}

	rows, err := svc.List(context.Background(), "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("nothing may be persisted for a rejected request, got %d rows", len(rows))
	}
}

func TestScheduleRejectsUnknownAction(t *testing.T) {
	svc, _, _ := setupScheduleTest(t)

	_, err := svc.Schedule(context.Background(), "plan.rename",
		scheduledomain.MutationPayload{PlanID: "1"},
		scheduleTestNow.Add(time.Hour))
	if !errors.Is(err, scheduledomain.ErrInvalidAction) {
		t.Fatalf("expected invalid action, got %v", err)
	}
}

func TestScheduleDeleteRequiresExistingPlan(t *testing.T) {
	svc, _, _ := setupScheduleTest(t)

	_, err := svc.Schedule(context.Background(), scheduledomain.ActionPlanDelete,
		scheduledomain.MutationPayload{PlanID: snowflake.ID(99).String()},
		scheduleTestNow.Add(time.Hour))
	if !errors.Is(err, catalogdomain.ErrPlanNotFound) {
		t.Fatalf("expected plan not found, got %v", err)
	}
}

func TestSchedulePersistsPendingMutation(t *testing.T) {
	svc, _, serviceID := setupScheduleTest(t)

	end := 100.0
	runAt := scheduleTestNow.Add(2 * time.Hour)
	record, err := svc.Schedule(context.Background(), scheduledomain.ActionPlanCreate,
		scheduledomain.MutationPayload{
			Plan: &catalogdomain.PlanInput{
				ServiceID:      serviceID,
				Name:           "Deferred Plan",
				PricePerMinute: 1.5,
				RangeStart:     0,
				RangeEnd:       &end,
			},
		},
		runAt)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if record.Status != scheduledomain.StatusPending {
		t.Fatalf("expected pending status, got %q", record.Status)
	}
	if !record.RunAt.Equal(runAt) {
		t.Fatalf("expected run_at %v, got %v", runAt, record.RunAt)
	}

	pending, err := svc.List(context.Background(), scheduledomain.StatusPending)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != record.ID {
		t.Fatalf("expected the scheduled row, got %+v", pending)
	}
}

func setupScheduleTest(t *testing.T) (scheduledomain.Service, catalogdomain.Service, string) {
	t.Helper()
	db := setupScheduleTestDB(t)

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}

	catalogSvc := catalogservice.NewService(catalogservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
	})
	mediaService, err := catalogSvc.CreateService(context.Background(), "subtitling")
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	svc := NewService(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clock.Fixed{At: scheduleTestNow},
		CatalogSvc: catalogSvc,
	})
	return svc, catalogSvc, mediaService.ID.String()
}

func setupScheduleTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS services (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS plans (
			id INTEGER PRIMARY KEY,
			service_id BIGINT NOT NULL,
			user_id BIGINT,
			name TEXT NOT NULL,
			price_per_minute REAL NOT NULL,
			range_start REAL NOT NULL,
			range_end REAL,
			is_last BOOLEAN NOT NULL DEFAULT FALSE,
			minutes_granted REAL NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scheduled_mutations (
			id INTEGER PRIMARY KEY,
			action TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}',
			run_at TIMESTAMP NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			last_error TEXT,
			applied_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}
