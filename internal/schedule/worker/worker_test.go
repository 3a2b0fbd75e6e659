package worker

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	catalogdomain "github.com/PsiTechC/medai-billing/internal/catalog/domain"
	catalogservice "github.com/PsiTechC/medai-billing/internal/catalog/service"
	scheduledomain "github.com/PsiTechC/medai-billing/internal/schedule/domain"
	scheduleservice "github.com/PsiTechC/medai-billing/internal/schedule/service"
)

var workerTestNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestProcessDueAppliesPlanCreate(t *testing.T) {
	env := setupWorkerTest(t)

	end := 100.0
	record := env.schedule(t, scheduledomain.ActionPlanCreate, scheduledomain.MutationPayload{
		Plan: &catalogdomain.PlanInput{
			ServiceID:      env.serviceID,
			Name:           "Deferred Plan",
			PricePerMinute: 1.5,
			RangeStart:     0,
			RangeEnd:       &end,
			MinutesGranted: 25000,
		},
	}, workerTestNow.Add(time.Hour))

	// Before the due time, nothing happens.
	applied, err := env.worker.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("early sweep: %v", err)
	}
	if applied != 0 {
		t.Fatalf("mutation must not apply before run_at, applied %d", applied)
	}

	env.advance(2 * time.Hour)
	applied, err = env.worker.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("due sweep: %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected one applied mutation, got %d", applied)
	}

	row := env.mutation(t, record.ID)
	if row.Status != scheduledomain.StatusApplied || row.AppliedAt == nil {
		t.Fatalf("expected applied status with timestamp, got %+v", row)
	}

	plans, err := env.catalog.ListForService(context.Background(), env.serviceID, "")
	if err != nil {
		t.Fatalf("list plans: %v", err)
	}
	if len(plans) != 1 || plans[0].Name != "Deferred Plan" {
		t.Fatalf("expected the deferred plan created, got %+v", plans)
	}

	// A second sweep finds nothing pending.
	applied, err = env.worker.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("repeat sweep: %v", err)
	}
	if applied != 0 {
		t.Fatalf("applied mutation must not run twice, got %d", applied)
	}
}

func TestProcessDueMarksFailedWhenPlanGone(t *testing.T) {
	env := setupWorkerTest(t)

	end := 100.0
	plan, err := env.catalog.CreatePlan(context.Background(), catalogdomain.PlanInput{
		ServiceID:      env.serviceID,
		Name:           "Doomed Plan",
		PricePerMinute: 1.5,
		RangeStart:     0,
		RangeEnd:       &end,
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}

	record := env.schedule(t, scheduledomain.ActionPlanDelete, scheduledomain.MutationPayload{
		PlanID: plan.ID.String(),
	}, workerTestNow.Add(time.Hour))

	// The plan disappears before the mutation comes due.
	if err := env.catalog.DeletePlan(context.Background(), plan.ID.String()); err != nil {
		t.Fatalf("delete plan: %v", err)
	}

	env.advance(2 * time.Hour)
	applied, err := env.worker.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if applied != 0 {
		t.Fatalf("failed mutation must not count as applied, got %d", applied)
	}

	row := env.mutation(t, record.ID)
	if row.Status != scheduledomain.StatusFailed || row.LastError == "" {
		t.Fatalf("expected failed status with error recorded, got %+v", row)
	}
}

func TestProcessDueIsolatesFailures(t *testing.T) {
	env := setupWorkerTest(t)

	// One mutation that will fail and one that will succeed, due together.
	// The failing row points at a plan that no longer exists, inserted
	// directly to simulate drift between scheduling and execution.
	if err := env.db.Exec(
		`INSERT INTO scheduled_mutations (id, action, payload, run_at, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 'pending', ?, ?)`,
		snowflake.ID(1001).String(),
		scheduledomain.ActionPlanDelete,
		`{"plan_id":"424242"}`,
		workerTestNow.Add(time.Minute),
		workerTestNow, workerTestNow,
	).Error; err != nil {
		t.Fatalf("seed failing mutation: %v", err)
	}

	end := 100.0
	good := env.schedule(t, scheduledomain.ActionPlanCreate, scheduledomain.MutationPayload{
		Plan: &catalogdomain.PlanInput{
			ServiceID:      env.serviceID,
			Name:           "Survivor Plan",
			PricePerMinute: 2.0,
			RangeStart:     0,
			RangeEnd:       &end,
		},
	}, workerTestNow.Add(time.Minute))

	env.advance(time.Hour)
	applied, err := env.worker.ProcessDue(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected the healthy mutation applied, got %d", applied)
	}
	if row := env.mutation(t, good.ID); row.Status != scheduledomain.StatusApplied {
		t.Fatalf("healthy mutation must apply despite sibling failure, got %+v", row)
	}
}

type workerTestEnv struct {
	db        *gorm.DB
	worker    *Worker
	svc       scheduledomain.Service
	catalog   catalogdomain.Service
	clk       *movableClock
	serviceID string
}

type movableClock struct {
	at time.Time
}

func (c *movableClock) Now() time.Time { return c.at }

func (e *workerTestEnv) advance(d time.Duration) {
	e.clk.at = e.clk.at.Add(d)
}

func (e *workerTestEnv) schedule(t *testing.T, action string, payload scheduledomain.MutationPayload, runAt time.Time) *scheduledomain.ScheduledMutation {
	t.Helper()
	record, err := e.svc.Schedule(context.Background(), action, payload, runAt)
	if err != nil {
		t.Fatalf("schedule %s: %v", action, err)
	}
	return record
}

func (e *workerTestEnv) mutation(t *testing.T, id snowflake.ID) scheduledomain.ScheduledMutation {
	t.Helper()
	var row scheduledomain.ScheduledMutation
	if err := e.db.Where("id = ?", id).First(&row).Error; err != nil {
		t.Fatalf("load mutation: %v", err)
	}
	return row
}

func setupWorkerTest(t *testing.T) *workerTestEnv {
	t.Helper()
	db := setupWorkerTestDB(t)

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	clk := &movableClock{at: workerTestNow}

	catalogSvc := catalogservice.NewService(catalogservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
	})
	mediaService, err := catalogSvc.CreateService(context.Background(), "subtitling")
	if err != nil {
		t.Fatalf("create service: %v", err)
	}

	svc := scheduleservice.NewService(scheduleservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		CatalogSvc: catalogSvc,
	})
	w := NewWorker(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      clk,
		CatalogSvc: catalogSvc,
	})

	return &workerTestEnv{
		db:        db,
		worker:    w,
		svc:       svc,
		catalog:   catalogSvc,
		clk:       clk,
		serviceID: mediaService.ID.String(),
	}
}

func setupWorkerTestDB(t *testing.T) *gorm.DB {
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
