package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/repository"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	"github.com/noah-isme/sma-attendance-api/pkg/cache"
	"github.com/noah-isme/sma-attendance-api/pkg/config"
	"github.com/noah-isme/sma-attendance-api/pkg/database"
	"github.com/noah-isme/sma-attendance-api/pkg/logger"
)

type checkpointStore interface {
	Get(ctx context.Context, courseID string) (time.Time, error)
	Set(ctx context.Context, courseID string, day time.Time) error
}

// attendance-backfill runs one reconciliation pass outside the API process, e.g. from cron.
func main() {
	var (
		courseID string
		nowRaw   string
		mode     string
	)
	flag.StringVar(&courseID, "course", "", "Course ID to reconcile (empty reconciles every course)")
	flag.StringVar(&nowRaw, "now", "", "Reference time as RFC3339 or YYYY-MM-DD (defaults to the current time)")
	flag.StringVar(&mode, "mode", "", "Backfill mode override: single or sweep")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if mode != "" {
		cfg.Backfill.Mode = mode
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	clock, err := referenceClock(nowRaw, cfg.Engine.Location())
	if err != nil {
		logr.Fatal("invalid -now flag", zap.String("value", nowRaw), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Engine.StoreDriver != config.StorePostgres {
		logr.Fatal("attendance-backfill requires STORE_DRIVER=postgres")
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	var roster *models.Roster
	if cfg.Engine.RosterFile != "" {
		roster, err = repository.LoadRosterFile(cfg.Engine.RosterFile)
	} else {
		roster, err = repository.NewRosterRepository(db).Load(ctx)
	}
	if err != nil {
		logr.Fatal("failed to load roster", zap.Error(err))
	}

	store := repository.NewAttendanceRepository(db, roster)
	if err := store.EnsureSchema(ctx); err != nil {
		logr.Fatal("failed to ensure schema", zap.Error(err))
	}

	var checkpoints checkpointStore = repository.NewMemoryCheckpointRepository()
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, sweep starts without checkpoints", zap.Error(err))
	}
	if redisClient != nil {
		redisCheckpoints := repository.NewCheckpointRepository(redisClient, logr)
		defer redisCheckpoints.Close() //nolint:errcheck
		checkpoints = redisCheckpoints
	}
	calendar, err := service.NewInstructionalCalendar(cfg.Backfill.SkipWeekends, cfg.Backfill.NonInstructionalDates)
	if err != nil {
		logr.Fatal("invalid non-instructional dates", zap.Error(err))
	}

	backfillCfg := service.BackfillConfig{
		Mode:            cfg.Backfill.Mode,
		MaxLookbackDays: cfg.Backfill.MaxLookbackDays,
		Location:        cfg.Engine.Location(),
	}
	backfill := service.NewBackfillService(store, roster, calendar, checkpoints, nil, logr, backfillCfg)

	var results []models.BackfillResult
	if courseID != "" {
		res, runErr := backfill.Run(ctx, courseID, clock.Now())
		if runErr != nil {
			logr.Fatal("backfill failed", zap.String("course_id", courseID), zap.Error(runErr))
		}
		results = append(results, *res)
	} else {
		results, err = backfill.RunAll(ctx, clock.Now())
		if err != nil {
			logr.Fatal("backfill failed", zap.Error(err))
		}
	}

	created := 0
	for _, res := range results {
		created += res.Created
	}
	logr.Info("backfill complete", zap.String("mode", backfill.Mode()), zap.Int("courses", len(results)), zap.Int("created", created))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]interface{}{"created": created, "results": results}); err != nil {
		logr.Error("failed to write report", zap.Error(err))
	}
}

// referenceClock reads -now. A bare date is midnight in loc so the calendar day survives the conversion.
func referenceClock(raw string, loc *time.Location) (service.Clock, error) {
	if raw == "" {
		return service.SystemClock(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return service.NewFixedClock(t), nil
	}
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(models.DateLayout, raw, loc)
	if err != nil {
		return nil, fmt.Errorf("expected RFC3339 or %s: %w", models.DateLayout, err)
	}
	return service.NewFixedClock(day), nil
}
