package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-attendance-api/api/swagger"
	"github.com/noah-isme/sma-attendance-api/internal/handler"
	"github.com/noah-isme/sma-attendance-api/internal/middleware"
	"github.com/noah-isme/sma-attendance-api/internal/models"
	"github.com/noah-isme/sma-attendance-api/internal/repository"
	"github.com/noah-isme/sma-attendance-api/internal/service"
	"github.com/noah-isme/sma-attendance-api/pkg/cache"
	"github.com/noah-isme/sma-attendance-api/pkg/config"
	"github.com/noah-isme/sma-attendance-api/pkg/database"
	"github.com/noah-isme/sma-attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-attendance-api/pkg/middleware/requestid"
)

// @title SMA Attendance API
// @version 1.0.0
// @description Attendance tracking engine: role-scoped views, self check-in, overrides and auto-absence backfill.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

type attendanceStore interface {
	Query(ctx context.Context, q models.AttendanceQuery) ([]models.AttendanceRecord, error)
	Upsert(ctx context.Context, mark models.AttendanceMark) (*models.AttendanceRecord, bool, error)
	CreateIfAbsent(ctx context.Context, mark models.AttendanceMark) (*models.AttendanceRecord, bool, error)
	BulkCreateMissing(ctx context.Context, courseID string, date time.Time, status models.AttendanceStatus, source models.RecordSource, studentIDs []string) ([]models.AttendanceRecord, error)
}

type checkpointStore interface {
	Get(ctx context.Context, courseID string) (time.Time, error)
	Set(ctx context.Context, courseID string, day time.Time) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var db *sqlx.DB
	if cfg.Engine.StoreDriver == config.StorePostgres {
		db, err = database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer db.Close()
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, backfill checkpoints kept in memory", zap.Error(err))
	}

	roster, err := loadRoster(ctx, cfg, db)
	if err != nil {
		logr.Fatal("failed to load roster", zap.Error(err))
	}
	logr.Info("roster loaded", zap.Int("students", len(roster.Students())), zap.Int("courses", len(roster.Courses())))

	store, err := newStore(ctx, cfg, db, roster)
	if err != nil {
		logr.Fatal("failed to prepare attendance store", zap.Error(err))
	}

	var checkpoints checkpointStore = repository.NewMemoryCheckpointRepository()
	if redisClient != nil {
		redisCheckpoints := repository.NewCheckpointRepository(redisClient, logr)
		defer redisCheckpoints.Close() //nolint:errcheck
		checkpoints = redisCheckpoints
	}

	calendar, err := service.NewInstructionalCalendar(cfg.Backfill.SkipWeekends, cfg.Backfill.NonInstructionalDates)
	if err != nil {
		logr.Fatal("invalid non-instructional dates", zap.Error(err))
	}

	loc := cfg.Engine.Location()
	clock := service.SystemClock()
	metricsSvc := service.NewMetricsService()

	policy := service.NewTransitionPolicy(store, roster, clock, loc, metricsSvc, logr)
	backfill := service.NewBackfillService(store, roster, calendar, checkpoints, metricsSvc, logr, service.BackfillConfig{
		Mode:            cfg.Backfill.Mode,
		MaxLookbackDays: cfg.Backfill.MaxLookbackDays,
		Location:        loc,
	})
	scheduler := service.NewBackfillScheduler(backfill, roster, clock, service.BackfillSchedulerConfig{
		Interval:   cfg.Backfill.Interval,
		MaxRetries: 3,
		RetryDelay: 30 * time.Second,
	}, logr)
	exports := service.NewExportService(logr, nil, nil)
	attendanceSvc := service.NewAttendanceService(store, roster, policy, backfill, exports, clock, validator.New(), logr, service.AttendanceConfig{
		Location:       loc,
		BackfillOnView: cfg.Backfill.OnView,
		ExportsEnabled: cfg.Exports.Enabled,
	})
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	metricsHandler := handler.NewMetricsHandler(metricsSvc, readinessChecks(db, redisClient, scheduler)...)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), cfg, logr, authSvc, attendanceSvc)

	scheduler.Start(ctx)
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "store", cfg.Engine.StoreDriver, "backfill_mode", backfill.Mode())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server forced to shutdown", zap.Error(err))
	}
}

func registerRoutes(api *gin.RouterGroup, cfg *config.Config, logr *zap.Logger, authSvc *service.AuthService, attendanceSvc *service.AttendanceService) {
	authHandler := handler.NewAuthHandler(authSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	rosterHandler := handler.NewRosterHandler(attendanceSvc)

	if cfg.Env != config.EnvProduction {
		api.POST("/auth/token", authHandler.IssueToken)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))
	secured.GET("/auth/me", authHandler.Me)

	// Transition rules are enforced by the engine so rejected calls carry their reason.
	anyRole := middleware.RBAC(middleware.RoleAdministrative, middleware.RoleSelf)
	adminOnly := middleware.RBAC(middleware.RoleAdministrative)

	attendance := secured.Group("/attendance")
	attendance.GET("", anyRole, attendanceHandler.List)
	attendance.GET("/summary", anyRole, attendanceHandler.Summary)
	attendance.GET("/export", anyRole, attendanceHandler.Export)
	attendance.GET("/courses/stats", adminOnly, attendanceHandler.CourseStats)
	attendance.PUT("/status", anyRole, middleware.Audit(logr, "attendance.set_status"), attendanceHandler.SetStatus)
	attendance.POST("/self", anyRole, middleware.Audit(logr, "attendance.mark_own"), attendanceHandler.MarkOwn)
	attendance.POST("/seed", anyRole, middleware.Audit(logr, "attendance.seed"), attendanceHandler.Seed)
	attendance.POST("/backfill", adminOnly, middleware.Audit(logr, "attendance.backfill"), attendanceHandler.Backfill)

	rosterGroup := secured.Group("/roster", anyRole)
	rosterGroup.GET("/courses", rosterHandler.Courses)
	rosterGroup.GET("/students", rosterHandler.Students)
}

func loadRoster(ctx context.Context, cfg *config.Config, db *sqlx.DB) (*models.Roster, error) {
	switch {
	case cfg.Engine.RosterFile != "":
		return repository.LoadRosterFile(cfg.Engine.RosterFile)
	case db != nil:
		return repository.NewRosterRepository(db).Load(ctx)
	default:
		return repository.DefaultRoster(), nil
	}
}

func newStore(ctx context.Context, cfg *config.Config, db *sqlx.DB, roster *models.Roster) (attendanceStore, error) {
	if cfg.Engine.StoreDriver != config.StorePostgres || db == nil {
		return repository.NewMemoryAttendanceStore(roster), nil
	}
	repo := repository.NewAttendanceRepository(db, roster)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func readinessChecks(db *sqlx.DB, client *redis.Client, scheduler *service.BackfillScheduler) []handler.ReadinessCheck {
	checks := []handler.ReadinessCheck{{
		Name: "backfill_queue",
		Probe: func(context.Context) error {
			if !scheduler.Stats().Running {
				return errors.New("backfill queue not running")
			}
			return nil
		},
	}}
	if db != nil {
		checks = append(checks, handler.ReadinessCheck{Name: "postgres", Probe: db.PingContext})
	}
	if client != nil {
		checks = append(checks, handler.ReadinessCheck{Name: "redis", Probe: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
	}
	return checks
}
