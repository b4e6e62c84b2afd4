// Package main is the entry point of the academic records API.
//
// The process wires configuration, logging, persistence (PostgreSQL or the
// in-memory store), the Redis lookup cache, the event bus with its report
// subscribers, and the gin HTTP server, then waits for a shutdown signal.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/polos-ead/academic-records/config"
	"github.com/polos-ead/academic-records/internal/application/command"
	"github.com/polos-ead/academic-records/internal/application/eventhandler"
	"github.com/polos-ead/academic-records/internal/domain/assessment"
	"github.com/polos-ead/academic-records/internal/domain/course"
	"github.com/polos-ead/academic-records/internal/domain/manager"
	"github.com/polos-ead/academic-records/internal/domain/report"
	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/internal/domain/student"
	"github.com/polos-ead/academic-records/internal/infrastructure/messaging"
	"github.com/polos-ead/academic-records/internal/infrastructure/persistence/memory"
	"github.com/polos-ead/academic-records/internal/infrastructure/persistence/postgres"
	"github.com/polos-ead/academic-records/internal/infrastructure/persistence/redis"
	"github.com/polos-ead/academic-records/internal/infrastructure/security"
	"github.com/polos-ead/academic-records/internal/infrastructure/spreadsheet"
	"github.com/polos-ead/academic-records/internal/infrastructure/storage"
	httpserver "github.com/polos-ead/academic-records/internal/interface/http"
	"github.com/polos-ead/academic-records/internal/interface/http/handlers"
	"github.com/polos-ead/academic-records/pkg/circuitbreaker"
	"github.com/polos-ead/academic-records/pkg/logger"
	"github.com/polos-ead/academic-records/pkg/retry"
)

// handlerTimeout bounds one report subscriber run.
const handlerTimeout = 10 * time.Second

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// repositories is the set of ports the use cases depend on. Both storage
// backends and the cache decorators satisfy it.
type repositories struct {
	assessments       assessment.Repository
	assessmentBatches assessment.BatchRepository
	students          student.Repository
	enrollments       student.EnrollmentRepository
	placements        student.PlacementRepository
	studentBatches    student.BatchRepository
	courses           course.Repository
	disciplines       course.DisciplineRepository
	poles             course.PoleRepository
	managers          manager.Repository
	reports           report.Repository
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Level:   cfg.Log.Level,
		Format:  logger.Format(cfg.Log.Format),
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", string(cfg.App.Environment)).
		Str("version", cfg.App.Version).
		Strs("features", enabledFeatures(cfg.Features)).
		Msg("starting academic records API")

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	bus := messaging.NewBus(messaging.DefaultBusConfig(log))
	bus.Use(messaging.LoggingMiddleware(logger.Component(log, "event_bus")))
	bus.Use(messaging.TimeoutMiddleware(handlerTimeout))
	dispatcher := messaging.NewDispatcher(bus, log)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. PERSISTENCE
	// ─────────────────────────────────────────────────────────────────────────
	var repos repositories

	if cfg.UsesPostgres() {
		conn, err := connectPostgres(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info().Msg("closing database connection")
			conn.Close()
		}()
		health.AddCheck("database", handlers.NewPingCheck(conn))

		if cfg.Database.AutoMigrate {
			if err := migrate(ctx, conn, log); err != nil {
				return err
			}
		}
		repos = fromPostgres(postgres.NewRepositories(conn, dispatcher))
	} else {
		log.Warn().Msg("DATABASE_URL is empty, using the in-memory store")
		repos = fromMemory(memory.NewRepositories(memory.NewStore(), dispatcher))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. LOOKUP CACHE (optional)
	// ─────────────────────────────────────────────────────────────────────────
	if !cfg.Redis.Disabled && cfg.Features.IsEnabled(config.FeatureLookupCache) {
		cache, err := connectRedis(ctx, cfg, log)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, lookup cache disabled")
		} else {
			defer cache.Close()
			health.AddCheck("cache", handlers.NewPingCheck(cache))

			cacheLog := logger.Component(log, "lookup_cache")
			store := redis.NewBreakerStore(cache, circuitbreaker.Cache(redis.IsCacheMiss, func(name string, from, to circuitbreaker.State) {
				cacheLog.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			}))
			ttl := cfg.Redis.LookupTTL
			repos.courses = redis.NewCourseRepository(repos.courses, store, ttl, cacheLog)
			repos.disciplines = redis.NewDisciplineRepository(repos.disciplines, store, ttl, cacheLog)
			repos.poles = redis.NewPoleRepository(repos.poles, store, ttl, cacheLog)
			repos.managers = redis.NewManagerRepository(repos.managers, store, ttl, cacheLog)
			log.Info().Dur("ttl", ttl).Msg("lookup cache enabled")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. REPORT SUBSCRIBERS
	// ─────────────────────────────────────────────────────────────────────────
	reports := command.NewSendReportHandler(repos.reports)
	lookups := eventhandler.Lookups{
		Managers:    repos.managers,
		Students:    repos.students,
		Courses:     repos.courses,
		Disciplines: repos.disciplines,
		Poles:       repos.poles,
	}
	subscribers := enabledSubscribers(eventhandler.All(lookups, reports), cfg.Features)
	if err := eventhandler.Register(bus, logger.Component(log, "reports"), subscribers...); err != nil {
		return fmt.Errorf("failed to register report subscribers: %w", err)
	}
	log.Info().Int("subscribers", len(subscribers)).Msg("report subscribers registered")

	// ─────────────────────────────────────────────────────────────────────────
	// 7. USE CASES
	// ─────────────────────────────────────────────────────────────────────────
	policy := assessment.Policy{
		PassingAverage:         cfg.Grading.PassingAverage,
		RecoveryFloor:          cfg.Grading.RecoveryFloor,
		RecoveryPassingAverage: cfg.Grading.RecoveryPassingAverage,
	}
	hasher := security.NewBcryptHasher(0)

	deps := httpserver.Dependencies{
		CreateAssessment: command.NewCreateAssessmentHandler(
			repos.assessments, repos.students, repos.enrollments, repos.courses, repos.disciplines, policy, nil),
		UpdateAssessment:      command.NewUpdateAssessmentHandler(repos.assessments, repos.courses, policy, nil),
		RemoveAssessmentGrade: command.NewRemoveAssessmentGradeHandler(repos.assessments, repos.courses, policy, nil),
		DeleteAssessment:      command.NewDeleteAssessmentHandler(repos.assessments),

		CreateAssessmentsBatch: command.NewCreateAssessmentsBatchHandler(
			repos.assessments, repos.assessmentBatches, repos.students, repos.enrollments, repos.courses, repos.disciplines, policy, nil),
		RemoveGradesBatch: command.NewRemoveGradesBatchHandler(
			repos.assessments, repos.assessmentBatches, repos.students, repos.courses, repos.disciplines, policy, nil),
		CreateStudentsBatch: command.NewCreateStudentsBatchHandler(
			repos.students, repos.enrollments, repos.studentBatches, repos.courses, repos.poles, hasher, nil),
		UpdateStudentsBatch: command.NewUpdateStudentsBatchHandler(
			repos.students, repos.enrollments, repos.placements, repos.studentBatches, repos.courses, repos.poles, nil),

		ChangeEnrollmentStatus: command.NewChangeEnrollmentStatusHandler(repos.enrollments),

		Parser: spreadsheet.NewParser(0),
		Tokens: handlers.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Health: health,
		Logger: log,
	}
	if m := bus.Metrics(); m != nil {
		deps.Events = m
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. FILE STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.UploadsEnabled() {
		s3, err := storage.NewS3Storage(storage.Config{
			Bucket:   cfg.Storage.S3Bucket,
			Region:   cfg.Storage.S3Region,
			Endpoint: cfg.Storage.S3Endpoint,
			Prefix:   cfg.Storage.S3Prefix,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 storage: %w", err)
		}
		deps.Storage = s3
		log.Info().Str("bucket", cfg.Storage.S3Bucket).Msg("batch files are stored on S3")
	} else {
		deps.Storage = storage.NameOnly{}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	server, err := httpserver.NewServer(httpserver.Config{
		Addr:           cfg.HTTP.Addr,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		MaxUploadBytes: cfg.HTTP.MaxUploadBytes,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Uploads:        cfg.Features.IsEnabled(config.FeatureSpreadsheetUpload),
		Version:        cfg.App.Version,
	}, deps)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 10. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case err, ok := <-errCh:
		if ok && err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", cfg.App.ShutdownTimeout).Msg("starting graceful shutdown")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop HTTP server gracefully")
		return err
	}

	log.Info().Msg("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func connectPostgres(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*postgres.Connection, error) {
	log.Info().Msg("connecting to database")

	var conn *postgres.Connection
	err := retry.Startup(logRetry(log, "database")).Do(ctx, func(ctx context.Context) error {
		c, err := postgres.NewConnection(ctx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
			ConnectTimeout:  cfg.Database.ConnectTimeout,
		})
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info().Msg("database connection established")
	return conn, nil
}

func migrate(ctx context.Context, conn *postgres.Connection, log zerolog.Logger) error {
	migrator := postgres.NewMigrator(conn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	status, err := migrator.Status(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to get migration status")
		return nil
	}
	applied := 0
	for _, m := range status {
		if m.IsApplied {
			applied++
		}
	}
	log.Info().Int("applied", applied).Int("total", len(status)).Msg("migrations completed")
	return nil
}

func connectRedis(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Cache, error) {
	redisCfg := redis.DefaultConfig()
	redisCfg.Addr = cfg.Redis.Addr
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout
	redisCfg.KeyPrefix = cfg.Redis.KeyPrefix

	return retry.DoWithData(ctx, func(context.Context) (*redis.Cache, error) {
		return redis.NewCache(redisCfg)
	}, retry.WithMaxAttempts(3), retry.WithInitialDelay(500*time.Millisecond), retry.WithOnRetry(logRetry(log, "redis")))
}

func logRetry(log zerolog.Logger, target string) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		log.Warn().Err(err).Str("target", target).Int("attempt", attempt).Dur("retry_in", delay).Msg("connection failed, retrying")
	}
}

// batchEvents are reported through report batches and gated by the batch flag.
var batchEvents = map[shared.EventType]bool{
	shared.EventAssessmentBatchCreated:       true,
	shared.EventAssessmentBatchGradesRemoved: true,
	shared.EventStudentBatchCreated:          true,
	shared.EventStudentBatchUpdated:          true,
}

func enabledSubscribers(all []eventhandler.Subscriber, features *config.FeatureFlags) []eventhandler.Subscriber {
	out := make([]eventhandler.Subscriber, 0, len(all))
	for _, s := range all {
		flag := config.FeatureReportsSingle
		if batchEvents[s.EventType()] {
			flag = config.FeatureReportsBatch
		}
		if features.IsEnabled(flag) {
			out = append(out, s)
		}
	}
	return out
}

func enabledFeatures(features *config.FeatureFlags) []string {
	var out []string
	for _, name := range features.Names() {
		if features.IsEnabled(name) {
			out = append(out, name)
		}
	}
	return out
}

func fromPostgres(r *postgres.Repositories) repositories {
	return repositories{
		assessments:       r.Assessments,
		assessmentBatches: r.AssessmentBatches,
		students:          r.Students,
		enrollments:       r.Enrollments,
		placements:        r.Placements,
		studentBatches:    r.StudentBatches,
		courses:           r.Courses,
		disciplines:       r.Disciplines,
		poles:             r.Poles,
		managers:          r.Managers,
		reports:           r.Reports,
	}
}

func fromMemory(r *memory.Repositories) repositories {
	return repositories{
		assessments:       r.Assessments,
		assessmentBatches: r.AssessmentBatches,
		students:          r.Students,
		enrollments:       r.Enrollments,
		placements:        r.Placements,
		studentBatches:    r.StudentBatches,
		courses:           r.Courses,
		disciplines:       r.Disciplines,
		poles:             r.Poles,
		managers:          r.Managers,
		reports:           r.Reports,
	}
}
