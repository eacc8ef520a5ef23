package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/room-reservation-api/api/swagger"
	"github.com/noah-isme/room-reservation-api/internal/handler"
	"github.com/noah-isme/room-reservation-api/internal/middleware"
	"github.com/noah-isme/room-reservation-api/internal/repository"
	"github.com/noah-isme/room-reservation-api/internal/router"
	"github.com/noah-isme/room-reservation-api/internal/service"
	"github.com/noah-isme/room-reservation-api/migrations"
	"github.com/noah-isme/room-reservation-api/pkg/cache"
	"github.com/noah-isme/room-reservation-api/pkg/calendar"
	"github.com/noah-isme/room-reservation-api/pkg/config"
	"github.com/noah-isme/room-reservation-api/pkg/database"
	"github.com/noah-isme/room-reservation-api/pkg/geo"
	"github.com/noah-isme/room-reservation-api/pkg/jobs"
	"github.com/noah-isme/room-reservation-api/pkg/logger"
	"github.com/noah-isme/room-reservation-api/pkg/mailer"
	"github.com/noah-isme/room-reservation-api/pkg/scheduler"
	"github.com/noah-isme/room-reservation-api/pkg/storage"
)

// @title Room Reservation API
// @version 1.0.0
// @description Meeting room booking, user directory and notice board.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	loc, err := time.LoadLocation(cfg.Reservation.Timezone)
	if err != nil {
		return fmt.Errorf("load reservation timezone %q: %w", cfg.Reservation.Timezone, err)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if _, err := database.Migrate(ctx, db, migrations.FS, logr); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, caching disabled", zap.Error(err))
			redisClient = nil
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	validate := service.NewValidator()
	metrics := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.ReferenceTTL, logr, cacheRepo.Enabled()).
		WithNamespace(cfg.Cache.Namespace).
		WithFailureCooldown(cfg.Cache.FailCooldown)

	userRepo := repository.NewUserRepository(db)
	referenceRepo := repository.NewReferenceRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)
	noticeRepo := repository.NewNoticeRepository(db)
	reportRepo := repository.NewReportRepository(db)

	images, mediaDir, err := imageStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	exportFiles, err := storage.NewLocalStorage(cfg.Exports.StorageDir, "")
	if err != nil {
		return fmt.Errorf("init export storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	mail, err := mailer.New(cfg.Mail, logr)
	if err != nil {
		return fmt.Errorf("init mailer: %w", err)
	}
	google := calendar.NewGoogle(cfg.Calendar)

	queue := jobs.NewQueue("reservation-events", jobs.QueueConfig{
		Workers:    cfg.Calendar.Workers,
		MaxRetries: cfg.Calendar.Retries,
		Timeout:    30 * time.Second,
		Logger:     logr,
	})

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	referenceSvc := service.NewReferenceService(referenceRepo, cacheSvc, cfg.Cache.ReferenceTTL)
	bulkSvc := service.NewBulkUserService(userRepo, referenceSvc, validate, logr)
	roomSvc := service.NewRoomService(roomRepo, userRepo, images, cfg.Storage.MaxBytes, validate, logr)

	calendarSync := service.NewCalendarSyncService(google, calendarRepo, metrics, loc, logr).WithReservations(reservationRepo)
	calendarLink := service.NewCalendarLinkService(google, calendarRepo, cacheRepo, cfg.Calendar.StateTTL, logr)
	notifier := service.NewNotificationService(mail, userRepo, metrics, loc, logr)
	dispatcher := service.NewReservationDispatcher(queue, calendarSync, notifier, metrics, logr)

	reservationSvc := service.NewReservationService(service.ReservationServiceParams{
		Repo:    reservationRepo,
		Users:   userRepo,
		Rooms:   roomRepo,
		Limits:  referenceSvc,
		Audit:   userRepo,
		Events:  dispatcher,
		Metrics: metrics,
		Policy: service.ReservationPolicy{
			Location:      loc,
			AllowPast:     cfg.Reservation.AllowPast,
			OpenHour:      cfg.Reservation.OpenHour,
			CloseHour:     cfg.Reservation.CloseHour,
			SlotMinutes:   cfg.Reservation.SlotMinutes,
			CheckInWindow: cfg.CheckIn.Window,
			MaxDistance:   cfg.CheckIn.MaxDistanceMeters,
			CheckInPoint:  geo.Point{Latitude: cfg.CheckIn.Latitude, Longitude: cfg.CheckIn.Longitude},
		},
		Validator: validate,
		Logger:    logr,
	})
	exportSvc := service.NewExportService(reservationRepo, exportFiles, signer, service.ExportConfig{
		DownloadPrefix: strings.TrimRight(cfg.APIPrefix, "/") + "/exports",
		ResultTTL:      cfg.Exports.SignedURLTTL,
		Location:       loc,
	}, validate, logr)
	noticeSvc := service.NewNoticeService(noticeRepo, userRepo, cacheSvc, cfg.Cache.NoticeTTL, validate, logr)
	reportSvc := service.NewReportService(reportRepo, validate, logr)
	housekeeping := service.NewHousekeepingService(exportSvc, userRepo, logr)

	queue.Start(ctx)
	defer queue.Stop()

	sched, err := scheduler.New(logr, 5*time.Minute)
	if err != nil {
		return err
	}
	if err := housekeeping.Schedule(sched, cfg.Exports.CleanupInterval); err != nil {
		return fmt.Errorf("schedule housekeeping: %w", err)
	}
	sched.Start()
	defer func() {
		if err := sched.Shutdown(); err != nil {
			logr.Warn("scheduler shutdown", zap.Error(err))
		}
	}()

	checks := map[string]handler.Pinger{"database": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	engine := router.New(router.Handlers{
		Auth:        handler.NewAuthHandler(authSvc, userSvc),
		User:        handler.NewUserHandler(userSvc, bulkSvc, referenceSvc),
		Room:        handler.NewRoomHandler(roomSvc, reservationSvc),
		Reservation: handler.NewReservationHandler(reservationSvc),
		Export:      handler.NewExportHandler(exportSvc),
		Calendar:    handler.NewCalendarHandler(calendarLink),
		Board:       handler.NewBoardHandler(noticeSvc, reportSvc),
		Metrics:     handler.NewMetricsHandler(metrics, checks),
	}, router.Options{
		Env:            cfg.Env,
		APIPrefix:      cfg.APIPrefix,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		MediaDir:       mediaDir,
		MediaPrefix:    cfg.Storage.PublicURL,
		Tokens:         authSvc,
		Metrics:        metrics,
		Audit:          userRepo,
		LoginLimiter:   middleware.NewIPRateLimiter(cfg.RateLimit.LoginPerMinute, cfg.RateLimit.LoginBurst),
		Logger:         logr,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// imageStore picks the room image backend. The returned directory is non-empty only for
// local storage, whose files the router serves directly.
func imageStore(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStore, string, error) {
	if cfg.Driver == "s3" {
		store, err := storage.NewS3Storage(ctx, cfg.S3Bucket, cfg.S3Region, cfg.PublicURL)
		if err != nil {
			return nil, "", fmt.Errorf("init s3 storage: %w", err)
		}
		return store, "", nil
	}
	store, err := storage.NewLocalStorage(cfg.Dir, cfg.PublicURL)
	if err != nil {
		return nil, "", fmt.Errorf("init local storage: %w", err)
	}
	return store, store.Dir(), nil
}
