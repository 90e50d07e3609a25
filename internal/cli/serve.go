package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/tutoring-scheduler-api/internal/handler"
	"github.com/noah-isme/tutoring-scheduler-api/internal/repository"
	"github.com/noah-isme/tutoring-scheduler-api/internal/router"
	"github.com/noah-isme/tutoring-scheduler-api/internal/service"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/broker"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/cache"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/config"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/database"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/export"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/jobs"
	"github.com/noah-isme/tutoring-scheduler-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logr.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logr, migrate)
		},
	}

	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, logr *zap.Logger, migrate bool) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if migrate {
		if err := repository.Migrate(ctx, db); err != nil {
			return err
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	publisher, err := newPublisher(cfg.Notifications, logr)
	if err != nil {
		return err
	}
	defer publisher.Close() //nolint:errcheck

	app := build(cfg, logr, db, redisClient, publisher)
	defer app.close()

	app.notifications.Start(ctx)
	defer app.notifications.Stop()
	app.refunds.Start(ctx)
	defer app.refunds.Stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type application struct {
	engine        http.Handler
	notifications *jobs.Queue
	refunds       *jobs.Queue
	cacheRepo     *repository.CacheRepository
}

func (a *application) close() {
	if a.cacheRepo != nil {
		_ = a.cacheRepo.Close()
	}
}

func build(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client, publisher broker.Publisher) *application {
	validate := validator.New()
	metrics := service.NewMetricsService()

	sessionRepo := repository.NewSessionRepository(db)
	availabilityRepo := repository.NewAvailabilityRepository(db)
	tutorRepo := repository.NewTutorRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	app := &application{}
	var cacheStore service.CacheStore
	if redisClient != nil {
		app.cacheRepo = repository.NewCacheRepository(redisClient, logr)
		cacheStore = app.cacheRepo
	}
	cacheSvc := service.NewCacheService(cacheStore, metrics, cfg.Availability.CacheTTL, logr, cfg.Availability.CacheEnabled)

	app.notifications = jobs.NewQueue("notifications", service.PublishHandler(publisher, metrics), jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	app.refunds = jobs.NewQueue("refunds", service.CreditHandler(ledgerRepo, logr), jobs.QueueConfig{
		Workers:    cfg.Refunds.Workers,
		MaxRetries: cfg.Refunds.MaxRetries,
		RetryDelay: cfg.Refunds.RetryDelay,
		Logger:     logr,
	})

	availabilitySvc := service.NewAvailabilityService(availabilityRepo, tutorRepo, sessionRepo, cacheSvc, cfg.Availability.CacheTTL, validate, logr)
	detector := service.NewConflictDetector(sessionRepo, availabilitySvc, service.DetectorConfigFrom(cfg.Booking), logr)
	bookingSvc := service.NewBookingService(service.BookingDeps{
		Sessions: sessionRepo,
		Tutors:   tutorRepo,
		Students: studentRepo,
		Detector: detector,
		Notifier: service.NewNotificationService(app.notifications, metrics, nil, logr),
		Refunds:  service.NewRefundDispatcher(app.refunds, nil, logr),
		Metrics:  metrics,
	}, service.BookingConfigFrom(cfg.Booking), nil, validate, logr)
	exportSvc := service.NewExportService(sessionRepo, tutorRepo, export.NewCSVExporter(), export.NewPDFExporter(), validate, logr)
	authSvc := service.NewAuthService(service.AuthConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer}, nil)

	probes := map[string]handler.Pinger{"database": db}
	if app.cacheRepo != nil {
		probes["redis"] = handler.PingerFunc(app.cacheRepo.Ping)
	}

	app.engine = router.New(router.Options{
		Config:  cfg,
		Logger:  logr,
		Auth:    authSvc,
		Metrics: metrics,
	}, router.Handlers{
		Sessions:     handler.NewSessionHandler(bookingSvc),
		Availability: handler.NewAvailabilityHandler(availabilitySvc),
		Export:       handler.NewExportHandler(exportSvc),
		Metrics:      handler.NewMetricsHandler(metrics, probes),
	})
	return app
}

func newPublisher(cfg config.NotificationsConfig, logr *zap.Logger) (broker.Publisher, error) {
	if !cfg.Enabled {
		return broker.NewLogPublisher(logr), nil
	}
	pub, err := broker.NewAMQPPublisher(cfg.AMQPURL, cfg.Queue, logr)
	if err != nil {
		return nil, fmt.Errorf("connect broker: %w", err)
	}
	return pub, nil
}
