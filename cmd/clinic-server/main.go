package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Peiying0830/Careplus-sub003/internal/config"
	"github.com/Peiying0830/Careplus-sub003/internal/domain/appointment"
	"github.com/Peiying0830/Careplus-sub003/internal/domain/checkin"
	"github.com/Peiying0830/Careplus-sub003/internal/domain/doctor"
	"github.com/Peiying0830/Careplus-sub003/internal/domain/medicalrecord"
	"github.com/Peiying0830/Careplus-sub003/internal/domain/patient"
	"github.com/Peiying0830/Careplus-sub003/internal/domain/prescription"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/apperror"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/auth"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/db"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/hipaa"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/metrics"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/middleware"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/notification"
	"github.com/Peiying0830/Careplus-sub003/internal/platform/websocket"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Careplus doctor module API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the doctor API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			migrator, closeFn, err := openMigrator(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			migrator, closeFn, err := openMigrator(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func openMigrator(ctx context.Context, cmd *cobra.Command) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.MigrationsDir
	}

	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, dir), pool.Close, nil
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid timezone")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, poolConfig(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Str("timezone", loc.String()).Msg("connected to database")

	uow := db.NewTransactor(pool)
	m := metrics.New()
	hub := websocket.NewHub(logger)
	templates := notification.NewTemplateEngine()
	if cfg.NotificationTemplates != "" {
		if err := templates.LoadFile(cfg.NotificationTemplates); err != nil {
			logger.Fatal().Err(err).Msg("failed to load notification templates")
		}
		logger.Info().Str("file", cfg.NotificationTemplates).Msg("notification templates loaded")
	}
	notifier := notification.NewNotifier(notification.NewPGStore(pool), templates)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	if cfg.MetricsEnabled {
		e.Use(m.Middleware())
		e.GET("/metrics", m.Handler())
	}

	e.GET("/health", db.HealthHandler(pool))

	// Doctor API
	api := e.Group("/api/v1/doctor")
	api.Use(authMiddleware(cfg))
	api.Use(auth.RequireRole(auth.RoleDoctor))
	api.Use(middleware.RateLimit(rateLimitConfig(cfg), scanLimit(cfg)))
	api.Use(middleware.Audit(logger, hipaa.NewAccessLogger(pool)))

	doctorSvc := doctor.NewService(doctor.NewRepoPG(pool), loc)
	doctor.NewHandler(doctorSvc).RegisterRoutes(api)

	apptSvc := appointment.NewService(appointment.NewRepoPG(pool), doctorSvc, notifier, loc,
		appointment.WithPublisher(hub),
		appointment.WithMetrics(m),
		appointment.WithLogger(logger),
	)
	appointment.NewHandler(apptSvc).RegisterRoutes(api)

	checkinEngine := checkin.NewEngine(uow, checkin.NewRepoPG(pool), doctorSvc, notifier, loc,
		checkin.WithPublisher(hub),
		checkin.WithMetrics(m),
		checkin.WithLogger(logger),
	)
	checkin.NewHandler(checkinEngine).RegisterRoutes(api)

	rxEngine := prescription.NewEngine(uow, prescription.NewRepoPG(pool), doctorSvc, loc,
		prescription.WithPublisher(hub),
		prescription.WithMetrics(m),
		prescription.WithLogger(logger),
		prescription.WithValidDays(cfg.PrescriptionValidDays),
	)
	prescription.NewHandler(rxEngine).RegisterRoutes(api)

	recordSvc := medicalrecord.NewService(medicalrecord.NewRepoPG(pool), doctorSvc, loc, logger)
	medicalrecord.NewHandler(recordSvc).RegisterRoutes(api)

	patientSvc := patient.NewService(patient.NewRepoPG(pool), doctorSvc)
	patient.NewHandler(patientSvc).RegisterRoutes(api)

	wsHandler := websocket.NewWebSocketHandler(hub, doctorTopics(doctorSvc), cfg.CORSOrigins, logger)
	wsHandler.RegisterRoutes(api)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func poolConfig(cfg *config.Config) db.PoolConfig {
	return db.PoolConfig{
		DatabaseURL:     cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: cfg.DBMaxConnLifetime,
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
		TimeZone:        cfg.Timezone,
		ApplicationName: "clinic-server",
	}
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		return auth.DevAuthMiddleware()
	}
	return auth.JWTMiddleware(auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		SigningKey: []byte(cfg.AuthSigningKey),
	})
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rl.RequestsPerSecond <= 0 || rl.BurstSize <= 0 {
		return middleware.DefaultRateLimitConfig()
	}
	return rl
}

// scanLimit caps QR check-ins per doctor separately from browsing, so codes
// cannot be guessed at the general request rate.
func scanLimit(cfg *config.Config) middleware.RouteLimit {
	limit := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.ScanRateLimitRPS,
		BurstSize:         cfg.ScanRateLimitBurst,
	}
	if limit.RequestsPerSecond <= 0 || limit.BurstSize <= 0 {
		limit = middleware.RateLimitConfig{RequestsPerSecond: 1, BurstSize: 10}
	}
	return middleware.RouteLimit{Method: http.MethodPost, Path: "/api/v1/doctor/checkin", Limit: limit}
}

type doctorIDResolver interface {
	ResolveDoctorID(ctx context.Context, userID int64) (int64, error)
}

// doctorTopics subscribes a socket to the caller's own doctor topic only.
func doctorTopics(doctors doctorIDResolver) websocket.TopicFunc {
	return func(c echo.Context) ([]string, error) {
		id, err := auth.FromEcho(c)
		if err != nil {
			return nil, err
		}
		doctorID, err := doctors.ResolveDoctorID(c.Request().Context(), id.UserID)
		if err != nil {
			return nil, err
		}
		return []string{websocket.DoctorTopic(doctorID)}, nil
	}
}
