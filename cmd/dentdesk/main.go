package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dentdesk/dentdesk/internal/config"
	"github.com/dentdesk/dentdesk/internal/domain/inventory"
	"github.com/dentdesk/dentdesk/internal/domain/ledger"
	"github.com/dentdesk/dentdesk/internal/domain/patient"
	"github.com/dentdesk/dentdesk/internal/domain/reminder"
	"github.com/dentdesk/dentdesk/internal/domain/scheduling"
	"github.com/dentdesk/dentdesk/internal/domain/treatment"
	"github.com/dentdesk/dentdesk/internal/domain/treatmentplan"
	"github.com/dentdesk/dentdesk/internal/fixtures"
	"github.com/dentdesk/dentdesk/internal/platform/db"
	"github.com/dentdesk/dentdesk/internal/platform/export"
	"github.com/dentdesk/dentdesk/internal/platform/logging"
	"github.com/dentdesk/dentdesk/internal/platform/metrics"
	"github.com/dentdesk/dentdesk/internal/platform/middleware"
	"github.com/dentdesk/dentdesk/internal/platform/notification"
	"github.com/dentdesk/dentdesk/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dentdesk",
		Short: "Dental clinic front-desk API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(remindCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, _ := cmd.Flags().GetBool("seed")
			return runServer(seed)
		},
	}
	cmd.Flags().Bool("seed", false, "Load demo data before serving (memory store only)")
	return cmd
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
			to, _ := cmd.Flags().GetInt("to")
			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				migrator := db.NewMigrator(pool, migrations.FS)
				var (
					count int
					err   error
				)
				if to > 0 {
					count, err = migrator.UpTo(ctx, to)
				} else {
					count, err = migrator.Up(ctx)
				}
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies all)")
	cmd.AddCommand(upCmd)

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printMigrationStatus(os.Stdout, statuses)
				return nil
			})
		},
	})

	return cmd
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func withPool(fn func(ctx context.Context, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool)
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo data into the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, cleanup, err := bootstrap(context.Background())
			if err != nil {
				return err
			}
			defer cleanup()
			if a.cfg.Store == config.StoreMemory {
				a.logger.Warn().Msg("memory store: seeded data is discarded on exit, use serve --seed instead")
			}
			res, err := fixtures.Load(cmd.Context(), a.fixtureServices(), time.Now(), a.logger)
			if err != nil {
				return err
			}
			fmt.Printf("Seeded %d patients, %d appointments, %d invoices, %d plans and %d inventory items.\n",
				res.Patients, res.Appointments, res.Invoices, res.Plans, res.Items)
			return nil
		},
	}
}

func remindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Send appointment reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			once, _ := cmd.Flags().GetBool("once")
			a, cleanup, err := bootstrap(context.Background())
			if err != nil {
				return err
			}
			defer cleanup()

			if once {
				n, err := a.reminderJob.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Printf("Sent %d reminder(s).\n", n)
				return nil
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := a.reminderJob.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			a.reminderJob.Stop()
			return nil
		},
	}
	cmd.Flags().Bool("once", false, "Run a single scan and exit")
	return cmd
}

// app holds the wired services of one process.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *pgxpool.Pool

	patients     *patient.Service
	treatments   *treatment.Service
	ledger       *ledger.Service
	plans        *treatmentplan.Service
	appointments *scheduling.Service
	inventory    *inventory.Service
	notifier     *notification.Manager
	reminders    *reminder.Service
	reminderJob  *reminder.Job
}

func (a *app) fixtureServices() fixtures.Services {
	return fixtures.Services{
		Patients:     a.patients,
		Treatments:   a.treatments,
		Ledger:       a.ledger,
		Plans:        a.plans,
		Appointments: a.appointments,
		Inventory:    a.inventory,
	}
}

// bootstrap loads config, builds the logger and wires the services.
func bootstrap(ctx context.Context) (*app, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, logCloser := logging.New(logging.Options{
		Level:          cfg.LogLevel,
		Console:        cfg.IsDev(),
		File:           cfg.LogFile,
		FileMaxSizeMB:  cfg.LogFileMaxSizeMB,
		FileMaxBackups: cfg.LogFileMaxBackups,
		FileMaxAgeDays: cfg.LogFileMaxAgeDays,
	})

	a, closeApp, err := newApp(ctx, cfg, logger)
	if err != nil {
		logCloser.Close()
		return nil, nil, err
	}
	return a, func() {
		closeApp()
		logCloser.Close()
	}, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, func(), error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}
	policy, err := scheduling.ParseConflictPolicy(cfg.SlotConflictPolicy)
	if err != nil {
		return nil, nil, err
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	a := &app{cfg: cfg, logger: logger}

	var (
		patientRepo   patient.Repository
		treatmentRepo treatment.Repository
		invoiceRepo   ledger.Repository
		planRepo      treatmentplan.Repository
		apptRepo      scheduling.Repository
		itemRepo      inventory.Repository
	)
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		closers = append(closers, pool.Close)
		a.pool = pool
		patientRepo = patient.NewRepoPG(pool)
		treatmentRepo = treatment.NewRepoPG(pool)
		invoiceRepo = ledger.NewRepoPG(pool)
		planRepo = treatmentplan.NewRepoPG(pool)
		apptRepo = scheduling.NewRepoPG(pool)
		itemRepo = inventory.NewRepoPG(pool)
		logger.Info().Msg("connected to database")
	default:
		patientRepo = patient.NewMemRepo()
		treatmentRepo = treatment.NewMemRepo()
		invoiceRepo = ledger.NewMemRepo()
		planRepo = treatmentplan.NewMemRepo()
		apptRepo = scheduling.NewMemRepo()
		itemRepo = inventory.NewMemRepo()
		logger.Info().Msg("using in-memory store")
	}

	clinic := export.Clinic{Name: cfg.ClinicName, Address: cfg.ClinicAddress, Phone: cfg.ClinicPhone}

	a.patients = patient.NewService(patientRepo, cfg.PhoneRegion)
	a.treatments = treatment.NewService(treatmentRepo, a.patients, loc)
	a.ledger = ledger.NewService(invoiceRepo, a.patients, loc, cfg.Currency)
	a.plans = treatmentplan.NewService(planRepo, a.patients, clinic, cfg.Currency, loc)
	a.appointments = scheduling.NewService(apptRepo, a.patients, loc, policy)
	a.inventory = inventory.NewService(itemRepo)

	a.plans.SetBilling(a.ledger)
	a.ledger.SetPlanChecker(a.plans)
	a.patients.SetBalanceChecker(a.ledger)

	// Notifications
	var email notification.Sender
	if cfg.SMTPHost != "" {
		smtp, err := notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			UseTLS:   cfg.SMTPUseTLS,
			Timeout:  cfg.SMTPTimeout(),
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("smtp: %w", err)
		}
		email = smtp
	}
	a.notifier = notification.NewManager(email, notification.NewLogSender(logger), notification.NewTemplateEngine())

	// Reminders
	var gen reminder.Generator = reminder.TemplateGenerator{ClinicName: cfg.ClinicName, ClinicPhone: cfg.ClinicPhone}
	if cfg.ReminderEndpoint != "" {
		gen = reminder.NewHTTPGenerator(cfg.ReminderEndpoint, 0)
	}
	a.reminders = reminder.NewService(gen, logger)

	var sent reminder.SentStore = reminder.NewMemSentStore()
	if cfg.RedisURL != "" {
		rs, err := reminder.NewRedisSentStore(ctx, cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		closers = append(closers, func() { _ = rs.Close() })
		sent = rs
	}
	a.reminderJob = reminder.NewJob(reminder.JobConfig{
		Interval:    cfg.ReminderInterval(),
		Lead:        cfg.ReminderLead(),
		Window:      cfg.ReminderWindow(),
		ClinicName:  cfg.ClinicName,
		ClinicPhone: cfg.ClinicPhone,
	}, a.appointments, a.patients, gen, a.notifier, sent, loc, logger)

	return a, cleanup, nil
}

// newRouter builds the echo server with every route registered.
func newRouter(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", middleware.RequestIDHeader},
	}))
	if a.cfg.RateLimitRPS > 0 {
		e.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: a.cfg.RateLimitRPS,
			BurstSize:         a.cfg.RateLimitBurst,
		}))
	}
	e.Use(echomw.BodyLimit("2M"))

	apiV1 := e.Group("/api/v1", middleware.RequestTimeout(30*time.Second))
	patient.NewHandler(a.patients).RegisterRoutes(apiV1)
	treatment.NewHandler(a.treatments).RegisterRoutes(apiV1)
	ledger.NewHandler(a.ledger).RegisterRoutes(apiV1)
	treatmentplan.NewHandler(a.plans).RegisterRoutes(apiV1)
	scheduling.NewHandler(a.appointments).RegisterRoutes(apiV1)
	inventory.NewHandler(a.inventory).RegisterRoutes(apiV1)
	reminder.NewHandler(a.reminders).RegisterRoutes(apiV1)
	notification.NewHandler(a.notifier).RegisterRoutes(apiV1)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "store": a.cfg.Store})
	})
	if a.pool != nil {
		e.GET("/health/db", db.HealthHandler(a.pool))
	}
	e.GET("/metrics", metrics.Handler())
	return e
}

func runServer(seed bool) error {
	a, cleanup, err := bootstrap(context.Background())
	if err != nil {
		return err
	}
	defer cleanup()
	logger := a.logger

	if seed {
		if a.cfg.Store != config.StoreMemory {
			return fmt.Errorf("--seed only applies to the memory store, run \"dentdesk seed\" instead")
		}
		if _, err := fixtures.Load(context.Background(), a.fixtureServices(), time.Now(), logger); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	jobCtx, stopJob := context.WithCancel(context.Background())
	defer stopJob()
	if a.cfg.ReminderEnabled {
		if err := a.reminderJob.Start(jobCtx); err != nil {
			return err
		}
		defer a.reminderJob.Stop()
	}

	e := newRouter(a)

	// Graceful shutdown
	go func() {
		addr := ":" + a.cfg.Port
		logger.Info().Str("addr", addr).Str("store", a.cfg.Store).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
