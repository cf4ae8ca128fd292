package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/config"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	appHTTP "github.com/cmlabs-hris/attendance-engine/internal/handler/http"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/cron"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/database"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/events"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
	"github.com/cmlabs-hris/attendance-engine/internal/repository/postgresql"
	redisRepo "github.com/cmlabs-hris/attendance-engine/internal/repository/redis"
	attendanceService "github.com/cmlabs-hris/attendance-engine/internal/service/attendance"
	locationService "github.com/cmlabs-hris/attendance-engine/internal/service/location"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var migrate bool

	root := &cobra.Command{
		Use:           "api",
		Short:         "Attendance API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				slog.Error("Error loading config", "error", err)
				return err
			}
			if err := serve(cmd.Context(), cfg, migrate); err != nil {
				slog.Error("Server stopped with error", "error", err)
				return err
			}
			return nil
		},
	}
	root.Flags().BoolVar(&migrate, "migrate", false, "apply database migrations before serving")

	root.AddCommand(newMigrateCommand(), newTokenCommand())
	return root
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgresql.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			slog.Info("Database migrated")
			return nil
		},
	}
}

// newTokenCommand issues an access token for local testing with attendctl.
func newTokenCommand() *cobra.Command {
	var userID, companyID string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an access token for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			JWTService, err := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
			if err != nil {
				return err
			}
			token, expiresAt, err := JWTService.GenerateAccessToken(userID, companyID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			slog.Info("Access token issued", "user_id", userID, "company_id", companyID, "expires_at", time.Unix(expiresAt, 0))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&companyID, "company", "", "company id (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("company")
	return cmd
}

func openDB(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	return database.NewPostgreSQLDB(ctx, cfg.DatabaseURL(), database.PoolOptions{
		MaxConns: cfg.Database.MaxConns,
		MinConns: cfg.Database.MinConns,
	})
}

func serve(parent context.Context, cfg *config.Config, migrate bool) error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if migrate {
		if err := postgresql.Migrate(ctx, db); err != nil {
			return err
		}
	}

	policy, err := cfg.Policy()
	if err != nil {
		return err
	}

	JWTService, err := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	if err != nil {
		return err
	}

	attendanceRepo := postgresql.NewAttendanceRepository(db)
	breakRepo := postgresql.NewBreakRepository(db)
	dailyLogRepo := postgresql.NewDailyLogRepository(db)
	locationRepo := postgresql.NewLocationRepository(db)

	var locationCache location.LocationCache
	if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			slog.Warn("Redis unavailable, location cache disabled", "addr", cfg.Redis.Addr, "error", err)
		} else {
			locationCache = redisRepo.NewLocationCache(rdb)
		}
	}

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.AttendanceTopic)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			slog.Warn("Failed to close event publisher", "error", err)
		}
	}()

	hub := sse.NewHub()
	if err := metrics.RegisterStreamGauge(hub.TotalSubscribers); err != nil {
		return err
	}

	locationSvc := locationService.NewLocationService(locationRepo, locationCache, cfg.Redis.LocationTTL)
	attendanceSvc := attendanceService.NewAttendanceService(
		postgresql.NewTransactor(db),
		attendanceRepo,
		breakRepo,
		dailyLogRepo,
		locationSvc,
		policy,
		attendanceService.WithPublisher(publisher),
		attendanceService.WithHub(hub),
	)

	scheduler := cron.NewScheduler()
	cron.NewAttendanceJobs(attendanceSvc, cfg.Attendance.StaleSweepInterval).RegisterJobs(scheduler)

	router := appHTTP.NewRouter(JWTService, appHTTP.Handlers{
		Attendance: appHTTP.NewAttendanceHandler(attendanceSvc),
		Location:   appHTTP.NewLocationHandler(locationSvc),
		DailyLog:   appHTTP.NewDailyLogHandler(attendanceSvc),
		Stream:     appHTTP.NewStreamHandler(hub, JWTService),
	}, appHTTP.RouterOptions{
		AppName:        cfg.App.Name,
		Version:        cfg.App.Version,
		Env:            cfg.App.Env,
		AllowedOrigins: cfg.App.AllowedOrigins,
		LogLevel:       cfg.SlogLevel(),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server running", "addr", server.Addr, "env", cfg.App.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		scheduler.Start(gctx)
		<-gctx.Done()
		scheduler.Stop()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
