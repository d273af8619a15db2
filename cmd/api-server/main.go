package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/careslot/careslot/internal/api"
	"github.com/careslot/careslot/internal/booking"
	"github.com/careslot/careslot/internal/clinic"
	"github.com/careslot/careslot/internal/config"
	"github.com/careslot/careslot/internal/db"
	"github.com/careslot/careslot/internal/eventlog"
	"github.com/careslot/careslot/internal/logger"
	"github.com/careslot/careslot/internal/payment"
	"github.com/careslot/careslot/internal/post"
	redisclient "github.com/careslot/careslot/internal/redis"
	"github.com/careslot/careslot/internal/slot"
	"github.com/careslot/careslot/internal/subscription"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.Env)
	log.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.RunMigrations(cfg.PostgresDSN, cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("migrations failed")
	}
	log.Info().Msg("migrations up to date")

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	log.Info().Msg("connected to Postgres")

	rdb, err := redisclient.Connect(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn().Err(err).Msg("error closing redis")
		}
	}()
	log.Info().Msg("connected to Redis")

	events := eventlog.NewPgRecorder(pgPool, log)
	notifier := redisclient.NewRedisNotifier(rdb, log)

	clinicRepo := clinic.NewPgRepository(pgPool)
	slotRepo := slot.NewPgRepository(pgPool)
	bookingRepo := booking.NewPgRepository(pgPool, log)
	subRepo := subscription.NewPgRepository(pgPool, log)
	postRepo := post.NewPgRepository(pgPool)

	slotSvc := slot.NewService(slotRepo, clinicRepo, cfg.SlotHorizonDays, log)
	bookingSvc := booking.NewService(bookingRepo, slotRepo, clinicRepo, events, cfg.RazorpayKeySecret, log)
	subSvc := subscription.NewService(subRepo, slotSvc, events, notifier, cfg.RazorpayKeySecret, cfg.ExpiryLookahead, log)
	gateway := payment.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)

	router := api.NewRouter(api.RouterConfig{
		Bookings:      bookingSvc,
		Subscriptions: subSvc,
		Slots:         slotSvc,
		Clinics:       clinicRepo,
		Posts:         postRepo,
		Gateway:       gateway,
		JWTSecret:     cfg.JWTSecret,
		PgPool:        pgPool,
		Redis:         rdb,
		Env:           cfg.Env,
		Version:       version,
		Logger:        log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Fatal().Err(err).Msg("http server error")
	case <-rootCtx.Done():
	}

	log.Info().Msg("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
