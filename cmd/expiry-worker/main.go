package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/careslot/careslot/internal/booking"
	"github.com/careslot/careslot/internal/clinic"
	"github.com/careslot/careslot/internal/config"
	"github.com/careslot/careslot/internal/db"
	"github.com/careslot/careslot/internal/eventlog"
	"github.com/careslot/careslot/internal/logger"
	redisclient "github.com/careslot/careslot/internal/redis"
	"github.com/careslot/careslot/internal/slot"
	"github.com/careslot/careslot/internal/subscription"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config load error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel, cfg.Env)
	log.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("expiry-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	slotSvc := slot.NewService(slotRepo, clinicRepo, cfg.SlotHorizonDays, log)
	bookingSvc := booking.NewService(bookingRepo, slotRepo, clinicRepo, events, cfg.RazorpayKeySecret, log)
	subSvc := subscription.NewService(subRepo, slotSvc, events, notifier, cfg.RazorpayKeySecret, cfg.ExpiryLookahead, log)

	// Run once at startup
	runOnce(rootCtx, subSvc, bookingSvc, log)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info().Msg("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, subSvc, bookingSvc, log)
		}
	}
}

func runOnce(ctx context.Context, subs *subscription.Service, bookings *booking.Service, log zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := subs.RunExpirySweep(runCtx); err != nil {
		log.Error().Err(err).Msg("subscription expiry sweep error")
	}
	if _, err := bookings.Reconcile(runCtx); err != nil {
		log.Error().Err(err).Msg("slot reconciliation error")
	}
	log.Info().Dur("took", time.Since(start)).Msg("worker run complete")
}
