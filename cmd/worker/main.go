package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kasir/internal/config"
	"github.com/noah-isme/backend-kasir/internal/events"
	"github.com/noah-isme/backend-kasir/internal/lock"
	"github.com/noah-isme/backend-kasir/internal/obs"
	"github.com/noah-isme/backend-kasir/internal/reports"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	locker := lock.Locker{R: redisClient, RetryBackoff: cfg.LockRetryBackoff}
	relay := &events.Relay{
		Store:     &events.PGStore{Pool: pool},
		Notifiers: []events.Notifier{eventLogger{log: logger}},
		R:         redisClient,
		Log:       logger,
	}
	reportSvc := &reports.Service{
		Q:   &reports.PGQuerier{Pool: pool},
		R:   redisClient,
		TTL: cfg.ReportCacheTTL,
	}

	relayInterval := envDuration("WORKER_RELAY_INTERVAL", 5*time.Second)
	warmInterval := envDuration("WORKER_WARM_INTERVAL", 5*time.Minute)

	logger.Info().
		Dur("relay_interval", relayInterval).
		Dur("warm_interval", warmInterval).
		Msg("worker starting")

	relayTicker := time.NewTicker(relayInterval)
	defer relayTicker.Stop()
	warmTicker := time.NewTicker(warmInterval)
	defer warmTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("worker shutdown complete")
			return
		case <-relayTicker.C:
			runExclusive(ctx, locker, "kasir:lock:worker:relay", cfg.LockTTL, logger, func(tickCtx context.Context) error {
				n, err := relay.RunOnce(tickCtx)
				if n > 0 {
					logger.Debug().Int("events", n).Msg("relayed domain events")
				}
				return err
			})
		case <-warmTicker.C:
			runExclusive(ctx, locker, "kasir:lock:worker:reports", cfg.LockTTL, logger, func(tickCtx context.Context) error {
				return warmReports(tickCtx, reportSvc)
			})
		}
	}
}

// runExclusive runs fn under a distributed lock so only one worker replica
// performs the tick. A held lock means another replica is on it; skip quietly.
func runExclusive(ctx context.Context, locker lock.Locker, key string, ttl time.Duration, logger zerolog.Logger, fn func(context.Context) error) {
	tickCtx, cancel := context.WithTimeout(ctx, ttl)
	defer cancel()
	err := locker.TryLock(tickCtx, key, ttl, fn)
	if err == nil || errors.Is(err, lock.ErrNotAcquired) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	logger.Error().Err(err).Str("lock", key).Msg("worker tick")
}

// warmReports refreshes the report caches the register UI polls most, so the
// first request after a TTL expiry never pays the aggregate query.
func warmReports(ctx context.Context, svc *reports.Service) error {
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -7).Truncate(24 * time.Hour)
	if _, err := svc.SalesRange(ctx, from, now); err != nil {
		return err
	}
	_, err := svc.TopProducts(ctx, 10, 0)
	return err
}

// eventLogger mirrors relayed events into the worker log. Low stock gets a
// warning so it shows up in alerting without a separate pipeline.
type eventLogger struct {
	log zerolog.Logger
}

func (e eventLogger) Notify(_ context.Context, ev events.Event) error {
	entry := e.log.Info()
	if ev.Topic == events.TopicStockLow {
		entry = e.log.Warn()
	}
	entry.
		Str("topic", ev.Topic).
		Str("aggregate_id", ev.AggregateID.String()).
		RawJSON("payload", ev.Payload).
		Time("occurred_at", ev.OccurredAt).
		Msg("domain event")
	return nil
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "kasir-worker"
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisClient
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
