// Command server runs the ride-dispatch core: the WS gateway, the matching
// engine, and the HTTP surface around them. Wiring follows the teacher's
// cmd/server/main.go (optional Redis/Postgres, env-driven config, a
// background driver-prune loop), with graceful shutdown added in the manner
// of artpromedia-ubi's ride-service main.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ridedispatch/internal/config"
	"ridedispatch/internal/dispatch"
	"ridedispatch/internal/gateway"
	"ridedispatch/internal/geo"
	"ridedispatch/internal/httpapi"
	"ridedispatch/internal/logging"
	"ridedispatch/internal/metrics"
	"ridedispatch/internal/storage"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Env)

	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)

	drivers := dispatch.NewDriverRegistry()
	rides := dispatch.NewRideRegistry()

	audit, dbPing := initAudit(cfg, log)

	// initGeoIndex returns a typed *geo.RedisIndex, possibly nil; boxing a
	// nil pointer straight into an interface would leave a non-nil interface
	// holding a nil pointer, so only box it into either interface when real.
	// The same *RedisIndex backs both the gateway's write side (Upsert on
	// driver_localizacao, Remove on disconnect) and the scheduler's read
	// side (Nearest as a prefilter ahead of the in-memory scan).
	var geoIdxForGateway gateway.GeoIndex
	var geoIdxForDispatch dispatch.GeoIndex
	if idx := initGeoIndex(cfg, log); idx != nil {
		geoIdxForGateway = idx
		geoIdxForDispatch = idx
	}

	// sched/arbiter/router all need a dispatch.Broadcaster, and Gateway is
	// the Broadcaster — but Gateway also needs sched/arbiter/router. Break
	// the cycle with a forwarding Broadcaster that resolves gw lazily, the
	// way the teacher's hub/store wiring avoids an import cycle with a
	// small adapter type.
	var gw *gateway.Gateway
	bc := lazyBroadcaster{get: func() dispatch.Broadcaster { return gw }}

	sched := dispatch.NewScheduler(dispatch.AuctionConfig{
		BatchSize:      cfg.BatchSize,
		OfferTTL:       cfg.OfferTTL,
		MaxRounds:      cfg.MaxRounds,
		DriverStaleTTL: cfg.DriverStaleTTL,
		QuickTestMode:  cfg.QuickTestMode,
		RetryDelay:     cfg.RetryDelay,
	}, drivers, rides, bc, rec, audit, geoIdxForDispatch, log)
	arbiter := dispatch.NewArbiter(rides, bc, rec, audit, log)
	router := dispatch.NewRouter(rides, drivers, bc, cfg.LingerDelay, log)

	gw = gateway.New(drivers, rides, sched, arbiter, router, geoIdxForGateway, log)

	go startDriverPrune(drivers, rides, rec, cfg.DriverPruneInterval, cfg.DriverPruneGrace, log)

	r := httpapi.NewRouter(gw, dbPing, log)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("dispatch core listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("exited")
}

// lazyBroadcaster lets the scheduler/arbiter/router be constructed before
// the *gateway.Gateway that implements dispatch.Broadcaster exists.
type lazyBroadcaster struct {
	get func() dispatch.Broadcaster
}

func (b lazyBroadcaster) SendToConn(connID, event string, payload any) {
	b.get().SendToConn(connID, event, payload)
}
func (b lazyBroadcaster) SendToRoom(room, event string, payload any) {
	b.get().SendToRoom(room, event, payload)
}
func (b lazyBroadcaster) JoinRoom(room, connID string) { b.get().JoinRoom(room, connID) }
func (b lazyBroadcaster) EvictRoom(room string)        { b.get().EvictRoom(room) }

// initAudit wires the optional Postgres-backed audit trail, falling back to
// a no-op when DATABASE_URL is unset or unreachable — mirroring the
// teacher's "falls back to in-memory, fatal in prod" pattern.
func initAudit(cfg config.Config, log zerolog.Logger) (dispatch.AuditLogger, httpapi.Pinger) {
	if cfg.DatabaseURL == "" {
		return storage.Noop{}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := storage.DefaultPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Warn().Err(err).Msg("database connection failed, audit trail disabled")
		if cfg.Env == "prod" {
			log.Fatal().Msg("DATABASE_URL required in prod")
		}
		return storage.Noop{}, nil
	}

	pg := storage.NewPostgres(pool, log)
	if err := pg.EnsureSchema(ctx); err != nil {
		log.Warn().Err(err).Msg("ride_events schema init failed, audit trail disabled")
		if cfg.Env == "prod" {
			log.Fatal().Msg("schema init required in prod")
		}
		return storage.Noop{}, nil
	}

	log.Info().Msg("audit trail: using PostgreSQL")
	return pg, pg
}

// initGeoIndex wires the optional Redis GEO prefilter, returning nil when
// REDIS_URL is unset or unreachable — candidate selection then runs purely
// off the in-memory registry.
func initGeoIndex(cfg config.Config, log zerolog.Logger) *geo.RedisIndex {
	if cfg.RedisURL == "" {
		return nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("REDIS_URL parse failed, geo prefilter disabled")
		if cfg.Env == "prod" {
			log.Fatal().Msg("REDIS_URL parse failed in prod")
		}
		return nil
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis unreachable, geo prefilter disabled")
		if cfg.Env == "prod" {
			log.Fatal().Msg("redis reachable required in prod")
		}
		return nil
	}

	log.Info().Msg("geo prefilter: using Redis GEO index")
	return geo.NewRedisIndex(client, "")
}

// ridesInFlightStatuses are the gauge's label values — every RideStatus a
// ride can carry. Failed rides are deleted as soon as sem_motoristas is
// sent; completed/canceled rides stay in the registry for the session
// router's linger delay before being deleted.
var ridesInFlightStatuses = []dispatch.RideStatus{
	dispatch.RideSearching,
	dispatch.RideAccepted,
	dispatch.RideFailed,
	dispatch.RideCompleted,
	dispatch.RideCanceled,
}

// startDriverPrune periodically evicts unavailable driver-registry entries
// whose last location (or registration, if none) is older than grace — see
// DriverRegistry.PruneStale. This is the supplemented driver-staleness
// sweep resolving spec's "remove eventually" open question — mirrors the
// teacher's startDriverPrune loop. It also doubles as the /metrics gauge
// sweep: connected/available driver counts and rides-in-flight by status
// only change at event time, but sampling them on this same tick is cheaper
// than a .Set() at every mutation site.
func startDriverPrune(drivers *dispatch.DriverRegistry, rides *dispatch.RideRegistry, rec *metrics.Recorder, interval, grace time.Duration, log zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		removed := drivers.PruneStale(time.Now(), grace)
		total, available := drivers.Counts()
		rec.DriversConnected.Set(float64(total))
		rec.DriversAvailable.Set(float64(available))

		counts := make(map[dispatch.RideStatus]int)
		for _, ride := range rides.All() {
			ride.Lock()
			counts[ride.Status]++
			ride.Unlock()
		}
		for _, status := range ridesInFlightStatuses {
			rec.RidesInFlight.WithLabelValues(string(status)).Set(float64(counts[status]))
		}

		if removed > 0 {
			log.Debug().Int("removed", removed).Int("total", total).Int("available", available).Msg("driver prune")
		}
		if total > 0 && available == 0 {
			log.Warn().Int("total", total).Msg("zero available drivers")
		}
	}
}
