// Package storage is the optional, best-effort ride-event audit trail
// (spec §11 domain stack). It is never a dependency of matching
// correctness: when DATABASE_URL is unset, Noop satisfies
// dispatch.AuditLogger as a no-op, mirroring the teacher's own
// "falls back to in-memory" pattern in cmd/server/main.go.
package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DefaultPool opens a pgx connection pool, adapted from the teacher's
// storage.DefaultPool.
func DefaultPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnLifetime = time.Hour
	return pgxpool.NewWithConfig(ctx, cfg)
}

// Postgres is the pgx-backed audit logger: one append-only ride_events
// table, trimmed from the teacher's full rides/drivers persistence layer
// (internal/storage/postgres.go + events.go) down to the slice this repo's
// in-memory-authoritative design still wants: an observability mirror.
type Postgres struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPostgres wraps an already-connected pool.
func NewPostgres(pool *pgxpool.Pool, log zerolog.Logger) *Postgres {
	return &Postgres{pool: pool, log: log}
}

// EnsureSchema applies the trimmed ride_events schema.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	return ApplySchema(ctx, p.pool)
}

// Ping is used by the readiness endpoint.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// LogRideEvent satisfies dispatch.AuditLogger. It fires the insert on its
// own goroutine with a bounded timeout so a slow or unreachable database
// never adds latency to the matching core — per spec §11, this mirror's
// correctness is never load-bearing.
func (p *Postgres) LogRideEvent(rideID, eventType string, detail map[string]any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		body, err := json.Marshal(detail)
		if err != nil {
			p.log.Error().Err(err).Str("ride_id", rideID).Msg("marshal ride event detail")
			return
		}
		_, err = p.pool.Exec(ctx, `
INSERT INTO ride_events (ride_id, event_type, detail, created_at)
VALUES ($1,$2,$3,NOW())
`, rideID, eventType, body)
		if err != nil {
			p.log.Error().Err(err).Str("ride_id", rideID).Str("event_type", eventType).Msg("append ride event")
		}
	}()
}

// Noop is the zero-dependency audit logger used when DATABASE_URL is unset.
type Noop struct{}

func (Noop) LogRideEvent(string, string, map[string]any) {}
