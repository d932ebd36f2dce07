package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// GeoIndex is the optional Redis GEO prefilter for candidate selection
// (internal/geo.RedisIndex satisfies this). Losing it — nil, or a query
// error — only degrades selection to the full in-memory scan.
type GeoIndex interface {
	Nearest(ctx context.Context, lat, lng float64, limit int) ([]string, error)
}

// geoPrefilterTimeout bounds how long Dispatch waits on the GEO index
// before giving up and falling back to an unrestricted scan.
const geoPrefilterTimeout = 300 * time.Millisecond

// AuctionConfig holds the auction scheduler's tunables (spec §6.4).
type AuctionConfig struct {
	BatchSize      int
	OfferTTL       time.Duration
	MaxRounds      int
	DriverStaleTTL time.Duration
	QuickTestMode  bool
	RetryDelay     time.Duration
}

// Scheduler drives rides through up to MaxRounds offer rounds until
// accepted or exhausted (spec §4.5).
type Scheduler struct {
	cfg      AuctionConfig
	drivers  *DriverRegistry
	rides    *RideRegistry
	bc       Broadcaster
	metrics  MetricsSink
	audit    AuditLogger
	geoIndex GeoIndex
	log      zerolog.Logger
	now      func() time.Time
}

// NewScheduler wires a scheduler. metrics/audit/geoIndex may be nil: metrics
// and audit fall back to no-op implementations, geoIndex simply disables the
// prefilter pass.
func NewScheduler(cfg AuctionConfig, drivers *DriverRegistry, rides *RideRegistry, bc Broadcaster, metrics MetricsSink, audit AuditLogger, geoIndex GeoIndex, log zerolog.Logger) *Scheduler {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if audit == nil {
		audit = noopAudit{}
	}
	return &Scheduler{
		cfg:      cfg,
		drivers:  drivers,
		rides:    rides,
		bc:       bc,
		metrics:  metrics,
		audit:    audit,
		geoIndex: geoIndex,
		log:      log,
		now:      time.Now,
	}
}

// offerPayload is a driver's view of an offer — wire-shaped so the gateway
// can forward it verbatim as the corrida_disponivel payload.
type offerPayload struct {
	OfferID             string     `json:"offerId"`
	RideID              string     `json:"rideId"`
	PassengerName       string     `json:"passengerName"`
	PickupAddress       string     `json:"pickupAddress"`
	PickupLocation      Coordinate `json:"pickupLocation"`
	DestinationAddress  string     `json:"destinationAddress"`
	DestinationLocation Coordinate `json:"destinationLocation"`
	RoutePolyline       string     `json:"routePolyline,omitempty"`
	Fare                float64    `json:"fare"`
	ExpiresAt           int64      `json:"expiresAt"`
}

// Dispatch runs one step of the per-ride auction loop (spec §4.5 algorithm).
// It may recurse via timers; the only wait is the optional geo prefilter
// query, bounded by geoPrefilterTimeout and made before the ride's lock is
// taken. Every emit happens outside the ride's critical section.
func (s *Scheduler) Dispatch(ride *Ride) {
	// Pickup is set once at ride creation and never mutated afterward, so
	// it is safe to read here, before acquiring the ride's lock — the geo
	// query below must never run while that lock is held.
	allow := s.geoPrefilter(ride.Pickup)

	ride.Lock()
	if ride.Status != RideSearching {
		ride.Unlock()
		return
	}
	firstRound := ride.Round == 0

	candidates := SelectCandidates(s.drivers, ride.Pickup, ride.OfferedConns, s.now(), s.cfg.DriverStaleTTL, s.cfg.QuickTestMode, allow)
	if len(candidates) > s.cfg.BatchSize {
		candidates = candidates[:s.cfg.BatchSize]
	}

	if len(candidates) == 0 {
		if ride.Round >= s.cfg.MaxRounds-1 {
			ride.Status = RideFailed
			ride.CancelTimer()
			rideID := ride.RideID
			passenger := ride.PassengerConnID
			round := ride.Round
			ride.Unlock()

			if firstRound {
				s.metrics.RideCreated()
			}
			s.metrics.RideFailed()
			s.metrics.RoundsObserved(round + 1)
			s.audit.LogRideEvent(rideID, "ride_failed", map[string]any{"reason": "no_drivers", "rounds": round + 1})
			s.bc.SendToConn(passenger, "sem_motoristas", map[string]any{"rideId": rideID})
			s.rides.Delete(rideID)
			return
		}
		ride.Round++
		ride.ArmTimer(time.AfterFunc(s.cfg.RetryDelay, func() { s.Dispatch(ride) }))
		ride.Unlock()
		if firstRound {
			s.metrics.RideCreated()
		}
		return
	}

	now := s.now()
	expiresAt := now.Add(s.cfg.OfferTTL)
	type pendingEmit struct {
		connID  string
		payload offerPayload
	}
	emits := make([]pendingEmit, 0, len(candidates))

	for _, c := range candidates {
		offerID := uuid.NewString()
		ride.Offered[offerID] = &RideOffer{
			OfferID:  offerID,
			ConnID:   c.ConnID,
			IssuedAt: now,
			State:    OfferPending,
		}
		ride.OfferedConns[c.ConnID] = true
		emits = append(emits, pendingEmit{
			connID: c.ConnID,
			payload: offerPayload{
				OfferID:             offerID,
				RideID:              ride.RideID,
				PassengerName:       ride.PassengerName,
				PickupAddress:       ride.PickupAddress,
				PickupLocation:      ride.Pickup,
				DestinationAddress:  ride.DestAddress,
				DestinationLocation: ride.Dest,
				RoutePolyline:       ride.RoutePolyline,
				Fare:                ride.Fare,
				ExpiresAt:           expiresAt.UnixMilli(),
			},
		})
	}

	ride.ArmTimer(time.AfterFunc(s.cfg.OfferTTL, func() { s.onRoundExpire(ride) }))
	ride.Unlock()

	if firstRound {
		s.metrics.RideCreated()
	}
	for _, e := range emits {
		s.metrics.OfferIssued()
		s.audit.LogRideEvent(e.payload.RideID, "offer_issued", map[string]any{"offerId": e.payload.OfferID, "connId": e.connID})
		s.bc.SendToConn(e.connID, "corrida_disponivel", e.payload)
	}
}

// geoPrefilter consults the optional Redis GEO index for a shortlist of
// connIds near pickup, returning nil (no restriction) when the index is
// absent, times out, or errors — the prefilter is an optimization, never a
// correctness dependency.
func (s *Scheduler) geoPrefilter(pickup Coordinate) map[string]bool {
	if s.geoIndex == nil {
		return nil
	}
	limit := s.cfg.BatchSize * 4
	if limit < 10 {
		limit = 10
	}
	ctx, cancel := context.WithTimeout(context.Background(), geoPrefilterTimeout)
	defer cancel()
	ids, err := s.geoIndex.Nearest(ctx, pickup.Latitude, pickup.Longitude, limit)
	if err != nil {
		s.log.Debug().Err(err).Msg("geo prefilter unavailable, falling back to full scan")
		return nil
	}
	if len(ids) == 0 {
		return nil
	}
	allow := make(map[string]bool, len(ids))
	for _, id := range ids {
		allow[id] = true
	}
	return allow
}

func (s *Scheduler) onRoundExpire(ride *Ride) {
	ride.Lock()
	if ride.Status != RideSearching {
		ride.Unlock()
		return
	}
	ride.Round++
	ride.Unlock()
	s.Dispatch(ride)
}
