package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestScheduler(cfg AuctionConfig, drivers *DriverRegistry, rides *RideRegistry, bc Broadcaster) *Scheduler {
	return NewScheduler(cfg, drivers, rides, bc, nil, nil, nil, zerolog.Nop())
}

// fakeGeoIndex stubs the Redis GEO prefilter for Scheduler tests.
type fakeGeoIndex struct {
	ids []string
	err error
}

func (g fakeGeoIndex) Nearest(ctx context.Context, lat, lng float64, limit int) ([]string, error) {
	if g.err != nil {
		return nil, g.err
	}
	return g.ids, nil
}

func TestDispatchIssuesOffersToEligibleDrivers(t *testing.T) {
	now := time.Now()
	drivers := NewDriverRegistry()
	drivers.Register("c1", "d1", now)
	drivers.SetAvailable("c1", true)
	drivers.UpdateLocation("c1", -23.550, -46.633, now)

	rides := NewRideRegistry()
	ride := NewRide("r1", now)
	ride.Pickup = Coordinate{Latitude: -23.550, Longitude: -46.633}
	rides.Create(ride)

	bc := &fakeBroadcaster{}
	s := newTestScheduler(AuctionConfig{BatchSize: 3, OfferTTL: time.Minute, MaxRounds: 3}, drivers, rides, bc)

	s.Dispatch(ride)

	events := bc.eventsTo("c1")
	if len(events) != 1 || events[0] != "corrida_disponivel" {
		t.Fatalf("expected one corrida_disponivel to c1, got %v", events)
	}
	ride.Lock()
	if len(ride.Offered) != 1 || !ride.OfferedConns["c1"] {
		t.Fatal("expected ride bookkeeping to record the offer")
	}
	ride.Unlock()
}

func TestDispatchCapsCandidatesAtBatchSize(t *testing.T) {
	now := time.Now()
	drivers := NewDriverRegistry()
	for _, id := range []string{"c1", "c2", "c3", "c4"} {
		drivers.Register(id, id, now)
		drivers.SetAvailable(id, true)
		drivers.UpdateLocation(id, -23.550, -46.633, now)
	}

	rides := NewRideRegistry()
	ride := NewRide("r1", now)
	rides.Create(ride)

	bc := &fakeBroadcaster{}
	s := newTestScheduler(AuctionConfig{BatchSize: 2, OfferTTL: time.Minute, MaxRounds: 3}, drivers, rides, bc)
	s.Dispatch(ride)

	ride.Lock()
	offered := len(ride.Offered)
	ride.Unlock()
	if offered != 2 {
		t.Fatalf("expected exactly BatchSize offers, got %d", offered)
	}
}

func TestDispatchExhaustsAfterMaxRoundsWithNoDrivers(t *testing.T) {
	now := time.Now()
	drivers := NewDriverRegistry() // empty: no candidates ever

	rides := NewRideRegistry()
	ride := NewRide("r1", now)
	ride.PassengerConnID = "passenger1"
	rides.Create(ride)

	bc := &fakeBroadcaster{}
	s := newTestScheduler(AuctionConfig{BatchSize: 3, OfferTTL: time.Millisecond, MaxRounds: 1, RetryDelay: time.Millisecond}, drivers, rides, bc)
	s.Dispatch(ride)

	ride.Lock()
	status := ride.Status
	ride.Unlock()
	if status != RideFailed {
		t.Fatalf("expected RideFailed after exhausting rounds with no drivers, got %v", status)
	}

	events := bc.eventsTo("passenger1")
	if len(events) != 1 || events[0] != "sem_motoristas" {
		t.Fatalf("expected sem_motoristas to the passenger, got %v", events)
	}
	if _, ok := rides.Get("r1"); ok {
		t.Fatal("expected exhausted ride to be removed from the registry")
	}
}

func TestDispatchGeoPrefilterNarrowsCandidates(t *testing.T) {
	now := time.Now()
	drivers := NewDriverRegistry()
	drivers.Register("near", "d-near", now)
	drivers.SetAvailable("near", true)
	drivers.UpdateLocation("near", -23.550, -46.633, now)

	drivers.Register("far", "d-far", now)
	drivers.SetAvailable("far", true)
	drivers.UpdateLocation("far", -23.550, -46.633, now)

	rides := NewRideRegistry()
	ride := NewRide("r1", now)
	ride.Pickup = Coordinate{Latitude: -23.550, Longitude: -46.633}
	rides.Create(ride)

	bc := &fakeBroadcaster{}
	s := NewScheduler(AuctionConfig{BatchSize: 3, OfferTTL: time.Minute, MaxRounds: 3}, drivers, rides, bc, nil, nil, fakeGeoIndex{ids: []string{"far"}}, zerolog.Nop())
	s.Dispatch(ride)

	if events := bc.eventsTo("far"); len(events) != 1 {
		t.Fatalf("expected the prefilter shortlist's driver to be offered, got %v", events)
	}
	if events := bc.eventsTo("near"); len(events) != 0 {
		t.Fatalf("expected the driver outside the prefilter shortlist to be skipped, got %v", events)
	}
}

func TestDispatchGeoPrefilterErrorFallsBackToFullScan(t *testing.T) {
	now := time.Now()
	drivers := NewDriverRegistry()
	drivers.Register("c1", "d1", now)
	drivers.SetAvailable("c1", true)
	drivers.UpdateLocation("c1", -23.550, -46.633, now)

	rides := NewRideRegistry()
	ride := NewRide("r1", now)
	ride.Pickup = Coordinate{Latitude: -23.550, Longitude: -46.633}
	rides.Create(ride)

	bc := &fakeBroadcaster{}
	s := NewScheduler(AuctionConfig{BatchSize: 3, OfferTTL: time.Minute, MaxRounds: 3}, drivers, rides, bc, nil, nil, fakeGeoIndex{err: errors.New("redis unreachable")}, zerolog.Nop())
	s.Dispatch(ride)

	if events := bc.eventsTo("c1"); len(events) != 1 {
		t.Fatalf("expected a prefilter error to fall back to the unrestricted scan, got %v", events)
	}
}

func TestDispatchDoesNothingWhenRideNotSearching(t *testing.T) {
	now := time.Now()
	drivers := NewDriverRegistry()
	drivers.Register("c1", "d1", now)
	drivers.SetAvailable("c1", true)
	drivers.UpdateLocation("c1", -23.550, -46.633, now)

	rides := NewRideRegistry()
	ride := NewRide("r1", now)
	ride.Status = RideAccepted
	rides.Create(ride)

	bc := &fakeBroadcaster{}
	s := newTestScheduler(AuctionConfig{BatchSize: 3, OfferTTL: time.Minute, MaxRounds: 3}, drivers, rides, bc)
	s.Dispatch(ride)

	if len(bc.sent) != 0 {
		t.Fatalf("expected no offers once a ride has left SEARCHING, got %v", bc.sent)
	}
}
