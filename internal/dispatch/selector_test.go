package dispatch

import (
	"testing"
	"time"
)

const staleTTL = 30 * time.Second

func TestSelectCandidatesPrimaryPassOrdersByDistance(t *testing.T) {
	now := time.Now()
	drivers := NewDriverRegistry()

	drivers.Register("far", "d-far", now)
	drivers.SetAvailable("far", true)
	drivers.UpdateLocation("far", -23.60, -46.70, now)

	drivers.Register("near", "d-near", now)
	drivers.SetAvailable("near", true)
	drivers.UpdateLocation("near", -23.551, -46.634, now)

	pickup := Coordinate{Latitude: -23.550, Longitude: -46.633}
	got := SelectCandidates(drivers, pickup, map[string]bool{}, now, staleTTL, false, nil)

	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].ConnID != "near" {
		t.Fatalf("expected nearest driver first, got %q", got[0].ConnID)
	}
}

func TestSelectCandidatesExcludesAlreadyOffered(t *testing.T) {
	now := time.Now()
	drivers := NewDriverRegistry()
	drivers.Register("c1", "d1", now)
	drivers.SetAvailable("c1", true)
	drivers.UpdateLocation("c1", -23.550, -46.633, now)

	got := SelectCandidates(drivers, Coordinate{Latitude: -23.550, Longitude: -46.633}, map[string]bool{"c1": true}, now, staleTTL, false, nil)
	if len(got) != 0 {
		t.Fatalf("expected offered driver to be excluded, got %v", got)
	}
}

func TestSelectCandidatesExcludesStaleFromPrimaryPass(t *testing.T) {
	now := time.Now()
	drivers := NewDriverRegistry()
	drivers.Register("stale", "d1", now)
	drivers.SetAvailable("stale", true)
	drivers.UpdateLocation("stale", -23.550, -46.633, now.Add(-time.Hour))

	got := SelectCandidates(drivers, Coordinate{Latitude: -23.550, Longitude: -46.633}, map[string]bool{}, now, staleTTL, false, nil)
	if len(got) != 1 {
		t.Fatalf("expected stale driver to fall through to the fallback pass, got %d", len(got))
	}
	if got[0].Distance != sentinelDistance {
		t.Fatalf("expected sentinel distance for fallback-pass candidate, got %v", got[0].Distance)
	}
}

func TestSelectCandidatesFallbackExcludesUnavailable(t *testing.T) {
	now := time.Now()
	drivers := NewDriverRegistry()
	drivers.Register("offline", "d1", now)
	drivers.UpdateLocation("offline", -23.550, -46.633, now.Add(-time.Hour))

	got := SelectCandidates(drivers, Coordinate{Latitude: -23.550, Longitude: -46.633}, map[string]bool{}, now, staleTTL, false, nil)
	if len(got) != 0 {
		t.Fatalf("unavailable driver must never be offered, got %v", got)
	}
}

func TestSelectCandidatesQuickTestIgnoresAvailabilityAndFreshness(t *testing.T) {
	now := time.Now()
	drivers := NewDriverRegistry()
	drivers.Register("c1", "d1", now) // never marked available, no location ever set

	got := SelectCandidates(drivers, Coordinate{Latitude: -23.550, Longitude: -46.633}, map[string]bool{}, now, staleTTL, true, nil)
	if len(got) != 1 {
		t.Fatalf("expected quick-test mode to surface the driver regardless of state, got %d", len(got))
	}
}

func TestSelectCandidatesAllowNarrowsPrimaryPass(t *testing.T) {
	now := time.Now()
	drivers := NewDriverRegistry()
	drivers.Register("near", "d-near", now)
	drivers.SetAvailable("near", true)
	drivers.UpdateLocation("near", -23.551, -46.634, now)

	drivers.Register("far", "d-far", now)
	drivers.SetAvailable("far", true)
	drivers.UpdateLocation("far", -23.60, -46.70, now)

	pickup := Coordinate{Latitude: -23.550, Longitude: -46.633}
	allow := map[string]bool{"far": true}
	got := SelectCandidates(drivers, pickup, map[string]bool{}, now, staleTTL, false, allow)

	if len(got) != 1 || got[0].ConnID != "far" {
		t.Fatalf("expected allow to restrict the primary pass to %v, got %v", allow, got)
	}
}

func TestSelectCandidatesDeterministicTiebreak(t *testing.T) {
	now := time.Now()
	drivers := NewDriverRegistry()
	for _, id := range []string{"b", "a", "c"} {
		drivers.Register(id, id, now)
	}

	first := SelectCandidates(drivers, Coordinate{Latitude: -23.550, Longitude: -46.633}, map[string]bool{}, now, staleTTL, true, nil)
	second := SelectCandidates(drivers, Coordinate{Latitude: -23.550, Longitude: -46.633}, map[string]bool{}, now, staleTTL, true, nil)

	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("expected 3 candidates in both runs")
	}
	for i := range first {
		if first[i].ConnID != second[i].ConnID {
			t.Fatalf("selection order must be deterministic across calls, got %v then %v", first, second)
		}
	}
	if first[0].ConnID != "a" || first[1].ConnID != "b" || first[2].ConnID != "c" {
		t.Fatalf("expected connId tiebreak ordering a,b,c; got %v", first)
	}
}
