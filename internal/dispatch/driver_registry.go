package dispatch

import (
	"sync"
	"time"
)

// DriverRegistry maps connId to DriverPresence. One writer at a time per
// spec §5; a single mutex serializes every mutation, mirroring the teacher's
// store-wide lock but scoped to drivers only (rides use their own locks).
type DriverRegistry struct {
	mu      sync.Mutex
	drivers map[string]*DriverPresence
}

// NewDriverRegistry returns an empty registry.
func NewDriverRegistry() *DriverRegistry {
	return &DriverRegistry{drivers: make(map[string]*DriverPresence)}
}

// Register creates a fresh presence on driver identification: available
// false, no last location. Re-registering an existing connId resets it.
// now is stamped as RegisteredAt — the staleness clock PruneStale falls
// back to before the driver ever sends a driver_localizacao.
func (r *DriverRegistry) Register(connID, driverID string, now time.Time) *DriverPresence {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &DriverPresence{ConnID: connID, DriverID: driverID, RegisteredAt: now}
	r.drivers[connID] = p
	return p
}

// SetAvailable updates availability for an existing presence. Reports false
// if the connId is unknown.
func (r *DriverRegistry) SetAvailable(connID string, available bool) (*DriverPresence, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.drivers[connID]
	if !ok {
		return nil, false
	}
	p.Available = available
	return p, true
}

// UpdateLocation stamps a new location onto an existing presence. Non-finite
// coordinates are rejected silently (protocol error, per spec §7 — the
// caller logs and drops before ever reaching here in the well-behaved path,
// but the registry itself never trusts callers).
func (r *DriverRegistry) UpdateLocation(connID string, lat, lng float64, now time.Time) (*DriverPresence, bool) {
	coord := Coordinate{Latitude: lat, Longitude: lng}
	if !coord.Finite() {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.drivers[connID]
	if !ok {
		return nil, false
	}
	p.Last = &LocatedCoordinate{Coordinate: coord, At: now}
	return p, true
}

// Get returns the presence for connID, if any.
func (r *DriverRegistry) Get(connID string) (*DriverPresence, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.drivers[connID]
	return p, ok
}

// Remove deletes a presence outright. The gateway's disconnect path does not
// call it: disconnect only flips available=false, and the entry is removed
// later by PruneStale (spec §9 open question 3).
func (r *DriverRegistry) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drivers, connID)
}

// Snapshot returns a point-in-time copy of every presence, used by the
// candidate selector. The copy is shallow (pointers
// to the live records) — callers must not mutate fields directly, only via
// the registry's own methods.
func (r *DriverRegistry) Snapshot() []*DriverPresence {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*DriverPresence, 0, len(r.drivers))
	for _, p := range r.drivers {
		out = append(out, p)
	}
	return out
}

// Counts returns (total, available) connected drivers for gauge reporting.
func (r *DriverRegistry) Counts() (total, available int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total = len(r.drivers)
	for _, p := range r.drivers {
		if p.Available {
			available++
		}
	}
	return total, available
}

// PruneStale removes presences unavailable and idle for longer than grace —
// a longer window than the staleness gate itself, so a driver only
// disappears from the registry well after it has already become ineligible
// for matching. Idleness is measured from the last driver_localizacao, or
// from Register if none has arrived yet; a driver that has simply
// identified and gone quiet for less than grace is not touched, only one
// that has been quiet since connecting for longer than grace is removed.
// Mirrors the teacher's PruneStaleDrivers.
func (r *DriverRegistry) PruneStale(now time.Time, grace time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, p := range r.drivers {
		if p.Available {
			continue
		}
		since := p.RegisteredAt
		if p.Last != nil {
			since = p.Last.At
		}
		if now.Sub(since) > grace {
			delete(r.drivers, id)
			removed++
		}
	}
	return removed
}
