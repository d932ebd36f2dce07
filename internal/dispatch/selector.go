package dispatch

import (
	"sort"
	"time"
)

// Candidate is one entry in the selector's ordered shortlist.
type Candidate struct {
	ConnID   string
	Distance float64
}

// SelectCandidates is a pure query over the driver registry: given a pickup
// point and the set of connIds already solicited for this ride, it returns
// an ordered shortlist per spec §4.4. It performs no mutation.
//
// allow, when non-nil, narrows the primary pass to the given connIds — the
// Redis GEO prefilter's shortlist (Scheduler.geoIndex). A nil allow means no
// restriction: every eligible driver in the registry is considered, which is
// also what happens when the prefilter is absent or errors. The fallback
// pass never honors allow: it runs whenever the primary pass found no
// eligible driver, with or without the prefilter's restriction.
func SelectCandidates(drivers *DriverRegistry, pickup Coordinate, offeredConns map[string]bool, now time.Time, staleTTL time.Duration, quickTest bool, allow map[string]bool) []Candidate {
	snapshot := drivers.Snapshot()

	if quickTest {
		out := make([]Candidate, 0, len(snapshot))
		for _, p := range snapshot {
			if offeredConns[p.ConnID] {
				continue
			}
			out = append(out, Candidate{ConnID: p.ConnID, Distance: 0})
		}
		sortCandidates(out)
		return out
	}

	primary := make([]Candidate, 0, len(snapshot))
	for _, p := range snapshot {
		if offeredConns[p.ConnID] || !p.Eligible(now, staleTTL) {
			continue
		}
		if allow != nil && !allow[p.ConnID] {
			continue
		}
		primary = append(primary, Candidate{
			ConnID:   p.ConnID,
			Distance: Distance(&pickup, &p.Last.Coordinate),
		})
	}
	if len(primary) > 0 {
		sortCandidates(primary)
		return primary
	}

	fallback := make([]Candidate, 0, len(snapshot))
	for _, p := range snapshot {
		if offeredConns[p.ConnID] || !p.Available {
			continue
		}
		fallback = append(fallback, Candidate{ConnID: p.ConnID, Distance: sentinelDistance})
	}
	sortCandidates(fallback)
	return fallback
}

const sentinelDistance = 9999.0

// sortCandidates orders ascending by distance, with connId as a tiebreaker
// so ordering is deterministic within a round (spec invariant 4).
func sortCandidates(c []Candidate) {
	sort.SliceStable(c, func(i, j int) bool {
		if c[i].Distance != c[j].Distance {
			return c[i].Distance < c[j].Distance
		}
		return c[i].ConnID < c[j].ConnID
	})
}
