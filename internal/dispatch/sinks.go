package dispatch

import "time"

// MetricsSink is the subset of internal/metrics.Recorder the matching core
// needs. *metrics.Recorder satisfies this directly.
type MetricsSink interface {
	RideCreated()
	RideAccepted(latency time.Duration)
	RideFailed()
	OfferIssued()
	OfferWon()
	OfferLost(reason string)
	RoundsObserved(rounds int)
}

type noopMetrics struct{}

func (noopMetrics) RideCreated()                   {}
func (noopMetrics) RideAccepted(time.Duration)     {}
func (noopMetrics) RideFailed()                    {}
func (noopMetrics) OfferIssued()                   {}
func (noopMetrics) OfferWon()                      {}
func (noopMetrics) OfferLost(string)               {}
func (noopMetrics) RoundsObserved(int)             {}

// AuditLogger mirrors a ride-relevant event to the optional, best-effort
// storage-backed audit trail. It must never block matching logic; real
// implementations (internal/storage) are asynchronous and swallow their own
// errors after logging them.
type AuditLogger interface {
	LogRideEvent(rideID, eventType string, detail map[string]any)
}

type noopAudit struct{}

func (noopAudit) LogRideEvent(string, string, map[string]any) {}
