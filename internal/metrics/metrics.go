// Package metrics exposes Prometheus instrumentation for the dispatch core,
// replacing the teacher's hand-rolled bucket counters with real CounterVec
// and HistogramVec collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder groups every collector the auction and arbiter emit to, plus the
// gauges the server's periodic driver-prune sweep sets.
type Recorder struct {
	RidesCreated   prometheus.Counter
	RidesAccepted  prometheus.Counter
	RidesFailed    prometheus.Counter
	OffersIssued   prometheus.Counter
	OffersAccepted prometheus.Counter
	OffersLost     *prometheus.CounterVec // by reason

	AuctionRounds  prometheus.Histogram
	MatchLatency   prometheus.Histogram // ride created -> accepted, seconds

	DriversConnected prometheus.Gauge
	DriversAvailable prometheus.Gauge
	RidesInFlight    *prometheus.GaugeVec // by status
}

// New registers every collector against reg. Pass prometheus.NewRegistry()
// in tests to avoid collisions with the global default registry.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		RidesCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "ridedispatch_rides_created_total",
			Help: "Rides accepted into the registry via nova_corrida.",
		}),
		RidesAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "ridedispatch_rides_accepted_total",
			Help: "Rides that reached ACCEPTED.",
		}),
		RidesFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "ridedispatch_rides_failed_total",
			Help: "Rides that exhausted all auction rounds without a winner.",
		}),
		OffersIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "ridedispatch_offers_issued_total",
			Help: "Individual corrida_disponivel offers emitted.",
		}),
		OffersAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "ridedispatch_offers_accepted_total",
			Help: "Offers that won their ride's auction.",
		}),
		OffersLost: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ridedispatch_offers_lost_total",
			Help: "Offers that lost, partitioned by reason.",
		}, []string{"reason"}),
		AuctionRounds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ridedispatch_auction_rounds",
			Help:    "Number of rounds a ride ran before a terminal outcome.",
			Buckets: prometheus.LinearBuckets(0, 1, 6),
		}),
		MatchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ridedispatch_match_latency_seconds",
			Help:    "Seconds between ride creation and acceptance.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		DriversConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ridedispatch_drivers_connected",
			Help: "Currently connected driver connections.",
		}),
		DriversAvailable: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ridedispatch_drivers_available",
			Help: "Currently connected drivers with available=true.",
		}),
		RidesInFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ridedispatch_rides_in_flight",
			Help: "Rides currently held in the registry, by status.",
		}, []string{"status"}),
	}
}

// The methods below let *Recorder satisfy dispatch.MetricsSink without the
// dispatch package importing prometheus directly.

func (r *Recorder) RideCreated()                 { r.RidesCreated.Inc() }
func (r *Recorder) RideAccepted(latency time.Duration) {
	r.RidesAccepted.Inc()
	r.MatchLatency.Observe(latency.Seconds())
}
func (r *Recorder) RideFailed()           { r.RidesFailed.Inc() }
func (r *Recorder) OfferIssued()          { r.OffersIssued.Inc() }
func (r *Recorder) OfferWon()             { r.OffersAccepted.Inc() }
func (r *Recorder) OfferLost(reason string) {
	r.OffersLost.WithLabelValues(reason).Inc()
}
func (r *Recorder) RoundsObserved(rounds int) { r.AuctionRounds.Observe(float64(rounds)) }
