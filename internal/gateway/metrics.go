package gateway

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StreamMetrics tracks record pipeline statistics.
type StreamMetrics struct {
	mu sync.Mutex

	recordsAppended     *prometheus.CounterVec
	recordsDelivered    prometheus.Counter
	canonFailures       prometheus.Counter
	droppedOccurrences  prometheus.Counter
	droppedSubscribers  prometheus.Counter
	mirrorWriteFailures prometheus.Counter
	publishFailures     prometheus.Counter
	liveSubscribers     prometheus.Gauge
	ringRecords         prometheus.Gauge
	exchangeSeconds     *prometheus.HistogramVec

	registerer prometheus.Registerer
	registered bool
}

func newGatewayCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chargestream",
		Subsystem: "gateway",
		Name:      name,
		Help:      help,
	})
}

func newGatewayCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chargestream",
			Subsystem: "gateway",
			Name:      name,
			Help:      help,
		},
		labels,
	)
}

func newGatewayGauge(name, help string) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "chargestream",
		Subsystem: "gateway",
		Name:      name,
		Help:      help,
	})
}

// NewStreamMetrics creates the record pipeline metrics collector.
func NewStreamMetrics(registerer prometheus.Registerer) *StreamMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &StreamMetrics{
		registerer:          registerer,
		recordsAppended:     newGatewayCounterVec("records_appended_total", "Total number of records appended to the event log", []string{"kind"}),
		recordsDelivered:    newGatewayCounter("records_delivered_total", "Total number of records fanned out to live subscribers"),
		canonFailures:       newGatewayCounter("canonicalization_failures_total", "Total number of occurrences whose canonical projection failed"),
		droppedOccurrences:  newGatewayCounter("occurrences_dropped_total", "Total number of occurrences dropped because the ingestion queue was full"),
		droppedSubscribers:  newGatewayCounter("subscribers_dropped_total", "Total number of subscribers disconnected for falling behind"),
		mirrorWriteFailures: newGatewayCounter("mirror_write_failures_total", "Total number of failed durable mirror writes"),
		publishFailures:     newGatewayCounter("record_publish_failures_total", "Total number of failed record transport publishes"),
		liveSubscribers:     newGatewayGauge("subscribers_current", "Current number of live event stream subscribers"),
		ringRecords:         newGatewayGauge("ring_records_current", "Current number of records retained in the in-memory ring"),
		exchangeSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "chargestream",
				Subsystem: "gateway",
				Name:      "exchange_duration_seconds",
				Help:      "Request-to-response processing duration reported by the engines",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"kind"},
		),
	}
}

// Register registers the Prometheus collectors. Safe to call multiple times.
func (m *StreamMetrics) Register() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registered {
		return nil
	}

	collectors := []prometheus.Collector{
		m.recordsAppended,
		m.recordsDelivered,
		m.canonFailures,
		m.droppedOccurrences,
		m.droppedSubscribers,
		m.mirrorWriteFailures,
		m.publishFailures,
		m.liveSubscribers,
		m.ringRecords,
		m.exchangeSeconds,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	m.registered = true
	return nil
}

func (m *StreamMetrics) RecordAppended(kind string) {
	m.recordsAppended.WithLabelValues(kind).Inc()
}

func (m *StreamMetrics) RecordDelivered() {
	m.recordsDelivered.Inc()
}

func (m *StreamMetrics) CanonicalizationFailure() {
	m.canonFailures.Inc()
}

func (m *StreamMetrics) OccurrenceDropped() {
	m.droppedOccurrences.Inc()
}

func (m *StreamMetrics) SubscriberDropped() {
	m.droppedSubscribers.Inc()
}

func (m *StreamMetrics) MirrorWriteFailure() {
	m.mirrorWriteFailures.Inc()
}

func (m *StreamMetrics) PublishFailure() {
	m.publishFailures.Inc()
}

func (m *StreamMetrics) SetLiveSubscribers(n int) {
	m.liveSubscribers.Set(float64(n))
}

func (m *StreamMetrics) SetRingRecords(n int) {
	m.ringRecords.Set(float64(n))
}

func (m *StreamMetrics) ObserveExchange(kind string, elapsed time.Duration) {
	m.exchangeSeconds.WithLabelValues(kind).Observe(elapsed.Seconds())
}
