package transmit

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bitfsorg/libwit-go/tx"
)

type event int

const (
	evSigned event = iota
	evSent
	evRejected
	evConfirmed
	evRemoved
	evTimeout
	numEvents
)

var eventCounters = [numEvents]struct{ name, help string }{
	evSigned:    {"signed_total", "Transactions signed."},
	evSent:      {"sent_total", "Transactions accepted by the node."},
	evRejected:  {"rejected_total", "Submissions rejected by the node or failed in transit."},
	evConfirmed: {"confirmed_total", "Transactions confirmed or finalized."},
	evRemoved:   {"removed_total", "Transactions dropped from the mempool."},
	evTimeout:   {"timeouts_total", "Confirmation waits that reached the deadline."},
}

// Metrics counts transmitter outcomes per transaction kind. A nil *Metrics
// records nothing.
type Metrics struct {
	counters [numEvents]*prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{}
	collectors := make([]prometheus.Collector, 0, numEvents)
	for ev, c := range eventCounters {
		m.counters[ev] = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wit",
				Subsystem: "transmit",
				Name:      c.name,
				Help:      c.help,
			},
			[]string{"kind"})
		collectors = append(collectors, m.counters[ev])
	}
	reg.MustRegister(collectors...)
	return m
}

func (m *Metrics) observe(ev event, kind tx.Kind) {
	if m == nil {
		return
	}
	m.counters[ev].WithLabelValues(kind.String()).Inc()
}
