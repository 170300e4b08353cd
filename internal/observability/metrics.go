package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	parsedMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "midimerge",
			Subsystem: "parser",
			Name:      "messages_total",
			Help:      "Messages parsed per source and kind.",
		},
		[]string{"source", "kind"},
	)
	protocolFaults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "midimerge",
			Subsystem: "parser",
			Name:      "faults_total",
			Help:      "Protocol faults per source and kind.",
		},
		[]string{"source", "kind"},
	)
	transportFaults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "midimerge",
			Subsystem: "transport",
			Name:      "faults_total",
			Help:      "Transport faults per source and kind.",
		},
		[]string{"source", "kind"},
	)
	invalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "midimerge",
			Subsystem: "merge",
			Name:      "invalidations_total",
			Help:      "Merge-state invalidations per source.",
		},
		[]string{"source"},
	)
	mergedMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "midimerge",
			Subsystem: "merge",
			Name:      "messages_total",
			Help:      "Messages written to the output per source and kind.",
		},
		[]string{"source", "kind"},
	)
	underflowDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "midimerge",
			Subsystem: "merge",
			Name:      "underflow_drops_total",
			Help:      "Running-status messages dropped for lack of a cached status byte.",
		},
		[]string{"source"},
	)
	sinkBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "midimerge",
			Subsystem: "sink",
			Name:      "bytes_total",
			Help:      "Bytes written to the output sink.",
		},
	)
	sinkErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "midimerge",
			Subsystem: "sink",
			Name:      "write_errors_total",
			Help:      "Output sink write failures.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			parsedMessages, protocolFaults, transportFaults,
			invalidations, mergedMessages, underflowDrops,
			sinkBytes, sinkErrors,
		)
	})
}

func RecordMessage(source, kind string) {
	RegisterMetrics()
	parsedMessages.WithLabelValues(source, kind).Inc()
}

func RecordProtocolFault(source, kind string) {
	RegisterMetrics()
	protocolFaults.WithLabelValues(source, kind).Inc()
}

func RecordTransportFault(source, kind string) {
	RegisterMetrics()
	transportFaults.WithLabelValues(source, kind).Inc()
}

func RecordInvalidation(source string) {
	RegisterMetrics()
	invalidations.WithLabelValues(source).Inc()
}

func RecordMerged(source, kind string) {
	RegisterMetrics()
	mergedMessages.WithLabelValues(source, kind).Inc()
}

func RecordUnderflow(source string) {
	RegisterMetrics()
	underflowDrops.WithLabelValues(source).Inc()
}

func RecordSinkBytes(n int) {
	RegisterMetrics()
	sinkBytes.Add(float64(n))
}

func RecordSinkError() {
	RegisterMetrics()
	sinkErrors.Inc()
}

// ServeMetrics exposes the prometheus endpoint on addr. It blocks; callers
// run it on its own goroutine.
func ServeMetrics(addr string) error {
	RegisterMetrics()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}
