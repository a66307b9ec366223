// Package metrics contains the Prometheus collectors exported by Reel.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "reel"

var (
	probesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Total media probes, by result",
		},
		[]string{"result"},
	)

	scannedFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scan_files_total",
			Help:      "Files encountered while scanning, by outcome",
		},
		[]string{"outcome"},
	)

	commitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_commits_total",
			Help:      "Classification commit attempts, by result",
		},
		[]string{"result"},
	)

	streamBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_bytes_total",
			Help:      "Total bytes streamed to clients",
		},
	)

	streamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_requests_total",
			Help:      "Stream requests, by response status",
		},
		[]string{"status"},
	)

	activeStreams = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Number of streams currently being served",
		},
	)
)

func RecordProbe(result string)        { probesTotal.WithLabelValues(result).Inc() }
func RecordScannedFile(outcome string) { scannedFilesTotal.WithLabelValues(outcome).Inc() }
func RecordCommit(result string)       { commitsTotal.WithLabelValues(result).Inc() }
func RecordStreamBytes(n int64)        { streamBytesTotal.Add(float64(n)) }
func RecordStreamRequest(status string) {
	streamRequestsTotal.WithLabelValues(status).Inc()
}

// TrackStream increments the active stream gauge, returning a func
// which decrements it again.
func TrackStream() func() {
	activeStreams.Inc()
	return activeStreams.Dec
}
