// Package metrics defines the Prometheus collectors for the notification pipeline.
package metrics

// Status label values
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusEmpty   = "empty"
)

// durationBuckets spans fast local reads to slow remote fetches (5ms to ~40s)
var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40}

func statusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}
