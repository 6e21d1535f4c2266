package scheduler

import "github.com/prometheus/client_golang/prometheus"

// ResultsReceived exposes the received-results counter for one outcome.
func ResultsReceived(outcome string) prometheus.Counter {
	return resultsReceivedTotal.WithLabelValues(outcome)
}
