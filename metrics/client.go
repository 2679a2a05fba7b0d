package metrics

import (
	"fmt"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Snapshot is a point-in-time read of the four core families plus the
// supplemental error counter, scraped from a running daemon's /metrics
// endpoint and reduced to a single number per family. It exists for
// display (the status dashboard), not for anything that needs per-label
// breakdowns.
type Snapshot struct {
	TotalOps           float64
	ErrorOps           float64
	AvgDurationSeconds float64
	AvgSizeBytes       float64
	AvgThroughputMBPS  float64
}

// FetchSnapshot scrapes url (a Metrics Daemon's /metrics endpoint) and
// reduces the exposition text into a Snapshot. Errors reaching or parsing
// the endpoint are returned as-is; callers displaying a live dashboard
// should treat them as "metrics unavailable right now" rather than fatal,
// since the daemon may simply not have started yet.
func FetchSnapshot(url string, timeout time.Duration) (Snapshot, error) {
	client := &http.Client{Timeout: timeout}
	resp, err := client.Get(url)
	if err != nil {
		return Snapshot{}, fmt.Errorf("metrics: failed to reach %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Snapshot{}, fmt.Errorf("metrics: %s returned status %d", url, resp.StatusCode)
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(resp.Body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("metrics: failed to parse exposition text from %s: %w", url, err)
	}

	var snap Snapshot
	for _, m := range families[namespace+"_operation_total"].GetMetric() {
		snap.TotalOps += m.GetCounter().GetValue()
	}
	for _, m := range families[namespace+"_operation_errors_total"].GetMetric() {
		snap.ErrorOps += m.GetCounter().GetValue()
	}

	if sum, count := sumHistogram(families[namespace+"_operation_duration_seconds"]); count > 0 {
		snap.AvgDurationSeconds = sum / count
	}
	if sum, count := sumHistogram(families[namespace+"_operation_size_bytes"]); count > 0 {
		snap.AvgSizeBytes = sum / count
	}

	var throughputSum float64
	var throughputSeries int
	for _, m := range families[namespace+"_operation_throughput_mbps"].GetMetric() {
		throughputSum += m.GetGauge().GetValue()
		throughputSeries++
	}
	if throughputSeries > 0 {
		snap.AvgThroughputMBPS = throughputSum / float64(throughputSeries)
	}

	return snap, nil
}

// sumHistogram reduces every series in a histogram family to its total
// sample sum and sample count, across all label combinations.
func sumHistogram(mf *dto.MetricFamily) (sum, count float64) {
	for _, m := range mf.GetMetric() {
		h := m.GetHistogram()
		sum += h.GetSampleSum()
		count += float64(h.GetSampleCount())
	}
	return sum, count
}
