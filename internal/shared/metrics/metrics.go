package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	analysisStartedTotal   atomic.Uint64
	analysisCompletedTotal atomic.Uint64
	analysisFailedTotal    atomic.Uint64
	analysisRetriedTotal   atomic.Uint64

	renderAdmittedTotal atomic.Uint64

	renderRejectedMu    sync.Mutex
	renderRejectedTotal = map[string]uint64{}

	dispatchMu        sync.Mutex
	dispatchTierTotal = map[string]uint64{}

	analysisDuration = newHistogram([]float64{1000, 5000, 15000, 30000, 60000, 120000, 300000, 600000})
)

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() {
	analysisStartedTotal.Add(1)
}

// IncAnalysisCompleted increments the completed counter.
func IncAnalysisCompleted() {
	analysisCompletedTotal.Add(1)
}

// IncAnalysisFailed increments the failed counter.
func IncAnalysisFailed() {
	analysisFailedTotal.Add(1)
}

// IncAnalysisRetried increments the retried counter.
func IncAnalysisRetried() {
	analysisRetriedTotal.Add(1)
}

// IncRenderAdmitted increments the admitted render submissions counter.
func IncRenderAdmitted() {
	renderAdmittedTotal.Add(1)
}

// IncRenderRejected increments the rejected render submissions counter for
// the given reason.
func IncRenderRejected(reason string) {
	renderRejectedMu.Lock()
	renderRejectedTotal[reason]++
	renderRejectedMu.Unlock()
}

// IncDispatchTier records a successful dispatch through the named tier.
func IncDispatchTier(tier string) {
	dispatchMu.Lock()
	dispatchTierTotal[tier]++
	dispatchMu.Unlock()
}

// ObserveAnalysisDurationMs records an analysis duration in milliseconds.
func ObserveAnalysisDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	analysisDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "analysis_started_total", "Total analysis jobs started", analysisStartedTotal.Load())
	writeCounter(&buf, "analysis_completed_total", "Total analysis jobs completed", analysisCompletedTotal.Load())
	writeCounter(&buf, "analysis_failed_total", "Total analysis jobs failed", analysisFailedTotal.Load())
	writeCounter(&buf, "analysis_retried_total", "Total analysis jobs retried", analysisRetriedTotal.Load())
	writeCounter(&buf, "render_admitted_total", "Total render submissions admitted", renderAdmittedTotal.Load())
	writeRenderRejectedCounters(&buf)
	writeDispatchCounters(&buf)
	writeHistogram(&buf, "analysis_duration_ms", "Analysis duration in milliseconds", analysisDuration.Snapshot())
	return buf.String()
}

func writeRenderRejectedCounters(buf *bytes.Buffer) {
	renderRejectedMu.Lock()
	defer renderRejectedMu.Unlock()
	fmt.Fprintf(buf, "# HELP render_rejected_total Total render submissions rejected by reason\n")
	fmt.Fprintf(buf, "# TYPE render_rejected_total counter\n")
	for reason, count := range renderRejectedTotal {
		fmt.Fprintf(buf, "render_rejected_total{reason=%q} %d\n", reason, count)
	}
}

func writeDispatchCounters(buf *bytes.Buffer) {
	dispatchMu.Lock()
	defer dispatchMu.Unlock()
	fmt.Fprintf(buf, "# HELP render_dispatched_total Total render jobs dispatched by tier\n")
	fmt.Fprintf(buf, "# TYPE render_dispatched_total counter\n")
	for tier, count := range dispatchTierTotal {
		fmt.Fprintf(buf, "render_dispatched_total{tier=%q} %d\n", tier, count)
	}
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
