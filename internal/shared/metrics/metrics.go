package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	documentsUploadedTotal     atomic.Uint64
	documentsUploadFailedTotal atomic.Uint64
	documentsDeletedTotal      atomic.Uint64
	panicsTotal                atomic.Uint64

	generations = newLabeledCounter()
	gatewayErrs = newLabeledCounter()
	rateLimited = newLabeledCounter()

	generationDuration = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
)

// IncUploaded counts a stored document.
func IncUploaded() { documentsUploadedTotal.Add(1) }

// IncUploadFailed counts an upload that failed after validation.
func IncUploadFailed() { documentsUploadFailedTotal.Add(1) }

// IncDeleted counts a deleted document.
func IncDeleted() { documentsDeletedTotal.Add(1) }

// IncPanic counts a recovered handler panic.
func IncPanic() { panicsTotal.Add(1) }

// IncRateLimited counts a request rejected by the limiter.
func IncRateLimited(group string) {
	rateLimited.Inc(fmt.Sprintf(`group=%q`, group))
}

// IncGeneration counts a generation request by kind and outcome.
func IncGeneration(kind, outcome string) {
	generations.Inc(fmt.Sprintf(`kind=%q,outcome=%q`, kind, outcome))
}

// IncGatewayError counts non-2xx responses from the model gateway by status.
func IncGatewayError(status int) {
	gatewayErrs.Inc(fmt.Sprintf(`status="%d"`, status))
}

// ObserveGenerationDurationMs records a gateway round trip in milliseconds.
func ObserveGenerationDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	generationDuration.Observe(value)
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
	writeCounter(&buf, "documents_uploaded_total", "Documents stored", documentsUploadedTotal.Load())
	writeCounter(&buf, "documents_upload_failed_total", "Uploads that failed after validation", documentsUploadFailedTotal.Load())
	writeCounter(&buf, "documents_deleted_total", "Documents deleted", documentsDeletedTotal.Load())
	writeLabeled(&buf, "generations_total", "Generation requests by kind and outcome", generations.Snapshot())
	writeLabeled(&buf, "gateway_errors_total", "Model gateway error responses by status", gatewayErrs.Snapshot())
	writeLabeled(&buf, "rate_limited_total", "Requests rejected by the rate limiter by group", rateLimited.Snapshot())
	writeCounter(&buf, "http_panics_total", "Recovered handler panics", panicsTotal.Load())
	writeHistogram(&buf, "generation_duration_ms", "Model gateway round trip in milliseconds", generationDuration.Snapshot())
	return buf.String()
}

type labeledCounter struct {
	mu     sync.Mutex
	counts map[string]uint64
}

func newLabeledCounter() *labeledCounter {
	return &labeledCounter{counts: make(map[string]uint64)}
}

func (l *labeledCounter) Inc(labels string) {
	l.mu.Lock()
	l.counts[labels]++
	l.mu.Unlock()
}

func (l *labeledCounter) Snapshot() map[string]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]uint64, len(l.counts))
	for k, v := range l.counts {
		out[k] = v
	}
	return out
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

// Observe adds value to the first bucket whose bound is not exceeded.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			return
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

func writeLabeled(buf *bytes.Buffer, name, help string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s} %d\n", name, k, values[k])
	}
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
