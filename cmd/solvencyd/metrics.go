// metrics.go - In-process metrics for the solvency tool
package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solvency/internal/solvency"
)

// MetricType represents the type of metric
type MetricType string

const (
	Counter   MetricType = "counter"
	Gauge     MetricType = "gauge"
	Histogram MetricType = "histogram"
)

// Metric is the latest observation of one series
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// MetricsCollector manages metrics collection
type MetricsCollector struct {
	mu         sync.RWMutex
	metrics    map[string]*Metric
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string][]float64
}

// histogramWindow bounds the samples kept per series.
const histogramWindow = 1000

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics:    make(map[string]*Metric),
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

// IncrementCounter increments a counter metric
func (mc *MetricsCollector) IncrementCounter(name string, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := makeKey(name, labels)
	mc.counters[key]++
	mc.updateMetric(key, name, Counter, float64(mc.counters[key]), labels)
}

// SetGauge sets a gauge metric value
func (mc *MetricsCollector) SetGauge(name string, value float64, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := makeKey(name, labels)
	mc.gauges[key] = value
	mc.updateMetric(key, name, Gauge, value, labels)
}

// RecordHistogram records a value in a histogram, keeping the last histogramWindow values
func (mc *MetricsCollector) RecordHistogram(name string, value float64, labels map[string]string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := makeKey(name, labels)
	values := append(mc.histograms[key], value)
	if len(values) > histogramWindow {
		values = values[len(values)-histogramWindow:]
	}
	mc.histograms[key] = values
	mc.updateMetric(key, name, Histogram, value, labels)
}

// GetMetric retrieves a metric by name and labels
func (mc *MetricsCollector) GetMetric(name string, labels map[string]string) *Metric {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.metrics[makeKey(name, labels)]
}

// Counter returns the current value of a counter series.
func (mc *MetricsCollector) Counter(name string, labels map[string]string) int64 {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.counters[makeKey(name, labels)]
}

// HistogramStats summarises one histogram series.
type HistogramStats struct {
	Count int
	Min   float64
	Max   float64
	Sum   float64
}

// Avg is the mean of the recorded values, 0 when empty.
func (h HistogramStats) Avg() float64 {
	if h.Count == 0 {
		return 0
	}
	return h.Sum / float64(h.Count)
}

// Histogram returns the stats of a histogram series.
func (mc *MetricsCollector) Histogram(name string, labels map[string]string) HistogramStats {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return stats(mc.histograms[makeKey(name, labels)])
}

func stats(values []float64) HistogramStats {
	var h HistogramStats
	for i, v := range values {
		if i == 0 || v < h.Min {
			h.Min = v
		}
		if i == 0 || v > h.Max {
			h.Max = v
		}
		h.Sum += v
		h.Count++
	}
	return h
}

// Log writes every series to l at debug level, sorted by key.
func (mc *MetricsCollector) Log(l zerolog.Logger) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	keys := make([]string, 0, len(mc.metrics))
	for k := range mc.metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		m := mc.metrics[k]
		ev := l.Debug().Str("metric", k).Str("type", string(m.Type))
		if m.Type == Histogram {
			h := stats(mc.histograms[k])
			ev = ev.Int("count", h.Count).Float64("min", h.Min).Float64("max", h.Max).Float64("avg", h.Avg())
		} else {
			ev = ev.Float64("value", m.Value)
		}
		ev.Msg("metric")
	}
}

// Reset resets all metrics
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.metrics = make(map[string]*Metric)
	mc.counters = make(map[string]int64)
	mc.gauges = make(map[string]float64)
	mc.histograms = make(map[string][]float64)
}

// makeKey builds a deterministic key from a name and sorted labels.
func makeKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(name)
	for _, k := range names {
		fmt.Fprintf(&b, "_%s_%s", k, labels[k])
	}
	return b.String()
}

func (mc *MetricsCollector) updateMetric(key, name string, metricType MetricType, value float64, labels map[string]string) {
	mc.metrics[key] = &Metric{
		Name:      name,
		Type:      metricType,
		Value:     value,
		Labels:    labels,
		Timestamp: time.Now(),
	}
}

// Predefined metric names
const (
	MetricUpdateCount       = "update_count"
	MetricProofTime         = "proof_generation_time"
	MetricVerifyTime        = "proof_verification_time"
	MetricSetupTime         = "setup_time"
	MetricHiddenEntries     = "hidden_entries"
	MetricPublicEntries     = "public_entries"
	MetricVerifyResultCount = "verify_result_count"
	MetricErrorCount        = "error_count"
)

// RecordUpdate counts one Account.Update by kind, mode and outcome.
func (mc *MetricsCollector) RecordUpdate(kind solvency.AmountType, confidential bool, err error) {
	mode := "public"
	if confidential {
		mode = "confidential"
	}
	mc.IncrementCounter(MetricUpdateCount, map[string]string{"kind": kind.String(), "mode": mode, "outcome": outcome(err)})
	if err != nil {
		mc.RecordError(err)
	}
}

// RecordAccount sets the entry-count gauges from s.
func (mc *MetricsCollector) RecordAccount(s solvency.Summary) {
	mc.SetGauge(MetricHiddenEntries, float64(s.HiddenAssets), map[string]string{"kind": "asset"})
	mc.SetGauge(MetricHiddenEntries, float64(s.HiddenLiabilities), map[string]string{"kind": "liability"})
	mc.SetGauge(MetricPublicEntries, float64(s.PublicAssets), map[string]string{"kind": "asset"})
	mc.SetGauge(MetricPublicEntries, float64(s.PublicLiabilities), map[string]string{"kind": "liability"})
}

// RecordProof records one successful proof.
func (mc *MetricsCollector) RecordProof(duration time.Duration) {
	mc.RecordHistogram(MetricProofTime, duration.Seconds(), nil)
}

// RecordVerify records one verification and its outcome.
func (mc *MetricsCollector) RecordVerify(duration time.Duration, err error) {
	mc.RecordHistogram(MetricVerifyTime, duration.Seconds(), nil)
	mc.IncrementCounter(MetricVerifyResultCount, map[string]string{"outcome": outcome(err)})
}

// RecordSetup records the time to compile and load or generate keys.
func (mc *MetricsCollector) RecordSetup(duration time.Duration) {
	mc.RecordHistogram(MetricSetupTime, duration.Seconds(), nil)
}

// RecordError counts err under its solvency error kind.
func (mc *MetricsCollector) RecordError(err error) {
	mc.IncrementCounter(MetricErrorCount, map[string]string{"type": errorKind(err)})
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}

var errorKinds = []struct {
	err  error
	name string
}{
	{solvency.ErrInputMismatch, "input_mismatch"},
	{solvency.ErrMissingBlinds, "missing_blinds"},
	{solvency.ErrDecompressElement, "decompress_element"},
	{solvency.ErrMissingConversionRate, "missing_conversion_rate"},
	{solvency.ErrProveFailed, "prove_failed"},
	{solvency.ErrMissingProof, "missing_proof"},
	{solvency.ErrDeserializeProof, "deserialize_proof"},
	{solvency.ErrVerifyFailed, "verify_failed"},
	{solvency.ErrQuery, "query"},
	{solvency.ErrMalformedState, "malformed_state"},
}

func errorKind(err error) string {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "other"
}
