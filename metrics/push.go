package metrics

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/prometheus/prompb"
)

// DefaultTimeout is the default timeout for remote write requests.
const DefaultTimeout = 30 * time.Second

// PushConfig configures a PushRegistry.
type PushConfig struct {
	// URL is the base URL of the remote write endpoint (e.g., "http://localhost:8428").
	URL string
	// Prefix is prepended to every metric name, followed by an underscore.
	Prefix string
	// Job is the job label for all metrics.
	Job string
	// Instance is the instance label for all metrics.
	Instance string
	// Timeout is the HTTP client timeout. Defaults to DefaultTimeout.
	Timeout time.Duration
}

// PushRegistry implements Registry by buffering the latest value of every series
// and sending them all to a VictoriaMetrics/Prometheus remote write endpoint on Flush.
type PushRegistry struct {
	url        string
	prefix     string
	job        string
	instance   string
	httpClient *http.Client

	mu     sync.Mutex
	series map[string]*series
}

type series struct {
	name   string
	labels map[string]string
	value  float64
}

// NewPushRegistry creates a PushRegistry for the given endpoint.
func NewPushRegistry(cfg PushConfig) *PushRegistry {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &PushRegistry{
		url:        strings.TrimSuffix(cfg.URL, "/") + "/api/v1/write",
		prefix:     cfg.Prefix,
		job:        cfg.Job,
		instance:   cfg.Instance,
		httpClient: &http.Client{Timeout: timeout},
		series:     make(map[string]*series),
	}
}

// NewGauge creates a buffered Gauge.
func (r *PushRegistry) NewGauge(opts prometheus.GaugeOpts) (Gauge, error) {
	return &pushGauge{s: r.lookup(opts.Name, nil), r: r}, nil
}

// NewGaugeVec creates a buffered GaugeVec.
func (r *PushRegistry) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) (GaugeVec, error) {
	return &pushGaugeVec{name: opts.Name, labels: labels, r: r}, nil
}

// NewCounter creates a buffered Counter.
func (r *PushRegistry) NewCounter(opts prometheus.CounterOpts) (Counter, error) {
	return &pushCounter{s: r.lookup(opts.Name, nil), r: r}, nil
}

// NewCounterVec creates a buffered CounterVec.
func (r *PushRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error) {
	return &pushCounterVec{name: opts.Name, labels: labels, r: r}, nil
}

// Flush sends every buffered series in one remote write request.
func (r *PushRegistry) Flush(ctx context.Context) error {
	req := &prompb.WriteRequest{Timeseries: r.timeSeries(time.Now())}
	if len(req.Timeseries) == 0 {
		return nil
	}

	data, err := proto.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshaling write request: %w", err)
	}
	compressed := snappy.Encode(nil, data)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Encoding", "snappy")
	httpReq.Header.Set("Content-Type", "application/x-protobuf")
	httpReq.Header.Set("X-Prometheus-Remote-Write-Version", "0.1.0")

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// lookup returns the series for name and labels, creating it on first use.
func (r *PushRegistry) lookup(name string, labels map[string]string) *series {
	key := seriesKey(name, labels)

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.series[key]; ok {
		return s
	}
	s := &series{name: name, labels: labels}
	r.series[key] = s
	return s
}

func (r *PushRegistry) update(s *series, f func(float64) float64) {
	r.mu.Lock()
	s.value = f(s.value)
	r.mu.Unlock()
}

// timeSeries converts the buffered series into remote write format, sorted by key
// so requests are reproducible.
func (r *PushRegistry) timeSeries(now time.Time) []prompb.TimeSeries {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.series))
	for k := range r.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]prompb.TimeSeries, 0, len(keys))
	for _, k := range keys {
		s := r.series[k]
		out = append(out, prompb.TimeSeries{
			Labels:  r.promLabels(s),
			Samples: []prompb.Sample{{Value: s.value, Timestamp: now.UnixMilli()}},
		})
	}
	return out
}

func (r *PushRegistry) promLabels(s *series) []prompb.Label {
	name := s.name
	if r.prefix != "" {
		name = r.prefix + "_" + name
	}
	labels := []prompb.Label{{Name: "__name__", Value: name}}
	if r.job != "" {
		labels = append(labels, prompb.Label{Name: "job", Value: r.job})
	}
	if r.instance != "" {
		labels = append(labels, prompb.Label{Name: "instance", Value: r.instance})
	}

	keys := make([]string, 0, len(s.labels))
	for k := range s.labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		labels = append(labels, prompb.Label{Name: k, Value: s.labels[k]})
	}
	return labels
}

// seriesKey builds a map key from a name and its labels in sorted order.
func seriesKey(name string, labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString(name)
	for _, k := range keys {
		sb.WriteString("," + k + "=" + labels[k])
	}
	return sb.String()
}

type pushGauge struct {
	s *series
	r *PushRegistry
}

func (g *pushGauge) Set(v float64) {
	g.r.update(g.s, func(float64) float64 { return v })
}

type pushGaugeVec struct {
	name   string
	labels []string
	r      *PushRegistry
}

func (g *pushGaugeVec) With(labels prometheus.Labels) Gauge {
	return &pushGauge{s: g.r.lookup(g.name, labels), r: g.r}
}

type pushCounter struct {
	s *series
	r *PushRegistry
}

func (c *pushCounter) Inc() {
	c.Add(1)
}

func (c *pushCounter) Add(v float64) {
	if v < 0 {
		panic("metrics: counter cannot decrease")
	}
	c.r.update(c.s, func(old float64) float64 { return old + v })
}

type pushCounterVec struct {
	name   string
	labels []string
	r      *PushRegistry
}

func (c *pushCounterVec) With(labels prometheus.Labels) Counter {
	return &pushCounter{s: c.r.lookup(c.name, labels), r: c.r}
}
