package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nomis52/featurebatch/metrics"
)

type instruments struct {
	items     metrics.CounterVec
	duration  metrics.Gauge
	lastItems metrics.Gauge
}

func newInstruments(reg metrics.Registry) (*instruments, error) {
	items, err := reg.NewCounterVec(prometheus.CounterOpts{
		Name: "items_total",
		Help: "Items processed, by outcome",
	}, []string{"outcome"})
	if err != nil {
		return nil, err
	}
	duration, err := reg.NewGauge(prometheus.GaugeOpts{
		Name: "run_duration_seconds",
		Help: "Wall-clock duration of the last run",
	})
	if err != nil {
		return nil, err
	}
	lastItems, err := reg.NewGauge(prometheus.GaugeOpts{
		Name: "last_run_items",
		Help: "Number of items in the last run",
	})
	if err != nil {
		return nil, err
	}
	return &instruments{items: items, duration: duration, lastItems: lastItems}, nil
}

func (m *instruments) record(r *Report) {
	if m == nil {
		return
	}
	m.items.With(prometheus.Labels{"outcome": OutcomeSucceeded}).Add(float64(r.Succeeded))
	m.items.With(prometheus.Labels{"outcome": OutcomeFailed}).Add(float64(r.Failed))
	m.items.With(prometheus.Labels{"outcome": OutcomeSkipped}).Add(float64(r.Skipped))
	m.duration.Set(r.Duration().Seconds())
	m.lastItems.Set(float64(r.Items))
}
