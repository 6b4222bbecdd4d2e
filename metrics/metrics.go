// (c) 2019-2020, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics gives the mempool facade counter and gauge hooks without
// coupling it to a particular metrics backend. The mempool only ever sees
// the Sink interface; wiring a real backend (here Prometheus) is the
// embedder's concern.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Sink is the set of counter/gauge operations the mempool facade emits.
// Counters only go up; gauges hold point-in-time snapshots.
type Sink interface {
	IncCounter(name string)
	AddCounter(name string, delta int)
	SetGauge(name string, value float64)
}

// Noop discards every observation. Useful as the default Sink in tests and
// in embedders that haven't wired metrics yet.
type Noop struct{}

func (Noop) IncCounter(string)             {}
func (Noop) AddCounter(string, int)        {}
func (Noop) SetGauge(string, float64)      {}

// Prometheus is a Sink backed by a prometheus.Registry. Counters and gauges
// are created lazily on first use and cached by name, mirroring the
// GetOrRegister idiom common in Go metrics libraries.
type Prometheus struct {
	namespace string
	reg       prometheus.Registerer

	mu       sync.Mutex
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
}

// NewPrometheus creates a Sink that registers metrics under namespace into
// reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewPrometheus(namespace string, reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &Prometheus{
		namespace: namespace,
		reg:       reg,
		counters:  make(map[string]prometheus.Counter),
		gauges:    make(map[string]prometheus.Gauge),
	}
}

func (p *Prometheus) counter(name string) prometheus.Counter {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.counters[name]; ok {
		return c
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: p.namespace,
		Name:      name,
	})
	p.reg.MustRegister(c)
	p.counters[name] = c
	return c
}

func (p *Prometheus) gauge(name string) prometheus.Gauge {
	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok := p.gauges[name]; ok {
		return g
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: p.namespace,
		Name:      name,
	})
	p.reg.MustRegister(g)
	p.gauges[name] = g
	return g
}

// IncCounter increments the named counter by one, registering it on first use.
func (p *Prometheus) IncCounter(name string) { p.counter(name).Inc() }

// AddCounter increments the named counter by delta.
func (p *Prometheus) AddCounter(name string, delta int) { p.counter(name).Add(float64(delta)) }

// SetGauge sets the named gauge to value.
func (p *Prometheus) SetGauge(name string, value float64) { p.gauge(name).Set(value) }

// Metric names emitted by the mempool facade, per the spec's metrics table.
const (
	TransactionReceived  = "transaction_received"
	TransactionInserted  = "transaction_inserted"
	TxsCommitted         = "txs_committed"
	TxsRejected          = "txs_rejected"
	TxsExpired           = "txs_expired"
	GetTxsSize           = "get_txs_size"
	PriorityQueueLength  = "priority_queue_length"
	PendingQueueLength   = "pending_queue_length"
	PoolCapacity         = "pool_capacity"
)
