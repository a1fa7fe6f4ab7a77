//
// (C) Copyright 2024-2026 Kestrel OS Project.
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package nvme

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

type metricsRegisterer = prometheus.Registerer

const (
	opRead  = "read"
	opWrite = "write"
)

// Metrics tracks per-driver transfer activity. All methods are safe on
// a nil receiver so that instrumentation stays optional.
type Metrics struct {
	transfers     *prometheus.CounterVec
	transferBytes *prometheus.CounterVec
	failures      *prometheus.CounterVec
	queuePairs    prometheus.Gauge
}

// NewMetrics builds the driver metric set and registers it.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nvme",
			Name:      "transfers_total",
			Help:      "Number of completed transfers by operation.",
		}, []string{"op"}),
		transferBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nvme",
			Name:      "transfer_bytes_total",
			Help:      "Number of bytes transferred by operation.",
		}, []string{"op"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nvme",
			Name:      "transfer_failures_total",
			Help:      "Number of failed transfers by operation.",
		}, []string{"op"}),
		queuePairs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nvme",
			Name:      "io_queue_pairs",
			Help:      "Number of live I/O queue pairs.",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.transfers, m.transferBytes, m.failures, m.queuePairs,
	} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register driver metrics")
		}
	}

	return m, nil
}

// AddTransfer records a completed transfer of size bytes.
func (m *Metrics) AddTransfer(op string, size int) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(op).Inc()
	m.transferBytes.WithLabelValues(op).Add(float64(size))
}

// IncFailure records a failed transfer.
func (m *Metrics) IncFailure(op string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(op).Inc()
}

// IncQueuePairs records a queue pair creation.
func (m *Metrics) IncQueuePairs() {
	if m == nil {
		return
	}
	m.queuePairs.Inc()
}

// DecQueuePairs records a queue pair deletion.
func (m *Metrics) DecQueuePairs() {
	if m == nil {
		return
	}
	m.queuePairs.Dec()
}
