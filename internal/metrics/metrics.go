// Copyright 2026 The Isobox Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics wires OpenTelemetry metrics, exported through a
// Prometheus registry, for the allocator's queue depth and held slots
// and for session run durations and outcomes.
package metrics

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func statusAttr(status string) attribute.KeyValue {
	return attribute.String("status", status)
}

// Collector holds the instruments isobox records against during normal
// operation: allocator pool pressure and per-run outcomes.
type Collector struct {
	meter metric.Meter

	runsTotal    metric.Int64Counter
	runDuration  metric.Float64Histogram
	initFailures metric.Int64Counter
	cleanupFail  metric.Int64Counter

	heldSlotsMu sync.RWMutex
	heldSlots   int64
	waitersMu   sync.RWMutex
	waiters     int64
}

// Provider bundles the OpenTelemetry meter provider, its Prometheus
// reader, and the Collector built on top of it.
type Provider struct {
	mp        *sdkmetric.MeterProvider
	exporter  *prometheus.Exporter
	collector *Collector
}

// NewProvider constructs a meter provider backed by a Prometheus exporter
// and registers the isobox instrument set against it.
func NewProvider() (*Provider, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))

	collector, err := newCollector(mp)
	if err != nil {
		return nil, err
	}

	return &Provider{mp: mp, exporter: exporter, collector: collector}, nil
}

// Collector returns the instrument set for recording session/allocator events.
func (p *Provider) Collector() *Collector { return p.collector }

// Handler returns the HTTP handler serving the Prometheus text exposition
// format; the OTel Prometheus exporter registers against the default
// Prometheus registry, so promhttp.Handler() is sufficient.
func (p *Provider) Handler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes and releases the underlying meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.mp.Shutdown(ctx)
}

func newCollector(mp metric.MeterProvider) (*Collector, error) {
	meter := mp.Meter("isobox")
	c := &Collector{meter: meter}

	var err error
	c.runsTotal, err = meter.Int64Counter(
		"isobox_runs_total",
		metric.WithDescription("Total number of sandbox runs completed"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	c.runDuration, err = meter.Float64Histogram(
		"isobox_run_duration_seconds",
		metric.WithDescription("Wall-clock duration of a single sandbox run"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	c.initFailures, err = meter.Int64Counter(
		"isobox_init_failures_total",
		metric.WithDescription("Total number of box init failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	c.cleanupFail, err = meter.Int64Counter(
		"isobox_cleanup_failures_total",
		metric.WithDescription("Total number of box cleanup failures"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"isobox_held_slots",
		metric.WithDescription("Number of box ids currently held by a session"),
		metric.WithUnit("{slot}"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			c.heldSlotsMu.RLock()
			defer c.heldSlotsMu.RUnlock()
			o.Observe(c.heldSlots)
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"isobox_allocator_waiters",
		metric.WithDescription("Number of callers blocked in BoxAllocator.Acquire"),
		metric.WithUnit("{waiter}"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			c.waitersMu.RLock()
			defer c.waitersMu.RUnlock()
			o.Observe(c.waiters)
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// RecordRun records the outcome and duration of one completed run.
func (c *Collector) RecordRun(ctx context.Context, status string, durationSeconds float64) {
	c.runsTotal.Add(ctx, 1, metric.WithAttributes(statusAttr(status)))
	c.runDuration.Record(ctx, durationSeconds, metric.WithAttributes(statusAttr(status)))
}

// RecordInitFailure increments the init-failure counter.
func (c *Collector) RecordInitFailure(ctx context.Context) {
	c.initFailures.Add(ctx, 1)
}

// RecordCleanupFailure increments the cleanup-failure counter.
func (c *Collector) RecordCleanupFailure(ctx context.Context) {
	c.cleanupFail.Add(ctx, 1)
}

// SetHeldSlots updates the gauge backing isobox_held_slots.
func (c *Collector) SetHeldSlots(n int) {
	c.heldSlotsMu.Lock()
	c.heldSlots = int64(n)
	c.heldSlotsMu.Unlock()
}

// SetWaiters updates the gauge backing isobox_allocator_waiters.
func (c *Collector) SetWaiters(n int) {
	c.waitersMu.Lock()
	c.waiters = int64(n)
	c.waitersMu.Unlock()
}
