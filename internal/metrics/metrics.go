// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package metrics exports the gateway's prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "livestatus"

// Collector is a prometheus.Collector that collects metrics about the
// gateway. It records the events reported by the publications, topics,
// root channel and websocket server.
type Collector struct {
	upstreamConnected   prometheus.Gauge
	subscriptionResults *prometheus.CounterVec
	broadcasts          *prometheus.CounterVec
	framesSent          *prometheus.CounterVec
	skipped             *prometheus.CounterVec
	requests            *prometheus.CounterVec
	malformed           prometheus.Counter
	connectionCount     prometheus.Gauge
	connectionDuration  prometheus.Histogram
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		upstreamConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "upstream_connected",
				Help:      "Whether the upstream link is connected.",
			},
		),
		subscriptionResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "subscription_results_total",
				Help:      "The number of upstream subscriptions set up, by outcome.",
			}, []string{"publication", "result"},
		),
		broadcasts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "broadcasts_total",
				Help:      "The number of status frames built for a topic.",
			}, []string{"topic"},
		),
		framesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "frames_sent_total",
				Help:      "The number of status frames queued for subscribers.",
			}, []string{"topic"},
		),
		skipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "skipped_broadcasts_total",
				Help:      "The number of statuses withheld while their sources disagreed.",
			}, []string{"topic"},
		),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "requests_total",
				Help:      "The number of client requests handled.",
			}, []string{"event"},
		),
		malformed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "malformed_messages_total",
				Help:      "The number of client messages dropped as malformed.",
			},
		),
		connectionCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "connection_count",
				Help:      "The number of open client connections.",
			},
		),
		connectionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "connection_time",
				Help:      "The duration a client keeps its connection open.",
				Buckets:   []float64{1, 10, 60, 300, 600, 3600, 14400},
			},
		),
	}
}

// UpstreamConnected records the state of the upstream link.
func (c *Collector) UpstreamConnected(connected bool) {
	if connected {
		c.upstreamConnected.Set(1)
	} else {
		c.upstreamConnected.Set(0)
	}
}

// SubscriptionResult records the outcome of an upstream subscription.
func (c *Collector) SubscriptionResult(publication string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.subscriptionResults.WithLabelValues(publication, result).Inc()
}

// Broadcast records a status frame sent to the given number of
// subscribers.
func (c *Collector) Broadcast(topic string, subscribers int) {
	c.broadcasts.WithLabelValues(topic).Inc()
	c.framesSent.WithLabelValues(topic).Add(float64(subscribers))
}

// Skipped records a withheld status.
func (c *Collector) Skipped(topic string) {
	c.skipped.WithLabelValues(topic).Inc()
}

// Request records a handled client request.
func (c *Collector) Request(event string) {
	c.requests.WithLabelValues(event).Inc()
}

// Malformed records a dropped client message.
func (c *Collector) Malformed() {
	c.malformed.Inc()
}

// ConnectionOpened records a new client connection.
func (c *Collector) ConnectionOpened() {
	c.connectionCount.Inc()
}

// ConnectionClosed records the end of a client connection that was open
// for d.
func (c *Collector) ConnectionClosed(d time.Duration) {
	c.connectionCount.Dec()
	c.connectionDuration.Observe(d.Seconds())
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.upstreamConnected.Describe(ch)
	c.subscriptionResults.Describe(ch)
	c.broadcasts.Describe(ch)
	c.framesSent.Describe(ch)
	c.skipped.Describe(ch)
	c.requests.Describe(ch)
	c.malformed.Describe(ch)
	c.connectionCount.Describe(ch)
	c.connectionDuration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.upstreamConnected.Collect(ch)
	c.subscriptionResults.Collect(ch)
	c.broadcasts.Collect(ch)
	c.framesSent.Collect(ch)
	c.skipped.Collect(ch)
	c.requests.Collect(ch)
	c.malformed.Collect(ch)
	c.connectionCount.Collect(ch)
	c.connectionDuration.Collect(ch)
}
