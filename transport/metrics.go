// Copyright 2019 SpotHero
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

// Package transport provides net/http.RoundTripper middleware shared by
// every outbound client this module makes: Schema Registry and ksqlDB
// REST. Server-side middleware lives in the
// teacher's http package; this is a client library, so only the
// RoundTripper chain survives here.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/spothero/ksqlstream/log"
)

// Metrics is a bundle of Prometheus client-request metrics recorders.
type Metrics struct {
	counter       *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	contentLength *prometheus.HistogramVec
}

// NewMetrics creates and registers a client Metrics bundle. If registry is
// nil, the global Prometheus registry is used; if mustRegister is true, a
// registration failure panics rather than being logged and ignored.
func NewMetrics(registry prometheus.Registerer, mustRegister bool) Metrics {
	labels := []string{"path", "status_code"}
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ksqlstream_http_client_request_duration_seconds",
			Help:    "Duration histogram for outbound HTTP requests",
			Buckets: prometheus.ExponentialBuckets(0.001, 2.0, 16),
		},
		labels,
	)
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ksqlstream_http_client_requests_total",
			Help: "Total number of outbound HTTP requests sent",
		},
		labels,
	)
	contentLength := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ksqlstream_http_client_content_length_bytes",
			Help:    "Outbound HTTP request content length histogram",
			Buckets: prometheus.ExponentialBuckets(1, 2.0, 24),
		},
		labels,
	)
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	collectors := map[string]prometheus.Collector{
		"duration":      duration,
		"counter":       counter,
		"contentLength": contentLength,
	}
	for name, c := range collectors {
		if mustRegister {
			registry.MustRegister(c)
			continue
		}
		if err := registry.Register(c); err != nil {
			switch err.(type) {
			case prometheus.AlreadyRegisteredError:
				log.Get(context.Background()).Debug(fmt.Sprintf("metric `%v` already registered", name), zap.Error(err))
			default:
				log.Get(context.Background()).Error(fmt.Sprintf("failed to register metric `%v`", name), zap.Error(err))
			}
		}
	}
	return Metrics{counter: counter, duration: duration, contentLength: contentLength}
}

// MetricsRoundTripper measures outbound HTTP call duration and status codes.
type MetricsRoundTripper struct {
	RoundTripper http.RoundTripper
	Metrics      Metrics
}

// RoundTrip measures HTTP client call duration and status codes.
func (m MetricsRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	if m.RoundTripper == nil {
		panic("no roundtripper provided to metrics round tripper")
	}
	var resp *http.Response
	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(durationSec float64) {
		if resp == nil {
			return
		}
		labels := prometheus.Labels{
			"path":        r.URL.Path,
			"status_code": strconv.Itoa(resp.StatusCode),
		}
		m.Metrics.counter.With(labels).Inc()
		if contentLengthStr := r.Header.Get("Content-Length"); len(contentLengthStr) > 0 {
			if contentLength, err := strconv.Atoi(contentLengthStr); err == nil {
				m.Metrics.contentLength.With(labels).Observe(float64(contentLength))
			}
		}
		m.Metrics.duration.With(labels).Observe(durationSec)
	}))
	defer timer.ObserveDuration()
	resp, err := m.RoundTripper.RoundTrip(r)
	if err != nil {
		return nil, fmt.Errorf("http client request failed: %w", err)
	}
	return resp, err
}
