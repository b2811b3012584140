// Copyright 2018 The Kura Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storageserver

import (
	"context"
	"path"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// metrics are the storage server's Prometheus collectors. A nil *metrics
// records nothing.
type metrics struct {
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	bytes      *prometheus.CounterVec
	discarding prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netfs_requests_total",
				Help: "Requests served, by method and status code.",
			},
			[]string{"method", "code"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "netfs_request_duration_seconds",
				Help:    "Request duration in seconds, by method.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netfs_transfer_bytes_total",
				Help: "File content transferred, by direction.",
			},
			[]string{"direction"},
		),
		discarding: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "netfs_uploads_discarded_total",
				Help: "Uploads whose staged content was discarded.",
			},
		),
	}
	reg.MustRegister(m.requests, m.latency, m.bytes, m.discarding)
	return m
}

func (m *metrics) observe(method string, start time.Time, err error) {
	if m == nil {
		return
	}
	method = path.Base(method)
	m.requests.WithLabelValues(method, status.Code(err).String()).Inc()
	m.latency.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func (m *metrics) fetched(n int) {
	if m == nil {
		return
	}
	m.bytes.WithLabelValues("fetch").Add(float64(n))
}

func (m *metrics) stored(n int64) {
	if m == nil {
		return
	}
	m.bytes.WithLabelValues("store").Add(float64(n))
}

func (m *metrics) discarded() {
	if m == nil {
		return
	}
	m.discarding.Inc()
}

func (m *metrics) unaryInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	m.observe(info.FullMethod, start, err)
	return resp, err
}

func (m *metrics) streamInterceptor(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	start := time.Now()
	err := handler(srv, ss)
	m.observe(info.FullMethod, start, err)
	return err
}
