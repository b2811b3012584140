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
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestMetrics(t *testing.T) {
	m := newMetrics(prometheus.NewRegistry())

	info := &grpc.UnaryServerInfo{FullMethod: "/netfs.FileService/GetFileStat"}
	m.unaryInterceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, nil
	})
	m.unaryInterceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "NotFound")
	})
	m.fetched(10)
	m.fetched(5)
	m.stored(7)
	m.discarded()

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GetFileStat", "OK")); got != 1 {
		t.Errorf("expected 1 successful request, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("GetFileStat", "NotFound")); got != 1 {
		t.Errorf("expected 1 failed request, got %v", got)
	}
	if got := testutil.ToFloat64(m.bytes.WithLabelValues("fetch")); got != 15 {
		t.Errorf("expected 15 bytes fetched, got %v", got)
	}
	if got := testutil.ToFloat64(m.bytes.WithLabelValues("store")); got != 7 {
		t.Errorf("expected 7 bytes stored, got %v", got)
	}
	if got := testutil.ToFloat64(m.discarding); got != 1 {
		t.Errorf("expected 1 discarded upload, got %v", got)
	}

	// A nil *metrics records nothing and must not panic.
	var none *metrics
	none.fetched(1)
	none.stored(1)
	none.discarded()
}
