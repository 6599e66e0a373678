//
//  Copyright 2023 PayPal Inc.
//
//  Licensed to the Apache Software Foundation (ASF) under one or more
//  contributor license agreements.  See the NOTICE file distributed with
//  this work for additional information regarding copyright ownership.
//  The ASF licenses this file to You under the Apache License, Version 2.0
//  (the "License"); you may not use this file except in compliance with
//  the License.  You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.
//

package otel

import (
	"context"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, r *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := r.Collect(context.Background(), &rm); err != nil {
		t.Fatal(err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(m metricdata.Metrics) int64 {
	var total int64
	if s, ok := m.Data.(metricdata.Sum[int64]); ok {
		for _, dp := range s.DataPoints {
			total += dp.Value
		}
	}
	return total
}

func TestRecordCount(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	defer SetMeterProvider(nil)

	RecordCount(FramesIn, []Tags{{FrameType, "ReqComplete"}})
	RecordCount(FramesIn, []Tags{{FrameType, "ResComplete"}})
	RecordCount(Reset, nil)
	RecordCallLatency("echo", StatusSuccess, 3)

	got := collect(t, reader)
	if v := sumOf(got[PopulateMetricNamePrefix("frames_in")]); v != 2 {
		t.Errorf("frames_in %d", v)
	}
	if v := sumOf(got[PopulateMetricNamePrefix("resets")]); v != 1 {
		t.Errorf("resets %d", v)
	}
	if _, ok := got[PopulateMetricNamePrefix("call_latency")]; !ok {
		t.Error("call_latency not recorded")
	}
}

func TestGauges(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	defer SetMeterProvider(nil)

	reg, err := InitSystemMetrics(func() []GaugeValue {
		return []GaugeValue{{Name: "peers", Value: 3}, {Name: "unknown", Value: 9}}
	})
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Unregister()

	got := collect(t, reader)
	g, ok := got[PopulateMetricNamePrefix("peer_count")]
	if !ok {
		t.Fatal("peer_count gauge missing")
	}
	data, ok := g.Data.(metricdata.Gauge[int64])
	if !ok || len(data.DataPoints) != 1 || data.DataPoints[0].Value != 3 {
		t.Errorf("unexpected gauge data %+v", g.Data)
	}
}
