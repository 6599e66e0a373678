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

	"go.opentelemetry.io/otel/metric"
)

type GaugeMetric struct {
	MetricShortName string
	MetricName      string
	metricDesc      string
}

var GaugeMetricList = []*GaugeMetric{
	{"peers", "peer_count", "Number of peer connections"},
	{"conns", "conns_count", "Number of accepted connections being served"},
	{"inPending", "in_pending", "Inbound operations awaiting a response"},
	{"outPending", "out_pending", "Outbound operations awaiting a response"},
}

// InitSystemMetrics registers the observable gauges of GaugeMetricList. On each
// collection source is polled; values whose Name matches a MetricShortName
// are reported.
func InitSystemMetrics(source func() []GaugeValue) (metric.Registration, error) {
	mtx.Lock()
	meter := getMeter()
	mtx.Unlock()

	gauges := make(map[string]metric.Int64ObservableGauge, len(GaugeMetricList))
	observables := make([]metric.Observable, 0, len(GaugeMetricList))
	for _, element := range GaugeMetricList {
		g, err := meter.Int64ObservableGauge(
			PopulateMetricNamePrefix(element.MetricName),
			metric.WithDescription(element.metricDesc),
		)
		if err != nil {
			return nil, err
		}
		gauges[element.MetricShortName] = g
		observables = append(observables, g)
	}

	return meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			for _, v := range source() {
				if g, ok := gauges[v.Name]; ok {
					o.ObserveInt64(g, v.Value, metric.WithAttributes(convertTagsToOTELAttributes(v.Tags)...))
				}
			}
			return nil
		},
		observables...,
	)
}
