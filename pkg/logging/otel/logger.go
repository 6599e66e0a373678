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
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	gotel "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"tchannel/pkg/logging"
	"tchannel/pkg/initmgr"
	otelCfg "tchannel/pkg/logging/otel/config"
)

var (
	mtx           sync.RWMutex
	meterProvider *sdkmetric.MeterProvider
	provider      metric.MeterProvider
	insts         *instruments

	Initializer initmgr.IInitializer = initmgr.NewInitializer(Initialize, Finalize)
)

func Initialize(args ...interface{}) (err error) {
	logging.Info("tchannel OTEL initialized")
	sz := len(args)
	if sz == 0 {
		err = fmt.Errorf("Otel config argument not as expected")
		logging.Error(err)
		return
	}
	var c *otelCfg.Config
	var ok bool
	if c, ok = args[0].(*otelCfg.Config); !ok {
		err = fmt.Errorf("wrong argument type")
		logging.Error(err)
		return
	}
	c.Validate()
	c.Dump()
	if c.Enabled {
		// Initialize only if OTEL is enabled
		err = InitMetricProvider(c)
	}
	return
}

func InitMetricProvider(config *otelCfg.Config) error {
	mtx.RLock()
	ready := meterProvider != nil
	mtx.RUnlock()
	if ready {
		logging.Info("meter provider is already available")
		return nil
	}
	otelCfg.OtelConfig = config

	ctx := context.Background()

	latencyView := sdkmetric.NewView(
		sdkmetric.Instrument{Name: PopulateMetricNamePrefix("call_latency")},
		sdkmetric.Stream{
			Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
				Boundaries: config.HistogramBuckets.CallLatency,
			},
		})
	connectView := sdkmetric.NewView(
		sdkmetric.Instrument{Name: PopulateMetricNamePrefix("outbound_connection")},
		sdkmetric.Stream{
			Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
				Boundaries: config.HistogramBuckets.OutboundConnection,
			},
		})

	mp, err := NewMeterProvider(ctx, *config, latencyView, connectView)
	if err != nil {
		return err
	}
	mtx.Lock()
	meterProvider = mp
	mtx.Unlock()
	SetMeterProvider(mp)
	gotel.SetMeterProvider(mp)
	return nil
}

func NewMeterProvider(ctx context.Context, cfg otelCfg.Config, vis ...sdkmetric.View) (*sdkmetric.MeterProvider, error) {
	exp, err := NewHTTPExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(time.Duration(cfg.Resolution)*time.Second))
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(getResourceInfo(cfg.ServiceName)),
		sdkmetric.WithReader(reader),
		sdkmetric.WithView(vis...),
	), nil
}

func NewHTTPExporter(ctx context.Context, cfg otelCfg.Config) (sdkmetric.Exporter, error) {
	var deltaTemporalitySelector = func(sdkmetric.InstrumentKind) metricdata.Temporality { return metricdata.DeltaTemporality }
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)),
		otlpmetrichttp.WithURLPath(cfg.UrlPath),
		otlpmetrichttp.WithTimeout(7 * time.Second),
		otlpmetrichttp.WithCompression(otlpmetrichttp.NoCompression),
		otlpmetrichttp.WithTemporalitySelector(deltaTemporalitySelector),
		otlpmetrichttp.WithRetry(otlpmetrichttp.RetryConfig{
			Enabled:         true,
			InitialInterval: 1 * time.Second,
			MaxInterval:     10 * time.Second,
			MaxElapsedTime:  240 * time.Second,
		}),
	}
	if !cfg.UseTls {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	return otlpmetrichttp.New(ctx, opts...)
}

// SetMeterProvider routes every instrument of this package to mp.
// Instruments created against a previous provider are dropped.
func SetMeterProvider(mp metric.MeterProvider) {
	mtx.Lock()
	provider = mp
	insts = nil
	mtx.Unlock()
}

func Shutdown(ctx context.Context) error {
	mtx.Lock()
	mp := meterProvider
	meterProvider = nil
	provider = nil
	insts = nil
	mtx.Unlock()
	if mp != nil {
		return mp.Shutdown(ctx)
	}
	return nil
}

// Finalize flushes and stops the exporter.
func Finalize() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := Shutdown(ctx); err != nil {
		logging.Warningf("otel shutdown: %s", err)
	}
}

func IsEnabled() bool {
	mtx.RLock()
	defer mtx.RUnlock()
	return provider != nil
}

// caller holds mtx
func getMeter() metric.Meter {
	if provider != nil {
		return provider.Meter(MeterName)
	}
	return gotel.Meter(MeterName)
}

// caller holds mtx
func getInstruments() *instruments {
	if insts == nil {
		insts = &instruments{
			counters:   make(map[CMetric]metric.Int64Counter),
			histograms: make(map[CMetric]metric.Int64Histogram),
		}
	}
	return insts
}

func GetCounter(counterName CMetric) (metric.Int64Counter, error) {
	mtx.RLock()
	if insts != nil {
		if c, ok := insts.counters[counterName]; ok {
			mtx.RUnlock()
			return c, nil
		}
	}
	mtx.RUnlock()

	counterMetric, ok := countMetricMap[counterName]
	if !ok {
		return nil, errors.New("No Such counter exists")
	}
	mtx.Lock()
	defer mtx.Unlock()
	in := getInstruments()
	if c, ok := in.counters[counterName]; ok {
		return c, nil
	}
	c, err := getMeter().Int64Counter(
		PopulateMetricNamePrefix(counterMetric.metricName),
		metric.WithDescription(counterMetric.metricDesc),
	)
	if err != nil {
		return nil, err
	}
	in.counters[counterName] = c
	return c, nil
}

func GetHistogram(histName CMetric) (metric.Int64Histogram, error) {
	mtx.RLock()
	if insts != nil {
		if h, ok := insts.histograms[histName]; ok {
			mtx.RUnlock()
			return h, nil
		}
	}
	mtx.RUnlock()

	histMetric, ok := histMetricMap[histName]
	if !ok {
		return nil, errors.New("No Such histogram exists")
	}
	mtx.Lock()
	defer mtx.Unlock()
	in := getInstruments()
	if h, ok := in.histograms[histName]; ok {
		return h, nil
	}
	h, err := getMeter().Int64Histogram(
		PopulateMetricNamePrefix(histMetric.metricName),
		metric.WithDescription(histMetric.metricDesc),
		metric.WithUnit(histMetric.metricUnit),
	)
	if err != nil {
		return nil, err
	}
	in.histograms[histName] = h
	return h, nil
}

func RecordCallLatency(opType string, status string, latency int64) {
	if h, err := GetHistogram(CallLatency); err == nil {
		h.Record(context.Background(), latency, metric.WithAttributes(
			attribute.String(Operation, opType),
			attribute.String(Status, status),
		))
	}
}

func RecordOutboundConnection(endpoint string, status string, latency int64) {
	if h, err := GetHistogram(OutboundConnection); err == nil {
		h.Record(context.Background(), latency, metric.WithAttributes(
			attribute.String(Endpoint, endpoint),
			attribute.String(Status, status),
		))
	}
}

func RecordCount(counterName CMetric, tags []Tags) {
	if counter, err := GetCounter(counterName); err == nil {
		if len(tags) != 0 {
			counter.Add(context.Background(), 1, metric.WithAttributes(convertTagsToOTELAttributes(tags)...))
		} else {
			counter.Add(context.Background(), 1)
		}
	} else {
		logging.Error(err)
	}
}

func convertTagsToOTELAttributes(tags []Tags) (attr []attribute.KeyValue) {
	attr = make([]attribute.KeyValue, len(tags))
	for i := 0; i < len(tags); i++ {
		attr[i] = attribute.String(tags[i].TagName, tags[i].TagValue)
	}
	return
}

func PopulateMetricNamePrefix(metricName string) string {
	return TCHANNEL_METRIC_PREFIX + metricName
}

func getResourceInfo(appName string) *resource.Resource {
	hostname, _ := os.Hostname()

	return resource.NewWithAttributes(semconv.SchemaURL,
		semconv.HostName(hostname),
		semconv.ServiceName(appName),
		attribute.String("application", appName),
	)
}
