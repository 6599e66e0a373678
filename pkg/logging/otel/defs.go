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
	"go.opentelemetry.io/otel/metric"
)

//*************************** Constants ****************************
const (
	FramesIn CMetric = CMetric(iota)
	FramesOut
	ChecksumFail
	Timeout
	Reset
	HandshakeFail
	Accept
	Call
)

const (
	CallLatency CMetric = CMetric(iota + 100)
	OutboundConnection
)

const (
	Endpoint  = string("endpoint")
	Operation = string("operation")
	Status    = string("status")
	FrameType = string("type")
	Direction = string("direction")
	Reason    = string("reason")
	Error     = string("Error")
	Success   = string("Success")
)

// OTEl Status
const (
	StatusSuccess string = "SUCCESS"
	StatusError   string = "ERROR"
	StatusTimeout string = "TIMEOUT"
)

const TCHANNEL_METRIC_PREFIX = "tchannel."
const MeterName = "tchannel-meter"

//****************************** variables ***************************

var countMetricMap = map[CMetric]*countMetric{
	FramesIn:      {"frames_in", "Frames received"},
	FramesOut:     {"frames_out", "Frames queued for write"},
	ChecksumFail:  {"checksum_failures", "Frames failing checksum validation"},
	Timeout:       {"timeouts", "Outbound operations failed by the timeout sweep"},
	Reset:         {"resets", "Connections reset"},
	HandshakeFail: {"handshake_failures", "Inbound connections rejected before identify"},
	Accept:        {"accept", "Accepting incoming connections"},
	Call:          {"calls", "Outbound calls completed"},
}

var histMetricMap = map[CMetric]*histogramMetric{
	CallLatency:        {"call_latency", "Histogram for outbound call latency", "ms"},
	OutboundConnection: {"outbound_connection", "Histogram for outbound connect time", "us"},
}

// ************************************ Types ****************************
type CMetric int

type Tags struct {
	TagName  string
	TagValue string
}

type countMetric struct {
	metricName string
	metricDesc string
}

type histogramMetric struct {
	metricName string
	metricDesc string
	metricUnit string
}

// GaugeValue is one observation reported by a gauge callback.
type GaugeValue struct {
	Name  string
	Value int64
	Tags  []Tags
}

type instruments struct {
	counters   map[CMetric]metric.Int64Counter
	histograms map[CMetric]metric.Int64Histogram
}
