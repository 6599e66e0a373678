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

package config

import (
	"tchannel/pkg/logging"
)

var OtelConfig *Config

type HistBuckets struct {
	CallLatency        []float64
	OutboundConnection []float64
}

type Config struct {
	Host             string
	Port             uint32
	UrlPath          string
	ServiceName      string
	Enabled          bool
	Resolution       uint32
	UseTls           bool
	HistogramBuckets HistBuckets
}

func (c *Config) Validate() {
	if len(c.ServiceName) <= 0 {
		c.ServiceName = "tchannel"
	}
	c.SetDefaultIfNotDefined()
}

func (c *Config) SetDefaultIfNotDefined() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 4318
	}
	if c.Resolution == 0 {
		c.Resolution = 60
	}
	if c.UrlPath == "" {
		c.UrlPath = "/v1/metrics"
	}
	if c.HistogramBuckets.CallLatency == nil {
		c.HistogramBuckets.CallLatency = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}
	}
	if c.HistogramBuckets.OutboundConnection == nil {
		c.HistogramBuckets.OutboundConnection = []float64{100, 200, 400, 800, 1600, 3200, 10000, 50000, 100000, 1000000}
	}
}

func (c *Config) Dump() {
	logging.Infof("Host : %s", c.Host)
	logging.Infof("Port: %d", c.Port)
	logging.Infof("ServiceName: %s", c.ServiceName)
	logging.Infof("Resolution: %d", c.Resolution)
	logging.Infof("UseTls: %t", c.UseTls)
	logging.Infof("UrlPath: %s", c.UrlPath)
	logging.Info("CallLatency Bucket: ", c.HistogramBuckets.CallLatency)
	logging.Info("OutboundConnection Bucket: ", c.HistogramBuckets.OutboundConnection)
}
