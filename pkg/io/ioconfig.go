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

package io

import (
	"strings"
	"time"

	"tchannel/pkg/util"
)

const (
	ChecksumPolicyReset = "reset"
	ChecksumPolicyWarn  = "warn"
)

var (
	DefaultConfig = Config{
		ReqTimeoutDefault:    util.Duration{Duration: 5 * time.Second},
		TimeoutCheckInterval: util.Duration{Duration: 1 * time.Second},
		TimeoutFuzz:          util.Duration{Duration: 100 * time.Millisecond},
		ConnectTimeout:       util.Duration{Duration: 1 * time.Second},
		ChecksumPolicy:       ChecksumPolicyReset,
		IOBufSize:            64 * 1024, // default 64k buf size
		WriteQueueSize:       8092,
		MaxBufferedWriteSize: 64 * 1024, // default 64k
		MaxArgSize:           16 * 1024 * 1024,
	}
)

type (
	// Config holds the per-connection settings shared by every connection of a channel.
	Config struct {
		ReqTimeoutDefault    util.Duration
		TimeoutCheckInterval util.Duration
		TimeoutFuzz          util.Duration
		ConnectTimeout       util.Duration
		ChecksumPolicy       string
		IOBufSize            int
		WriteQueueSize       int
		MaxBufferedWriteSize int
		MaxArgSize           uint32
	}
)

func (conf *Config) SetDefaultIfNotDefined() (set bool) {
	if conf.ReqTimeoutDefault.Duration == 0 {
		set = true
		conf.ReqTimeoutDefault = DefaultConfig.ReqTimeoutDefault
	}
	if conf.TimeoutCheckInterval.Duration == 0 {
		set = true
		conf.TimeoutCheckInterval = DefaultConfig.TimeoutCheckInterval
	}
	if conf.TimeoutFuzz.Duration == 0 {
		set = true
		conf.TimeoutFuzz = DefaultConfig.TimeoutFuzz
	}
	if conf.ConnectTimeout.Duration == 0 {
		set = true
		conf.ConnectTimeout = DefaultConfig.ConnectTimeout
	}
	policy := strings.ToLower(conf.ChecksumPolicy)
	if policy != ChecksumPolicyReset && policy != ChecksumPolicyWarn {
		set = true
		policy = DefaultConfig.ChecksumPolicy
	}
	conf.ChecksumPolicy = policy
	if conf.IOBufSize == 0 {
		set = true
		conf.IOBufSize = DefaultConfig.IOBufSize
	}
	if conf.WriteQueueSize == 0 {
		set = true
		conf.WriteQueueSize = DefaultConfig.WriteQueueSize
	}
	if conf.MaxBufferedWriteSize == 0 {
		set = true
		conf.MaxBufferedWriteSize = DefaultConfig.MaxBufferedWriteSize
	}
	if conf.MaxArgSize == 0 {
		set = true
		conf.MaxArgSize = DefaultConfig.MaxArgSize
	}
	return
}

// timeoutCheckDelay returns base + floor(rnd*fuzz) - fuzz/2.
func (conf *Config) timeoutCheckDelay(rnd util.RandFunc) time.Duration {
	base := conf.TimeoutCheckInterval.Duration
	fuzz := conf.TimeoutFuzz.Duration
	if fuzz <= 0 {
		return base
	}
	return base + time.Duration(rnd()*float64(fuzz)) - fuzz/2
}
