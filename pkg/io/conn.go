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
	"context"
	"net"
	"time"

	"tchannel/pkg/logging"
	"tchannel/pkg/logging/otel"
)

// Connect dials addr within connectTimeout and records the connect latency.
func Connect(addr string, connectTimeout time.Duration, dial DialFunc) (conn net.Conn, err error) {
	timeStart := time.Now()
	if dial == nil {
		dial = defaultDial
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if conn, err = dial(ctx, "tcp", addr); err == nil {
		if logging.LOG_DEBUG {
			logging.DebugDepth(1, "connected to ", addr)
		}
	} else {
		logging.ErrorDepth(1, "fail to connect ", addr, " error: ", err)
	}

	if otel.IsEnabled() {
		status := otel.StatusSuccess
		if err != nil {
			status = otel.StatusError
		}
		otel.RecordOutboundConnection(addr, status, time.Since(timeStart).Microseconds())
	}
	return
}
