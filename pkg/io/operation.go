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
	"time"
)

type (
	SendOptions struct {
		// Timeout overrides Config.ReqTimeoutDefault when non-zero.
		Timeout time.Duration
	}

	// outOp is a request sent on the connection and waiting for its response.
	outOp struct {
		id       uint32
		op       string
		start    time.Time
		timeout  time.Duration
		cb       Callback
		timedOut bool
	}

	// inOp is a request received on the connection whose handler has not
	// answered yet.
	inOp struct {
		id        uint32
		arg1      []byte
		responded bool
	}
)

func (op *outOp) expired(now time.Time) bool {
	return now.Sub(op.start) > op.timeout
}

func (op *outOp) complete(res1, res2 []byte, err error) {
	if op.cb != nil {
		op.cb(res1, res2, err)
	}
}
