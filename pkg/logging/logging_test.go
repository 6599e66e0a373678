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

package logging

import (
	"errors"
	"testing"
)

func TestInitLoggingLevels(t *testing.T) {
	defer InitLogging("info", "")

	InitLogging("debug", "tchannel-test")
	if !LOG_DEBUG || LOG_VERBOSE || !LOG_INFO {
		t.Errorf("debug level: got debug=%v verbose=%v info=%v", LOG_DEBUG, LOG_VERBOSE, LOG_INFO)
	}
	if GetAppName() != "tchannel-test" {
		t.Errorf("app name %q", GetAppName())
	}

	InitLogging("error", "tchannel-test")
	if !LOG_ERROR || LOG_WARN || LOG_INFO {
		t.Errorf("error level: got error=%v warn=%v info=%v", LOG_ERROR, LOG_WARN, LOG_INFO)
	}

	InitLogging("bogus", "tchannel-test")
	if !LOG_INFO || LOG_DEBUG {
		t.Errorf("unknown level should fall back to info")
	}
}

func TestKVBuffer(t *testing.T) {
	b := NewKVBuffer()
	b.AddConnId("c1").AddRemoteAddr("127.0.0.1:4040").AddRemoteName("").AddFrameId(7)
	if got := b.String(); got != "cid=c1&raddr=127.0.0.1:4040&id=7" {
		t.Errorf("got %q", got)
	}

	b = NewKVBufferForLog()
	b.AddOperation([]byte("echo")).AddError(errors.New("boom")).AddPending(1, 2)
	if got := b.String(); got != "op=echo,err=boom,pending=1/2" {
		t.Errorf("got %q", got)
	}
}
