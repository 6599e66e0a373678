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

package ioutil

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"

	"tchannel/pkg/logging"
)

// IsPeerGone reports whether err only means the remote end or the local
// side went away, as opposed to a transport fault worth a warning.
func IsPeerGone(err error) bool {
	if err == nil {
		return false
	}
	if err == io.EOF || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
		return true
	}
	if opErr, ok := err.(*net.OpError); ok {
		if sErr, ok := opErr.Err.(*os.SyscallError); ok {
			if sErr.Err == syscall.ECONNRESET || sErr.Err == syscall.EPIPE {
				return true
			}
		}
		if opErr.Err.Error() == "use of closed network connection" {
			return true
		}
	}
	return false
}

// LogError logs a socket error with ctx, a KeyValueBuffer rendering of the
// connection.
func LogError(ctx string, err error) {
	if err == nil {
		return
	}

	if nerr, ok := err.(net.Error); ok {
		if nerr.Timeout() {
			logging.Warning(ctx, " ", err)
			return
		}
	}

	if IsPeerGone(err) {
		if logging.LOG_DEBUG {
			logging.DebugDepth(1, ctx, " ", err)
		}
	} else {
		logging.Warning(ctx, " ", err)
	}
}
