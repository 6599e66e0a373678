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

package errors

import (
	"fmt"
)

const (
	KErrTimeout uint32 = iota + 1
	KErrTimeoutsEscalated
	KErrConnClosed
	KErrShutdown
	KErrHandshake
	KErrChecksum
	KErrParse
	KErrNoSuchOperation
	KErrAlreadyResponded
	KErrBusy
	KErrDestroyed
	KErrNoHost
	KErrSelfConnection
	KErrReservedName
	KErrInvalidDestination
	KErrRemote
)

var (
	ErrTimeout             = &Error{what: "timed out", errno: KErrTimeout}
	ErrTimeoutsEscalated   = &Error{what: "destroying socket from timeouts", errno: KErrTimeoutsEscalated}
	ErrConnClosed          = &Error{what: "socket closed", errno: KErrConnClosed}
	ErrShutdown            = &Error{what: "shutdown from quit", errno: KErrShutdown}
	ErrHandshake           = &Error{what: "first req on socket must be identify", errno: KErrHandshake}
	ErrChecksum            = &Error{what: "checksum validation failed", errno: KErrChecksum}
	ErrParse               = &Error{what: "parse error", errno: KErrParse}
	ErrNoSuchOperation     = &Error{what: "no such operation", errno: KErrNoSuchOperation}
	ErrAlreadyResponded    = &Error{what: "response already sent", errno: KErrAlreadyResponded}
	ErrBusy                = &Error{what: "busy", errno: KErrBusy}
	ErrDestroyed           = &Error{what: "cannot send() to destroyed tchannel", errno: KErrDestroyed}
	ErrNoHost              = &Error{what: "cannot send() without options.host", errno: KErrNoHost}
	ErrSelfConnection      = &Error{what: "refusing to create self connection", errno: KErrSelfConnection}
	ErrReservedName        = &Error{what: "operation name is reserved", errno: KErrReservedName}
	ErrInvalidDestination  = &Error{what: "invalid destination", errno: KErrInvalidDestination}
)

type Error struct {
	what  string
	errno uint32
}

func NewError(what string, errno uint32) *Error {
	return &Error{what: what, errno: errno}
}

func (e *Error) Error() string {
	return fmt.Sprintf("error: %s (%d) ", e.what, e.errno)
}

func (e *Error) ErrNo() uint32 {
	return e.errno
}

func (e *Error) What() string {
	return e.what
}

// RemoteError is an application error reported by the peer in a ResError frame.
// Only the message text travels over the wire.
type RemoteError struct {
	Message string
}

func NewRemoteError(msg string) *RemoteError {
	return &RemoteError{Message: msg}
}

func (e *RemoteError) Error() string {
	return e.Message
}

func (e *RemoteError) ErrNo() uint32 {
	return KErrRemote
}

// Message returns the text a failed handler puts on the wire.
func Message(err error) string {
	switch e := err.(type) {
	case nil:
		return ""
	case *Error:
		return e.what
	case *RemoteError:
		return e.Message
	default:
		return err.Error()
	}
}
