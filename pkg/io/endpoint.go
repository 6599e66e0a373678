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
	"sync"

	"tchannel/pkg/errors"
)

// IdentifyName is the reserved operation used for the connection handshake.
const IdentifyName = "TChannel identify"

type (
	// InboundCall carries the request arguments to a Handler.
	InboundCall struct {
		Operation  string
		Arg2       []byte
		Arg3       []byte
		RemoteName string
		RemoteAddr string
	}

	// Result is what a handler answers with, built by Ok or Fail.
	Result struct {
		res1 interface{}
		res2 interface{}
		err  error
	}

	// Completion delivers the handler's result. Only the first call has an
	// effect; later calls return ErrAlreadyResponded.
	Completion func(Result) error

	// Handler serves one operation. It runs on the connection's reader goroutine
	// and must hand long work off before blocking.
	Handler func(call *InboundCall, done Completion)

	// Callback receives the outcome of an outbound request: arg2 and arg3 of
	// the response, or an error.
	Callback func(res1, res2 []byte, err error)

	EndpointTable struct {
		mtx       sync.RWMutex
		endpoints map[string]Handler
	}
)

func Ok(res1, res2 interface{}) Result {
	return Result{res1: res1, res2: res2}
}

func Fail(err error) Result {
	if err == nil {
		err = errors.NewRemoteError("")
	}
	return Result{err: err}
}

func (r Result) Err() error {
	return r.err
}

func NewEndpointTable() *EndpointTable {
	return &EndpointTable{endpoints: make(map[string]Handler)}
}

// Register replaces any existing handler for op.
func (t *EndpointTable) Register(op string, h Handler) error {
	if op == IdentifyName {
		return errors.ErrReservedName
	}
	t.mtx.Lock()
	t.endpoints[op] = h
	t.mtx.Unlock()
	return nil
}

func (t *EndpointTable) Lookup(op string) (h Handler, ok bool) {
	t.mtx.RLock()
	h, ok = t.endpoints[op]
	t.mtx.RUnlock()
	return
}

func (t *EndpointTable) Operations() []string {
	t.mtx.RLock()
	defer t.mtx.RUnlock()
	ops := make([]string, 0, len(t.endpoints))
	for op := range t.endpoints {
		ops = append(ops, op)
	}
	return ops
}
