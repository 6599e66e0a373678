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
	"sync"

	"tchannel/pkg/logging"
)

// InboundConnManager tracks accepted connections until they are reset.
type InboundConnManager struct {
	mtx         sync.Mutex
	activeConns map[*Connection]struct{}
	wg          sync.WaitGroup
}

func NewInboundConnManager() *InboundConnManager {
	return &InboundConnManager{activeConns: make(map[*Connection]struct{})}
}

func (m *InboundConnManager) TrackConn(c *Connection, add bool) {
	m.mtx.Lock()
	if m.activeConns == nil {
		m.activeConns = make(map[*Connection]struct{})
	}

	if add {
		m.activeConns[c] = struct{}{}
		m.wg.Add(1)
		if logging.LOG_VERBOSE {
			logging.Verbosef("add active conns: %d", len(m.activeConns))
		}
	} else if _, ok := m.activeConns[c]; ok {
		delete(m.activeConns, c)
		m.wg.Done()
		if logging.LOG_VERBOSE {
			logging.Verbosef("remove active conns: %d", len(m.activeConns))
		}
	}
	m.mtx.Unlock()
}

// Watch tracks c and untracks it once it has been reset.
func (m *InboundConnManager) Watch(c *Connection) {
	m.TrackConn(c, true)
	go func() {
		<-c.Done()
		m.TrackConn(c, false)
	}()
}

func (m *InboundConnManager) Shutdown(err error) {
	m.mtx.Lock()
	conns := make([]*Connection, 0, len(m.activeConns))
	for c := range m.activeConns {
		conns = append(conns, c)
	}
	m.mtx.Unlock()
	for _, c := range conns {
		c.ResetAll(err)
	}
}

// WaitForShutdownToComplete returns ctx.Err() if tracked connections are
// still alive when ctx is done.
func (m *InboundConnManager) WaitForShutdownToComplete(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *InboundConnManager) GetNumActiveConnections() uint32 {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return uint32(len(m.activeConns))
}
