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

package channel

import (
	"sort"
	"sync"

	"tchannel/pkg/io"
)

// peerTable maps a peer name to its connections, outbound ones ranked first.
type peerTable struct {
	mtx   sync.Mutex
	peers map[string][]*io.Connection
	names map[*io.Connection]string
}

func newPeerTable() *peerTable {
	return &peerTable{
		peers: make(map[string][]*io.Connection),
		names: make(map[*io.Connection]string),
	}
}

// add returns the connection that ranked first for name before c was added.
func (t *peerTable) add(name string, c *io.Connection) (existing *io.Connection) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	list := t.peers[name]
	if len(list) != 0 {
		existing = list[0]
	}
	for _, conn := range list {
		if conn == c {
			return
		}
	}
	if c.Direction() == io.Outbound {
		list = append([]*io.Connection{c}, list...)
	} else {
		list = append(list, c)
	}
	t.peers[name] = list
	t.names[c] = name
	return
}

func (t *peerTable) get(name string) *io.Connection {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	if list := t.peers[name]; len(list) != 0 {
		return list[0]
	}
	return nil
}

func (t *peerTable) remove(name string, c *io.Connection) bool {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	list := t.peers[name]
	for i, conn := range list {
		if conn == c {
			list = append(list[:i:i], list[i+1:]...)
			if len(list) == 0 {
				delete(t.peers, name)
			} else {
				t.peers[name] = list
			}
			if t.names[c] == name {
				delete(t.names, c)
			}
			return true
		}
	}
	return false
}

// removeConn drops c from whichever list holds it.
func (t *peerTable) removeConn(c *io.Connection) (name string, ok bool) {
	t.mtx.Lock()
	name, ok = t.names[c]
	t.mtx.Unlock()
	if ok {
		ok = t.remove(name, c)
	}
	return
}

// all returns every connection, grouped by peer name in name order.
func (t *peerTable) all() []*io.Connection {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	names := make([]string, 0, len(t.peers))
	for name := range t.peers {
		names = append(names, name)
	}
	sort.Strings(names)
	var conns []*io.Connection
	for _, name := range names {
		conns = append(conns, t.peers[name]...)
	}
	return conns
}

func (t *peerTable) count() (peers int, conns int) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return len(t.peers), len(t.names)
}
