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

	"tchannel/pkg/util"
)

type (
	// Host is what a Connection needs from the channel owning it.
	Host interface {
		Name() string
		Config() *Config
		Clock() util.Clock
		Rand() util.RandFunc

		// Lookup resolves an operation name to its registered handler.
		Lookup(op string) (Handler, bool)

		// OnIdentified is called once the remote name of c is known.
		OnIdentified(c *Connection)
		OnReset(c *Connection)
		OnClosed(c *Connection, err error)
	}

	DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)
)

func defaultDial(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, addr)
}
