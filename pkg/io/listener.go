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
	"errors"
	"net"

	"golang.org/x/net/netutil"

	"tchannel/pkg/logging"
	"tchannel/pkg/logging/otel"
)

type (
	ListenerConfig struct {
		Name    string
		Network string
		Addr    string
		// MaxConnections caps concurrently served inbound connections. Zero
		// means no limit.
		MaxConnections int
	}

	Listener struct {
		config      ListenerConfig
		host        Host
		netListener net.Listener
		connMgr     *InboundConnManager
	}
)

func NewListener(cfg ListenerConfig, host Host) (*Listener, error) {
	if len(cfg.Network) == 0 {
		cfg.Network = "tcp"
	}
	ln, err := net.Listen(cfg.Network, cfg.Addr)
	if err != nil {
		return nil, err
	}
	return NewListenerWith(cfg, host, ln), nil
}

// NewListenerWith serves connections accepted from an already bound ln.
func NewListenerWith(cfg ListenerConfig, host Host, ln net.Listener) *Listener {
	if len(cfg.Network) == 0 {
		cfg.Network = ln.Addr().Network()
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}
	return &Listener{
		config:      cfg,
		host:        host,
		netListener: ln,
		connMgr:     NewInboundConnManager(),
	}
}

func (l *Listener) Close() error {
	return l.netListener.Close()
}

// Shutdown stops accepting and resets every served connection with err.
func (l *Listener) Shutdown(err error) {
	l.netListener.Close()
	l.connMgr.Shutdown(err)
}

func (l *Listener) WaitForShutdownToComplete(ctx context.Context) error {
	return l.connMgr.WaitForShutdownToComplete(ctx)
}

func (l *Listener) AcceptAndServe() error {
	conn, err := l.netListener.Accept()

	if err == nil {
		if logging.LOG_DEBUG {
			logging.Debugf("accept %s", logging.NewKVBuffer().
				AddRemoteAddr(conn.RemoteAddr().String()).
				Add([]byte("laddr"), conn.LocalAddr().String()).String())
		}
		otel.RecordCount(otel.Accept, []otel.Tags{{TagName: otel.Status, TagValue: otel.Success}})
		l.connMgr.Watch(NewInboundConnection(l.host, conn))
	} else {
		otel.RecordCount(otel.Accept, []otel.Tags{{TagName: otel.Status, TagValue: otel.Error}})
	}
	//log the error in caller if needed
	return err
}

// Serve accepts until the listener is closed.
func (l *Listener) Serve() {
	for {
		if err := l.AcceptAndServe(); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				continue
			}
			logging.Errorf("accept on %s: %s", l.GetConnString(), err)
			return
		}
	}
}

func (l *Listener) GetName() string {
	if len(l.config.Name) != 0 {
		return l.config.Name
	}
	return l.GetConnString()
}

func (l *Listener) GetConnString() string {
	return l.netListener.Addr().String()
}

func (l *Listener) GetNumActiveConnections() uint32 {
	if l.connMgr != nil {
		return l.connMgr.GetNumActiveConnections()
	}
	return 0
}
