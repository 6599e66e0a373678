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

// Package channel ties connections, the endpoint table and the peer table
// together into a node that can both serve and issue calls.
package channel

import (
	"context"
	goerrors "errors"
	"net"
	"sync"
	"time"

	"github.com/glycerine/idem"
	"go.opentelemetry.io/otel/metric"

	"tchannel/pkg/errors"
	"tchannel/pkg/io"
	"tchannel/pkg/logging"
	"tchannel/pkg/logging/otel"
	"tchannel/pkg/net/netutil"
	"tchannel/pkg/stats"
	"tchannel/pkg/util"
	"tchannel/pkg/version"
)

type (
	// SendOptions address a call. Host is the peer's host:port.
	SendOptions struct {
		Host string
		// Timeout overrides IO.ReqTimeoutDefault when non-zero.
		Timeout time.Duration
	}

	// Observer receives connection lifecycle events. Methods are called with
	// no channel lock held and must not block.
	Observer interface {
		Identified(name string)
		ConnectionReset(c *io.Connection)
		ConnectionClosed(c *io.Connection, err error)
	}

	// ObserverFuncs adapts optional functions to Observer.
	ObserverFuncs struct {
		OnIdentified       func(name string)
		OnConnectionReset  func(c *io.Connection)
		OnConnectionClosed func(c *io.Connection, err error)
	}

	Option func(ch *Channel)

	Channel struct {
		config    Config
		name      string
		clock     util.Clock
		rand      util.RandFunc
		dial      io.DialFunc
		ln        net.Listener
		endpoints *io.EndpointTable
		peers     *peerTable
		listener  *io.Listener
		callStats *stats.CallStats
		startTime time.Time

		chListening chan struct{}
		halt        *idem.Halter
		quitOnce    sync.Once
		dialMtx     sync.Mutex

		mtx       sync.Mutex
		observers []Observer
		gaugeReg  metric.Registration
	}
)

func (o ObserverFuncs) Identified(name string) {
	if o.OnIdentified != nil {
		o.OnIdentified(name)
	}
}

func (o ObserverFuncs) ConnectionReset(c *io.Connection) {
	if o.OnConnectionReset != nil {
		o.OnConnectionReset(c)
	}
}

func (o ObserverFuncs) ConnectionClosed(c *io.Connection, err error) {
	if o.OnConnectionClosed != nil {
		o.OnConnectionClosed(c, err)
	}
}

func WithClock(clock util.Clock) Option {
	return func(ch *Channel) { ch.clock = clock }
}

func WithRand(rnd util.RandFunc) Option {
	return func(ch *Channel) { ch.rand = rnd }
}

func WithDialer(dial io.DialFunc) Option {
	return func(ch *Channel) { ch.dial = dial }
}

// WithListener serves ln instead of binding Host:Port. The channel name is
// still taken from the config.
func WithListener(ln net.Listener) Option {
	return func(ch *Channel) { ch.ln = ln }
}

func WithoutListening() Option {
	return func(ch *Channel) {
		listening := false
		ch.config.Listening = &listening
	}
}

func WithObserver(o Observer) Option {
	return func(ch *Channel) { ch.observers = append(ch.observers, o) }
}

// New creates a channel and, unless listening is disabled, starts accepting
// connections on Host:Port.
func New(cfg Config, opts ...Option) (*Channel, error) {
	ch := &Channel{
		config:      cfg,
		clock:       util.SystemClock{},
		rand:        util.DefaultRand,
		endpoints:   io.NewEndpointTable(),
		peers:       newPeerTable(),
		callStats:   stats.NewCallStats(),
		chListening: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ch)
	}
	ch.config.SetDefaultIfNotDefined()
	ch.name = ch.config.Name()
	ch.startTime = ch.clock.Now()
	ch.halt = idem.NewHalterNamed("Channel(" + ch.name + ")")

	if ch.config.IsListening() {
		if err := ch.listen(); err != nil {
			return nil, err
		}
	}

	reg, err := otel.InitSystemMetrics(ch.gauges)
	if err != nil {
		logging.Warningf("register gauges: %s", err)
	} else {
		ch.gaugeReg = reg
	}
	return ch, nil
}

func (ch *Channel) listen() (err error) {
	lcfg := io.ListenerConfig{
		Name:           ch.name,
		Network:        "tcp",
		Addr:           ch.name,
		MaxConnections: ch.config.MaxConnections,
	}
	if ch.ln != nil {
		ch.listener = io.NewListenerWith(lcfg, ch, ch.ln)
	} else if ch.listener, err = io.NewListener(lcfg, ch); err != nil {
		logging.Errorf("%s server socket error: %s", ch.name, err)
		return
	}
	logging.Infof("%s listening on %s", ch.name, ch.listener.GetConnString())
	close(ch.chListening)
	go ch.listener.Serve()
	return
}

func (ch *Channel) Name() string {
	return ch.name
}

func (ch *Channel) Config() *io.Config {
	return &ch.config.IO
}

func (ch *Channel) Clock() util.Clock {
	return ch.clock
}

func (ch *Channel) Rand() util.RandFunc {
	return ch.rand
}

func (ch *Channel) Lookup(op string) (io.Handler, bool) {
	return ch.endpoints.Lookup(op)
}

// Listening is closed once the channel accepts connections. It is never
// closed for a channel created without listening.
func (ch *Channel) Listening() <-chan struct{} {
	return ch.chListening
}

// Addr returns the bound listen address, or the channel name when not
// listening.
func (ch *Channel) Addr() string {
	if ch.listener != nil {
		return ch.listener.GetConnString()
	}
	return ch.name
}

func (ch *Channel) IsDestroyed() bool {
	return ch.halt.ReqStop.IsClosed()
}

func (ch *Channel) Subscribe(o Observer) {
	ch.mtx.Lock()
	ch.observers = append(ch.observers, o)
	ch.mtx.Unlock()
}

func (ch *Channel) getObservers() []Observer {
	ch.mtx.Lock()
	defer ch.mtx.Unlock()
	return append([]Observer(nil), ch.observers...)
}

// Register replaces any handler previously registered for op.
func (ch *Channel) Register(op string, h io.Handler) error {
	return ch.endpoints.Register(op, h)
}

// Send issues op to opts.Host. Misuse is reported through the returned error
// and cb is not called. Otherwise cb is called exactly once.
func (ch *Channel) Send(opts SendOptions, op string, arg2, arg3 interface{}, cb io.Callback) error {
	if ch.IsDestroyed() {
		return errors.ErrDestroyed
	}
	if len(opts.Host) == 0 {
		return errors.ErrNoHost
	}
	if netutil.IsSameEndpoint(opts.Host, ch.name) {
		return errors.ErrSelfConnection
	}
	conn, err := ch.getOutConnection(opts.Host)
	if err != nil {
		return err
	}

	start := ch.clock.Now()
	conn.Send(io.SendOptions{Timeout: opts.Timeout}, op, arg2, arg3, func(res1, res2 []byte, err error) {
		ch.recordCall(op, start, err)
		if cb != nil {
			cb(res1, res2, err)
		}
	})
	return nil
}

// Call is the blocking form of Send. When ctx is done first, ctx.Err() is
// returned and the late result is discarded.
func (ch *Channel) Call(ctx context.Context, opts SendOptions, op string, arg2, arg3 interface{}) (res1 []byte, res2 []byte, err error) {
	type result struct {
		res1, res2 []byte
		err        error
	}
	chResult := make(chan result, 1)
	if err = ch.Send(opts, op, arg2, arg3, func(res1, res2 []byte, err error) {
		chResult <- result{res1, res2, err}
	}); err != nil {
		return
	}
	select {
	case r := <-chResult:
		return r.res1, r.res2, r.err
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
}

func (ch *Channel) recordCall(op string, start time.Time, err error) {
	latency := ch.clock.Now().Sub(start)
	timedOut := goerrors.Is(err, errors.ErrTimeout)
	status := otel.StatusSuccess
	if timedOut {
		status = otel.StatusTimeout
	} else if err != nil {
		status = otel.StatusError
	}
	ch.callStats.Put(op, latency, err, timedOut)
	otel.RecordCallLatency(op, status, latency.Milliseconds())
	otel.RecordCount(otel.Call, []otel.Tags{{TagName: otel.Operation, TagValue: op}, {TagName: otel.Status, TagValue: status}})
}

func (ch *Channel) getOutConnection(dest string) (*io.Connection, error) {
	if conn := ch.peers.get(dest); conn != nil {
		return conn, nil
	}
	ch.dialMtx.Lock()
	defer ch.dialMtx.Unlock()
	if conn := ch.peers.get(dest); conn != nil {
		return conn, nil
	}
	return ch.AddPeer(dest, nil)
}

func validDestination(dest string) bool {
	host, port, err := net.SplitHostPort(dest)
	return err == nil && len(host) != 0 && len(port) != 0
}

// AddPeer records conn under name. A nil conn dials a new outbound
// connection to name.
func (ch *Channel) AddPeer(name string, conn *io.Connection) (*io.Connection, error) {
	if netutil.IsSameEndpoint(name, ch.name) {
		return nil, errors.ErrSelfConnection
	}
	if conn == nil {
		if !validDestination(name) {
			return nil, errors.ErrInvalidDestination
		}
		var err error
		if conn, err = io.NewOutboundConnection(ch, name, ch.dial); err != nil {
			return nil, err
		}
	}

	existing := ch.peers.add(name, conn)
	if existing != nil && existing != conn {
		logging.Warningf("allocated a connection twice %s", logging.NewKVBufferForLog().
			AddRemoteName(name).AddDirection(conn.Direction().String()).String())
	}
	if logging.LOG_DEBUG {
		logging.Debugf("alloc peer %s", logging.NewKVBufferForLog().
			Add([]byte("source"), ch.name).AddRemoteName(name).
			AddDirection(conn.Direction().String()).String())
	}
	if conn.State() == io.StateClosing {
		ch.peers.remove(name, conn)
	}
	return conn, nil
}

func (ch *Channel) GetPeer(name string) *io.Connection {
	return ch.peers.get(name)
}

func (ch *Channel) RemovePeer(name string, conn *io.Connection) {
	ch.peers.remove(name, conn)
}

// Peers returns every peer connection, outbound ones first within a name.
func (ch *Channel) Peers() []*io.Connection {
	return ch.peers.all()
}

func (ch *Channel) PeerInfos() []stats.PeerInfo {
	conns := ch.peers.all()
	infos := make([]stats.PeerInfo, 0, len(conns))
	for _, c := range conns {
		infos = append(infos, stats.PeerInfo{
			Name:       c.RemoteName(),
			RemoteAddr: c.RemoteAddr(),
			Direction:  c.Direction().String(),
			State:      c.State().String(),
			InPending:  c.InPending(),
			OutPending: c.OutPending(),
		})
	}
	return infos
}

func (ch *Channel) OnIdentified(c *io.Connection) {
	name := c.RemoteName()
	if c.Direction() == io.Inbound {
		if ch.IsDestroyed() {
			c.ResetAll(errors.ErrShutdown)
			return
		}
		if _, err := ch.AddPeer(name, c); err != nil {
			logging.Errorf("refusing peer %s: %s", name, err)
			c.ResetAll(err)
			return
		}
	}
	if logging.LOG_DEBUG {
		logging.Debugf("identified %s", logging.NewKVBufferForLog().
			AddConnId(c.ID()).AddRemoteName(name).AddRemoteAddr(c.RemoteAddr()).String())
	}
	for _, o := range ch.getObservers() {
		o.Identified(name)
	}
}

func (ch *Channel) OnReset(c *io.Connection) {
	ch.peers.removeConn(c)
	for _, o := range ch.getObservers() {
		o.ConnectionReset(c)
	}
}

func (ch *Channel) OnClosed(c *io.Connection, err error) {
	for _, o := range ch.getObservers() {
		o.ConnectionClosed(c, err)
	}
}

func (ch *Channel) Stats() stats.Snapshot {
	return ch.callStats.Snapshot()
}

// StatsPage returns an html page describing the channel.
func (ch *Channel) StatsPage() *stats.HtmlStats {
	page := &stats.HtmlStats{
		Title:       "TChannel",
		Version:     version.OnelineVersionString(),
		ChannelName: ch.name,
	}
	page.AddSection(&stats.ServerInfo{Name: ch.name, StartTime: ch.startTime})
	page.AddSection(&stats.PeersSection{List: ch.PeerInfos})
	page.AddSection(&stats.CallStatsSection{Stats: ch.callStats})
	return page
}

func (ch *Channel) gauges() []otel.GaugeValue {
	tags := []otel.Tags{{TagName: otel.Endpoint, TagValue: ch.name}}
	numPeers, _ := ch.peers.count()
	var inPending, outPending int
	for _, c := range ch.peers.all() {
		inPending += c.InPending()
		outPending += c.OutPending()
	}
	var numConns int64
	if ch.listener != nil {
		numConns = int64(ch.listener.GetNumActiveConnections())
	}
	return []otel.GaugeValue{
		{Name: "peers", Value: int64(numPeers), Tags: tags},
		{Name: "conns", Value: numConns, Tags: tags},
		{Name: "inPending", Value: int64(inPending), Tags: tags},
		{Name: "outPending", Value: int64(outPending), Tags: tags},
	}
}

// Quit destroys the channel: further sends fail with ErrDestroyed, every
// connection is reset with ErrShutdown and the listener is closed. It waits
// for the connections to finish tearing down or for ctx to be done.
func (ch *Channel) Quit(ctx context.Context) error {
	ch.quitOnce.Do(func() {
		ch.halt.ReqStop.Close()
		if logging.LOG_DEBUG {
			logging.Debugf("quitting tchannel %s", ch.name)
		}
		go ch.shutdown()
	})
	select {
	case <-ch.halt.Done.Chan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (ch *Channel) shutdown() {
	conns := ch.peers.all()
	for _, c := range conns {
		if logging.LOG_DEBUG {
			logging.Debugf("destroy channel for %s", logging.NewKVBufferForLog().
				AddDirection(c.Direction().String()).AddRemoteAddr(c.RemoteAddr()).
				AddRemoteName(c.RemoteName()).String())
		}
		c.ResetAll(errors.ErrShutdown)
	}
	if ch.listener != nil {
		ch.listener.Shutdown(errors.ErrShutdown)
	}
	ch.mtx.Lock()
	reg := ch.gaugeReg
	ch.gaugeReg = nil
	ch.mtx.Unlock()
	if reg != nil {
		if err := reg.Unregister(); err != nil {
			logging.Warningf("unregister gauges: %s", err)
		}
	}

	for _, c := range conns {
		<-c.Done()
	}
	if ch.listener != nil {
		ch.listener.WaitForShutdownToComplete(context.Background())
	}
	ch.halt.Done.Close()
}
