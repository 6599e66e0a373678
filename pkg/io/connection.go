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
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	uuid "github.com/satori/go.uuid"

	"tchannel/pkg/errors"
	"tchannel/pkg/io/ioutil"
	"tchannel/pkg/logging"
	"tchannel/pkg/logging/otel"
	"tchannel/pkg/proto"
	"tchannel/pkg/util"
)

type (
	Direction uint8
	State     uint8
)

const (
	Inbound Direction = iota
	Outbound
)

const (
	StateAwaitIdentify State = iota
	StateOpen
	StateClosing
)

func (d Direction) String() string {
	if d == Outbound {
		return "out"
	}
	return "in"
}

func (s State) String() string {
	switch s {
	case StateAwaitIdentify:
		return "awaitIdentify"
	case StateOpen:
		return "open"
	}
	return "closing"
}

// Connection owns one socket to a peer. All table and state mutations happen
// under mtx; callbacks, handlers and host notifications run with mtx released.
type Connection struct {
	id         string
	host       Host
	config     Config
	clock      util.Clock
	rand       util.RandFunc
	direction  Direction
	remoteAddr string
	local      map[string]Handler

	mtx             sync.Mutex
	sock            net.Conn
	state           State
	remoteName      string
	outOps          map[uint32]*outOp
	inOps           map[uint32]*inOp
	outPending      int
	inPending       int
	lastId          uint32
	timer           util.Timer
	lastTimeoutTime time.Time
	closeErr        error

	writeCh chan []byte
	chStop  chan struct{}
	chDone  chan struct{}
}

func newConnection(host Host, dir Direction, remoteAddr string) *Connection {
	c := &Connection{
		id:         uuid.NewV4().String(),
		host:       host,
		config:     *host.Config(),
		clock:      host.Clock(),
		rand:       host.Rand(),
		direction:  dir,
		remoteAddr: remoteAddr,
		outOps:     make(map[uint32]*outOp),
		inOps:      make(map[uint32]*inOp),
		chStop:     make(chan struct{}),
		chDone:     make(chan struct{}),
	}
	c.config.SetDefaultIfNotDefined()
	if c.clock == nil {
		c.clock = util.SystemClock{}
	}
	if c.rand == nil {
		c.rand = util.DefaultRand
	}
	c.writeCh = make(chan []byte, c.config.WriteQueueSize)
	c.local = map[string]Handler{
		IdentifyName: func(call *InboundCall, done Completion) {
			done(Ok(host.Name(), nil))
		},
	}
	return c
}

// NewInboundConnection serves an accepted socket. The peer must identify
// itself with its first request.
func NewInboundConnection(host Host, sock net.Conn) *Connection {
	c := newConnection(host, Inbound, sock.RemoteAddr().String())
	c.mtx.Lock()
	c.state = StateAwaitIdentify
	c.sock = sock
	c.startTimeoutTimer()
	c.mtx.Unlock()
	if logging.LOG_DEBUG {
		logging.Debug("accepted ", c.logCtx())
	}
	c.startIO(sock)
	return c
}

// NewOutboundConnection returns at once and dials addr in the background.
// Requests sent before the dial completes are queued, the identify request
// first.
func NewOutboundConnection(host Host, addr string, dial DialFunc) (*Connection, error) {
	if addr == host.Name() {
		return nil, errors.ErrSelfConnection
	}
	c := newConnection(host, Outbound, addr)
	c.mtx.Lock()
	c.state = StateOpen
	c.startTimeoutTimer()
	c.mtx.Unlock()
	c.sendIdentify()
	go c.connect(dial)
	return c, nil
}

func (c *Connection) connect(dial DialFunc) {
	sock, err := Connect(c.remoteAddr, c.config.ConnectTimeout.Duration, dial)
	if err != nil {
		c.ResetAll(err)
		return
	}
	c.mtx.Lock()
	if c.state == StateClosing {
		c.mtx.Unlock()
		sock.Close()
		return
	}
	c.sock = sock
	c.mtx.Unlock()
	c.startIO(sock)
}

func (c *Connection) sendIdentify() {
	c.Send(SendOptions{}, IdentifyName, c.host.Name(), nil, func(res1, res2 []byte, err error) {
		if err != nil {
			logging.Errorf("identification error %s", logging.NewKVBufferForLog().
				AddRemoteAddr(c.remoteAddr).AddError(err).String())
			return
		}
		c.mtx.Lock()
		c.remoteName = string(res1)
		c.mtx.Unlock()
		c.host.OnIdentified(c)
	})
}

func (c *Connection) ID() string {
	return c.id
}

func (c *Connection) Direction() Direction {
	return c.direction
}

func (c *Connection) RemoteAddr() string {
	return c.remoteAddr
}

func (c *Connection) RemoteName() string {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.remoteName
}

func (c *Connection) State() State {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.state
}

func (c *Connection) InPending() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.inPending
}

func (c *Connection) OutPending() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.outPending
}

// Done is closed once the connection has been reset.
func (c *Connection) Done() <-chan struct{} {
	return c.chDone
}

// Err returns the error the connection was reset with, nil while open.
func (c *Connection) Err() error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.closeErr
}

func (c *Connection) Close() {
	c.ResetAll(errors.ErrShutdown)
}

func (c *Connection) isClosing() bool {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.state == StateClosing
}

func (c *Connection) logCtx() string {
	c.mtx.Lock()
	name := c.remoteName
	c.mtx.Unlock()
	return logging.NewKVBufferForLog().
		AddConnId(c.id).
		AddDirection(c.direction.String()).
		AddRemoteAddr(c.remoteAddr).
		AddRemoteName(name).String()
}

// Send issues a request. cb is called exactly once: with the response
// arguments, with the error the peer answered with, or with a local error
// (closed connection, full write queue, timeout, reset).
func (c *Connection) Send(opts SendOptions, arg1, arg2, arg3 interface{}, cb Callback) {
	f, err := proto.Build(arg1, arg2, arg3)
	if err != nil {
		cb(nil, nil, err)
		return
	}
	f.Type = proto.TypeReqComplete

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.config.ReqTimeoutDefault.Duration
	}

	c.mtx.Lock()
	if c.state == StateClosing {
		c.mtx.Unlock()
		cb(nil, nil, errors.ErrConnClosed)
		return
	}
	f.ID = c.nextId()
	op := &outOp{
		id:      f.ID,
		op:      string(f.Arg1),
		start:   c.clock.Now(),
		timeout: timeout,
		cb:      cb,
	}
	c.outOps[op.id] = op
	c.outPending++
	if !c.enqueueLocked(f) {
		delete(c.outOps, op.id)
		c.outPending--
		c.mtx.Unlock()
		logging.Warningf("write queue full %s", c.logCtx())
		cb(nil, nil, errors.ErrBusy)
		return
	}
	c.mtx.Unlock()
	if logging.LOG_VERBOSE {
		logging.Verbosef("sent req id=%d op=%s", op.id, op.op)
	}
}

// caller holds mtx. Zero and ids still waiting for a response are skipped.
func (c *Connection) nextId() uint32 {
	for {
		c.lastId++
		if c.lastId == 0 {
			continue
		}
		if _, inUse := c.outOps[c.lastId]; inUse {
			continue
		}
		return c.lastId
	}
}

// caller holds mtx
func (c *Connection) enqueueLocked(f *proto.Frame) bool {
	select {
	case c.writeCh <- f.Serialize():
		otel.RecordCount(otel.FramesOut, []otel.Tags{{TagName: otel.FrameType, TagValue: f.Type.String()}})
		return true
	default:
		return false
	}
}

func (c *Connection) onParseError(err error) {
	logging.Errorf("%s %s", c.logCtx(), err)
	c.ResetAll(errors.ErrParse)
}

func (c *Connection) onFrame(f *proto.Frame) {
	otel.RecordCount(otel.FramesIn, []otel.Tags{{TagName: otel.FrameType, TagValue: f.Type.String()}})
	if logging.LOG_VERBOSE {
		logging.Verbosef("recv %s", f)
	}

	if !f.VerifyChecksum() {
		otel.RecordCount(otel.ChecksumFail, nil)
		logging.Warningf("bad checksum %s", logging.NewKVBufferForLog().
			AddConnId(c.id).AddFrameId(f.ID).AddFrameType(f.Type.String()).
			Add([]byte("expected"), fmt.Sprintf("%#08x", f.Checksum)).
			Add([]byte("actual"), fmt.Sprintf("%#08x", f.ComputeChecksum())).String())
		if c.config.ChecksumPolicy != ChecksumPolicyWarn {
			c.ResetAll(errors.ErrChecksum)
			return
		}
	}

	c.mtx.Lock()
	if c.state == StateClosing {
		c.mtx.Unlock()
		return
	}
	c.lastTimeoutTime = time.Time{}

	if c.state == StateAwaitIdentify {
		if f.Type != proto.TypeReqComplete || string(f.Arg1) != IdentifyName {
			c.mtx.Unlock()
			otel.RecordCount(otel.HandshakeFail, nil)
			logging.Errorf("first req on socket must be identify %s", logging.NewKVBufferForLog().
				AddConnId(c.id).AddRemoteAddr(c.remoteAddr).
				AddFrameType(f.Type.String()).AddOperation(f.Arg1).String())
			c.ResetAll(errors.ErrHandshake)
			return
		}
		c.remoteName = string(f.Arg2)
		c.state = StateOpen
		c.mtx.Unlock()
		c.host.OnIdentified(c)
		c.handleRequest(f)
		return
	}

	switch f.Type {
	case proto.TypeReqComplete:
		c.mtx.Unlock()
		c.handleRequest(f)
	case proto.TypeResComplete:
		op := c.takeOutOpLocked(f.ID)
		c.mtx.Unlock()
		if op != nil {
			op.complete(f.Arg2, f.Arg3, nil)
		}
	case proto.TypeResError:
		op := c.takeOutOpLocked(f.ID)
		c.mtx.Unlock()
		if op != nil {
			op.complete(nil, nil, errors.NewRemoteError(string(f.Arg1)))
		}
	default:
		c.mtx.Unlock()
		logging.Errorf("unknown frame type %s", logging.NewKVBufferForLog().
			AddConnId(c.id).AddFrameType(f.Type.String()).AddFrameId(f.ID).String())
	}
}

// caller holds mtx
func (c *Connection) takeOutOpLocked(id uint32) *outOp {
	op, ok := c.outOps[id]
	if !ok {
		if logging.LOG_DEBUG {
			logging.Debugf("response for unknown id %d %s", id, c.remoteAddr)
		}
		return nil
	}
	delete(c.outOps, id)
	c.outPending--
	return op
}

func (c *Connection) handleRequest(f *proto.Frame) {
	name := string(f.Arg1)
	h, found := c.local[name]
	if !found {
		h, found = c.host.Lookup(name)
	}

	c.mtx.Lock()
	if c.state == StateClosing {
		c.mtx.Unlock()
		return
	}
	if !found {
		res := proto.NewFrame(proto.TypeResError, f.ID,
			[]byte(fmt.Sprintf("%s: %s", errors.ErrNoSuchOperation.What(), name)), nil, nil)
		queued := c.enqueueLocked(res)
		c.mtx.Unlock()
		if !queued {
			c.ResetAll(errors.ErrBusy)
		}
		return
	}
	if _, dup := c.inOps[f.ID]; dup {
		logging.Warningf("duplicate request id %d %s", f.ID, c.remoteAddr)
	} else {
		c.inPending++
	}
	op := &inOp{id: f.ID, arg1: f.Arg1}
	c.inOps[f.ID] = op
	call := &InboundCall{
		Operation:  name,
		Arg2:       f.Arg2,
		Arg3:       f.Arg3,
		RemoteName: c.remoteName,
		RemoteAddr: c.remoteAddr,
	}
	c.mtx.Unlock()

	h(call, func(r Result) error {
		return c.respond(op, r)
	})
}

func (c *Connection) respond(op *inOp, r Result) error {
	c.mtx.Lock()
	if op.responded {
		c.mtx.Unlock()
		logging.Errorf("%s %s", errors.ErrAlreadyResponded.What(), logging.NewKVBufferForLog().
			AddConnId(c.id).AddFrameId(op.id).AddOperation(op.arg1).String())
		return errors.ErrAlreadyResponded
	}
	op.responded = true
	if c.state == StateClosing || c.inOps[op.id] != op {
		c.mtx.Unlock()
		return nil
	}
	delete(c.inOps, op.id)
	c.inPending--

	var res *proto.Frame
	if r.err != nil {
		res = proto.NewFrame(proto.TypeResError, op.id, []byte(errors.Message(r.err)), nil, nil)
	} else if built, err := proto.Build(op.arg1, r.res1, r.res2); err == nil {
		res = built
		res.Type = proto.TypeResComplete
		res.ID = op.id
	} else {
		res = proto.NewFrame(proto.TypeResError, op.id, []byte(err.Error()), nil, nil)
	}
	queued := c.enqueueLocked(res)
	c.mtx.Unlock()
	if !queued {
		logging.Warningf("write queue full, dropping response %s", c.logCtx())
		c.ResetAll(errors.ErrBusy)
	}
	return nil
}

// caller holds mtx
func (c *Connection) startTimeoutTimer() {
	if c.state == StateClosing {
		return
	}
	c.timer = c.clock.AfterFunc(c.config.timeoutCheckDelay(c.rand), c.onTimeoutCheck)
}

func (c *Connection) onTimeoutCheck() {
	c.mtx.Lock()
	if c.state == StateClosing {
		c.mtx.Unlock()
		return
	}
	if !c.lastTimeoutTime.IsZero() {
		if c.outPending > 0 {
			c.mtx.Unlock()
			logging.Warningf("%s %s", errors.ErrTimeoutsEscalated.What(), c.logCtx())
			c.ResetAll(errors.ErrTimeoutsEscalated)
			return
		}
		c.lastTimeoutTime = time.Time{}
	}

	now := c.clock.Now()
	var expired []*outOp
	for id, op := range c.outOps {
		if op.timedOut {
			logging.Warningf("lingering timed-out outgoing operation id=%d op=%s", id, op.op)
			delete(c.outOps, id)
			c.outPending--
			continue
		}
		if op.expired(now) {
			op.timedOut = true
			delete(c.outOps, id)
			c.outPending--
			expired = append(expired, op)
		}
	}
	if len(expired) != 0 {
		c.lastTimeoutTime = now
	}
	c.startTimeoutTimer()
	c.mtx.Unlock()

	sort.Slice(expired, func(i, j int) bool { return expired[i].id < expired[j].id })
	for _, op := range expired {
		otel.RecordCount(otel.Timeout, []otel.Tags{{TagName: otel.Operation, TagValue: op.op}})
		if logging.LOG_DEBUG {
			logging.Debugf("timed out id=%d op=%s after %s", op.id, op.op, now.Sub(op.start))
		}
		op.complete(nil, nil, errors.ErrTimeout)
	}
}

// ResetAll tears the connection down: pending inbound operations are dropped,
// every pending outbound operation fails with err, and the socket is closed.
// Only the first call has an effect.
func (c *Connection) ResetAll(err error) {
	c.mtx.Lock()
	if c.state == StateClosing {
		c.mtx.Unlock()
		return
	}
	c.state = StateClosing
	c.closeErr = err
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	c.inOps = make(map[uint32]*inOp)
	c.inPending = 0

	ops := make([]*outOp, 0, len(c.outOps))
	for _, op := range c.outOps {
		ops = append(ops, op)
	}
	c.outOps = make(map[uint32]*outOp)
	c.outPending = 0
	sock := c.sock
	close(c.chStop)
	c.mtx.Unlock()

	if sock != nil {
		sock.Close()
	}
	otel.RecordCount(otel.Reset, []otel.Tags{{TagName: otel.Direction, TagValue: c.direction.String()}, {TagName: otel.Reason, TagValue: errors.Message(err)}})
	if logging.LOG_DEBUG {
		logging.Debugf("reset %s", logging.NewKVBufferForLog().
			AddConnId(c.id).AddRemoteAddr(c.remoteAddr).AddError(err).AddPending(0, len(ops)).String())
	}

	sort.Slice(ops, func(i, j int) bool { return ops[i].id < ops[j].id })
	for _, op := range ops {
		op.complete(nil, nil, err)
	}
	c.host.OnReset(c)
	c.host.OnClosed(c, err)
	close(c.chDone)
}

func (c *Connection) startIO(sock net.Conn) {
	go c.doRead(sock)
	go c.doWrite(sock)
}

func (c *Connection) onSocketError(err error) {
	if c.isClosing() {
		return
	}
	ioutil.LogError(c.logCtx(), err)
	if ioutil.IsPeerGone(err) {
		err = errors.ErrConnClosed
	}
	c.ResetAll(err)
}
