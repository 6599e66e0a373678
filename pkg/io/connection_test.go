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
	goerrors "errors"
	"math"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tchannel/pkg/errors"
	"tchannel/pkg/proto"
	"tchannel/pkg/util"
)

const waitFor = 2 * time.Second

type testHost struct {
	name       string
	cfg        Config
	clock      *util.ManualClock
	endpoints  *EndpointTable
	identified chan string
	resets     chan *Connection
	closed     chan error
}

func newTestHost(name string) *testHost {
	h := &testHost{
		name:       name,
		clock:      util.NewManualClock(time.Unix(1000, 0)),
		endpoints:  NewEndpointTable(),
		identified: make(chan string, 8),
		resets:     make(chan *Connection, 8),
		closed:     make(chan error, 8),
	}
	h.cfg.SetDefaultIfNotDefined()
	return h
}

func (h *testHost) Name() string                     { return h.name }
func (h *testHost) Config() *Config                  { return &h.cfg }
func (h *testHost) Clock() util.Clock                { return h.clock }
func (h *testHost) Rand() util.RandFunc              { return util.FixedRand(0.5) }
func (h *testHost) Lookup(op string) (Handler, bool) { return h.endpoints.Lookup(op) }
func (h *testHost) OnIdentified(c *Connection)       { h.identified <- c.RemoteName() }
func (h *testHost) OnReset(c *Connection)            { h.resets <- c }
func (h *testHost) OnClosed(c *Connection, err error) {
	h.closed <- err
}

type result struct {
	res1 []byte
	res2 []byte
	err  error
}

func capture() (Callback, chan result) {
	ch := make(chan result, 4)
	return func(res1, res2 []byte, err error) {
		ch <- result{res1, res2, err}
	}, ch
}

func waitResult(t *testing.T, ch chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(waitFor):
		t.Fatal("no callback")
	}
	return result{}
}

func waitString(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(waitFor):
		t.Fatal("no event")
	}
	return ""
}

func waitErr(t *testing.T, ch chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(waitFor):
		t.Fatal("no close event")
	}
	return nil
}

func pipeDialer(sock net.Conn) DialFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return sock, nil
	}
}

// connect wires an outbound connection of a to an inbound connection of b
// and waits for both sides to identify.
func connect(t *testing.T, a, b *testHost) (out *Connection, in *Connection) {
	t.Helper()
	cliSide, srvSide := net.Pipe()
	in = NewInboundConnection(b, srvSide)
	out, err := NewOutboundConnection(a, "pipe:"+b.name, pipeDialer(cliSide))
	require.NoError(t, err)
	require.Equal(t, a.name, waitString(t, b.identified))
	require.Equal(t, b.name, waitString(t, a.identified))
	t.Cleanup(func() {
		out.Close()
		in.Close()
	})
	return out, in
}

// rawPeer speaks the frame protocol directly, without a Connection.
type rawPeer struct {
	sock   net.Conn
	frames chan *proto.Frame
}

func newRawPeer(sock net.Conn) *rawPeer {
	p := &rawPeer{sock: sock, frames: make(chan *proto.Frame, 16)}
	go func() {
		parser := proto.NewParser(func(f *proto.Frame) { p.frames <- f }, nil)
		buf := make([]byte, 4096)
		for {
			n, err := sock.Read(buf)
			if n > 0 {
				parser.Feed(buf[:n])
			}
			if err != nil {
				close(p.frames)
				return
			}
		}
	}()
	return p
}

func (p *rawPeer) send(t *testing.T, typ proto.Type, id uint32, arg1, arg2, arg3 string) {
	t.Helper()
	f := proto.NewFrame(typ, id, []byte(arg1), []byte(arg2), []byte(arg3))
	_, err := p.sock.Write(f.Serialize())
	require.NoError(t, err)
}

func (p *rawPeer) next(t *testing.T) *proto.Frame {
	t.Helper()
	select {
	case f, ok := <-p.frames:
		require.True(t, ok, "peer socket closed")
		return f
	case <-time.After(waitFor):
		t.Fatal("no frame")
	}
	return nil
}

func echo(call *InboundCall, done Completion) {
	done(Ok(call.Arg2, call.Arg3))
}

func TestEcho(t *testing.T) {
	a, b := newTestHost("a"), newTestHost("b")
	require.NoError(t, b.endpoints.Register("echo", echo))
	out, in := connect(t, a, b)

	assert.Equal(t, "b", out.RemoteName())
	assert.Equal(t, "a", in.RemoteName())
	assert.Equal(t, StateOpen, in.State())

	cb, ch := capture()
	out.Send(SendOptions{}, "echo", "hello", []byte("world"), cb)
	r := waitResult(t, ch)
	require.NoError(t, r.err)
	assert.Equal(t, "hello", string(r.res1))
	assert.Equal(t, "world", string(r.res2))
	assert.Equal(t, 0, out.OutPending())
	assert.Equal(t, 0, in.InPending())
}

func TestHandlerError(t *testing.T) {
	a, b := newTestHost("a"), newTestHost("b")
	require.NoError(t, b.endpoints.Register("fail", func(call *InboundCall, done Completion) {
		done(Fail(goerrors.New("boom")))
	}))
	out, _ := connect(t, a, b)

	cb, ch := capture()
	out.Send(SendOptions{}, "fail", nil, nil, cb)
	r := waitResult(t, ch)
	var remote *errors.RemoteError
	require.True(t, goerrors.As(r.err, &remote), "got %v", r.err)
	assert.Equal(t, "boom", remote.Message)
	assert.Nil(t, r.res1)
}

func TestNoSuchOperation(t *testing.T) {
	a, b := newTestHost("a"), newTestHost("b")
	out, _ := connect(t, a, b)

	cb, ch := capture()
	out.Send(SendOptions{}, "nope", nil, nil, cb)
	r := waitResult(t, ch)
	require.Error(t, r.err)
	assert.Equal(t, "no such operation: nope", r.err.Error())
}

func TestRequestTimeout(t *testing.T) {
	a, b := newTestHost("a"), newTestHost("b")
	received := make(chan struct{}, 1)
	require.NoError(t, b.endpoints.Register("slow", func(call *InboundCall, done Completion) {
		received <- struct{}{}
	}))
	out, in := connect(t, a, b)

	cb, ch := capture()
	out.Send(SendOptions{Timeout: 50 * time.Millisecond}, "slow", nil, nil, cb)
	select {
	case <-received:
	case <-time.After(waitFor):
		t.Fatal("request not delivered")
	}
	assert.Equal(t, 1, in.InPending())

	a.clock.Advance(time.Second)
	r := waitResult(t, ch)
	assert.Equal(t, errors.ErrTimeout, r.err)
	assert.Equal(t, 0, out.OutPending())

	// no outbound work pending: the watermark is cleared instead of escalating
	a.clock.Advance(time.Second)
	assert.Equal(t, StateOpen, out.State())
}

func TestTimeoutsEscalate(t *testing.T) {
	a, b := newTestHost("a"), newTestHost("b")
	require.NoError(t, b.endpoints.Register("slow", func(call *InboundCall, done Completion) {}))
	out, _ := connect(t, a, b)

	cbShort, chShort := capture()
	cbLong, chLong := capture()
	out.Send(SendOptions{Timeout: 50 * time.Millisecond}, "slow", nil, nil, cbShort)
	out.Send(SendOptions{Timeout: time.Minute}, "slow", nil, nil, cbLong)

	a.clock.Advance(time.Second)
	assert.Equal(t, errors.ErrTimeout, waitResult(t, chShort).err)
	assert.Equal(t, 1, out.OutPending())

	a.clock.Advance(time.Second)
	assert.Equal(t, errors.ErrTimeoutsEscalated, waitResult(t, chLong).err)
	assert.Equal(t, errors.ErrTimeoutsEscalated, waitErr(t, a.closed))
	assert.Equal(t, StateClosing, out.State())
}

func TestBadFirstFrame(t *testing.T) {
	b := newTestHost("b")
	require.NoError(t, b.endpoints.Register("echo", echo))
	cliSide, srvSide := net.Pipe()
	in := NewInboundConnection(b, srvSide)
	peer := newRawPeer(cliSide)

	peer.send(t, proto.TypeReqComplete, 1, "echo", "x", "y")
	assert.Equal(t, errors.ErrHandshake, waitErr(t, b.closed))
	select {
	case <-in.Done():
	case <-time.After(waitFor):
		t.Fatal("connection not reset")
	}
	_, open := <-peer.frames
	assert.False(t, open, "no response expected after a bad first frame")
	assert.Len(t, b.identified, 0)
}

func TestResetAllDrainsOutbound(t *testing.T) {
	a, b := newTestHost("a"), newTestHost("b")
	require.NoError(t, b.endpoints.Register("slow", func(call *InboundCall, done Completion) {}))
	out, _ := connect(t, a, b)

	var chans []chan result
	for i := 0; i < 3; i++ {
		cb, ch := capture()
		out.Send(SendOptions{}, "slow", nil, nil, cb)
		chans = append(chans, ch)
	}
	assert.Equal(t, 3, out.OutPending())

	failure := goerrors.New("test reset")
	out.ResetAll(failure)
	out.ResetAll(errors.ErrShutdown)

	for _, ch := range chans {
		assert.Equal(t, failure, waitResult(t, ch).err)
		assert.Len(t, ch, 0, "callback must fire once")
	}
	assert.Equal(t, 0, out.OutPending())
	assert.Equal(t, 0, out.InPending())
	assert.Equal(t, failure, out.Err())
	assert.Equal(t, failure, waitErr(t, a.closed))
	assert.Len(t, a.closed, 0)
	assert.Len(t, a.resets, 1)

	cb, ch := capture()
	out.Send(SendOptions{}, "slow", nil, nil, cb)
	assert.Equal(t, errors.ErrConnClosed, waitResult(t, ch).err)
}

func TestSecondCompletion(t *testing.T) {
	a, b := newTestHost("a"), newTestHost("b")
	second := make(chan error, 1)
	require.NoError(t, b.endpoints.Register("twice", func(call *InboundCall, done Completion) {
		if err := done(Ok("first", nil)); err != nil {
			second <- err
			return
		}
		second <- done(Ok("second", nil))
	}))
	out, _ := connect(t, a, b)

	cb, ch := capture()
	out.Send(SendOptions{}, "twice", nil, nil, cb)
	r := waitResult(t, ch)
	require.NoError(t, r.err)
	assert.Equal(t, "first", string(r.res1))

	select {
	case err := <-second:
		assert.Equal(t, errors.ErrAlreadyResponded, err)
	case <-time.After(waitFor):
		t.Fatal("handler did not finish")
	}
}

func TestLateCompletionSwallowed(t *testing.T) {
	a, b := newTestHost("a"), newTestHost("b")
	pending := make(chan Completion, 1)
	require.NoError(t, b.endpoints.Register("later", func(call *InboundCall, done Completion) {
		pending <- done
	}))
	out, in := connect(t, a, b)

	cb, _ := capture()
	out.Send(SendOptions{}, "later", nil, nil, cb)
	var done Completion
	select {
	case done = <-pending:
	case <-time.After(waitFor):
		t.Fatal("request not delivered")
	}
	in.ResetAll(errors.ErrShutdown)
	assert.NoError(t, done(Ok(nil, nil)))
	assert.Equal(t, errors.ErrAlreadyResponded, done(Ok(nil, nil)))
}

func TestChecksumPolicy(t *testing.T) {
	for _, policy := range []string{ChecksumPolicyReset, ChecksumPolicyWarn} {
		t.Run(policy, func(t *testing.T) {
			b := newTestHost("b")
			b.cfg.ChecksumPolicy = policy
			require.NoError(t, b.endpoints.Register("echo", echo))
			cliSide, srvSide := net.Pipe()
			in := NewInboundConnection(b, srvSide)
			defer in.Close()
			peer := newRawPeer(cliSide)

			peer.send(t, proto.TypeReqComplete, 1, IdentifyName, "raw", "")
			res := peer.next(t)
			assert.Equal(t, proto.TypeResComplete, res.Type)
			assert.Equal(t, "b", string(res.Arg2))

			bad := proto.NewFrame(proto.TypeReqComplete, 2, []byte("echo"), []byte("x"), nil)
			bad.Checksum ^= 0xdeadbeef
			_, err := cliSide.Write(bad.Serialize())
			require.NoError(t, err)

			if policy == ChecksumPolicyReset {
				assert.Equal(t, errors.ErrChecksum, waitErr(t, b.closed))
				return
			}
			res = peer.next(t)
			assert.Equal(t, uint32(2), res.ID)
			assert.Equal(t, "x", string(res.Arg2))
			assert.Equal(t, StateOpen, in.State())
		})
	}
}

func TestOversizedArgResets(t *testing.T) {
	b := newTestHost("b")
	b.cfg.MaxArgSize = 64
	cliSide, srvSide := net.Pipe()
	NewInboundConnection(b, srvSide)
	peer := newRawPeer(cliSide)

	big := make([]byte, 128)
	f := proto.NewFrame(proto.TypeReqComplete, 1, []byte(IdentifyName), big, nil)
	go cliSide.Write(f.Serialize())
	assert.Equal(t, errors.ErrParse, waitErr(t, b.closed))
	_, open := <-peer.frames
	assert.False(t, open)
}

func TestSelfConnection(t *testing.T) {
	a := newTestHost("127.0.0.1:4040")
	_, err := NewOutboundConnection(a, "127.0.0.1:4040", nil)
	assert.Equal(t, errors.ErrSelfConnection, err)
}

func TestDialFailureResets(t *testing.T) {
	a := newTestHost("a")
	dialErr := goerrors.New("refused")
	c, err := NewOutboundConnection(a, "nowhere:1", func(ctx context.Context, network, addr string) (net.Conn, error) {
		return nil, dialErr
	})
	require.NoError(t, err)
	assert.Equal(t, dialErr, waitErr(t, a.closed))
	<-c.Done()
	assert.Equal(t, 0, c.OutPending())
}

func TestNextIdSkipsZeroAndPending(t *testing.T) {
	c := newConnection(newTestHost("a"), Outbound, "x")
	c.lastId = math.MaxUint32 - 1
	c.outOps[math.MaxUint32] = &outOp{}
	c.outOps[1] = &outOp{}
	assert.Equal(t, uint32(2), c.nextId())
	assert.Equal(t, uint32(3), c.nextId())
}

func TestWriteQueueFull(t *testing.T) {
	a := newTestHost("a")
	a.cfg.WriteQueueSize = 1
	block := make(chan struct{})
	defer close(block)
	c, err := NewOutboundConnection(a, "slow:1", func(ctx context.Context, network, addr string) (net.Conn, error) {
		<-block
		return nil, goerrors.New("never")
	})
	require.NoError(t, err)

	// the identify request holds the only queue slot
	cb, ch := capture()
	c.Send(SendOptions{}, "op", nil, nil, cb)
	assert.Equal(t, errors.ErrBusy, waitResult(t, ch).err)
	assert.Equal(t, 1, c.OutPending())
}
