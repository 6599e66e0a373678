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
	"context"
	goerrors "errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tchannel/pkg/errors"
	"tchannel/pkg/io"
	"tchannel/pkg/proto"
	"tchannel/pkg/util"
)

func newTestChannel(t *testing.T, opts ...Option) *Channel {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := Config{Host: "127.0.0.1", Port: ln.Addr().(*net.TCPAddr).Port}
	cfg.IO.TimeoutCheckInterval = util.Duration{Duration: 10 * time.Millisecond}
	cfg.IO.TimeoutFuzz = util.Duration{Duration: 2 * time.Millisecond}

	opts = append([]Option{WithListener(ln), WithRand(util.FixedRand(0.5))}, opts...)
	ch, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ch.Quit(ctx)
	})
	return ch
}

func callCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestEcho(t *testing.T) {
	server := newTestChannel(t)
	client := newTestChannel(t)
	require.NoError(t, server.Register("echo", func(call *io.InboundCall, done io.Completion) {
		done(io.Ok(call.Arg2, call.Arg3))
	}))

	res1, res2, err := client.Call(callCtx(t), SendOptions{Host: server.Name()}, "echo", "hello", "world")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(res1))
	assert.Equal(t, "world", string(res2))

	out := client.GetPeer(server.Name())
	require.NotNil(t, out)
	assert.Equal(t, io.Outbound, out.Direction())
	require.Eventually(t, func() bool {
		in := server.GetPeer(client.Name())
		return in != nil && in.Direction() == io.Inbound
	}, 2*time.Second, 5*time.Millisecond)

	snap := client.Stats()
	assert.EqualValues(t, 1, snap.All.NumRequests)
	require.Len(t, snap.Ops, 1)
	assert.Equal(t, "echo", snap.Ops[0].Operation)
}

func TestHandlerError(t *testing.T) {
	server := newTestChannel(t)
	client := newTestChannel(t)
	require.NoError(t, server.Register("boom", func(call *io.InboundCall, done io.Completion) {
		done(io.Fail(fmt.Errorf("boom")))
	}))

	_, _, err := client.Call(callCtx(t), SendOptions{Host: server.Name()}, "boom", nil, nil)
	require.Error(t, err)
	assert.Equal(t, "boom", err.Error())
	var remote *errors.RemoteError
	assert.True(t, goerrors.As(err, &remote))

	_, _, err = client.Call(callCtx(t), SendOptions{Host: server.Name()}, "missing", nil, nil)
	require.Error(t, err)
	assert.Equal(t, "no such operation: missing", err.Error())
	assert.EqualValues(t, 2, client.Stats().All.NumErrors)
}

func TestCallTimeout(t *testing.T) {
	server := newTestChannel(t)
	client := newTestChannel(t)
	require.NoError(t, server.Register("never", func(call *io.InboundCall, done io.Completion) {}))

	start := time.Now()
	_, _, err := client.Call(callCtx(t), SendOptions{Host: server.Name(), Timeout: 50 * time.Millisecond}, "never", nil, nil)
	assert.True(t, goerrors.Is(err, errors.ErrTimeout), "got %v", err)
	assert.True(t, time.Since(start) >= 50*time.Millisecond)

	out := client.GetPeer(server.Name())
	require.NotNil(t, out)
	assert.Equal(t, 0, out.OutPending())
	assert.EqualValues(t, 1, client.Stats().All.NumTimeouts)
}

func TestSendMisuse(t *testing.T) {
	client := newTestChannel(t)
	cb := func(res1, res2 []byte, err error) {
		t.Errorf("callback called for rejected send: %v", err)
	}

	assert.Equal(t, errors.ErrNoHost, client.Send(SendOptions{}, "echo", nil, nil, cb))
	assert.Equal(t, errors.ErrSelfConnection, client.Send(SendOptions{Host: client.Name()}, "echo", nil, nil, cb))
	assert.Equal(t, errors.ErrInvalidDestination, client.Send(SendOptions{Host: "nocolon"}, "echo", nil, nil, cb))

	require.NoError(t, client.Quit(callCtx(t)))
	assert.True(t, client.IsDestroyed())
	assert.Equal(t, errors.ErrDestroyed, client.Send(SendOptions{Host: "127.0.0.1:1"}, "echo", nil, nil, cb))
}

func TestQuitFailsPendingCalls(t *testing.T) {
	server := newTestChannel(t)
	client := newTestChannel(t)
	require.NoError(t, server.Register("never", func(call *io.InboundCall, done io.Completion) {}))

	chErr := make(chan error, 1)
	require.NoError(t, client.Send(SendOptions{Host: server.Name()}, "never", nil, nil, func(res1, res2 []byte, err error) {
		chErr <- err
	}))
	require.Eventually(t, func() bool {
		in := server.GetPeer(client.Name())
		return in != nil && in.InPending() == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, client.Quit(callCtx(t)))
	select {
	case err := <-chErr:
		assert.Equal(t, errors.ErrShutdown, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pending call not failed by quit")
	}
	assert.Empty(t, client.Peers())

	require.Eventually(t, func() bool {
		return server.GetPeer(client.Name()) == nil
	}, 2*time.Second, 5*time.Millisecond)
}

func TestObserverEvents(t *testing.T) {
	identified := make(chan string, 4)
	closed := make(chan error, 4)
	client := newTestChannel(t, WithObserver(ObserverFuncs{
		OnIdentified:       func(name string) { identified <- name },
		OnConnectionClosed: func(c *io.Connection, err error) { closed <- err },
	}))
	server := newTestChannel(t)
	require.NoError(t, server.Register("echo", func(call *io.InboundCall, done io.Completion) {
		done(io.Ok(call.Arg2, call.Arg3))
	}))

	_, _, err := client.Call(callCtx(t), SendOptions{Host: server.Name()}, "echo", nil, nil)
	require.NoError(t, err)
	select {
	case name := <-identified:
		assert.Equal(t, server.Name(), name)
	case <-time.After(2 * time.Second):
		t.Fatal("no identified event")
	}

	require.NoError(t, server.Quit(callCtx(t)))
	select {
	case err := <-closed:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("no closed event")
	}
}

func TestBadFirstFrame(t *testing.T) {
	server := newTestChannel(t)
	require.NoError(t, server.Register("echo", func(call *io.InboundCall, done io.Completion) {
		done(io.Ok(call.Arg2, call.Arg3))
	}))

	sock, err := net.Dial("tcp", server.Addr())
	require.NoError(t, err)
	defer sock.Close()

	f, err := proto.Build("echo", "hello", "world")
	require.NoError(t, err)
	f.Type = proto.TypeReqComplete
	f.ID = 1
	_, err = sock.Write(f.Serialize())
	require.NoError(t, err)

	sock.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, err := sock.Read(buf)
	assert.Equal(t, 0, n)
	require.Error(t, err)
	var nerr net.Error
	assert.False(t, goerrors.As(err, &nerr) && nerr.Timeout(), "connection not reset")
}

func TestPeerRanking(t *testing.T) {
	ch, err := New(Config{Host: "127.0.0.1", Port: 7000}, WithoutListening())
	require.NoError(t, err)
	defer ch.Quit(context.Background())

	inSock, inPeer := net.Pipe()
	defer inPeer.Close()
	in := io.NewInboundConnection(ch, inSock)

	outSock, outPeer := net.Pipe()
	defer outPeer.Close()
	out, err := io.NewOutboundConnection(ch, "127.0.0.1:7001", func(ctx context.Context, network, addr string) (net.Conn, error) {
		return outSock, nil
	})
	require.NoError(t, err)
	go drain(outPeer)
	go drain(inPeer)

	_, err = ch.AddPeer("127.0.0.1:7001", in)
	require.NoError(t, err)
	assert.Same(t, in, ch.GetPeer("127.0.0.1:7001"))

	_, err = ch.AddPeer("127.0.0.1:7001", out)
	require.NoError(t, err)
	assert.Same(t, out, ch.GetPeer("127.0.0.1:7001"))
	assert.Equal(t, []*io.Connection{out, in}, ch.Peers())

	ch.RemovePeer("127.0.0.1:7001", out)
	assert.Same(t, in, ch.GetPeer("127.0.0.1:7001"))

	in.Close()
	assert.Nil(t, ch.GetPeer("127.0.0.1:7001"))

	_, err = ch.AddPeer(ch.Name(), nil)
	assert.Equal(t, errors.ErrSelfConnection, err)
	out.Close()
}

func drain(c net.Conn) {
	buf := make([]byte, 1024)
	for {
		if _, err := c.Read(buf); err != nil {
			return
		}
	}
}

func TestStatsPage(t *testing.T) {
	ch := newTestChannel(t)
	page := ch.StatsPage()
	assert.Equal(t, ch.Name(), page.ChannelName)
	assert.Len(t, page.Sections, 3)
}
