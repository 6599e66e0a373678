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
	"net"

	"tchannel/pkg/logging"
	"tchannel/pkg/proto"
	"tchannel/pkg/util"
)

const (
	kMinSizeWriteBuffer  = 1024
	kMaxSizePooledBuffer = 4 * 64 * 1024
)

var writeBufPool = util.NewSyncBufferPool(64*1024, kMaxSizePooledBuffer)

// doRead feeds socket reads to the frame parser. Frames are handled on this
// goroutine, strictly in arrival order.
func (c *Connection) doRead(sock net.Conn) {
	if logging.LOG_VERBOSE {
		logging.Verbosef("start reader %s", c.id)
	}
	defer func() {
		if logging.LOG_VERBOSE {
			logging.Verboseln("reader exit", c.id)
		}
	}()

	szBuf := c.config.IOBufSize
	if szBuf < kMinSizeWriteBuffer {
		szBuf = kMinSizeWriteBuffer
	}
	buf := make([]byte, szBuf)
	parser := proto.NewParser(c.onFrame, c.onParseError)
	parser.SetMaxArgSize(c.config.MaxArgSize)

	for {
		n, err := sock.Read(buf)
		if n > 0 {
			parser.Feed(buf[:n])
			if parser.Err() != nil {
				return
			}
		}
		if err != nil {
			c.onSocketError(err)
			return
		}
		select {
		case <-c.chStop:
			return
		default:
		}
	}
}

// doWrite drains the write queue, coalescing queued frames into one socket
// write of up to MaxBufferedWriteSize bytes.
func (c *Connection) doWrite(sock net.Conn) {
	if logging.LOG_VERBOSE {
		logging.Verbosef("start writer %s", c.id)
	}
	defer func() {
		if logging.LOG_VERBOSE {
			logging.Verboseln("writer exit", c.id)
		}
	}()

	wBuf := writeBufPool.Get()
	defer func() {
		writeBufPool.Put(wBuf)
	}()
	maxWBufSize := c.config.MaxBufferedWriteSize

	for {
		select {
		case <-c.chStop:
			return

		case b := <-c.writeCh:
			wBuf.Write(b)
		loop:
			for wBuf.Len() < maxWBufSize {
				select {
				case b = <-c.writeCh:
					wBuf.Write(b)
				default:
					break loop
				}
			}
			if _, err := wBuf.WriteTo(sock); err != nil {
				if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
					continue
				}
				c.onSocketError(err)
				return
			}
			if wBuf.Cap() > kMaxSizePooledBuffer {
				wBuf = writeBufPool.Get()
			}
		}
	}
}
