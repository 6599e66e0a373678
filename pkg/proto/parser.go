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

package proto

import (
	"encoding/binary"
	"fmt"
)

type parseState uint8

const (
	stateReadType parseState = iota
	stateReadId
	stateReadSeq
	stateReadArg1Len
	stateReadArg2Len
	stateReadArg3Len
	stateReadChecksum
	stateReadArg1
	stateReadArg2
	stateReadArg3
	stateError
)

var stateNames = [...]string{
	"readType",
	"readID",
	"readSeq",
	"readArg1Len",
	"readArg2Len",
	"readArg3Len",
	"readChecksum",
	"readArg1",
	"readArg2",
	"readArg3",
	"error",
}

func (s parseState) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Parser turns an arbitrarily chunked byte stream into frames. Frames are
// delivered in stream order through onFrame, synchronously from Feed. Once
// a parse error is reported the parser discards all further input.
//
// Emitted frames own their argument bytes; the parser never keeps a
// reference to a chunk passed to Feed.
type Parser struct {
	state parseState
	frame *Frame

	tmpInt    [4]byte
	tmpIntPos int

	tmpArg    []byte
	tmpArgPos int

	maxArgSize   uint32
	maxFrameSize uint64
	onFrame      func(*Frame)
	onError      func(error)
	err          error
}

func NewParser(onFrame func(*Frame), onError func(error)) *Parser {
	return &Parser{
		state:        stateReadType,
		maxArgSize:   DefaultMaxArgSize,
		maxFrameSize: DefaultMaxFrameSize,
		onFrame:      onFrame,
		onError:      onError,
	}
}

func (p *Parser) SetMaxArgSize(sz uint32) {
	if sz != 0 {
		p.maxArgSize = sz
	}
}

func (p *Parser) SetMaxFrameSize(sz uint64) {
	if sz != 0 {
		p.maxFrameSize = sz
	}
}

func (p *Parser) Err() error {
	return p.err
}

func (p *Parser) State() string {
	return p.state.String()
}

// Feed consumes chunk entirely. A single call may emit zero or more frames.
func (p *Parser) Feed(chunk []byte) {
	off := 0
	for off < len(chunk) && p.state != stateError {
		data := chunk[off:]
		switch p.state {
		case stateReadType:
			p.frame = &Frame{Arg1: []byte{}, Arg2: []byte{}, Arg3: []byte{}}
			p.frame.Type = Type(data[0])
			off++
			p.state = stateReadId

		case stateReadId, stateReadSeq, stateReadArg1Len, stateReadArg2Len, stateReadArg3Len, stateReadChecksum:
			v, n, ok := p.readInt(data)
			off += n
			if ok {
				p.setInt(v)
			}

		case stateReadArg1, stateReadArg2, stateReadArg3:
			arg, n, ok := p.readArg(data, p.argLen(p.state))
			off += n
			if ok {
				p.setArg(p.state, arg)
				p.afterArg(p.state)
			}
		}
	}
}

func (p *Parser) readInt(data []byte) (v uint32, n int, ok bool) {
	if p.tmpIntPos == 0 && len(data) >= 4 {
		return binary.BigEndian.Uint32(data), 4, true
	}
	n = copy(p.tmpInt[p.tmpIntPos:], data)
	p.tmpIntPos += n
	if p.tmpIntPos == 4 {
		p.tmpIntPos = 0
		return binary.BigEndian.Uint32(p.tmpInt[:]), n, true
	}
	return 0, n, false
}

func (p *Parser) readArg(data []byte, size uint32) (arg []byte, n int, ok bool) {
	sz := int(size)
	if p.tmpArg == nil && len(data) >= sz {
		arg = make([]byte, sz)
		copy(arg, data)
		return arg, sz, true
	}
	if p.tmpArg == nil {
		p.tmpArg = make([]byte, sz)
		p.tmpArgPos = 0
	}
	n = copy(p.tmpArg[p.tmpArgPos:], data)
	p.tmpArgPos += n
	if p.tmpArgPos == sz {
		arg = p.tmpArg
		p.tmpArg = nil
		p.tmpArgPos = 0
		return arg, n, true
	}
	return nil, n, false
}

func (p *Parser) setInt(v uint32) {
	h := &p.frame.Header
	switch p.state {
	case stateReadId:
		h.ID = v
		p.state = stateReadSeq
	case stateReadSeq:
		h.Seq = v
		p.state = stateReadArg1Len
	case stateReadArg1Len:
		h.Arg1Len = v
		p.checkLen(1, v, stateReadArg2Len)
	case stateReadArg2Len:
		h.Arg2Len = v
		p.checkLen(2, v, stateReadArg3Len)
	case stateReadArg3Len:
		h.Arg3Len = v
		if total := uint64(HeaderSize) + uint64(h.Arg1Len) + uint64(h.Arg2Len) + uint64(v); total > p.maxFrameSize {
			p.fail(NewParseError(fmt.Sprintf("frame size %d exceeds limit %d", total, p.maxFrameSize)))
			return
		}
		p.checkLen(3, v, stateReadChecksum)
	case stateReadChecksum:
		h.Checksum = v
		p.enterArg(stateReadArg1)
	}
}

func (p *Parser) checkLen(i int, v uint32, next parseState) {
	if v > p.maxArgSize {
		p.fail(NewParseError(fmt.Sprintf("arg%d length %d exceeds limit %d", i, v, p.maxArgSize)))
		return
	}
	p.state = next
}

func (p *Parser) argLen(s parseState) uint32 {
	switch s {
	case stateReadArg1:
		return p.frame.Arg1Len
	case stateReadArg2:
		return p.frame.Arg2Len
	}
	return p.frame.Arg3Len
}

func (p *Parser) setArg(s parseState, arg []byte) {
	switch s {
	case stateReadArg1:
		p.frame.Arg1 = arg
	case stateReadArg2:
		p.frame.Arg2 = arg
	case stateReadArg3:
		p.frame.Arg3 = arg
	}
}

// enterArg moves to argument state s, completing zero-length arguments
// without waiting for more input.
func (p *Parser) enterArg(s parseState) {
	p.state = s
	if p.argLen(s) == 0 {
		p.afterArg(s)
	}
}

func (p *Parser) afterArg(s parseState) {
	h := &p.frame.Header
	switch s {
	case stateReadArg1:
		if h.Arg2Len == 0 && h.Arg3Len == 0 {
			p.emit()
			return
		}
		p.enterArg(stateReadArg2)
	case stateReadArg2:
		if h.Arg3Len == 0 {
			p.emit()
			return
		}
		p.enterArg(stateReadArg3)
	default:
		p.emit()
	}
}

func (p *Parser) emit() {
	f := p.frame
	p.frame = nil
	p.state = stateReadType
	if p.onFrame != nil {
		p.onFrame(f)
	}
}

func (p *Parser) fail(err error) {
	p.state = stateError
	p.frame = nil
	p.tmpArg = nil
	p.err = err
	if p.onError != nil {
		p.onError(err)
	}
}
