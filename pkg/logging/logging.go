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

package logging

import (
	"bytes"
	"strconv"
)

type KeyValueBuffer struct {
	bytes.Buffer
	delimiter     byte
	pairDelimiter byte
}

func NewKVBufferForLog() *KeyValueBuffer {
	b := &KeyValueBuffer{
		delimiter:     '=',
		pairDelimiter: ',',
	}
	return b
}

func NewKVBuffer() *KeyValueBuffer {
	b := &KeyValueBuffer{
		pairDelimiter: '&',
		delimiter:     '=',
	}
	return b
}

var (
	logDataKeyConnId     []byte = []byte("cid")
	logDataKeyRemoteAddr []byte = []byte("raddr")
	logDataKeyRemoteName []byte = []byte("rname")
	logDataKeyDirection  []byte = []byte("dir")
	logDataKeyFrameType  []byte = []byte("type")
	logDataKeyFrameId    []byte = []byte("id")
	logDataKeyOperation  []byte = []byte("op")
	logDataKeyStatus     []byte = []byte("st")
	logDataKeyError      []byte = []byte("err")
	logDataKeyPending    []byte = []byte("pending")
)

func (b *KeyValueBuffer) AddBytes(key []byte, value []byte) *KeyValueBuffer {
	if b.Len() > 0 {
		b.WriteByte(b.pairDelimiter)
	}
	b.Write(key)
	b.WriteByte(b.delimiter)
	b.Write(value)
	return b
}

func (b *KeyValueBuffer) Add(key []byte, value string) *KeyValueBuffer {
	if b.Len() > 0 {
		b.WriteByte(b.pairDelimiter)
	}
	b.Write(key)
	b.WriteByte(b.delimiter)
	b.WriteString(value)
	return b
}

func (b *KeyValueBuffer) AddInt(key []byte, value int) *KeyValueBuffer {
	return b.Add(key, strconv.Itoa(value))
}

func (b *KeyValueBuffer) AddUInt64(key []byte, value uint64) *KeyValueBuffer {
	return b.Add(key, strconv.FormatUint(value, 10))
}

func (b *KeyValueBuffer) AddConnId(id string) *KeyValueBuffer {
	return b.Add(logDataKeyConnId, id)
}

func (b *KeyValueBuffer) AddRemoteAddr(addr string) *KeyValueBuffer {
	return b.Add(logDataKeyRemoteAddr, addr)
}

// AddRemoteName is a no-op until the peer has identified itself.
func (b *KeyValueBuffer) AddRemoteName(name string) *KeyValueBuffer {
	if len(name) != 0 {
		b.Add(logDataKeyRemoteName, name)
	}
	return b
}

func (b *KeyValueBuffer) AddDirection(dir string) *KeyValueBuffer {
	return b.Add(logDataKeyDirection, dir)
}

func (b *KeyValueBuffer) AddFrameType(typ string) *KeyValueBuffer {
	return b.Add(logDataKeyFrameType, typ)
}

func (b *KeyValueBuffer) AddFrameId(id uint32) *KeyValueBuffer {
	return b.AddUInt64(logDataKeyFrameId, uint64(id))
}

func (b *KeyValueBuffer) AddOperation(op []byte) *KeyValueBuffer {
	if len(op) != 0 {
		b.AddBytes(logDataKeyOperation, op)
	}
	return b
}

func (b *KeyValueBuffer) AddStatus(st string) *KeyValueBuffer {
	return b.Add(logDataKeyStatus, st)
}

func (b *KeyValueBuffer) AddError(err error) *KeyValueBuffer {
	if err != nil {
		b.Add(logDataKeyError, err.Error())
	}
	return b
}

func (b *KeyValueBuffer) AddPending(in int, out int) *KeyValueBuffer {
	return b.Add(logDataKeyPending, strconv.Itoa(in)+"/"+strconv.Itoa(out))
}
