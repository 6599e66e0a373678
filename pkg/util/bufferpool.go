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

package util

import (
	"bytes"
	"sync"
)

type BufferPool interface {
	Get() *bytes.Buffer
	Put(buf *bytes.Buffer)
}

// SyncBufferPool hands out buffers of at least size bytes. Buffers that grew
// beyond maxSize are dropped on Put.
type SyncBufferPool struct {
	pool    sync.Pool
	size    int
	maxSize int
}

func NewSyncBufferPool(size int, maxSize int) *SyncBufferPool {
	p := &SyncBufferPool{size: size, maxSize: maxSize}
	p.pool.New = func() interface{} {
		buf := new(bytes.Buffer)
		buf.Grow(size)
		return buf
	}
	return p
}

func (p *SyncBufferPool) Get() *bytes.Buffer {
	buf, ok := p.pool.Get().(*bytes.Buffer)
	if !ok {
		buf = new(bytes.Buffer)
		buf.Grow(p.size)
	}
	return buf
}

func (p *SyncBufferPool) Put(buf *bytes.Buffer) {
	if p.maxSize > 0 && buf.Cap() > p.maxSize {
		return
	}
	buf.Reset()
	p.pool.Put(buf)
}
