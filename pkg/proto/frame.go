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
	"io"
	"reflect"

	"github.com/dgryski/go-farm"
	"github.com/goccy/go-json"
)

type (
	Header struct {
		Type     Type
		ID       uint32
		Seq      uint32
		Arg1Len  uint32
		Arg2Len  uint32
		Arg3Len  uint32
		Checksum uint32
	}

	// Frame is the unit of transmission. The Arg fields are never nil once a
	// frame has been built or parsed.
	Frame struct {
		Header
		Arg1 []byte
		Arg2 []byte
		Arg3 []byte
	}
)

func (h *Header) Encode(buf []byte) {
	buf[offsetType] = byte(h.Type)
	binary.BigEndian.PutUint32(buf[offsetId:], h.ID)
	binary.BigEndian.PutUint32(buf[offsetSeq:], h.Seq)
	binary.BigEndian.PutUint32(buf[offsetArg1Len:], h.Arg1Len)
	binary.BigEndian.PutUint32(buf[offsetArg2Len:], h.Arg2Len)
	binary.BigEndian.PutUint32(buf[offsetArg3Len:], h.Arg3Len)
	binary.BigEndian.PutUint32(buf[offsetChecksum:], h.Checksum)
}

func (h *Header) Decode(buf []byte) error {
	if len(buf) < HeaderSize {
		return NewParseError(fmt.Sprintf("header needs %d bytes, got %d", HeaderSize, len(buf)))
	}
	h.Type = Type(buf[offsetType])
	h.ID = binary.BigEndian.Uint32(buf[offsetId:])
	h.Seq = binary.BigEndian.Uint32(buf[offsetSeq:])
	h.Arg1Len = binary.BigEndian.Uint32(buf[offsetArg1Len:])
	h.Arg2Len = binary.BigEndian.Uint32(buf[offsetArg2Len:])
	h.Arg3Len = binary.BigEndian.Uint32(buf[offsetArg3Len:])
	h.Checksum = binary.BigEndian.Uint32(buf[offsetChecksum:])
	return nil
}

func (h *Header) PrettyPrint(w io.Writer) {
	fmt.Fprintf(w, "Header\n  type: %s id: %d seq: %d arg1: %d arg2: %d arg3: %d csum: %#08x\n",
		h.Type, h.ID, h.Seq, h.Arg1Len, h.Arg2Len, h.Arg3Len, h.Checksum)
}

// Build creates a frame with an arbitrary argument triple. Each argument is
// normalized to bytes: nil becomes empty, []byte and string are taken as is,
// structured values are JSON encoded and anything else is formatted with
// fmt.Sprint. Lengths and checksum are filled in.
func Build(arg1, arg2, arg3 interface{}) (*Frame, error) {
	f := &Frame{}
	var err error
	if f.Arg1, err = toBytes(arg1); err != nil {
		return nil, err
	}
	if f.Arg2, err = toBytes(arg2); err != nil {
		return nil, err
	}
	if f.Arg3, err = toBytes(arg3); err != nil {
		return nil, err
	}
	f.syncLengths()
	f.Checksum = f.ComputeChecksum()
	return f, nil
}

func NewFrame(typ Type, id uint32, arg1, arg2, arg3 []byte) *Frame {
	f := &Frame{
		Header: Header{Type: typ, ID: id},
		Arg1:   nonNil(arg1),
		Arg2:   nonNil(arg2),
		Arg3:   nonNil(arg3),
	}
	f.syncLengths()
	f.Checksum = f.ComputeChecksum()
	return f
}

func toBytes(v interface{}) ([]byte, error) {
	switch a := v.(type) {
	case nil:
		return []byte{}, nil
	case []byte:
		return nonNil(a), nil
	case string:
		return []byte(a), nil
	case fmt.Stringer:
		return []byte(a.String()), nil
	case error:
		return []byte(a.Error()), nil
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Ptr:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode argument: %w", err)
		}
		return b, nil
	}
	return []byte(fmt.Sprint(v)), nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func (f *Frame) syncLengths() {
	f.Arg1Len = uint32(len(f.Arg1))
	f.Arg2Len = uint32(len(f.Arg2))
	f.Arg3Len = uint32(len(f.Arg3))
}

// Checksum folds FarmHash32 over the arguments. Empty arg2 or arg3 leave the
// running value untouched.
func Checksum(arg1, arg2, arg3 []byte) uint32 {
	csum := farm.Hash32(arg1)
	if len(arg2) > 0 {
		csum = farm.Hash32WithSeed(arg2, csum)
	}
	if len(arg3) > 0 {
		csum = farm.Hash32WithSeed(arg3, csum)
	}
	return csum
}

func (f *Frame) ComputeChecksum() uint32 {
	return Checksum(f.Arg1, f.Arg2, f.Arg3)
}

func (f *Frame) VerifyChecksum() bool {
	return f.ComputeChecksum() == f.Checksum
}

func (f *Frame) Len() int {
	return HeaderSize + len(f.Arg1) + len(f.Arg2) + len(f.Arg3)
}

// Serialize returns the wire bytes. Length fields are taken from the argument
// slices; the checksum field is written as stored.
func (f *Frame) Serialize() []byte {
	f.syncLengths()
	buf := make([]byte, f.Len())
	f.Header.Encode(buf)
	off := HeaderSize
	off += copy(buf[off:], f.Arg1)
	off += copy(buf[off:], f.Arg2)
	copy(buf[off:], f.Arg3)
	return buf
}

func (f *Frame) WriteTo(w io.Writer) (n int64, err error) {
	var m int
	m, err = w.Write(f.Serialize())
	n = int64(m)
	return
}

// ReadFrom reads exactly one frame from r. The checksum is not verified.
func (f *Frame) ReadFrom(r io.Reader) (n int64, err error) {
	var hdr [HeaderSize]byte
	var m int
	if m, err = io.ReadFull(r, hdr[:]); err != nil {
		n = int64(m)
		return
	}
	n = int64(m)
	if err = f.Header.Decode(hdr[:]); err != nil {
		return
	}
	for _, a := range []struct {
		dst *[]byte
		sz  uint32
	}{{&f.Arg1, f.Arg1Len}, {&f.Arg2, f.Arg2Len}, {&f.Arg3, f.Arg3Len}} {
		if a.sz > DefaultMaxArgSize {
			err = NewParseError(fmt.Sprintf("argument length %d exceeds %d", a.sz, DefaultMaxArgSize))
			return
		}
		*a.dst = make([]byte, a.sz)
		if m, err = io.ReadFull(r, *a.dst); err != nil {
			n += int64(m)
			return
		}
		n += int64(m)
	}
	return
}

func (f *Frame) String() string {
	return fmt.Sprintf("%s id=%d arg1=%q arg2len=%d arg3len=%d", f.Type, f.ID, f.Arg1, f.Arg2Len, f.Arg3Len)
}
