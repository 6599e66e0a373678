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
	"fmt"
)

type Type uint8

const (
	TypeReqComplete     = Type(0x01)
	TypeReqFragment     = Type(0x02)
	TypeReqLastFragment = Type(0x03)
	TypeResComplete     = Type(0x80)
	TypeResFragment     = Type(0x81)
	TypeResLastFragment = Type(0x82)
	TypeResError        = Type(0xC0)
)

const (
	HeaderSize = 25

	// DefaultMaxArgSize bounds a declared argument length accepted by the parser.
	DefaultMaxArgSize = 16 << 20
	// DefaultMaxFrameSize bounds header plus all declared argument lengths.
	DefaultMaxFrameSize = 48<<20 + HeaderSize

	offsetType     = 0
	offsetId       = 1
	offsetSeq      = 5
	offsetArg1Len  = 9
	offsetArg2Len  = 13
	offsetArg3Len  = 17
	offsetChecksum = 21
)

var typeNames = map[Type]string{
	TypeReqComplete:     "ReqComplete",
	TypeReqFragment:     "ReqFragment",
	TypeReqLastFragment: "ReqLastFragment",
	TypeResComplete:     "ResComplete",
	TypeResFragment:     "ResFragment",
	TypeResLastFragment: "ResLastFragment",
	TypeResError:        "ResError",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%#x)", uint8(t))
}

func (t Type) IsValid() bool {
	_, ok := typeNames[t]
	return ok
}

func (t Type) IsRequest() bool {
	return t == TypeReqComplete || t == TypeReqFragment || t == TypeReqLastFragment
}

func (t Type) IsFragment() bool {
	switch t {
	case TypeReqFragment, TypeReqLastFragment, TypeResFragment, TypeResLastFragment:
		return true
	}
	return false
}

type ParseError struct {
	what string
}

func NewParseError(what string) *ParseError {
	return &ParseError{what: what}
}

func (e *ParseError) Error() string {
	return "parse error: " + e.what
}
