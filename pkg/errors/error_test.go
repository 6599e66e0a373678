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

package errors

import (
	"fmt"
	"testing"
)

func TestMessage(t *testing.T) {
	if got := Message(ErrTimeout); got != "timed out" {
		t.Errorf("unexpected message %q", got)
	}
	if got := Message(NewRemoteError("boom")); got != "boom" {
		t.Errorf("unexpected message %q", got)
	}
	if got := Message(fmt.Errorf("wrapped: %w", ErrBusy)); got != "wrapped: error: busy (10) " {
		t.Errorf("unexpected message %q", got)
	}
	if got := Message(nil); got != "" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestErrNo(t *testing.T) {
	if ErrTimeout.ErrNo() != KErrTimeout {
		t.Errorf("unexpected errno %d", ErrTimeout.ErrNo())
	}
	if NewRemoteError("x").ErrNo() != KErrRemote {
		t.Error("remote errno mismatch")
	}
	e := NewError("custom", 99)
	if e.What() != "custom" || e.ErrNo() != 99 {
		t.Errorf("unexpected error %v", e)
	}
}
