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
	"math/rand"
	"sort"
	"sync"
	"time"
)

type (
	// Timer is a handle to a callback scheduled by a Clock.
	Timer interface {
		Stop() bool
	}

	// Clock is the timer service connections use to schedule timeout sweeps.
	Clock interface {
		Now() time.Time
		AfterFunc(d time.Duration, f func()) Timer
	}

	// RandFunc returns a uniformly distributed value in [0, 1).
	RandFunc func() float64

	SystemClock struct{}
)

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

var (
	randMtx sync.Mutex
	rnd     = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// DefaultRand is safe for concurrent use.
func DefaultRand() float64 {
	randMtx.Lock()
	defer randMtx.Unlock()
	return rnd.Float64()
}

// FixedRand returns a RandFunc always yielding v.
func FixedRand(v float64) RandFunc {
	return func() float64 { return v }
}

////////////////////////////////////
// ManualClock
////////////////////////////////////

type (
	// ManualClock only moves when Advance is called. Timers that become due
	// fire synchronously on the goroutine calling Advance, in deadline order.
	ManualClock struct {
		mtx    sync.Mutex
		now    time.Time
		seq    uint64
		timers []*manualTimer
	}

	manualTimer struct {
		clock    *ManualClock
		deadline time.Time
		seq      uint64
		f        func()
		stopped  bool
	}
)

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.seq++
	t := &manualTimer{
		clock:    c,
		deadline: c.now.Add(d),
		seq:      c.seq,
		f:        f,
	}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing every timer due on the way.
// Timers scheduled by fired callbacks are honored if they fall within d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mtx.Lock()
	target := c.now.Add(d)
	c.mtx.Unlock()

	for {
		c.mtx.Lock()
		t := c.nextDue(target)
		if t == nil {
			c.now = target
			c.mtx.Unlock()
			return
		}
		c.now = t.deadline
		t.stopped = true
		c.remove(t)
		c.mtx.Unlock()
		t.f()
	}
}

// PendingTimers returns the number of scheduled, not yet fired timers.
func (c *ManualClock) PendingTimers() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return len(c.timers)
}

// NextDeadline reports the delay until the earliest pending timer.
func (c *ManualClock) NextDeadline() (d time.Duration, ok bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if len(c.timers) == 0 {
		return 0, false
	}
	c.sortTimers()
	return c.timers[0].deadline.Sub(c.now), true
}

func (c *ManualClock) sortTimers() {
	sort.Slice(c.timers, func(i, j int) bool {
		if c.timers[i].deadline.Equal(c.timers[j].deadline) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].deadline.Before(c.timers[j].deadline)
	})
}

func (c *ManualClock) nextDue(target time.Time) *manualTimer {
	if len(c.timers) == 0 {
		return nil
	}
	c.sortTimers()
	if c.timers[0].deadline.After(target) {
		return nil
	}
	return c.timers[0]
}

func (c *ManualClock) remove(t *manualTimer) {
	for i, v := range c.timers {
		if v == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return
		}
	}
}

func (t *manualTimer) Stop() bool {
	t.clock.mtx.Lock()
	defer t.clock.mtx.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	t.clock.remove(t)
	return true
}
