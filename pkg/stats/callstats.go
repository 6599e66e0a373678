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

package stats

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

type (
	// RequestStat is the latency distribution of one class of calls.
	RequestStat struct {
		mtx         sync.Mutex
		hist        *hdrhistogram.Histogram
		total       time.Duration
		numErrors   int64
		numTimeouts int64
	}

	// CallStats aggregates outbound call outcomes, overall and per operation.
	CallStats struct {
		mtx     sync.Mutex
		all     RequestStat
		ops     map[string]*RequestStat
		tmStart time.Time
	}

	StatsData struct {
		Operation   string
		NumRequests int64
		NumErrors   int64
		NumTimeouts int64
		AvgLatency  time.Duration
		MinLatency  time.Duration
		MaxLatency  time.Duration
		P50Latency  time.Duration
		P95Latency  time.Duration
		P99Latency  time.Duration
	}

	Snapshot struct {
		Since time.Time
		All   StatsData
		Ops   []StatsData
	}
)

func (s *RequestStat) init() {
	if s.hist == nil {
		s.hist = hdrhistogram.New(1, int64(3600*time.Second), 3)
	}
}

func (s *RequestStat) Put(tm time.Duration, err error, timedOut bool) {
	s.mtx.Lock()
	s.init()
	if tm < 1 {
		tm = 1
	}
	s.hist.RecordValue(int64(tm))
	s.total += tm
	if err != nil {
		s.numErrors++
	}
	if timedOut {
		s.numTimeouts++
	}
	s.mtx.Unlock()
}

func (s *RequestStat) GetStats() (stat StatsData) {
	s.mtx.Lock()
	s.init()
	stat.NumRequests = s.hist.TotalCount()
	stat.NumErrors = s.numErrors
	stat.NumTimeouts = s.numTimeouts
	stat.MinLatency = time.Duration(s.hist.Min())
	stat.MaxLatency = time.Duration(s.hist.Max())
	stat.P50Latency = time.Duration(s.hist.ValueAtQuantile(50.))
	stat.P95Latency = time.Duration(s.hist.ValueAtQuantile(95.))
	stat.P99Latency = time.Duration(s.hist.ValueAtQuantile(99.))
	total := s.total
	s.mtx.Unlock()

	if stat.NumRequests != 0 {
		stat.AvgLatency = total / time.Duration(stat.NumRequests)
	}
	return
}

func (s *RequestStat) Reset() {
	s.mtx.Lock()
	s.init()
	s.hist.Reset()
	s.numErrors = 0
	s.numTimeouts = 0
	s.total = 0
	s.mtx.Unlock()
}

func NewCallStats() *CallStats {
	return &CallStats{
		ops:     make(map[string]*RequestStat),
		tmStart: time.Now(),
	}
}

func (s *CallStats) Put(op string, tm time.Duration, err error, timedOut bool) {
	s.all.Put(tm, err, timedOut)
	s.mtx.Lock()
	st, ok := s.ops[op]
	if !ok {
		st = &RequestStat{}
		s.ops[op] = st
	}
	s.mtx.Unlock()
	st.Put(tm, err, timedOut)
}

func (s *CallStats) Snapshot() (snap Snapshot) {
	snap.All = s.all.GetStats()
	snap.All.Operation = "All"

	s.mtx.Lock()
	snap.Since = s.tmStart
	names := make([]string, 0, len(s.ops))
	for name := range s.ops {
		names = append(names, name)
	}
	s.mtx.Unlock()
	sort.Strings(names)

	for _, name := range names {
		s.mtx.Lock()
		st := s.ops[name]
		s.mtx.Unlock()
		data := st.GetStats()
		data.Operation = name
		snap.Ops = append(snap.Ops, data)
	}
	return
}

func (s *CallStats) Reset() {
	s.all.Reset()
	s.mtx.Lock()
	s.ops = make(map[string]*RequestStat)
	s.tmStart = time.Now()
	s.mtx.Unlock()
}

func (s *Snapshot) PrettyPrint(w io.Writer) {
	msfunc := func(d time.Duration) time.Duration {
		return d.Round(time.Microsecond)
	}

	fmt.Fprintln(w,
		`
                           call latency                                |  number of |  number of |  number of |
 average    | min        | max        |        50% |      95%   |      99%   |    calls   |   errors   |  timeouts  | operation
------------+------------+------------+------------+------------+------------+------------+------------+------------+-------------`)
	wstatFunc := func(stat *StatsData) {
		fmt.Fprintf(w, "%12s %12s %12s %12s %12s %12s %12d %12d %12d  %s\n",
			msfunc(stat.AvgLatency), msfunc(stat.MinLatency), msfunc(stat.MaxLatency),
			msfunc(stat.P50Latency), msfunc(stat.P95Latency), msfunc(stat.P99Latency),
			stat.NumRequests, stat.NumErrors, stat.NumTimeouts, stat.Operation)
	}
	for i := range s.Ops {
		wstatFunc(&s.Ops[i])
	}
	fmt.Fprintln(w,
		"------------+------------+------------+------------+------------+------------+------------+------------+------------+-------------")
	wstatFunc(&s.All)
}
