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

// Package initmgr runs registered initializers in weight order and finalizes
// them in reverse.
package initmgr

import (
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"sync"

	"tchannel/pkg/logging"
)

var (
	mtx          sync.Mutex
	initializers initEntriesT
)

type entryT struct {
	initializer  IInitializer
	weight       int
	args         []interface{}
	initOnce     sync.Once
	finalizeOnce sync.Once
	initialized  bool
}

type initEntriesT []*entryT

type IInitializer interface {
	Name() string
	Initialize(args ...interface{}) error
	Finalize()
}

func (rs initEntriesT) Len() int {
	return len(rs)
}

func (rs initEntriesT) Less(i, j int) bool {
	return rs[i].weight < rs[j].weight
}

func (rs initEntriesT) Swap(i, j int) {
	rs[i], rs[j] = rs[j], rs[i]
}

// Init initializes every registered entry. On the first failure the entries
// already initialized are finalized in reverse order and the error returned.
func Init() error {
	mtx.Lock()
	defer mtx.Unlock()
	sort.Stable(initializers)

	for i, e := range initializers {
		var err error
		e.initOnce.Do(func() {
			name := e.initializer.Name()
			if err = e.initializer.Initialize(e.args...); err == nil {
				e.initialized = true
				logging.Infof("[ok]   initmgr.initialize %s", name)
			} else {
				logging.Errorf("[fail] initmgr.initialize %s (error: %s)", name, err)
			}
		})
		if err != nil {
			finalizeBackwardsFrom(i - 1)
			return fmt.Errorf("initialize %s: %w", e.initializer.Name(), err)
		}
	}
	return nil
}

// caller holds mtx
func finalizeBackwardsFrom(i int) {
	for ; i >= 0; i-- {
		e := initializers[i]
		if !e.initialized {
			continue
		}
		e.finalizeOnce.Do(func() {
			logging.Infof("initmgr.finalize %s", e.initializer.Name())
			e.initializer.Finalize()
		})
	}
}

func Finalize() {
	mtx.Lock()
	defer mtx.Unlock()
	finalizeBackwardsFrom(len(initializers) - 1)
}

// Reset forgets every registered initializer.
func Reset() {
	mtx.Lock()
	initializers = nil
	mtx.Unlock()
}

func Register(rc IInitializer, args ...interface{}) {
	mtx.Lock()
	weight := len(initializers)
	mtx.Unlock()
	RegisterWithWeight(rc, weight, args...)
}

func RegisterWithFuncs(initializeFunc func(args ...interface{}) error, finalizeFunc func(), args ...interface{}) {
	Register(NewInitializer(initializeFunc, finalizeFunc), args...)
}

func RegisterWithWeight(rc IInitializer, weight int, args ...interface{}) {
	mtx.Lock()
	initializers = append(initializers, &entryT{initializer: rc, weight: weight, args: args})
	mtx.Unlock()
}

type Initializer struct {
	name           string
	InitializeFunc func(args ...interface{}) error
	FinalizeFunc   func()
}

func (i *Initializer) Name() string {
	return i.name
}

func (i *Initializer) Initialize(args ...interface{}) (err error) {
	if i.InitializeFunc != nil {
		err = i.InitializeFunc(args...)
	}
	return
}

func (i *Initializer) Finalize() {
	if i.FinalizeFunc != nil {
		i.FinalizeFunc()
	}
}

func NewInitializer(initializeFunc func(args ...interface{}) error, finalizeFunc func()) IInitializer {
	name := runtime.FuncForPC(reflect.ValueOf(initializeFunc).Pointer()).Name()
	i := strings.LastIndex(name, ".")
	if i == -1 {
		name = "unknown package"
	} else {
		name = name[0:i]
	}
	return &Initializer{name, initializeFunc, finalizeFunc}
}
