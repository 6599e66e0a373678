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
	"flag"
	"fmt"
	"strings"

	"github.com/golang/glog"
)

// default is LOG_INFO
var (
	LOG_ERROR   = true
	LOG_WARN    = true
	LOG_INFO    = true
	LOG_DEBUG   = false
	LOG_VERBOSE = false

	appName string
)

const (
	levelError = iota + 1
	levelWarn
	levelInfo
	levelDebug
	levelVerbose
)

func InitLogging(level string, name string) {
	if f := flag.Lookup("logtostderr"); f != nil {
		f.Value.Set("true")
	}
	appName = name

	var lvl int
	if strings.EqualFold("error", level) {
		lvl = levelError
	} else if strings.EqualFold("warning", level) || strings.EqualFold("warn", level) {
		lvl = levelWarn
	} else if strings.EqualFold("debug", level) {
		lvl = levelDebug
	} else if strings.EqualFold("verbose", level) {
		lvl = levelVerbose
	} else { //default is info
		lvl = levelInfo
	}

	LOG_ERROR = lvl >= levelError
	LOG_WARN = lvl >= levelWarn
	LOG_INFO = lvl >= levelInfo
	LOG_DEBUG = lvl >= levelDebug
	LOG_VERBOSE = lvl >= levelVerbose
}

func GetAppName() string {
	return appName
}

func Flush() {
	glog.Flush()
}

// wrappers to glog APIs so we can check log_level before callling into real code
func Info(args ...interface{}) {
	if LOG_INFO {
		glog.InfoDepth(1, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if LOG_INFO {
		glog.InfoDepth(1, fmt.Sprintf(format, args...))
	}
}

func Warning(args ...interface{}) {
	if LOG_WARN {
		glog.WarningDepth(1, args...)
	}
}

func Warningf(format string, args ...interface{}) {
	if LOG_WARN {
		glog.WarningDepth(1, fmt.Sprintf(format, args...))
	}
}

func Error(args ...interface{}) {
	if LOG_ERROR {
		glog.ErrorDepth(1, args...)
	}
}

func ErrorDepth(depth int, args ...interface{}) {
	if LOG_ERROR {
		glog.ErrorDepth(depth+1, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if LOG_ERROR {
		glog.ErrorDepth(1, fmt.Sprintf(format, args...))
	}
}

func Debug(args ...interface{}) {
	if LOG_DEBUG {
		glog.InfoDepth(1, "[DEBUG] "+fmt.Sprint(args...))
	}
}

func DebugDepth(depth int, args ...interface{}) {
	if LOG_DEBUG {
		glog.InfoDepth(depth+1, "[DEBUG] "+fmt.Sprint(args...))
	}
}

func Debugf(format string, args ...interface{}) {
	if LOG_DEBUG {
		glog.InfoDepth(1, "[DEBUG] "+fmt.Sprintf(format, args...))
	}
}

func Verbosef(format string, args ...interface{}) {
	if LOG_VERBOSE {
		glog.InfoDepth(1, "[VERBOSE] "+fmt.Sprintf(format, args...))
	}
}

func Verboseln(args ...interface{}) {
	if LOG_VERBOSE {
		glog.InfoDepth(1, "[VERBOSE] "+fmt.Sprintln(args...))
	}
}

func Fatalf(format string, args ...interface{}) {
	glog.FatalDepth(1, fmt.Sprintf(format, args...))
}
