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

package channel

import (
	"bytes"
	"fmt"

	"github.com/BurntSushi/toml"

	"tchannel/pkg/io"
	"tchannel/pkg/logging"
	otelCfg "tchannel/pkg/logging/otel/config"
	"tchannel/pkg/util"
)

var (
	DefaultConfig = Config{
		Host:     "127.0.0.1",
		Port:     4040,
		LogLevel: "info",
		IO:       io.DefaultConfig,
	}
)

type Config struct {
	Host string
	Port int
	// Listening defaults to true when not set.
	Listening      *bool
	MaxConnections int
	LogLevel       string
	// StatsAddr is where the command line server exposes the html stats page.
	StatsAddr string
	IO        io.Config
	Otel      otelCfg.Config
}

func (c *Config) SetDefaultIfNotDefined() {
	if len(c.Host) == 0 {
		c.Host = DefaultConfig.Host
	}
	if c.Port == 0 {
		c.Port = DefaultConfig.Port
	}
	if c.Listening == nil {
		listening := true
		c.Listening = &listening
	}
	if len(c.LogLevel) == 0 {
		c.LogLevel = DefaultConfig.LogLevel
	}
	c.IO.SetDefaultIfNotDefined()
	c.Otel.Validate()
}

// Name is the address the channel identifies itself with.
func (c *Config) Name() string {
	return util.HostPort(c.Host, c.Port)
}

func (c *Config) IsListening() bool {
	return c.Listening == nil || *c.Listening
}

func LoadConfig(file string) (cfg Config, err error) {
	if _, err = toml.DecodeFile(file, &cfg); err != nil {
		return
	}
	cfg.SetDefaultIfNotDefined()
	return
}

func (c *Config) Dump() {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		logging.Warningf("encode config: %s", err)
		return
	}
	logging.Info(fmt.Sprintf("channel config:\n%s", buf.String()))
}
