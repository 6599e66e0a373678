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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tchannel/pkg/io"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaultIfNotDefined()
	assert.Equal(t, "127.0.0.1:4040", cfg.Name())
	assert.True(t, cfg.IsListening())
	assert.Equal(t, 5*time.Second, cfg.IO.ReqTimeoutDefault.Duration)
	assert.Equal(t, time.Second, cfg.IO.TimeoutCheckInterval.Duration)
	assert.Equal(t, 100*time.Millisecond, cfg.IO.TimeoutFuzz.Duration)
	assert.Equal(t, io.ChecksumPolicyReset, cfg.IO.ChecksumPolicy)
	assert.Equal(t, "tchannel", cfg.Otel.ServiceName)
}

func TestLoadConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "tchannel.toml")
	require.NoError(t, os.WriteFile(file, []byte(`
Host = "10.0.0.1"
Port = 5050
Listening = false
MaxConnections = 100

[IO]
ReqTimeoutDefault = "250ms"
ChecksumPolicy = "warn"

[Otel]
Enabled = false
`), 0644))

	cfg, err := LoadConfig(file)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1:5050", cfg.Name())
	assert.False(t, cfg.IsListening())
	assert.Equal(t, 100, cfg.MaxConnections)
	assert.Equal(t, 250*time.Millisecond, cfg.IO.ReqTimeoutDefault.Duration)
	assert.Equal(t, time.Second, cfg.IO.TimeoutCheckInterval.Duration)
	assert.Equal(t, io.ChecksumPolicyWarn, cfg.IO.ChecksumPolicy)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
