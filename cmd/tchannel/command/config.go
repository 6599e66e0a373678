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

package command

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"tchannel/pkg/channel"
)

// loadConfig reads --config when given and applies the flags that override it.
func loadConfig(cmd *cobra.Command) (cfg channel.Config, err error) {
	file, _ := cmd.Flags().GetString("config")
	if len(file) != 0 {
		if cfg, err = channel.LoadConfig(file); err != nil {
			err = errors.Wrapf(err, "load config %s", file)
			return
		}
	}
	if f := cmd.Flags().Lookup("host"); f != nil && f.Changed {
		cfg.Host = f.Value.String()
	}
	if f := cmd.Flags().Lookup("port"); f != nil && f.Changed {
		cfg.Port, _ = cmd.Flags().GetInt("port")
	}
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		cfg.LogLevel = f.Value.String()
	}
	cfg.SetDefaultIfNotDefined()
	return
}
