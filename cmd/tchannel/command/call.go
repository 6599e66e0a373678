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
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"tchannel/pkg/channel"
	"tchannel/pkg/logging"
)

func NewCallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call --peer host:port --op name [arg2 [arg3]]",
		Short: "send one request and print the response",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logging.InitLogging(cfg.LogLevel, "tchannel")
			listening := false
			cfg.Listening = &listening

			peer, _ := cmd.Flags().GetString("peer")
			op, _ := cmd.Flags().GetString("op")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			if peer == cfg.Name() {
				cfg.Host = fmt.Sprintf("tchannel-call-%d", os.Getpid())
			}
			var arg2, arg3 string
			if len(args) > 0 {
				arg2 = args[0]
			}
			if len(args) > 1 {
				arg3 = args[1]
			}

			ch, err := channel.New(cfg)
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				ch.Quit(ctx)
			}()

			ctx, cancel := context.WithTimeout(context.Background(), timeout+time.Second)
			defer cancel()
			res1, res2, err := ch.Call(ctx, channel.SendOptions{Host: peer, Timeout: timeout}, op, arg2, arg3)
			if err != nil {
				return errors.Wrapf(err, "call %s on %s", op, peer)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "res1: %s\nres2: %s\n", res1, res2)
			return nil
		},
	}
	cmd.Flags().String("peer", "", "peer host:port")
	cmd.Flags().String("op", "echo", "operation name")
	cmd.Flags().Duration("timeout", 5*time.Second, "request timeout")
	cmd.Flags().String("host", "", "local host used as the channel name")
	cmd.Flags().Int("port", 0, "local port used as the channel name")
	return cmd
}
