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
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"tchannel/pkg/channel"
	"tchannel/pkg/initmgr"
	"tchannel/pkg/io"
	"tchannel/pkg/logging"
	"tchannel/pkg/logging/otel"
	"tchannel/pkg/version"
)

// registerDemoEndpoints installs echo, which answers with its arguments, and
// fail, which answers with arg2 as the error message.
func registerDemoEndpoints(ch *channel.Channel) error {
	if err := ch.Register("echo", func(call *io.InboundCall, done io.Completion) {
		done(io.Ok(call.Arg2, call.Arg3))
	}); err != nil {
		return err
	}
	return ch.Register("fail", func(call *io.InboundCall, done io.Completion) {
		done(io.Fail(errors.New(string(call.Arg2))))
	})
}

func startStatsServer(ch *channel.Channel, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/", ch.StatsPage())
	mux.HandleFunc("/version", version.HttpHandler)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Errorf("stats server on %s: %s", addr, err)
		}
	}()
	logging.Infof("stats page on http://%s/", addr)
	return srv
}

func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run a channel serving the echo and fail operations",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("stats-addr"); len(addr) != 0 {
				cfg.StatsAddr = addr
			}
			logging.InitLogging(cfg.LogLevel, "tchannel")
			cfg.Dump()

			initmgr.Register(otel.Initializer, &cfg.Otel)
			if err = initmgr.Init(); err != nil {
				return errors.Wrap(err, "initialize")
			}
			defer initmgr.Finalize()

			ch, err := channel.New(cfg)
			if err != nil {
				return errors.Wrapf(err, "listen on %s", cfg.Name())
			}
			if err = registerDemoEndpoints(ch); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s listening\n", ch.Name())

			var statsSrv *http.Server
			if len(cfg.StatsAddr) != 0 {
				statsSrv = startStatsServer(ch, cfg.StatsAddr)
			}

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
			<-quit
			logging.Infof("shutting down %s", ch.Name())

			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if statsSrv != nil {
				statsSrv.Shutdown(ctx)
			}
			if err = ch.Quit(ctx); err != nil {
				return errors.Wrap(err, "quit")
			}
			ch.Stats().PrettyPrint(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().String("host", "", "listen host")
	cmd.Flags().Int("port", 0, "listen port")
	cmd.Flags().String("stats-addr", "", "serve the html stats page on this address")
	return cmd
}
