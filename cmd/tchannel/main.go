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

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tchannel/cmd/tchannel/command"
	"tchannel/pkg/logging"
	"tchannel/pkg/version"
)

var (
	rootCmd = &cobra.Command{
		Use:           "tchannel",
		Short:         "peer to peer rpc over framed tcp connections",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			logging.InitLogging(level, "tchannel")
			return nil
		},
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Prints the version of tchannel",
		// do not execute any persistent actions
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			version.WriteVersionInfo(cmd.OutOrStdout())
		},
	}
)

func init() {
	rootCmd.AddCommand(
		versionCmd,
		command.NewServeCommand(),
		command.NewCallCommand(),
	)
	rootCmd.PersistentFlags().StringP("config", "c", "", "toml configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "error, warning, info, debug or verbose")
}

func main() {
	err := rootCmd.Execute()
	logging.Flush()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}
