// Copyright 2022 Piprate Limited
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command tcctl is a thin CLI exerciser of the SDK (SPEC_FULL.md §6): it
// drives a single local session against a real server, one subcommand per
// operation. It is not a product surface.
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/blockspacer/trustchain-go/cmd"
)

const (
	tcctlVersion = "0.1.0"

	InvalidParameter     = 1
	OperationFailed      = 2
	AuthenticationFailed = 3
)

func main() {
	app := cli.NewApp()
	app.Name = "tcctl"
	app.Usage = "exercise a trustchain session from the command line"
	app.Version = tcctlVersion

	app.Flags = GlobalFlags

	app.Before = func(c *cli.Context) error {
		cmd.SetConfigDirName(".trustchain")

		if c.Bool("debug") {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Stamp})
		return nil
	}

	app.Commands = []*cli.Command{
		bootstrapCommand,
		verifyCommand,
		encryptCommand,
		decryptCommand,
		createGroupCommand,
		addMemberCommand,
		revokeDeviceCommand,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Msg("tcctl command failed")
	}
}
