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

package main

import "github.com/urfave/cli/v2"

// GlobalFlags identify the trustchain and local user every subcommand
// operates against; --server is only required by commands that need a
// live connection (bootstrap does not).
var GlobalFlags = []cli.Flag{
	&cli.BoolFlag{
		Name:  "debug",
		Usage: "enable debug logging",
	},
	&cli.StringFlag{
		Name:    "server",
		Usage:   "trustchain server websocket url, e.g. wss://trustchain.example.com:4000",
		EnvVars: []string{"TC_SERVER"},
	},
	&cli.StringFlag{
		Name:     "trustchain-id",
		Usage:    "trustchain id, base64",
		EnvVars:  []string{"TC_TRUSTCHAIN_ID"},
		Required: true,
	},
	&cli.StringFlag{
		Name:     "trustchain-key",
		Usage:    "trustchain public signature key, base64",
		EnvVars:  []string{"TC_TRUSTCHAIN_KEY"},
		Required: true,
	},
	&cli.StringFlag{
		Name:     "user",
		Usage:    "local user identifier (an email address or any other stable string)",
		EnvVars:  []string{"TC_USER"},
		Required: true,
	},
}
