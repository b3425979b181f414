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

import (
	"github.com/urfave/cli/v2"

	"github.com/blockspacer/trustchain-go/crypto"
)

var revokeDeviceCommand = &cli.Command{
	Name:      "revoke-device",
	Usage:     "revoke one of this user's own devices",
	ArgsUsage: "<device-id-base58>",
	Action:    runRevokeDevice,
}

func runRevokeDevice(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("tcctl: revoke-device needs exactly one device id", InvalidParameter)
	}

	raw, err := decodeID(c.Args().First())
	if err != nil {
		return cli.Exit(err, InvalidParameter)
	}
	targetID, err := crypto.DeviceIDFromBytes(raw)
	if err != nil {
		return cli.Exit(err, InvalidParameter)
	}

	sess, client, err := dialSession(c.Context, c)
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}
	defer client.Close()

	if err := sess.RevokeDevice(c.Context, targetID); err != nil {
		return cli.Exit(err, OperationFailed)
	}
	return nil
}
