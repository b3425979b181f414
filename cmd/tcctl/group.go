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
	"fmt"

	"github.com/urfave/cli/v2"
)

var createGroupCommand = &cli.Command{
	Name:      "create-group",
	Usage:     "create a user group from one or more member identity strings",
	ArgsUsage: "<identity...>",
	Action:    runCreateGroup,
}

func runCreateGroup(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("tcctl: create-group needs at least one member identity", InvalidParameter)
	}

	sess, client, err := dialSession(c.Context, c)
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}
	defer client.Close()

	groupID, err := sess.CreateGroup(c.Context, c.Args().Slice())
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}

	fmt.Println(encodeID(groupID.Bytes()))
	return nil
}

var addMemberCommand = &cli.Command{
	Name:      "add-member",
	Usage:     "add members to an existing group",
	ArgsUsage: "<group-id-base58> <identity...>",
	Action:    runAddMember,
}

func runAddMember(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.Exit("tcctl: add-member needs a group id and at least one member identity", InvalidParameter)
	}

	groupIDs, err := parseGroupIDs([]string{c.Args().First()})
	if err != nil {
		return cli.Exit(err, InvalidParameter)
	}

	sess, client, err := dialSession(c.Context, c)
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}
	defer client.Close()

	if err := sess.UpdateGroupMembers(c.Context, groupIDs[0], c.Args().Tail()); err != nil {
		return cli.Exit(err, OperationFailed)
	}
	return nil
}
