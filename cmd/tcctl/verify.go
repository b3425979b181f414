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
	"os"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/blockspacer/trustchain-go/session"
)

var verifyCommand = &cli.Command{
	Name:  "verify",
	Usage: "complete identity verification with a passphrase (spec §4.11 C11a)",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "passphrase", Usage: "passphrase; prompted for if omitted"},
	},
	Description: "Use after bootstrap, once the server has recorded a passphrase " +
		"verification method for this account: checks the passphrase against it, " +
		"catches the session up again, and reports the session's resulting state.",
	Action: runVerify,
}

func runVerify(c *cli.Context) error {
	sess, client, err := connectSession(c.Context, c)
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}
	defer client.Close()

	switch sess.State() {
	case session.Ready:
		fmt.Println("session is already ready, nothing to verify")
		return nil
	case session.IdentityVerificationNeeded:
	default:
		return cli.Exit(fmt.Sprintf("tcctl: session is %s, not awaiting identity verification", sess.State()), OperationFailed)
	}

	proof := c.String("passphrase")
	if proof == "" {
		proof = readPassphrase("Enter passphrase: ")
	}

	if err := sess.VerifyIdentity(c.Context, proof); err != nil {
		return cli.Exit(err, AuthenticationFailed)
	}

	fmt.Printf("identity verified, session is %s\n", sess.State())
	return nil
}

// readPassphrase mirrors the teacher's masked-credential prompt.
func readPassphrase(prompt string) string {
	fmt.Print(prompt)
	byteVal, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "tcctl: could not read passphrase:", err)
		os.Exit(InvalidParameter)
	}
	return strings.TrimSpace(string(byteVal))
}
