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
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/blockspacer/trustchain-go/crypto"
)

var encryptCommand = &cli.Command{
	Name:      "encrypt",
	Usage:     "encrypt a resource and share it with recipients and/or groups",
	ArgsUsage: "[plaintext]",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{Name: "recipient", Usage: "identity string to share with (repeatable)"},
		&cli.StringSliceFlag{Name: "group", Usage: "group id, base58 (repeatable)"},
	},
	Description: "Reads plaintext from the first argument, or from stdin if omitted, " +
		"and prints the base64 ciphertext.",
	Action: runEncrypt,
}

func runEncrypt(c *cli.Context) error {
	plaintext, err := readArgOrStdin(c)
	if err != nil {
		return cli.Exit(err, InvalidParameter)
	}

	groupIDs, err := parseGroupIDs(c.StringSlice("group"))
	if err != nil {
		return cli.Exit(err, InvalidParameter)
	}

	sess, client, err := dialSession(c.Context, c)
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}
	defer client.Close()

	ciphertext, err := sess.Encrypt(c.Context, plaintext, c.StringSlice("recipient"), groupIDs)
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}

	fmt.Println(base64.StdEncoding.EncodeToString(ciphertext))
	return nil
}

var decryptCommand = &cli.Command{
	Name:      "decrypt",
	Usage:     "decrypt a ciphertext produced by encrypt",
	ArgsUsage: "[ciphertext-base64]",
	Description: "Reads base64 ciphertext from the first argument, or from stdin if " +
		"omitted, and prints the recovered plaintext.",
	Action: runDecrypt,
}

func runDecrypt(c *cli.Context) error {
	raw, err := readArgOrStdin(c)
	if err != nil {
		return cli.Exit(err, InvalidParameter)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return cli.Exit(err, InvalidParameter)
	}

	sess, client, err := dialSession(c.Context, c)
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}
	defer client.Close()

	plaintext, err := sess.Decrypt(c.Context, ciphertext)
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}

	os.Stdout.Write(plaintext)
	fmt.Println()
	return nil
}

func parseGroupIDs(raw []string) ([]crypto.GroupID, error) {
	out := make([]crypto.GroupID, 0, len(raw))
	for _, r := range raw {
		b, err := decodeID(r)
		if err != nil {
			return nil, err
		}
		id, err := crypto.GroupIDFromBytes(b)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func readArgOrStdin(c *cli.Context) ([]byte, error) {
	if c.NArg() > 0 {
		return []byte(c.Args().First()), nil
	}
	return io.ReadAll(os.Stdin)
}
