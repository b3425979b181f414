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

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/identity"
	"github.com/blockspacer/trustchain-go/store"
)

var bootstrapCommand = &cli.Command{
	Name:  "bootstrap",
	Usage: "seed a local device and user identity into the session store",
	Description: "There is no 'create user' message in the wire protocol (spec §6): " +
		"bootstrap writes device and user key material straight into the local " +
		"bolt store, the same shortcut testhelpers.Provision takes for tests. Run " +
		"this once per --user before any other command, against a server that is " +
		"already prepared to recognize the printed identity.",
	Action: runBootstrap,
}

func runBootstrap(c *cli.Context) error {
	ctx := c.Context

	s, path, err := openBoltStore(c)
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}
	defer s.Close()

	userID := localUserID(c)

	devSig, err := crypto.NewSignatureKeyPair()
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}
	devEnc, err := crypto.NewEncryptionKeyPair()
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}
	userEnc, err := crypto.NewEncryptionKeyPair()
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}
	deviceID := crypto.DeviceIDFromHash(crypto.GenericHash(devSig.Public[:]))

	if err := s.LocalUser().SetDeviceID(ctx, deviceID); err != nil {
		return cli.Exit(err, OperationFailed)
	}
	if err := s.LocalUser().SetDeviceKeys(ctx, devSig.Private, devEnc.Private); err != nil {
		return cli.Exit(err, OperationFailed)
	}
	if err := s.LocalUser().PutUserKeyPair(ctx, userEnc.Public, userEnc.Private); err != nil {
		return cli.Exit(err, OperationFailed)
	}
	if err := s.Contacts().PutUserDevice(ctx, userID, store.Device{
		ID:                  deviceID,
		UserID:              userID,
		PublicSignatureKey:  devSig.Public,
		PublicEncryptionKey: devEnc.Public,
	}); err != nil {
		return cli.Exit(err, OperationFailed)
	}
	if err := s.Contacts().PutUserKey(ctx, userID, userEnc.Public); err != nil {
		return cli.Exit(err, OperationFailed)
	}

	tcID, err := parseTrustchainID(c)
	if err != nil {
		return cli.Exit(err, InvalidParameter)
	}
	idString, err := identity.EncodePermanent(tcID, userID)
	if err != nil {
		return cli.Exit(err, OperationFailed)
	}

	fmt.Printf("store:     %s\n", path)
	fmt.Printf("user id:   %s\n", encodeID(userID.Bytes()))
	fmt.Printf("device id: %s\n", encodeID(deviceID.Bytes()))
	fmt.Printf("identity:  %s\n", idString)
	return nil
}
