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

package session

import (
	"context"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/tcerr"
	"github.com/blockspacer/trustchain-go/trustchain"
)

// RevokeDevice revokes targetDeviceID, one of this user's own devices,
// rotating the user's private encryption key and re-sealing it to every
// other non-revoked device of the same user (spec §4.3 nature 9, §3
// Invariant 5; grounded on puller.rotateUserKey's unseal convention: each
// device unseals its copy with its own encryption keypair, not the
// user's).
//
// SealedKeyForPreviousUserKey seals the key being retired under the new
// user public key, so any device that later recovers the new user key
// via SealedKeysForDevices can also recover history encrypted under the
// old one; nothing in this module consumes it yet, since no applier
// currently resolves old group-key generations this way, but the field
// is populated so a future reader does not have to guess its encoding.
func (s *Session) RevokeDevice(ctx context.Context, targetDeviceID crypto.DeviceID) error {
	if err := s.requireReady(); err != nil {
		return err
	}

	ourDeviceID, err := s.cfg.Store.LocalUser().DeviceID(ctx)
	if err != nil {
		return err
	}
	ourDevice, err := s.cfg.Store.Contacts().FindDevice(ctx, ourDeviceID)
	if err != nil {
		return err
	}
	target, err := s.cfg.Store.Contacts().FindDevice(ctx, targetDeviceID)
	if err != nil {
		return tcerr.New(tcerr.PreconditionFailed, "session: revocation target %s not found", targetDeviceID)
	}
	if !target.UserID.Equal(ourDevice.UserID) {
		return tcerr.New(tcerr.PreconditionFailed, "session: can only revoke a device of your own user")
	}
	if target.Revoked() {
		return tcerr.New(tcerr.PreconditionFailed, "session: device %s is already revoked", targetDeviceID)
	}

	contact, err := s.cfg.Store.Contacts().FindUser(ctx, ourDevice.UserID)
	if err != nil {
		return err
	}
	previousKP, err := s.cfg.Store.LocalUser().LastKeyPair(ctx)
	if err != nil {
		return err
	}
	newKP, err := crypto.NewEncryptionKeyPair()
	if err != nil {
		return err
	}

	entries := make([]trustchain.SealedUserKeyForDevice, 0, len(contact.Devices))
	for _, d := range contact.Devices {
		if d.ID.Equal(targetDeviceID) || d.Revoked() {
			continue
		}
		sealed := crypto.SealEncrypt(newKP.Private.Bytes(), d.PublicEncryptionKey)
		entries = append(entries, trustchain.SealedUserKeyForDevice{
			DeviceID:                   d.ID,
			SealedNewUserPrivateEncKey: crypto.SealedPrivateEncryptionKey(sealed),
		})
	}

	action := &trustchain.DeviceRevocation2{
		TargetDeviceID:                  targetDeviceID,
		NewUserPublicEncryptionKey:      newKP.Public,
		PreviousUserPublicEncryptionKey: previousKP.Public,
		SealedKeyForPreviousUserKey:     crypto.SealedPrivateEncryptionKey(crypto.SealEncrypt(previousKP.Private.Bytes(), newKP.Public)),
		SealedKeysForDevices:            entries,
	}

	_, err = s.pushAction(ctx, action)
	return err
}
