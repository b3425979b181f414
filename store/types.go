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

// Package store defines the typed, transactional local views the rest of
// the SDK reads and writes through: contacts (users/devices), the local
// device's own keys, groups, resource keys, provisional-identity keys and
// the trustchain index itself (spec §4.5). It is deliberately independent
// of any particular on-disk engine; store/memory and store/bolt provide
// concrete drivers.
package store

import (
	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/trustchain"
)

// Device is a contact's device as known locally.
type Device struct {
	ID                      crypto.DeviceID
	UserID                  crypto.UserID
	PublicSignatureKey      crypto.PublicSignatureKey
	PublicEncryptionKey     crypto.PublicEncryptionKey
	CreatedAtIndex          uint64
	RevokedAtIndex          uint64 // 0 means not revoked
	IsGhost                 bool
}

func (d Device) Revoked() bool { return d.RevokedAtIndex != 0 }

// RevokedBefore reports whether d was already revoked at or before index.
func (d Device) RevokedBefore(index uint64) bool {
	return d.Revoked() && d.RevokedAtIndex <= index
}

// Contact is everything we locally know about a user: their devices and
// their current user encryption key, if any.
type Contact struct {
	UserID      crypto.UserID
	Devices     []Device
	UserPubEnc  *crypto.PublicEncryptionKey
}

// DeviceByID returns the device with the given id, or nil.
func (c *Contact) DeviceByID(id crypto.DeviceID) *Device {
	for i := range c.Devices {
		if c.Devices[i].ID.Equal(id) {
			return &c.Devices[i]
		}
	}
	return nil
}

// LocalUserKeyPair is one generation of the local user's encryption
// keypair; the local user accumulates one per DeviceRevocation2 rotation.
type LocalUserKeyPair struct {
	Public  crypto.PublicEncryptionKey
	Private crypto.PrivateEncryptionKey
}

// VerificationMethodRecord is the locally stored form of whichever
// identity-verification method (spec §4.11 C11a) this device's user
// registered with the server. Kind names the method
// ("passphrase"/"email_otp"); Data is its opaque serialized state, owned
// and interpreted entirely by the session package.
type VerificationMethodRecord struct {
	Kind string
	Data []byte
}

// Group is everything locally known about a group. An internal group
// (IsMember true) carries both private keys; an external group carries
// only public keys and the sealed private signature key, pending a future
// ProvisionalIdentityClaim or membership promotion.
type Group struct {
	ID                      crypto.GroupID
	PublicSignatureKey      crypto.PublicSignatureKey
	PublicEncryptionKey     crypto.PublicEncryptionKey
	IsMember                bool
	PrivateSignatureKey     crypto.PrivateSignatureKey
	PrivateEncryptionKey    crypto.PrivateEncryptionKey
	SealedPrivateSignatureKey crypto.SealedPrivateSignatureKey
	LastBlockHash           crypto.Hash
	LastBlockIndex          uint64
}

// ProvisionalGroupKeys is a pending provisional-member entry recorded
// against a group until the matching ProvisionalIdentityClaim arrives.
type ProvisionalGroupKeys struct {
	GroupID                  crypto.GroupID
	AppPublicSignatureKey    crypto.PublicSignatureKey
	ServerPublicSignatureKey crypto.PublicSignatureKey
	TwoTimesSealedPrivateKey crypto.TwoTimesSealedSymmetricKey
}

// ProvisionalUserKeyPair is the locally-held keypair(s) for a provisional
// identity this device owns (app half only, or app+server halves once
// claimed elsewhere).
type ProvisionalUserKeyPair struct {
	AppPublicSignatureKey    crypto.PublicSignatureKey
	ServerPublicSignatureKey crypto.PublicSignatureKey
	AppEncryptionKeyPair     LocalUserKeyPair
	ServerEncryptionKeyPair  LocalUserKeyPair
}

// IndexEntry is one verified, indexed block recorded in the trustchain
// index.
type IndexEntry struct {
	Hash    crypto.Hash
	Index   uint64
	Nature  trustchain.Nature
	Author  crypto.Hash
	Payload []byte
}
