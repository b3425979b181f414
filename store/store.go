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

package store

import (
	"context"

	"github.com/blockspacer/trustchain-go/crypto"
)

// ContactStore tracks what we locally know about other users and their
// devices (spec §4.5).
type ContactStore interface {
	PutUserDevice(ctx context.Context, userID crypto.UserID, device Device) error
	PutUserKey(ctx context.Context, userID crypto.UserID, pubEnc crypto.PublicEncryptionKey) error
	FindUser(ctx context.Context, userID crypto.UserID) (*Contact, error)
	FindDevice(ctx context.Context, deviceID crypto.DeviceID) (*Device, error)
	FindUserIDByDevice(ctx context.Context, deviceID crypto.DeviceID) (crypto.UserID, error)
	// RevokeDevice marks deviceID revoked as of atIndex. It is a no-op if
	// the device is already revoked at or before atIndex.
	RevokeDevice(ctx context.Context, deviceID crypto.DeviceID, atIndex uint64) error
}

// LocalUserStore holds this device's own keys and key generations
// (spec §4.5).
type LocalUserStore interface {
	SetDeviceKeys(ctx context.Context, privSig crypto.PrivateSignatureKey, privEnc crypto.PrivateEncryptionKey) error
	SetDeviceID(ctx context.Context, id crypto.DeviceID) error
	DeviceID(ctx context.Context) (crypto.DeviceID, error)
	DeviceKeys(ctx context.Context) (crypto.PrivateSignatureKey, crypto.PrivateEncryptionKey, error)

	PutUserKeyPair(ctx context.Context, pub crypto.PublicEncryptionKey, priv crypto.PrivateEncryptionKey) error
	FindKeyPair(ctx context.Context, pub crypto.PublicEncryptionKey) (*LocalUserKeyPair, error)
	LastKeyPair(ctx context.Context) (*LocalUserKeyPair, error)
	// ListKeyPairs returns every user keypair this device has ever held,
	// so a caller can test group member entries against each key
	// generation in turn (spec §4.9 group-key recovery). store/memory
	// lists them oldest first; store/bolt lists them in public-key byte
	// order.
	ListKeyPairs(ctx context.Context) ([]LocalUserKeyPair, error)

	// SetVerificationMethod and VerificationMethod persist and recall the
	// account's chosen identity-verification method (spec §4.11 C11a).
	SetVerificationMethod(ctx context.Context, method VerificationMethodRecord) error
	VerificationMethod(ctx context.Context) (*VerificationMethodRecord, error)
}

// GroupStore tracks groups this device knows about, internal or external
// (spec §4.5).
type GroupStore interface {
	// Put upserts g. An internal group (IsMember) always overwrites any
	// existing record; an external group never overwrites an existing
	// internal record for the same id.
	Put(ctx context.Context, g Group) error
	UpdateLastBlock(ctx context.Context, groupID crypto.GroupID, hash crypto.Hash, index uint64) error
	FindByID(ctx context.Context, groupID crypto.GroupID) (*Group, error)
	FindByPublicEncryptionKey(ctx context.Context, pubEnc crypto.PublicEncryptionKey) (*Group, error)
	PutProvisionalKeys(ctx context.Context, groupID crypto.GroupID, entries []ProvisionalGroupKeys) error
	FindProvisionalKeys(ctx context.Context, groupID crypto.GroupID) ([]ProvisionalGroupKeys, error)
}

// ResourceKeyStore caches resolved resource symmetric keys (spec §4.5).
type ResourceKeyStore interface {
	// Put stores key for resourceID. If a key is already stored for this
	// id, Put silently keeps the first one (spec: "ignore duplicates,
	// keep first").
	Put(ctx context.Context, resourceID crypto.ResourceID, key crypto.SymmetricKey) error
	// Get fails with tcerr.InvalidArgument if resourceID is absent.
	Get(ctx context.Context, resourceID crypto.ResourceID) (crypto.SymmetricKey, error)
}

// ProvisionalUserKeyStore holds the keypairs for provisional identities
// this device owns or has claimed (spec §4.5).
type ProvisionalUserKeyStore interface {
	Put(ctx context.Context, entry ProvisionalUserKeyPair) error
	Find(ctx context.Context, appPubSig, serverPubSig crypto.PublicSignatureKey) (*ProvisionalUserKeyPair, error)
}

// TrustchainIndex is the verified, applied log of entries accepted onto
// the chain (spec §4.5).
type TrustchainIndex interface {
	AddEntry(ctx context.Context, entry IndexEntry) error
	FindByHash(ctx context.Context, hash crypto.Hash) (*IndexEntry, error)
	FindKeyPublishForResource(ctx context.Context, resourceID crypto.ResourceID) (*IndexEntry, error)
	LastIndex(ctx context.Context) (uint64, error)
}

// Store aggregates every local view a session needs, plus the
// transaction boundary and schema migration entry point (spec §4.5,
// §5 "shared resources").
type Store interface {
	Contacts() ContactStore
	LocalUser() LocalUserStore
	Groups() GroupStore
	ResourceKeys() ResourceKeyStore
	ProvisionalUserKeys() ProvisionalUserKeyStore
	Trustchain() TrustchainIndex

	// WithTransaction runs fn inside a single transaction scope, acquired
	// for fn's duration and released on every exit path (commit on nil
	// error, rollback otherwise). Nested calls reuse the outer
	// transaction rather than deadlocking.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Migrate upgrades an older on-disk schema to the current one
	// (spec §4.5: "historically base64-text columns became raw bytes").
	Migrate(ctx context.Context) error

	Close() error
}
