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

// Package verify implements the per-nature verifier (spec §4.6): given a
// server entry, it checks hashes and signatures against the state in
// store.Store and classifies any failure into one of the Sub codes the
// rest of the module branches on.
package verify

import (
	"context"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/store"
	"github.com/blockspacer/trustchain-go/tcerr"
	"github.com/blockspacer/trustchain-go/trustchain"
)

// Verifier checks server entries against local state before they are
// applied (spec §4.6).
type Verifier struct {
	store               store.Store
	trustchainID        crypto.TrustchainID
	trustchainPublicKey crypto.PublicSignatureKey
}

func New(s store.Store, trustchainID crypto.TrustchainID, trustchainPublicKey crypto.PublicSignatureKey) *Verifier {
	return &Verifier{store: s, trustchainID: trustchainID, trustchainPublicKey: trustchainPublicKey}
}

// Verify dispatches block by nature and enforces the invariants spec §4.6
// names. On failure it returns a *tcerr.Error with Kind VerificationFailed
// and a classified Sub code.
func (v *Verifier) Verify(ctx context.Context, block *trustchain.Block) error {
	action, err := block.Action()
	if err != nil {
		return err
	}

	switch {
	case block.Nature == trustchain.NatureTrustchainCreation:
		return v.verifyTrustchainCreation(block, action)
	case block.Nature.IsDeviceCreation():
		return v.verifyDeviceCreation(ctx, block, action)
	case block.Nature.IsKeyPublish():
		return v.verifyKeyPublish(ctx, block, action)
	case block.Nature.IsDeviceRevocation():
		return v.verifyDeviceRevocation(ctx, block, action)
	case block.Nature.IsUserGroupCreation():
		return v.verifyUserGroupCreation(ctx, block, action)
	case block.Nature.IsUserGroupAddition():
		return v.verifyUserGroupAddition(ctx, block, action)
	case block.Nature == trustchain.NatureProvisionalIdentityClaim:
		return v.verifyProvisionalIdentityClaim(ctx, block, action)
	default:
		return tcerr.New(tcerr.InvalidArgument, "unknown nature %s", block.Nature)
	}
}

func (v *Verifier) verifyTrustchainCreation(block *trustchain.Block, action trustchain.Action) error {
	tcc := action.(*trustchain.TrustchainCreation)

	if !block.Hash().Equal(crypto.Hash(v.trustchainID)) {
		return tcerr.VerificationFailedf(tcerr.InvalidHash, "root block hash must equal the trustchain id")
	}
	if !block.Author.IsZero() || !block.Signature.IsZero() {
		return tcerr.VerificationFailedf(tcerr.InvalidAuthor, "root block author and signature must be zero")
	}
	if !tcc.PublicSignatureKey.Equal(v.trustchainPublicKey) {
		return tcerr.VerificationFailedf(tcerr.InvalidSignature, "root block public signature key must equal the configured trustchain key")
	}
	return nil
}

// authorDevice resolves block.Author as a device id and fetches the
// known device, failing with InvalidAuthor if it's missing or revoked at
// or before block.Index.
func (v *Verifier) authorDevice(ctx context.Context, block *trustchain.Block) (*store.Device, error) {
	authorID := crypto.DeviceIDFromHash(block.Author)
	device, err := v.store.Contacts().FindDevice(ctx, authorID)
	if err != nil {
		return nil, tcerr.VerificationFailedf(tcerr.InvalidAuthor, "author device %s not found", authorID)
	}
	if device.RevokedBefore(block.Index) {
		return nil, tcerr.VerificationFailedf(tcerr.InvalidAuthor, "author device %s is revoked", authorID)
	}
	return device, nil
}

func deviceCreationCommonFields(a trustchain.Action) (eph crypto.PublicSignatureKey, userID crypto.UserID, delegationSig crypto.Signature, ok bool) {
	switch v := a.(type) {
	case *trustchain.DeviceCreation:
		return v.EphemeralPublicSignatureKey, v.UserID, v.DelegationSignature, true
	case *trustchain.DeviceCreation3:
		return v.EphemeralPublicSignatureKey, v.UserID, v.DelegationSignature, true
	}
	return crypto.PublicSignatureKey{}, crypto.UserID{}, crypto.Signature{}, false
}

// delegationMessage is the payload the delegation signature signs:
// ephemeral_pub_sig ‖ user_id.
func delegationMessage(eph crypto.PublicSignatureKey, userID crypto.UserID) []byte {
	return append(append([]byte{}, eph[:]...), userID[:]...)
}

func (v *Verifier) verifyDeviceCreation(ctx context.Context, block *trustchain.Block, action trustchain.Action) error {
	eph, userID, delegationSig, ok := deviceCreationCommonFields(action)
	if !ok {
		return tcerr.New(tcerr.InternalError, "unreachable: non-device-creation action in verifyDeviceCreation")
	}

	if !crypto.Verify(block.Hash().Bytes(), block.Signature, eph) {
		return tcerr.VerificationFailedf(tcerr.InvalidSignature, "device creation block must be signed by the ephemeral key")
	}

	authoredByTrustchain := block.Author.Equal(crypto.Hash(v.trustchainID))

	var delegatorKey crypto.PublicSignatureKey
	if authoredByTrustchain {
		delegatorKey = v.trustchainPublicKey
	} else {
		author, err := v.authorDevice(ctx, block)
		if err != nil {
			return err
		}
		delegatorKey = author.PublicSignatureKey
	}
	if !crypto.Verify(delegationMessage(eph, userID), delegationSig, delegatorKey) {
		return tcerr.VerificationFailedf(tcerr.InvalidDelegationSignature, "delegation signature must be signed by the author's key")
	}

	existing, err := v.store.Contacts().FindUser(ctx, userID)
	userExists := err == nil

	if authoredByTrustchain && userExists {
		return tcerr.VerificationFailedf(tcerr.UserAlreadyExists, "user %s already has a first device", userID)
	}

	if userExists {
		if dc3, is3 := action.(*trustchain.DeviceCreation3); is3 {
			if existing.UserPubEnc == nil || !existing.UserPubEnc.Equal(dc3.UserKeyPair.PublicEncryptionKey) {
				return tcerr.VerificationFailedf(tcerr.InvalidUserKey, "device creation v3 must carry the user's current user key")
			}
		} else if existing.UserPubEnc != nil {
			return tcerr.VerificationFailedf(tcerr.InvalidUserKey, "device creation v1 rejected for a user that already has a user key")
		}
	}

	return nil
}

func (v *Verifier) verifyKeyPublish(ctx context.Context, block *trustchain.Block, action trustchain.Action) error {
	author, err := v.authorDevice(ctx, block)
	if err != nil {
		return err
	}
	if !crypto.Verify(block.Hash().Bytes(), block.Signature, author.PublicSignatureKey) {
		return tcerr.VerificationFailedf(tcerr.InvalidSignature, "key publish entry must be signed by the author device")
	}

	switch a := action.(type) {
	case *trustchain.KeyPublishToDevice:
		recipientUserID, err := v.store.Contacts().FindUserIDByDevice(ctx, a.RecipientDeviceID)
		if err != nil {
			return tcerr.VerificationFailedf(tcerr.InvalidTargetDevice, "key publish to unknown device %s", a.RecipientDeviceID)
		}
		recipient, err := v.store.Contacts().FindUser(ctx, recipientUserID)
		if err == nil && recipient.UserPubEnc != nil {
			return tcerr.VerificationFailedf(tcerr.InvalidUserKey, "key publish to device rejected: recipient user already has a user key")
		}
	case *trustchain.KeyPublishToUserGroup:
		if _, err := v.store.Groups().FindByPublicEncryptionKey(ctx, a.RecipientGroupPublicEncryptionKey); err != nil {
			return tcerr.VerificationFailedf(tcerr.InvalidGroup, "key publish to unknown group")
		}
	}
	return nil
}

func (v *Verifier) verifyDeviceRevocation(ctx context.Context, block *trustchain.Block, action trustchain.Action) error {
	author, err := v.authorDevice(ctx, block)
	if err != nil {
		return err
	}
	if !crypto.Verify(block.Hash().Bytes(), block.Signature, author.PublicSignatureKey) {
		return tcerr.VerificationFailedf(tcerr.InvalidSignature, "device revocation entry must be signed by the author device")
	}

	var targetID crypto.DeviceID
	switch a := action.(type) {
	case *trustchain.DeviceRevocation:
		targetID = a.TargetDeviceID
	case *trustchain.DeviceRevocation2:
		targetID = a.TargetDeviceID
	}

	target, err := v.store.Contacts().FindDevice(ctx, targetID)
	if err != nil {
		return tcerr.VerificationFailedf(tcerr.InvalidTargetDevice, "revocation target %s not found", targetID)
	}
	if !target.UserID.Equal(author.UserID) {
		return tcerr.VerificationFailedf(tcerr.InvalidTargetDevice, "revocation author and target must belong to the same user")
	}
	if target.Revoked() {
		return tcerr.VerificationFailedf(tcerr.InvalidTargetDevice, "device %s is already revoked", targetID)
	}
	return nil
}

func (v *Verifier) verifyUserGroupCreation(ctx context.Context, block *trustchain.Block, action trustchain.Action) error {
	author, err := v.authorDevice(ctx, block)
	if err != nil {
		return err
	}
	if !crypto.Verify(block.Hash().Bytes(), block.Signature, author.PublicSignatureKey) {
		return tcerr.VerificationFailedf(tcerr.InvalidSignature, "group creation entry must be signed by the author device")
	}

	var groupPubSig crypto.PublicSignatureKey
	var groupPubEnc crypto.PublicEncryptionKey
	var selfSig crypto.Signature
	switch a := action.(type) {
	case *trustchain.UserGroupCreation:
		groupPubSig, groupPubEnc, selfSig = a.PublicSignatureKey, a.PublicEncryptionKey, a.SelfSignature
	case *trustchain.UserGroupCreation2:
		groupPubSig, groupPubEnc, selfSig = a.PublicSignatureKey, a.PublicEncryptionKey, a.SelfSignature
	}

	signed := trustchain.GroupCreationSignedMessage(action)
	if !crypto.Verify(signed, selfSig, groupPubSig) {
		return tcerr.VerificationFailedf(tcerr.InvalidGroup, "group self-signature must verify under the group's public signature key")
	}

	if _, err := v.store.Groups().FindByPublicEncryptionKey(ctx, groupPubEnc); err == nil {
		return tcerr.VerificationFailedf(tcerr.InvalidGroup, "a group with this public encryption key already exists")
	}
	return nil
}

func (v *Verifier) verifyUserGroupAddition(ctx context.Context, block *trustchain.Block, action trustchain.Action) error {
	author, err := v.authorDevice(ctx, block)
	if err != nil {
		return err
	}
	if !crypto.Verify(block.Hash().Bytes(), block.Signature, author.PublicSignatureKey) {
		return tcerr.VerificationFailedf(tcerr.InvalidSignature, "group addition entry must be signed by the author device")
	}

	var groupID crypto.GroupID
	var previousHash crypto.Hash
	var selfSig crypto.Signature
	switch a := action.(type) {
	case *trustchain.UserGroupAddition:
		groupID, previousHash, selfSig = a.GroupID, a.PreviousGroupBlockHash, a.SelfSignature
	case *trustchain.UserGroupAddition2:
		groupID, previousHash, selfSig = a.GroupID, a.PreviousGroupBlockHash, a.SelfSignature
	}

	group, err := v.store.Groups().FindByID(ctx, groupID)
	if err != nil {
		return tcerr.VerificationFailedf(tcerr.InvalidGroup, "group addition references unknown group %s", groupID)
	}
	if !previousHash.Equal(group.LastBlockHash) {
		return tcerr.VerificationFailedf(tcerr.InvalidGroup, "group addition's previous block hash is stale")
	}

	signed := trustchain.GroupAdditionSignedMessage(action)
	if !crypto.Verify(signed, selfSig, group.PublicSignatureKey) {
		return tcerr.VerificationFailedf(tcerr.InvalidSignature, "group addition self-signature must verify under the group's public signature key")
	}
	return nil
}

func (v *Verifier) verifyProvisionalIdentityClaim(ctx context.Context, block *trustchain.Block, action trustchain.Action) error {
	claim := action.(*trustchain.ProvisionalIdentityClaim)

	authorDeviceID := crypto.DeviceIDFromHash(block.Author)
	msg := trustchain.ClaimAuthenticatedMessage(authorDeviceID, claim.AppPublicSignatureKey, claim.ServerPublicSignatureKey)

	if !crypto.Verify(msg, claim.AppSignature, claim.AppPublicSignatureKey) {
		return tcerr.VerificationFailedf(tcerr.InvalidSignature, "provisional claim's app signature is invalid")
	}
	if !crypto.Verify(msg, claim.ServerSignature, claim.ServerPublicSignatureKey) {
		return tcerr.VerificationFailedf(tcerr.InvalidSignature, "provisional claim's server signature is invalid")
	}

	authorUserID, err := v.store.Contacts().FindUserIDByDevice(ctx, authorDeviceID)
	if err != nil {
		return tcerr.VerificationFailedf(tcerr.InvalidAuthor, "provisional claim's author device %s not found", authorDeviceID)
	}
	if !claim.UserID.Equal(authorUserID) {
		return tcerr.VerificationFailedf(tcerr.InvalidUserID, "provisional claim's user id must match the author device's user")
	}

	user, err := v.store.Contacts().FindUser(ctx, authorUserID)
	if err != nil || user.UserPubEnc == nil || !user.UserPubEnc.Equal(claim.UserPublicEncryptionKey) {
		return tcerr.VerificationFailedf(tcerr.InvalidUserKeys, "provisional claim's user public encryption key must match the user's current key")
	}
	return nil
}
