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

// Package puller implements the catch-up puller and applier (spec §4.7):
// it fetches entries strictly after the last known index, verifies each
// one with verify.Verifier, adds it to the trustchain index, and applies
// it to the local store, firing handler hooks along the way.
package puller

import (
	"context"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/store"
	"github.com/blockspacer/trustchain-go/tcerr"
	"github.com/blockspacer/trustchain-go/trustchain"
	"github.com/blockspacer/trustchain-go/verify"
)

// Request describes a catch-up call: every entry strictly after LastIndex,
// plus whatever explicit sub-queries the caller needs resolved in the same
// round trip (spec §4.7 "Protocol").
type Request struct {
	LastIndex        uint64
	ExtraUserIDs     []crypto.UserID
	ExtraGroupIDs    []crypto.GroupID
	ExtraResourceIDs []crypto.ResourceID
}

// Fetcher is the transport-facing dependency this package pulls through;
// the transport package implements it over the session's websocket/http
// connection. Kept as a narrow interface here so puller has no import
// dependency on transport's wire framing.
type Fetcher interface {
	CatchUp(ctx context.Context, req Request) ([]*trustchain.Block, error)
}

// Handlers are the notification hooks fired while applying a catch-up
// (spec §4.7). Any field left nil is simply not called.
type Handlers struct {
	ReceivedThisDeviceID       func(ctx context.Context, deviceID crypto.DeviceID)
	DeviceCreated              func(ctx context.Context, deviceID crypto.DeviceID)
	DeviceRevoked              func(ctx context.Context, deviceID crypto.DeviceID)
	KeyToDeviceReceived        func(ctx context.Context, resourceID crypto.ResourceID)
	UserGroupActionReceived    func(ctx context.Context, groupID crypto.GroupID)
	ProvisionalIdentityClaimed func(ctx context.Context, userID crypto.UserID)
}

// Puller owns the single in-flight catch-up job for one session; concurrent
// callers coalesce onto it via singleflight (spec §4.7 "Scheduling model").
type Puller struct {
	store    store.Store
	verifier *verify.Verifier
	fetcher  Fetcher
	handlers Handlers
	sf       singleflight.Group
}

func New(s store.Store, v *verify.Verifier, fetcher Fetcher, handlers Handlers) *Puller {
	return &Puller{store: s, verifier: v, fetcher: fetcher, handlers: handlers}
}

// CatchUp pulls and applies every entry after the locally known last index,
// plus optional extra lookups. Concurrent calls share one in-flight request
// (spec §4.7).
func (p *Puller) CatchUp(ctx context.Context, extraUsers []crypto.UserID, extraGroups []crypto.GroupID) error {
	_, err, _ := p.sf.Do("catch_up", func() (any, error) {
		return nil, p.catchUp(ctx, extraUsers, extraGroups)
	})
	return err
}

func (p *Puller) catchUp(ctx context.Context, extraUsers []crypto.UserID, extraGroups []crypto.GroupID) error {
	lastIndex, err := p.store.Trustchain().LastIndex(ctx)
	if err != nil {
		return err
	}

	entries, err := p.fetcher.CatchUp(ctx, Request{
		LastIndex:     lastIndex,
		ExtraUserIDs:  extraUsers,
		ExtraGroupIDs: extraGroups,
	})
	if err != nil {
		return tcerr.Wrap(tcerr.NetworkError, err, "catch up")
	}

	return p.applyBlocks(ctx, entries)
}

// ApplyFetched verifies, indexes and applies blocks obtained outside the
// regular catch-up round trip — a KeyFetcher's out-of-band "get key
// publishes" response, say — through the same pipeline as CatchUp (spec
// §4.7, §4.8 "round trip to the server for a fresh key-publish entry").
// Blocks already present in the index are skipped, without being verified
// again, rather than erroring, since a key-publish fetch may race an
// ordinary catch-up.
func (p *Puller) ApplyFetched(ctx context.Context, blocks []*trustchain.Block) error {
	_, err, _ := p.sf.Do("catch_up", func() (any, error) {
		return nil, p.applyBlocks(ctx, blocks)
	})
	return err
}

func (p *Puller) applyBlocks(ctx context.Context, entries []*trustchain.Block) error {
	for _, block := range entries {
		// A suspension point: the session canceler stops us here, never
		// mid-verification of a single entry (spec §4.7 "Cancellation").
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := p.store.Trustchain().FindByHash(ctx, block.Hash()); err == nil {
			continue
		}

		if err := p.verifier.Verify(ctx, block); err != nil {
			log.Warn().Err(err).Stringer("nature", block.Nature).Msg("rejected trustchain entry")
			return err
		}

		action, err := block.Action()
		if err != nil {
			return err
		}

		if err := p.store.Trustchain().AddEntry(ctx, store.IndexEntry{
			Hash:    block.Hash(),
			Index:   block.Index,
			Nature:  block.Nature,
			Author:  block.Author,
			Payload: block.Payload,
		}); err != nil {
			return err
		}

		if err := p.apply(ctx, block, action); err != nil {
			return err
		}
	}
	return nil
}

func (p *Puller) apply(ctx context.Context, block *trustchain.Block, action trustchain.Action) error {
	switch {
	case block.Nature.IsDeviceCreation():
		return p.applyDeviceCreation(ctx, block, action)
	case block.Nature.IsKeyPublish():
		return p.applyKeyPublish(ctx, action)
	case block.Nature.IsDeviceRevocation():
		return p.applyDeviceRevocation(ctx, block, action)
	case block.Nature.IsUserGroupCreation():
		return p.applyUserGroupCreation(ctx, block, action)
	case block.Nature.IsUserGroupAddition():
		return p.applyUserGroupAddition(ctx, block, action)
	case block.Nature == trustchain.NatureProvisionalIdentityClaim:
		return p.applyProvisionalIdentityClaim(ctx, action)
	default:
		// NatureTrustchainCreation: nothing beyond indexing it.
		return nil
	}
}

// thisDeviceID reports this session's own device id, if it has been set
// yet. Before our own DeviceCreation entry round-trips through catch-up,
// the session already knows it locally (it signed the block itself), so
// this is set ahead of time.
func (p *Puller) thisDeviceID(ctx context.Context) (crypto.DeviceID, bool) {
	id, err := p.store.LocalUser().DeviceID(ctx)
	return id, err == nil
}

// rotateUserKey decrypts a user private encryption key sealed to this
// device's own encryption keypair and stores the resulting generation.
func (p *Puller) rotateUserKey(ctx context.Context, newPub crypto.PublicEncryptionKey, sealed []byte) error {
	_, ourPrivEnc, err := p.store.LocalUser().DeviceKeys(ctx)
	if err != nil {
		return err
	}
	ourKP, err := crypto.EncryptionKeyPairFromPrivate(ourPrivEnc)
	if err != nil {
		return err
	}
	plain, err := crypto.SealDecrypt(sealed, ourKP.Public, ourKP.Private)
	if err != nil {
		return tcerr.Wrap(tcerr.DecryptionFailed, err, "decrypt rotated user private key")
	}
	priv, err := crypto.PrivateEncryptionKeyFromBytes(plain)
	if err != nil {
		return err
	}
	return p.store.LocalUser().PutUserKeyPair(ctx, newPub, priv)
}

func (p *Puller) applyDeviceCreation(ctx context.Context, block *trustchain.Block, action trustchain.Action) error {
	deviceID := crypto.DeviceIDFromHash(block.Hash())

	var userID crypto.UserID
	var sigPub crypto.PublicSignatureKey
	var encPub crypto.PublicEncryptionKey
	isGhost := false

	switch a := action.(type) {
	case *trustchain.DeviceCreation:
		userID, sigPub, encPub = a.UserID, a.DevicePublicSignatureKey, a.DevicePublicEncryptionKey
	case *trustchain.DeviceCreation3:
		userID, sigPub, encPub = a.UserID, a.DevicePublicSignatureKey, a.DevicePublicEncryptionKey
		isGhost = a.IsGhostDevice
	}

	if err := p.store.Contacts().PutUserDevice(ctx, userID, store.Device{
		ID:                  deviceID,
		UserID:              userID,
		PublicSignatureKey:  sigPub,
		PublicEncryptionKey: encPub,
		CreatedAtIndex:      block.Index,
		IsGhost:             isGhost,
	}); err != nil {
		return err
	}

	dc3, isV3 := action.(*trustchain.DeviceCreation3)
	if isV3 {
		if err := p.store.Contacts().PutUserKey(ctx, userID, dc3.UserKeyPair.PublicEncryptionKey); err != nil {
			return err
		}
	}

	thisID, known := p.thisDeviceID(ctx)
	isOurs := known && thisID.Equal(deviceID)

	if isOurs {
		if isV3 {
			if err := p.rotateUserKey(ctx, dc3.UserKeyPair.PublicEncryptionKey, []byte(dc3.UserKeyPair.SealedPrivateKeyForDevice)); err != nil {
				return err
			}
		}
		if p.handlers.ReceivedThisDeviceID != nil {
			p.handlers.ReceivedThisDeviceID(ctx, deviceID)
		}
	}

	if p.handlers.DeviceCreated != nil {
		p.handlers.DeviceCreated(ctx, deviceID)
	}
	return nil
}

func (p *Puller) applyKeyPublish(ctx context.Context, action trustchain.Action) error {
	// Decryption is on-demand, driven by the keys package resolving a
	// specific resource id against the trustchain index; the applier only
	// needs to surface the notification (spec §4.7, §4.8).
	if resourceID, ok := trustchain.ResourceIDOf(action); ok && p.handlers.KeyToDeviceReceived != nil {
		p.handlers.KeyToDeviceReceived(ctx, resourceID)
	}
	return nil
}

func (p *Puller) applyDeviceRevocation(ctx context.Context, block *trustchain.Block, action trustchain.Action) error {
	var targetID crypto.DeviceID
	switch a := action.(type) {
	case *trustchain.DeviceRevocation:
		targetID = a.TargetDeviceID
	case *trustchain.DeviceRevocation2:
		targetID = a.TargetDeviceID
	}

	if err := p.store.Contacts().RevokeDevice(ctx, targetID, block.Index); err != nil {
		return err
	}

	thisID, known := p.thisDeviceID(ctx)
	targetIsUs := known && thisID.Equal(targetID)

	if dr2, isV2 := action.(*trustchain.DeviceRevocation2); isV2 {
		if userID, err := p.store.Contacts().FindUserIDByDevice(ctx, targetID); err == nil {
			if err := p.store.Contacts().PutUserKey(ctx, userID, dr2.NewUserPublicEncryptionKey); err != nil {
				return err
			}
		}

		if known {
			for _, entry := range dr2.SealedKeysForDevices {
				if !entry.DeviceID.Equal(thisID) {
					continue
				}
				if err := p.rotateUserKey(ctx, dr2.NewUserPublicEncryptionKey, []byte(entry.SealedNewUserPrivateEncKey)); err != nil {
					return err
				}
				break
			}
		}
	}

	if targetIsUs && p.handlers.DeviceRevoked != nil {
		p.handlers.DeviceRevoked(ctx, targetID)
	}
	return nil
}

// tryDecryptGroupKey looks for a member entry sealed to any key generation
// this device's local user has ever held, and returns the group's private
// encryption key if one unseals.
func (p *Puller) tryDecryptGroupKey(ctx context.Context, members []trustchain.GroupMember) (crypto.PrivateEncryptionKey, bool, error) {
	kps, err := p.store.LocalUser().ListKeyPairs(ctx)
	if err != nil {
		return crypto.PrivateEncryptionKey{}, false, err
	}
	for _, m := range members {
		for _, kp := range kps {
			if !kp.Public.Equal(m.UserPublicEncryptionKey) {
				continue
			}
			plain, err := crypto.SealDecrypt([]byte(m.SealedGroupPrivateEncKey), kp.Public, kp.Private)
			if err != nil {
				continue
			}
			priv, err := crypto.PrivateEncryptionKeyFromBytes(plain)
			if err != nil {
				continue
			}
			return priv, true, nil
		}
	}
	return crypto.PrivateEncryptionKey{}, false, nil
}

// decryptGroupPrivateSignatureKey opens the group's private signature key,
// which is sealed once under the group's own public encryption key rather
// than individually per member (so any member who can derive privEnc can
// also open this).
func decryptGroupPrivateSignatureKey(pubEnc crypto.PublicEncryptionKey, privEnc crypto.PrivateEncryptionKey, sealed []byte) (crypto.PrivateSignatureKey, error) {
	plain, err := crypto.SealDecrypt(sealed, pubEnc, privEnc)
	if err != nil {
		return crypto.PrivateSignatureKey{}, tcerr.Wrap(tcerr.DecryptionFailed, err, "decrypt group private signature key")
	}
	return crypto.PrivateSignatureKeyFromBytes(plain)
}

func provisionalGroupKeyEntries(groupID crypto.GroupID, provMembers []trustchain.GroupProvisionalMember) []store.ProvisionalGroupKeys {
	if len(provMembers) == 0 {
		return nil
	}
	entries := make([]store.ProvisionalGroupKeys, 0, len(provMembers))
	for _, m := range provMembers {
		entries = append(entries, store.ProvisionalGroupKeys{
			GroupID:                  groupID,
			AppPublicSignatureKey:    m.AppPublicSignatureKey,
			ServerPublicSignatureKey: m.ServerPublicSignatureKey,
			TwoTimesSealedPrivateKey: m.TwoTimesSealedGroupPrivEnc,
		})
	}
	return entries
}

func (p *Puller) applyUserGroupCreation(ctx context.Context, block *trustchain.Block, action trustchain.Action) error {
	var pubSig crypto.PublicSignatureKey
	var pubEnc crypto.PublicEncryptionKey
	var sealedPrivSig crypto.SealedPrivateSignatureKey
	var members []trustchain.GroupMember
	var provMembers []trustchain.GroupProvisionalMember

	switch a := action.(type) {
	case *trustchain.UserGroupCreation:
		pubSig, pubEnc, sealedPrivSig, members = a.PublicSignatureKey, a.PublicEncryptionKey, a.SealedPrivateSignatureKeyForGroup, a.Members
	case *trustchain.UserGroupCreation2:
		pubSig, pubEnc, sealedPrivSig = a.PublicSignatureKey, a.PublicEncryptionKey, a.SealedPrivateSignatureKeyForGroup
		members, provMembers = a.Members, a.ProvisionalMembers
	}

	groupID := crypto.GroupID(pubSig)
	group := store.Group{
		ID:                        groupID,
		PublicSignatureKey:        pubSig,
		PublicEncryptionKey:       pubEnc,
		SealedPrivateSignatureKey: crypto.SealedPrivateSignatureKey(append([]byte(nil), sealedPrivSig...)),
		LastBlockHash:             block.Hash(),
		LastBlockIndex:            block.Index,
	}

	if privEnc, ok, err := p.tryDecryptGroupKey(ctx, members); err != nil {
		return err
	} else if ok {
		privSig, err := decryptGroupPrivateSignatureKey(pubEnc, privEnc, []byte(sealedPrivSig))
		if err != nil {
			return err
		}
		group.IsMember = true
		group.PrivateEncryptionKey = privEnc
		group.PrivateSignatureKey = privSig
	}

	if err := p.store.Groups().Put(ctx, group); err != nil {
		return err
	}

	if entries := provisionalGroupKeyEntries(groupID, provMembers); entries != nil {
		if err := p.store.Groups().PutProvisionalKeys(ctx, groupID, entries); err != nil {
			return err
		}
	}

	if p.handlers.UserGroupActionReceived != nil {
		p.handlers.UserGroupActionReceived(ctx, groupID)
	}
	return nil
}

func (p *Puller) applyUserGroupAddition(ctx context.Context, block *trustchain.Block, action trustchain.Action) error {
	var groupID crypto.GroupID
	var members []trustchain.GroupMember
	var provMembers []trustchain.GroupProvisionalMember

	switch a := action.(type) {
	case *trustchain.UserGroupAddition:
		groupID, members = a.GroupID, a.Members
	case *trustchain.UserGroupAddition2:
		groupID, members, provMembers = a.GroupID, a.Members, a.ProvisionalMembers
	}

	group, err := p.store.Groups().FindByID(ctx, groupID)
	if err == nil {
		if !group.IsMember {
			if privEnc, ok, derr := p.tryDecryptGroupKey(ctx, members); derr != nil {
				return derr
			} else if ok {
				privSig, derr := decryptGroupPrivateSignatureKey(group.PublicEncryptionKey, privEnc, []byte(group.SealedPrivateSignatureKey))
				if derr != nil {
					return derr
				}
				group.IsMember = true
				group.PrivateEncryptionKey = privEnc
				group.PrivateSignatureKey = privSig
				if err := p.store.Groups().Put(ctx, *group); err != nil {
					return err
				}
			}
		}
		if err := p.store.Groups().UpdateLastBlock(ctx, groupID, block.Hash(), block.Index); err != nil {
			return err
		}
		if entries := provisionalGroupKeyEntries(groupID, provMembers); entries != nil {
			if err := p.store.Groups().PutProvisionalKeys(ctx, groupID, entries); err != nil {
				return err
			}
		}
	}

	if p.handlers.UserGroupActionReceived != nil {
		p.handlers.UserGroupActionReceived(ctx, groupID)
	}
	return nil
}

func (p *Puller) applyProvisionalIdentityClaim(ctx context.Context, action trustchain.Action) error {
	claim := action.(*trustchain.ProvisionalIdentityClaim)

	if err := p.store.Contacts().PutUserKey(ctx, claim.UserID, claim.UserPublicEncryptionKey); err != nil {
		return err
	}

	if p.handlers.ProvisionalIdentityClaimed != nil {
		p.handlers.ProvisionalIdentityClaimed(ctx, claim.UserID)
	}
	return nil
}
