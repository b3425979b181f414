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

package groups_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/groups"
	"github.com/blockspacer/trustchain-go/keys"
	"github.com/blockspacer/trustchain-go/store"
	"github.com/blockspacer/trustchain-go/store/memory"
	"github.com/blockspacer/trustchain-go/tcerr"
	"github.com/blockspacer/trustchain-go/trustchain"
)

func newUser(t *testing.T, s *memory.Store, id crypto.UserID) crypto.EncryptionKeyPair {
	t.Helper()
	kp, err := crypto.NewEncryptionKeyPair()
	require.NoError(t, err)
	require.NoError(t, s.Contacts().PutUserDevice(context.Background(), id, store.Device{
		ID:     crypto.DeviceID(id),
		UserID: id,
	}))
	require.NoError(t, s.Contacts().PutUserKey(context.Background(), id, kp.Public))
	return kp
}

func TestCreateGroupSignsAndSealsForEachMember(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	bobID := crypto.UserID{1}
	bobKP := newUser(t, s, bobID)
	carolID := crypto.UserID{2}
	carolKP := newUser(t, s, carolID)

	e := groups.New(s, nil)
	created, err := e.CreateGroup(ctx, []keys.Identity{
		{ClearID: "bob", UserID: &bobID},
		{ClearID: "carol", UserID: &carolID},
	})
	require.NoError(t, err)
	require.Len(t, created.Action.Members, 2)

	assert.True(t, crypto.Verify(trustchain.GroupCreationSignedMessage(created.Action), created.Action.SelfSignature, created.PublicSignatureKey))

	for _, m := range created.Action.Members {
		var priv crypto.PrivateEncryptionKey
		switch m.UserPublicEncryptionKey {
		case bobKP.Public:
			priv = bobKP.Private
		case carolKP.Public:
			priv = carolKP.Private
		default:
			t.Fatalf("unexpected member key")
		}
		plain, err := crypto.SealDecrypt([]byte(m.SealedGroupPrivateEncKey), m.UserPublicEncryptionKey, priv)
		require.NoError(t, err)
		gotPriv, err := crypto.PrivateEncryptionKeyFromBytes(plain)
		require.NoError(t, err)
		assert.Equal(t, created.PrivateEncryptionKey, gotPriv)
	}
}

func TestCreateGroupRejectsEmptyMembership(t *testing.T) {
	e := groups.New(memory.New(), nil)
	_, err := e.CreateGroup(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, tcerr.InvalidGroupSize, tcerr.Of(err))
}

func TestCreateGroupRejectsOversizedMembership(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	var members []keys.Identity
	for i := 0; i < groups.MaxGroupSize+1; i++ {
		id := crypto.UserID{byte(i), byte(i >> 8)}
		newUser(t, s, id)
		members = append(members, keys.Identity{ClearID: id.String(), UserID: &id})
	}
	e := groups.New(s, nil)
	_, err := e.CreateGroup(ctx, members)
	require.Error(t, err)
	assert.Equal(t, tcerr.InvalidGroupSize, tcerr.Of(err))
}

func TestCreateGroupMissingMemberFailsUserNotFound(t *testing.T) {
	e := groups.New(memory.New(), nil)
	missing := crypto.UserID{9}
	_, err := e.CreateGroup(context.Background(), []keys.Identity{{ClearID: "nobody", UserID: &missing}})
	require.Error(t, err)
	assert.Equal(t, tcerr.UserNotFound, tcerr.Of(err))
}

func TestAddMembersRequiresInternalGroup(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	groupID := crypto.GroupID{1}
	require.NoError(t, s.Groups().Put(ctx, store.Group{ID: groupID, IsMember: false}))

	e := groups.New(s, nil)
	bobID := crypto.UserID{3}
	newUser(t, s, bobID)
	_, err := e.AddMembers(ctx, groupID, []keys.Identity{{ClearID: "bob", UserID: &bobID}})
	require.Error(t, err)
	assert.Equal(t, tcerr.PreconditionFailed, tcerr.Of(err))
}

func TestAddMembersThreadsLastBlockHashAndSelfSigns(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	groupSigKP, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)
	groupEncKP, err := crypto.NewEncryptionKeyPair()
	require.NoError(t, err)
	groupID := crypto.GroupID(groupSigKP.Public)
	lastHash := crypto.Hash{7}
	require.NoError(t, s.Groups().Put(ctx, store.Group{
		ID:                   groupID,
		PublicSignatureKey:   groupSigKP.Public,
		PublicEncryptionKey:  groupEncKP.Public,
		IsMember:             true,
		PrivateSignatureKey:  groupSigKP.Private,
		PrivateEncryptionKey: groupEncKP.Private,
		LastBlockHash:        lastHash,
		LastBlockIndex:       3,
	}))

	daveID := crypto.UserID{4}
	daveKP := newUser(t, s, daveID)

	e := groups.New(s, nil)
	action, err := e.AddMembers(ctx, groupID, []keys.Identity{{ClearID: "dave", UserID: &daveID}})
	require.NoError(t, err)
	assert.Equal(t, lastHash, action.PreviousGroupBlockHash)
	assert.True(t, crypto.Verify(trustchain.GroupAdditionSignedMessage(action), action.SelfSignature, groupSigKP.Public))
	require.Len(t, action.Members, 1)

	plain, err := crypto.SealDecrypt([]byte(action.Members[0].SealedGroupPrivateEncKey), daveKP.Public, daveKP.Private)
	require.NoError(t, err)
	gotPriv, err := crypto.PrivateEncryptionKeyFromBytes(plain)
	require.NoError(t, err)
	assert.Equal(t, groupEncKP.Private, gotPriv)
}

func TestDiffMembersExcludesCurrentUsers(t *testing.T) {
	bobID := crypto.UserID{1}
	carolID := crypto.UserID{2}
	target := []keys.Identity{
		{ClearID: "bob", UserID: &bobID},
		{ClearID: "carol", UserID: &carolID},
	}
	added := groups.DiffMembers([]crypto.UserID{bobID}, target)
	require.Len(t, added, 1)
	assert.Equal(t, "carol", added[0].ClearID)
}

func TestPromoteProvisionalMemberPromotesExternalGroup(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	groupSigKP, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)
	groupEncKP, err := crypto.NewEncryptionKeyPair()
	require.NoError(t, err)
	groupID := crypto.GroupID(groupSigKP.Public)

	appKP, err := crypto.NewEncryptionKeyPair()
	require.NoError(t, err)
	serverKP, err := crypto.NewEncryptionKeyPair()
	require.NoError(t, err)
	appSigKP, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)
	serverSigKP, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)

	sealedPrivSig := crypto.SealEncrypt(groupSigKP.Private.Bytes(), groupEncKP.Public)
	require.NoError(t, s.Groups().Put(ctx, store.Group{
		ID:                        groupID,
		PublicSignatureKey:        groupSigKP.Public,
		PublicEncryptionKey:       groupEncKP.Public,
		IsMember:                  false,
		SealedPrivateSignatureKey: crypto.SealedPrivateSignatureKey(sealedPrivSig),
	}))

	serverSealed := crypto.SealEncrypt(groupEncKP.Private.Bytes(), serverKP.Public)
	twiceSealed := crypto.SealEncrypt(serverSealed, appKP.Public)
	require.NoError(t, s.Groups().PutProvisionalKeys(ctx, groupID, []store.ProvisionalGroupKeys{{
		GroupID:                  groupID,
		AppPublicSignatureKey:    appSigKP.Public,
		ServerPublicSignatureKey: serverSigKP.Public,
		TwoTimesSealedPrivateKey: crypto.TwoTimesSealedSymmetricKey(twiceSealed),
	}}))

	e := groups.New(s, nil)
	promoted, err := e.PromoteProvisionalMember(ctx, groupID, store.ProvisionalUserKeyPair{
		AppPublicSignatureKey:    appSigKP.Public,
		ServerPublicSignatureKey: serverSigKP.Public,
		AppEncryptionKeyPair:     store.LocalUserKeyPair{Public: appKP.Public, Private: appKP.Private},
		ServerEncryptionKeyPair:  store.LocalUserKeyPair{Public: serverKP.Public, Private: serverKP.Private},
	})
	require.NoError(t, err)
	assert.True(t, promoted)

	group, err := s.Groups().FindByID(ctx, groupID)
	require.NoError(t, err)
	assert.True(t, group.IsMember)
	assert.Equal(t, groupEncKP.Private, group.PrivateEncryptionKey)
	assert.Equal(t, groupSigKP.Private, group.PrivateSignatureKey)
}

func TestPromoteProvisionalMemberNoMatchReturnsFalse(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	groupID := crypto.GroupID{5}
	require.NoError(t, s.Groups().Put(ctx, store.Group{ID: groupID, IsMember: false}))

	e := groups.New(s, nil)
	promoted, err := e.PromoteProvisionalMember(ctx, groupID, store.ProvisionalUserKeyPair{})
	require.NoError(t, err)
	assert.False(t, promoted)
}
