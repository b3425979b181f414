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

package keys_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockspacer/trustchain-go/crypto"
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

func TestGenerateRecipientListResolvesUsersAndGroups(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	bobID := crypto.UserID{1}
	bobKP := newUser(t, s, bobID)

	groupKP, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)
	groupEncKP, err := crypto.NewEncryptionKeyPair()
	require.NoError(t, err)
	groupID := crypto.GroupID(groupKP.Public)
	require.NoError(t, s.Groups().Put(ctx, store.Group{
		ID:                  groupID,
		PublicSignatureKey:  groupKP.Public,
		PublicEncryptionKey: groupEncKP.Public,
		IsMember:            true,
	}))

	e := keys.New(s, nil, nil)
	list, err := e.GenerateRecipientList(ctx, []keys.Identity{{ClearID: "bob", UserID: &bobID}}, []crypto.GroupID{groupID})
	require.NoError(t, err)
	require.Len(t, list.Users, 1)
	assert.Equal(t, bobKP.Public, list.Users[0].PublicEncryptionKey)
	require.Len(t, list.Groups, 1)
	assert.Equal(t, groupEncKP.Public, list.Groups[0].PublicEncryptionKey)
}

func TestGenerateRecipientListMissingUserFailsRecipientNotFound(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := keys.New(s, nil, nil)

	missingID := crypto.UserID{9, 9}
	_, err := e.GenerateRecipientList(ctx, []keys.Identity{{ClearID: "charlie", UserID: &missingID}}, nil)
	require.Error(t, err)
	assert.Equal(t, tcerr.RecipientNotFound, tcerr.Of(err))
}

func TestGenerateRecipientListMissingGroupFailsRecipientNotFound(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := keys.New(s, nil, nil)

	_, err := e.GenerateRecipientList(ctx, nil, []crypto.GroupID{{7}})
	require.Error(t, err)
	assert.Equal(t, tcerr.RecipientNotFound, tcerr.Of(err))
}

func TestGenerateRecipientListProvisionalWithoutResolverFails(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := keys.New(s, nil, nil)

	email := "alice@example.com"
	_, err := e.GenerateRecipientList(ctx, []keys.Identity{{ClearID: email, HashedEmail: &email}}, nil)
	require.Error(t, err)
	assert.Equal(t, tcerr.RecipientNotFound, tcerr.Of(err))
}

type fakeResolver struct {
	byHash map[string]keys.ProvisionalIdentity
}

func (f *fakeResolver) ResolveProvisionalIdentities(ctx context.Context, hashed []string) (map[string]keys.ProvisionalIdentity, error) {
	out := make(map[string]keys.ProvisionalIdentity)
	for _, h := range hashed {
		if p, ok := f.byHash[h]; ok {
			out[h] = p
		}
	}
	return out, nil
}

func TestShareToUserRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	bobID := crypto.UserID{2}
	bobKP := newUser(t, s, bobID)

	e := keys.New(s, nil, nil)
	list, err := e.GenerateRecipientList(ctx, []keys.Identity{{ClearID: "bob", UserID: &bobID}}, nil)
	require.NoError(t, err)

	var resourceID crypto.ResourceID
	require.NoError(t, crypto.RandomFill(resourceID[:]))
	key, err := crypto.NewSymmetricKey()
	require.NoError(t, err)

	actions := keys.BuildKeyPublishActions(resourceID, key, list)
	require.Len(t, actions, 1)
	kp, ok := actions[0].(*trustchain.KeyPublishToUser)
	require.True(t, ok)

	plain, err := crypto.SealDecrypt([]byte(kp.SealedSymmetricKey), bobKP.Public, bobKP.Private)
	require.NoError(t, err)
	gotKey, err := crypto.SymmetricKeyFromBytes(plain)
	require.NoError(t, err)
	assert.Equal(t, key, gotKey)
}

func TestShareToProvisionalUserRoundTrip(t *testing.T) {
	appKP, err := crypto.NewEncryptionKeyPair()
	require.NoError(t, err)
	serverKP, err := crypto.NewEncryptionKeyPair()
	require.NoError(t, err)
	appSigKP, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)
	serverSigKP, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)

	ctx := context.Background()
	s := memory.New()
	resolver := &fakeResolver{byHash: map[string]keys.ProvisionalIdentity{
		"hashed-alice": {
			AppPublicSignatureKey:     appSigKP.Public,
			ServerPublicSignatureKey:  serverSigKP.Public,
			AppPublicEncryptionKey:    appKP.Public,
			ServerPublicEncryptionKey: serverKP.Public,
		},
	}}
	e := keys.New(s, resolver, nil)
	email := "hashed-alice"
	list, err := e.GenerateRecipientList(ctx, []keys.Identity{{ClearID: "alice@example.com", HashedEmail: &email}}, nil)
	require.NoError(t, err)
	require.Len(t, list.Provisional, 1)

	var resourceID crypto.ResourceID
	require.NoError(t, crypto.RandomFill(resourceID[:]))
	key, err := crypto.NewSymmetricKey()
	require.NoError(t, err)

	actions := keys.BuildKeyPublishActions(resourceID, key, list)
	require.Len(t, actions, 1)
	kp := actions[0].(*trustchain.KeyPublishToProvisionalUser)

	require.NoError(t, s.ProvisionalUserKeys().Put(ctx, store.ProvisionalUserKeyPair{
		AppPublicSignatureKey:    appSigKP.Public,
		ServerPublicSignatureKey: serverSigKP.Public,
		AppEncryptionKeyPair:     store.LocalUserKeyPair{Public: appKP.Public, Private: appKP.Private},
		ServerEncryptionKeyPair:  store.LocalUserKeyPair{Public: serverKP.Public, Private: serverKP.Private},
	}))

	require.NoError(t, s.Trustchain().AddEntry(ctx, store.IndexEntry{
		Hash:    crypto.Hash{1},
		Index:   1,
		Nature:  kp.Nature(),
		Payload: kp.Serialize(),
	}))

	e2 := keys.New(s, nil, nil)
	gotKey, err := e2.GetResourceKey(ctx, resourceID)
	require.NoError(t, err)
	assert.Equal(t, key, gotKey)
}

func TestGetResourceKeyPrefersLocalCache(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	var resourceID crypto.ResourceID
	require.NoError(t, crypto.RandomFill(resourceID[:]))
	key, err := crypto.NewSymmetricKey()
	require.NoError(t, err)
	require.NoError(t, s.ResourceKeys().Put(ctx, resourceID, key))

	e := keys.New(s, nil, nil)
	got, err := e.GetResourceKey(ctx, resourceID)
	require.NoError(t, err)
	assert.Equal(t, key, got)
}

func TestGetResourceKeyUnknownFailsResourceKeyNotFound(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	e := keys.New(s, nil, nil)

	var resourceID crypto.ResourceID
	require.NoError(t, crypto.RandomFill(resourceID[:]))
	_, err := e.GetResourceKey(ctx, resourceID)
	require.Error(t, err)
	assert.Equal(t, tcerr.ResourceKeyNotFound, tcerr.Of(err))
}
