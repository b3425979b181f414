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

package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/store"
	"github.com/blockspacer/trustchain-go/store/memory"
	"github.com/blockspacer/trustchain-go/tcerr"
)

func TestContactStorePutFind(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	userID := crypto.UserID{1}
	device := store.Device{ID: crypto.DeviceID{2}, UserID: userID}

	require.NoError(t, s.Contacts().PutUserDevice(ctx, userID, device))

	contact, err := s.Contacts().FindUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, contact.Devices, 1)
	assert.Equal(t, device.ID, contact.Devices[0].ID)

	foundUser, err := s.Contacts().FindUserIDByDevice(ctx, device.ID)
	require.NoError(t, err)
	assert.Equal(t, userID, foundUser)

	_, err = s.Contacts().FindUser(ctx, crypto.UserID{9})
	require.Error(t, err)
	assert.True(t, tcerr.Is(err, tcerr.UserNotFound))
}

func TestResourceKeyStoreKeepsFirst(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	rid := crypto.ResourceID{1}
	k1 := crypto.SymmetricKey{1}
	k2 := crypto.SymmetricKey{2}

	require.NoError(t, s.ResourceKeys().Put(ctx, rid, k1))
	require.NoError(t, s.ResourceKeys().Put(ctx, rid, k2))

	got, err := s.ResourceKeys().Get(ctx, rid)
	require.NoError(t, err)
	assert.Equal(t, k1, got)

	_, err = s.ResourceKeys().Get(ctx, crypto.ResourceID{9})
	require.Error(t, err)
	assert.True(t, tcerr.Is(err, tcerr.InvalidArgument))
}

func TestGroupStoreExternalDoesNotOverwriteInternal(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	groupID := crypto.GroupID{1}
	external := store.Group{ID: groupID, PublicEncryptionKey: crypto.PublicEncryptionKey{1}, IsMember: false}
	internal := store.Group{ID: groupID, PublicEncryptionKey: crypto.PublicEncryptionKey{1}, IsMember: true, PrivateSignatureKey: crypto.PrivateSignatureKey{9}}

	require.NoError(t, s.Groups().Put(ctx, internal))
	require.NoError(t, s.Groups().Put(ctx, external))

	got, err := s.Groups().FindByID(ctx, groupID)
	require.NoError(t, err)
	assert.True(t, got.IsMember, "external put must not overwrite an internal group")
}

func TestTrustchainIndexLastIndex(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	require.NoError(t, s.Trustchain().AddEntry(ctx, store.IndexEntry{Hash: crypto.Hash{1}, Index: 1}))
	require.NoError(t, s.Trustchain().AddEntry(ctx, store.IndexEntry{Hash: crypto.Hash{2}, Index: 5}))

	last, err := s.Trustchain().LastIndex(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, last)

	entry, err := s.Trustchain().FindByHash(ctx, crypto.Hash{1})
	require.NoError(t, err)
	assert.EqualValues(t, 1, entry.Index)
}
