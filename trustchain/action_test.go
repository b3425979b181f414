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

package trustchain_test

import (
	"testing"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/tcerr"
	"github.com/blockspacer/trustchain-go/trustchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randKey32() (out [32]byte) {
	crypto.RandomFill(out[:])
	return out
}

func TestDeviceCreation3RoundTrip(t *testing.T) {
	a := &trustchain.DeviceCreation3{}
	a.EphemeralPublicSignatureKey = crypto.PublicSignatureKey(randKey32())
	a.UserID = crypto.UserID(randKey32())
	a.DelegationSignature = crypto.Signature{}
	crypto.RandomFill(a.DelegationSignature[:])
	a.DevicePublicSignatureKey = crypto.PublicSignatureKey(randKey32())
	a.DevicePublicEncryptionKey = crypto.PublicEncryptionKey(randKey32())
	a.UserKeyPair.PublicEncryptionKey = crypto.PublicEncryptionKey(randKey32())
	sealed := make([]byte, crypto.SealedPrivateEncKeySize)
	crypto.RandomFill(sealed)
	a.UserKeyPair.SealedPrivateKeyForDevice = crypto.SealedPrivateEncryptionKey(sealed)
	a.IsGhostDevice = true

	payload := a.Serialize()

	decoded, err := trustchain.Deserialize(trustchain.NatureDeviceCreation3, payload)
	require.NoError(t, err)

	got, ok := decoded.(*trustchain.DeviceCreation3)
	require.True(t, ok)
	assert.Equal(t, a, got)
	assert.Equal(t, trustchain.NatureDeviceCreation3, got.Nature())
}

func TestDeviceRevocation2RoundTrip(t *testing.T) {
	sealedPrev := make([]byte, crypto.SealedPrivateEncKeySize)
	crypto.RandomFill(sealedPrev)

	sealedDev := make([]byte, crypto.SealedPrivateEncKeySize)
	crypto.RandomFill(sealedDev)

	a := &trustchain.DeviceRevocation2{
		TargetDeviceID:                  crypto.DeviceID(randKey32()),
		NewUserPublicEncryptionKey:      crypto.PublicEncryptionKey(randKey32()),
		PreviousUserPublicEncryptionKey: crypto.PublicEncryptionKey(randKey32()),
		SealedKeyForPreviousUserKey:     crypto.SealedPrivateEncryptionKey(sealedPrev),
		SealedKeysForDevices: []trustchain.SealedUserKeyForDevice{
			{DeviceID: crypto.DeviceID(randKey32()), SealedNewUserPrivateEncKey: crypto.SealedPrivateEncryptionKey(sealedDev)},
		},
	}

	payload := a.Serialize()
	decoded, err := trustchain.Deserialize(trustchain.NatureDeviceRevocation2, payload)
	require.NoError(t, err)
	assert.Equal(t, a, decoded)
}

func TestUserGroupCreation2RoundTrip(t *testing.T) {
	sealedSig := make([]byte, crypto.SealedPrivateSigKeySize)
	crypto.RandomFill(sealedSig)
	sealedMember := make([]byte, crypto.SealedPrivateEncKeySize)
	crypto.RandomFill(sealedMember)
	sealedProv := make([]byte, crypto.TwoSealedSymmetricKeySize)
	crypto.RandomFill(sealedProv)

	a := &trustchain.UserGroupCreation2{
		PublicSignatureKey:                crypto.PublicSignatureKey(randKey32()),
		PublicEncryptionKey:               crypto.PublicEncryptionKey(randKey32()),
		SealedPrivateSignatureKeyForGroup: crypto.SealedPrivateSignatureKey(sealedSig),
		Members: []trustchain.GroupMember{
			{UserPublicEncryptionKey: crypto.PublicEncryptionKey(randKey32()), SealedGroupPrivateEncKey: crypto.SealedPrivateEncryptionKey(sealedMember)},
		},
		ProvisionalMembers: []trustchain.GroupProvisionalMember{
			{
				AppPublicSignatureKey:      crypto.PublicSignatureKey(randKey32()),
				ServerPublicSignatureKey:   crypto.PublicSignatureKey(randKey32()),
				TwoTimesSealedGroupPrivEnc: crypto.TwoTimesSealedSymmetricKey(sealedProv),
			},
		},
	}
	crypto.RandomFill(a.SelfSignature[:])

	payload := a.Serialize()
	decoded, err := trustchain.Deserialize(trustchain.NatureUserGroupCreation2, payload)
	require.NoError(t, err)
	assert.Equal(t, a, decoded)

	signed := trustchain.GroupCreationSignedMessage(a)
	require.NotNil(t, signed)
	assert.Less(t, len(signed), len(payload))
}

func TestDeserializeRejectsTrailingBytes(t *testing.T) {
	a := &trustchain.TrustchainCreation{PublicSignatureKey: crypto.PublicSignatureKey(randKey32())}
	payload := append(a.Serialize(), 0xFF)

	_, err := trustchain.Deserialize(trustchain.NatureTrustchainCreation, payload)
	require.Error(t, err)
	assert.True(t, tcerr.Is(err, tcerr.InvalidArgument))
}

func TestDeserializeRejectsUnknownNature(t *testing.T) {
	_, err := trustchain.Deserialize(trustchain.Nature(99), []byte{1, 2, 3})
	require.Error(t, err)
	assert.True(t, tcerr.Is(err, tcerr.InvalidArgument))
}

func TestBlockHashAndWireRoundTrip(t *testing.T) {
	action := &trustchain.KeyPublishToUser{
		RecipientUserPublicEncryptionKey: crypto.PublicEncryptionKey(randKey32()),
		ResourceID:                       crypto.ResourceID{1, 2, 3},
	}
	sealed := make([]byte, crypto.SealedSymmetricKeySize)
	crypto.RandomFill(sealed)
	action.SealedSymmetricKey = crypto.SealedSymmetricKey(sealed)

	b := &trustchain.Block{
		TrustchainID: crypto.TrustchainID(randKey32()),
		Nature:       action.Nature(),
		Author:       crypto.Hash(randKey32()),
		Payload:      action.Serialize(),
		Index:        42,
	}
	crypto.RandomFill(b.Signature[:])

	h1 := b.Hash()
	wire := b.MarshalWire()

	decoded, err := trustchain.UnmarshalBlockWire(wire)
	require.NoError(t, err)
	assert.Equal(t, b.TrustchainID, decoded.TrustchainID)
	assert.Equal(t, b.Nature, decoded.Nature)
	assert.Equal(t, b.Author, decoded.Author)
	assert.Equal(t, b.Payload, decoded.Payload)
	assert.Equal(t, b.Signature, decoded.Signature)
	assert.Equal(t, b.Index, decoded.Index)
	assert.Equal(t, h1, decoded.Hash())
}

func TestRootBlockIsRoot(t *testing.T) {
	tcID := crypto.TrustchainID(randKey32())
	root := &trustchain.Block{
		TrustchainID: tcID,
		Nature:       trustchain.NatureTrustchainCreation,
		Payload:      (&trustchain.TrustchainCreation{PublicSignatureKey: crypto.PublicSignatureKey(tcID)}).Serialize(),
	}
	assert.True(t, root.IsRoot())
}
