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

package verify_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/store"
	"github.com/blockspacer/trustchain-go/store/memory"
	"github.com/blockspacer/trustchain-go/tcerr"
	"github.com/blockspacer/trustchain-go/trustchain"
	"github.com/blockspacer/trustchain-go/verify"
)

func delegationMsg(eph crypto.PublicSignatureKey, userID crypto.UserID) []byte {
	return append(append([]byte{}, eph[:]...), userID[:]...)
}

func TestVerifyTrustchainCreation(t *testing.T) {
	ctx := context.Background()
	tcKP, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)

	tcID := crypto.TrustchainID(tcKP.Public)

	root := &trustchain.Block{
		TrustchainID: tcID,
		Nature:       trustchain.NatureTrustchainCreation,
		Payload:      (&trustchain.TrustchainCreation{PublicSignatureKey: tcKP.Public}).Serialize(),
	}

	v := verify.New(memory.New(), tcID, tcKP.Public)
	require.NoError(t, v.Verify(ctx, root))
}

func TestVerifyTrustchainCreationRejectsWrongHash(t *testing.T) {
	ctx := context.Background()
	tcKP, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)
	tcID := crypto.TrustchainID{9, 9, 9}

	root := &trustchain.Block{
		TrustchainID: tcID,
		Nature:       trustchain.NatureTrustchainCreation,
		Payload:      (&trustchain.TrustchainCreation{PublicSignatureKey: tcKP.Public}).Serialize(),
	}

	v := verify.New(memory.New(), tcID, tcKP.Public)
	err = v.Verify(ctx, root)
	require.Error(t, err)
	assert.True(t, tcerr.Is(err, tcerr.VerificationFailed))
}

func TestVerifyDeviceCreationFirstDevice(t *testing.T) {
	ctx := context.Background()
	tcKP, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)
	tcID := crypto.TrustchainID(tcKP.Public)

	ephKP, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)
	devSigKP, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)
	devEncKP, err := crypto.NewEncryptionKeyPair()
	require.NoError(t, err)

	userID := crypto.UserID{1, 2, 3}
	delegationSig := crypto.Sign(delegationMsg(ephKP.Public, userID), tcKP.Private)

	dc := &trustchain.DeviceCreation{}
	dc.EphemeralPublicSignatureKey = ephKP.Public
	dc.UserID = userID
	dc.DelegationSignature = delegationSig
	dc.DevicePublicSignatureKey = devSigKP.Public
	dc.DevicePublicEncryptionKey = devEncKP.Public

	block := &trustchain.Block{
		TrustchainID: tcID,
		Nature:       trustchain.NatureDeviceCreation,
		Author:       crypto.Hash(tcID),
		Payload:      dc.Serialize(),
	}
	block.Signature = crypto.Sign(block.Hash().Bytes(), ephKP.Private)

	v := verify.New(memory.New(), tcID, tcKP.Public)
	require.NoError(t, v.Verify(ctx, block))
}

func TestVerifyDeviceCreationRejectsBadDelegation(t *testing.T) {
	ctx := context.Background()
	tcKP, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)
	tcID := crypto.TrustchainID(tcKP.Public)

	ephKP, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)
	devSigKP, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)
	devEncKP, err := crypto.NewEncryptionKeyPair()
	require.NoError(t, err)
	wrongKP, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)

	userID := crypto.UserID{1, 2, 3}
	// signed with the wrong key
	badSig := crypto.Sign(delegationMsg(ephKP.Public, userID), wrongKP.Private)

	dc := &trustchain.DeviceCreation{}
	dc.EphemeralPublicSignatureKey = ephKP.Public
	dc.UserID = userID
	dc.DelegationSignature = badSig
	dc.DevicePublicSignatureKey = devSigKP.Public
	dc.DevicePublicEncryptionKey = devEncKP.Public

	block := &trustchain.Block{
		TrustchainID: tcID,
		Nature:       trustchain.NatureDeviceCreation,
		Author:       crypto.Hash(tcID),
		Payload:      dc.Serialize(),
	}
	block.Signature = crypto.Sign(block.Hash().Bytes(), ephKP.Private)

	v := verify.New(memory.New(), tcID, tcKP.Public)
	err = v.Verify(ctx, block)
	require.Error(t, err)
	assert.True(t, tcerr.Is(err, tcerr.VerificationFailed))
}

func TestVerifyKeyPublishToDeviceRejectsUserWithKey(t *testing.T) {
	ctx := context.Background()
	tcKP, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)
	tcID := crypto.TrustchainID(tcKP.Public)

	s := memory.New()
	authorSigKP, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)

	userID := crypto.UserID{5}
	deviceID := crypto.DeviceID{6}
	recipientDeviceID := crypto.DeviceID{7}

	require.NoError(t, s.Contacts().PutUserDevice(ctx, userID, store.Device{
		ID: deviceID, UserID: userID, PublicSignatureKey: authorSigKP.Public,
	}))
	require.NoError(t, s.Contacts().PutUserDevice(ctx, userID, store.Device{
		ID: recipientDeviceID, UserID: userID,
	}))
	require.NoError(t, s.Contacts().PutUserKey(ctx, userID, crypto.PublicEncryptionKey{1}))

	sealed := make([]byte, crypto.SealedSymmetricKeySize)
	kp := &trustchain.KeyPublishToDevice{
		RecipientDeviceID:     recipientDeviceID,
		ResourceID:            crypto.ResourceID{1},
		EncryptedSymmetricKey: crypto.SealedSymmetricKey(sealed),
	}

	block := &trustchain.Block{
		TrustchainID: tcID,
		Nature:       trustchain.NatureKeyPublishToDevice,
		Author:       crypto.Hash(deviceID),
		Payload:      kp.Serialize(),
	}
	block.Signature = crypto.Sign(block.Hash().Bytes(), authorSigKP.Private)

	v := verify.New(s, tcID, tcKP.Public)
	err = v.Verify(ctx, block)
	require.Error(t, err)
	assert.True(t, tcerr.Is(err, tcerr.VerificationFailed))
}
