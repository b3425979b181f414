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

package puller_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/puller"
	"github.com/blockspacer/trustchain-go/store/memory"
	"github.com/blockspacer/trustchain-go/trustchain"
	"github.com/blockspacer/trustchain-go/verify"
)

type fakeFetcher struct {
	blocks []*trustchain.Block
}

func (f *fakeFetcher) CatchUp(ctx context.Context, req puller.Request) ([]*trustchain.Block, error) {
	var out []*trustchain.Block
	for _, b := range f.blocks {
		if b.Index > req.LastIndex {
			out = append(out, b)
		}
	}
	return out, nil
}

func delegationMsg(eph crypto.PublicSignatureKey, userID crypto.UserID) []byte {
	return append(append([]byte{}, eph[:]...), userID[:]...)
}

func TestCatchUpAppliesFirstDeviceCreation(t *testing.T) {
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
	dc := &trustchain.DeviceCreation{}
	dc.EphemeralPublicSignatureKey = ephKP.Public
	dc.UserID = userID
	dc.DelegationSignature = crypto.Sign(delegationMsg(ephKP.Public, userID), tcKP.Private)
	dc.DevicePublicSignatureKey = devSigKP.Public
	dc.DevicePublicEncryptionKey = devEncKP.Public

	block := &trustchain.Block{
		TrustchainID: tcID,
		Nature:       trustchain.NatureDeviceCreation,
		Author:       crypto.Hash(tcID),
		Payload:      dc.Serialize(),
		Index:        1,
	}
	block.Signature = crypto.Sign(block.Hash().Bytes(), ephKP.Private)

	s := memory.New()
	v := verify.New(s, tcID, tcKP.Public)
	fetcher := &fakeFetcher{blocks: []*trustchain.Block{block}}

	var createdDeviceID crypto.DeviceID
	var createdCalls int
	p := puller.New(s, v, fetcher, puller.Handlers{
		DeviceCreated: func(ctx context.Context, deviceID crypto.DeviceID) {
			createdCalls++
			createdDeviceID = deviceID
		},
	})

	require.NoError(t, p.CatchUp(ctx, nil, nil))
	assert.Equal(t, 1, createdCalls)
	assert.Equal(t, crypto.DeviceIDFromHash(block.Hash()), createdDeviceID)

	last, err := s.Trustchain().LastIndex(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, last)

	contact, err := s.Contacts().FindUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, contact.Devices, 1)
}

func TestCatchUpRotatesOwnUserKeyOnDeviceCreation3(t *testing.T) {
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
	userEncKP, err := crypto.NewEncryptionKeyPair()
	require.NoError(t, err)

	userID := crypto.UserID{9}
	dc := &trustchain.DeviceCreation3{}
	dc.EphemeralPublicSignatureKey = ephKP.Public
	dc.UserID = userID
	dc.DelegationSignature = crypto.Sign(delegationMsg(ephKP.Public, userID), tcKP.Private)
	dc.DevicePublicSignatureKey = devSigKP.Public
	dc.DevicePublicEncryptionKey = devEncKP.Public
	dc.UserKeyPair.PublicEncryptionKey = userEncKP.Public
	dc.UserKeyPair.SealedPrivateKeyForDevice = crypto.SealedPrivateEncryptionKey(
		crypto.SealEncrypt(userEncKP.Private[:], devEncKP.Public))

	block := &trustchain.Block{
		TrustchainID: tcID,
		Nature:       trustchain.NatureDeviceCreation3,
		Author:       crypto.Hash(tcID),
		Payload:      dc.Serialize(),
		Index:        1,
	}
	block.Signature = crypto.Sign(block.Hash().Bytes(), ephKP.Private)

	s := memory.New()
	ourDeviceID := crypto.DeviceIDFromHash(block.Hash())
	require.NoError(t, s.LocalUser().SetDeviceID(ctx, ourDeviceID))
	require.NoError(t, s.LocalUser().SetDeviceKeys(ctx, crypto.PrivateSignatureKey{}, devEncKP.Private))

	v := verify.New(s, tcID, tcKP.Public)
	fetcher := &fakeFetcher{blocks: []*trustchain.Block{block}}

	var receivedThisDevice bool
	p := puller.New(s, v, fetcher, puller.Handlers{
		ReceivedThisDeviceID: func(ctx context.Context, deviceID crypto.DeviceID) {
			receivedThisDevice = true
			assert.Equal(t, ourDeviceID, deviceID)
		},
	})

	require.NoError(t, p.CatchUp(ctx, nil, nil))
	assert.True(t, receivedThisDevice)

	kp, err := s.LocalUser().LastKeyPair(ctx)
	require.NoError(t, err)
	assert.Equal(t, userEncKP.Public, kp.Public)
	assert.Equal(t, userEncKP.Private, kp.Private)
}

func TestCatchUpRejectsInvalidEntryWithoutPartialApply(t *testing.T) {
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

	userID := crypto.UserID{4}
	dc := &trustchain.DeviceCreation{}
	dc.EphemeralPublicSignatureKey = ephKP.Public
	dc.UserID = userID
	dc.DelegationSignature = crypto.Sign(delegationMsg(ephKP.Public, userID), wrongKP.Private)
	dc.DevicePublicSignatureKey = devSigKP.Public
	dc.DevicePublicEncryptionKey = devEncKP.Public

	block := &trustchain.Block{
		TrustchainID: tcID,
		Nature:       trustchain.NatureDeviceCreation,
		Author:       crypto.Hash(tcID),
		Payload:      dc.Serialize(),
		Index:        1,
	}
	block.Signature = crypto.Sign(block.Hash().Bytes(), ephKP.Private)

	s := memory.New()
	v := verify.New(s, tcID, tcKP.Public)
	fetcher := &fakeFetcher{blocks: []*trustchain.Block{block}}

	var createdCalls int
	p := puller.New(s, v, fetcher, puller.Handlers{
		DeviceCreated: func(ctx context.Context, deviceID crypto.DeviceID) { createdCalls++ },
	})

	err = p.CatchUp(ctx, nil, nil)
	require.Error(t, err)
	assert.Equal(t, 0, createdCalls)

	_, err = s.Contacts().FindUser(ctx, userID)
	assert.Error(t, err, "rejected entry must not be applied to the store")
}
