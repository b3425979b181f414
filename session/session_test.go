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

package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/identity"
	"github.com/blockspacer/trustchain-go/session"
	"github.com/blockspacer/trustchain-go/store/memory"
	"github.com/blockspacer/trustchain-go/tcerr"
	"github.com/blockspacer/trustchain-go/testhelpers"
)

func TestOperationsRequireReadyState(t *testing.T) {
	tcID, tcPub := testhelpers.NewTrustchainKeys(t)

	sess := session.New(session.Config{
		TrustchainID:        tcID,
		TrustchainPublicKey: tcPub,
		Store:               memory.New(),
		Pusher:              testhelpers.NewLedger(),
		Fetcher:             testhelpers.NewLedger(),
	})
	assert.Equal(t, session.Stopped, sess.State())

	_, err := sess.Encrypt(context.Background(), []byte("hi"), nil, nil)
	require.Error(t, err)
	assert.Equal(t, tcerr.PreconditionFailed, tcerr.Of(err))
}

func TestStartWithoutLocalDeviceNeedsRegistration(t *testing.T) {
	tcID, tcPub := testhelpers.NewTrustchainKeys(t)

	sess := session.New(session.Config{
		TrustchainID:        tcID,
		TrustchainPublicKey: tcPub,
		Store:               memory.New(),
		Pusher:              testhelpers.NewLedger(),
		Fetcher:             testhelpers.NewLedger(),
	})
	require.NoError(t, sess.Start(context.Background()))
	assert.Equal(t, session.IdentityRegistrationNeeded, sess.State())
}

func TestEncryptShareDecryptRoundTripBetweenTwoSessions(t *testing.T) {
	ctx := context.Background()
	tcID, tcPub := testhelpers.NewTrustchainKeys(t)
	ledger := testhelpers.NewLedger()

	aliceID := crypto.UserID{1}
	bobID := crypto.UserID{2}
	alice := testhelpers.Provision(t, ledger, tcID, tcPub, aliceID)
	bob := testhelpers.Provision(t, ledger, tcID, tcPub, bobID)

	testhelpers.LinkContacts(t, alice, bob)

	bobIdentity, err := identity.EncodePermanent(tcID, bobID)
	require.NoError(t, err)

	plaintext := []byte("hello bob")
	ciphertext, err := alice.Session.Encrypt(ctx, plaintext, []string{bobIdentity}, nil)
	require.NoError(t, err)

	require.NoError(t, bob.Session.Start(ctx))
	got, err := bob.Session.Decrypt(ctx, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestDecryptUnknownResourceFails(t *testing.T) {
	ctx := context.Background()
	tcID, tcPub := testhelpers.NewTrustchainKeys(t)
	ledger := testhelpers.NewLedger()
	alice := testhelpers.Provision(t, ledger, tcID, tcPub, crypto.UserID{3})

	_, err := alice.Session.Decrypt(ctx, append([]byte{0x03}, make([]byte, crypto.MacSize)...))
	require.Error(t, err)
}

func TestCreateGroupAndRejectUnknownMember(t *testing.T) {
	ctx := context.Background()
	tcID, tcPub := testhelpers.NewTrustchainKeys(t)
	ledger := testhelpers.NewLedger()

	aliceID := crypto.UserID{4}
	alice := testhelpers.Provision(t, ledger, tcID, tcPub, aliceID)

	aliceIdentity, err := identity.EncodePermanent(tcID, aliceID)
	require.NoError(t, err)

	groupID, err := alice.Session.CreateGroup(ctx, []string{aliceIdentity})
	require.NoError(t, err)
	assert.NotEqual(t, crypto.GroupID{}, groupID)

	unknownID := crypto.UserID{5}
	unknownIdentity, err := identity.EncodePermanent(tcID, unknownID)
	require.NoError(t, err)

	err = alice.Session.UpdateGroupMembers(ctx, groupID, []string{unknownIdentity})
	require.Error(t, err)
	assert.Equal(t, tcerr.UserNotFound, tcerr.Of(err))
}

func TestRevokeDeviceRejectsUnknownTarget(t *testing.T) {
	ctx := context.Background()
	tcID, tcPub := testhelpers.NewTrustchainKeys(t)
	ledger := testhelpers.NewLedger()
	alice := testhelpers.Provision(t, ledger, tcID, tcPub, crypto.UserID{6})

	err := alice.Session.RevokeDevice(ctx, crypto.DeviceID{9, 9})
	require.Error(t, err)
	assert.Equal(t, tcerr.PreconditionFailed, tcerr.Of(err))
}

func TestVerifyIdentityChecksPassphraseProof(t *testing.T) {
	ctx := context.Background()
	tcID, tcPub := testhelpers.NewTrustchainKeys(t)
	ledger := testhelpers.NewLedger()
	s := memory.New()

	devSigKP, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)
	devEncKP, err := crypto.NewEncryptionKeyPair()
	require.NoError(t, err)
	require.NoError(t, s.LocalUser().SetDeviceID(ctx, crypto.DeviceIDFromHash(crypto.GenericHash(devSigKP.Public[:]))))
	require.NoError(t, s.LocalUser().SetDeviceKeys(ctx, devSigKP.Private, devEncKP.Private))

	sess := session.New(session.Config{
		TrustchainID:        tcID,
		TrustchainPublicKey: tcPub,
		Store:               s,
		Pusher:              ledger,
		Fetcher:             ledger,
	})
	require.NoError(t, sess.Start(ctx))
	require.Equal(t, session.IdentityVerificationNeeded, sess.State())

	require.NoError(t, sess.RegisterVerificationMethod(ctx, session.NewPassphraseVerification("open sesame")))

	err = sess.VerifyIdentity(ctx, "wrong passphrase")
	require.Error(t, err)
	assert.Equal(t, tcerr.InvalidVerification, tcerr.Of(err))

	require.NoError(t, sess.VerifyIdentity(ctx, "open sesame"))
}

func TestRegisterVerificationMethodRejectsReadySession(t *testing.T) {
	ctx := context.Background()
	tcID, tcPub := testhelpers.NewTrustchainKeys(t)
	ledger := testhelpers.NewLedger()
	alice := testhelpers.Provision(t, ledger, tcID, tcPub, crypto.UserID{7})

	err := alice.Session.RegisterVerificationMethod(ctx, session.NewPassphraseVerification("anything"))
	require.Error(t, err)
	assert.Equal(t, tcerr.PreconditionFailed, tcerr.Of(err))
}
