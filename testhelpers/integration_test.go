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

package testhelpers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/identity"
	"github.com/blockspacer/trustchain-go/testhelpers"
)

// TestGroupEncryptShareRoundTrip exercises spec §8's group round-trip
// scenario end to end across independent Sessions sharing one ledger:
// every member of a freshly created group can decrypt a resource shared
// with the group, and a user outside it cannot.
func TestGroupEncryptShareRoundTrip(t *testing.T) {
	ctx := context.Background()
	tcID, tcPub := testhelpers.NewTrustchainKeys(t)
	ledger := testhelpers.NewLedger()

	alice := testhelpers.Provision(t, ledger, tcID, tcPub, crypto.UserID{10})
	bob := testhelpers.Provision(t, ledger, tcID, tcPub, crypto.UserID{11})
	carol := testhelpers.Provision(t, ledger, tcID, tcPub, crypto.UserID{12})
	dave := testhelpers.Provision(t, ledger, tcID, tcPub, crypto.UserID{13})

	aliceIdentity, err := identity.EncodePermanent(tcID, alice.UserID)
	require.NoError(t, err)
	bobIdentity, err := identity.EncodePermanent(tcID, bob.UserID)
	require.NoError(t, err)
	carolIdentity, err := identity.EncodePermanent(tcID, carol.UserID)
	require.NoError(t, err)

	groupID, err := alice.Session.CreateGroup(ctx, []string{aliceIdentity, bobIdentity, carolIdentity})
	require.NoError(t, err)

	require.NoError(t, bob.Session.Start(ctx))
	require.NoError(t, carol.Session.Start(ctx))
	require.NoError(t, dave.Session.Start(ctx))

	plaintext := []byte("group secret")
	ciphertext, err := alice.Session.Encrypt(ctx, plaintext, nil, []crypto.GroupID{groupID})
	require.NoError(t, err)

	got, err := bob.Session.Decrypt(ctx, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)

	got, err = carol.Session.Decrypt(ctx, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)

	_, err = dave.Session.Decrypt(ctx, ciphertext)
	require.Error(t, err)
}
