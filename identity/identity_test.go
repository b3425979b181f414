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

package identity_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/identity"
	"github.com/blockspacer/trustchain-go/tcerr"
)

func TestPermanentIdentityRoundTrips(t *testing.T) {
	tcID := crypto.TrustchainID{1, 2, 3}
	userID := crypto.UserID{4, 5, 6}

	s, err := identity.EncodePermanent(tcID, userID)
	require.NoError(t, err)

	parsed, err := identity.Parse(s)
	require.NoError(t, err)
	assert.Equal(t, identity.TargetUser, parsed.Kind)
	assert.Equal(t, tcID, parsed.TrustchainID)
	assert.Equal(t, userID, parsed.UserID)
}

func TestProvisionalIdentityRoundTrips(t *testing.T) {
	tcID := crypto.TrustchainID{7}
	sigKP, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)
	encKP, err := crypto.NewEncryptionKeyPair()
	require.NoError(t, err)

	s, err := identity.EncodeProvisional(tcID, "Alice@Example.com", sigKP, encKP)
	require.NoError(t, err)

	parsed, err := identity.Parse(s)
	require.NoError(t, err)
	assert.Equal(t, identity.TargetEmail, parsed.Kind)
	assert.Equal(t, tcID, parsed.TrustchainID)
	assert.Equal(t, "Alice@Example.com", parsed.Email)
	assert.Equal(t, sigKP.Public, parsed.AppSignatureKeyPair.Public)
	assert.Equal(t, sigKP.Private, parsed.AppSignatureKeyPair.Private)
	assert.Equal(t, encKP.Public, parsed.AppEncryptionKeyPair.Public)
	assert.Equal(t, encKP.Private, parsed.AppEncryptionKeyPair.Private)
}

func TestParseRejectsMalformedEnvelope(t *testing.T) {
	_, err := identity.Parse("not-base64!!!")
	require.Error(t, err)
	assert.Equal(t, tcerr.InvalidArgument, tcerr.Of(err))
}

func TestParseRejectsUnknownTarget(t *testing.T) {
	doc := `{"trustchain_id":"AQID","target":"device","value":"x"}`
	_, err := identity.Parse(base64.StdEncoding.EncodeToString([]byte(doc)))
	require.Error(t, err)
	assert.Equal(t, tcerr.InvalidArgument, tcerr.Of(err))
}

func TestHashEmailIsCaseInsensitive(t *testing.T) {
	a := identity.HashEmail("Bob@Example.com")
	b := identity.HashEmail(" bob@example.com ")
	assert.Equal(t, a, b)
}
