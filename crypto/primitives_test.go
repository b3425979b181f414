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

package crypto_test

import (
	"testing"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/tcerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)

	msg := []byte("hello trustchain")
	sig := crypto.Sign(msg, kp.Private)

	assert.True(t, crypto.Verify(msg, sig, kp.Public))
	assert.False(t, crypto.Verify([]byte("tampered"), sig, kp.Public))
}

func TestSealedBoxRoundTrip(t *testing.T) {
	kp, err := crypto.NewEncryptionKeyPair()
	require.NoError(t, err)

	msg := []byte("symmetric key material")
	sealed := crypto.SealEncrypt(msg, kp.Public)
	assert.Len(t, sealed, len(msg)+48)

	opened, err := crypto.SealDecrypt(sealed, kp.Public, kp.Private)
	require.NoError(t, err)
	assert.Equal(t, msg, opened)
}

func TestSealedBoxOpenFailsForWrongKey(t *testing.T) {
	kp1, err := crypto.NewEncryptionKeyPair()
	require.NoError(t, err)
	kp2, err := crypto.NewEncryptionKeyPair()
	require.NoError(t, err)

	sealed := crypto.SealEncrypt([]byte("secret"), kp1.Public)
	_, err = crypto.SealDecrypt(sealed, kp2.Public, kp2.Private)
	require.Error(t, err)
	assert.True(t, tcerr.Is(err, tcerr.DecryptionFailed))
}

func TestAeadRoundTrip(t *testing.T) {
	key, err := crypto.NewSymmetricKey()
	require.NoError(t, err)

	var iv crypto.AeadIv
	require.NoError(t, crypto.RandomFill(iv[:]))

	plaintext := []byte("chunked plaintext payload")
	ad := []byte("resource-id-as-ad")

	ciphertext, mac, err := crypto.AeadEncrypt(key, iv, plaintext, ad)
	require.NoError(t, err)
	assert.Len(t, mac, crypto.MacSize)

	decrypted, err := crypto.AeadDecrypt(key, iv, ciphertext, mac, ad)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestAeadDecryptFailsOnBitFlip(t *testing.T) {
	key, err := crypto.NewSymmetricKey()
	require.NoError(t, err)
	var iv crypto.AeadIv
	require.NoError(t, crypto.RandomFill(iv[:]))

	ciphertext, mac, err := crypto.AeadEncrypt(key, iv, []byte("payload"), nil)
	require.NoError(t, err)

	tampered := append([]byte(nil), ciphertext...)
	tampered[0] ^= 0x01

	_, err = crypto.AeadDecrypt(key, iv, tampered, mac, nil)
	require.Error(t, err)
	assert.True(t, tcerr.Is(err, tcerr.DecryptionFailed))
}

func TestGenericHashDeterministic(t *testing.T) {
	h1 := crypto.GenericHash([]byte("abc"))
	h2 := crypto.GenericHash([]byte("abc"))
	h3 := crypto.GenericHash([]byte("abd"))

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
}

func TestEncryptionKeyPairFromPrivateMatchesGenerated(t *testing.T) {
	kp, err := crypto.NewEncryptionKeyPair()
	require.NoError(t, err)

	derived, err := crypto.EncryptionKeyPairFromPrivate(kp.Private)
	require.NoError(t, err)

	assert.Equal(t, kp.Public, derived.Public)
}

func TestFromBytesRejectsWrongSize(t *testing.T) {
	_, err := crypto.HashFromBytes(make([]byte, 10))
	require.Error(t, err)
	assert.True(t, tcerr.Is(err, tcerr.InvalidKeySize))
}
