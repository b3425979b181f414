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

package crypt_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockspacer/trustchain-go/crypt"
	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/tcerr"
)

func TestEncryptV2RoundTrip(t *testing.T) {
	plaintext := []byte("hello trustchain")
	ct, resourceID, key, err := crypt.EncryptV2(plaintext)
	require.NoError(t, err)
	assert.Equal(t, crypt.EncryptedSizeV2(len(plaintext)), len(ct))

	gotID, err := crypt.ExtractResourceID(ct)
	require.NoError(t, err)
	assert.Equal(t, resourceID, gotID)

	size, err := crypt.DecryptedSize(ct)
	require.NoError(t, err)
	assert.Equal(t, len(plaintext), size)

	pt, err := crypt.DecryptV2(ct, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

func TestEncryptV2FlippedBitFailsDecryption(t *testing.T) {
	ct, _, key, err := crypt.EncryptV2([]byte("some data"))
	require.NoError(t, err)
	ct[len(ct)-1] ^= 0x01

	_, err = crypt.DecryptV2(ct, key)
	require.Error(t, err)
	assert.Equal(t, tcerr.DecryptionFailed, tcerr.Of(err))
}

func TestEncryptV3RoundTrip(t *testing.T) {
	plaintext := []byte("a shorter message")
	ct, resourceID, key, err := crypt.EncryptV3(plaintext)
	require.NoError(t, err)
	assert.Equal(t, crypt.EncryptedSizeV3(len(plaintext)), len(ct))

	gotID, err := crypt.ExtractResourceID(ct)
	require.NoError(t, err)
	assert.Equal(t, resourceID, gotID)

	pt, err := crypt.DecryptV3(ct, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
}

func TestEncryptV5RoundTrip(t *testing.T) {
	var resourceID crypto.ResourceID
	require.NoError(t, crypto.RandomFill(resourceID[:]))
	sessionKey, err := crypto.NewSymmetricKey()
	require.NoError(t, err)

	plaintext := []byte("message in a session")
	ct, err := crypt.EncryptV5(plaintext, resourceID, sessionKey)
	require.NoError(t, err)
	assert.Equal(t, crypt.EncryptedSizeV5(len(plaintext)), len(ct))

	gotID, err := crypt.ExtractResourceID(ct)
	require.NoError(t, err)
	assert.Equal(t, resourceID, gotID)

	pt, gotID2, err := crypt.DecryptV5(ct, sessionKey)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)
	assert.Equal(t, resourceID, gotID2)
}

func TestEncryptV5WrongSessionKeyFails(t *testing.T) {
	var resourceID crypto.ResourceID
	require.NoError(t, crypto.RandomFill(resourceID[:]))
	sessionKey, err := crypto.NewSymmetricKey()
	require.NoError(t, err)
	otherKey, err := crypto.NewSymmetricKey()
	require.NoError(t, err)

	ct, err := crypt.EncryptV5([]byte("data"), resourceID, sessionKey)
	require.NoError(t, err)

	_, _, err = crypt.DecryptV5(ct, otherKey)
	require.Error(t, err)
	assert.Equal(t, tcerr.DecryptionFailed, tcerr.Of(err))
}

func TestDecryptedSizeRejectsTinyBuffer(t *testing.T) {
	_, err := crypt.DecryptedSize([]byte{2})
	require.Error(t, err)
	assert.Equal(t, tcerr.InvalidArgument, tcerr.Of(err))
}

func TestStreamEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := bytes.Repeat([]byte("0123456789abcdef"), 1000) // 16000 bytes
	src := bytes.NewReader(plaintext)
	chunkSize := 4096

	er, err := crypt.NewEncryptingReader(src, chunkSize)
	require.NoError(t, err)

	encrypted, err := io.ReadAll(er)
	require.NoError(t, err)
	assert.Equal(t, crypt.EncryptedSizeV4(len(plaintext), chunkSize), len(encrypted))

	peek := crypt.NewPeekReader(bytes.NewReader(encrypted))
	resourceID, err := peek.PeekResourceID()
	require.NoError(t, err)
	assert.Equal(t, er.ResourceID(), resourceID)

	dr := crypt.NewDecryptingReader(peek, er.Key())
	decrypted, err := io.ReadAll(dr)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)

	size, err := crypt.DecryptedSize(encrypted)
	require.NoError(t, err)
	assert.Equal(t, len(plaintext), size)
}

func TestStreamEncryptDecryptExactChunkBoundary(t *testing.T) {
	chunkSize := 1024
	plaintext := bytes.Repeat([]byte{0xAB}, chunkSize*3)

	er, err := crypt.NewEncryptingReader(bytes.NewReader(plaintext), chunkSize)
	require.NoError(t, err)
	encrypted, err := io.ReadAll(er)
	require.NoError(t, err)

	// An extra empty terminal chunk must be present since the source ends
	// exactly on a chunk boundary.
	size, err := crypt.DecryptedSize(encrypted)
	require.NoError(t, err)
	assert.Equal(t, len(plaintext), size)

	dr := crypt.NewDecryptingReaderFromSource(bytes.NewReader(encrypted), er.Key())
	decrypted, err := io.ReadAll(dr)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestStreamTruncatedHeaderFails(t *testing.T) {
	// version=4, chunk_size=0x46, then too few bytes for the resource id and
	// iv seed: must not panic and must fail with decryption_failed rather
	// than succeeding or hanging.
	truncated := []byte{0x04, 0x46, 0x00, 0x00, 0x00}
	key, err := crypto.NewSymmetricKey()
	require.NoError(t, err)

	dr := crypt.NewDecryptingReaderFromSource(bytes.NewReader(truncated), key)
	_, err = io.ReadAll(dr)
	require.Error(t, err)
	assert.Equal(t, tcerr.DecryptionFailed, tcerr.Of(err))
}

func TestStreamTamperedChunkFailsDecryption(t *testing.T) {
	chunkSize := 256
	plaintext := bytes.Repeat([]byte{0x42}, chunkSize+10)

	er, err := crypt.NewEncryptingReader(bytes.NewReader(plaintext), chunkSize)
	require.NoError(t, err)
	encrypted, err := io.ReadAll(er)
	require.NoError(t, err)

	encrypted[len(encrypted)-1] ^= 0x01

	dr := crypt.NewDecryptingReaderFromSource(bytes.NewReader(encrypted), er.Key())
	_, err = io.ReadAll(dr)
	require.Error(t, err)
	assert.Equal(t, tcerr.DecryptionFailed, tcerr.Of(err))
}

func TestPeekReaderReplaysPeekedBytes(t *testing.T) {
	p := crypt.NewPeekReader(bytes.NewReader([]byte("abcdef")))
	peeked, err := p.Peek(3)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), peeked)

	read, err := p.Read(5)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcde"), read)

	read, err = p.Read(1)
	require.NoError(t, err)
	assert.Equal(t, []byte("f"), read)
}

func TestPeekReaderPeekPastEndReturnsShort(t *testing.T) {
	p := crypt.NewPeekReader(bytes.NewReader([]byte("ab")))
	peeked, err := p.Peek(10)
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), peeked)
}
