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

package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"io"

	"github.com/blockspacer/trustchain-go/tcerr"
	"github.com/jamesruan/sodium"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
)

// RandomFill fills out with cryptographically secure random bytes.
func RandomFill(out []byte) error {
	_, err := io.ReadFull(rand.Reader, out)
	if err != nil {
		return tcerr.Wrap(tcerr.InternalError, err, "random_fill")
	}
	return nil
}

// NewSymmetricKey generates a fresh random AEAD key.
func NewSymmetricKey() (SymmetricKey, error) {
	var k SymmetricKey
	if err := RandomFill(k[:]); err != nil {
		return k, err
	}
	return k, nil
}

// EncryptionKeyPair is a box (X25519) keypair.
type EncryptionKeyPair struct {
	Public  PublicEncryptionKey
	Private PrivateEncryptionKey
}

// SignatureKeyPair is an Ed25519 keypair.
type SignatureKeyPair struct {
	Public  PublicSignatureKey
	Private PrivateSignatureKey
}

// NewEncryptionKeyPair generates a fresh X25519 keypair.
func NewEncryptionKeyPair() (EncryptionKeyPair, error) {
	var priv PrivateEncryptionKey
	if err := RandomFill(priv[:]); err != nil {
		return EncryptionKeyPair{}, err
	}
	return EncryptionKeyPairFromPrivate(priv)
}

// EncryptionKeyPairFromPrivate derives the public key of an existing
// private encryption key (X25519 scalar multiplication by the base point).
func EncryptionKeyPairFromPrivate(priv PrivateEncryptionKey) (EncryptionKeyPair, error) {
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return EncryptionKeyPair{}, tcerr.Wrap(tcerr.InternalError, err, "derive encryption public key")
	}
	var pk PublicEncryptionKey
	copy(pk[:], pub)
	return EncryptionKeyPair{Public: pk, Private: priv}, nil
}

// NewSignatureKeyPair generates a fresh Ed25519 keypair.
func NewSignatureKeyPair() (SignatureKeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return SignatureKeyPair{}, tcerr.Wrap(tcerr.InternalError, err, "generate signature key pair")
	}
	var kp SignatureKeyPair
	copy(kp.Public[:], pub)
	copy(kp.Private[:], priv)
	return kp, nil
}

// Sign produces a detached signature over msg under priv.
func Sign(msg []byte, priv PrivateSignatureKey) Signature {
	sig := ed25519.Sign(ed25519.PrivateKey(priv[:]), msg)
	var s Signature
	copy(s[:], sig)
	return s
}

// Verify checks a detached signature over msg under pub.
func Verify(msg []byte, sig Signature, pub PublicSignatureKey) bool {
	return ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig[:])
}

func sodiumBoxPublic(pub PublicEncryptionKey) sodium.BoxPublicKey {
	return sodium.BoxPublicKey{Bytes: append([]byte(nil), pub[:]...)}
}

func sodiumBoxSecret(priv PrivateEncryptionKey) sodium.BoxSecretKey {
	return sodium.BoxSecretKey{Bytes: append([]byte(nil), priv[:]...)}
}

// SealEncrypt performs anonymous, authenticated public-key encryption
// (libsodium "sealed box"): an ephemeral sender keypair is generated and
// discarded, so the ciphertext carries no information about the sender's
// identity. Output size is len(msg) + 48.
func SealEncrypt(msg []byte, pub PublicEncryptionKey) []byte {
	return []byte(sodium.Bytes(msg).SealedBox(sodiumBoxPublic(pub)))
}

// SealDecrypt opens a sealed box addressed to (pub, priv).
func SealDecrypt(sealed []byte, pub PublicEncryptionKey, priv PrivateEncryptionKey) ([]byte, error) {
	kp := sodium.BoxKP{PublicKey: sodiumBoxPublic(pub), SecretKey: sodiumBoxSecret(priv)}
	out, err := sodium.Bytes(sealed).SealedBoxOpen(kp)
	if err != nil {
		return nil, tcerr.Wrap(tcerr.DecryptionFailed, err, "seal_decrypt")
	}
	return []byte(out), nil
}

// AeadEncrypt encrypts plaintext with XChaCha20-Poly1305 under key and iv,
// binding associatedData. Returns ciphertext and the detached 16-byte MAC.
func AeadEncrypt(key SymmetricKey, iv AeadIv, plaintext, associatedData []byte) ([]byte, Mac, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, Mac{}, tcerr.Wrap(tcerr.InternalError, err, "aead_encrypt: init")
	}
	sealed := aead.Seal(nil, iv[:], plaintext, associatedData)
	ciphertext := sealed[:len(sealed)-MacSize]
	var mac Mac
	copy(mac[:], sealed[len(sealed)-MacSize:])
	return ciphertext, mac, nil
}

// AeadDecrypt decrypts ciphertext||mac with XChaCha20-Poly1305, failing
// with DecryptionFailed on MAC mismatch.
func AeadDecrypt(key SymmetricKey, iv AeadIv, ciphertext []byte, mac Mac, associatedData []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, tcerr.Wrap(tcerr.InternalError, err, "aead_decrypt: init")
	}
	combined := make([]byte, 0, len(ciphertext)+MacSize)
	combined = append(combined, ciphertext...)
	combined = append(combined, mac[:]...)
	plaintext, err := aead.Open(nil, iv[:], combined, associatedData)
	if err != nil {
		return nil, tcerr.Wrap(tcerr.DecryptionFailed, err, "aead_decrypt")
	}
	return plaintext, nil
}

// GenericHash computes the unkeyed 32-byte Blake2b digest of data.
func GenericHash(data []byte) Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only fails for an oversized key, and we pass nil.
		panic(err)
	}
	_, _ = h.Write(data)
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
