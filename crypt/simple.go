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

package crypt

import (
	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/serialize"
	"github.com/blockspacer/trustchain-go/tcerr"
)

// EncryptV2 encrypts plaintext under a fresh random key with a random iv
// (deprecated-but-supported format). The resource id is the AEAD mac.
func EncryptV2(plaintext []byte) (ciphertext []byte, resourceID crypto.ResourceID, key crypto.SymmetricKey, err error) {
	key, err = crypto.NewSymmetricKey()
	if err != nil {
		return nil, crypto.ResourceID{}, crypto.SymmetricKey{}, err
	}
	var iv crypto.AeadIv
	if err = crypto.RandomFill(iv[:]); err != nil {
		return nil, crypto.ResourceID{}, crypto.SymmetricKey{}, err
	}
	ct, mac, err := crypto.AeadEncrypt(key, iv, plaintext, nil)
	if err != nil {
		return nil, crypto.ResourceID{}, crypto.SymmetricKey{}, err
	}
	resourceID = crypto.ResourceIDFromMAC(mac)
	out := serialize.NewWriter().Uvarint(Version2).Fixed(iv[:]).Fixed(ct).Fixed(mac[:]).Out()
	return out, resourceID, key, nil
}

// DecryptV2 decrypts a v2 ciphertext under key.
func DecryptV2(ciphertext []byte, key crypto.SymmetricKey) ([]byte, error) {
	r := serialize.NewReader(ciphertext)
	v, err := readVersion(r)
	if err != nil {
		return nil, err
	}
	if v != Version2 {
		return nil, tcerr.New(tcerr.InvalidArgument, "decrypt v2: unexpected version %d", v)
	}
	ivB, err := r.Fixed(crypto.AeadIvSize)
	if err != nil {
		return nil, tcerr.Wrap(tcerr.InvalidArgument, err, "decrypt v2: read iv")
	}
	iv, err := crypto.AeadIvFromBytes(ivB)
	if err != nil {
		return nil, err
	}
	if r.Len() < crypto.MacSize {
		return nil, tcerr.New(tcerr.InvalidArgument, "decrypt v2: truncated buffer")
	}
	ct, err := r.Fixed(r.Len() - crypto.MacSize)
	if err != nil {
		return nil, err
	}
	macB, err := r.Fixed(crypto.MacSize)
	if err != nil {
		return nil, err
	}
	mac, err := crypto.MacFromBytes(macB)
	if err != nil {
		return nil, err
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return crypto.AeadDecrypt(key, iv, ct, mac, nil)
}

// EncryptV3 encrypts plaintext under a fresh random key with the zero iv
// (the "simple" format; iv is never reused because the key is fresh per
// call).
func EncryptV3(plaintext []byte) (ciphertext []byte, resourceID crypto.ResourceID, key crypto.SymmetricKey, err error) {
	key, err = crypto.NewSymmetricKey()
	if err != nil {
		return nil, crypto.ResourceID{}, crypto.SymmetricKey{}, err
	}
	var iv crypto.AeadIv
	ct, mac, err := crypto.AeadEncrypt(key, iv, plaintext, nil)
	if err != nil {
		return nil, crypto.ResourceID{}, crypto.SymmetricKey{}, err
	}
	resourceID = crypto.ResourceIDFromMAC(mac)
	out := serialize.NewWriter().Uvarint(Version3).Fixed(ct).Fixed(mac[:]).Out()
	return out, resourceID, key, nil
}

// DecryptV3 decrypts a v3 ciphertext under key.
func DecryptV3(ciphertext []byte, key crypto.SymmetricKey) ([]byte, error) {
	r := serialize.NewReader(ciphertext)
	v, err := readVersion(r)
	if err != nil {
		return nil, err
	}
	if v != Version3 {
		return nil, tcerr.New(tcerr.InvalidArgument, "decrypt v3: unexpected version %d", v)
	}
	if r.Len() < crypto.MacSize {
		return nil, tcerr.New(tcerr.InvalidArgument, "decrypt v3: truncated buffer")
	}
	ct, err := r.Fixed(r.Len() - crypto.MacSize)
	if err != nil {
		return nil, err
	}
	macB, err := r.Fixed(crypto.MacSize)
	if err != nil {
		return nil, err
	}
	mac, err := crypto.MacFromBytes(macB)
	if err != nil {
		return nil, err
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	var iv crypto.AeadIv
	return crypto.AeadDecrypt(key, iv, ct, mac, nil)
}

// EncryptV5 encrypts plaintext under a caller-supplied session key and
// resource id, binding resourceID as associated data (encryption
// sessions: many messages share one key).
func EncryptV5(plaintext []byte, resourceID crypto.ResourceID, sessionKey crypto.SymmetricKey) ([]byte, error) {
	var iv crypto.AeadIv
	if err := crypto.RandomFill(iv[:]); err != nil {
		return nil, err
	}
	ct, mac, err := crypto.AeadEncrypt(sessionKey, iv, plaintext, resourceID[:])
	if err != nil {
		return nil, err
	}
	out := serialize.NewWriter().Uvarint(Version5).Fixed(resourceID[:]).Fixed(iv[:]).Fixed(ct).Fixed(mac[:]).Out()
	return out, nil
}

// DecryptV5 decrypts a v5 ciphertext under sessionKey, returning the
// plaintext and the resource id it was bound to.
func DecryptV5(ciphertext []byte, sessionKey crypto.SymmetricKey) ([]byte, crypto.ResourceID, error) {
	r := serialize.NewReader(ciphertext)
	v, err := readVersion(r)
	if err != nil {
		return nil, crypto.ResourceID{}, err
	}
	if v != Version5 {
		return nil, crypto.ResourceID{}, tcerr.New(tcerr.InvalidArgument, "decrypt v5: unexpected version %d", v)
	}
	resB, err := r.Fixed(crypto.ResourceIDSize)
	if err != nil {
		return nil, crypto.ResourceID{}, tcerr.Wrap(tcerr.InvalidArgument, err, "decrypt v5: read resource id")
	}
	resourceID, err := crypto.ResourceIDFromBytes(resB)
	if err != nil {
		return nil, crypto.ResourceID{}, err
	}
	ivB, err := r.Fixed(crypto.AeadIvSize)
	if err != nil {
		return nil, crypto.ResourceID{}, tcerr.Wrap(tcerr.InvalidArgument, err, "decrypt v5: read iv")
	}
	iv, err := crypto.AeadIvFromBytes(ivB)
	if err != nil {
		return nil, crypto.ResourceID{}, err
	}
	if r.Len() < crypto.MacSize {
		return nil, crypto.ResourceID{}, tcerr.New(tcerr.InvalidArgument, "decrypt v5: truncated buffer")
	}
	ct, err := r.Fixed(r.Len() - crypto.MacSize)
	if err != nil {
		return nil, crypto.ResourceID{}, err
	}
	macB, err := r.Fixed(crypto.MacSize)
	if err != nil {
		return nil, crypto.ResourceID{}, err
	}
	mac, err := crypto.MacFromBytes(macB)
	if err != nil {
		return nil, crypto.ResourceID{}, err
	}
	if err := r.Done(); err != nil {
		return nil, crypto.ResourceID{}, err
	}
	plaintext, err := crypto.AeadDecrypt(sessionKey, iv, ct, mac, resourceID[:])
	return plaintext, resourceID, err
}
