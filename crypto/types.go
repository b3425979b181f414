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

// Package crypto wraps the fixed-size key/hash/signature types and the
// sign, seal and AEAD primitives the rest of the SDK builds on (spec §4.1).
// Every type here has a fixed size and byte-literal equality; there is no
// hidden padding and no variable-length encoding at this layer.
package crypto

import (
	"encoding/base64"

	"github.com/blockspacer/trustchain-go/tcerr"
)

const (
	TrustchainIDSize           = 32
	UserIDSize                 = 32
	DeviceIDSize               = 32
	GroupIDSize                = 32
	ResourceIDSize             = 16
	HashSize                   = 32
	SignatureSize              = 64
	PublicSignatureKeySize     = 32
	PrivateSignatureKeySize    = 64
	PublicEncryptionKeySize    = 32
	PrivateEncryptionKeySize   = 32
	SymmetricKeySize           = 32
	AeadIvSize                 = 24
	MacSize                    = 16
	sealedBoxOverhead          = 48
	SealedPrivateEncKeySize    = PrivateEncryptionKeySize + sealedBoxOverhead
	SealedPrivateSigKeySize    = PrivateSignatureKeySize + sealedBoxOverhead
	SealedSymmetricKeySize     = SymmetricKeySize + sealedBoxOverhead
	TwoSealedSymmetricKeySize  = SymmetricKeySize + 2*sealedBoxOverhead
)

// fixed is implemented by every fixed-size array type below; it lets
// generic helpers (equality, base64 printing) be written once.
type fixed interface {
	Bytes() []byte
}

func b64(f fixed) string {
	return base64.StdEncoding.EncodeToString(f.Bytes())
}

func fromSlice(dst []byte, src []byte, name string) error {
	if len(src) != len(dst) {
		return tcerr.New(tcerr.InvalidKeySize, "%s: expected %d bytes, got %d", name, len(dst), len(src))
	}
	copy(dst, src)
	return nil
}

// TrustchainID identifies a trustchain; it equals the hash of the root
// block (spec §3, Invariant 1).
type TrustchainID [TrustchainIDSize]byte

func (t TrustchainID) Bytes() []byte   { return t[:] }
func (t TrustchainID) String() string  { return b64(t) }
func (t TrustchainID) Equal(o TrustchainID) bool { return t == o }

func TrustchainIDFromBytes(b []byte) (TrustchainID, error) {
	var t TrustchainID
	err := fromSlice(t[:], b, "TrustchainID")
	return t, err
}

// UserID is H(app_user_id ‖ trustchain_id); see identity package for the
// obfuscation step (spec §3).
type UserID [UserIDSize]byte

func (u UserID) Bytes() []byte  { return u[:] }
func (u UserID) String() string { return b64(u) }
func (u UserID) Equal(o UserID) bool { return u == o }
func (u UserID) IsZero() bool   { return u == UserID{} }

func UserIDFromBytes(b []byte) (UserID, error) {
	var u UserID
	err := fromSlice(u[:], b, "UserID")
	return u, err
}

// DeviceID is the hash of a device's DeviceCreation block.
type DeviceID [DeviceIDSize]byte

func (d DeviceID) Bytes() []byte  { return d[:] }
func (d DeviceID) String() string { return b64(d) }
func (d DeviceID) Equal(o DeviceID) bool { return d == o }
func (d DeviceID) IsZero() bool   { return d == DeviceID{} }

func DeviceIDFromBytes(b []byte) (DeviceID, error) {
	var d DeviceID
	err := fromSlice(d[:], b, "DeviceID")
	return d, err
}

func DeviceIDFromHash(h Hash) DeviceID { return DeviceID(h) }

// GroupID equals the group's public signature key verbatim.
type GroupID [GroupIDSize]byte

func (g GroupID) Bytes() []byte  { return g[:] }
func (g GroupID) String() string { return b64(g) }
func (g GroupID) Equal(o GroupID) bool { return g == o }

func GroupIDFromBytes(b []byte) (GroupID, error) {
	var g GroupID
	err := fromSlice(g[:], b, "GroupID")
	return g, err
}

func (g GroupID) ToPublicSignatureKey() PublicSignatureKey { return PublicSignatureKey(g) }

// ResourceID is the 16-byte AEAD MAC produced when a resource's symmetric
// key was first used; globally unique with overwhelming probability.
type ResourceID [ResourceIDSize]byte

func (r ResourceID) Bytes() []byte  { return r[:] }
func (r ResourceID) String() string { return b64(r) }
func (r ResourceID) Equal(o ResourceID) bool { return r == o }

func ResourceIDFromBytes(b []byte) (ResourceID, error) {
	var r ResourceID
	err := fromSlice(r[:], b, "ResourceID")
	return r, err
}

func ResourceIDFromMAC(m Mac) ResourceID { return ResourceID(m) }

// Hash is a generic_hash output (spec §4.1).
type Hash [HashSize]byte

func (h Hash) Bytes() []byte  { return h[:] }
func (h Hash) String() string { return b64(h) }
func (h Hash) Equal(o Hash) bool { return h == o }
func (h Hash) IsZero() bool   { return h == Hash{} }

func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	err := fromSlice(h[:], b, "Hash")
	return h, err
}

// Signature is a detached Ed25519 signature.
type Signature [SignatureSize]byte

func (s Signature) Bytes() []byte  { return s[:] }
func (s Signature) String() string { return b64(s) }
func (s Signature) IsZero() bool   { return s == Signature{} }

func SignatureFromBytes(b []byte) (Signature, error) {
	var s Signature
	err := fromSlice(s[:], b, "Signature")
	return s, err
}

type PublicSignatureKey [PublicSignatureKeySize]byte

func (k PublicSignatureKey) Bytes() []byte  { return k[:] }
func (k PublicSignatureKey) String() string { return b64(k) }
func (k PublicSignatureKey) Equal(o PublicSignatureKey) bool { return k == o }
func (k PublicSignatureKey) IsZero() bool   { return k == PublicSignatureKey{} }

func PublicSignatureKeyFromBytes(b []byte) (PublicSignatureKey, error) {
	var k PublicSignatureKey
	err := fromSlice(k[:], b, "PublicSignatureKey")
	return k, err
}

type PrivateSignatureKey [PrivateSignatureKeySize]byte

func (k PrivateSignatureKey) Bytes() []byte { return k[:] }

func PrivateSignatureKeyFromBytes(b []byte) (PrivateSignatureKey, error) {
	var k PrivateSignatureKey
	err := fromSlice(k[:], b, "PrivateSignatureKey")
	return k, err
}

type PublicEncryptionKey [PublicEncryptionKeySize]byte

func (k PublicEncryptionKey) Bytes() []byte  { return k[:] }
func (k PublicEncryptionKey) String() string { return b64(k) }
func (k PublicEncryptionKey) Equal(o PublicEncryptionKey) bool { return k == o }
func (k PublicEncryptionKey) IsZero() bool   { return k == PublicEncryptionKey{} }

func PublicEncryptionKeyFromBytes(b []byte) (PublicEncryptionKey, error) {
	var k PublicEncryptionKey
	err := fromSlice(k[:], b, "PublicEncryptionKey")
	return k, err
}

type PrivateEncryptionKey [PrivateEncryptionKeySize]byte

func (k PrivateEncryptionKey) Bytes() []byte { return k[:] }

func PrivateEncryptionKeyFromBytes(b []byte) (PrivateEncryptionKey, error) {
	var k PrivateEncryptionKey
	err := fromSlice(k[:], b, "PrivateEncryptionKey")
	return k, err
}

type SymmetricKey [SymmetricKeySize]byte

func (k SymmetricKey) Bytes() []byte { return k[:] }

func SymmetricKeyFromBytes(b []byte) (SymmetricKey, error) {
	var k SymmetricKey
	err := fromSlice(k[:], b, "SymmetricKey")
	return k, err
}

type AeadIv [AeadIvSize]byte

func (iv AeadIv) Bytes() []byte { return iv[:] }

func AeadIvFromBytes(b []byte) (AeadIv, error) {
	var iv AeadIv
	err := fromSlice(iv[:], b, "AeadIv")
	return iv, err
}

type Mac [MacSize]byte

func (m Mac) Bytes() []byte { return m[:] }

func MacFromBytes(b []byte) (Mac, error) {
	var m Mac
	err := fromSlice(m[:], b, "Mac")
	return m, err
}

// SealedPrivateEncryptionKey is a PrivateEncryptionKey sealed to some
// recipient; PrivateEncryptionKeySize + sealed-box overhead.
type SealedPrivateEncryptionKey []byte

// SealedPrivateSignatureKey is a sealed PrivateSignatureKey.
type SealedPrivateSignatureKey []byte

// SealedSymmetricKey is a SymmetricKey sealed once.
type SealedSymmetricKey []byte

// TwoTimesSealedSymmetricKey is a SymmetricKey sealed twice in a row, used
// for provisional-identity key publishing (spec §4.8).
type TwoTimesSealedSymmetricKey []byte
