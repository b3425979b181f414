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

package trustchain

import (
	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/serialize"
	"github.com/blockspacer/trustchain-go/tcerr"
)

// Block is a signed record of the trustchain: (trustchain_id, nature,
// author_hash, serialized_payload, signature). Its Hash is computed, not
// stored independently, and its wire form additionally carries a
// server-assigned Index (spec §4.4).
type Block struct {
	TrustchainID crypto.TrustchainID
	Nature       Nature
	Author       crypto.Hash
	Payload      []byte
	Signature    crypto.Signature

	// Index is the server-assigned monotonic position of this block once
	// it has been accepted onto the chain. Zero for a not-yet-pushed block.
	Index uint64
}

// Hash computes H(varint(nature) ‖ author_hash ‖ serialized_payload)
// (spec §4.4).
func (b *Block) Hash() crypto.Hash {
	msg := serialize.NewWriter().Uvarint(uint64(b.Nature)).Fixed(b.Author[:]).Fixed(b.Payload).Out()
	return crypto.GenericHash(msg)
}

// IsRoot reports whether b is the trustchain-creation root block: its
// hash equals the trustchain id, and its author and signature are zero
// (spec §3 Invariant 1, §4.4).
func (b *Block) IsRoot() bool {
	return b.Nature == NatureTrustchainCreation && b.Author.IsZero() && b.Signature.IsZero()
}

const blockWireVersion = 1

// wireFormat is the serialized representation of a Block as exchanged
// with the server (spec §6): varint(version=1) ‖ varint(nature) ‖
// varint(index or 0) ‖ trustchain_id(32) ‖ varint(payload_len) ‖ payload ‖
// author_hash(32) ‖ signature(64).
func (b *Block) MarshalWire() []byte {
	return serialize.NewWriter().
		Uvarint(blockWireVersion).
		Uvarint(uint64(b.Nature)).
		Uvarint(b.Index).
		Fixed(b.TrustchainID[:]).
		Bytes(b.Payload).
		Fixed(b.Author[:]).
		Fixed(b.Signature[:]).
		Out()
}

// UnmarshalBlockWire decodes the wire format written by MarshalWire.
func UnmarshalBlockWire(data []byte) (*Block, error) {
	r := serialize.NewReader(data)

	version, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	if version != blockWireVersion {
		return nil, tcerr.New(tcerr.InvalidArgument, "unsupported block wire version %d", version)
	}
	natureVal, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	index, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	tcIDBytes, err := r.Fixed(crypto.TrustchainIDSize)
	if err != nil {
		return nil, err
	}
	tcID, err := crypto.TrustchainIDFromBytes(tcIDBytes)
	if err != nil {
		return nil, err
	}
	payload, err := r.Bytes()
	if err != nil {
		return nil, err
	}
	authorBytes, err := r.Fixed(crypto.HashSize)
	if err != nil {
		return nil, err
	}
	author, err := crypto.HashFromBytes(authorBytes)
	if err != nil {
		return nil, err
	}
	sigBytes, err := r.Fixed(crypto.SignatureSize)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.SignatureFromBytes(sigBytes)
	if err != nil {
		return nil, err
	}
	if err := r.Done(); err != nil {
		return nil, err
	}

	return &Block{
		TrustchainID: tcID,
		Nature:       Nature(natureVal),
		Author:       author,
		Payload:      append([]byte(nil), payload...),
		Signature:    sig,
		Index:        index,
	}, nil
}

// Action decodes b's payload into its typed action variant.
func (b *Block) Action() (Action, error) {
	return Deserialize(b.Nature, b.Payload)
}
