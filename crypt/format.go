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

// Package crypt is the streaming authenticated encryption layer: one-shot
// formats v2/v3/v5 and the chunked streaming format v4, all beginning
// with a varint version byte and built on crypto.AeadEncrypt/AeadDecrypt.
package crypt

import (
	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/serialize"
	"github.com/blockspacer/trustchain-go/tcerr"
)

const (
	Version2 = 2
	Version3 = 3
	Version4 = 4
	Version5 = 5
)

// DefaultChunkSize is the plaintext size of every chunk but the last in a
// v4 stream.
const DefaultChunkSize = 1 << 20

// EncryptedSizeV2 returns the ciphertext length produced by EncryptV2 for
// a plaintext of n bytes.
func EncryptedSizeV2(n int) int { return 1 + crypto.AeadIvSize + n + crypto.MacSize }

// EncryptedSizeV3 returns the ciphertext length produced by EncryptV3 for
// a plaintext of n bytes.
func EncryptedSizeV3(n int) int { return 1 + n + crypto.MacSize }

// EncryptedSizeV5 returns the ciphertext length produced by EncryptV5 for
// a plaintext of n bytes.
func EncryptedSizeV5(n int) int {
	return 1 + crypto.ResourceIDSize + crypto.AeadIvSize + n + crypto.MacSize
}

// EncryptedSizeV4 returns the ciphertext length produced by streaming n
// plaintext bytes through an EncryptingReader with the given chunk size,
// including the mandatory terminal chunk.
func EncryptedSizeV4(n, chunkSize int) int {
	headerSize := 1 + serialize.SizeUvarint(uint64(chunkSize)) + crypto.ResourceIDSize + crypto.AeadIvSize
	fullChunks := n / chunkSize
	rem := n % chunkSize
	total := fullChunks * (headerSize + chunkSize + crypto.MacSize)
	// A final short chunk (remainder, possibly empty when n is an exact
	// multiple of chunkSize) always terminates the stream.
	total += headerSize + rem + crypto.MacSize
	return total
}

func readVersion(r *serialize.Reader) (uint64, error) {
	v, err := r.Uvarint()
	if err != nil {
		return 0, tcerr.Wrap(tcerr.InvalidArgument, err, "crypt: read version")
	}
	return v, nil
}

// DecryptedSize validates the version byte and framing of encrypted,
// without decrypting, and returns the plaintext length it would yield.
func DecryptedSize(encrypted []byte) (int, error) {
	r := serialize.NewReader(encrypted)
	v, err := readVersion(r)
	if err != nil {
		return 0, err
	}
	switch v {
	case Version2:
		overhead := crypto.AeadIvSize + crypto.MacSize
		if r.Len() < overhead {
			return 0, tcerr.New(tcerr.InvalidArgument, "crypt: truncated v2 buffer")
		}
		return r.Len() - overhead, nil
	case Version3:
		if r.Len() < crypto.MacSize {
			return 0, tcerr.New(tcerr.InvalidArgument, "crypt: truncated v3 buffer")
		}
		return r.Len() - crypto.MacSize, nil
	case Version5:
		overhead := crypto.ResourceIDSize + crypto.AeadIvSize + crypto.MacSize
		if r.Len() < overhead {
			return 0, tcerr.New(tcerr.InvalidArgument, "crypt: truncated v5 buffer")
		}
		return r.Len() - overhead, nil
	case Version4:
		// decryptedSizeV4 walks every chunk from its own version byte.
		return decryptedSizeV4(encrypted)
	default:
		return 0, tcerr.New(tcerr.InvalidArgument, "crypt: unknown version %d", v)
	}
}

func decryptedSizeV4(rest []byte) (int, error) {
	r := serialize.NewReader(rest)
	var chunkSize uint64
	var total int
	first := true
	for {
		v, err := readVersion(r)
		if err != nil {
			return 0, err
		}
		if v != Version4 {
			return 0, tcerr.New(tcerr.InvalidArgument, "crypt: bad v4 chunk version %d", v)
		}
		cs, err := r.Uvarint()
		if err != nil {
			return 0, tcerr.Wrap(tcerr.InvalidArgument, err, "crypt: read chunk size")
		}
		if first {
			chunkSize = cs
			first = false
		} else if cs != chunkSize {
			return 0, tcerr.New(tcerr.InvalidArgument, "crypt: inconsistent chunk header")
		}
		if _, err := r.Fixed(crypto.ResourceIDSize); err != nil {
			return 0, tcerr.Wrap(tcerr.InvalidArgument, err, "crypt: read resource id")
		}
		if _, err := r.Fixed(crypto.AeadIvSize); err != nil {
			return 0, tcerr.Wrap(tcerr.InvalidArgument, err, "crypt: read iv seed")
		}
		if r.Len() < crypto.MacSize {
			return 0, tcerr.New(tcerr.InvalidArgument, "crypt: truncated chunk")
		}
		want := int(chunkSize) + crypto.MacSize
		take := want
		final := r.Len() < want
		if final {
			take = r.Len()
		}
		if _, err := r.Fixed(take); err != nil {
			return 0, err
		}
		total += take - crypto.MacSize
		if final {
			return total, nil
		}
		if r.Len() == 0 {
			return 0, tcerr.New(tcerr.InvalidArgument, "crypt: v4 stream missing terminal chunk")
		}
	}
}

// ExtractResourceID returns the resource id of encrypted without
// decrypting it: the header's resource id for v4/v5, the trailing MAC for
// v2/v3.
func ExtractResourceID(encrypted []byte) (crypto.ResourceID, error) {
	r := serialize.NewReader(encrypted)
	v, err := readVersion(r)
	if err != nil {
		return crypto.ResourceID{}, err
	}
	switch v {
	case Version2, Version3:
		if len(encrypted) < crypto.MacSize {
			return crypto.ResourceID{}, tcerr.New(tcerr.InvalidArgument, "crypt: truncated buffer")
		}
		return crypto.ResourceIDFromBytes(encrypted[len(encrypted)-crypto.MacSize:])
	case Version5:
		b, err := r.Fixed(crypto.ResourceIDSize)
		if err != nil {
			return crypto.ResourceID{}, tcerr.Wrap(tcerr.InvalidArgument, err, "crypt: read resource id")
		}
		return crypto.ResourceIDFromBytes(b)
	case Version4:
		if _, err := r.Uvarint(); err != nil {
			return crypto.ResourceID{}, tcerr.Wrap(tcerr.InvalidArgument, err, "crypt: read chunk size")
		}
		b, err := r.Fixed(crypto.ResourceIDSize)
		if err != nil {
			return crypto.ResourceID{}, tcerr.Wrap(tcerr.InvalidArgument, err, "crypt: read resource id")
		}
		return crypto.ResourceIDFromBytes(b)
	default:
		return crypto.ResourceID{}, tcerr.New(tcerr.InvalidArgument, "crypt: unknown version %d", v)
	}
}
