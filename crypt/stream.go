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
	"encoding/binary"
	"io"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/serialize"
	"github.com/blockspacer/trustchain-go/tcerr"
)

// PeekReader buffers bytes read from an underlying io.Reader so callers
// can look ahead at upcoming bytes (to decide whether a v4 chunk is
// terminal, or to resolve a resource id before a decryption key is
// known) without losing them (spec §4.10 "streaming peekable source").
type PeekReader struct {
	r   io.Reader
	buf []byte
}

func NewPeekReader(r io.Reader) *PeekReader {
	return &PeekReader{r: r}
}

// Peek returns up to n bytes without consuming them. It returns fewer
// than n bytes once the underlying source is exhausted; it never errors
// on a short source, only on a genuine read error.
func (p *PeekReader) Peek(n int) ([]byte, error) {
	for len(p.buf) < n {
		chunk := make([]byte, n-len(p.buf))
		m, err := p.r.Read(chunk)
		if m > 0 {
			p.buf = append(p.buf, chunk[:m]...)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return p.buf, tcerr.Wrap(tcerr.NetworkError, err, "crypt: read source")
		}
		if m == 0 {
			break
		}
	}
	if len(p.buf) >= n {
		return p.buf[:n], nil
	}
	return p.buf, nil
}

// Read consumes and returns exactly n bytes, replaying any previously
// peeked bytes first. It errors if fewer than n bytes are available.
func (p *PeekReader) Read(n int) ([]byte, error) {
	buf, err := p.Peek(n)
	if err != nil {
		return nil, err
	}
	if len(buf) < n {
		out := append([]byte(nil), buf...)
		p.buf = p.buf[len(buf):]
		return out, io.ErrUnexpectedEOF
	}
	out := append([]byte(nil), buf[:n]...)
	p.buf = p.buf[n:]
	return out, nil
}

// peekUvarintAt decodes a varint starting skip bytes into p's upcoming
// data, without consuming anything, growing the peek window until the
// varint terminates or the source is exhausted.
func peekUvarintAt(p *PeekReader, skip int) (uint64, int, error) {
	for total := skip + 1; total <= skip+10; total++ {
		buf, err := p.Peek(total)
		if err != nil {
			return 0, 0, err
		}
		if len(buf) <= skip {
			return 0, 0, tcerr.New(tcerr.DecryptionFailed, "crypt: truncated stream header")
		}
		v, n, verr := serialize.Uvarint(buf[skip:])
		if verr == nil {
			return v, n, nil
		}
		if len(buf) < total {
			return 0, 0, tcerr.New(tcerr.DecryptionFailed, "crypt: truncated stream header")
		}
	}
	return 0, 0, tcerr.New(tcerr.DecryptionFailed, "crypt: malformed varint")
}

// PeekResourceID reads (without consuming) the first chunk's header and
// returns its resource id, so a caller can resolve the decryption key
// before constructing a DecryptingReader (spec §4.8/§4.10 boundary: the
// encryptor never decrypts to find the resource id).
func (p *PeekReader) PeekResourceID() (crypto.ResourceID, error) {
	_, vsz, err := peekUvarintAt(p, 0)
	if err != nil {
		return crypto.ResourceID{}, err
	}
	_, csz, err := peekUvarintAt(p, vsz)
	if err != nil {
		return crypto.ResourceID{}, err
	}
	off := vsz + csz
	buf, err := p.Peek(off + crypto.ResourceIDSize)
	if err != nil {
		return crypto.ResourceID{}, err
	}
	if len(buf) < off+crypto.ResourceIDSize {
		return crypto.ResourceID{}, tcerr.New(tcerr.DecryptionFailed, "crypt: truncated stream header")
	}
	return crypto.ResourceIDFromBytes(buf[off : off+crypto.ResourceIDSize])
}

func chunkIV(seed crypto.AeadIv, index uint64) crypto.AeadIv {
	iv := seed
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], index)
	for i := 0; i < 8; i++ {
		iv[len(iv)-8+i] ^= idx[i]
	}
	return iv
}

// EncryptingReader turns a plaintext source into a v4 chunked ciphertext
// stream: an io.Reader wrapping another io.Reader, in the idiom of
// compress/flate's and crypto/cipher's stream wrappers.
type EncryptingReader struct {
	src        io.Reader
	key        crypto.SymmetricKey
	resourceID crypto.ResourceID
	ivSeed     crypto.AeadIv
	chunkSize  int
	index      uint64
	out        []byte
	done       bool
}

// NewEncryptingReader wraps src, encrypting it in chunks of chunkSize
// plaintext bytes each (DefaultChunkSize if chunkSize <= 0) under a fresh
// random key and resource id.
func NewEncryptingReader(src io.Reader, chunkSize int) (*EncryptingReader, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	key, err := crypto.NewSymmetricKey()
	if err != nil {
		return nil, err
	}
	var resourceID crypto.ResourceID
	if err := crypto.RandomFill(resourceID[:]); err != nil {
		return nil, err
	}
	var ivSeed crypto.AeadIv
	if err := crypto.RandomFill(ivSeed[:]); err != nil {
		return nil, err
	}
	return &EncryptingReader{src: src, key: key, resourceID: resourceID, ivSeed: ivSeed, chunkSize: chunkSize}, nil
}

// Key returns the fresh symmetric key this stream was encrypted under,
// for the caller to distribute via the key-distribution engine.
func (e *EncryptingReader) Key() crypto.SymmetricKey { return e.key }

// ResourceID returns the resource id this stream's chunks carry.
func (e *EncryptingReader) ResourceID() crypto.ResourceID { return e.resourceID }

func (e *EncryptingReader) encodeChunk(plaintext []byte) ([]byte, error) {
	iv := chunkIV(e.ivSeed, e.index)
	ct, mac, err := crypto.AeadEncrypt(e.key, iv, plaintext, nil)
	if err != nil {
		return nil, err
	}
	e.index++
	return serialize.NewWriter().
		Uvarint(Version4).
		Uvarint(uint64(e.chunkSize)).
		Fixed(e.resourceID[:]).
		Fixed(e.ivSeed[:]).
		Fixed(ct).
		Fixed(mac[:]).
		Out(), nil
}

func (e *EncryptingReader) Read(p []byte) (int, error) {
	for len(e.out) == 0 {
		if e.done {
			return 0, io.EOF
		}
		buf := make([]byte, e.chunkSize)
		n, err := io.ReadFull(e.src, buf)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			return 0, tcerr.Wrap(tcerr.NetworkError, err, "crypt: read source")
		}
		full := err == nil
		chunk, encErr := e.encodeChunk(buf[:n])
		if encErr != nil {
			return 0, encErr
		}
		e.out = chunk
		if !full {
			e.done = true
		}
	}
	n := copy(p, e.out)
	e.out = e.out[n:]
	return n, nil
}

// DecryptingReader decrypts a v4 chunked stream produced by
// EncryptingReader. Chunks must arrive in increasing index with
// byte-identical headers; anything else fails DecryptionFailed.
type DecryptingReader struct {
	src        *PeekReader
	key        crypto.SymmetricKey
	started    bool
	chunkSize  uint64
	resourceID crypto.ResourceID
	ivSeed     crypto.AeadIv
	index      uint64
	out        []byte
	done       bool
}

// NewDecryptingReader wraps a PeekReader (so a caller can have already
// used PeekResourceID to resolve key) and decrypts under key.
func NewDecryptingReader(src *PeekReader, key crypto.SymmetricKey) *DecryptingReader {
	return &DecryptingReader{src: src, key: key}
}

// NewDecryptingReaderFromSource is a convenience wrapper for callers who
// already know the key and have no need to peek the resource id first.
func NewDecryptingReaderFromSource(r io.Reader, key crypto.SymmetricKey) *DecryptingReader {
	return NewDecryptingReader(NewPeekReader(r), key)
}

func (d *DecryptingReader) readChunkHeader() (chunkSize uint64, resourceID crypto.ResourceID, ivSeed crypto.AeadIv, err error) {
	version, vsz, err := peekUvarintAt(d.src, 0)
	if err != nil {
		return
	}
	if version != Version4 {
		err = tcerr.New(tcerr.DecryptionFailed, "crypt: unexpected chunk version %d", version)
		return
	}
	chunkSize, csz, err := peekUvarintAt(d.src, vsz)
	if err != nil {
		return
	}
	headerLen := vsz + csz + crypto.ResourceIDSize + crypto.AeadIvSize
	buf, rerr := d.src.Read(headerLen)
	if rerr != nil {
		err = tcerr.Wrap(tcerr.DecryptionFailed, rerr, "crypt: truncated stream header")
		return
	}
	off := vsz + csz
	resourceID, err = crypto.ResourceIDFromBytes(buf[off : off+crypto.ResourceIDSize])
	if err != nil {
		return
	}
	off += crypto.ResourceIDSize
	ivSeed, err = crypto.AeadIvFromBytes(buf[off : off+crypto.AeadIvSize])
	return
}

func (d *DecryptingReader) nextChunk() ([]byte, error) {
	chunkSize, resourceID, ivSeed, err := d.readChunkHeader()
	if err != nil {
		return nil, err
	}
	if !d.started {
		d.started = true
		d.chunkSize = chunkSize
		d.resourceID = resourceID
		d.ivSeed = ivSeed
	} else if chunkSize != d.chunkSize || resourceID != d.resourceID || ivSeed != d.ivSeed {
		return nil, tcerr.New(tcerr.DecryptionFailed, "crypt: inconsistent chunk header")
	}

	want := int(chunkSize) + crypto.MacSize
	avail, err := d.src.Peek(want)
	if err != nil {
		return nil, err
	}
	final := len(avail) < want
	take := want
	if final {
		take = len(avail)
	}
	if take < crypto.MacSize {
		return nil, tcerr.New(tcerr.DecryptionFailed, "crypt: truncated chunk")
	}
	body, err := d.src.Read(take)
	if err != nil {
		return nil, tcerr.Wrap(tcerr.DecryptionFailed, err, "crypt: read chunk body")
	}
	ct := body[:len(body)-crypto.MacSize]
	var mac crypto.Mac
	copy(mac[:], body[len(body)-crypto.MacSize:])
	iv := chunkIV(d.ivSeed, d.index)
	plaintext, err := crypto.AeadDecrypt(d.key, iv, ct, mac, nil)
	if err != nil {
		return nil, err
	}
	d.index++
	if final {
		d.done = true
	} else if more, perr := d.src.Peek(1); perr != nil || len(more) == 0 {
		return nil, tcerr.New(tcerr.DecryptionFailed, "crypt: stream missing terminal chunk")
	}
	return plaintext, nil
}

func (d *DecryptingReader) Read(p []byte) (int, error) {
	for len(d.out) == 0 {
		if d.done {
			return 0, io.EOF
		}
		chunk, err := d.nextChunk()
		if err != nil {
			return 0, err
		}
		d.out = chunk
	}
	n := copy(p, d.out)
	d.out = d.out[n:]
	return n, nil
}
