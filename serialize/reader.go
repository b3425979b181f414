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

package serialize

import "github.com/blockspacer/trustchain-go/tcerr"

// Reader consumes the canonical byte layout produced by Writer. A Reader
// left with unconsumed bytes after a full deserialize is a protocol
// violation; callers must call Done() once they believe they've consumed
// everything.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) remaining() []byte {
	return r.buf[r.pos:]
}

// Fixed reads exactly n bytes.
func (r *Reader) Fixed(n int) ([]byte, error) {
	if len(r.remaining()) < n {
		return nil, tcerr.New(tcerr.InvalidArgument, "truncated buffer: need %d bytes, have %d", n, len(r.remaining()))
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

// Uvarint reads a LEB128 varint.
func (r *Reader) Uvarint() (uint64, error) {
	v, n, err := Uvarint(r.remaining())
	if err != nil {
		return 0, err
	}
	r.pos += n
	return v, nil
}

// Bytes reads a varint-length-prefixed variable-size blob.
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.Uvarint()
	if err != nil {
		return nil, err
	}
	return r.Fixed(int(n))
}

// VectorHeader reads the varint count prefix of a Vector<T>.
func (r *Reader) VectorHeader() (int, error) {
	n, err := r.Uvarint()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// Done fails with InvalidArgument if bytes remain unconsumed.
func (r *Reader) Done() error {
	if len(r.remaining()) != 0 {
		return tcerr.New(tcerr.InvalidArgument, "%d trailing bytes after deserialize", len(r.remaining()))
	}
	return nil
}

// Len reports how many bytes are still unconsumed.
func (r *Reader) Len() int {
	return len(r.remaining())
}
