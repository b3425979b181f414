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

// Package serialize implements the canonical, deterministic, length-
// prefixed-by-varint byte layout shared by every trustchain action (spec
// §4.2). There is no tag byte inside a payload: the block's nature lives
// in the block header (see the trustchain package), never in the payload
// itself.
package serialize

import "github.com/blockspacer/trustchain-go/tcerr"

// PutUvarint appends a LEB128-style varint (7 data bits per byte, high bit
// is the continuation flag) to dst and returns the result.
func PutUvarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// SizeUvarint returns the encoded length of v in bytes.
func SizeUvarint(v uint64) int {
	n := 1
	for v >= 0x80 {
		n++
		v >>= 7
	}
	return n
}

// Uvarint decodes a varint from the front of buf, returning the value and
// the number of bytes consumed. It fails with InvalidArgument on a
// truncated or overlong (>10 byte) encoding.
func Uvarint(buf []byte) (uint64, int, error) {
	var v uint64
	var shift uint
	for i := 0; i < len(buf); i++ {
		b := buf[i]
		if shift >= 64 {
			return 0, 0, tcerr.New(tcerr.InvalidArgument, "varint overflow")
		}
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, tcerr.New(tcerr.InvalidArgument, "truncated varint")
}
