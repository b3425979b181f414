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

// Writer accumulates the canonical byte layout of an action. It never
// fails: all size validation happens at the typed layer above it (crypto
// fixed-size types, action field constructors).
type Writer struct {
	buf []byte
}

func NewWriter() *Writer {
	return &Writer{}
}

func NewWriterSize(hint int) *Writer {
	return &Writer{buf: make([]byte, 0, hint)}
}

// Fixed appends a fixed-size value's raw bytes verbatim.
func (w *Writer) Fixed(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// Uvarint appends a LEB128 varint.
func (w *Writer) Uvarint(v uint64) *Writer {
	w.buf = PutUvarint(w.buf, v)
	return w
}

// Bytes appends a varint-length-prefixed variable-size byte blob.
func (w *Writer) Bytes(b []byte) *Writer {
	w.Uvarint(uint64(len(b)))
	w.buf = append(w.buf, b...)
	return w
}

// VectorHeader writes the varint count prefix of a Vector<T>; the caller
// then writes each element with Fixed/Bytes/nested writers.
func (w *Writer) VectorHeader(count int) *Writer {
	return w.Uvarint(uint64(count))
}

func (w *Writer) Out() []byte {
	return w.buf
}
