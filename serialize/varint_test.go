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

package serialize_test

import (
	"testing"

	"github.com/blockspacer/trustchain-go/serialize"
	"github.com/blockspacer/trustchain-go/tcerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUvarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 300, 16384, 1 << 40}
	for _, v := range values {
		encoded := serialize.PutUvarint(nil, v)
		assert.Equal(t, serialize.SizeUvarint(v), len(encoded))

		decoded, n, err := serialize.Uvarint(encoded)
		require.NoError(t, err)
		assert.Equal(t, v, decoded)
		assert.Equal(t, len(encoded), n)
	}
}

func TestUvarintTruncated(t *testing.T) {
	_, _, err := serialize.Uvarint([]byte{0x80, 0x80})
	require.Error(t, err)
	assert.True(t, tcerr.Is(err, tcerr.InvalidArgument))
}

func TestWriterReaderRoundTrip(t *testing.T) {
	w := serialize.NewWriter()
	w.Fixed([]byte{1, 2, 3}).Uvarint(42).Bytes([]byte("hello")).VectorHeader(2).Fixed([]byte{9}).Fixed([]byte{10})

	r := serialize.NewReader(w.Out())

	fixed, err := r.Fixed(3)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, fixed)

	n, err := r.Uvarint()
	require.NoError(t, err)
	assert.EqualValues(t, 42, n)

	blob, err := r.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(blob))

	count, err := r.VectorHeader()
	require.NoError(t, err)
	require.Equal(t, 2, count)

	for i := 0; i < count; i++ {
		_, err := r.Fixed(1)
		require.NoError(t, err)
	}

	require.NoError(t, r.Done())
}

func TestReaderDoneFailsOnTrailingBytes(t *testing.T) {
	r := serialize.NewReader([]byte{1, 2, 3})
	_, err := r.Fixed(1)
	require.NoError(t, err)

	err = r.Done()
	require.Error(t, err)
	assert.True(t, tcerr.Is(err, tcerr.InvalidArgument))
}
