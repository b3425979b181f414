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

package main

import (
	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/blockspacer/trustchain-go/tcerr"
)

// encodeID renders a raw id the way the teacher's did/locker ids are
// rendered throughout its model package: base58, with no padding
// characters to fumble when copy-pasting into another command.
func encodeID(raw []byte) string {
	return base58.Encode(raw)
}

// decodeID reverses encodeID, flagging malformed input the same way
// base58.Decode always does: an empty result.
func decodeID(s string) ([]byte, error) {
	raw := base58.Decode(s)
	if len(raw) == 0 && s != "" {
		return nil, tcerr.New(tcerr.InvalidArgument, "tcctl: %q is not a valid base58 id", s)
	}
	return raw, nil
}
