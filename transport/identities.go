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

package transport

import (
	"context"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/keys"
)

type provisionalIdentityQuery struct {
	Type        string `json:"type"`
	HashedEmail string `json:"hashed_email"`
}

type provisionalIdentityEntry struct {
	HashedEmail               string                     `json:"hashed_email"`
	AppPublicSignatureKey     crypto.PublicSignatureKey  `json:"app_public_signature_key"`
	ServerPublicSignatureKey  crypto.PublicSignatureKey  `json:"server_public_signature_key"`
	AppPublicEncryptionKey    crypto.PublicEncryptionKey `json:"app_public_encryption_key"`
	ServerPublicEncryptionKey crypto.PublicEncryptionKey `json:"server_public_encryption_key"`
}

// ResolveProvisionalIdentities implements keys.ProvisionalResolver via spec
// §6's "get public provisional identities". Only hashed values with a
// matching server entry appear in the returned map; the caller (keys.Engine)
// treats a missing entry as recipient_not_found.
func (c *Client) ResolveProvisionalIdentities(ctx context.Context, hashed []string) (map[string]keys.ProvisionalIdentity, error) {
	queries := make([]provisionalIdentityQuery, len(hashed))
	for i, h := range hashed {
		queries[i] = provisionalIdentityQuery{Type: "email", HashedEmail: h}
	}

	var resp struct {
		Identities []provisionalIdentityEntry `json:"identities"`
	}
	if err := c.call(ctx, "get public provisional identities", struct {
		Identities []provisionalIdentityQuery `json:"identities"`
	}{Identities: queries}, &resp); err != nil {
		return nil, err
	}

	out := make(map[string]keys.ProvisionalIdentity, len(resp.Identities))
	for _, entry := range resp.Identities {
		out[entry.HashedEmail] = keys.ProvisionalIdentity{
			AppPublicSignatureKey:     entry.AppPublicSignatureKey,
			ServerPublicSignatureKey:  entry.ServerPublicSignatureKey,
			AppPublicEncryptionKey:    entry.AppPublicEncryptionKey,
			ServerPublicEncryptionKey: entry.ServerPublicEncryptionKey,
		}
	}
	return out, nil
}
