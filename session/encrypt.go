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

package session

import (
	"context"

	"github.com/blockspacer/trustchain-go/crypt"
	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/identity"
	"github.com/blockspacer/trustchain-go/keys"
)

// Encrypt seals plaintext under a fresh resource key and shares it with
// recipients (identity strings) and groupIDs in the same call (spec
// §4.10/§4.8, "encrypt" combines the two since a resource is useless
// without at least one recipient). The caller is always an implicit
// recipient: its own resource key is cached locally without a key-publish
// block.
func (s *Session) Encrypt(ctx context.Context, plaintext []byte, recipients []string, groupIDs []crypto.GroupID) ([]byte, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}

	ciphertext, resourceID, key, err := crypt.EncryptV3(plaintext)
	if err != nil {
		return nil, err
	}
	if err := s.cfg.Store.ResourceKeys().Put(ctx, resourceID, key); err != nil {
		return nil, err
	}
	if err := s.shareResourceKey(ctx, resourceID, key, recipients, groupIDs); err != nil {
		return nil, err
	}
	return ciphertext, nil
}

// Decrypt resolves ciphertext's resource key (from the local cache, or
// by pulling and opening the key-publish action addressed to us or a
// group we belong to) and opens it (spec §4.8 "get_resource_key",
// §4.10).
func (s *Session) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}

	resourceID, err := crypt.ExtractResourceID(ciphertext)
	if err != nil {
		return nil, err
	}
	key, err := s.keys.GetResourceKey(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	return crypt.DecryptV3(ciphertext, key)
}

// Share publishes the key for an already-encrypted resourceID to
// additional recipients and groups without touching the ciphertext
// itself (spec §4.8 "share-block generation"). resourceID must already
// be known locally (i.e. this device either encrypted it or has already
// decrypted it once).
func (s *Session) Share(ctx context.Context, resourceID crypto.ResourceID, recipients []string, groupIDs []crypto.GroupID) error {
	if err := s.requireReady(); err != nil {
		return err
	}
	key, err := s.cfg.Store.ResourceKeys().Get(ctx, resourceID)
	if err != nil {
		return err
	}
	return s.shareResourceKey(ctx, resourceID, key, recipients, groupIDs)
}

func (s *Session) shareResourceKey(ctx context.Context, resourceID crypto.ResourceID, key crypto.SymmetricKey, recipients []string, groupIDs []crypto.GroupID) error {
	identities, err := parseIdentities(recipients)
	if err != nil {
		return err
	}
	if len(identities) == 0 && len(groupIDs) == 0 {
		return nil
	}

	list, err := s.keys.GenerateRecipientList(ctx, identities, groupIDs)
	if err != nil {
		return err
	}
	actions := keys.BuildKeyPublishActions(resourceID, key, list)
	for _, action := range actions {
		if _, err := s.pushAction(ctx, action); err != nil {
			return err
		}
	}
	return nil
}

// parseIdentities decodes every clear identity string into the resolved
// shape keys.GenerateRecipientList expects, splitting permanent from
// provisional the same way the identity codec distinguishes them.
func parseIdentities(clearIDs []string) ([]keys.Identity, error) {
	out := make([]keys.Identity, 0, len(clearIDs))
	for _, clearID := range clearIDs {
		id, err := identity.Parse(clearID)
		if err != nil {
			return nil, err
		}
		switch id.Kind {
		case identity.TargetUser:
			userID := id.UserID
			out = append(out, keys.Identity{ClearID: clearID, UserID: &userID})
		case identity.TargetEmail:
			hashed := identity.HashEmail(id.Email)
			out = append(out, keys.Identity{ClearID: clearID, HashedEmail: &hashed})
		}
	}
	return out, nil
}
