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

package keys

import (
	"context"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/tcerr"
	"github.com/blockspacer/trustchain-go/trustchain"
)

// GetResourceKey resolves resourceID to its symmetric key (spec §4.8
// "get_resource_key"): the local resource-key cache first, then a
// key-publish entry already in the trustchain index, then (if a
// KeyFetcher was configured) a round trip to the server for a fresh
// key-publish entry, retried once after the fetch. Anything still
// unresolved fails resource_key_not_found.
func (e *Engine) GetResourceKey(ctx context.Context, resourceID crypto.ResourceID) (crypto.SymmetricKey, error) {
	if key, err := e.store.ResourceKeys().Get(ctx, resourceID); err == nil {
		return key, nil
	}

	key, err := e.resolveFromIndex(ctx, resourceID)
	if err == nil {
		_ = e.store.ResourceKeys().Put(ctx, resourceID, key)
		return key, nil
	}

	if e.fetcher != nil {
		if ferr := e.fetcher.FetchKeyPublish(ctx, resourceID[:]); ferr == nil {
			if key, err = e.resolveFromIndex(ctx, resourceID); err == nil {
				_ = e.store.ResourceKeys().Put(ctx, resourceID, key)
				return key, nil
			}
		}
	}

	return crypto.SymmetricKey{}, tcerr.NotFound(tcerr.ResourceKeyNotFound, []string{resourceID.String()}, "keys: resource key not found")
}

func (e *Engine) resolveFromIndex(ctx context.Context, resourceID crypto.ResourceID) (crypto.SymmetricKey, error) {
	entry, err := e.store.Trustchain().FindKeyPublishForResource(ctx, resourceID)
	if err != nil {
		return crypto.SymmetricKey{}, err
	}
	action, err := trustchain.Deserialize(entry.Nature, entry.Payload)
	if err != nil {
		return crypto.SymmetricKey{}, err
	}
	return e.openKeyPublish(ctx, action)
}

func (e *Engine) openKeyPublish(ctx context.Context, action trustchain.Action) (crypto.SymmetricKey, error) {
	switch a := action.(type) {
	case *trustchain.KeyPublishToDevice:
		return e.openKeyPublishToDevice(ctx, a)
	case *trustchain.KeyPublishToUser:
		return e.openKeyPublishToUser(ctx, a)
	case *trustchain.KeyPublishToUserGroup:
		return e.openKeyPublishToUserGroup(ctx, a)
	case *trustchain.KeyPublishToProvisionalUser:
		return e.openKeyPublishToProvisionalUser(ctx, a)
	default:
		return crypto.SymmetricKey{}, tcerr.New(tcerr.InternalError, "keys: unexpected key-publish action %T", action)
	}
}

func (e *Engine) openKeyPublishToDevice(ctx context.Context, a *trustchain.KeyPublishToDevice) (crypto.SymmetricKey, error) {
	ourDeviceID, err := e.store.LocalUser().DeviceID(ctx)
	if err != nil {
		return crypto.SymmetricKey{}, tcerr.New(tcerr.ResourceKeyNotFound, "keys: no local device")
	}
	if !ourDeviceID.Equal(a.RecipientDeviceID) {
		return crypto.SymmetricKey{}, tcerr.New(tcerr.ResourceKeyNotFound, "keys: key published to a different device")
	}
	_, privEnc, err := e.store.LocalUser().DeviceKeys(ctx)
	if err != nil {
		return crypto.SymmetricKey{}, err
	}
	kp, err := crypto.EncryptionKeyPairFromPrivate(privEnc)
	if err != nil {
		return crypto.SymmetricKey{}, err
	}
	plain, err := crypto.SealDecrypt([]byte(a.EncryptedSymmetricKey), kp.Public, kp.Private)
	if err != nil {
		return crypto.SymmetricKey{}, err
	}
	return crypto.SymmetricKeyFromBytes(plain)
}

func (e *Engine) openKeyPublishToUser(ctx context.Context, a *trustchain.KeyPublishToUser) (crypto.SymmetricKey, error) {
	kps, err := e.store.LocalUser().ListKeyPairs(ctx)
	if err != nil {
		return crypto.SymmetricKey{}, err
	}
	for _, kp := range kps {
		if !kp.Public.Equal(a.RecipientUserPublicEncryptionKey) {
			continue
		}
		plain, err := crypto.SealDecrypt([]byte(a.SealedSymmetricKey), kp.Public, kp.Private)
		if err != nil {
			return crypto.SymmetricKey{}, err
		}
		return crypto.SymmetricKeyFromBytes(plain)
	}
	return crypto.SymmetricKey{}, tcerr.New(tcerr.ResourceKeyNotFound, "keys: no matching user key generation")
}

func (e *Engine) openKeyPublishToUserGroup(ctx context.Context, a *trustchain.KeyPublishToUserGroup) (crypto.SymmetricKey, error) {
	group, err := e.store.Groups().FindByPublicEncryptionKey(ctx, a.RecipientGroupPublicEncryptionKey)
	if err != nil || !group.IsMember {
		return crypto.SymmetricKey{}, tcerr.New(tcerr.ResourceKeyNotFound, "keys: not a member of the recipient group")
	}
	plain, err := crypto.SealDecrypt([]byte(a.SealedSymmetricKey), group.PublicEncryptionKey, group.PrivateEncryptionKey)
	if err != nil {
		return crypto.SymmetricKey{}, err
	}
	return crypto.SymmetricKeyFromBytes(plain)
}

func (e *Engine) openKeyPublishToProvisionalUser(ctx context.Context, a *trustchain.KeyPublishToProvisionalUser) (crypto.SymmetricKey, error) {
	kp, err := e.store.ProvisionalUserKeys().Find(ctx, a.AppPublicSignatureKey, a.ServerPublicSignatureKey)
	if err != nil {
		return crypto.SymmetricKey{}, tcerr.New(tcerr.ResourceKeyNotFound, "keys: provisional identity not claimed locally")
	}
	serverSealed, err := crypto.SealDecrypt([]byte(a.TwoTimesSealedSymmetricKey), kp.AppEncryptionKeyPair.Public, kp.AppEncryptionKeyPair.Private)
	if err != nil {
		return crypto.SymmetricKey{}, err
	}
	plain, err := crypto.SealDecrypt(serverSealed, kp.ServerEncryptionKeyPair.Public, kp.ServerEncryptionKeyPair.Private)
	if err != nil {
		return crypto.SymmetricKey{}, err
	}
	return crypto.SymmetricKeyFromBytes(plain)
}
