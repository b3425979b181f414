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

package groups

import (
	"context"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/keys"
	"github.com/blockspacer/trustchain-go/tcerr"
	"github.com/blockspacer/trustchain-go/trustchain"
)

// Created is the result of CreateGroup: the signed action ready to push
// as a block, plus the group's own freshly-generated keypairs. The
// caller is a founding member by construction, so it should record group
// as an internal store.Group once the block has been accepted (puller
// would do the same on replay, but the creator already holds the
// plaintext keys and need not wait for a round trip).
type Created struct {
	Action               *trustchain.UserGroupCreation2
	ID                   crypto.GroupID
	PublicSignatureKey   crypto.PublicSignatureKey
	PrivateSignatureKey  crypto.PrivateSignatureKey
	PublicEncryptionKey  crypto.PublicEncryptionKey
	PrivateEncryptionKey crypto.PrivateEncryptionKey
}

// CreateGroup builds a self-signed UserGroupCreation2 for a brand new
// group with the given members (spec §4.9 "Create"). members is
// deduplicated by clear id; an empty or over-`MaxGroupSize` result fails
// invalid_group_size. Every member not resolvable to a current public
// encryption key (permanent) or a provisional identity (via the
// configured resolver) fails user_not_found, naming every miss at once.
func (e *Engine) CreateGroup(ctx context.Context, members []keys.Identity) (*Created, error) {
	deduped := dedupeIdentities(members)
	if len(deduped) == 0 || len(deduped) > MaxGroupSize {
		return nil, tcerr.New(tcerr.InvalidGroupSize, "groups: group must have between 1 and %d members, got %d", MaxGroupSize, len(deduped))
	}

	resolved, err := e.resolveMembers(ctx, deduped)
	if err != nil {
		return nil, err
	}

	sigKP, err := crypto.NewSignatureKeyPair()
	if err != nil {
		return nil, err
	}
	encKP, err := crypto.NewEncryptionKeyPair()
	if err != nil {
		return nil, err
	}

	groupMembers, provMembers := sealMembers(encKP.Private, resolved)
	sealedPrivSig := crypto.SealEncrypt(sigKP.Private.Bytes(), encKP.Public)

	action := &trustchain.UserGroupCreation2{
		PublicSignatureKey:                sigKP.Public,
		PublicEncryptionKey:               encKP.Public,
		SealedPrivateSignatureKeyForGroup: crypto.SealedPrivateSignatureKey(sealedPrivSig),
		Members:                           groupMembers,
		ProvisionalMembers:                provMembers,
	}
	action.SelfSignature = crypto.Sign(trustchain.GroupCreationSignedMessage(action), sigKP.Private)

	return &Created{
		Action:               action,
		ID:                   crypto.GroupID(sigKP.Public),
		PublicSignatureKey:   sigKP.Public,
		PrivateSignatureKey:  sigKP.Private,
		PublicEncryptionKey:  encKP.Public,
		PrivateEncryptionKey: encKP.Private,
	}, nil
}
