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

// AddMembers builds a self-signed UserGroupAddition2 that grows groupID
// with newMembers (spec §4.9 "Update"). The group must be known locally
// as internal (we hold its private signature key, i.e. we are already a
// member) — only a current member can sign an addition. newMembers is
// deduplicated the same way CreateGroup deduplicates; pass the output of
// DiffMembers when the caller tracks a full target membership rather
// than an explicit add-list, so previously-added members are not
// resealed for nothing.
func (e *Engine) AddMembers(ctx context.Context, groupID crypto.GroupID, newMembers []keys.Identity) (*trustchain.UserGroupAddition2, error) {
	group, err := e.store.Groups().FindByID(ctx, groupID)
	if err != nil {
		return nil, tcerr.New(tcerr.GroupNotFound, "groups: group %s not found", groupID)
	}
	if !group.IsMember {
		return nil, tcerr.New(tcerr.PreconditionFailed, "groups: not a member of group %s, cannot sign an addition", groupID)
	}

	deduped := dedupeIdentities(newMembers)
	if len(deduped) == 0 {
		return nil, tcerr.New(tcerr.InvalidGroupSize, "groups: addition must include at least one member")
	}
	if len(deduped) > MaxGroupSize {
		return nil, tcerr.New(tcerr.InvalidGroupSize, "groups: addition exceeds max_group_size (%d)", MaxGroupSize)
	}

	resolved, err := e.resolveMembers(ctx, deduped)
	if err != nil {
		return nil, err
	}

	groupMembers, provMembers := sealMembers(group.PrivateEncryptionKey, resolved)

	action := &trustchain.UserGroupAddition2{
		GroupID:                groupID,
		PreviousGroupBlockHash: group.LastBlockHash,
		Members:                groupMembers,
		ProvisionalMembers:     provMembers,
	}
	action.SelfSignature = crypto.Sign(trustchain.GroupAdditionSignedMessage(action), group.PrivateSignatureKey)

	return action, nil
}
