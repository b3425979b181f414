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
	"github.com/blockspacer/trustchain-go/store"
	"github.com/blockspacer/trustchain-go/tcerr"
)

// PromoteProvisionalMember checks groupID's pending provisional-member
// entries against a provisional identity this device just claimed
// (kp.AppPublicSignatureKey/ServerPublicSignatureKey), and promotes the
// group from external to internal if one matches (spec §4.9 "If we still
// are not a member, store the provisional-member entries anyway for
// later promotion when their ProvisionalIdentityClaim arrives"). Pulling
// the group's creation/addition block is what records the pending
// entries in the first place (puller.applyUserGroupCreation/Addition);
// this only resolves them afterwards, which is why it is exposed
// separately rather than folded into the applier. Returns false, nil if
// groupID is already internal or has no matching pending entry.
func (e *Engine) PromoteProvisionalMember(ctx context.Context, groupID crypto.GroupID, kp store.ProvisionalUserKeyPair) (bool, error) {
	group, err := e.store.Groups().FindByID(ctx, groupID)
	if err != nil {
		return false, tcerr.New(tcerr.GroupNotFound, "groups: group %s not found", groupID)
	}
	if group.IsMember {
		return false, nil
	}

	pending, err := e.store.Groups().FindProvisionalKeys(ctx, groupID)
	if err != nil {
		return false, err
	}

	var match *store.ProvisionalGroupKeys
	for i := range pending {
		if pending[i].AppPublicSignatureKey.Equal(kp.AppPublicSignatureKey) && pending[i].ServerPublicSignatureKey.Equal(kp.ServerPublicSignatureKey) {
			match = &pending[i]
			break
		}
	}
	if match == nil {
		return false, nil
	}

	serverSealed, err := crypto.SealDecrypt([]byte(match.TwoTimesSealedPrivateKey), kp.AppEncryptionKeyPair.Public, kp.AppEncryptionKeyPair.Private)
	if err != nil {
		return false, tcerr.Wrap(tcerr.DecryptionFailed, err, "groups: unseal app half of group private key")
	}
	plainEnc, err := crypto.SealDecrypt(serverSealed, kp.ServerEncryptionKeyPair.Public, kp.ServerEncryptionKeyPair.Private)
	if err != nil {
		return false, tcerr.Wrap(tcerr.DecryptionFailed, err, "groups: unseal server half of group private key")
	}
	privEnc, err := crypto.PrivateEncryptionKeyFromBytes(plainEnc)
	if err != nil {
		return false, err
	}

	plainSig, err := crypto.SealDecrypt([]byte(group.SealedPrivateSignatureKey), group.PublicEncryptionKey, privEnc)
	if err != nil {
		return false, tcerr.Wrap(tcerr.DecryptionFailed, err, "groups: unseal group private signature key")
	}
	privSig, err := crypto.PrivateSignatureKeyFromBytes(plainSig)
	if err != nil {
		return false, err
	}

	group.IsMember = true
	group.PrivateEncryptionKey = privEnc
	group.PrivateSignatureKey = privSig
	if err := e.store.Groups().Put(ctx, *group); err != nil {
		return false, err
	}
	return true, nil
}
