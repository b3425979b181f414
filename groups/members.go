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

// dedupeIdentities drops repeated identities by ClearID, keeping the
// first occurrence (spec §4.9 "Deduplicate members").
func dedupeIdentities(identities []keys.Identity) []keys.Identity {
	seen := make(map[string]bool, len(identities))
	out := make([]keys.Identity, 0, len(identities))
	for _, id := range identities {
		if seen[id.ClearID] {
			continue
		}
		seen[id.ClearID] = true
		out = append(out, id)
	}
	return out
}

// resolvedMembers is the outcome of resolving a (possibly deduplicated)
// identity list to concrete public keys, ready to be sealed against a
// group's private encryption key.
type resolvedMembers struct {
	users       []crypto.UserID
	userKeys    []crypto.PublicEncryptionKey
	provisional []keys.ProvisionalIdentity
}

// resolveMembers fetches the current public encryption key of every
// permanent identity (via the contact store) and resolves every
// provisional identity (via the Engine's resolver), aggregating every
// unresolvable identity into one user_not_found error naming all the
// offending clear ids (spec §4.9 "failing user_not_found with clear ids
// on misses").
func (e *Engine) resolveMembers(ctx context.Context, identities []keys.Identity) (*resolvedMembers, error) {
	out := &resolvedMembers{}
	var missing []string

	var hashedEmails []string
	hashedToIdentity := make(map[string]keys.Identity)
	for _, id := range identities {
		switch {
		case id.UserID != nil:
			contact, err := e.store.Contacts().FindUser(ctx, *id.UserID)
			if err != nil || contact.UserPubEnc == nil {
				missing = append(missing, id.ClearID)
				continue
			}
			out.users = append(out.users, contact.UserID)
			out.userKeys = append(out.userKeys, *contact.UserPubEnc)
		case id.HashedEmail != nil:
			hashedEmails = append(hashedEmails, *id.HashedEmail)
			hashedToIdentity[*id.HashedEmail] = id
		default:
			missing = append(missing, id.ClearID)
		}
	}

	if len(hashedEmails) > 0 {
		if e.resolver == nil {
			for _, h := range hashedEmails {
				missing = append(missing, hashedToIdentity[h].ClearID)
			}
		} else {
			resolved, err := e.resolver.ResolveProvisionalIdentities(ctx, hashedEmails)
			if err != nil {
				return nil, tcerr.Wrap(tcerr.NetworkError, err, "groups: resolve provisional identities")
			}
			for _, h := range hashedEmails {
				prov, ok := resolved[h]
				if !ok {
					missing = append(missing, hashedToIdentity[h].ClearID)
					continue
				}
				out.provisional = append(out.provisional, prov)
			}
		}
	}

	if len(missing) > 0 {
		return nil, tcerr.NotFound(tcerr.UserNotFound, missing, "groups: member(s) not found")
	}
	return out, nil
}

// sealMembers seals groupPrivEnc to each resolved permanent and
// provisional member, producing the entries a UserGroupCreation2 or
// UserGroupAddition2 carries (spec §4.9, mirroring the double-seal
// convention keys.BuildKeyPublishActions uses for provisional
// recipients).
func sealMembers(groupPrivEnc crypto.PrivateEncryptionKey, resolved *resolvedMembers) ([]trustchain.GroupMember, []trustchain.GroupProvisionalMember) {
	members := make([]trustchain.GroupMember, 0, len(resolved.userKeys))
	for _, pub := range resolved.userKeys {
		sealed := crypto.SealEncrypt(groupPrivEnc.Bytes(), pub)
		members = append(members, trustchain.GroupMember{
			UserPublicEncryptionKey: pub,
			SealedGroupPrivateEncKey: crypto.SealedPrivateEncryptionKey(sealed),
		})
	}

	provMembers := make([]trustchain.GroupProvisionalMember, 0, len(resolved.provisional))
	for _, p := range resolved.provisional {
		serverSealed := crypto.SealEncrypt(groupPrivEnc.Bytes(), p.ServerPublicEncryptionKey)
		twiceSealed := crypto.SealEncrypt(serverSealed, p.AppPublicEncryptionKey)
		provMembers = append(provMembers, trustchain.GroupProvisionalMember{
			AppPublicSignatureKey:      p.AppPublicSignatureKey,
			ServerPublicSignatureKey:   p.ServerPublicSignatureKey,
			TwoTimesSealedGroupPrivEnc: crypto.TwoTimesSealedSymmetricKey(twiceSealed),
		})
	}

	return members, provMembers
}

// DiffMembers computes which of target's identities are not already
// users of group (by comparing each target identity's UserID against the
// caller-supplied current member list; identities without a UserID, such
// as provisional ones, are always kept), so an update call only seals the
// group's private key to genuinely new members rather than the whole
// target set (spec §4.9 "carries sealed private-encryption-key entries
// for the added members").
func DiffMembers(current []crypto.UserID, target []keys.Identity) []keys.Identity {
	currentSet := make(map[crypto.UserID]bool, len(current))
	for _, u := range current {
		currentSet[u] = true
	}
	added := make([]keys.Identity, 0, len(target))
	for _, id := range target {
		if id.UserID != nil && currentSet[*id.UserID] {
			continue
		}
		added = append(added, id)
	}
	return added
}
