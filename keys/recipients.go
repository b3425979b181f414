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

// Identity is one recipient requested by a caller of encrypt/share,
// already split into permanent or provisional by the identity codec.
// Exactly one of UserID or HashedEmail is set. ClearID is the original
// identity string, echoed back in recipient_not_found errors.
type Identity struct {
	ClearID     string
	UserID      *crypto.UserID
	HashedEmail *string
}

// ProvisionalIdentity is a resolved public provisional identity (spec
// §4.8 step 3's `(app_pub_sig, tanker_pub_sig, app_pub_enc, tanker_pub_enc)`
// tuple).
type ProvisionalIdentity struct {
	AppPublicSignatureKey     crypto.PublicSignatureKey
	ServerPublicSignatureKey  crypto.PublicSignatureKey
	AppPublicEncryptionKey    crypto.PublicEncryptionKey
	ServerPublicEncryptionKey crypto.PublicEncryptionKey
}

// UserRecipient is a resolved permanent-user recipient.
type UserRecipient struct {
	UserID              crypto.UserID
	PublicEncryptionKey crypto.PublicEncryptionKey
}

// GroupRecipient is a resolved group recipient.
type GroupRecipient struct {
	GroupID             crypto.GroupID
	PublicEncryptionKey crypto.PublicEncryptionKey
}

// RecipientList is the partitioned, resolved output of
// GenerateRecipientList, ready for BuildKeyPublishActions.
type RecipientList struct {
	Users       []UserRecipient
	Groups      []GroupRecipient
	Provisional []ProvisionalIdentity
}

// GenerateRecipientList resolves identities and groupIDs (spec §4.8
// "generate_recipient_list"): permanent identities are pulled from the
// contact store by their current public encryption key; provisional
// identities are resolved against the server via the Engine's
// ProvisionalResolver; groups are pulled by id. Any recipient missing from
// every source fails recipient_not_found, naming every offending clear id
// at once rather than stopping at the first.
func (e *Engine) GenerateRecipientList(ctx context.Context, identities []Identity, groupIDs []crypto.GroupID) (*RecipientList, error) {
	out := &RecipientList{}
	var missing []string

	var hashedEmails []string
	hashedToIdentity := make(map[string]Identity)
	for _, id := range identities {
		switch {
		case id.UserID != nil:
			contact, ok := e.cache.users.Get(*id.UserID)
			if !ok {
				c, err := e.store.Contacts().FindUser(ctx, *id.UserID)
				if err != nil || c.UserPubEnc == nil {
					missing = append(missing, id.ClearID)
					continue
				}
				contact = c
				e.cache.users.Put(*id.UserID, contact)
			}
			if contact.UserPubEnc == nil {
				missing = append(missing, id.ClearID)
				continue
			}
			out.Users = append(out.Users, UserRecipient{UserID: contact.UserID, PublicEncryptionKey: *contact.UserPubEnc})
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
				return nil, tcerr.Wrap(tcerr.NetworkError, err, "resolve provisional identities")
			}
			for _, h := range hashedEmails {
				prov, ok := resolved[h]
				if !ok {
					missing = append(missing, hashedToIdentity[h].ClearID)
					continue
				}
				out.Provisional = append(out.Provisional, prov)
			}
		}
	}

	for _, gid := range groupIDs {
		group, ok := e.cache.groups.Get(gid)
		if !ok {
			g, err := e.store.Groups().FindByID(ctx, gid)
			if err != nil {
				missing = append(missing, gid.String())
				continue
			}
			group = g
			e.cache.groups.Put(gid, group)
		}
		out.Groups = append(out.Groups, GroupRecipient{GroupID: group.ID, PublicEncryptionKey: group.PublicEncryptionKey})
	}

	if len(missing) > 0 {
		return nil, tcerr.NotFound(tcerr.RecipientNotFound, missing, "keys: recipient(s) not found")
	}
	return out, nil
}

// BuildKeyPublishActions builds one key-publish action per recipient in
// list, sealing (resourceID, key) to each (spec §4.8 "share-block
// generation"). Provisional recipients get a twice-sealed key: sealed
// first to the server's public encryption key, then that sealed blob
// sealed again to the app's public encryption key, so a claiming device
// must hold both halves to recover it.
func BuildKeyPublishActions(resourceID crypto.ResourceID, key crypto.SymmetricKey, list *RecipientList) []trustchain.Action {
	actions := make([]trustchain.Action, 0, len(list.Users)+len(list.Groups)+len(list.Provisional))

	for _, u := range list.Users {
		sealed := crypto.SealEncrypt(key[:], u.PublicEncryptionKey)
		actions = append(actions, &trustchain.KeyPublishToUser{
			RecipientUserPublicEncryptionKey: u.PublicEncryptionKey,
			ResourceID:                       resourceID,
			SealedSymmetricKey:               crypto.SealedSymmetricKey(sealed),
		})
	}

	for _, g := range list.Groups {
		sealed := crypto.SealEncrypt(key[:], g.PublicEncryptionKey)
		actions = append(actions, &trustchain.KeyPublishToUserGroup{
			RecipientGroupPublicEncryptionKey: g.PublicEncryptionKey,
			ResourceID:                        resourceID,
			SealedSymmetricKey:                crypto.SealedSymmetricKey(sealed),
		})
	}

	for _, p := range list.Provisional {
		serverSealed := crypto.SealEncrypt(key[:], p.ServerPublicEncryptionKey)
		twiceSealed := crypto.SealEncrypt(serverSealed, p.AppPublicEncryptionKey)
		actions = append(actions, &trustchain.KeyPublishToProvisionalUser{
			AppPublicSignatureKey:      p.AppPublicSignatureKey,
			ServerPublicSignatureKey:   p.ServerPublicSignatureKey,
			ResourceID:                 resourceID,
			TwoTimesSealedSymmetricKey: crypto.TwoTimesSealedSymmetricKey(twiceSealed),
		})
	}

	return actions
}
