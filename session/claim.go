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

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/identity"
	"github.com/blockspacer/trustchain-go/store"
	"github.com/blockspacer/trustchain-go/tcerr"
	"github.com/blockspacer/trustchain-go/trustchain"
)

// ServerClaimHalf is the server-controlled half of a provisional
// identity, handed to the claiming device by the server over a
// transport-level claim round trip (spec §4.6, §4.8 step 3's
// server_pub_sig/server_pub_enc half) that this module does not itself
// perform. ServerSignature is the server's own signature over
// trustchain.ClaimAuthenticatedMessage, computed server-side since only
// the server holds ServerPublicSignatureKey's private counterpart.
type ServerClaimHalf struct {
	PublicSignatureKey   crypto.PublicSignatureKey
	Signature            crypto.Signature
	PublicEncryptionKey  crypto.PublicEncryptionKey
	PrivateEncryptionKey crypto.PrivateEncryptionKey
}

// AttachProvisionalIdentity fuses a provisional identity (decoded from
// identityString, which must be a provisional, not permanent, identity
// string) into the session's own user account by pushing a
// ProvisionalIdentityClaim (spec §4.3 nature 14, §4.6, §4.9 "Applier").
// It also records the claimed keypair locally so
// PromoteProvisionalGroupMembership can later resolve any group this
// identity was invited into before the claim.
func (s *Session) AttachProvisionalIdentity(ctx context.Context, identityString string, server ServerClaimHalf) (store.ProvisionalUserKeyPair, error) {
	var kp store.ProvisionalUserKeyPair
	if err := s.requireReady(); err != nil {
		return kp, err
	}

	id, err := identity.Parse(identityString)
	if err != nil {
		return kp, err
	}
	if id.Kind != identity.TargetEmail {
		return kp, tcerr.New(tcerr.InvalidArgument, "session: AttachProvisionalIdentity requires a provisional identity string")
	}

	ourDeviceID, err := s.cfg.Store.LocalUser().DeviceID(ctx)
	if err != nil {
		return kp, err
	}
	ourUserID, err := s.cfg.Store.Contacts().FindUserIDByDevice(ctx, ourDeviceID)
	if err != nil {
		return kp, err
	}
	contact, err := s.cfg.Store.Contacts().FindUser(ctx, ourUserID)
	if err != nil || contact.UserPubEnc == nil {
		return kp, tcerr.New(tcerr.PreconditionFailed, "session: this user has no current public encryption key yet")
	}

	msg := trustchain.ClaimAuthenticatedMessage(ourDeviceID, id.AppSignatureKeyPair.Public, server.PublicSignatureKey)
	appSig := crypto.Sign(msg, id.AppSignatureKeyPair.Private)

	pair := append(append([]byte{}, id.AppEncryptionKeyPair.Private.Bytes()...), server.PrivateEncryptionKey.Bytes()...)
	sealedPair := crypto.SealEncrypt(pair, *contact.UserPubEnc)

	action := &trustchain.ProvisionalIdentityClaim{
		UserID:                      ourUserID,
		AppPublicSignatureKey:       id.AppSignatureKeyPair.Public,
		ServerPublicSignatureKey:    server.PublicSignatureKey,
		AppSignature:                appSig,
		ServerSignature:             server.Signature,
		UserPublicEncryptionKey:     *contact.UserPubEnc,
		SealedPrivateEncryptionKeys: crypto.SealedPrivateEncryptionKey(sealedPair),
	}

	if _, err := s.pushAction(ctx, action); err != nil {
		return kp, err
	}

	kp = store.ProvisionalUserKeyPair{
		AppPublicSignatureKey:    id.AppSignatureKeyPair.Public,
		ServerPublicSignatureKey: server.PublicSignatureKey,
		AppEncryptionKeyPair: store.LocalUserKeyPair{
			Public:  id.AppEncryptionKeyPair.Public,
			Private: id.AppEncryptionKeyPair.Private,
		},
		ServerEncryptionKeyPair: store.LocalUserKeyPair{
			Public:  server.PublicEncryptionKey,
			Private: server.PrivateEncryptionKey,
		},
	}
	if err := s.cfg.Store.ProvisionalUserKeys().Put(ctx, kp); err != nil {
		return kp, err
	}
	return kp, nil
}
