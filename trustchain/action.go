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

package trustchain

import (
	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/serialize"
	"github.com/blockspacer/trustchain-go/tcerr"
)

// Action is implemented by every action variant. Serialize/Deserialize
// round-trip byte-for-byte: deserialize(serialize(a)) == a and the
// serialized length equals the number of bytes written (spec §8).
type Action interface {
	Nature() Nature
	Serialize() []byte
}

// TrustchainCreation is the root action of a trustchain (spec §4.3, nature 1).
type TrustchainCreation struct {
	PublicSignatureKey crypto.PublicSignatureKey
}

func (a *TrustchainCreation) Nature() Nature { return NatureTrustchainCreation }

func (a *TrustchainCreation) Serialize() []byte {
	return serialize.NewWriter().Fixed(a.PublicSignatureKey[:]).Out()
}

func deserializeTrustchainCreation(r *serialize.Reader) (*TrustchainCreation, error) {
	b, err := r.Fixed(crypto.PublicSignatureKeySize)
	if err != nil {
		return nil, err
	}
	pub, err := crypto.PublicSignatureKeyFromBytes(b)
	if err != nil {
		return nil, err
	}
	return &TrustchainCreation{PublicSignatureKey: pub}, nil
}

// deviceCreationCommon holds the fields shared by v1 and v3 device
// creations (spec §4.3).
type deviceCreationCommon struct {
	EphemeralPublicSignatureKey crypto.PublicSignatureKey
	UserID                      crypto.UserID
	DelegationSignature         crypto.Signature
	DevicePublicSignatureKey    crypto.PublicSignatureKey
	DevicePublicEncryptionKey   crypto.PublicEncryptionKey
}

func (c *deviceCreationCommon) writeTo(w *serialize.Writer) {
	w.Fixed(c.EphemeralPublicSignatureKey[:]).
		Fixed(c.UserID[:]).
		Fixed(c.DelegationSignature[:]).
		Fixed(c.DevicePublicSignatureKey[:]).
		Fixed(c.DevicePublicEncryptionKey[:])
}

func readDeviceCreationCommon(r *serialize.Reader) (deviceCreationCommon, error) {
	var c deviceCreationCommon
	b, err := r.Fixed(crypto.PublicSignatureKeySize)
	if err != nil {
		return c, err
	}
	if c.EphemeralPublicSignatureKey, err = crypto.PublicSignatureKeyFromBytes(b); err != nil {
		return c, err
	}
	if b, err = r.Fixed(crypto.UserIDSize); err != nil {
		return c, err
	}
	if c.UserID, err = crypto.UserIDFromBytes(b); err != nil {
		return c, err
	}
	if b, err = r.Fixed(crypto.SignatureSize); err != nil {
		return c, err
	}
	if c.DelegationSignature, err = crypto.SignatureFromBytes(b); err != nil {
		return c, err
	}
	if b, err = r.Fixed(crypto.PublicSignatureKeySize); err != nil {
		return c, err
	}
	if c.DevicePublicSignatureKey, err = crypto.PublicSignatureKeyFromBytes(b); err != nil {
		return c, err
	}
	if b, err = r.Fixed(crypto.PublicEncryptionKeySize); err != nil {
		return c, err
	}
	if c.DevicePublicEncryptionKey, err = crypto.PublicEncryptionKeyFromBytes(b); err != nil {
		return c, err
	}
	return c, nil
}

// DeviceCreation is the legacy v1 device-creation action: it never carries
// a user encryption key (spec §3 Invariant 4).
type DeviceCreation struct {
	deviceCreationCommon
}

func (a *DeviceCreation) Nature() Nature { return NatureDeviceCreation }

func (a *DeviceCreation) Serialize() []byte {
	w := serialize.NewWriter()
	a.writeTo(w)
	return w.Out()
}

func deserializeDeviceCreation(r *serialize.Reader) (*DeviceCreation, error) {
	c, err := readDeviceCreationCommon(r)
	if err != nil {
		return nil, err
	}
	return &DeviceCreation{deviceCreationCommon: c}, nil
}

// UserKeyPair carries a user encryption keypair as published on the chain:
// the public half in the clear, the private half sealed to one device.
type UserKeyPair struct {
	PublicEncryptionKey         crypto.PublicEncryptionKey
	SealedPrivateKeyForDevice   crypto.SealedPrivateEncryptionKey
}

// DeviceCreation3 is the modern device-creation action: it carries the
// user's current public encryption key and is_ghost_device (spec §4.3,
// nature 7).
type DeviceCreation3 struct {
	deviceCreationCommon
	UserKeyPair   UserKeyPair
	IsGhostDevice bool
}

func (a *DeviceCreation3) Nature() Nature { return NatureDeviceCreation3 }

func (a *DeviceCreation3) Serialize() []byte {
	w := serialize.NewWriter()
	a.writeTo(w)
	w.Fixed(a.UserKeyPair.PublicEncryptionKey[:]).
		Fixed([]byte(a.UserKeyPair.SealedPrivateKeyForDevice))
	ghost := byte(0)
	if a.IsGhostDevice {
		ghost = 1
	}
	w.Fixed([]byte{ghost})
	return w.Out()
}

func deserializeDeviceCreation3(r *serialize.Reader) (*DeviceCreation3, error) {
	c, err := readDeviceCreationCommon(r)
	if err != nil {
		return nil, err
	}
	pubB, err := r.Fixed(crypto.PublicEncryptionKeySize)
	if err != nil {
		return nil, err
	}
	pub, err := crypto.PublicEncryptionKeyFromBytes(pubB)
	if err != nil {
		return nil, err
	}
	sealed, err := r.Fixed(crypto.SealedPrivateEncKeySize)
	if err != nil {
		return nil, err
	}
	ghostB, err := r.Fixed(1)
	if err != nil {
		return nil, err
	}
	return &DeviceCreation3{
		deviceCreationCommon: c,
		UserKeyPair: UserKeyPair{
			PublicEncryptionKey:       pub,
			SealedPrivateKeyForDevice: crypto.SealedPrivateEncryptionKey(append([]byte(nil), sealed...)),
		},
		IsGhostDevice: ghostB[0] != 0,
	}, nil
}

// KeyPublishToDevice is the legacy key-publish variant (spec Open Question
// 1: accepted on read, never emitted).
type KeyPublishToDevice struct {
	RecipientDeviceID     crypto.DeviceID
	ResourceID            crypto.ResourceID
	EncryptedSymmetricKey crypto.SealedSymmetricKey
}

func (a *KeyPublishToDevice) Nature() Nature { return NatureKeyPublishToDevice }

func (a *KeyPublishToDevice) Serialize() []byte {
	return serialize.NewWriter().
		Fixed(a.RecipientDeviceID[:]).
		Fixed(a.ResourceID[:]).
		Fixed([]byte(a.EncryptedSymmetricKey)).
		Out()
}

func deserializeKeyPublishToDevice(r *serialize.Reader) (*KeyPublishToDevice, error) {
	devB, err := r.Fixed(crypto.DeviceIDSize)
	if err != nil {
		return nil, err
	}
	dev, err := crypto.DeviceIDFromBytes(devB)
	if err != nil {
		return nil, err
	}
	resB, err := r.Fixed(crypto.ResourceIDSize)
	if err != nil {
		return nil, err
	}
	res, err := crypto.ResourceIDFromBytes(resB)
	if err != nil {
		return nil, err
	}
	sealed, err := r.Fixed(crypto.SealedSymmetricKeySize)
	if err != nil {
		return nil, err
	}
	return &KeyPublishToDevice{
		RecipientDeviceID:     dev,
		ResourceID:            res,
		EncryptedSymmetricKey: crypto.SealedSymmetricKey(append([]byte(nil), sealed...)),
	}, nil
}

// KeyPublishToUser seals a resource key to a user's current public
// encryption key (spec §4.3, nature 8).
type KeyPublishToUser struct {
	RecipientUserPublicEncryptionKey crypto.PublicEncryptionKey
	ResourceID                       crypto.ResourceID
	SealedSymmetricKey                crypto.SealedSymmetricKey
}

func (a *KeyPublishToUser) Nature() Nature { return NatureKeyPublishToUser }

func (a *KeyPublishToUser) Serialize() []byte {
	return serialize.NewWriter().
		Fixed(a.RecipientUserPublicEncryptionKey[:]).
		Fixed(a.ResourceID[:]).
		Fixed([]byte(a.SealedSymmetricKey)).
		Out()
}

func deserializeKeyPublishToUser(r *serialize.Reader) (*KeyPublishToUser, error) {
	pubB, err := r.Fixed(crypto.PublicEncryptionKeySize)
	if err != nil {
		return nil, err
	}
	pub, err := crypto.PublicEncryptionKeyFromBytes(pubB)
	if err != nil {
		return nil, err
	}
	resB, err := r.Fixed(crypto.ResourceIDSize)
	if err != nil {
		return nil, err
	}
	res, err := crypto.ResourceIDFromBytes(resB)
	if err != nil {
		return nil, err
	}
	sealed, err := r.Fixed(crypto.SealedSymmetricKeySize)
	if err != nil {
		return nil, err
	}
	return &KeyPublishToUser{
		RecipientUserPublicEncryptionKey: pub,
		ResourceID:                       res,
		SealedSymmetricKey:               crypto.SealedSymmetricKey(append([]byte(nil), sealed...)),
	}, nil
}

// KeyPublishToUserGroup is identical to KeyPublishToUser but the recipient
// is a group's public encryption key (spec §4.3, nature 11).
type KeyPublishToUserGroup struct {
	RecipientGroupPublicEncryptionKey crypto.PublicEncryptionKey
	ResourceID                        crypto.ResourceID
	SealedSymmetricKey                 crypto.SealedSymmetricKey
}

func (a *KeyPublishToUserGroup) Nature() Nature { return NatureKeyPublishToUserGroup }

func (a *KeyPublishToUserGroup) Serialize() []byte {
	return serialize.NewWriter().
		Fixed(a.RecipientGroupPublicEncryptionKey[:]).
		Fixed(a.ResourceID[:]).
		Fixed([]byte(a.SealedSymmetricKey)).
		Out()
}

func deserializeKeyPublishToUserGroup(r *serialize.Reader) (*KeyPublishToUserGroup, error) {
	pubB, err := r.Fixed(crypto.PublicEncryptionKeySize)
	if err != nil {
		return nil, err
	}
	pub, err := crypto.PublicEncryptionKeyFromBytes(pubB)
	if err != nil {
		return nil, err
	}
	resB, err := r.Fixed(crypto.ResourceIDSize)
	if err != nil {
		return nil, err
	}
	res, err := crypto.ResourceIDFromBytes(resB)
	if err != nil {
		return nil, err
	}
	sealed, err := r.Fixed(crypto.SealedSymmetricKeySize)
	if err != nil {
		return nil, err
	}
	return &KeyPublishToUserGroup{
		RecipientGroupPublicEncryptionKey: pub,
		ResourceID:                        res,
		SealedSymmetricKey:                crypto.SealedSymmetricKey(append([]byte(nil), sealed...)),
	}, nil
}

// KeyPublishToProvisionalUser seals a resource key twice, once to the
// server-controlled half and once to the app-controlled half of a
// provisional identity (spec §4.3, nature 13; §4.8 step 3).
type KeyPublishToProvisionalUser struct {
	AppPublicSignatureKey    crypto.PublicSignatureKey
	ServerPublicSignatureKey crypto.PublicSignatureKey
	ResourceID               crypto.ResourceID
	TwoTimesSealedSymmetricKey crypto.TwoTimesSealedSymmetricKey
}

func (a *KeyPublishToProvisionalUser) Nature() Nature { return NatureKeyPublishToProvisionalUser }

func (a *KeyPublishToProvisionalUser) Serialize() []byte {
	return serialize.NewWriter().
		Fixed(a.AppPublicSignatureKey[:]).
		Fixed(a.ServerPublicSignatureKey[:]).
		Fixed(a.ResourceID[:]).
		Fixed([]byte(a.TwoTimesSealedSymmetricKey)).
		Out()
}

func deserializeKeyPublishToProvisionalUser(r *serialize.Reader) (*KeyPublishToProvisionalUser, error) {
	appB, err := r.Fixed(crypto.PublicSignatureKeySize)
	if err != nil {
		return nil, err
	}
	app, err := crypto.PublicSignatureKeyFromBytes(appB)
	if err != nil {
		return nil, err
	}
	srvB, err := r.Fixed(crypto.PublicSignatureKeySize)
	if err != nil {
		return nil, err
	}
	srv, err := crypto.PublicSignatureKeyFromBytes(srvB)
	if err != nil {
		return nil, err
	}
	resB, err := r.Fixed(crypto.ResourceIDSize)
	if err != nil {
		return nil, err
	}
	res, err := crypto.ResourceIDFromBytes(resB)
	if err != nil {
		return nil, err
	}
	sealed, err := r.Fixed(crypto.TwoSealedSymmetricKeySize)
	if err != nil {
		return nil, err
	}
	return &KeyPublishToProvisionalUser{
		AppPublicSignatureKey:      app,
		ServerPublicSignatureKey:   srv,
		ResourceID:                 res,
		TwoTimesSealedSymmetricKey: crypto.TwoTimesSealedSymmetricKey(append([]byte(nil), sealed...)),
	}, nil
}

// DeviceRevocation is the legacy v1 revocation, valid only for users with
// no user key (spec §3 Invariant 5).
type DeviceRevocation struct {
	TargetDeviceID crypto.DeviceID
}

func (a *DeviceRevocation) Nature() Nature { return NatureDeviceRevocation }

func (a *DeviceRevocation) Serialize() []byte {
	return serialize.NewWriter().Fixed(a.TargetDeviceID[:]).Out()
}

func deserializeDeviceRevocation(r *serialize.Reader) (*DeviceRevocation, error) {
	b, err := r.Fixed(crypto.DeviceIDSize)
	if err != nil {
		return nil, err
	}
	dev, err := crypto.DeviceIDFromBytes(b)
	if err != nil {
		return nil, err
	}
	return &DeviceRevocation{TargetDeviceID: dev}, nil
}

// SealedUserKeyForDevice seals the new user private encryption key to one
// of the (still non-revoked) devices of the revoked user.
type SealedUserKeyForDevice struct {
	DeviceID                     crypto.DeviceID
	SealedNewUserPrivateEncKey   crypto.SealedPrivateEncryptionKey
}

// DeviceRevocation2 rotates the user key and re-seals it to every other
// non-revoked device (spec §4.3 nature 9, §3 Invariant 5).
type DeviceRevocation2 struct {
	TargetDeviceID                  crypto.DeviceID
	NewUserPublicEncryptionKey       crypto.PublicEncryptionKey
	PreviousUserPublicEncryptionKey  crypto.PublicEncryptionKey
	SealedKeyForPreviousUserKey      crypto.SealedPrivateEncryptionKey
	SealedKeysForDevices             []SealedUserKeyForDevice
}

func (a *DeviceRevocation2) Nature() Nature { return NatureDeviceRevocation2 }

func (a *DeviceRevocation2) Serialize() []byte {
	w := serialize.NewWriter().
		Fixed(a.TargetDeviceID[:]).
		Fixed(a.NewUserPublicEncryptionKey[:]).
		Fixed(a.PreviousUserPublicEncryptionKey[:]).
		Fixed([]byte(a.SealedKeyForPreviousUserKey)).
		VectorHeader(len(a.SealedKeysForDevices))
	for _, e := range a.SealedKeysForDevices {
		w.Fixed(e.DeviceID[:]).Fixed([]byte(e.SealedNewUserPrivateEncKey))
	}
	return w.Out()
}

func deserializeDeviceRevocation2(r *serialize.Reader) (*DeviceRevocation2, error) {
	targetB, err := r.Fixed(crypto.DeviceIDSize)
	if err != nil {
		return nil, err
	}
	target, err := crypto.DeviceIDFromBytes(targetB)
	if err != nil {
		return nil, err
	}
	newPubB, err := r.Fixed(crypto.PublicEncryptionKeySize)
	if err != nil {
		return nil, err
	}
	newPub, err := crypto.PublicEncryptionKeyFromBytes(newPubB)
	if err != nil {
		return nil, err
	}
	prevPubB, err := r.Fixed(crypto.PublicEncryptionKeySize)
	if err != nil {
		return nil, err
	}
	prevPub, err := crypto.PublicEncryptionKeyFromBytes(prevPubB)
	if err != nil {
		return nil, err
	}
	sealedPrev, err := r.Fixed(crypto.SealedPrivateEncKeySize)
	if err != nil {
		return nil, err
	}
	count, err := r.VectorHeader()
	if err != nil {
		return nil, err
	}
	entries := make([]SealedUserKeyForDevice, 0, count)
	for i := 0; i < count; i++ {
		devB, err := r.Fixed(crypto.DeviceIDSize)
		if err != nil {
			return nil, err
		}
		dev, err := crypto.DeviceIDFromBytes(devB)
		if err != nil {
			return nil, err
		}
		sealed, err := r.Fixed(crypto.SealedPrivateEncKeySize)
		if err != nil {
			return nil, err
		}
		entries = append(entries, SealedUserKeyForDevice{
			DeviceID:                   dev,
			SealedNewUserPrivateEncKey: crypto.SealedPrivateEncryptionKey(append([]byte(nil), sealed...)),
		})
	}
	return &DeviceRevocation2{
		TargetDeviceID:                  target,
		NewUserPublicEncryptionKey:      newPub,
		PreviousUserPublicEncryptionKey: prevPub,
		SealedKeyForPreviousUserKey:     crypto.SealedPrivateEncryptionKey(append([]byte(nil), sealedPrev...)),
		SealedKeysForDevices:            entries,
	}, nil
}

// GroupMember is a UserGroupCreation/Addition member entry: the member's
// user id (for store lookups; not itself serialized — the recipient's
// public key already identifies them uniquely within the action), their
// public encryption key, and the group private encryption key sealed for
// them (spec §4.3).
type GroupMember struct {
	UserPublicEncryptionKey   crypto.PublicEncryptionKey
	SealedGroupPrivateEncKey   crypto.SealedPrivateEncryptionKey
}

// GroupProvisionalMember is a provisional-identity member entry of a
// UserGroupCreation2/Addition2 (spec §4.3).
type GroupProvisionalMember struct {
	AppPublicSignatureKey      crypto.PublicSignatureKey
	ServerPublicSignatureKey   crypto.PublicSignatureKey
	TwoTimesSealedGroupPrivEnc crypto.TwoTimesSealedSymmetricKey
}

func writeMembers(w *serialize.Writer, members []GroupMember) {
	w.VectorHeader(len(members))
	for _, m := range members {
		w.Fixed(m.UserPublicEncryptionKey[:]).Fixed([]byte(m.SealedGroupPrivateEncKey))
	}
}

func readMembers(r *serialize.Reader) ([]GroupMember, error) {
	count, err := r.VectorHeader()
	if err != nil {
		return nil, err
	}
	out := make([]GroupMember, 0, count)
	for i := 0; i < count; i++ {
		pubB, err := r.Fixed(crypto.PublicEncryptionKeySize)
		if err != nil {
			return nil, err
		}
		pub, err := crypto.PublicEncryptionKeyFromBytes(pubB)
		if err != nil {
			return nil, err
		}
		sealed, err := r.Fixed(crypto.SealedPrivateEncKeySize)
		if err != nil {
			return nil, err
		}
		out = append(out, GroupMember{
			UserPublicEncryptionKey:  pub,
			SealedGroupPrivateEncKey: crypto.SealedPrivateEncryptionKey(append([]byte(nil), sealed...)),
		})
	}
	return out, nil
}

func writeProvisionalMembers(w *serialize.Writer, members []GroupProvisionalMember) {
	w.VectorHeader(len(members))
	for _, m := range members {
		w.Fixed(m.AppPublicSignatureKey[:]).Fixed(m.ServerPublicSignatureKey[:]).Fixed([]byte(m.TwoTimesSealedGroupPrivEnc))
	}
}

func readProvisionalMembers(r *serialize.Reader) ([]GroupProvisionalMember, error) {
	count, err := r.VectorHeader()
	if err != nil {
		return nil, err
	}
	out := make([]GroupProvisionalMember, 0, count)
	for i := 0; i < count; i++ {
		appB, err := r.Fixed(crypto.PublicSignatureKeySize)
		if err != nil {
			return nil, err
		}
		app, err := crypto.PublicSignatureKeyFromBytes(appB)
		if err != nil {
			return nil, err
		}
		srvB, err := r.Fixed(crypto.PublicSignatureKeySize)
		if err != nil {
			return nil, err
		}
		srv, err := crypto.PublicSignatureKeyFromBytes(srvB)
		if err != nil {
			return nil, err
		}
		sealed, err := r.Fixed(crypto.TwoSealedSymmetricKeySize)
		if err != nil {
			return nil, err
		}
		out = append(out, GroupProvisionalMember{
			AppPublicSignatureKey:      app,
			ServerPublicSignatureKey:   srv,
			TwoTimesSealedGroupPrivEnc: crypto.TwoTimesSealedSymmetricKey(append([]byte(nil), sealed...)),
		})
	}
	return out, nil
}

// UserGroupCreation is the legacy v1 group-creation action: no provisional
// members (spec §4.3 nature 10; original_source predates provisional
// group members in v1).
type UserGroupCreation struct {
	PublicSignatureKey              crypto.PublicSignatureKey
	PublicEncryptionKey              crypto.PublicEncryptionKey
	SealedPrivateSignatureKeyForGroup crypto.SealedPrivateSignatureKey
	Members                          []GroupMember
	SelfSignature                    crypto.Signature
}

func (a *UserGroupCreation) Nature() Nature { return NatureUserGroupCreation }

func (a *UserGroupCreation) signedPayload() []byte {
	w := serialize.NewWriter().
		Fixed(a.PublicSignatureKey[:]).
		Fixed(a.PublicEncryptionKey[:]).
		Fixed([]byte(a.SealedPrivateSignatureKeyForGroup))
	writeMembers(w, a.Members)
	return w.Out()
}

func (a *UserGroupCreation) Serialize() []byte {
	w := serialize.NewWriter().Fixed(a.signedPayload()).Fixed(a.SelfSignature[:])
	return w.Out()
}

func deserializeUserGroupCreation(r *serialize.Reader) (*UserGroupCreation, error) {
	sigPubB, err := r.Fixed(crypto.PublicSignatureKeySize)
	if err != nil {
		return nil, err
	}
	sigPub, err := crypto.PublicSignatureKeyFromBytes(sigPubB)
	if err != nil {
		return nil, err
	}
	encPubB, err := r.Fixed(crypto.PublicEncryptionKeySize)
	if err != nil {
		return nil, err
	}
	encPub, err := crypto.PublicEncryptionKeyFromBytes(encPubB)
	if err != nil {
		return nil, err
	}
	sealedPriv, err := r.Fixed(crypto.SealedPrivateSigKeySize)
	if err != nil {
		return nil, err
	}
	members, err := readMembers(r)
	if err != nil {
		return nil, err
	}
	sigB, err := r.Fixed(crypto.SignatureSize)
	if err != nil {
		return nil, err
	}
	selfSig, err := crypto.SignatureFromBytes(sigB)
	if err != nil {
		return nil, err
	}
	return &UserGroupCreation{
		PublicSignatureKey:                sigPub,
		PublicEncryptionKey:               encPub,
		SealedPrivateSignatureKeyForGroup: crypto.SealedPrivateSignatureKey(append([]byte(nil), sealedPriv...)),
		Members:                           members,
		SelfSignature:                     selfSig,
	}, nil
}

// UserGroupCreation2 additionally carries provisional members (spec §4.3
// nature 15); this is the only group-creation variant this SDK emits
// (spec §9 Open Question 1).
type UserGroupCreation2 struct {
	PublicSignatureKey                crypto.PublicSignatureKey
	PublicEncryptionKey               crypto.PublicEncryptionKey
	SealedPrivateSignatureKeyForGroup crypto.SealedPrivateSignatureKey
	Members                           []GroupMember
	ProvisionalMembers                []GroupProvisionalMember
	SelfSignature                     crypto.Signature
}

func (a *UserGroupCreation2) Nature() Nature { return NatureUserGroupCreation2 }

func (a *UserGroupCreation2) signedPayload() []byte {
	w := serialize.NewWriter().
		Fixed(a.PublicSignatureKey[:]).
		Fixed(a.PublicEncryptionKey[:]).
		Fixed([]byte(a.SealedPrivateSignatureKeyForGroup))
	writeMembers(w, a.Members)
	writeProvisionalMembers(w, a.ProvisionalMembers)
	return w.Out()
}

func (a *UserGroupCreation2) Serialize() []byte {
	return serialize.NewWriter().Fixed(a.signedPayload()).Fixed(a.SelfSignature[:]).Out()
}

func deserializeUserGroupCreation2(r *serialize.Reader) (*UserGroupCreation2, error) {
	sigPubB, err := r.Fixed(crypto.PublicSignatureKeySize)
	if err != nil {
		return nil, err
	}
	sigPub, err := crypto.PublicSignatureKeyFromBytes(sigPubB)
	if err != nil {
		return nil, err
	}
	encPubB, err := r.Fixed(crypto.PublicEncryptionKeySize)
	if err != nil {
		return nil, err
	}
	encPub, err := crypto.PublicEncryptionKeyFromBytes(encPubB)
	if err != nil {
		return nil, err
	}
	sealedPriv, err := r.Fixed(crypto.SealedPrivateSigKeySize)
	if err != nil {
		return nil, err
	}
	members, err := readMembers(r)
	if err != nil {
		return nil, err
	}
	provMembers, err := readProvisionalMembers(r)
	if err != nil {
		return nil, err
	}
	sigB, err := r.Fixed(crypto.SignatureSize)
	if err != nil {
		return nil, err
	}
	selfSig, err := crypto.SignatureFromBytes(sigB)
	if err != nil {
		return nil, err
	}
	return &UserGroupCreation2{
		PublicSignatureKey:                sigPub,
		PublicEncryptionKey:               encPub,
		SealedPrivateSignatureKeyForGroup: crypto.SealedPrivateSignatureKey(append([]byte(nil), sealedPriv...)),
		Members:                           members,
		ProvisionalMembers:                provMembers,
		SelfSignature:                     selfSig,
	}, nil
}

// UserGroupAddition is the legacy v1 group-membership addition.
type UserGroupAddition struct {
	GroupID                crypto.GroupID
	PreviousGroupBlockHash crypto.Hash
	Members                []GroupMember
	SelfSignature          crypto.Signature
}

func (a *UserGroupAddition) Nature() Nature { return NatureUserGroupAddition }

func (a *UserGroupAddition) signedPayload() []byte {
	w := serialize.NewWriter().Fixed(a.GroupID[:]).Fixed(a.PreviousGroupBlockHash[:])
	writeMembers(w, a.Members)
	return w.Out()
}

func (a *UserGroupAddition) Serialize() []byte {
	return serialize.NewWriter().Fixed(a.signedPayload()).Fixed(a.SelfSignature[:]).Out()
}

func deserializeUserGroupAddition(r *serialize.Reader) (*UserGroupAddition, error) {
	gidB, err := r.Fixed(crypto.GroupIDSize)
	if err != nil {
		return nil, err
	}
	gid, err := crypto.GroupIDFromBytes(gidB)
	if err != nil {
		return nil, err
	}
	prevB, err := r.Fixed(crypto.HashSize)
	if err != nil {
		return nil, err
	}
	prev, err := crypto.HashFromBytes(prevB)
	if err != nil {
		return nil, err
	}
	members, err := readMembers(r)
	if err != nil {
		return nil, err
	}
	sigB, err := r.Fixed(crypto.SignatureSize)
	if err != nil {
		return nil, err
	}
	selfSig, err := crypto.SignatureFromBytes(sigB)
	if err != nil {
		return nil, err
	}
	return &UserGroupAddition{
		GroupID:                gid,
		PreviousGroupBlockHash: prev,
		Members:                members,
		SelfSignature:          selfSig,
	}, nil
}

// UserGroupAddition2 additionally carries provisional members (spec §4.3
// nature 16); this is the only group-addition variant this SDK emits.
type UserGroupAddition2 struct {
	GroupID                crypto.GroupID
	PreviousGroupBlockHash crypto.Hash
	Members                []GroupMember
	ProvisionalMembers     []GroupProvisionalMember
	SelfSignature          crypto.Signature
}

func (a *UserGroupAddition2) Nature() Nature { return NatureUserGroupAddition2 }

func (a *UserGroupAddition2) signedPayload() []byte {
	w := serialize.NewWriter().Fixed(a.GroupID[:]).Fixed(a.PreviousGroupBlockHash[:])
	writeMembers(w, a.Members)
	writeProvisionalMembers(w, a.ProvisionalMembers)
	return w.Out()
}

func (a *UserGroupAddition2) Serialize() []byte {
	return serialize.NewWriter().Fixed(a.signedPayload()).Fixed(a.SelfSignature[:]).Out()
}

func deserializeUserGroupAddition2(r *serialize.Reader) (*UserGroupAddition2, error) {
	gidB, err := r.Fixed(crypto.GroupIDSize)
	if err != nil {
		return nil, err
	}
	gid, err := crypto.GroupIDFromBytes(gidB)
	if err != nil {
		return nil, err
	}
	prevB, err := r.Fixed(crypto.HashSize)
	if err != nil {
		return nil, err
	}
	prev, err := crypto.HashFromBytes(prevB)
	if err != nil {
		return nil, err
	}
	members, err := readMembers(r)
	if err != nil {
		return nil, err
	}
	provMembers, err := readProvisionalMembers(r)
	if err != nil {
		return nil, err
	}
	sigB, err := r.Fixed(crypto.SignatureSize)
	if err != nil {
		return nil, err
	}
	selfSig, err := crypto.SignatureFromBytes(sigB)
	if err != nil {
		return nil, err
	}
	return &UserGroupAddition2{
		GroupID:                gid,
		PreviousGroupBlockHash: prev,
		Members:                members,
		ProvisionalMembers:     provMembers,
		SelfSignature:          selfSig,
	}, nil
}

// ProvisionalIdentityClaim fuses a provisional identity's app- and
// server-controlled key halves into a claiming user's account (spec §4.3
// nature 14).
type ProvisionalIdentityClaim struct {
	UserID                       crypto.UserID
	AppPublicSignatureKey        crypto.PublicSignatureKey
	ServerPublicSignatureKey     crypto.PublicSignatureKey
	AppSignature                 crypto.Signature
	ServerSignature               crypto.Signature
	UserPublicEncryptionKey      crypto.PublicEncryptionKey
	SealedPrivateEncryptionKeys  crypto.SealedPrivateEncryptionKey // app+server private enc keys, sealed as a pair
}

func (a *ProvisionalIdentityClaim) Nature() Nature { return NatureProvisionalIdentityClaim }

func (a *ProvisionalIdentityClaim) Serialize() []byte {
	return serialize.NewWriter().
		Fixed(a.UserID[:]).
		Fixed(a.AppPublicSignatureKey[:]).
		Fixed(a.ServerPublicSignatureKey[:]).
		Fixed(a.AppSignature[:]).
		Fixed(a.ServerSignature[:]).
		Fixed(a.UserPublicEncryptionKey[:]).
		Bytes([]byte(a.SealedPrivateEncryptionKeys)).
		Out()
}

func deserializeProvisionalIdentityClaim(r *serialize.Reader) (*ProvisionalIdentityClaim, error) {
	uidB, err := r.Fixed(crypto.UserIDSize)
	if err != nil {
		return nil, err
	}
	uid, err := crypto.UserIDFromBytes(uidB)
	if err != nil {
		return nil, err
	}
	appB, err := r.Fixed(crypto.PublicSignatureKeySize)
	if err != nil {
		return nil, err
	}
	app, err := crypto.PublicSignatureKeyFromBytes(appB)
	if err != nil {
		return nil, err
	}
	srvB, err := r.Fixed(crypto.PublicSignatureKeySize)
	if err != nil {
		return nil, err
	}
	srv, err := crypto.PublicSignatureKeyFromBytes(srvB)
	if err != nil {
		return nil, err
	}
	appSigB, err := r.Fixed(crypto.SignatureSize)
	if err != nil {
		return nil, err
	}
	appSig, err := crypto.SignatureFromBytes(appSigB)
	if err != nil {
		return nil, err
	}
	srvSigB, err := r.Fixed(crypto.SignatureSize)
	if err != nil {
		return nil, err
	}
	srvSig, err := crypto.SignatureFromBytes(srvSigB)
	if err != nil {
		return nil, err
	}
	userPubB, err := r.Fixed(crypto.PublicEncryptionKeySize)
	if err != nil {
		return nil, err
	}
	userPub, err := crypto.PublicEncryptionKeyFromBytes(userPubB)
	if err != nil {
		return nil, err
	}
	sealedPair, err := r.Bytes()
	if err != nil {
		return nil, err
	}
	return &ProvisionalIdentityClaim{
		UserID:                      uid,
		AppPublicSignatureKey:       app,
		ServerPublicSignatureKey:    srv,
		AppSignature:                appSig,
		ServerSignature:             srvSig,
		UserPublicEncryptionKey:     userPub,
		SealedPrivateEncryptionKeys: crypto.SealedPrivateEncryptionKey(append([]byte(nil), sealedPair...)),
	}, nil
}

// ClaimAuthenticatedMessage builds the message both the app and server
// signatures of a ProvisionalIdentityClaim sign over: author_device_id ‖
// app_pub_sig ‖ server_pub_sig (spec §4.6).
func ClaimAuthenticatedMessage(authorDevice crypto.DeviceID, appPub, serverPub crypto.PublicSignatureKey) []byte {
	return serialize.NewWriter().Fixed(authorDevice[:]).Fixed(appPub[:]).Fixed(serverPub[:]).Out()
}

// GroupSelfSignedMessage builds the message a UserGroupCreation(2)'s
// SelfSignature signs: its own signed payload (spec §4.6).
func GroupCreationSignedMessage(a Action) []byte {
	switch v := a.(type) {
	case *UserGroupCreation:
		return v.signedPayload()
	case *UserGroupCreation2:
		return v.signedPayload()
	}
	return nil
}

// GroupAdditionSignedMessage builds the message a UserGroupAddition(2)'s
// SelfSignature signs: group_id ‖ previous_group_block_hash ‖ members ‖
// provisional_members (spec §4.6).
func GroupAdditionSignedMessage(a Action) []byte {
	switch v := a.(type) {
	case *UserGroupAddition:
		return v.signedPayload()
	case *UserGroupAddition2:
		return v.signedPayload()
	}
	return nil
}

// ResourceIDOf returns the resource id carried by any key-publish action
// variant, for index lookups keyed by resource id.
func ResourceIDOf(a Action) (crypto.ResourceID, bool) {
	switch v := a.(type) {
	case *KeyPublishToDevice:
		return v.ResourceID, true
	case *KeyPublishToUser:
		return v.ResourceID, true
	case *KeyPublishToUserGroup:
		return v.ResourceID, true
	case *KeyPublishToProvisionalUser:
		return v.ResourceID, true
	}
	return crypto.ResourceID{}, false
}

// Deserialize dispatches on nature and decodes a into the matching
// variant. It fails with InvalidArgument if trailing bytes remain.
func Deserialize(nature Nature, payload []byte) (Action, error) {
	r := serialize.NewReader(payload)

	var (
		action Action
		err    error
	)

	switch nature {
	case NatureTrustchainCreation:
		action, err = deserializeTrustchainCreation(r)
	case NatureDeviceCreation:
		action, err = deserializeDeviceCreation(r)
	case NatureDeviceCreation3:
		action, err = deserializeDeviceCreation3(r)
	case NatureKeyPublishToDevice:
		action, err = deserializeKeyPublishToDevice(r)
	case NatureKeyPublishToUser:
		action, err = deserializeKeyPublishToUser(r)
	case NatureKeyPublishToUserGroup:
		action, err = deserializeKeyPublishToUserGroup(r)
	case NatureKeyPublishToProvisionalUser:
		action, err = deserializeKeyPublishToProvisionalUser(r)
	case NatureDeviceRevocation:
		action, err = deserializeDeviceRevocation(r)
	case NatureDeviceRevocation2:
		action, err = deserializeDeviceRevocation2(r)
	case NatureUserGroupCreation:
		action, err = deserializeUserGroupCreation(r)
	case NatureUserGroupCreation2:
		action, err = deserializeUserGroupCreation2(r)
	case NatureUserGroupAddition:
		action, err = deserializeUserGroupAddition(r)
	case NatureUserGroupAddition2:
		action, err = deserializeUserGroupAddition2(r)
	case NatureProvisionalIdentityClaim:
		action, err = deserializeProvisionalIdentityClaim(r)
	default:
		return nil, tcerr.New(tcerr.InvalidArgument, "unknown action nature %d", nature)
	}
	if err != nil {
		return nil, err
	}
	if err := r.Done(); err != nil {
		return nil, err
	}
	return action, nil
}
