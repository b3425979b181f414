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

// Package identity encodes and parses identity strings: opaque
// base64-encoded JSON documents naming either a permanent user or a
// provisional (email-like) identity (spec §6 "Identity strings"). It is
// the only package in this module that touches the wire JSON shape of an
// identity; everything else works with the parsed crypto.UserID or
// key material.
package identity

import (
	"encoding/base64"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/tcerr"
)

// Kind distinguishes a permanent identity from a provisional one.
type Kind string

const (
	TargetUser  Kind = "user"
	TargetEmail Kind = "email"
)

// document is the wire JSON shape. Every key-material field is base64
// standard encoding of the corresponding crypto type's raw bytes.
type document struct {
	TrustchainID            string  `json:"trustchain_id"`
	Target                  Kind    `json:"target"`
	Value                   string  `json:"value"`
	AppSignaturePublicKey   *string `json:"app_signature_public_key,omitempty"`
	AppSignaturePrivateKey  *string `json:"app_signature_private_key,omitempty"`
	AppEncryptionPublicKey  *string `json:"app_encryption_public_key,omitempty"`
	AppEncryptionPrivateKey *string `json:"app_encryption_private_key,omitempty"`
}

// Identity is a parsed identity string.
type Identity struct {
	Kind         Kind
	TrustchainID crypto.TrustchainID

	// Permanent (Kind == TargetUser)
	UserID crypto.UserID

	// Provisional (Kind == TargetEmail)
	Email                string
	AppSignatureKeyPair  crypto.SignatureKeyPair
	AppEncryptionKeyPair crypto.EncryptionKeyPair
}

// HashEmail is the canonical hash the server indexes provisional
// identities under (spec §4.8 "look them up against the server... with
// hashed email"). Lower-cased before hashing so the same address always
// resolves the same handle regardless of case.
func HashEmail(email string) string {
	sum := crypto.GenericHash([]byte(strings.ToLower(strings.TrimSpace(email))))
	return base64.StdEncoding.EncodeToString(sum.Bytes())
}

// EncodePermanent builds a permanent identity string for userID.
func EncodePermanent(trustchainID crypto.TrustchainID, userID crypto.UserID) (string, error) {
	doc := document{
		TrustchainID: base64.StdEncoding.EncodeToString(trustchainID.Bytes()),
		Target:       TargetUser,
		Value:        base64.StdEncoding.EncodeToString(userID.Bytes()),
	}
	return encodeDocument(doc)
}

// EncodeProvisional builds a provisional identity string for email,
// carrying the app-controlled signature and encryption keypairs (spec
// §6: the provisional identity "only reads... value:email,
// app_signature_keypair, app_encryption_keypair"). The server-controlled
// halves are never part of the identity string; they are fused in only
// on claim (spec §4.9/§4.6 ProvisionalIdentityClaim).
func EncodeProvisional(trustchainID crypto.TrustchainID, email string, appSig crypto.SignatureKeyPair, appEnc crypto.EncryptionKeyPair) (string, error) {
	sigPub := base64.StdEncoding.EncodeToString(appSig.Public[:])
	sigPriv := base64.StdEncoding.EncodeToString(appSig.Private.Bytes())
	encPub := base64.StdEncoding.EncodeToString(appEnc.Public[:])
	encPriv := base64.StdEncoding.EncodeToString(appEnc.Private.Bytes())
	doc := document{
		TrustchainID:            base64.StdEncoding.EncodeToString(trustchainID.Bytes()),
		Target:                  TargetEmail,
		Value:                   email,
		AppSignaturePublicKey:   &sigPub,
		AppSignaturePrivateKey:  &sigPriv,
		AppEncryptionPublicKey:  &encPub,
		AppEncryptionPrivateKey: &encPriv,
	}
	return encodeDocument(doc)
}

func encodeDocument(doc document) (string, error) {
	b, err := sonic.Marshal(doc)
	if err != nil {
		return "", tcerr.Wrap(tcerr.InvalidArgument, err, "identity: encode")
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Parse decodes an identity string produced by EncodePermanent or
// EncodeProvisional (or by a compatible server-issued one).
func Parse(s string) (*Identity, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, tcerr.Wrap(tcerr.InvalidArgument, err, "identity: malformed base64 envelope")
	}
	var doc document
	if err := sonic.Unmarshal(raw, &doc); err != nil {
		return nil, tcerr.Wrap(tcerr.InvalidArgument, err, "identity: malformed JSON document")
	}

	tcIDBytes, err := base64.StdEncoding.DecodeString(doc.TrustchainID)
	if err != nil {
		return nil, tcerr.Wrap(tcerr.InvalidArgument, err, "identity: malformed trustchain_id")
	}
	tcID, err := crypto.TrustchainIDFromBytes(tcIDBytes)
	if err != nil {
		return nil, err
	}

	switch doc.Target {
	case TargetUser:
		userBytes, err := base64.StdEncoding.DecodeString(doc.Value)
		if err != nil {
			return nil, tcerr.Wrap(tcerr.InvalidArgument, err, "identity: malformed user value")
		}
		userID, err := crypto.UserIDFromBytes(userBytes)
		if err != nil {
			return nil, err
		}
		return &Identity{Kind: TargetUser, TrustchainID: tcID, UserID: userID}, nil

	case TargetEmail:
		if doc.AppSignaturePublicKey == nil || doc.AppSignaturePrivateKey == nil ||
			doc.AppEncryptionPublicKey == nil || doc.AppEncryptionPrivateKey == nil {
			return nil, tcerr.New(tcerr.InvalidArgument, "identity: provisional identity missing app keypair fields")
		}
		sigPub, err := decodeFixed32(*doc.AppSignaturePublicKey)
		if err != nil {
			return nil, err
		}
		sigPriv, err := base64.StdEncoding.DecodeString(*doc.AppSignaturePrivateKey)
		if err != nil {
			return nil, tcerr.Wrap(tcerr.InvalidArgument, err, "identity: malformed app signature private key")
		}
		privSig, err := crypto.PrivateSignatureKeyFromBytes(sigPriv)
		if err != nil {
			return nil, err
		}
		encPub, err := decodeFixed32(*doc.AppEncryptionPublicKey)
		if err != nil {
			return nil, err
		}
		encPriv, err := base64.StdEncoding.DecodeString(*doc.AppEncryptionPrivateKey)
		if err != nil {
			return nil, tcerr.Wrap(tcerr.InvalidArgument, err, "identity: malformed app encryption private key")
		}
		privEnc, err := crypto.PrivateEncryptionKeyFromBytes(encPriv)
		if err != nil {
			return nil, err
		}
		pubSig, err := crypto.PublicSignatureKeyFromBytes(sigPub)
		if err != nil {
			return nil, err
		}
		pubEnc, err := crypto.PublicEncryptionKeyFromBytes(encPub)
		if err != nil {
			return nil, err
		}
		return &Identity{
			Kind:                 TargetEmail,
			TrustchainID:         tcID,
			Email:                doc.Value,
			AppSignatureKeyPair:  crypto.SignatureKeyPair{Public: pubSig, Private: privSig},
			AppEncryptionKeyPair: crypto.EncryptionKeyPair{Public: pubEnc, Private: privEnc},
		}, nil

	default:
		return nil, tcerr.New(tcerr.InvalidArgument, "identity: unknown target %q", doc.Target)
	}
}

func decodeFixed32(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, tcerr.Wrap(tcerr.InvalidArgument, err, "identity: malformed key material")
	}
	return b, nil
}
