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
	"strings"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/store"
	"github.com/blockspacer/trustchain-go/tcerr"
)

// VerificationMethod is the identity-verification method an account
// registered with the server (spec §4.11 C11a, "set verification
// method"/"get verification methods"). The method is kept in the
// local-user store and VerifyIdentity checks a proof against it locally;
// no verification request is sent to the server, and no email OTP is
// delivered.
type VerificationMethod interface {
	Kind() string
	Verify(proof string) error
	record() store.VerificationMethodRecord
}

// PassphraseVerification proves control of the account by a shared
// passphrase, stored locally only as its hash.
type PassphraseVerification struct {
	hash crypto.Hash
}

// NewPassphraseVerification hashes passphrase for local storage and
// later comparison.
func NewPassphraseVerification(passphrase string) *PassphraseVerification {
	return &PassphraseVerification{hash: crypto.GenericHash([]byte(passphrase))}
}

func (p *PassphraseVerification) Kind() string { return "passphrase" }

func (p *PassphraseVerification) Verify(proof string) error {
	if crypto.GenericHash([]byte(proof)) != p.hash {
		return tcerr.New(tcerr.InvalidVerification, "session: passphrase does not match")
	}
	return nil
}

func (p *PassphraseVerification) record() store.VerificationMethodRecord {
	return store.VerificationMethodRecord{Kind: p.Kind(), Data: append([]byte(nil), p.hash[:]...)}
}

func passphraseFromRecord(rec store.VerificationMethodRecord) (*PassphraseVerification, error) {
	h, err := crypto.HashFromBytes(rec.Data)
	if err != nil {
		return nil, err
	}
	return &PassphraseVerification{hash: h}, nil
}

// EmailOTPVerification proves control of the account by a one-time code
// sent to email. Issuing and delivering the code is server-side; this
// type only carries the code this device expects back.
type EmailOTPVerification struct {
	email string
	code  string
}

// NewEmailOTPVerification records the code issued for email, to be
// checked later against the proof the user enters.
func NewEmailOTPVerification(email, code string) *EmailOTPVerification {
	return &EmailOTPVerification{email: email, code: code}
}

func (e *EmailOTPVerification) Kind() string { return "email_otp" }

func (e *EmailOTPVerification) Verify(proof string) error {
	if proof != e.code {
		return tcerr.New(tcerr.InvalidVerification, "session: email OTP code does not match")
	}
	return nil
}

func (e *EmailOTPVerification) record() store.VerificationMethodRecord {
	return store.VerificationMethodRecord{Kind: e.Kind(), Data: []byte(e.email + "\x00" + e.code)}
}

func emailOTPFromRecord(rec store.VerificationMethodRecord) (*EmailOTPVerification, error) {
	parts := strings.SplitN(string(rec.Data), "\x00", 2)
	if len(parts) != 2 {
		return nil, tcerr.New(tcerr.InvalidArgument, "session: malformed email_otp verification record")
	}
	return &EmailOTPVerification{email: parts[0], code: parts[1]}, nil
}

func verificationMethodFromRecord(rec store.VerificationMethodRecord) (VerificationMethod, error) {
	switch rec.Kind {
	case "passphrase":
		return passphraseFromRecord(rec)
	case "email_otp":
		return emailOTPFromRecord(rec)
	default:
		return nil, tcerr.New(tcerr.InternalError, "session: unknown verification method %q", rec.Kind)
	}
}

// RegisterVerificationMethod records method as this account's
// identity-verification method (spec §4.11 C11a), for later use by
// VerifyIdentity. Valid while identity registration or verification is
// outstanding.
func (s *Session) RegisterVerificationMethod(ctx context.Context, method VerificationMethod) error {
	switch s.State() {
	case IdentityRegistrationNeeded, IdentityVerificationNeeded:
	default:
		return tcerr.New(tcerr.PreconditionFailed, "session: no identity registration or verification in progress")
	}
	return s.cfg.Store.LocalUser().SetVerificationMethod(ctx, method.record())
}

// VerifyIdentity completes identity verification (spec §4.11 C11a) by
// checking proof against the previously registered VerificationMethod.
// Passing this check is what lets the server produce this device's
// device-creation block on its next catch-up; VerifyIdentity forces one
// immediately after a successful check so resolveIdentityState can move
// straight to Ready without a separate caller-driven Start call.
func (s *Session) VerifyIdentity(ctx context.Context, proof string) error {
	if s.State() != IdentityVerificationNeeded {
		return tcerr.New(tcerr.PreconditionFailed, "session: no identity verification in progress")
	}

	rec, err := s.cfg.Store.LocalUser().VerificationMethod(ctx)
	if err != nil {
		return err
	}
	method, err := verificationMethodFromRecord(*rec)
	if err != nil {
		return err
	}
	if err := method.Verify(proof); err != nil {
		return err
	}

	if err := s.puller.CatchUp(ctx, nil, nil); err != nil {
		return err
	}
	return s.resolveIdentityState(ctx)
}
