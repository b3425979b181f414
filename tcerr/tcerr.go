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

// Package tcerr defines the finite, stable error taxonomy shared by every
// component of the SDK (spec §7). Callers switch on Kind, not on message
// text.
package tcerr

import (
	"errors"
	"fmt"
)

// Kind is one of the error kinds named in spec §7.
type Kind int

const (
	InvalidArgument Kind = iota
	InvalidKeySize
	DecryptionFailed
	VerificationFailed
	PreconditionFailed
	UserNotFound
	RecipientNotFound
	ResourceKeyNotFound
	GroupNotFound
	InvalidGroupSize
	InvalidVerification
	InternalError
	NetworkError
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid_argument"
	case InvalidKeySize:
		return "invalid_key_size"
	case DecryptionFailed:
		return "decryption_failed"
	case VerificationFailed:
		return "verification_failed"
	case PreconditionFailed:
		return "precondition_failed"
	case UserNotFound:
		return "user_not_found"
	case RecipientNotFound:
		return "recipient_not_found"
	case ResourceKeyNotFound:
		return "resource_key_not_found"
	case GroupNotFound:
		return "group_not_found"
	case InvalidGroupSize:
		return "invalid_group_size"
	case InvalidVerification:
		return "invalid_verification"
	case InternalError:
		return "internal_error"
	case NetworkError:
		return "network_error"
	default:
		return "unknown"
	}
}

// Sub is a classified verification sub-code, only meaningful when
// Kind == VerificationFailed (spec §4.6).
type Sub int

const (
	SubNone Sub = iota
	InvalidHash
	InvalidSignature
	InvalidDelegationSignature
	InvalidAuthor
	InvalidUserID
	InvalidUserKey
	InvalidUserKeys
	InvalidEncryptionKey
	InvalidTargetDevice
	InvalidGroup
	UserAlreadyExists
)

func (s Sub) String() string {
	switch s {
	case InvalidHash:
		return "InvalidHash"
	case InvalidSignature:
		return "InvalidSignature"
	case InvalidDelegationSignature:
		return "InvalidDelegationSignature"
	case InvalidAuthor:
		return "InvalidAuthor"
	case InvalidUserID:
		return "InvalidUserId"
	case InvalidUserKey:
		return "InvalidUserKey"
	case InvalidUserKeys:
		return "InvalidUserKeys"
	case InvalidEncryptionKey:
		return "InvalidEncryptionKey"
	case InvalidTargetDevice:
		return "InvalidTargetDevice"
	case InvalidGroup:
		return "InvalidGroup"
	case UserAlreadyExists:
		return "UserAlreadyExists"
	default:
		return "None"
	}
}

// Error is the concrete error type produced by every package in this
// module. It always carries a stable Kind so callers can branch with
// errors.As instead of parsing message text.
type Error struct {
	Kind Kind
	Sub  Sub

	// ClearIDs carries the caller-supplied (non-obfuscated) identifiers for
	// UserNotFound/RecipientNotFound/GroupNotFound, per spec §7's
	// "transformed on the boundary to carry the clear identifiers".
	ClearIDs []string

	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Kind == VerificationFailed && e.Sub != SubNone {
		msg = fmt.Sprintf("%s(%s)", msg, e.Sub)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, tcerr.New(k, "")) match on Kind alone, so
// sentinels can be built ad hoc without a registry of package-level vars.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	if t.Sub != SubNone && t.Sub != e.Sub {
		return false
	}
	return true
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

func VerificationFailedf(sub Sub, format string, args ...any) *Error {
	return &Error{Kind: VerificationFailed, Sub: sub, Message: fmt.Sprintf(format, args...)}
}

func NotFound(kind Kind, clearIDs []string, format string, args ...any) *Error {
	return &Error{Kind: kind, ClearIDs: clearIDs, Message: fmt.Sprintf(format, args...)}
}

// Of returns the Kind of err, or InternalError if err does not carry one.
func Of(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return InternalError
}

// Is reports whether err's Kind matches k.
func Is(err error, k Kind) bool {
	return Of(err) == k
}
