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

// Package session implements the session orchestrator (spec §4.11): the
// state machine a client drives through Start/registration/verification
// before any data-path operation (Encrypt, Decrypt, Share, group
// membership, device revocation, provisional-identity attachment) is
// permitted, and the glue that turns each of those operations into a
// signed trustchain block, pushed and resynced.
package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/groups"
	"github.com/blockspacer/trustchain-go/keys"
	"github.com/blockspacer/trustchain-go/puller"
	"github.com/blockspacer/trustchain-go/store"
	"github.com/blockspacer/trustchain-go/tcerr"
	"github.com/blockspacer/trustchain-go/trustchain"
	"github.com/blockspacer/trustchain-go/verify"
)

// State is the orchestrator's lifecycle position (spec §4.11).
type State int

const (
	Stopped State = iota
	Started
	IdentityRegistrationNeeded
	IdentityVerificationNeeded
	Ready
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Started:
		return "started"
	case IdentityRegistrationNeeded:
		return "identity_registration_needed"
	case IdentityVerificationNeeded:
		return "identity_verification_needed"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Pusher sends a locally-built, signed block to the server and reports
// back once it has been accepted onto the chain. It is the write-side
// counterpart of puller.Fetcher; the transport package implements both
// over the same connection.
type Pusher interface {
	Push(ctx context.Context, block *trustchain.Block) error
}

// Config wires a Session to its trustchain and its local state.
type Config struct {
	TrustchainID        crypto.TrustchainID
	TrustchainPublicKey crypto.PublicSignatureKey
	Store               store.Store
	Pusher              Pusher
	Fetcher             puller.Fetcher
	ProvisionalResolver keys.ProvisionalResolver
	// KeyFetcher supplies raw network blocks for "get key publishes"
	// lookups; transport.Client implements it. May be nil, in which case
	// the session degrades to resource_key_not_found for keys it has not
	// already indexed locally.
	KeyFetcher NetworkFetcher
}

// Session is the single per-device orchestrator described in spec §4.11.
// Exported operations other than State, Start, Stop,
// RegisterVerificationMethod and VerifyIdentity require the Ready state;
// calling one outside it fails precondition_failed (spec §7). The two
// verification calls instead require identity registration or
// verification to be outstanding.
type Session struct {
	cfg Config

	verifier *verify.Verifier
	puller   *puller.Puller
	keys     *keys.Engine
	groups   *groups.Engine

	mtx   sync.RWMutex
	state State
}

// New builds a Session. It does not itself transition out of Stopped;
// call Start.
func New(cfg Config) *Session {
	v := verify.New(cfg.Store, cfg.TrustchainID, cfg.TrustchainPublicKey)
	s := &Session{cfg: cfg, verifier: v, state: Stopped}
	s.puller = puller.New(cfg.Store, v, cfg.Fetcher, puller.Handlers{
		ReceivedThisDeviceID: s.onReceivedThisDeviceID,
	})
	var fetcher keys.KeyFetcher
	if cfg.KeyFetcher != nil {
		fetcher = &networkKeyFetcher{net: cfg.KeyFetcher, puller: s.puller}
	}
	s.keys = keys.New(cfg.Store, cfg.ProvisionalResolver, fetcher)
	s.groups = groups.New(cfg.Store, cfg.ProvisionalResolver)
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	log.Debug().Stringer("from", s.state).Stringer("to", st).Msg("session: state transition")
	s.state = st
}

// requireReady fails precondition_failed unless the session is Ready
// (spec §7 error table).
func (s *Session) requireReady() error {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	if s.state != Ready {
		return tcerr.New(tcerr.PreconditionFailed, "session: operation requires ready state, currently %s", s.state)
	}
	return nil
}

// Start opens the session and catches up the local store with the
// trustchain (spec §4.11 Stopped -> Started). It is idempotent: calling
// Start again while already started or further along just resyncs.
func (s *Session) Start(ctx context.Context) error {
	if s.State() == Stopped {
		s.setState(Started)
	}
	if err := s.puller.CatchUp(ctx, nil, nil); err != nil {
		return err
	}
	return s.resolveIdentityState(ctx)
}

// resolveIdentityState inspects local store state after a catch-up to
// decide which of the three post-Started states applies: Ready if this
// device already has its own keys registered, IdentityRegistrationNeeded
// if it has never registered a device on this trustchain, or
// IdentityVerificationNeeded if registration is in flight but this device
// has not yet received its own device id (spec §4.11).
func (s *Session) resolveIdentityState(ctx context.Context) error {
	deviceID, err := s.cfg.Store.LocalUser().DeviceID(ctx)
	if err != nil {
		s.setState(IdentityRegistrationNeeded)
		return nil
	}
	if _, err := s.cfg.Store.Contacts().FindDevice(ctx, deviceID); err != nil {
		s.setState(IdentityVerificationNeeded)
		return nil
	}
	s.setState(Ready)
	return nil
}

func (s *Session) onReceivedThisDeviceID(ctx context.Context, deviceID crypto.DeviceID) {
	if s.State() == IdentityVerificationNeeded {
		s.setState(Ready)
	}
}

// Stop idempotently closes the session.
func (s *Session) Stop(ctx context.Context) error {
	s.setState(Stopped)
	return nil
}

// pushAction signs action as a new block authored by this device,
// pushes it, and resyncs (spec §4.9 "push as a block; after push, force
// a trustchain sync" — generalized here to every block-producing
// operation).
func (s *Session) pushAction(ctx context.Context, action trustchain.Action) (*trustchain.Block, error) {
	deviceID, err := s.cfg.Store.LocalUser().DeviceID(ctx)
	if err != nil {
		return nil, err
	}
	privSig, _, err := s.cfg.Store.LocalUser().DeviceKeys(ctx)
	if err != nil {
		return nil, err
	}

	block := &trustchain.Block{
		TrustchainID: s.cfg.TrustchainID,
		Nature:       action.Nature(),
		Author:       crypto.Hash(deviceID),
		Payload:      action.Serialize(),
	}
	block.Signature = crypto.Sign(block.Hash().Bytes(), privSig)

	if err := s.cfg.Pusher.Push(ctx, block); err != nil {
		return nil, tcerr.Wrap(tcerr.NetworkError, err, "session: push block")
	}
	if err := s.puller.CatchUp(ctx, nil, nil); err != nil {
		return nil, err
	}
	return block, nil
}
