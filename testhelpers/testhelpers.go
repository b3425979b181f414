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

// Package testhelpers builds small, in-process trustchain fixtures for
// tests elsewhere in this module, grounded on the teacher's
// sdk/testbase: a shared environment other packages' tests provision
// fixture users against, rather than each package hand-rolling its own.
// Unlike sdk/testbase, there is no real server here to stand in for
// (spec §6 leaves it out of scope); Ledger plays that role entirely
// in-process.
package testhelpers

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/puller"
	"github.com/blockspacer/trustchain-go/session"
	"github.com/blockspacer/trustchain-go/store"
	"github.com/blockspacer/trustchain-go/store/memory"
	"github.com/blockspacer/trustchain-go/trustchain"
)

// Ledger is a shared in-process trustchain: every Session under test
// pushes onto it and pulls from it, standing in for transport.Client's
// websocket connection (puller.Fetcher's doc comment: "the transport
// package implements it over the session's websocket/http connection").
// It implements puller.Fetcher and session.Pusher.
type Ledger struct {
	mu     sync.Mutex
	blocks []*trustchain.Block
}

// NewLedger returns an empty shared ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Push(ctx context.Context, block *trustchain.Block) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	block.Index = uint64(len(l.blocks) + 1)
	l.blocks = append(l.blocks, block)
	return nil
}

func (l *Ledger) CatchUp(ctx context.Context, req puller.Request) ([]*trustchain.Block, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*trustchain.Block
	for _, b := range l.blocks {
		if b.Index > req.LastIndex {
			out = append(out, b)
		}
	}
	return out, nil
}

// NewTrustchainKeys generates a fresh trustchain signature keypair and
// derives its id, the way spec §4.2 defines TrustchainID ("the
// trustchain's own public signature key").
func NewTrustchainKeys(t testing.TB) (crypto.TrustchainID, crypto.PublicSignatureKey) {
	t.Helper()
	kp, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)
	return crypto.TrustchainID(kp.Public), kp.Public
}

// Device is one fixture user's sole device: a ready Session plus the
// local store backing it, so a test can both exercise the session's
// public API and inspect/seed its local store directly.
type Device struct {
	Session *session.Session
	Store   store.Store
	UserID  crypto.UserID
}

// Provision directly registers a device and its user the way a
// completed enrollment flow would leave the local store — without
// exercising the (out of scope here) registration/verification wire
// messages — then starts the session. The returned Device is already
// past Start and Ready.
func Provision(t testing.TB, ledger *Ledger, tcID crypto.TrustchainID, tcPub crypto.PublicSignatureKey, userID crypto.UserID) Device {
	t.Helper()
	ctx := context.Background()
	s := memory.New()

	devSigKP, err := crypto.NewSignatureKeyPair()
	require.NoError(t, err)
	devEncKP, err := crypto.NewEncryptionKeyPair()
	require.NoError(t, err)
	userEncKP, err := crypto.NewEncryptionKeyPair()
	require.NoError(t, err)
	deviceID := crypto.DeviceIDFromHash(crypto.GenericHash(devSigKP.Public[:]))

	require.NoError(t, s.LocalUser().SetDeviceID(ctx, deviceID))
	require.NoError(t, s.LocalUser().SetDeviceKeys(ctx, devSigKP.Private, devEncKP.Private))
	require.NoError(t, s.LocalUser().PutUserKeyPair(ctx, userEncKP.Public, userEncKP.Private))
	require.NoError(t, s.Contacts().PutUserDevice(ctx, userID, store.Device{
		ID:                  deviceID,
		UserID:              userID,
		PublicSignatureKey:  devSigKP.Public,
		PublicEncryptionKey: devEncKP.Public,
	}))
	require.NoError(t, s.Contacts().PutUserKey(ctx, userID, userEncKP.Public))

	sess := session.New(session.Config{
		TrustchainID:        tcID,
		TrustchainPublicKey: tcPub,
		Store:               s,
		Pusher:              ledger,
		Fetcher:             ledger,
	})
	require.NoError(t, sess.Start(ctx))
	require.Equal(t, session.Ready, sess.State())
	return Device{Session: sess, Store: s, UserID: userID}
}

// LinkContacts seeds a's contact store with b's current public
// encryption key, standing in for a resolved contact lookup against the
// server (out of scope for session/groups/keys, which all assume the
// contact store is already populated).
func LinkContacts(t testing.TB, a, b Device) {
	t.Helper()
	ctx := context.Background()
	bobContact, err := b.Store.Contacts().FindUser(ctx, b.UserID)
	require.NoError(t, err)
	require.NoError(t, a.Store.Contacts().PutUserKey(ctx, b.UserID, *bobContact.UserPubEnc))
}
