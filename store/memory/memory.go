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

// Package memory is an in-memory store.Store, used in tests and as the
// reference implementation every other driver is checked against.
package memory

import (
	"context"
	"sync"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/store"
	"github.com/blockspacer/trustchain-go/tcerr"
	"github.com/blockspacer/trustchain-go/trustchain"
)

// Store is a single-process, mutex-guarded store.Store.
type Store struct {
	mu sync.Mutex

	contacts   map[crypto.UserID]*store.Contact
	deviceToID map[crypto.DeviceID]crypto.UserID

	deviceID  crypto.DeviceID
	hasDevice bool
	privSig   crypto.PrivateSignatureKey
	privEnc   crypto.PrivateEncryptionKey

	userKeyPairs []store.LocalUserKeyPair

	verificationMethod *store.VerificationMethodRecord

	groups             map[crypto.GroupID]*store.Group
	groupsByPubEnc     map[crypto.PublicEncryptionKey]crypto.GroupID
	groupProvisional   map[crypto.GroupID][]store.ProvisionalGroupKeys

	resourceKeys map[crypto.ResourceID]crypto.SymmetricKey

	provisionalKeys map[[2]crypto.PublicSignatureKey]store.ProvisionalUserKeyPair

	entriesByHash map[crypto.Hash]*store.IndexEntry
	entriesOrder  []crypto.Hash
	lastIndex     uint64
}

func New() *Store {
	return &Store{
		contacts:         make(map[crypto.UserID]*store.Contact),
		deviceToID:       make(map[crypto.DeviceID]crypto.UserID),
		groups:           make(map[crypto.GroupID]*store.Group),
		groupsByPubEnc:   make(map[crypto.PublicEncryptionKey]crypto.GroupID),
		groupProvisional: make(map[crypto.GroupID][]store.ProvisionalGroupKeys),
		resourceKeys:     make(map[crypto.ResourceID]crypto.SymmetricKey),
		provisionalKeys:  make(map[[2]crypto.PublicSignatureKey]store.ProvisionalUserKeyPair),
		entriesByHash:    make(map[crypto.Hash]*store.IndexEntry),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) Contacts() store.ContactStore                     { return (*contactStore)(s) }
func (s *Store) LocalUser() store.LocalUserStore                  { return (*localUserStore)(s) }
func (s *Store) Groups() store.GroupStore                         { return (*groupStore)(s) }
func (s *Store) ResourceKeys() store.ResourceKeyStore              { return (*resourceKeyStore)(s) }
func (s *Store) ProvisionalUserKeys() store.ProvisionalUserKeyStore { return (*provisionalUserKeyStore)(s) }
func (s *Store) Trustchain() store.TrustchainIndex                 { return (*trustchainIndex)(s) }

// WithTransaction has nothing to isolate beyond the store mutex each
// operation already takes, so it just runs fn; there is no rollback
// semantics to implement for a purely in-memory reference store.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *Store) Migrate(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

type contactStore Store

func (c *contactStore) s() *Store { return (*Store)(c) }

func (c *contactStore) PutUserDevice(ctx context.Context, userID crypto.UserID, device store.Device) error {
	s := c.s()
	s.mu.Lock()
	defer s.mu.Unlock()

	contact, ok := s.contacts[userID]
	if !ok {
		contact = &store.Contact{UserID: userID}
		s.contacts[userID] = contact
	}
	if existing := contact.DeviceByID(device.ID); existing != nil {
		*existing = device
	} else {
		contact.Devices = append(contact.Devices, device)
	}
	s.deviceToID[device.ID] = userID
	return nil
}

func (c *contactStore) PutUserKey(ctx context.Context, userID crypto.UserID, pubEnc crypto.PublicEncryptionKey) error {
	s := c.s()
	s.mu.Lock()
	defer s.mu.Unlock()

	contact, ok := s.contacts[userID]
	if !ok {
		contact = &store.Contact{UserID: userID}
		s.contacts[userID] = contact
	}
	k := pubEnc
	contact.UserPubEnc = &k
	return nil
}

func (c *contactStore) FindUser(ctx context.Context, userID crypto.UserID) (*store.Contact, error) {
	s := c.s()
	s.mu.Lock()
	defer s.mu.Unlock()

	contact, ok := s.contacts[userID]
	if !ok {
		return nil, tcerr.NotFound(tcerr.UserNotFound, []string{userID.String()}, "user %s not found", userID)
	}
	cp := *contact
	cp.Devices = append([]store.Device(nil), contact.Devices...)
	return &cp, nil
}

func (c *contactStore) FindDevice(ctx context.Context, deviceID crypto.DeviceID) (*store.Device, error) {
	s := c.s()
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.deviceToID[deviceID]
	if !ok {
		return nil, tcerr.NotFound(tcerr.RecipientNotFound, []string{deviceID.String()}, "device %s not found", deviceID)
	}
	contact := s.contacts[userID]
	d := contact.DeviceByID(deviceID)
	if d == nil {
		return nil, tcerr.NotFound(tcerr.RecipientNotFound, []string{deviceID.String()}, "device %s not found", deviceID)
	}
	cp := *d
	return &cp, nil
}

func (c *contactStore) FindUserIDByDevice(ctx context.Context, deviceID crypto.DeviceID) (crypto.UserID, error) {
	s := c.s()
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.deviceToID[deviceID]
	if !ok {
		return crypto.UserID{}, tcerr.NotFound(tcerr.RecipientNotFound, []string{deviceID.String()}, "device %s not found", deviceID)
	}
	return userID, nil
}

func (c *contactStore) RevokeDevice(ctx context.Context, deviceID crypto.DeviceID, atIndex uint64) error {
	s := c.s()
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.deviceToID[deviceID]
	if !ok {
		return tcerr.NotFound(tcerr.RecipientNotFound, []string{deviceID.String()}, "device %s not found", deviceID)
	}
	contact := s.contacts[userID]
	d := contact.DeviceByID(deviceID)
	if d == nil {
		return tcerr.NotFound(tcerr.RecipientNotFound, []string{deviceID.String()}, "device %s not found", deviceID)
	}
	if d.RevokedAtIndex == 0 || atIndex < d.RevokedAtIndex {
		d.RevokedAtIndex = atIndex
	}
	return nil
}

type localUserStore Store

func (l *localUserStore) s() *Store { return (*Store)(l) }

func (l *localUserStore) SetDeviceKeys(ctx context.Context, privSig crypto.PrivateSignatureKey, privEnc crypto.PrivateEncryptionKey) error {
	s := l.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.privSig = privSig
	s.privEnc = privEnc
	return nil
}

func (l *localUserStore) SetDeviceID(ctx context.Context, id crypto.DeviceID) error {
	s := l.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceID = id
	s.hasDevice = true
	return nil
}

func (l *localUserStore) DeviceID(ctx context.Context) (crypto.DeviceID, error) {
	s := l.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasDevice {
		return crypto.DeviceID{}, tcerr.New(tcerr.PreconditionFailed, "device id not set")
	}
	return s.deviceID, nil
}

func (l *localUserStore) DeviceKeys(ctx context.Context) (crypto.PrivateSignatureKey, crypto.PrivateEncryptionKey, error) {
	s := l.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.privSig, s.privEnc, nil
}

func (l *localUserStore) PutUserKeyPair(ctx context.Context, pub crypto.PublicEncryptionKey, priv crypto.PrivateEncryptionKey) error {
	s := l.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userKeyPairs = append(s.userKeyPairs, store.LocalUserKeyPair{Public: pub, Private: priv})
	return nil
}

func (l *localUserStore) FindKeyPair(ctx context.Context, pub crypto.PublicEncryptionKey) (*store.LocalUserKeyPair, error) {
	s := l.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, kp := range s.userKeyPairs {
		if kp.Public.Equal(pub) {
			cp := kp
			return &cp, nil
		}
	}
	return nil, tcerr.New(tcerr.ResourceKeyNotFound, "no local keypair for public encryption key %s", pub)
}

func (l *localUserStore) LastKeyPair(ctx context.Context) (*store.LocalUserKeyPair, error) {
	s := l.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.userKeyPairs) == 0 {
		return nil, tcerr.New(tcerr.PreconditionFailed, "no user keypair set")
	}
	cp := s.userKeyPairs[len(s.userKeyPairs)-1]
	return &cp, nil
}

func (l *localUserStore) ListKeyPairs(ctx context.Context) ([]store.LocalUserKeyPair, error) {
	s := l.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.LocalUserKeyPair(nil), s.userKeyPairs...), nil
}

func (l *localUserStore) SetVerificationMethod(ctx context.Context, method store.VerificationMethodRecord) error {
	s := l.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := method
	rec.Data = append([]byte(nil), method.Data...)
	s.verificationMethod = &rec
	return nil
}

func (l *localUserStore) VerificationMethod(ctx context.Context) (*store.VerificationMethodRecord, error) {
	s := l.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.verificationMethod == nil {
		return nil, tcerr.New(tcerr.PreconditionFailed, "no verification method registered")
	}
	rec := *s.verificationMethod
	rec.Data = append([]byte(nil), s.verificationMethod.Data...)
	return &rec, nil
}

type groupStore Store

func (g *groupStore) s() *Store { return (*Store)(g) }

func (g *groupStore) Put(ctx context.Context, group store.Group) error {
	s := g.s()
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.groups[group.ID]
	if ok && existing.IsMember && !group.IsMember {
		// internal overwrites external, external never overwrites internal
		return nil
	}
	cp := group
	s.groups[group.ID] = &cp
	s.groupsByPubEnc[group.PublicEncryptionKey] = group.ID
	return nil
}

func (g *groupStore) UpdateLastBlock(ctx context.Context, groupID crypto.GroupID, hash crypto.Hash, index uint64) error {
	s := g.s()
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[groupID]
	if !ok {
		return tcerr.NotFound(tcerr.GroupNotFound, []string{groupID.String()}, "group %s not found", groupID)
	}
	group.LastBlockHash = hash
	group.LastBlockIndex = index
	return nil
}

func (g *groupStore) FindByID(ctx context.Context, groupID crypto.GroupID) (*store.Group, error) {
	s := g.s()
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[groupID]
	if !ok {
		return nil, tcerr.NotFound(tcerr.GroupNotFound, []string{groupID.String()}, "group %s not found", groupID)
	}
	cp := *group
	return &cp, nil
}

func (g *groupStore) FindByPublicEncryptionKey(ctx context.Context, pubEnc crypto.PublicEncryptionKey) (*store.Group, error) {
	s := g.s()
	s.mu.Lock()
	defer s.mu.Unlock()

	groupID, ok := s.groupsByPubEnc[pubEnc]
	if !ok {
		return nil, tcerr.NotFound(tcerr.GroupNotFound, nil, "no group with public encryption key %s", pubEnc)
	}
	cp := *s.groups[groupID]
	return &cp, nil
}

func (g *groupStore) PutProvisionalKeys(ctx context.Context, groupID crypto.GroupID, entries []store.ProvisionalGroupKeys) error {
	s := g.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groupProvisional[groupID] = append(s.groupProvisional[groupID], entries...)
	return nil
}

func (g *groupStore) FindProvisionalKeys(ctx context.Context, groupID crypto.GroupID) ([]store.ProvisionalGroupKeys, error) {
	s := g.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]store.ProvisionalGroupKeys(nil), s.groupProvisional[groupID]...), nil
}

type resourceKeyStore Store

func (r *resourceKeyStore) s() *Store { return (*Store)(r) }

func (r *resourceKeyStore) Put(ctx context.Context, resourceID crypto.ResourceID, key crypto.SymmetricKey) error {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resourceKeys[resourceID]; ok {
		return nil
	}
	s.resourceKeys[resourceID] = key
	return nil
}

func (r *resourceKeyStore) Get(ctx context.Context, resourceID crypto.ResourceID) (crypto.SymmetricKey, error) {
	s := r.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.resourceKeys[resourceID]
	if !ok {
		return crypto.SymmetricKey{}, tcerr.New(tcerr.InvalidArgument, "no resource key for %s", resourceID)
	}
	return key, nil
}

type provisionalUserKeyStore Store

func (p *provisionalUserKeyStore) s() *Store { return (*Store)(p) }

func (p *provisionalUserKeyStore) Put(ctx context.Context, entry store.ProvisionalUserKeyPair) error {
	s := p.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provisionalKeys[[2]crypto.PublicSignatureKey{entry.AppPublicSignatureKey, entry.ServerPublicSignatureKey}] = entry
	return nil
}

func (p *provisionalUserKeyStore) Find(ctx context.Context, appPubSig, serverPubSig crypto.PublicSignatureKey) (*store.ProvisionalUserKeyPair, error) {
	s := p.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.provisionalKeys[[2]crypto.PublicSignatureKey{appPubSig, serverPubSig}]
	if !ok {
		return nil, tcerr.New(tcerr.ResourceKeyNotFound, "no provisional keypair for app sig %s", appPubSig)
	}
	cp := entry
	return &cp, nil
}

type trustchainIndex Store

func (t *trustchainIndex) s() *Store { return (*Store)(t) }

func (t *trustchainIndex) AddEntry(ctx context.Context, entry store.IndexEntry) error {
	s := t.s()
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := entry
	s.entriesByHash[entry.Hash] = &cp
	s.entriesOrder = append(s.entriesOrder, entry.Hash)
	if entry.Index > s.lastIndex {
		s.lastIndex = entry.Index
	}
	return nil
}

func (t *trustchainIndex) FindByHash(ctx context.Context, hash crypto.Hash) (*store.IndexEntry, error) {
	s := t.s()
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entriesByHash[hash]
	if !ok {
		return nil, tcerr.New(tcerr.InvalidArgument, "no trustchain entry with hash %s", hash)
	}
	cp := *entry
	return &cp, nil
}

func (t *trustchainIndex) FindKeyPublishForResource(ctx context.Context, resourceID crypto.ResourceID) (*store.IndexEntry, error) {
	s := t.s()
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.entriesOrder) - 1; i >= 0; i-- {
		entry := s.entriesByHash[s.entriesOrder[i]]
		if !entry.Nature.IsKeyPublish() {
			continue
		}
		action, err := trustchain.Deserialize(entry.Nature, entry.Payload)
		if err != nil {
			continue
		}
		rid, ok := trustchain.ResourceIDOf(action)
		if !ok || !rid.Equal(resourceID) {
			continue
		}
		cp := *entry
		return &cp, nil
	}
	return nil, tcerr.NotFound(tcerr.ResourceKeyNotFound, []string{resourceID.String()}, "no key publish for resource %s", resourceID)
}

func (t *trustchainIndex) LastIndex(ctx context.Context) (uint64, error) {
	s := t.s()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastIndex, nil
}
