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

// Package bolt is the embedded, transactional store.Store driver, backed
// by go.etcd.io/bbolt (spec §4.5, §6 "Persisted state layout"). Table
// names follow spec §6 verbatim; every column is raw bytes, never
// base64-text. Migrate stamps the schema version on a database that has
// none; it does not convert base64-text columns.
package bolt

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/serialize"
	"github.com/blockspacer/trustchain-go/store"
	"github.com/blockspacer/trustchain-go/tcerr"
	"github.com/blockspacer/trustchain-go/trustchain"
)

const (
	bucketTrustchain       = "trustchain"
	bucketTrustchainIdx    = "trustchain_indexes"
	bucketContacts         = "contacts"
	bucketUserKeys         = "user_keys"
	bucketDeviceKeys       = "device_keys"
	bucketGroups           = "groups"
	bucketGroupsProvKeys   = "groups_provisional_encryption_keys"
	bucketResourceKeys     = "resource_keys"
	bucketProvisionalKeys  = "provisional_user_keys"
	bucketVersions         = "versions"

	deviceKeysSingletonKey = "singleton"

	currentSchemaVersion = 1
)

var allBuckets = []string{
	bucketTrustchain, bucketTrustchainIdx, bucketContacts, bucketUserKeys,
	bucketDeviceKeys, bucketGroups, bucketGroupsProvKeys, bucketResourceKeys,
	bucketProvisionalKeys, bucketVersions,
}

// Store is a store.Store backed by a single bbolt database file.
type Store struct {
	db *bbolt.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if necessary) a bbolt database at path and
// installs the schema's top-level buckets.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, tcerr.Wrap(tcerr.InternalError, err, "create store directory %s", dir)
		}
	}

	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		log.Err(err).Msg("failed to open bolt store")
		return nil, tcerr.Wrap(tcerr.InternalError, err, "open bolt store %s", path)
	}

	s := &Store{db: db}
	if err := s.installSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) installSchema() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		versions := tx.Bucket([]byte(bucketVersions))
		if versions.Get([]byte(bucketTrustchain)) == nil {
			if err := putUint64(versions, bucketTrustchain, currentSchemaVersion); err != nil {
				return err
			}
		}
		return nil
	})
}

func putUint64(b *bbolt.Bucket, key string, v uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return b.Put([]byte(key), buf)
}

func getUint64(b *bbolt.Bucket, key string) uint64 {
	v := b.Get([]byte(key))
	if len(v) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

func (s *Store) Contacts() store.ContactStore                      { return (*contactStore)(s) }
func (s *Store) LocalUser() store.LocalUserStore                   { return (*localUserStore)(s) }
func (s *Store) Groups() store.GroupStore                          { return (*groupStore)(s) }
func (s *Store) ResourceKeys() store.ResourceKeyStore               { return (*resourceKeyStore)(s) }
func (s *Store) ProvisionalUserKeys() store.ProvisionalUserKeyStore { return (*provisionalUserKeyStore)(s) }
func (s *Store) Trustchain() store.TrustchainIndex                  { return (*trustchainIndex)(s) }

type txKey struct{}

// WithTransaction acquires one bbolt read-write transaction for the
// duration of fn and releases it on every exit path (spec §5 "shared
// resources"); a context already carrying a transaction reuses it instead
// of nesting.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx, ok := ctx.Value(txKey{}).(*bbolt.Tx); ok && tx != nil {
		return fn(ctx)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (s *Store) view(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if tx, ok := ctx.Value(txKey{}).(*bbolt.Tx); ok && tx != nil {
		return fn(tx)
	}
	return s.db.View(fn)
}

func (s *Store) update(ctx context.Context, fn func(tx *bbolt.Tx) error) error {
	if tx, ok := ctx.Value(txKey{}).(*bbolt.Tx); ok && tx != nil {
		return fn(tx)
	}
	return s.db.Update(fn)
}

// Migrate records currentSchemaVersion in versions[trustchain] when no
// version is stored yet, and is a no-op otherwise. It rewrites no
// column: base64-text columns are not converted to raw bytes. The current
// schema generation (version 1) has always stored raw bytes.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		versions := tx.Bucket([]byte(bucketVersions))
		v := getUint64(versions, bucketTrustchain)
		if v == 0 {
			return putUint64(versions, bucketTrustchain, currentSchemaVersion)
		}
		return nil
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

// encodeDevice/decodeDevice use the canonical serialize.Writer/Reader
// rather than JSON, consistent with how every other on-chain structure in
// this module is framed.
func encodeDevice(d store.Device) []byte {
	w := serialize.NewWriter().
		Fixed(d.ID[:]).
		Fixed(d.UserID[:]).
		Fixed(d.PublicSignatureKey[:]).
		Fixed(d.PublicEncryptionKey[:]).
		Uvarint(d.CreatedAtIndex).
		Uvarint(d.RevokedAtIndex)
	ghost := byte(0)
	if d.IsGhost {
		ghost = 1
	}
	return w.Fixed([]byte{ghost}).Out()
}

func decodeDevice(b []byte) (store.Device, error) {
	var d store.Device
	r := serialize.NewReader(b)

	idB, err := r.Fixed(crypto.DeviceIDSize)
	if err != nil {
		return d, err
	}
	if d.ID, err = crypto.DeviceIDFromBytes(idB); err != nil {
		return d, err
	}
	uidB, err := r.Fixed(crypto.UserIDSize)
	if err != nil {
		return d, err
	}
	if d.UserID, err = crypto.UserIDFromBytes(uidB); err != nil {
		return d, err
	}
	sigB, err := r.Fixed(crypto.PublicSignatureKeySize)
	if err != nil {
		return d, err
	}
	if d.PublicSignatureKey, err = crypto.PublicSignatureKeyFromBytes(sigB); err != nil {
		return d, err
	}
	encB, err := r.Fixed(crypto.PublicEncryptionKeySize)
	if err != nil {
		return d, err
	}
	if d.PublicEncryptionKey, err = crypto.PublicEncryptionKeyFromBytes(encB); err != nil {
		return d, err
	}
	if d.CreatedAtIndex, err = r.Uvarint(); err != nil {
		return d, err
	}
	if d.RevokedAtIndex, err = r.Uvarint(); err != nil {
		return d, err
	}
	ghostB, err := r.Fixed(1)
	if err != nil {
		return d, err
	}
	d.IsGhost = ghostB[0] != 0
	return d, r.Done()
}

func encodeContact(c *store.Contact) []byte {
	w := serialize.NewWriter().VectorHeader(len(c.Devices))
	for _, d := range c.Devices {
		w.Bytes(encodeDevice(d))
	}
	hasKey := byte(0)
	if c.UserPubEnc != nil {
		hasKey = 1
	}
	w.Fixed([]byte{hasKey})
	if c.UserPubEnc != nil {
		w.Fixed(c.UserPubEnc[:])
	}
	return w.Out()
}

func decodeContact(userID crypto.UserID, b []byte) (*store.Contact, error) {
	c := &store.Contact{UserID: userID}
	r := serialize.NewReader(b)

	count, err := r.VectorHeader()
	if err != nil {
		return nil, err
	}
	for i := 0; i < count; i++ {
		raw, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		d, err := decodeDevice(raw)
		if err != nil {
			return nil, err
		}
		c.Devices = append(c.Devices, d)
	}
	hasKeyB, err := r.Fixed(1)
	if err != nil {
		return nil, err
	}
	if hasKeyB[0] != 0 {
		keyB, err := r.Fixed(crypto.PublicEncryptionKeySize)
		if err != nil {
			return nil, err
		}
		k, err := crypto.PublicEncryptionKeyFromBytes(keyB)
		if err != nil {
			return nil, err
		}
		c.UserPubEnc = &k
	}
	return c, r.Done()
}

type contactStore Store

func (c *contactStore) s() *Store { return (*Store)(c) }

func (c *contactStore) PutUserDevice(ctx context.Context, userID crypto.UserID, device store.Device) error {
	s := c.s()
	return s.update(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketContacts))
		existing := b.Get(userID[:])
		var contact *store.Contact
		if existing != nil {
			var err error
			contact, err = decodeContact(userID, existing)
			if err != nil {
				return err
			}
		} else {
			contact = &store.Contact{UserID: userID}
		}
		if d := contact.DeviceByID(device.ID); d != nil {
			*d = device
		} else {
			contact.Devices = append(contact.Devices, device)
		}
		return b.Put(userID[:], encodeContact(contact))
	})
}

func (c *contactStore) PutUserKey(ctx context.Context, userID crypto.UserID, pubEnc crypto.PublicEncryptionKey) error {
	s := c.s()
	return s.update(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketContacts))
		existing := b.Get(userID[:])
		var contact *store.Contact
		if existing != nil {
			var err error
			contact, err = decodeContact(userID, existing)
			if err != nil {
				return err
			}
		} else {
			contact = &store.Contact{UserID: userID}
		}
		k := pubEnc
		contact.UserPubEnc = &k
		return b.Put(userID[:], encodeContact(contact))
	})
}

func (c *contactStore) FindUser(ctx context.Context, userID crypto.UserID) (*store.Contact, error) {
	s := c.s()
	var contact *store.Contact
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketContacts))
		raw := b.Get(userID[:])
		if raw == nil {
			return tcerr.NotFound(tcerr.UserNotFound, []string{userID.String()}, "user %s not found", userID)
		}
		var err error
		contact, err = decodeContact(userID, raw)
		return err
	})
	return contact, err
}

func (c *contactStore) FindDevice(ctx context.Context, deviceID crypto.DeviceID) (*store.Device, error) {
	s := c.s()
	var device *store.Device
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketContacts))
		cur := b.Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			userID, err := crypto.UserIDFromBytes(k)
			if err != nil {
				continue
			}
			contact, err := decodeContact(userID, v)
			if err != nil {
				return err
			}
			if d := contact.DeviceByID(deviceID); d != nil {
				cp := *d
				device = &cp
				return nil
			}
		}
		return tcerr.NotFound(tcerr.RecipientNotFound, []string{deviceID.String()}, "device %s not found", deviceID)
	})
	return device, err
}

func (c *contactStore) FindUserIDByDevice(ctx context.Context, deviceID crypto.DeviceID) (crypto.UserID, error) {
	d, err := c.FindDevice(ctx, deviceID)
	if err != nil {
		return crypto.UserID{}, err
	}
	return d.UserID, nil
}

func (c *contactStore) RevokeDevice(ctx context.Context, deviceID crypto.DeviceID, atIndex uint64) error {
	s := c.s()
	return s.update(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketContacts))
		cur := b.Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			userID, err := crypto.UserIDFromBytes(k)
			if err != nil {
				continue
			}
			contact, err := decodeContact(userID, v)
			if err != nil {
				return err
			}
			d := contact.DeviceByID(deviceID)
			if d == nil {
				continue
			}
			if d.RevokedAtIndex == 0 || atIndex < d.RevokedAtIndex {
				d.RevokedAtIndex = atIndex
			}
			return b.Put(userID[:], encodeContact(contact))
		}
		return tcerr.NotFound(tcerr.RecipientNotFound, []string{deviceID.String()}, "device %s not found", deviceID)
	})
}

type localUserStore Store

func (l *localUserStore) s() *Store { return (*Store)(l) }

func (l *localUserStore) SetDeviceKeys(ctx context.Context, privSig crypto.PrivateSignatureKey, privEnc crypto.PrivateEncryptionKey) error {
	s := l.s()
	return s.update(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketDeviceKeys))
		payload := serialize.NewWriter().Fixed(privSig[:]).Fixed(privEnc[:]).Out()
		return b.Put([]byte(deviceKeysSingletonKey+"/keys"), payload)
	})
}

func (l *localUserStore) SetDeviceID(ctx context.Context, id crypto.DeviceID) error {
	s := l.s()
	return s.update(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketDeviceKeys))
		return b.Put([]byte(deviceKeysSingletonKey+"/id"), id[:])
	})
}

func (l *localUserStore) DeviceID(ctx context.Context) (crypto.DeviceID, error) {
	s := l.s()
	var id crypto.DeviceID
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketDeviceKeys))
		raw := b.Get([]byte(deviceKeysSingletonKey + "/id"))
		if raw == nil {
			return tcerr.New(tcerr.PreconditionFailed, "device id not set")
		}
		var err error
		id, err = crypto.DeviceIDFromBytes(raw)
		return err
	})
	return id, err
}

func (l *localUserStore) DeviceKeys(ctx context.Context) (crypto.PrivateSignatureKey, crypto.PrivateEncryptionKey, error) {
	s := l.s()
	var privSig crypto.PrivateSignatureKey
	var privEnc crypto.PrivateEncryptionKey
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketDeviceKeys))
		raw := b.Get([]byte(deviceKeysSingletonKey + "/keys"))
		if raw == nil {
			return tcerr.New(tcerr.PreconditionFailed, "device keys not set")
		}
		r := serialize.NewReader(raw)
		sigB, err := r.Fixed(crypto.PrivateSignatureKeySize)
		if err != nil {
			return err
		}
		if privSig, err = crypto.PrivateSignatureKeyFromBytes(sigB); err != nil {
			return err
		}
		encB, err := r.Fixed(crypto.PrivateEncryptionKeySize)
		if err != nil {
			return err
		}
		if privEnc, err = crypto.PrivateEncryptionKeyFromBytes(encB); err != nil {
			return err
		}
		return r.Done()
	})
	return privSig, privEnc, err
}

func (l *localUserStore) PutUserKeyPair(ctx context.Context, pub crypto.PublicEncryptionKey, priv crypto.PrivateEncryptionKey) error {
	s := l.s()
	return s.update(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketUserKeys))
		if err := b.Put(pub[:], priv[:]); err != nil {
			return err
		}
		return b.Put([]byte("/last"), pub[:])
	})
}

func (l *localUserStore) FindKeyPair(ctx context.Context, pub crypto.PublicEncryptionKey) (*store.LocalUserKeyPair, error) {
	s := l.s()
	var kp *store.LocalUserKeyPair
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketUserKeys))
		raw := b.Get(pub[:])
		if raw == nil {
			return tcerr.New(tcerr.ResourceKeyNotFound, "no local keypair for public encryption key %s", pub)
		}
		priv, err := crypto.PrivateEncryptionKeyFromBytes(raw)
		if err != nil {
			return err
		}
		kp = &store.LocalUserKeyPair{Public: pub, Private: priv}
		return nil
	})
	return kp, err
}

func (l *localUserStore) LastKeyPair(ctx context.Context) (*store.LocalUserKeyPair, error) {
	s := l.s()
	var kp *store.LocalUserKeyPair
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketUserKeys))
		pubRaw := b.Get([]byte("/last"))
		if pubRaw == nil {
			return tcerr.New(tcerr.PreconditionFailed, "no user keypair set")
		}
		pub, err := crypto.PublicEncryptionKeyFromBytes(pubRaw)
		if err != nil {
			return err
		}
		privRaw := b.Get(pub[:])
		if privRaw == nil {
			return tcerr.New(tcerr.InternalError, "dangling /last pointer in user_keys")
		}
		priv, err := crypto.PrivateEncryptionKeyFromBytes(privRaw)
		if err != nil {
			return err
		}
		kp = &store.LocalUserKeyPair{Public: pub, Private: priv}
		return nil
	})
	return kp, err
}

func (l *localUserStore) ListKeyPairs(ctx context.Context) ([]store.LocalUserKeyPair, error) {
	s := l.s()
	var kps []store.LocalUserKeyPair
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketUserKeys))
		cur := b.Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			if string(k) == "/last" {
				continue
			}
			pub, err := crypto.PublicEncryptionKeyFromBytes(k)
			if err != nil {
				continue
			}
			priv, err := crypto.PrivateEncryptionKeyFromBytes(v)
			if err != nil {
				return err
			}
			kps = append(kps, store.LocalUserKeyPair{Public: pub, Private: priv})
		}
		return nil
	})
	return kps, err
}

func (l *localUserStore) SetVerificationMethod(ctx context.Context, method store.VerificationMethodRecord) error {
	s := l.s()
	return s.update(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketDeviceKeys))
		payload := serialize.NewWriter().Bytes([]byte(method.Kind)).Bytes(method.Data).Out()
		return b.Put([]byte(deviceKeysSingletonKey+"/verification_method"), payload)
	})
}

func (l *localUserStore) VerificationMethod(ctx context.Context) (*store.VerificationMethodRecord, error) {
	s := l.s()
	var rec *store.VerificationMethodRecord
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketDeviceKeys))
		raw := b.Get([]byte(deviceKeysSingletonKey + "/verification_method"))
		if raw == nil {
			return tcerr.New(tcerr.PreconditionFailed, "no verification method registered")
		}
		r := serialize.NewReader(raw)
		kind, err := r.Bytes()
		if err != nil {
			return err
		}
		data, err := r.Bytes()
		if err != nil {
			return err
		}
		if err := r.Done(); err != nil {
			return err
		}
		rec = &store.VerificationMethodRecord{Kind: string(kind), Data: data}
		return nil
	})
	return rec, err
}

type trustchainIndex Store

func (t *trustchainIndex) s() *Store { return (*Store)(t) }

func encodeIndexEntry(e store.IndexEntry) []byte {
	return serialize.NewWriter().
		Fixed(e.Hash[:]).
		Uvarint(e.Index).
		Uvarint(uint64(e.Nature)).
		Fixed(e.Author[:]).
		Bytes(e.Payload).
		Out()
}

func decodeIndexEntry(b []byte) (store.IndexEntry, error) {
	var e store.IndexEntry
	r := serialize.NewReader(b)

	hashB, err := r.Fixed(crypto.HashSize)
	if err != nil {
		return e, err
	}
	if e.Hash, err = crypto.HashFromBytes(hashB); err != nil {
		return e, err
	}
	if e.Index, err = r.Uvarint(); err != nil {
		return e, err
	}
	natureVal, err := r.Uvarint()
	if err != nil {
		return e, err
	}
	e.Nature = trustchain.Nature(natureVal)
	authorB, err := r.Fixed(crypto.HashSize)
	if err != nil {
		return e, err
	}
	if e.Author, err = crypto.HashFromBytes(authorB); err != nil {
		return e, err
	}
	if e.Payload, err = r.Bytes(); err != nil {
		return e, err
	}
	return e, r.Done()
}

func (t *trustchainIndex) AddEntry(ctx context.Context, entry store.IndexEntry) error {
	s := t.s()
	return s.update(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketTrustchain))
		if err := b.Put(entry.Hash[:], encodeIndexEntry(entry)); err != nil {
			return err
		}
		last := getUint64(b, "/last_index")
		if entry.Index > last {
			if err := putUint64(b, "/last_index", entry.Index); err != nil {
				return err
			}
		}
		if rid, ok := resourceIDOfPayload(entry.Nature, entry.Payload); ok {
			idxB := tx.Bucket([]byte(bucketTrustchainIdx))
			if err := idxB.Put(rid[:], entry.Hash[:]); err != nil {
				return err
			}
		}
		return nil
	})
}

func resourceIDOfPayload(nature trustchain.Nature, payload []byte) (crypto.ResourceID, bool) {
	if !nature.IsKeyPublish() {
		return crypto.ResourceID{}, false
	}
	action, err := trustchain.Deserialize(nature, payload)
	if err != nil {
		return crypto.ResourceID{}, false
	}
	return trustchain.ResourceIDOf(action)
}

func (t *trustchainIndex) FindByHash(ctx context.Context, hash crypto.Hash) (*store.IndexEntry, error) {
	s := t.s()
	var entry *store.IndexEntry
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketTrustchain))
		raw := b.Get(hash[:])
		if raw == nil {
			return tcerr.New(tcerr.InvalidArgument, "no trustchain entry with hash %s", hash)
		}
		e, err := decodeIndexEntry(raw)
		if err != nil {
			return err
		}
		entry = &e
		return nil
	})
	return entry, err
}

func (t *trustchainIndex) FindKeyPublishForResource(ctx context.Context, resourceID crypto.ResourceID) (*store.IndexEntry, error) {
	s := t.s()
	var entry *store.IndexEntry
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		idxB := tx.Bucket([]byte(bucketTrustchainIdx))
		hashB := idxB.Get(resourceID[:])
		if hashB == nil {
			return tcerr.NotFound(tcerr.ResourceKeyNotFound, []string{resourceID.String()}, "no key publish for resource %s", resourceID)
		}
		b := tx.Bucket([]byte(bucketTrustchain))
		raw := b.Get(hashB)
		if raw == nil {
			return tcerr.New(tcerr.InternalError, "dangling trustchain index entry")
		}
		e, err := decodeIndexEntry(raw)
		if err != nil {
			return err
		}
		entry = &e
		return nil
	})
	return entry, err
}

func (t *trustchainIndex) LastIndex(ctx context.Context) (uint64, error) {
	s := t.s()
	var last uint64
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketTrustchain))
		last = getUint64(b, "/last_index")
		return nil
	})
	return last, err
}
