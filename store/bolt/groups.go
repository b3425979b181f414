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

package bolt

import (
	"context"

	"go.etcd.io/bbolt"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/serialize"
	"github.com/blockspacer/trustchain-go/store"
	"github.com/blockspacer/trustchain-go/tcerr"
)

func encodeGroup(g store.Group) []byte {
	member := byte(0)
	if g.IsMember {
		member = 1
	}
	return serialize.NewWriter().
		Fixed(g.PublicSignatureKey[:]).
		Fixed(g.PublicEncryptionKey[:]).
		Fixed([]byte{member}).
		Fixed(g.PrivateSignatureKey[:]).
		Fixed(g.PrivateEncryptionKey[:]).
		Bytes([]byte(g.SealedPrivateSignatureKey)).
		Fixed(g.LastBlockHash[:]).
		Uvarint(g.LastBlockIndex).
		Out()
}

func decodeGroup(id crypto.GroupID, b []byte) (store.Group, error) {
	g := store.Group{ID: id}
	r := serialize.NewReader(b)

	sigB, err := r.Fixed(crypto.PublicSignatureKeySize)
	if err != nil {
		return g, err
	}
	if g.PublicSignatureKey, err = crypto.PublicSignatureKeyFromBytes(sigB); err != nil {
		return g, err
	}
	encB, err := r.Fixed(crypto.PublicEncryptionKeySize)
	if err != nil {
		return g, err
	}
	if g.PublicEncryptionKey, err = crypto.PublicEncryptionKeyFromBytes(encB); err != nil {
		return g, err
	}
	memberB, err := r.Fixed(1)
	if err != nil {
		return g, err
	}
	g.IsMember = memberB[0] != 0
	privSigB, err := r.Fixed(crypto.PrivateSignatureKeySize)
	if err != nil {
		return g, err
	}
	if g.PrivateSignatureKey, err = crypto.PrivateSignatureKeyFromBytes(privSigB); err != nil {
		return g, err
	}
	privEncB, err := r.Fixed(crypto.PrivateEncryptionKeySize)
	if err != nil {
		return g, err
	}
	if g.PrivateEncryptionKey, err = crypto.PrivateEncryptionKeyFromBytes(privEncB); err != nil {
		return g, err
	}
	sealed, err := r.Bytes()
	if err != nil {
		return g, err
	}
	g.SealedPrivateSignatureKey = crypto.SealedPrivateSignatureKey(append([]byte(nil), sealed...))
	lastHashB, err := r.Fixed(crypto.HashSize)
	if err != nil {
		return g, err
	}
	if g.LastBlockHash, err = crypto.HashFromBytes(lastHashB); err != nil {
		return g, err
	}
	if g.LastBlockIndex, err = r.Uvarint(); err != nil {
		return g, err
	}
	return g, r.Done()
}

type groupStore Store

func (gs *groupStore) s() *Store { return (*Store)(gs) }

func (gs *groupStore) Put(ctx context.Context, group store.Group) error {
	s := gs.s()
	return s.update(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketGroups))
		if existing := b.Get(group.ID[:]); existing != nil {
			old, err := decodeGroup(group.ID, existing)
			if err != nil {
				return err
			}
			if old.IsMember && !group.IsMember {
				return nil
			}
		}
		return b.Put(group.ID[:], encodeGroup(group))
	})
}

func (gs *groupStore) UpdateLastBlock(ctx context.Context, groupID crypto.GroupID, hash crypto.Hash, index uint64) error {
	s := gs.s()
	return s.update(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketGroups))
		raw := b.Get(groupID[:])
		if raw == nil {
			return tcerr.NotFound(tcerr.GroupNotFound, []string{groupID.String()}, "group %s not found", groupID)
		}
		g, err := decodeGroup(groupID, raw)
		if err != nil {
			return err
		}
		g.LastBlockHash = hash
		g.LastBlockIndex = index
		return b.Put(groupID[:], encodeGroup(g))
	})
}

func (gs *groupStore) FindByID(ctx context.Context, groupID crypto.GroupID) (*store.Group, error) {
	s := gs.s()
	var g *store.Group
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketGroups))
		raw := b.Get(groupID[:])
		if raw == nil {
			return tcerr.NotFound(tcerr.GroupNotFound, []string{groupID.String()}, "group %s not found", groupID)
		}
		decoded, err := decodeGroup(groupID, raw)
		if err != nil {
			return err
		}
		g = &decoded
		return nil
	})
	return g, err
}

func (gs *groupStore) FindByPublicEncryptionKey(ctx context.Context, pubEnc crypto.PublicEncryptionKey) (*store.Group, error) {
	s := gs.s()
	var found *store.Group
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketGroups))
		cur := b.Cursor()
		for k, v := cur.First(); k != nil; k, v = cur.Next() {
			groupID, err := crypto.GroupIDFromBytes(k)
			if err != nil {
				continue
			}
			g, err := decodeGroup(groupID, v)
			if err != nil {
				return err
			}
			if g.PublicEncryptionKey.Equal(pubEnc) {
				found = &g
				return nil
			}
		}
		return tcerr.NotFound(tcerr.GroupNotFound, nil, "no group with public encryption key %s", pubEnc)
	})
	return found, err
}

func (gs *groupStore) PutProvisionalKeys(ctx context.Context, groupID crypto.GroupID, entries []store.ProvisionalGroupKeys) error {
	s := gs.s()
	return s.update(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketGroupsProvKeys))
		existing, err := gs.readProvisional(tx, groupID)
		if err != nil {
			return err
		}
		existing = append(existing, entries...)
		return b.Put(groupID[:], encodeProvisionalEntries(existing))
	})
}

func (gs *groupStore) readProvisional(tx *bbolt.Tx, groupID crypto.GroupID) ([]store.ProvisionalGroupKeys, error) {
	b := tx.Bucket([]byte(bucketGroupsProvKeys))
	raw := b.Get(groupID[:])
	if raw == nil {
		return nil, nil
	}
	return decodeProvisionalEntries(groupID, raw)
}

func (gs *groupStore) FindProvisionalKeys(ctx context.Context, groupID crypto.GroupID) ([]store.ProvisionalGroupKeys, error) {
	s := gs.s()
	var entries []store.ProvisionalGroupKeys
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		var err error
		entries, err = gs.readProvisional(tx, groupID)
		return err
	})
	return entries, err
}

func encodeProvisionalEntries(entries []store.ProvisionalGroupKeys) []byte {
	w := serialize.NewWriter().VectorHeader(len(entries))
	for _, e := range entries {
		w.Fixed(e.AppPublicSignatureKey[:]).Fixed(e.ServerPublicSignatureKey[:]).Bytes([]byte(e.TwoTimesSealedPrivateKey))
	}
	return w.Out()
}

func decodeProvisionalEntries(groupID crypto.GroupID, b []byte) ([]store.ProvisionalGroupKeys, error) {
	r := serialize.NewReader(b)
	count, err := r.VectorHeader()
	if err != nil {
		return nil, err
	}
	out := make([]store.ProvisionalGroupKeys, 0, count)
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
		sealed, err := r.Bytes()
		if err != nil {
			return nil, err
		}
		out = append(out, store.ProvisionalGroupKeys{
			GroupID:                  groupID,
			AppPublicSignatureKey:    app,
			ServerPublicSignatureKey: srv,
			TwoTimesSealedPrivateKey: crypto.TwoTimesSealedSymmetricKey(append([]byte(nil), sealed...)),
		})
	}
	return out, r.Done()
}

type resourceKeyStore Store

func (r *resourceKeyStore) s() *Store { return (*Store)(r) }

func (r *resourceKeyStore) Put(ctx context.Context, resourceID crypto.ResourceID, key crypto.SymmetricKey) error {
	s := r.s()
	return s.update(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketResourceKeys))
		if b.Get(resourceID[:]) != nil {
			return nil
		}
		return b.Put(resourceID[:], key[:])
	})
}

func (r *resourceKeyStore) Get(ctx context.Context, resourceID crypto.ResourceID) (crypto.SymmetricKey, error) {
	s := r.s()
	var key crypto.SymmetricKey
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketResourceKeys))
		raw := b.Get(resourceID[:])
		if raw == nil {
			return tcerr.New(tcerr.InvalidArgument, "no resource key for %s", resourceID)
		}
		var err error
		key, err = crypto.SymmetricKeyFromBytes(raw)
		return err
	})
	return key, err
}

type provisionalUserKeyStore Store

func (p *provisionalUserKeyStore) s() *Store { return (*Store)(p) }

func provisionalKeyIndexKey(appPubSig, serverPubSig crypto.PublicSignatureKey) []byte {
	return append(append([]byte{}, appPubSig[:]...), serverPubSig[:]...)
}

func (p *provisionalUserKeyStore) Put(ctx context.Context, entry store.ProvisionalUserKeyPair) error {
	s := p.s()
	return s.update(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketProvisionalKeys))
		payload := serialize.NewWriter().
			Fixed(entry.AppEncryptionKeyPair.Public[:]).
			Fixed(entry.AppEncryptionKeyPair.Private[:]).
			Fixed(entry.ServerEncryptionKeyPair.Public[:]).
			Fixed(entry.ServerEncryptionKeyPair.Private[:]).
			Out()
		key := provisionalKeyIndexKey(entry.AppPublicSignatureKey, entry.ServerPublicSignatureKey)
		return b.Put(key, payload)
	})
}

func (p *provisionalUserKeyStore) Find(ctx context.Context, appPubSig, serverPubSig crypto.PublicSignatureKey) (*store.ProvisionalUserKeyPair, error) {
	s := p.s()
	var entry *store.ProvisionalUserKeyPair
	err := s.view(ctx, func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketProvisionalKeys))
		raw := b.Get(provisionalKeyIndexKey(appPubSig, serverPubSig))
		if raw == nil {
			return tcerr.New(tcerr.ResourceKeyNotFound, "no provisional keypair for app sig %s", appPubSig)
		}
		r := serialize.NewReader(raw)
		e := store.ProvisionalUserKeyPair{AppPublicSignatureKey: appPubSig, ServerPublicSignatureKey: serverPubSig}

		appPubB, err := r.Fixed(crypto.PublicEncryptionKeySize)
		if err != nil {
			return err
		}
		if e.AppEncryptionKeyPair.Public, err = crypto.PublicEncryptionKeyFromBytes(appPubB); err != nil {
			return err
		}
		appPrivB, err := r.Fixed(crypto.PrivateEncryptionKeySize)
		if err != nil {
			return err
		}
		if e.AppEncryptionKeyPair.Private, err = crypto.PrivateEncryptionKeyFromBytes(appPrivB); err != nil {
			return err
		}
		srvPubB, err := r.Fixed(crypto.PublicEncryptionKeySize)
		if err != nil {
			return err
		}
		if e.ServerEncryptionKeyPair.Public, err = crypto.PublicEncryptionKeyFromBytes(srvPubB); err != nil {
			return err
		}
		srvPrivB, err := r.Fixed(crypto.PrivateEncryptionKeySize)
		if err != nil {
			return err
		}
		if e.ServerEncryptionKeyPair.Private, err = crypto.PrivateEncryptionKeyFromBytes(srvPrivB); err != nil {
			return err
		}
		if err := r.Done(); err != nil {
			return err
		}
		entry = &e
		return nil
	})
	return entry, err
}
