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
	"github.com/blockspacer/trustchain-go/store"
)

// CreateGroup builds, signs, pushes and resyncs a new group with the
// given members (identity strings), returning its id (spec §4.9
// "create").
func (s *Session) CreateGroup(ctx context.Context, members []string) (crypto.GroupID, error) {
	if err := s.requireReady(); err != nil {
		return crypto.GroupID{}, err
	}
	identities, err := parseIdentities(members)
	if err != nil {
		return crypto.GroupID{}, err
	}
	created, err := s.groups.CreateGroup(ctx, identities)
	if err != nil {
		return crypto.GroupID{}, err
	}
	if _, err := s.pushAction(ctx, created.Action); err != nil {
		return crypto.GroupID{}, err
	}
	return created.ID, nil
}

// UpdateGroupMembers grows groupID with newMembers (identity strings)
// and pushes the resulting addition (spec §4.9 "update"). Pass the
// output of groups.DiffMembers (against a caller-tracked current
// membership) when newMembers is a full target list rather than an
// explicit add-list.
func (s *Session) UpdateGroupMembers(ctx context.Context, groupID crypto.GroupID, newMembers []string) error {
	if err := s.requireReady(); err != nil {
		return err
	}
	identities, err := parseIdentities(newMembers)
	if err != nil {
		return err
	}
	action, err := s.groups.AddMembers(ctx, groupID, identities)
	if err != nil {
		return err
	}
	_, err = s.pushAction(ctx, action)
	return err
}

// PromoteProvisionalGroupMembership resolves any pending provisional
// membership in groupID against a provisional keypair this device has
// already claimed via AttachProvisionalIdentity (spec §4.9 "applier
// promotion logic"). It produces no block: promotion is a purely local
// re-reading of already-published sealed key material.
func (s *Session) PromoteProvisionalGroupMembership(ctx context.Context, groupID crypto.GroupID, kp store.ProvisionalUserKeyPair) (bool, error) {
	if err := s.requireReady(); err != nil {
		return false, err
	}
	return s.groups.PromoteProvisionalMember(ctx, groupID, kp)
}
