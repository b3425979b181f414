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

// Package groups implements the group manager (spec §4.9): building and
// self-signing UserGroupCreation2/UserGroupAddition2 actions, and the
// member-diff used to grow an existing group. Applying a group action
// once it has been verified and indexed (deciding whether we can decrypt
// the group's private keys, and so whether to store it as internal or
// external) stays with puller.Puller, which already implements it; this
// package only produces the actions a caller pushes as a block.
package groups

import (
	"github.com/blockspacer/trustchain-go/keys"
	"github.com/blockspacer/trustchain-go/store"
)

// MaxGroupSize bounds how many members (permanent plus provisional) a
// single group may carry (spec §4.9 "max_group_size = 1000").
const MaxGroupSize = 1000

// Engine builds group-creation and group-addition actions. Resolving
// provisional member identities reuses keys.ProvisionalResolver, the same
// network interface the key-distribution engine uses to resolve
// provisional recipients.
type Engine struct {
	store    store.Store
	resolver keys.ProvisionalResolver
}

// New builds a group manager backed by s. resolver may be nil if the
// caller never adds provisional identities to a group.
func New(s store.Store, resolver keys.ProvisionalResolver) *Engine {
	return &Engine{store: s, resolver: resolver}
}
