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

// Package keys is the key-distribution engine (spec §4.8): it resolves a
// mixed list of permanent users, groups and provisional identities into a
// recipient list, builds the key-publish actions that seal a resource key
// to each of them, and resolves a resource id back to its symmetric key by
// walking local stores before falling back to the trustchain index and the
// network.
package keys

import (
	"context"

	"github.com/blockspacer/trustchain-go/store"
)

// ProvisionalResolver looks up public provisional identities by their
// server-hashed lookup value (spec §4.8 step 3, "get public provisional
// identities"). transport implements this against the trustchain server.
type ProvisionalResolver interface {
	ResolveProvisionalIdentities(ctx context.Context, hashed []string) (map[string]ProvisionalIdentity, error)
}

// KeyFetcher asks the network for any key-publish entries addressed to us
// for resourceID, applying them through the puller so a subsequent local
// lookup can succeed (spec §4.8 step 2, "else request from server").
type KeyFetcher interface {
	FetchKeyPublish(ctx context.Context, resourceID []byte) error
}

// Engine is the key-distribution engine for one session.
type Engine struct {
	store    store.Store
	resolver ProvisionalResolver
	fetcher  KeyFetcher
	cache    *recipientCache
}

// New builds an Engine over s. resolver and fetcher may be nil; Engine
// degrades to recipient_not_found / resource_key_not_found for the
// operations that need them (provisional recipients, network retrieval)
// rather than panicking, so it is usable standalone in tests.
func New(s store.Store, resolver ProvisionalResolver, fetcher KeyFetcher) *Engine {
	return &Engine{
		store:    s,
		resolver: resolver,
		fetcher:  fetcher,
		cache:    newRecipientCache(recipientCacheSize),
	}
}
