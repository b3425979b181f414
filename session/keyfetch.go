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

	"github.com/blockspacer/trustchain-go/puller"
	"github.com/blockspacer/trustchain-go/trustchain"
)

// NetworkFetcher is the network half of a keys.KeyFetcher: it returns raw,
// unverified blocks for the given resource ids (spec §6 "get key
// publishes"). transport.Client implements this.
type NetworkFetcher interface {
	FetchKeyPublishBlocks(ctx context.Context, resourceIDs [][]byte) ([]*trustchain.Block, error)
}

// networkKeyFetcher composes a NetworkFetcher with the session's own
// puller to implement keys.KeyFetcher: it fetches raw blocks over the
// network, then runs them through the same verify/index/apply pipeline a
// regular catch-up uses, so the engine's subsequent local lookup succeeds
// (spec §4.8 step 2).
type networkKeyFetcher struct {
	net    NetworkFetcher
	puller *puller.Puller
}

func (f *networkKeyFetcher) FetchKeyPublish(ctx context.Context, resourceID []byte) error {
	blocks, err := f.net.FetchKeyPublishBlocks(ctx, [][]byte{resourceID})
	if err != nil {
		return err
	}
	if len(blocks) == 0 {
		return nil
	}
	return f.puller.ApplyFetched(ctx, blocks)
}
