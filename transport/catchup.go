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

package transport

import (
	"context"
	"encoding/base64"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/puller"
	"github.com/blockspacer/trustchain-go/tcerr"
	"github.com/blockspacer/trustchain-go/trustchain"
)

type catchUpRequest struct {
	LastIndex        uint64             `json:"last_index"`
	ExtraUserIDs     []crypto.UserID    `json:"extra_user_ids,omitempty"`
	ExtraGroupIDs    []crypto.GroupID   `json:"extra_group_ids,omitempty"`
	ExtraResourceIDs []crypto.ResourceID `json:"extra_resource_ids,omitempty"`
}

type blocksResponse struct {
	Blocks []string `json:"blocks"`
}

// CatchUp implements puller.Fetcher: it bundles spec §6's "get my user
// blocks" plus the extra lookups puller.Request carries into a single
// round trip, rather than the three separate messages the spec enumerates
// for them, since the puller only ever needs the union of their results.
func (c *Client) CatchUp(ctx context.Context, req puller.Request) ([]*trustchain.Block, error) {
	var resp blocksResponse
	if err := c.call(ctx, "catch up", catchUpRequest{
		LastIndex:        req.LastIndex,
		ExtraUserIDs:     req.ExtraUserIDs,
		ExtraGroupIDs:    req.ExtraGroupIDs,
		ExtraResourceIDs: req.ExtraResourceIDs,
	}, &resp); err != nil {
		return nil, err
	}
	return decodeBlocks(resp.Blocks)
}

// FetchKeyPublishBlocks implements the network half of a KeyFetcher (spec
// §6 "get key publishes {resource_ids}"): it returns raw, not-yet-verified
// blocks. Verifying and indexing them is the caller's job (see
// session.NetworkFetcher), since only a session holds both the
// verifier and the store.
func (c *Client) FetchKeyPublishBlocks(ctx context.Context, resourceIDs [][]byte) ([]*trustchain.Block, error) {
	ids := make([]string, len(resourceIDs))
	for i, id := range resourceIDs {
		ids[i] = base64.StdEncoding.EncodeToString(id)
	}
	var resp blocksResponse
	if err := c.call(ctx, "get key publishes", struct {
		ResourceIDs []string `json:"resource_ids"`
	}{ResourceIDs: ids}, &resp); err != nil {
		return nil, err
	}
	return decodeBlocks(resp.Blocks)
}

func decodeBlocks(encoded []string) ([]*trustchain.Block, error) {
	blocks := make([]*trustchain.Block, 0, len(encoded))
	for _, b64 := range encoded {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, tcerr.Wrap(tcerr.InvalidArgument, err, "transport: malformed block envelope")
		}
		block, err := trustchain.UnmarshalBlockWire(raw)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

type pushBlockResponse struct {
	Index uint64 `json:"index"`
}

// Push implements session.Pusher (spec §4.9 "push as a block"): it sends
// block's wire form and records the index the server assigns it.
func (c *Client) Push(ctx context.Context, block *trustchain.Block) error {
	var resp pushBlockResponse
	if err := c.call(ctx, "push block", struct {
		Block string `json:"block"`
	}{Block: base64.StdEncoding.EncodeToString(block.MarshalWire())}, &resp); err != nil {
		return err
	}
	block.Index = resp.Index
	return nil
}
