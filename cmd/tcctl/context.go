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

package main

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/blockspacer/trustchain-go/cmd"
	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/session"
	"github.com/blockspacer/trustchain-go/store/bolt"
	"github.com/blockspacer/trustchain-go/tcerr"
	"github.com/blockspacer/trustchain-go/transport"
)

func parseTrustchainID(c *cli.Context) (crypto.TrustchainID, error) {
	raw, err := base64.StdEncoding.DecodeString(c.String("trustchain-id"))
	if err != nil {
		return crypto.TrustchainID{}, tcerr.Wrap(tcerr.InvalidArgument, err, "tcctl: --trustchain-id is not valid base64")
	}
	return crypto.TrustchainIDFromBytes(raw)
}

func parseTrustchainKey(c *cli.Context) (crypto.PublicSignatureKey, error) {
	raw, err := base64.StdEncoding.DecodeString(c.String("trustchain-key"))
	if err != nil {
		return crypto.PublicSignatureKey{}, tcerr.Wrap(tcerr.InvalidArgument, err, "tcctl: --trustchain-key is not valid base64")
	}
	return crypto.PublicSignatureKeyFromBytes(raw)
}

// localUserID derives a stable UserID from --user. The wire protocol
// never allocates a user id (spec §6 has no "create user" message), so
// every device bootstrapped with the same --user string converges on the
// same one.
func localUserID(c *cli.Context) crypto.UserID {
	return crypto.UserID(crypto.GenericHash([]byte(c.String("user"))))
}

func openBoltStore(c *cli.Context) (*bolt.Store, string, error) {
	path, err := cmd.GetSessionStorePath(c.String("server"), c.String("trustchain-id"), c.String("user"))
	if err != nil {
		return nil, "", err
	}
	s, err := bolt.Open(path)
	return s, path, err
}

// connectSession opens the local store, dials --server, and starts a
// session, returning whatever state Start resolves to. Use this directly
// for commands that drive identity verification themselves
// (verifyCommand); other commands should call dialSession instead.
func connectSession(ctx context.Context, c *cli.Context) (*session.Session, *transport.Client, error) {
	if c.String("server") == "" {
		return nil, nil, tcerr.New(tcerr.InvalidArgument, "tcctl: --server is required for this command")
	}

	tcID, err := parseTrustchainID(c)
	if err != nil {
		return nil, nil, err
	}
	tcKey, err := parseTrustchainKey(c)
	if err != nil {
		return nil, nil, err
	}

	s, _, err := openBoltStore(c)
	if err != nil {
		return nil, nil, err
	}

	client, err := transport.Dial(ctx, c.String("server"), fmt.Sprintf("tcctl/%s", tcctlVersion))
	if err != nil {
		_ = s.Close()
		return nil, nil, err
	}

	sess := session.New(session.Config{
		TrustchainID:        tcID,
		TrustchainPublicKey: tcKey,
		Store:               s,
		Pusher:              client,
		Fetcher:             client,
		ProvisionalResolver: client,
		KeyFetcher:          client,
	})

	if err := sess.Start(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}

	return sess, client, nil
}

// dialSession is connectSession plus the Ready check every command except
// bootstrap and verify needs: tcctl never implements device registration
// itself, so Start must resolve straight to Ready, or the operator needs
// to run bootstrap/verify first against a server that already trusts this
// device.
func dialSession(ctx context.Context, c *cli.Context) (*session.Session, *transport.Client, error) {
	sess, client, err := connectSession(ctx, c)
	if err != nil {
		return nil, nil, err
	}
	if sess.State() != session.Ready {
		_ = client.Close()
		return nil, nil, tcerr.New(tcerr.PreconditionFailed,
			"tcctl: session is %s, not ready; run 'tcctl bootstrap' or 'tcctl verify' against a server that already trusts this device", sess.State())
	}
	return sess, client, nil
}
