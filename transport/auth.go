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
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/blockspacer/trustchain-go/crypto"
	"github.com/blockspacer/trustchain-go/tcerr"
)

// authChallengePrefix is the literal the server's challenge must begin
// with (spec §6); a challenge failing this check is an abort, not a
// retryable condition, since it signals a server not speaking this
// protocol at all.
const authChallengePrefix = "🔒 Auth Challenge. 1234567890."

type authChallengeResponse struct {
	Challenge string `json:"challenge"`
}

// RequestAuthChallenge asks the server for a fresh challenge to sign
// (spec §6 "request auth challenge").
func (c *Client) RequestAuthChallenge(ctx context.Context) (string, error) {
	var resp authChallengeResponse
	if err := c.call(ctx, "request auth challenge", struct{}{}, &resp); err != nil {
		return "", err
	}
	if !strings.HasPrefix(resp.Challenge, authChallengePrefix) {
		return "", tcerr.New(tcerr.VerificationFailed, "transport: auth challenge missing expected prefix")
	}
	return resp.Challenge, nil
}

type authenticateDeviceRequest struct {
	Signature          crypto.Signature          `json:"signature"`
	PublicSignatureKey crypto.PublicSignatureKey `json:"public_signature_key"`
	TrustchainID       crypto.TrustchainID       `json:"trustchain_id"`
	UserID             crypto.UserID             `json:"user_id"`
}

type authenticateDeviceResponse struct {
	Token string `json:"token"`
}

// AuthenticateDevice signs challenge with the device's private signature
// key and completes the handshake (spec §6 "authenticate device"). On
// success the server's session token is stored and returned by Token; it
// is not attached to later requests. The authentication proof is the
// signature sent here.
func (c *Client) AuthenticateDevice(ctx context.Context, challenge string, trustchainID crypto.TrustchainID, userID crypto.UserID, devicePubSig crypto.PublicSignatureKey, devicePrivSig crypto.PrivateSignatureKey) error {
	sig := crypto.Sign([]byte(challenge), devicePrivSig)

	var resp authenticateDeviceResponse
	if err := c.call(ctx, "authenticate device", authenticateDeviceRequest{
		Signature:          sig,
		PublicSignatureKey: devicePubSig,
		TrustchainID:       trustchainID,
		UserID:             userID,
	}, &resp); err != nil {
		return err
	}
	if resp.Token == "" {
		return tcerr.New(tcerr.VerificationFailed, "transport: server returned an empty session token")
	}

	// Parsed only to surface a readable error on a malformed token; the
	// server is trusted as the issuer, so signature verification against
	// a local key is not meaningful here.
	if _, _, err := jwt.NewParser().ParseUnverified(resp.Token, jwt.MapClaims{}); err != nil {
		return tcerr.Wrap(tcerr.VerificationFailed, err, "transport: malformed session token")
	}

	c.setToken(resp.Token)
	return nil
}
