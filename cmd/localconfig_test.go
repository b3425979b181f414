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

package cmd_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/blockspacer/trustchain-go/cmd"
)

func TestGetSessionStorePath(t *testing.T) {
	configDir := GetConfigDir()

	p, err := GetSessionStorePath("wss://trustchain.example.com:4000", "1234", "alice@example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, configDir))
	assert.Equal(t,
		"/sessions/wss___trustchain.example.com_4000/1234/alice_at_example.com/session.bolt",
		p[len(configDir):],
	)
}
