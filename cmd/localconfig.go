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

// Package cmd holds config-directory helpers shared by every CLI binary
// under cmd/.
package cmd

import (
	"os"
	"os/user"
	"path"
	"path/filepath"
	"strings"
)

var configDirName = ".trustchain"

// GetConfigDir returns the current user's config directory, defaulting
// to ~/.trustchain until overridden by SetConfigDirName.
func GetConfigDir() string {
	currentUser, err := user.Current()
	if err != nil {
		panic(err)
	}
	return path.Join(currentUser.HomeDir, configDirName)
}

func SetConfigDirName(name string) {
	configDirName = name
}

// GetSessionStorePath returns the bolt store path a CLI tool should open
// for one (server, trustchain, user) triple, isolating devices enrolled
// against different servers or trustchains from each other the same way
// separate wallet files do per account.
func GetSessionStorePath(dialURL, trustchainID, userID string) (string, error) {
	configDir := GetConfigDir()

	serverFolder := strings.ReplaceAll(
		strings.ReplaceAll(dialURL, ":", "_"),
		"/",
		"_",
	)
	userFolder := strings.ReplaceAll(userID, "@", "_at_")

	return filepath.Join(configDir, "sessions", serverFolder, trustchainID, userFolder, "session.bolt"), nil
}

func InstallLocalFile(relativePath []string, fileName string, data []byte) error {
	configDir := GetConfigDir()
	pathElem := []string{configDir}
	if relativePath != nil {
		pathElem = append(pathElem, relativePath...)
	}
	fullPath := path.Join(pathElem...)
	err := os.MkdirAll(fullPath, 0o700)
	if err != nil {
		return err
	}

	pathElem = append(pathElem, fileName)
	fullFileName := path.Join(pathElem...)

	return os.WriteFile(fullFileName, data, 0o600)
}

func ReadLocalFile(relativePath []string, fileName string) ([]byte, error) {
	configDir := GetConfigDir()
	pathElem := []string{configDir}
	if relativePath != nil {
		pathElem = append(pathElem, relativePath...)
	}
	pathElem = append(pathElem, fileName)
	fullFileName := path.Join(pathElem...)

	return os.ReadFile(fullFileName)
}
