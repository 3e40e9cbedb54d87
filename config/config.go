// Copyright (C) 2023 Gobalsky Labs Limited
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package config ties together the configuration of every flatbook
// package and reads/writes it as a single toml file.
package config

import (
	"os"
	"path/filepath"

	"code.vegaprotocol.io/flatbook/libs/crypto"
	"code.vegaprotocol.io/flatbook/logging"
	"code.vegaprotocol.io/flatbook/metrics"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

const configFileName = "config.toml"

// Engine groups the knobs of the storage engine itself.
type Engine struct {
	// ProgramID is the hex encoded program identity owning every
	// account buffer; discriminants and derived addresses depend on it.
	ProgramID string `long:"program-id"`
	// MarketBlocks and GlobalBlocks size freshly grown account
	// buffers, in dynamic blocks past the header.
	MarketBlocks int `long:"market-blocks"`
	GlobalBlocks int `long:"global-blocks"`
}

// Config ties together all other application configuration types.
type Config struct {
	Engine  Engine         `group:"Engine" namespace:"engine"`
	Logging logging.Config `group:"Logging" namespace:"logging"`
	Metrics metrics.Config `group:"Metrics" namespace:"metrics"`
}

// NewDefaultConfig returns a set of default configs for all flatbook
// packages, as specified at the per package config level.
func NewDefaultConfig() Config {
	return Config{
		Engine: Engine{
			ProgramID:    crypto.ZeroKey.String(),
			MarketBlocks: 1024,
			GlobalBlocks: 2048,
		},
		Logging: logging.NewDefaultConfig(),
		Metrics: metrics.NewDefaultConfig(),
	}
}

// ProgramKey parses the configured program identity.
func (c Config) ProgramKey() (crypto.PublicKey, error) {
	pk, err := crypto.PublicKeyFromHex(c.Engine.ProgramID)
	if err != nil {
		return crypto.ZeroKey, errors.Wrap(err, "invalid program id in config")
	}
	return pk, nil
}

// Read loads the config file from rootPath, applied on top of the
// defaults so a partial file is fine.
func Read(rootPath string) (*Config, error) {
	buf, err := os.ReadFile(filepath.Join(rootPath, configFileName))
	if err != nil {
		return nil, err
	}
	cfg := NewDefaultConfig()
	if _, err := toml.Decode(string(buf), &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Write saves the config as toml under rootPath, creating the directory
// when needed.
func Write(rootPath string, cfg Config) error {
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(rootPath, configFileName))
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
