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

package cmd

import (
	"github.com/spf13/cobra"

	"code.vegaprotocol.io/flatbook/config"
	"code.vegaprotocol.io/flatbook/loader"
	"code.vegaprotocol.io/flatbook/logging"
	"code.vegaprotocol.io/flatbook/metrics"
)

const (
	homeFlagName     = "home"
	logLevelFlagName = "log-level"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "flatbook",
	Short: "Operate flatbook order book account files",
}

// Execute is the main function of `cmd` package.
// Usually called by the `main.main()`.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String(homeFlagName, ".", "Directory holding the config file and account buffers")
	rootCmd.PersistentFlags().String(logLevelFlagName, "", "Override the configured log level")
}

// setup reads the config from the home directory and builds the logger
// and loader config every subcommand needs.
func setup(cmd *cobra.Command) (string, *config.Config, loader.Config, *logging.Logger, error) {
	home, err := cmd.Flags().GetString(homeFlagName)
	if err != nil {
		return "", nil, loader.Config{}, nil, err
	}
	cfg, err := config.Read(home)
	if err != nil {
		return "", nil, loader.Config{}, nil, err
	}
	programID, err := cfg.ProgramKey()
	if err != nil {
		return "", nil, loader.Config{}, nil, err
	}
	log := logging.NewLoggerFromConfig(cfg.Logging)
	if lvl, _ := cmd.Flags().GetString(logLevelFlagName); lvl != "" {
		parsed, err := logging.ParseLevel(lvl)
		if err != nil {
			return "", nil, loader.Config{}, nil, err
		}
		log.SetLevel(parsed)
	}
	metrics.Start(cfg.Metrics)
	return home, cfg, loader.NewConfig(programID), log, nil
}
