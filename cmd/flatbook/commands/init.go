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
	"fmt"

	"github.com/spf13/cobra"

	"code.vegaprotocol.io/flatbook/config"
	"code.vegaprotocol.io/flatbook/libs/crypto"
)

const forceFlagName = "force"

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool(forceFlagName, false, "Overwrite an existing config file")
}

var initCmd = &cobra.Command{
	Use:          "init",
	Short:        "Write a default config file under the home directory",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := cmd.Flags().GetString(homeFlagName)
		if err != nil {
			return err
		}
		force, err := cmd.Flags().GetBool(forceFlagName)
		if err != nil {
			return err
		}
		if _, err := config.Read(home); err == nil && !force {
			return fmt.Errorf("config already exists in %q, use --%s to overwrite", home, forceFlagName)
		}
		cfg := config.NewDefaultConfig()
		cfg.Engine.ProgramID = crypto.RandomKey().String()
		if err := config.Write(home, cfg); err != nil {
			return err
		}
		fmt.Printf("wrote config to %q, program id %s\n", home, cfg.Engine.ProgramID)
		return nil
	},
}
