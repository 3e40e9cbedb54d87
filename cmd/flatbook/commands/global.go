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
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"code.vegaprotocol.io/flatbook/global"
	"code.vegaprotocol.io/flatbook/logging"
)

const mintFlagName = "mint"

func init() {
	rootCmd.AddCommand(createGlobalCmd)
	createGlobalCmd.Flags().String(mintFlagName, "", "Hex encoded mint backing the ledger, random when empty")
}

var createGlobalCmd = &cobra.Command{
	Use:          "create-global",
	Short:        "Grow and initialise a global ledger account file",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, cfg, ldr, log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer log.AtExit()

		mint, err := keyFlag(cmd, mintFlagName)
		if err != nil {
			return err
		}

		buf := make([]byte, global.HeaderSize+cfg.Engine.GlobalBlocks*global.BlockSize)
		if err := global.Initialize(buf[:global.HeaderSize], mint, ldr); err != nil {
			return err
		}

		path := filepath.Join(home, fmt.Sprintf("global-%s.bin", mint))
		if err := os.WriteFile(path, buf, 0o644); err != nil {
			return err
		}
		log.Info("created global ledger account",
			logging.String("path", path),
			logging.String("mint", mint.String()),
		)
		return nil
	},
}
