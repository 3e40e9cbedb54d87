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

	"github.com/spf13/cobra"

	"code.vegaprotocol.io/flatbook/logging"
	"code.vegaprotocol.io/flatbook/market"
)

const blocksFlagName = "blocks"

func init() {
	rootCmd.AddCommand(growCmd)
	growCmd.Flags().String(fileFlagName, "", "Market account file to grow")
	growCmd.MarkFlagRequired(fileFlagName)
	growCmd.Flags().Int(blocksFlagName, 256, "Number of zeroed blocks to append")
}

var growCmd = &cobra.Command{
	Use:          "grow",
	Short:        "Extend a market account file with zeroed blocks",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, ldr, log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer log.AtExit()

		path, err := cmd.Flags().GetString(fileFlagName)
		if err != nil {
			return err
		}
		blocks, err := cmd.Flags().GetInt(blocksFlagName)
		if err != nil {
			return err
		}
		if blocks <= 0 {
			return fmt.Errorf("%s flag must be positive", blocksFlagName)
		}

		buf, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		// Validate before touching the file, a grown buffer with a bad
		// header would only fail later.
		if _, err := market.Load(buf, ldr); err != nil {
			return err
		}

		// The allocator carves fresh blocks past its high-water mark, so
		// appending zeroed blocks is all growth takes.
		buf = append(buf, make([]byte, blocks*market.BlockSize)...)
		if err := os.WriteFile(path, buf, 0o644); err != nil {
			return err
		}
		log.Info("grew market account",
			logging.String("path", path),
			logging.Int("blocks", blocks),
		)
		return nil
	},
}
