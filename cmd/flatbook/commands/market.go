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

	"code.vegaprotocol.io/flatbook/libs/crypto"
	"code.vegaprotocol.io/flatbook/logging"
	"code.vegaprotocol.io/flatbook/market"
	"code.vegaprotocol.io/flatbook/rbtree"
)

const (
	baseMintFlagName  = "base-mint"
	quoteMintFlagName = "quote-mint"
	fileFlagName      = "file"
)

func init() {
	rootCmd.AddCommand(createMarketCmd)
	createMarketCmd.Flags().String(baseMintFlagName, "", "Hex encoded base mint, random when empty")
	createMarketCmd.Flags().String(quoteMintFlagName, "", "Hex encoded quote mint, random when empty")
	createMarketCmd.Flags().Uint8("base-decimals", 9, "Base mint decimals")
	createMarketCmd.Flags().Uint8("quote-decimals", 6, "Quote mint decimals")

	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().String(fileFlagName, "", "Market account file to inspect")
	inspectCmd.MarkFlagRequired(fileFlagName)
}

// keyFlag parses the flag as a hex key, or mints a random one when the
// flag was left empty.
func keyFlag(cmd *cobra.Command, name string) (crypto.PublicKey, error) {
	s, err := cmd.Flags().GetString(name)
	if err != nil {
		return crypto.ZeroKey, err
	}
	if s == "" {
		return crypto.RandomKey(), nil
	}
	return crypto.PublicKeyFromHex(s)
}

var createMarketCmd = &cobra.Command{
	Use:          "create-market",
	Short:        "Grow and initialise a market account file",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, cfg, ldr, log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer log.AtExit()

		baseMint, err := keyFlag(cmd, baseMintFlagName)
		if err != nil {
			return err
		}
		quoteMint, err := keyFlag(cmd, quoteMintFlagName)
		if err != nil {
			return err
		}
		baseDecimals, _ := cmd.Flags().GetUint8("base-decimals")
		quoteDecimals, _ := cmd.Flags().GetUint8("quote-decimals")

		marketKey := crypto.RandomKey()
		buf := make([]byte, market.HeaderSize+cfg.Engine.MarketBlocks*market.BlockSize)
		err = market.Initialize(buf[:market.HeaderSize], market.InitArgs{
			Market:            marketKey,
			BaseMint:          baseMint,
			QuoteMint:         quoteMint,
			BaseMintDecimals:  baseDecimals,
			QuoteMintDecimals: quoteDecimals,
		}, ldr)
		if err != nil {
			return err
		}

		path := filepath.Join(home, fmt.Sprintf("market-%s.bin", marketKey))
		if err := os.WriteFile(path, buf, 0o644); err != nil {
			return err
		}
		log.Info("created market account",
			logging.String("path", path),
			logging.String("market", marketKey.String()),
			logging.String("base-mint", baseMint.String()),
			logging.String("quote-mint", quoteMint.String()),
		)
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:          "inspect",
	Short:        "Print the header and resting orders of a market account file",
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
		buf, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		v, err := market.Load(buf, ldr)
		if err != nil {
			return err
		}

		fmt.Printf("base mint:    %s\n", v.BaseMint())
		fmt.Printf("quote mint:   %s\n", v.QuoteMint())
		fmt.Printf("order seq:    %d\n", v.OrderSequenceNumber())
		fmt.Printf("quote volume: %d\n", v.QuoteVolume())

		for _, side := range []struct {
			name string
			it   *rbtree.Iterator[market.RestingOrder, *market.RestingOrder]
		}{
			{"bids", v.Bids()},
			{"asks", v.Asks()},
		} {
			fmt.Printf("%s:\n", side.name)
			it := side.it
			for {
				idx, o, ok := it.Next()
				if !ok {
					break
				}
				trader, err := v.TraderKeyByIndex(o.TraderIndex)
				if err != nil {
					return err
				}
				fmt.Printf("  [%d] %s x %d base atoms, seq %d, %s, trader %s\n",
					idx, o.Price.ToDecimal(), o.NumBaseAtoms, o.SequenceNumber, o.Type, trader)
			}
		}
		return nil
	},
}
