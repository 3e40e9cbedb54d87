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

	"code.vegaprotocol.io/flatbook/global"
	"code.vegaprotocol.io/flatbook/libs/crypto"
	"code.vegaprotocol.io/flatbook/loader"
	"code.vegaprotocol.io/flatbook/market"
	"code.vegaprotocol.io/flatbook/quantities"
)

const (
	sideFlagName        = "side"
	baseAtomsFlagName   = "base-atoms"
	quoteAtomsFlagName  = "quote-atoms"
	slotFlagName        = "slot"
	baseLedgerFlagName  = "base-ledger"
	quoteLedgerFlagName = "quote-ledger"
)

func init() {
	rootCmd.AddCommand(impactCmd)
	impactCmd.Flags().String(fileFlagName, "", "Market account file to walk")
	impactCmd.MarkFlagRequired(fileFlagName)
	impactCmd.Flags().String(sideFlagName, "buy", "Taker side: buy or sell")
	impactCmd.Flags().Uint64(baseAtomsFlagName, 0, "Base atom limit, quotes the trade on the quote axis")
	impactCmd.Flags().Uint64(quoteAtomsFlagName, 0, "Quote atom budget, quotes the trade on the base axis")
	impactCmd.Flags().Uint32(slotFlagName, 0, "Slot used to expire resting orders")
	impactCmd.Flags().String(baseLedgerFlagName, "", "Global ledger file backing resting asks")
	impactCmd.Flags().String(quoteLedgerFlagName, "", "Global ledger file backing resting bids")
}

// ledgerAccount loads a global ledger file into a borrowable account so
// the impact walk can check the backing balances of global orders.
func ledgerAccount(path string, ldr loader.Config) (*global.TradeAccounts, error) {
	if path == "" {
		return nil, nil
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	acc := loader.NewAccount(crypto.RandomKey(), ldr.ProgramID, buf)
	return global.NewTradeAccounts(acc, ldr), nil
}

var impactCmd = &cobra.Command{
	Use:          "impact",
	Short:        "Simulate the fill a taker order would get against a market file",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, _, ldr, log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer log.AtExit()

		path, _ := cmd.Flags().GetString(fileFlagName)
		side, _ := cmd.Flags().GetString(sideFlagName)
		baseAtoms, _ := cmd.Flags().GetUint64(baseAtomsFlagName)
		quoteAtoms, _ := cmd.Flags().GetUint64(quoteAtomsFlagName)
		slot, _ := cmd.Flags().GetUint32(slotFlagName)

		isBid := side == "buy"
		if !isBid && side != "sell" {
			return fmt.Errorf("%s flag must be either %q or %q", sideFlagName, "buy", "sell")
		}
		if (baseAtoms == 0) == (quoteAtoms == 0) {
			return fmt.Errorf("exactly one of --%s and --%s must be set", baseAtomsFlagName, quoteAtomsFlagName)
		}

		buf, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		v, err := market.Load(buf, ldr)
		if err != nil {
			return err
		}

		var globals [2]*global.TradeAccounts
		basePath, _ := cmd.Flags().GetString(baseLedgerFlagName)
		quotePath, _ := cmd.Flags().GetString(quoteLedgerFlagName)
		if globals[0], err = ledgerAccount(basePath, ldr); err != nil {
			return err
		}
		if globals[1], err = ledgerAccount(quotePath, ldr); err != nil {
			return err
		}

		if baseAtoms != 0 {
			quote, err := v.ImpactQuoteAtoms(isBid, quantities.BaseAtoms(baseAtoms), globals, slot)
			if err != nil {
				return err
			}
			fmt.Printf("%d base atoms would trade for %d quote atoms\n", baseAtoms, quote)
			return nil
		}
		base, err := v.ImpactBaseAtoms(isBid, quantities.QuoteAtoms(quoteAtoms), globals, slot)
		if err != nil {
			return err
		}
		fmt.Printf("%d quote atoms would trade for %d base atoms\n", quoteAtoms, base)
		return nil
	},
}
