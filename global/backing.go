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

package global

import (
	"code.vegaprotocol.io/flatbook/libs/crypto"
	"code.vegaprotocol.io/flatbook/loader"
	"code.vegaprotocol.io/flatbook/quantities"
)

// TradeAccounts bundles the ledger account a match walk needs to
// balance-check global orders on one side of a market. A walk that is
// not handed a bundle cannot service global orders at all.
type TradeAccounts struct {
	Global *loader.Account

	cfg loader.Config
}

// NewTradeAccounts bundles a ledger account with the program identity
// its discriminant is checked against.
func NewTradeAccounts(globalAcc *loader.Account, cfg loader.Config) *TradeAccounts {
	return &TradeAccounts{Global: globalAcc, cfg: cfg}
}

// CanBackOrder reports whether the trader's ledger deposit covers
// desired atoms. Every failure mode answers false rather than erroring:
// a nil bundle, a ledger account already exclusively borrowed (it could
// be mid-mutation, refuse conservatively rather than block), a buffer
// that fails validation, or simply not enough deposited. The match walk
// treats all of these the same way, the order gives no fill.
func CanBackOrder(accounts *TradeAccounts, trader crypto.PublicKey, desired quantities.GlobalAtoms) bool {
	if accounts == nil || accounts.Global == nil {
		return false
	}
	data, release, err := accounts.Global.BorrowMut()
	if err != nil {
		return false
	}
	defer release()
	v, err := Load(data, accounts.cfg)
	if err != nil {
		return false
	}
	return desired <= v.GetBalanceAtoms(trader)
}
