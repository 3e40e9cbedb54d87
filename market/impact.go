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

package market

import (
	"time"

	"code.vegaprotocol.io/flatbook/global"
	"code.vegaprotocol.io/flatbook/metrics"
	"code.vegaprotocol.io/flatbook/quantities"
)

// Impact simulators: read-only walks answering "what would a marketable
// order get right now". They mutate nothing, so repeated calls on an
// unchanged book return the same answer, and a real match that follows
// sees exactly the simulated book.
//
// globalAccounts carries up to two ledger bundles: slot 0 backs asks
// (base ledger), slot 1 backs bids (quote ledger). A bid taker consumes
// asks and so needs slot 0; an ask taker needs slot 1. A nil slot means
// global orders on that side cannot be serviced at all.

const (
	baseLedgerSlot  = 0
	quoteLedgerSlot = 1
)

// ImpactQuoteAtoms returns the quote atoms a taker would move to trade
// up to limitBase atoms against the opposite side at slot nowSlot.
//
// Walk rules, in priority order down the book:
//   - expired orders are skipped;
//   - if a global order is reached and no ledger bundle was supplied,
//     the walk stops: nothing past it can be priced honestly;
//   - a global order whose backer's ledger deposit cannot cover the
//     prospective fill is skipped, only that order;
//   - conversion rounds in the taker's favor exactly when the resting
//     order is fully consumed;
//   - the walk halts after a partial consume.
//
// A book too thin for the limit returns the accumulated total with no
// separate signal.
func (v *View) ImpactQuoteAtoms(isBid bool, limitBase quantities.BaseAtoms,
	globalAccounts [2]*global.TradeAccounts, nowSlot uint32,
) (quantities.QuoteAtoms, error) {
	defer func(start time.Time) {
		metrics.ObserveImpactDuration("quote", time.Since(start))
	}(time.Now())

	book := v.side(!isBid)
	required := requiredLedger(isBid, globalAccounts)

	var total quantities.QuoteAtoms
	remaining := limitBase
	it := book.Ascend()
	for {
		_, order, ok := it.Next()
		if !ok {
			break
		}
		if order.IsExpired(nowSlot) {
			continue
		}
		if order.IsGlobal() && required == nil {
			break
		}

		matchedBase := order.NumBaseAtoms.Min(remaining)
		fullyConsumed := remaining >= order.NumBaseAtoms
		matchedQuote, err := order.Price.CheckedQuoteForBase(matchedBase, isBid != fullyConsumed)
		if err != nil {
			return 0, err
		}

		if v.isUnbackedGlobalOrder(order, isBid, required, matchedBase, matchedQuote) {
			continue
		}

		total, err = total.CheckedAdd(matchedQuote)
		if err != nil {
			return 0, err
		}
		if !fullyConsumed {
			break
		}
		remaining -= matchedBase
	}
	return total, nil
}

// ImpactBaseAtoms returns the base atoms a taker would move by spending
// up to limitQuote atoms against the opposite side at slot nowSlot. The
// walk rules match ImpactQuoteAtoms; the cap here lives on the quote
// axis, so each level first converts the remaining quote budget into a
// base ceiling at that level's price, rounding in the taker's favor.
func (v *View) ImpactBaseAtoms(isBid bool, limitQuote quantities.QuoteAtoms,
	globalAccounts [2]*global.TradeAccounts, nowSlot uint32,
) (quantities.BaseAtoms, error) {
	defer func(start time.Time) {
		metrics.ObserveImpactDuration("base", time.Since(start))
	}(time.Now())

	book := v.side(!isBid)
	required := requiredLedger(isBid, globalAccounts)

	var total quantities.BaseAtoms
	remaining := limitQuote
	it := book.Ascend()
	for {
		_, order, ok := it.Next()
		if !ok {
			break
		}
		if order.IsExpired(nowSlot) {
			continue
		}
		if order.IsGlobal() && required == nil {
			break
		}

		baseLimit, err := order.Price.CheckedBaseForQuote(remaining, !isBid)
		if err != nil {
			return 0, err
		}
		matchedBase := order.NumBaseAtoms.Min(baseLimit)
		fullyConsumed := baseLimit >= order.NumBaseAtoms
		matchedQuote, err := order.Price.CheckedQuoteForBase(matchedBase, isBid != fullyConsumed)
		if err != nil {
			return 0, err
		}

		if v.isUnbackedGlobalOrder(order, isBid, required, matchedBase, matchedQuote) {
			continue
		}

		total, err = total.CheckedAdd(matchedBase)
		if err != nil {
			return 0, err
		}
		if !fullyConsumed {
			break
		}
		remaining, err = remaining.CheckedSub(matchedQuote)
		if err != nil {
			return 0, err
		}
		// A full consume in base can exhaust the quote budget exactly.
		if remaining == 0 {
			break
		}
	}
	return total, nil
}

func requiredLedger(isBid bool, globalAccounts [2]*global.TradeAccounts) *global.TradeAccounts {
	if isBid {
		return globalAccounts[baseLedgerSlot]
	}
	return globalAccounts[quoteLedgerSlot]
}

// isUnbackedGlobalOrder reports whether a global resting order cannot
// deliver the prospective fill. The backer owes base atoms when the
// taker bids and quote atoms when the taker asks.
func (v *View) isUnbackedGlobalOrder(order *RestingOrder, isBid bool,
	required *global.TradeAccounts, matchedBase quantities.BaseAtoms, matchedQuote quantities.QuoteAtoms,
) bool {
	if !order.IsGlobal() {
		return false
	}
	if required == nil {
		return true
	}
	trader, err := v.TraderKeyByIndex(order.TraderIndex)
	if err != nil {
		return true
	}
	desired := quantities.GlobalAtoms(matchedBase)
	if !isBid {
		desired = quantities.GlobalAtoms(matchedQuote)
	}
	return !global.CanBackOrder(required, trader, desired)
}
