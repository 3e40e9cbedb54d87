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

package global_test

import (
	"testing"

	"code.vegaprotocol.io/flatbook/global"
	"code.vegaprotocol.io/flatbook/libs/crypto"
	"code.vegaprotocol.io/flatbook/loader"
	"code.vegaprotocol.io/flatbook/quantities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T, blocks int) (*global.View, loader.Config, []byte) {
	t.Helper()
	cfg := loader.NewConfig(crypto.RandomKey())
	buf := make([]byte, global.HeaderSize+blocks*global.BlockSize)
	require.NoError(t, global.Initialize(buf[:global.HeaderSize], crypto.RandomKey(), cfg))
	v, err := global.Load(buf, cfg)
	require.NoError(t, err)
	return v, cfg, buf
}

func TestLedgerInitialize(t *testing.T) {
	t.Run("empty ledger loads back", func(t *testing.T) {
		v, _, _ := newTestLedger(t, 4)
		assert.Equal(t, uint16(0), v.NumSeatsClaimed())
		assert.Equal(t, quantities.GlobalAtoms(0), v.GetBalanceAtoms(crypto.RandomKey()))
	})

	t.Run("rejects dirty buffer", func(t *testing.T) {
		cfg := loader.NewConfig(crypto.RandomKey())
		buf := make([]byte, global.HeaderSize)
		buf[50] = 1
		err := global.Initialize(buf, crypto.RandomKey(), cfg)
		assert.ErrorIs(t, err, loader.ErrNotZeroed)
	})

	t.Run("load rejects foreign discriminant", func(t *testing.T) {
		_, _, buf := newTestLedger(t, 2)
		_, err := global.Load(buf, loader.NewConfig(crypto.RandomKey()))
		assert.ErrorIs(t, err, global.ErrWrongDiscriminant)
	})

	t.Run("vault and bump are persisted", func(t *testing.T) {
		cfg := loader.NewConfig(crypto.RandomKey())
		mint := crypto.RandomKey()
		buf := make([]byte, global.HeaderSize)
		require.NoError(t, global.Initialize(buf, mint, cfg))
		v, err := global.Load(buf, cfg)
		require.NoError(t, err)

		wantVault, _ := loader.DeriveGlobalVaultAddress(cfg, mint)
		assert.Equal(t, mint, v.Mint())
		assert.Equal(t, wantVault, v.Vault())
	})
}

func TestLedgerTraders(t *testing.T) {
	t.Run("add and read balance", func(t *testing.T) {
		v, _, _ := newTestLedger(t, 8)
		trader := crypto.RandomKey()
		evicted, err := v.AddTrader(trader, 100)
		require.NoError(t, err)
		assert.True(t, evicted.IsZero())
		assert.Equal(t, uint16(1), v.NumSeatsClaimed())
		assert.Equal(t, quantities.GlobalAtoms(100), v.GetBalanceAtoms(trader))
	})

	t.Run("double add fails", func(t *testing.T) {
		v, _, _ := newTestLedger(t, 8)
		trader := crypto.RandomKey()
		_, err := v.AddTrader(trader, 0)
		require.NoError(t, err)
		_, err = v.AddTrader(trader, 0)
		assert.ErrorIs(t, err, global.ErrTraderExists)
	})

	t.Run("deposit and withdraw reposition the record", func(t *testing.T) {
		v, _, _ := newTestLedger(t, 16)
		a, b := crypto.RandomKey(), crypto.RandomKey()
		_, err := v.AddTrader(a, 10)
		require.NoError(t, err)
		_, err = v.AddTrader(b, 20)
		require.NoError(t, err)

		require.NoError(t, v.Deposit(a, 100))
		assert.Equal(t, quantities.GlobalAtoms(110), v.GetBalanceAtoms(a))
		require.NoError(t, v.Withdraw(a, 105))
		assert.Equal(t, quantities.GlobalAtoms(5), v.GetBalanceAtoms(a))
		assert.Equal(t, quantities.GlobalAtoms(20), v.GetBalanceAtoms(b))
	})

	t.Run("withdraw past balance fails", func(t *testing.T) {
		v, _, _ := newTestLedger(t, 8)
		trader := crypto.RandomKey()
		_, err := v.AddTrader(trader, 10)
		require.NoError(t, err)
		assert.ErrorIs(t, v.Withdraw(trader, 11), quantities.ErrOverflow)
	})

	t.Run("mutations on unknown trader fail", func(t *testing.T) {
		v, _, _ := newTestLedger(t, 8)
		assert.ErrorIs(t, v.Deposit(crypto.RandomKey(), 1), global.ErrUnknownTrader)
		assert.ErrorIs(t, v.Withdraw(crypto.RandomKey(), 1), global.ErrUnknownTrader)
	})

	t.Run("state survives flush and reload", func(t *testing.T) {
		v, cfg, buf := newTestLedger(t, 8)
		trader := crypto.RandomKey()
		_, err := v.AddTrader(trader, 77)
		require.NoError(t, err)
		v.Flush()

		v2, err := global.Load(buf, cfg)
		require.NoError(t, err)
		assert.Equal(t, quantities.GlobalAtoms(77), v2.GetBalanceAtoms(trader))
		assert.Equal(t, uint16(1), v2.NumSeatsClaimed())
	})
}

func TestLedgerEviction(t *testing.T) {
	fill := func(t *testing.T, v *global.View) (weakest crypto.PublicKey) {
		t.Helper()
		for i := 0; i < global.MaxGlobalSeats; i++ {
			trader := crypto.RandomKey()
			// Deposits 10.. so the first trader holds the smallest.
			_, err := v.AddTrader(trader, quantities.GlobalAtoms(10+i))
			require.NoError(t, err)
			if i == 0 {
				weakest = trader
			}
		}
		return weakest
	}

	t.Run("claim past capacity evicts the weakest holder", func(t *testing.T) {
		v, _, _ := newTestLedger(t, 2*global.MaxGlobalSeats+4)
		weakest := fill(t, v)

		newcomer := crypto.RandomKey()
		evicted, err := v.AddTrader(newcomer, 5000)
		require.NoError(t, err)
		assert.Equal(t, weakest, evicted)
		assert.Equal(t, uint16(global.MaxGlobalSeats), v.NumSeatsClaimed())
		assert.Equal(t, quantities.GlobalAtoms(5000), v.GetBalanceAtoms(newcomer))
		// The evicted trader soft-fails to zero, no error.
		assert.Equal(t, quantities.GlobalAtoms(0), v.GetBalanceAtoms(weakest))
	})

	t.Run("claim that does not out-rank the weakest fails", func(t *testing.T) {
		v, _, _ := newTestLedger(t, 2*global.MaxGlobalSeats+4)
		fill(t, v)

		_, err := v.AddTrader(crypto.RandomKey(), 10)
		assert.ErrorIs(t, err, global.ErrSeatsExhausted)
		assert.Equal(t, uint16(global.MaxGlobalSeats), v.NumSeatsClaimed())
	})

	t.Run("withdrawals move the eviction candidate", func(t *testing.T) {
		v, _, _ := newTestLedger(t, 16)
		rich, poor := crypto.RandomKey(), crypto.RandomKey()
		_, err := v.AddTrader(rich, 1000)
		require.NoError(t, err)
		_, err = v.AddTrader(poor, 500)
		require.NoError(t, err)

		// After the withdrawal rich is the smallest holder.
		require.NoError(t, v.Withdraw(rich, 900))
		assert.Equal(t, quantities.GlobalAtoms(100), v.GetBalanceAtoms(rich))
		assert.Equal(t, quantities.GlobalAtoms(500), v.GetBalanceAtoms(poor))
	})
}

func TestCanBackOrder(t *testing.T) {
	setup := func(t *testing.T, balance uint64) (*global.TradeAccounts, crypto.PublicKey, loader.Config) {
		t.Helper()
		cfg := loader.NewConfig(crypto.RandomKey())
		trader := crypto.RandomKey()
		buf := make([]byte, global.HeaderSize+8*global.BlockSize)
		require.NoError(t, global.Initialize(buf[:global.HeaderSize], crypto.RandomKey(), cfg))
		v, err := global.Load(buf, cfg)
		require.NoError(t, err)
		_, err = v.AddTrader(trader, quantities.GlobalAtoms(balance))
		require.NoError(t, err)
		v.Flush()
		acc := loader.NewAccount(crypto.RandomKey(), cfg.ProgramID, buf)
		return global.NewTradeAccounts(acc, cfg), trader, cfg
	}

	t.Run("nil bundle refuses", func(t *testing.T) {
		assert.False(t, global.CanBackOrder(nil, crypto.RandomKey(), 1))
	})

	t.Run("sufficient balance backs", func(t *testing.T) {
		accounts, trader, _ := setup(t, 100)
		assert.True(t, global.CanBackOrder(accounts, trader, 100))
		assert.False(t, global.CanBackOrder(accounts, trader, 101))
	})

	t.Run("unknown trader refuses", func(t *testing.T) {
		accounts, _, _ := setup(t, 100)
		assert.False(t, global.CanBackOrder(accounts, crypto.RandomKey(), 1))
	})

	t.Run("borrowed account refuses without blocking", func(t *testing.T) {
		accounts, trader, _ := setup(t, 100)
		_, release, err := accounts.Global.BorrowMut()
		require.NoError(t, err)
		assert.False(t, global.CanBackOrder(accounts, trader, 1))
		release()
		assert.True(t, global.CanBackOrder(accounts, trader, 1))
	})
}

func TestLoadFromAccount(t *testing.T) {
	cfg := loader.NewConfig(crypto.RandomKey())
	buf := make([]byte, global.HeaderSize+4*global.BlockSize)
	require.NoError(t, global.Initialize(buf[:global.HeaderSize], crypto.RandomKey(), cfg))

	t.Run("wrong owner fails", func(t *testing.T) {
		acc := loader.NewAccount(crypto.RandomKey(), crypto.RandomKey(), buf)
		_, _, err := global.LoadFromAccount(acc, cfg)
		assert.ErrorIs(t, err, loader.ErrWrongOwner)
	})

	t.Run("borrow is exclusive until released", func(t *testing.T) {
		acc := loader.NewAccount(crypto.RandomKey(), cfg.ProgramID, buf)
		_, release, err := global.LoadFromAccount(acc, cfg)
		require.NoError(t, err)

		_, _, err = global.LoadFromAccount(acc, cfg)
		assert.ErrorIs(t, err, loader.ErrBorrowed)

		release()
		_, release2, err := global.LoadFromAccount(acc, cfg)
		require.NoError(t, err)
		release2()
	})
}
