// (c) 2019-2020, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mempool

import (
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/seq-mempool/clock"
)

func mkTx(addr byte, nonce Nonce, tip uint64, maxGas uint64) *Transaction {
	var address Address
	address[19] = addr
	var hash Hash
	hash[0] = addr
	hash[31] = byte(nonce)
	return &Transaction{
		TxHash:          hash,
		ContractAddress: address,
		Nonce:           nonce,
		Tip:             tip,
		MaxL2GasPrice:   uint256.NewInt(maxGas),
	}
}

func TestTransactionPoolInsertAndLookup(t *testing.T) {
	clk := clock.NewMock(time.Unix(0, 0))
	pool := NewTransactionPool(clk)

	tx := mkTx(1, 5, 10, 100)
	require.NoError(t, pool.Insert(tx))

	got, ok := pool.GetByTxHash(tx.TxHash)
	require.True(t, ok)
	require.Equal(t, tx.Nonce, got.Nonce)

	ref, ok := pool.GetByAddressAndNonce(tx.ContractAddress, 5)
	require.True(t, ok)
	require.Equal(t, tx.TxHash, ref.TxHash)

	require.Equal(t, 1, pool.Capacity())
}

func TestTransactionPoolDuplicateHash(t *testing.T) {
	clk := clock.NewMock(time.Unix(0, 0))
	pool := NewTransactionPool(clk)

	tx := mkTx(1, 5, 10, 100)
	require.NoError(t, pool.Insert(tx))
	require.Error(t, pool.Insert(tx))
}

func TestTransactionPoolDuplicateNonce(t *testing.T) {
	clk := clock.NewMock(time.Unix(0, 0))
	pool := NewTransactionPool(clk)

	tx1 := mkTx(1, 5, 10, 100)
	require.NoError(t, pool.Insert(tx1))

	tx2 := mkTx(1, 5, 20, 200)
	tx2.TxHash[31] = 0xff
	var dup *DuplicateNonceError
	require.ErrorAs(t, pool.Insert(tx2), &dup)
}

func TestTransactionPoolRemoveUpToNonce(t *testing.T) {
	clk := clock.NewMock(time.Unix(0, 0))
	pool := NewTransactionPool(clk)

	require.NoError(t, pool.Insert(mkTx(1, 5, 10, 100)))
	require.NoError(t, pool.Insert(mkTx(1, 6, 10, 100)))
	require.NoError(t, pool.Insert(mkTx(1, 7, 10, 100)))

	var addr Address
	addr[19] = 1
	removed := pool.RemoveUpToNonce(addr, 7)
	require.Equal(t, 2, removed)

	_, ok := pool.GetByAddressAndNonce(addr, 6)
	require.False(t, ok)
	_, ok = pool.GetByAddressAndNonce(addr, 7)
	require.True(t, ok)
}

func TestTransactionPoolRemoveTxsOlderThanExcludesStaged(t *testing.T) {
	clk := clock.NewMock(time.Unix(0, 0))
	pool := NewTransactionPool(clk)

	stagedTx := mkTx(1, 5, 10, 100)
	otherTx := mkTx(2, 5, 10, 100)
	require.NoError(t, pool.Insert(stagedTx))
	require.NoError(t, pool.Insert(otherTx))

	clk.Advance(time.Hour)

	exclude := mapset.NewThreadUnsafeSet[Address](stagedTx.ContractAddress)
	removed := pool.RemoveTxsOlderThan(time.Minute, exclude)

	require.Len(t, removed, 1)
	require.Equal(t, otherTx.TxHash, removed[0].TxHash)

	_, ok := pool.GetByTxHash(stagedTx.TxHash)
	require.True(t, ok)
	_, ok = pool.GetByTxHash(otherTx.TxHash)
	require.False(t, ok)
}

func TestTransactionPoolAccountTxsSortedByNonce(t *testing.T) {
	clk := clock.NewMock(time.Unix(0, 0))
	pool := NewTransactionPool(clk)

	require.NoError(t, pool.Insert(mkTx(1, 7, 10, 100)))
	require.NoError(t, pool.Insert(mkTx(1, 5, 10, 100)))
	require.NoError(t, pool.Insert(mkTx(1, 6, 10, 100)))

	var addr Address
	addr[19] = 1
	refs := pool.AccountTxsSortedByNonce(addr)
	require.Len(t, refs, 3)
	require.Equal(t, Nonce(5), refs[0].Nonce)
	require.Equal(t, Nonce(6), refs[1].Nonce)
	require.Equal(t, Nonce(7), refs[2].Nonce)
}

func TestTransactionPoolGetNextEligibleTx(t *testing.T) {
	clk := clock.NewMock(time.Unix(0, 0))
	pool := NewTransactionPool(clk)
	require.NoError(t, pool.Insert(mkTx(1, 6, 10, 100)))

	var addr Address
	addr[19] = 1
	ref, ok, err := pool.GetNextEligibleTx(AccountState{Address: addr, Nonce: 5})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, Nonce(6), ref.Nonce)

	_, _, err = pool.GetNextEligibleTx(AccountState{Address: addr, Nonce: ^uint64(0)})
	var notSupported *FeatureNotSupportedError
	require.ErrorAs(t, err, &notSupported)
}
