// (c) 2019-2020, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mempool

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func mkRef(addr byte, nonce Nonce, tip uint64, maxGas uint64) TransactionReference {
	var address Address
	address[19] = addr
	var hash Hash
	hash[0] = addr
	hash[31] = byte(nonce)
	return TransactionReference{
		TxHash:          hash,
		ContractAddress: address,
		Nonce:           nonce,
		Tip:             tip,
		MaxL2GasPrice:   uint256.NewInt(maxGas),
	}
}

func TestTransactionQueueThresholdPartition(t *testing.T) {
	q := NewTransactionQueue(uint256.NewInt(100))

	q.Insert(mkRef(1, 5, 10, 50))  // below threshold -> pending
	q.Insert(mkRef(2, 5, 20, 200)) // at/above threshold -> ready

	require.Equal(t, 1, q.PriorityQueueLen())
	require.Equal(t, 1, q.PendingQueueLen())
}

func TestTransactionQueueReadyOrderingByTip(t *testing.T) {
	q := NewTransactionQueue(uint256.NewInt(0))

	q.Insert(mkRef(1, 5, 10, 200))
	q.Insert(mkRef(2, 5, 30, 200))
	q.Insert(mkRef(3, 5, 20, 200))

	var order []uint64
	q.IterOverReadyTxs(func(ref TransactionReference) bool {
		order = append(order, ref.Tip)
		return true
	})
	require.Equal(t, []uint64{30, 20, 10}, order)
}

func TestTransactionQueueInsertDuplicateAddressPanics(t *testing.T) {
	q := NewTransactionQueue(uint256.NewInt(0))
	q.Insert(mkRef(1, 5, 10, 200))
	require.Panics(t, func() {
		q.Insert(mkRef(1, 6, 10, 200))
	})
}

func TestTransactionQueueRemoveTxsIgnoresSuperseded(t *testing.T) {
	q := NewTransactionQueue(uint256.NewInt(0))
	original := mkRef(1, 5, 10, 200)
	q.Insert(original)

	q.Remove(original.ContractAddress)
	replacement := mkRef(1, 5, 20, 300)
	replacement.TxHash[30] = 0xaa
	q.Insert(replacement)

	// A stale reference to the original (e.g. from an expiry sweep that
	// raced with a replacement) must not evict the replacement.
	q.RemoveTxs([]TransactionReference{original})

	nonce, ok := q.GetNonce(replacement.ContractAddress)
	require.True(t, ok)
	require.Equal(t, Nonce(5), nonce)
}

func TestTransactionQueueUpdateGasPriceThreshold(t *testing.T) {
	q := NewTransactionQueue(uint256.NewInt(100))

	q.Insert(mkRef(1, 5, 10, 50))  // pending
	q.Insert(mkRef(2, 5, 20, 200)) // ready

	q.UpdateGasPriceThreshold(uint256.NewInt(30))
	require.Equal(t, 2, q.PriorityQueueLen())
	require.Equal(t, 0, q.PendingQueueLen())

	var order []uint64
	q.IterOverReadyTxs(func(ref TransactionReference) bool {
		order = append(order, ref.Tip)
		return true
	})
	require.Equal(t, []uint64{20, 10}, order)
}

func TestTransactionQueueThresholdRoundTrip(t *testing.T) {
	q := NewTransactionQueue(uint256.NewInt(100))
	q.Insert(mkRef(1, 5, 10, 50))
	q.Insert(mkRef(2, 5, 20, 200))

	before := q.PendingTxs()

	q.UpdateGasPriceThreshold(uint256.NewInt(30))
	q.UpdateGasPriceThreshold(uint256.NewInt(100))

	after := q.PendingTxs()
	require.Equal(t, before, after)
}

func TestTransactionQueuePopReadyChunk(t *testing.T) {
	q := NewTransactionQueue(uint256.NewInt(0))
	q.Insert(mkRef(1, 5, 30, 200))
	q.Insert(mkRef(2, 5, 20, 200))
	q.Insert(mkRef(3, 5, 10, 200))

	chunk := q.PopReadyChunk(2)
	require.Len(t, chunk, 2)
	require.Equal(t, uint64(30), chunk[0].Tip)
	require.Equal(t, uint64(20), chunk[1].Tip)
	require.Equal(t, 1, q.PriorityQueueLen())
}
