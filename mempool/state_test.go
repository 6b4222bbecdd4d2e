// (c) 2019-2020, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mempool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMempoolStateGetOrInsertTentative(t *testing.T) {
	s := NewMempoolState()
	var addr Address
	addr[19] = 1

	n := s.GetOrInsert(addr, 5)
	require.Equal(t, Nonce(5), n)

	// A lower incoming nonce does not regress the tentative value.
	n = s.GetOrInsert(addr, 3)
	require.Equal(t, Nonce(5), n)

	n = s.GetOrInsert(addr, 9)
	require.Equal(t, Nonce(9), n)
}

func TestMempoolStateStageRequiresStrictOrder(t *testing.T) {
	s := NewMempoolState()
	ref := mkRef(1, 5, 10, 100)

	s.Stage(ref)
	nonce, ok := s.Get(ref.ContractAddress)
	require.True(t, ok)
	require.Equal(t, Nonce(6), nonce)

	require.Panics(t, func() {
		s.Stage(mkRef(1, 9, 10, 100))
	})
}

func TestMempoolStateCommitRewindsUncommittedStaged(t *testing.T) {
	s := NewMempoolState()
	refA := mkRef(1, 5, 10, 100)
	refB := mkRef(2, 5, 10, 100)
	s.Stage(refA)
	s.Stage(refB)

	rewound := s.Commit(map[Address]Nonce{refA.ContractAddress: 6})
	require.Equal(t, []Address{refB.ContractAddress}, rewound)

	nonce, ok := s.Get(refA.ContractAddress)
	require.True(t, ok)
	require.Equal(t, Nonce(6), nonce)

	// staged is cleared entirely after commit.
	_, staged := s.staged[refB.ContractAddress]
	require.False(t, staged)
}

func TestMempoolStateValidateIncomingTxNonceTooOld(t *testing.T) {
	s := NewMempoolState()
	var addr Address
	addr[19] = 1
	s.committed[addr] = 5

	err := s.ValidateIncomingTx(mkRef(1, 4, 10, 100))
	var tooOld *NonceTooOldError
	require.ErrorAs(t, err, &tooOld)

	err = s.ValidateIncomingTx(mkRef(1, 5, 10, 100))
	require.NoError(t, err)
}

func TestMempoolStateValidateCommitmentAssertsMonotonic(t *testing.T) {
	s := NewMempoolState()
	var addr Address
	addr[19] = 1
	s.committed[addr] = 10

	require.NotPanics(t, func() { s.ValidateCommitment(addr, 10) })
	require.NotPanics(t, func() { s.ValidateCommitment(addr, 11) })
	require.Panics(t, func() { s.ValidateCommitment(addr, 9) })
}
