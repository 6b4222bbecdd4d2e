// (c) 2019-2020, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mempool implements the sequencer's transaction staging area: an
// in-memory store that admits transactions under strict per-account nonce
// ordering, ranks them by fee for block proposal, and reconciles itself
// against committed blocks.
//
// The package performs no internal locking and spawns no goroutines; every
// exported method runs synchronously and the embedder is responsible for
// serializing calls (see the Mempool type doc in mempool.go for details).
package mempool

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Address identifies a sending account (a contract address, in Starknet
// terms). Reusing go-ethereum's fixed-width type avoids reinventing hex
// encoding, JSON marshaling, and map-key semantics for what is ultimately
// the same 20-byte value.
type Address = common.Address

// Hash identifies a transaction by its unique hash.
type Hash = common.Hash

// Nonce is a per-account sequence number.
type Nonce = uint64

// Transaction is the full record the pool stores. It is the only type that
// carries the transaction body; everything else in the mempool works off
// lightweight TransactionReferences derived from it.
type Transaction struct {
	TxHash          Hash
	ContractAddress Address
	Nonce           Nonce
	Tip             uint64
	MaxL2GasPrice   *uint256.Int
}

// Reference extracts the fields the queue and state tracker need, without
// pinning them to the pool's only copy of the full transaction.
func (tx *Transaction) Reference() TransactionReference {
	return TransactionReference{
		TxHash:          tx.TxHash,
		ContractAddress: tx.ContractAddress,
		Nonce:           tx.Nonce,
		Tip:             tx.Tip,
		MaxL2GasPrice:   tx.MaxL2GasPrice,
	}
}

// TransactionReference is a lightweight copy of a Transaction's ordering
// fields, used everywhere except the pool's hash-keyed store.
type TransactionReference struct {
	TxHash          Hash
	ContractAddress Address
	Nonce           Nonce
	Tip             uint64
	MaxL2GasPrice   *uint256.Int
}

// AccountState is the nonce an upstream gateway currently attributes to an
// account, supplied alongside every add_tx call.
type AccountState struct {
	Address Address
	Nonce   Nonce
}

// AddTxArgs bundles the inputs to Mempool.AddTx.
type AddTxArgs struct {
	Tx           Transaction
	AccountState AccountState
}

// CommitBlockArgs bundles the inputs to Mempool.CommitBlock.
type CommitBlockArgs struct {
	// AddressToNonce is the next-expected nonce per address after the
	// committed block.
	AddressToNonce map[Address]Nonce
	// RejectedTxHashes are hashes the block builder excluded from the
	// proposal entirely (as opposed to transactions simply not yet built
	// upon, which are handled by the rewind path).
	RejectedTxHashes []Hash
}

// submissionStamp pairs a monotonic submission time with the hash it
// belongs to, giving the age index a total order even when two
// transactions land in the same clock tick.
type submissionStamp struct {
	at   time.Time
	hash Hash
}

func (s submissionStamp) less(other submissionStamp) bool {
	if !s.at.Equal(other.at) {
		return s.at.Before(other.at)
	}
	return hashLess(s.hash, other.hash)
}

func hashLess(a, b Hash) bool {
	return string(a.Bytes()) < string(b.Bytes())
}
