// (c) 2019-2020, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mempool

import "fmt"

// NonceTooOldError is returned when a transaction's nonce is strictly below
// the account's known next-expected nonce. Never retried by the mempool.
type NonceTooOldError struct {
	Address Address
	Nonce   Nonce
}

func (e *NonceTooOldError) Error() string {
	return fmt.Sprintf("nonce too old: address %s nonce %d", e.Address, e.Nonce)
}

// DuplicateNonceError is returned when a different transaction already
// occupies (address, nonce) and fee escalation either is disabled or
// declined to replace it.
type DuplicateNonceError struct {
	Address Address
	Nonce   Nonce
}

func (e *DuplicateNonceError) Error() string {
	return fmt.Sprintf("duplicate nonce: address %s nonce %d", e.Address, e.Nonce)
}

// DuplicateTransactionError is returned when the exact same hash is already
// present in the pool.
type DuplicateTransactionError struct {
	TxHash Hash
}

func (e *DuplicateTransactionError) Error() string {
	return fmt.Sprintf("duplicate transaction: hash %s", e.TxHash)
}

// FeatureNotSupportedError is returned when nonce arithmetic would overflow
// the field size. It should not occur in practice.
type FeatureNotSupportedError struct {
	Reason string
}

func (e *FeatureNotSupportedError) Error() string {
	return fmt.Sprintf("feature not supported: %s", e.Reason)
}

// UnknownTransactionError is returned by TransactionPool.Remove when the
// hash isn't present.
type UnknownTransactionError struct {
	TxHash Hash
}

func (e *UnknownTransactionError) Error() string {
	return fmt.Sprintf("unknown transaction: hash %s", e.TxHash)
}

// assertf panics with a formatted message. Used exclusively for invariant
// violations the spec treats as coordination bugs (a staged-nonce gap, a
// committed nonce regressing, a rewound address missing from the pool) —
// never for client-visible errors, which are returned as values instead.
func assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf("mempool: invariant violated: "+format, args...))
	}
}
