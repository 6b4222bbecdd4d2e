// (c) 2019-2020, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mempool

// MempoolState tracks, per address, the nonce the mempool believes is next
// due across three tiers: committed (the last block's outcome), staged (a
// nonce handed out by GetTxs but not yet committed), and tentative (the
// highest incoming nonce observed with no committed or staged value yet).
// Lookups consult staged, then committed, then tentative, in that order.
type MempoolState struct {
	committed map[Address]Nonce
	staged    map[Address]Nonce
	tentative map[Address]Nonce
}

// NewMempoolState creates an empty state tracker.
func NewMempoolState() *MempoolState {
	return &MempoolState{
		committed: make(map[Address]Nonce),
		staged:    make(map[Address]Nonce),
		tentative: make(map[Address]Nonce),
	}
}

// Get returns the nonce the mempool currently attributes to address,
// checking staged, then committed, then tentative.
func (s *MempoolState) Get(address Address) (Nonce, bool) {
	if n, ok := s.staged[address]; ok {
		return n, ok
	}
	if n, ok := s.committed[address]; ok {
		return n, ok
	}
	n, ok := s.tentative[address]
	return n, ok
}

// GetOrInsert returns the address's existing staged/committed nonce
// unchanged, or otherwise bumps (and returns) its tentative nonce to the max
// of its current value and incomingNonce.
func (s *MempoolState) GetOrInsert(address Address, incomingNonce Nonce) Nonce {
	if n, ok := s.staged[address]; ok {
		return n
	}
	if n, ok := s.committed[address]; ok {
		return n
	}
	if cur, ok := s.tentative[address]; ok && cur >= incomingNonce {
		return cur
	}
	s.tentative[address] = incomingNonce
	return incomingNonce
}

// Stage records that ref's nonce has been handed out by GetTxs, advancing
// address's staged nonce to ref.Nonce+1. Asserts that staging proceeds in
// strict nonce order with no gaps.
func (s *MempoolState) Stage(ref TransactionReference) {
	if cur, ok := s.staged[ref.ContractAddress]; ok {
		assertf(cur == ref.Nonce, "staged nonce gap for address %s: have %d, staging %d", ref.ContractAddress, cur, ref.Nonce)
	}
	s.staged[ref.ContractAddress] = ref.Nonce + 1
}

// Commit applies a committed block's resulting nonces. Every address that
// had a staged nonce but does not appear in addressToNonce did not actually
// get its staged transaction included and must be rewound; Commit returns
// that set of addresses. Tentative entries superseded by a committed value
// are dropped, and the staged map is cleared entirely (the block resolves
// every outstanding stage).
func (s *MempoolState) Commit(addressToNonce map[Address]Nonce) []Address {
	var rewind []Address
	for addr := range s.staged {
		if _, committed := addressToNonce[addr]; !committed {
			rewind = append(rewind, addr)
		}
	}

	for addr, nonce := range addressToNonce {
		delete(s.tentative, addr)
		s.committed[addr] = nonce
	}
	s.staged = make(map[Address]Nonce)

	return rewind
}

// ValidateIncomingTx returns a NonceTooOldError if ref's nonce is strictly
// below the address's currently-known nonce.
func (s *MempoolState) ValidateIncomingTx(ref TransactionReference) error {
	if known, ok := s.Get(ref.ContractAddress); ok && ref.Nonce < known {
		return &NonceTooOldError{Address: ref.ContractAddress, Nonce: ref.Nonce}
	}
	return nil
}

// ValidateCommitment asserts that a block's resulting nextNonce for address
// does not regress the address's previously committed nonce.
func (s *MempoolState) ValidateCommitment(address Address, nextNonce Nonce) {
	if prev, ok := s.committed[address]; ok {
		assertf(prev <= nextNonce, "committed nonce regression for address %s: had %d, got %d", address, prev, nextNonce)
	}
}
