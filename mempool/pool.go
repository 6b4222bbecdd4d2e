// (c) 2019-2020, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mempool

import (
	"math"
	"time"

	"github.com/google/btree"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/luxfi/seq-mempool/clock"
)

const btreeDegree = 32

// nonceNode is the per-address btree element, ordered by nonce.
type nonceNode struct {
	nonce Nonce
	ref   TransactionReference
}

func (n *nonceNode) Less(than btree.Item) bool {
	return n.nonce < than.(*nonceNode).nonce
}

// ageNode is the age-index btree element, ordered by (submission time, hash).
type ageNode struct {
	stamp submissionStamp
}

func (n *ageNode) Less(than btree.Item) bool {
	return n.stamp.less(than.(*ageNode).stamp)
}

// TransactionPool is the mempool's content store: every known transaction
// keyed by hash, a per-address index ordered by nonce, and a FIFO age
// index used for TTL eviction. It performs no locking of its own; callers
// serialize access (see the package doc).
type TransactionPool struct {
	clock clock.Clock

	byHash     map[Hash]*Transaction
	byAddress  map[Address]*btree.BTree // nonce -> *nonceNode
	submitted  map[Hash]time.Time
	age        *btree.BTree // ageNode, ordered by (submission time, hash)
}

// NewTransactionPool creates an empty pool that stamps submissions using clk.
func NewTransactionPool(clk clock.Clock) *TransactionPool {
	return &TransactionPool{
		clock:     clk,
		byHash:    make(map[Hash]*Transaction),
		byAddress: make(map[Address]*btree.BTree),
		submitted: make(map[Hash]time.Time),
		age:       btree.New(btreeDegree),
	}
}

// Insert adds tx to the pool, stamping its submission time with the pool's
// clock. Fails if the hash or the (address, nonce) pair is already known.
func (p *TransactionPool) Insert(tx *Transaction) error {
	if _, exists := p.byHash[tx.TxHash]; exists {
		return &DuplicateTransactionError{TxHash: tx.TxHash}
	}
	addrIndex := p.byAddress[tx.ContractAddress]
	if addrIndex == nil {
		addrIndex = btree.New(btreeDegree)
		p.byAddress[tx.ContractAddress] = addrIndex
	}
	probe := &nonceNode{nonce: tx.Nonce}
	if addrIndex.Get(probe) != nil {
		return &DuplicateNonceError{Address: tx.ContractAddress, Nonce: tx.Nonce}
	}

	now := p.clock.Now()
	p.byHash[tx.TxHash] = tx
	p.submitted[tx.TxHash] = now
	addrIndex.ReplaceOrInsert(&nonceNode{nonce: tx.Nonce, ref: tx.Reference()})
	p.age.ReplaceOrInsert(&ageNode{stamp: submissionStamp{at: now, hash: tx.TxHash}})
	return nil
}

// Remove deletes tx by hash from every index, returning the removed
// transaction. Fails with UnknownTransactionError if absent.
func (p *TransactionPool) Remove(hash Hash) (Transaction, error) {
	tx, ok := p.byHash[hash]
	if !ok {
		return Transaction{}, &UnknownTransactionError{TxHash: hash}
	}
	p.removeLocked(tx)
	return *tx, nil
}

// removeLocked removes tx from every index. tx must currently be present.
func (p *TransactionPool) removeLocked(tx *Transaction) {
	delete(p.byHash, tx.TxHash)
	at, ok := p.submitted[tx.TxHash]
	assertf(ok, "submission time missing for pooled tx %s", tx.TxHash)
	delete(p.submitted, tx.TxHash)
	p.age.Delete(&ageNode{stamp: submissionStamp{at: at, hash: tx.TxHash}})

	addrIndex := p.byAddress[tx.ContractAddress]
	assertf(addrIndex != nil, "address index missing for pooled tx %s", tx.TxHash)
	addrIndex.Delete(&nonceNode{nonce: tx.Nonce})
	if addrIndex.Len() == 0 {
		delete(p.byAddress, tx.ContractAddress)
	}
}

// RemoveUpToNonce removes every transaction of address with nonce strictly
// less than nonce, returning the count removed.
func (p *TransactionPool) RemoveUpToNonce(address Address, nonce Nonce) int {
	addrIndex := p.byAddress[address]
	if addrIndex == nil {
		return 0
	}
	var stale []*nonceNode
	addrIndex.Ascend(func(i btree.Item) bool {
		n := i.(*nonceNode)
		if n.nonce >= nonce {
			return false
		}
		stale = append(stale, n)
		return true
	})
	for _, n := range stale {
		tx := p.byHash[n.ref.TxHash]
		assertf(tx != nil, "pool hash map missing entry for indexed tx %s", n.ref.TxHash)
		p.removeLocked(tx)
	}
	return len(stale)
}

// RemoveTxsOlderThan removes every transaction whose submission time is
// older than clock.Now()-ttl, except those belonging to an address present
// in exclude (accounts with a block in flight). Returns references to the
// removed transactions.
func (p *TransactionPool) RemoveTxsOlderThan(ttl time.Duration, exclude mapset.Set[Address]) []TransactionReference {
	cutoff := p.clock.Now().Add(-ttl)
	var stale []*ageNode
	p.age.Ascend(func(i btree.Item) bool {
		n := i.(*ageNode)
		if !n.stamp.at.Before(cutoff) {
			return false
		}
		stale = append(stale, n)
		return true
	})

	var removed []TransactionReference
	for _, n := range stale {
		tx := p.byHash[n.stamp.hash]
		assertf(tx != nil, "age index missing pool entry for tx %s", n.stamp.hash)
		if exclude != nil && exclude.Contains(tx.ContractAddress) {
			continue
		}
		ref := tx.Reference()
		p.removeLocked(tx)
		removed = append(removed, ref)
	}
	return removed
}

// GetByTxHash looks up a transaction by hash.
func (p *TransactionPool) GetByTxHash(hash Hash) (Transaction, bool) {
	tx, ok := p.byHash[hash]
	if !ok {
		return Transaction{}, false
	}
	return *tx, true
}

// GetByAddressAndNonce looks up the transaction an address has at a
// specific nonce.
func (p *TransactionPool) GetByAddressAndNonce(address Address, nonce Nonce) (TransactionReference, bool) {
	addrIndex := p.byAddress[address]
	if addrIndex == nil {
		return TransactionReference{}, false
	}
	item := addrIndex.Get(&nonceNode{nonce: nonce})
	if item == nil {
		return TransactionReference{}, false
	}
	return item.(*nonceNode).ref, true
}

// GetNextEligibleTx returns the transaction of accountState.Address whose
// nonce is accountState.Nonce+1, if any. Fails with
// FeatureNotSupportedError if incrementing the nonce overflows.
func (p *TransactionPool) GetNextEligibleTx(accountState AccountState) (TransactionReference, bool, error) {
	if accountState.Nonce == math.MaxUint64 {
		return TransactionReference{}, false, &FeatureNotSupportedError{Reason: "nonce increment overflow"}
	}
	ref, ok := p.GetByAddressAndNonce(accountState.Address, accountState.Nonce+1)
	return ref, ok, nil
}

// AccountTxsSortedByNonce returns address's transactions in ascending nonce
// order.
func (p *TransactionPool) AccountTxsSortedByNonce(address Address) []TransactionReference {
	addrIndex := p.byAddress[address]
	if addrIndex == nil {
		return nil
	}
	refs := make([]TransactionReference, 0, addrIndex.Len())
	addrIndex.Ascend(func(i btree.Item) bool {
		refs = append(refs, i.(*nonceNode).ref)
		return true
	})
	return refs
}

// GetSubmissionTime returns when hash was inserted into the pool.
func (p *TransactionPool) GetSubmissionTime(hash Hash) (time.Time, bool) {
	t, ok := p.submitted[hash]
	return t, ok
}

// Capacity returns the total number of transactions currently stored.
func (p *TransactionPool) Capacity() int {
	return len(p.byHash)
}

// ContainsAddress reports whether the pool holds any transaction from
// address.
func (p *TransactionPool) ContainsAddress(address Address) bool {
	addrIndex, ok := p.byAddress[address]
	return ok && addrIndex.Len() > 0
}
