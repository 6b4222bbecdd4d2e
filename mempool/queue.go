// (c) 2019-2020, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mempool

import (
	"github.com/google/btree"
	"github.com/holiman/uint256"
)

// readyNode orders the ready set by tip descending, hash ascending. Less is
// defined inverted (greater-tip-first) so that an ascending btree traversal
// yields highest-priority transactions first.
type readyNode struct {
	ref TransactionReference
}

func (n *readyNode) Less(than btree.Item) bool {
	o := than.(*readyNode)
	if n.ref.Tip != o.ref.Tip {
		return n.ref.Tip > o.ref.Tip
	}
	return hashLess(n.ref.TxHash, o.ref.TxHash)
}

// pendingNode orders the pending set by max L2 gas price descending, hash
// ascending, with the same inverted-Less trick as readyNode.
type pendingNode struct {
	ref TransactionReference
}

func (n *pendingNode) Less(than btree.Item) bool {
	o := than.(*pendingNode)
	cmp := n.ref.MaxL2GasPrice.Cmp(o.ref.MaxL2GasPrice)
	if cmp != 0 {
		return cmp > 0
	}
	return hashLess(n.ref.TxHash, o.ref.TxHash)
}

// TransactionQueue holds, at most, one candidate transaction per address:
// either in the ready set (eligible for immediate inclusion, max L2 gas
// price >= threshold) or the pending set (below threshold, ordered by max gas price
// for when the threshold drops). It performs no locking of its own.
type TransactionQueue struct {
	gasPriceThreshold *uint256.Int

	ready   *btree.BTree
	pending *btree.BTree

	readyByAddr   map[Address]TransactionReference
	pendingByAddr map[Address]TransactionReference
}

// NewTransactionQueue creates an empty queue with the given initial gas
// price threshold.
func NewTransactionQueue(threshold *uint256.Int) *TransactionQueue {
	return &TransactionQueue{
		gasPriceThreshold: threshold,
		ready:             btree.New(btreeDegree),
		pending:           btree.New(btreeDegree),
		readyByAddr:       make(map[Address]TransactionReference),
		pendingByAddr:     make(map[Address]TransactionReference),
	}
}

// Insert places ref into the ready or pending set depending on whether its
// max L2 gas price meets the current threshold. It is a programmer error to
// insert for an address already queued; callers must Remove first.
func (q *TransactionQueue) Insert(ref TransactionReference) {
	_, inReady := q.readyByAddr[ref.ContractAddress]
	_, inPending := q.pendingByAddr[ref.ContractAddress]
	assertf(!inReady && !inPending, "queue already holds an entry for address %s", ref.ContractAddress)

	if ref.MaxL2GasPrice.Cmp(q.gasPriceThreshold) >= 0 {
		q.ready.ReplaceOrInsert(&readyNode{ref: ref})
		q.readyByAddr[ref.ContractAddress] = ref
		return
	}
	q.pending.ReplaceOrInsert(&pendingNode{ref: ref})
	q.pendingByAddr[ref.ContractAddress] = ref
}

// Remove drops address's queued entry, if any, from whichever set it is in.
// Reports whether an entry was removed.
func (q *TransactionQueue) Remove(address Address) bool {
	if ref, ok := q.readyByAddr[address]; ok {
		q.ready.Delete(&readyNode{ref: ref})
		delete(q.readyByAddr, address)
		return true
	}
	if ref, ok := q.pendingByAddr[address]; ok {
		q.pending.Delete(&pendingNode{ref: ref})
		delete(q.pendingByAddr, address)
		return true
	}
	return false
}

// RemoveTxs removes every ref's address from the queue, provided the
// currently-queued entry for that address matches ref's hash. Entries that
// have since been replaced by a newer transaction are left untouched.
func (q *TransactionQueue) RemoveTxs(refs []TransactionReference) {
	for _, ref := range refs {
		if cur, ok := q.readyByAddr[ref.ContractAddress]; ok && cur.TxHash == ref.TxHash {
			q.ready.Delete(&readyNode{ref: cur})
			delete(q.readyByAddr, ref.ContractAddress)
			continue
		}
		if cur, ok := q.pendingByAddr[ref.ContractAddress]; ok && cur.TxHash == ref.TxHash {
			q.pending.Delete(&pendingNode{ref: cur})
			delete(q.pendingByAddr, ref.ContractAddress)
		}
	}
}

// GetNonce returns the nonce of address's currently-queued transaction, if
// any.
func (q *TransactionQueue) GetNonce(address Address) (Nonce, bool) {
	if ref, ok := q.readyByAddr[address]; ok {
		return ref.Nonce, true
	}
	if ref, ok := q.pendingByAddr[address]; ok {
		return ref.Nonce, true
	}
	return 0, false
}

// HasReadyTxs reports whether any transaction is ready for inclusion.
func (q *TransactionQueue) HasReadyTxs() bool {
	return q.ready.Len() > 0
}

// IterOverReadyTxs walks the ready set in priority order (highest tip
// first), stopping early if yield returns false.
func (q *TransactionQueue) IterOverReadyTxs(yield func(TransactionReference) bool) {
	q.ready.Ascend(func(i btree.Item) bool {
		return yield(i.(*readyNode).ref)
	})
}

// PopReadyChunk removes and returns up to n highest-priority ready
// transactions.
func (q *TransactionQueue) PopReadyChunk(n int) []TransactionReference {
	if n <= 0 {
		return nil
	}
	refs := make([]TransactionReference, 0, n)
	var toDelete []btree.Item
	q.ready.Ascend(func(i btree.Item) bool {
		refs = append(refs, i.(*readyNode).ref)
		toDelete = append(toDelete, i)
		return len(refs) < n
	})
	for _, item := range toDelete {
		q.ready.Delete(item)
		ref := item.(*readyNode).ref
		delete(q.readyByAddr, ref.ContractAddress)
	}
	return refs
}

// UpdateGasPriceThreshold moves every entry crossing newThreshold between
// the ready and pending sets, then installs the new threshold.
func (q *TransactionQueue) UpdateGasPriceThreshold(newThreshold *uint256.Int) {
	var toPending []TransactionReference
	q.ready.Ascend(func(i btree.Item) bool {
		ref := i.(*readyNode).ref
		if ref.MaxL2GasPrice.Cmp(newThreshold) < 0 {
			toPending = append(toPending, ref)
		}
		return true
	})
	for _, ref := range toPending {
		q.ready.Delete(&readyNode{ref: ref})
		delete(q.readyByAddr, ref.ContractAddress)
		q.pending.ReplaceOrInsert(&pendingNode{ref: ref})
		q.pendingByAddr[ref.ContractAddress] = ref
	}

	var toReady []TransactionReference
	q.pending.Ascend(func(i btree.Item) bool {
		ref := i.(*pendingNode).ref
		if ref.MaxL2GasPrice.Cmp(newThreshold) >= 0 {
			toReady = append(toReady, ref)
		}
		return true
	})
	for _, ref := range toReady {
		q.pending.Delete(&pendingNode{ref: ref})
		delete(q.pendingByAddr, ref.ContractAddress)
		q.ready.ReplaceOrInsert(&readyNode{ref: ref})
		q.readyByAddr[ref.ContractAddress] = ref
	}

	q.gasPriceThreshold = newThreshold
}

// PriorityQueueLen returns the number of ready transactions.
func (q *TransactionQueue) PriorityQueueLen() int { return q.ready.Len() }

// PendingQueueLen returns the number of pending transactions.
func (q *TransactionQueue) PendingQueueLen() int { return q.pending.Len() }

// PendingTxs returns every pending transaction, ordered by max gas price
// descending.
func (q *TransactionQueue) PendingTxs() []TransactionReference {
	refs := make([]TransactionReference, 0, q.pending.Len())
	q.pending.Ascend(func(i btree.Item) bool {
		refs = append(refs, i.(*pendingNode).ref)
		return true
	})
	return refs
}
