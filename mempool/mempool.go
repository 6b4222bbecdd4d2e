// (c) 2019-2020, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mempool

import (
	"math"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/uint256"

	"github.com/luxfi/seq-mempool/clock"
	"github.com/luxfi/seq-mempool/config"
	"github.com/luxfi/seq-mempool/log"
	"github.com/luxfi/seq-mempool/metrics"
)

// maxUint128 is the simulated overflow bound for max_l2_gas_price
// arithmetic: uint256.Int has no native 128-bit type, so escalation checks
// compare against this ceiling by hand.
var maxUint128 = new(uint256.Int).Sub(
	new(uint256.Int).Lsh(uint256.NewInt(1), 128),
	uint256.NewInt(1),
)

// Mempool is the sequencer's transaction staging area. It is a
// single-owner mutable object: add_tx, get_txs, commit_block, and
// update_gas_price require exclusive access; iter, length queries, and
// contains_tx_from require only shared access. The embedder supplies that
// serialization — the mempool performs no locking and spawns no
// goroutines of its own.
type Mempool struct {
	cfg     config.Config
	clk     clock.Clock
	pool    *TransactionPool
	queue   *TransactionQueue
	state   *MempoolState
	metrics metrics.Sink
	log     log.Logger
}

// New constructs an empty Mempool. gasPriceThreshold seeds the queue's
// initial ready/pending split.
func New(cfg config.Config, clk clock.Clock, gasPriceThreshold *uint256.Int, sink metrics.Sink, logger log.Logger) *Mempool {
	if sink == nil {
		sink = metrics.Noop{}
	}
	if logger == nil {
		logger = log.Root()
	}
	return &Mempool{
		cfg:     cfg,
		clk:     clk,
		pool:    NewTransactionPool(clk),
		queue:   NewTransactionQueue(gasPriceThreshold),
		state:   NewMempoolState(),
		metrics: sink,
		log:     logger,
	}
}

// AddTx admits a single transaction, per 4.5.1: expire stale entries,
// validate the incoming nonce, resolve any fee-escalation collision, insert
// into the pool, and promote into the queue if its nonce is immediately
// next.
func (m *Mempool) AddTx(args AddTxArgs) error {
	m.metrics.IncCounter(metrics.TransactionReceived)
	m.removeExpiredTxs()

	tx := args.Tx
	ref := tx.Reference()

	if err := m.state.ValidateIncomingTx(ref); err != nil {
		m.log.Debug("rejected incoming transaction", "hash", ref.TxHash, "reason", err)
		return err
	}

	if err := m.handleFeeEscalation(tx); err != nil {
		m.log.Debug("rejected incoming transaction", "hash", ref.TxHash, "reason", err)
		return err
	}

	if err := m.pool.Insert(&tx); err != nil {
		m.log.Debug("rejected incoming transaction", "hash", ref.TxHash, "reason", err)
		return err
	}
	m.metrics.IncCounter(metrics.TransactionInserted)
	m.log.Trace("inserted transaction into pool", "hash", ref.TxHash, "address", ref.ContractAddress, "nonce", ref.Nonce)

	stored := m.state.GetOrInsert(args.AccountState.Address, args.AccountState.Nonce)
	if ref.Nonce == stored {
		m.queue.Remove(ref.ContractAddress)
		m.queue.Insert(ref)
	}
	m.refreshQueueGauges()
	return nil
}

// handleFeeEscalation resolves a collision at (tx.ContractAddress,
// tx.Nonce), per 4.5.5. It is a no-op if no existing transaction occupies
// that slot.
func (m *Mempool) handleFeeEscalation(tx Transaction) error {
	existing, found := m.pool.GetByAddressAndNonce(tx.ContractAddress, tx.Nonce)
	if !found {
		return nil
	}
	if !m.cfg.EnableFeeEscalation {
		return &DuplicateNonceError{Address: tx.ContractAddress, Nonce: tx.Nonce}
	}

	p := uint64(m.cfg.FeeEscalationPercentage)
	tipOK, overflow := tipMeetsEscalation(existing.Tip, tx.Tip, p)
	if overflow {
		return &DuplicateNonceError{Address: tx.ContractAddress, Nonce: tx.Nonce}
	}
	priceOK, overflow := gasPriceMeetsEscalation(existing.MaxL2GasPrice, tx.MaxL2GasPrice, p)
	if overflow {
		return &DuplicateNonceError{Address: tx.ContractAddress, Nonce: tx.Nonce}
	}
	if !tipOK || !priceOK {
		return &DuplicateNonceError{Address: tx.ContractAddress, Nonce: tx.Nonce}
	}

	m.queue.RemoveTxs([]TransactionReference{existing})
	if _, err := m.pool.Remove(existing.TxHash); err != nil {
		assertf(false, "fee escalation: existing reference %s vanished from pool", existing.TxHash)
	}
	return nil
}

// tipMeetsEscalation reports whether incoming >= existing + floor(existing*p/100),
// per spec.md 4.5.5 and the original's increased_enough, which promotes
// both operands to a 128-bit-wide type before multiplying so that a tip
// near the top of the uint64 range doesn't spuriously overflow the check.
func tipMeetsEscalation(existing, incoming, p uint64) (ok bool, overflow bool) {
	return wideMeetsEscalation(uint256.NewInt(existing), uint256.NewInt(incoming), p)
}

// gasPriceMeetsEscalation is tipMeetsEscalation's 128-bit-bounded
// equivalent for max_l2_gas_price, whose operands are already uint256.Int.
func gasPriceMeetsEscalation(existing, incoming *uint256.Int, p uint64) (ok bool, overflow bool) {
	return wideMeetsEscalation(existing, incoming, p)
}

// wideMeetsEscalation computes existing + floor(existing*p/100) in 128-bit
// space and compares incoming against it, reporting overflow if either the
// multiplication, the addition, or the resulting bound exceeds the
// simulated 128-bit range.
func wideMeetsEscalation(existing, incoming *uint256.Int, p uint64) (ok bool, overflow bool) {
	product, mulOverflow := new(uint256.Int).MulOverflow(existing, uint256.NewInt(p))
	if mulOverflow || product.Cmp(maxUint128) > 0 {
		return false, true
	}
	bump := new(uint256.Int).Div(product, uint256.NewInt(100))
	required, addOverflow := new(uint256.Int).AddOverflow(existing, bump)
	if addOverflow || required.Cmp(maxUint128) > 0 {
		return false, true
	}
	return incoming.Cmp(required) >= 0, false
}

// GetTxs pops up to n ready transactions for block proposal, per 4.5.2.
// Returned transactions remain in the pool (soft delete) until CommitBlock
// finalises or removeExpiredTxs expires them.
func (m *Mempool) GetTxs(n int) ([]Transaction, error) {
	if n <= 0 {
		return nil, nil
	}

	var collected []TransactionReference
	for len(collected) < n && m.queue.HasReadyTxs() {
		chunk := m.queue.PopReadyChunk(n - len(collected))
		if len(chunk) == 0 {
			break
		}
		valid := m.pruneExpiredNonQueuedTxs(chunk)
		for _, v := range valid {
			if err := m.enqueueNextEligibleTx(v); err != nil {
				return nil, err
			}
		}
		collected = append(collected, valid...)
	}

	result := make([]Transaction, 0, len(collected))
	for _, ref := range collected {
		tx, ok := m.pool.GetByTxHash(ref.TxHash)
		assertf(ok, "get_txs: collected reference %s missing from pool", ref.TxHash)
		result = append(result, tx)
		m.state.Stage(ref)
	}

	m.metrics.SetGauge(metrics.GetTxsSize, float64(len(result)))
	m.refreshQueueGauges()
	return result, nil
}

// enqueueNextEligibleTx inserts (v.ContractAddress, v.Nonce+1) into the
// queue if the pool holds it.
func (m *Mempool) enqueueNextEligibleTx(v TransactionReference) error {
	if v.Nonce == math.MaxUint64 {
		return &FeatureNotSupportedError{Reason: "nonce increment overflow"}
	}
	next, ok := m.pool.GetByAddressAndNonce(v.ContractAddress, v.Nonce+1)
	if !ok {
		return nil
	}
	m.queue.Remove(v.ContractAddress)
	m.queue.Insert(next)
	return nil
}

// pruneExpiredNonQueuedTxs removes from chunk (and the pool) any entry
// whose submission time is older than now-ttl, returning the rest.
func (m *Mempool) pruneExpiredNonQueuedTxs(chunk []TransactionReference) []TransactionReference {
	cutoff := m.clk.Now().Add(-m.cfg.TransactionTTL)
	valid := make([]TransactionReference, 0, len(chunk))
	expired := 0
	for _, ref := range chunk {
		at, ok := m.pool.GetSubmissionTime(ref.TxHash)
		if ok && at.Before(cutoff) {
			if _, err := m.pool.Remove(ref.TxHash); err != nil {
				assertf(false, "prune_expired_nonqueued_txs: reference %s vanished from pool", ref.TxHash)
			}
			expired++
			continue
		}
		valid = append(valid, ref)
	}
	if expired > 0 {
		m.metrics.AddCounter(metrics.TxsExpired, expired)
	}
	return valid
}

// removeExpiredTxs evicts every unstaged transaction older than now-ttl
// from the pool and queue, per 4.5.6.
func (m *Mempool) removeExpiredTxs() {
	exclude := mapset.NewThreadUnsafeSet[Address]()
	for addr := range m.state.staged {
		exclude.Add(addr)
	}
	removed := m.pool.RemoveTxsOlderThan(m.cfg.TransactionTTL, exclude)
	if len(removed) == 0 {
		return
	}
	m.queue.RemoveTxs(removed)
	m.metrics.AddCounter(metrics.TxsExpired, len(removed))
	m.refreshQueueGauges()
}

// CommitBlock reconciles the mempool against a committed block, per 4.5.3.
func (m *Mempool) CommitBlock(args CommitBlockArgs) {
	committed := 0
	for address, nextNonce := range args.AddressToNonce {
		m.state.ValidateCommitment(address, nextNonce)

		if queuedNonce, ok := m.queue.GetNonce(address); ok && queuedNonce != nextNonce {
			m.queue.Remove(address)
		}

		committed += m.pool.RemoveUpToNonce(address, nextNonce)

		if _, queued := m.queue.GetNonce(address); !queued {
			if next, ok := m.pool.GetByAddressAndNonce(address, nextNonce); ok {
				m.queue.Insert(next)
			}
		}
	}
	if committed > 0 {
		m.metrics.AddCounter(metrics.TxsCommitted, committed)
	}

	rewind := m.state.Commit(args.AddressToNonce)
	for _, address := range rewind {
		lowest := m.lowestPoolEntry(address)
		assertf(lowest != nil, "commit_block: rewound address %s has no pool entry", address)
		m.queue.Remove(address)
		m.queue.Insert(*lowest)
		m.log.Debug("rewound address after partial block commit", "address", address, "nonce", lowest.Nonce)
	}

	for _, hash := range args.RejectedTxHashes {
		tx, ok := m.pool.GetByTxHash(hash)
		if !ok {
			continue
		}
		m.queue.RemoveTxs([]TransactionReference{tx.Reference()})
		if _, err := m.pool.Remove(hash); err != nil {
			assertf(false, "commit_block: rejected hash %s vanished from pool", hash)
		}
	}
	if len(args.RejectedTxHashes) > 0 {
		m.metrics.AddCounter(metrics.TxsRejected, len(args.RejectedTxHashes))
	}
	m.refreshQueueGauges()
}

// lowestPoolEntry returns address's lowest-nonce pool entry, or nil if the
// pool holds nothing for address.
func (m *Mempool) lowestPoolEntry(address Address) *TransactionReference {
	refs := m.pool.AccountTxsSortedByNonce(address)
	if len(refs) == 0 {
		return nil
	}
	return &refs[0]
}

// UpdateGasPrice re-partitions the queue around a new threshold, per
// 4.5.4. It performs no pool mutation.
func (m *Mempool) UpdateGasPrice(threshold *uint256.Int) {
	m.queue.UpdateGasPriceThreshold(threshold)
	m.refreshQueueGauges()
}

// ContainsTxFrom reports whether the pool holds any transaction from
// address. Read-only; safe under shared access.
func (m *Mempool) ContainsTxFrom(address Address) bool {
	return m.pool.ContainsAddress(address)
}

// Iter calls yield with every ready transaction reference in priority
// order, stopping early if yield returns false. Read-only; safe under
// shared access.
func (m *Mempool) Iter(yield func(TransactionReference) bool) {
	m.queue.IterOverReadyTxs(yield)
}

// PriorityQueueLen returns the number of ready transactions.
func (m *Mempool) PriorityQueueLen() int { return m.queue.PriorityQueueLen() }

// PendingQueueLen returns the number of pending transactions.
func (m *Mempool) PendingQueueLen() int { return m.queue.PendingQueueLen() }

// TxPoolLen returns the total number of transactions held by the pool.
func (m *Mempool) TxPoolLen() int { return m.pool.Capacity() }

func (m *Mempool) refreshQueueGauges() {
	m.metrics.SetGauge(metrics.PriorityQueueLength, float64(m.queue.PriorityQueueLen()))
	m.metrics.SetGauge(metrics.PendingQueueLength, float64(m.queue.PendingQueueLen()))
	m.metrics.SetGauge(metrics.PoolCapacity, float64(m.pool.Capacity()))
}
