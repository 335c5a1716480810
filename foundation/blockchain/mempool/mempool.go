// Package mempool maintains the mempool for the blockchain.
package mempool

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool/selector"
)

// Mempool represents a cache of transactions waiting to be mined, organized
// by sender:nonce.
type Mempool struct {
	pool     map[string]database.Tx
	mu       sync.RWMutex
	selectFn selector.Func
}

// New constructs a new mempool using the default select strategy.
func New() (*Mempool, error) {
	return NewWithStrategy(selector.StrategyRoundRobin)
}

// NewWithStrategy constructs a new mempool with specified select strategy.
func NewWithStrategy(strategy string) (*Mempool, error) {
	selectFn, err := selector.Retrieve(strategy)
	if err != nil {
		return nil, err
	}

	mp := Mempool{
		pool:     make(map[string]database.Tx),
		selectFn: selectFn,
	}

	return &mp, nil
}

// Count returns the current number of transaction in the pool.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Upsert adds or replaces a transaction in the mempool and returns the new
// size of the pool.
func (mp *Mempool) Upsert(tx database.Tx) int {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool[mapKey(tx)] = tx

	return len(mp.pool)
}

// Delete removes a transaction from the mempool.
func (mp *Mempool) Delete(tx database.Tx) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	delete(mp.pool, mapKey(tx))
}

// Truncate clears all the transactions from the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.Tx)
}

// Copy returns a list of the current transactions in the pool ordered by key.
func (mp *Mempool) Copy() []database.Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	keys := make([]string, 0, len(mp.pool))
	for key := range mp.pool {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	cpy := make([]database.Tx, 0, len(mp.pool))
	for _, key := range keys {
		cpy = append(cpy, mp.pool[key])
	}

	return cpy
}

// PickBest uses the configured select strategy to return the next set of
// transactions for the next block. Pass -1 for all the transactions.
func (mp *Mempool) PickBest(howMany int) []database.Tx {

	// Group the transactions by sender.
	m := make(map[string][]database.Tx)
	mp.mu.RLock()
	{
		if howMany == -1 || howMany > len(mp.pool) {
			howMany = len(mp.pool)
		}

		for key, tx := range mp.pool {
			sender := strings.Split(key, ":")[0]
			m[sender] = append(m[sender], tx)
		}
	}
	mp.mu.RUnlock()

	return mp.selectFn(m, howMany)
}

// =============================================================================

// mapKey is used to generate the map key.
func mapKey(tx database.Tx) string {
	return fmt.Sprintf("%s:%d", strings.ToLower(tx.From), tx.Nonce)
}
