// Package miner implements the proof of work search that extends the chain.
// A set of workers split the nonce space between them and race to find a
// hash that solves the difficulty. The winner appends its block to the chain.
package miner

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/merkle"
)

// Set of error variables for mining.
var (
	ErrNoTransactions = errors.New("no transactions to mine")
	ErrSuperseded     = errors.New("chain advanced before the block could be appended")
	ErrExhausted      = errors.New("nonce space exhausted")
	ErrWorkerPanic    = errors.New("mining worker panicked")
	ErrMiningFailed   = errors.New("mining failed")
)

// Default values used when a Config field is left as zero.
const (
	DefaultRefreshInterval = 1_000_000
	ctxCheckInterval       = 1024
)

// Chain represents the behavior the miner needs from the chain it extends.
type Chain interface {
	Snapshot() (database.Block, uint)
	AppendBlock(block database.Block) error
}

// EventHandler defines a function that is called when events
// occur in the processing of mining.
type EventHandler func(v string, args ...any)

// Config represents the configuration for a miner.
type Config struct {
	Workers         int          // Number of concurrent workers, defaults to the number of CPUs.
	RefreshInterval uint64       // Attempts between timestamp refreshes per worker.
	EvHandler       EventHandler // Receives mining events.
}

// =============================================================================

// Miner mines new blocks onto a chain.
type Miner struct {
	chain           Chain
	workers         int
	refreshInterval uint64
	evHandler       EventHandler
	now             func() uint64
}

// New constructs a miner for the specified chain.
func New(chain Chain, cfg Config) *Miner {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	refresh := cfg.RefreshInterval
	if refresh == 0 {
		refresh = DefaultRefreshInterval
	}

	return &Miner{
		chain:           chain,
		workers:         workers,
		refreshInterval: refresh,
		evHandler:       ev,
		now: func() uint64 {
			return uint64(time.Now().UTC().Unix())
		},
	}
}

// Workers returns the number of concurrent workers used by Mine.
func (m *Miner) Workers() int {
	return m.workers
}

// Mine searches for a block holding the transactions using all the workers.
// The call returns the appended block once any worker succeeds. When no
// worker succeeds, the failure of every worker is returned wrapped in
// ErrMiningFailed.
func (m *Miner) Mine(ctx context.Context, trans []database.Tx) (database.Block, error) {
	return m.mine(ctx, trans, m.workers)
}

// MineSingle performs the same search as Mine on a single worker.
func (m *Miner) MineSingle(ctx context.Context, trans []database.Tx) (database.Block, error) {
	return m.mine(ctx, trans, 1)
}

// =============================================================================

// result is what a worker reports when it stops searching.
type result struct {
	worker int
	block  database.Block
	err    error
}

// job is the candidate shared read-only by all the workers.
type job struct {
	tail       database.Block
	difficulty uint
	tree       *merkle.Tree[database.Tx]
	step       uint64
}

func (m *Miner) mine(ctx context.Context, trans []database.Tx, workers int) (database.Block, error) {
	if len(trans) == 0 {
		return database.Block{}, ErrNoTransactions
	}

	// The merkle tree is built once and shared by every worker.
	tree, err := merkle.NewTree(trans)
	if err != nil {
		return database.Block{}, fmt.Errorf("%w: %w", ErrMiningFailed, err)
	}

	tail, difficulty := m.chain.Snapshot()

	j := job{
		tail:       tail,
		difficulty: difficulty,
		tree:       tree,
		step:       uint64(workers),
	}

	m.evHandler("miner: Mine: MINING: started: blk[%s]: workers[%d]: difficulty[%d]: trans[%d]", tail.Header.Number.Dec(), workers, difficulty, tree.Count())
	defer m.evHandler("miner: Mine: MINING: completed")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var done atomic.Bool
	results := make(chan result, workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func(worker int) {
			var res result
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					res = result{worker: worker, err: fmt.Errorf("%w: worker %d: %v", ErrWorkerPanic, worker, r)}
				}
				results <- res
			}()

			block, err := m.search(ctx, &done, j, uint64(worker))
			res = result{worker: worker, block: block, err: err}

			if err == nil {
				done.Store(true)
				cancel()
			}
		}(i)
	}

	wg.Wait()
	close(results)

	var errs []error
	var winner *result

	for res := range results {
		if res.err == nil {
			winner = &res
			continue
		}
		m.evHandler("miner: Mine: worker[%d]: %s", res.worker, res.err)
		errs = append(errs, fmt.Errorf("worker %d: %w", res.worker, res.err))
	}

	if winner != nil {
		m.evHandler("miner: Mine: MINING: SOLVED: worker[%d]: blk[%s]: hash[%s]", winner.worker, winner.block.Header.Number.Dec(), winner.block.Hash())
		return winner.block, nil
	}

	return database.Block{}, fmt.Errorf("%w: %w", ErrMiningFailed, errors.Join(errs...))
}

// search walks the nonces offset, offset+step, offset+2*step and so on until
// a hash solves the difficulty, another worker wins, or the context is done.
func (m *Miner) search(ctx context.Context, done *atomic.Bool, j job, offset uint64) (database.Block, error) {
	block := database.NewBlock(j.tail, j.tree, m.stamp(j.tail))
	block.Header.Nonce = offset

	var attempts uint64
	for {
		if done.Load() {
			return database.Block{}, context.Canceled
		}

		attempts++

		if attempts%ctxCheckInterval == 0 && ctx.Err() != nil {
			return database.Block{}, ctx.Err()
		}

		if attempts%m.refreshInterval == 0 {
			block.Header.TimeStamp = m.stamp(j.tail)
			m.evHandler("miner: search: worker[%d]: attempts[%d]: timestamp refreshed", offset, attempts)
		}

		if database.IsHashSolved(j.difficulty, block.Hash()) {
			err := m.chain.AppendBlock(block)
			switch {
			case err == nil:
				return block, nil

			case errors.Is(err, database.ErrStaleBlock):
				return database.Block{}, fmt.Errorf("%w: %w", ErrSuperseded, err)

			default:
				return database.Block{}, err
			}
		}

		next := block.Header.Nonce + j.step
		if next < block.Header.Nonce {
			return database.Block{}, fmt.Errorf("%w: worker %d, attempts %d", ErrExhausted, offset, attempts)
		}
		block.Header.Nonce = next
	}
}

// stamp returns the current time, never earlier than the tail's timestamp, so
// a parent stamped in the future still admits a valid child.
func (m *Miner) stamp(tail database.Block) uint64 {
	return max(m.now(), tail.Header.TimeStamp)
}
