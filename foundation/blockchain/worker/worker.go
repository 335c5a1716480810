// Package worker implements the background mining workflow for the
// blockchain. Transactions accumulate in the mempool and the worker mines
// them into blocks once enough are waiting.
package worker

import (
	"context"
	"sync"

	"github.com/ardanlabs/powchain/foundation/blockchain/database"
	"github.com/ardanlabs/powchain/foundation/blockchain/mempool"
)

// EventHandler defines a function that is called when events
// occur in the processing of mining.
type EventHandler func(v string, args ...any)

// Miner represents the behavior required to mine a batch of transactions
// onto the chain.
type Miner interface {
	Mine(ctx context.Context, trans []database.Tx) (database.Block, error)
}

// Config represents the configuration required to run the worker.
type Config struct {
	Miner         Miner
	Mempool       *mempool.Mempool
	TransPerBlock int
	EvHandler     EventHandler
}

// =============================================================================

// Worker manages the POW workflow for the blockchain.
type Worker struct {
	miner         Miner
	mempool       *mempool.Mempool
	transPerBlock int
	wg            sync.WaitGroup
	shut          chan struct{}
	startMining   chan bool
	cancelMining  chan chan struct{}
	evHandler     EventHandler
}

// Run creates a worker and starts up the mining goroutine.
func Run(cfg Config) *Worker {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	transPerBlock := cfg.TransPerBlock
	if transPerBlock <= 0 {
		transPerBlock = 1
	}

	w := Worker{
		miner:         cfg.Miner,
		mempool:       cfg.Mempool,
		transPerBlock: transPerBlock,
		shut:          make(chan struct{}),
		startMining:   make(chan bool, 1),
		cancelMining:  make(chan chan struct{}, 1),
		evHandler:     ev,
	}

	// Load the set of operations we need to run.
	operations := []func(){
		w.miningOperations,
	}

	// Set waitgroup to match the number of G's we need for the set
	// of operations we have.
	g := len(operations)
	w.wg.Add(g)

	// We don't want to return until we know all the G's are up and running.
	hasStarted := make(chan bool)

	// Start all the operational G's.
	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	// Wait for the G's to report they are running.
	for i := 0; i < g; i++ {
		<-hasStarted
	}

	return &w
}

// =============================================================================

// Shutdown terminates the goroutine performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: signal cancel mining")
	done := w.SignalCancelMining()
	done()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.wg.Wait()
}

// SignalStartMining starts a mining operation. If there is already a signal
// pending in the channel, just return since a mining operation will start.
func (w *Worker) SignalStartMining() {
	select {
	case w.startMining <- true:
	default:
	}
	w.evHandler("worker: SignalStartMining: mining signaled")
}

// SignalCancelMining signals the G executing the runMiningOperation function
// to stop immediately. That G will not return from the function until done
// is called. This allows the caller to complete any state changes before a
// new mining operation takes place.
func (w *Worker) SignalCancelMining() (done func()) {
	wait := make(chan struct{})

	select {
	case w.cancelMining <- wait:
	default:
	}
	w.evHandler("worker: SignalCancelMining: MINING: CANCEL: signaled")

	return func() { close(wait) }
}

// =============================================================================

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
